// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// bufrTableLine builds one fixed-width BUFR table-B line per the column
// layout LoadBufrVartable expects: FXY at column 2, description at column 8
// (64 chars), unit at column 73 (24 chars), scale at column 98, bit-ref at
// column 102, bit-len at column 115.
func bufrTableLine(fxy, desc, unit string, scale, bitRef, bitLen int) string {
	line := []byte(fmt_repeat(' ', 119))
	copy(line[2:8], fxy)
	copy(line[8:72], fmt.Sprintf("%-64s", desc))
	copy(line[73:97], fmt.Sprintf("%-24s", unit))
	copy(line[98:101], fmt.Sprintf("%3d", scale))
	copy(line[102:114], fmt.Sprintf("%12d", bitRef))
	copy(line[115:118], fmt.Sprintf("%3d", bitLen))
	return string(line)
}

func fmt_repeat(c byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return b
}

func crexTableLine(fxy, desc, unit string, scale, length int) string {
	line := fmt_repeat(' ', 157)
	copy(line[2:8], fxy)
	copy(line[8:72], fmt.Sprintf("%-64s", desc))
	copy(line[119:143], fmt.Sprintf("%-24s", unit))
	copy(line[143:146], fmt.Sprintf("%3d", scale))
	copy(line[149:152], fmt.Sprintf("%3d", length))
	return string(line)
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile(%s) failed: %v", path, err)
	}
}

func TestLoadBufrVartable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "B.txt")
	writeLines(t, path, []string{
		bufrTableLine("010004", "PRESSURE", "PA", 0, 0, 14),
		bufrTableLine("012101", "TEMPERATURE", "K", 1, -400, 12),
	})

	table, err := LoadBufrVartable(path)
	if err != nil {
		t.Fatalf("LoadBufrVartable failed: %v", err)
	}

	v, err := table.Query(MustParseVarcode("B12101"))
	if err != nil {
		t.Fatalf("Query(B12101) failed: %v", err)
	}
	if v.Desc != "TEMPERATURE" || v.Unit != "K" || v.Scale != 1 || v.BitRef != -400 || v.BitLen != 12 {
		t.Errorf("Query(B12101) = %+v, unexpected field values", v)
	}

	if !table.Contains(MustParseVarcode("B10004")) {
		t.Errorf("Contains(B10004) = false, want true")
	}
	if table.Contains(MustParseVarcode("B99999")) {
		t.Errorf("Contains(B99999) = true, want false")
	}
}

func TestLoadBufrVartableRejectsUnsortedInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "B.txt")
	// B12101 sorts after B10004; listing it first violates the ascending
	// order LoadBufrVartable requires.
	writeLines(t, path, []string{
		bufrTableLine("012101", "TEMPERATURE", "K", 1, -400, 12),
		bufrTableLine("010004", "PRESSURE", "PA", 0, 0, 14),
	})
	if _, err := LoadBufrVartable(path); err == nil {
		t.Fatalf("LoadBufrVartable on an unsorted table should fail")
	}
}

func TestLoadBufrVartableNormalizesCodeTableUnit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "B.txt")
	writeLines(t, path, []string{
		bufrTableLine("008001", "VERTICAL SIGNIFICANCE", "CODE TABLE 8001", 0, 0, 6),
	})
	table, err := LoadBufrVartable(path)
	if err != nil {
		t.Fatalf("LoadBufrVartable failed: %v", err)
	}
	v, err := table.Query(MustParseVarcode("B08001"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if v.Unit != "CODE TABLE" {
		t.Errorf("Unit = %q, want \"CODE TABLE\"", v.Unit)
	}
}

func TestLoadCrexVartable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "C.txt")
	writeLines(t, path, []string{
		crexTableLine("012101", "TEMPERATURE", "C", 1, 7),
	})
	table, err := LoadCrexVartable(path)
	if err != nil {
		t.Fatalf("LoadCrexVartable failed: %v", err)
	}
	v, err := table.Query(MustParseVarcode("B12101"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if v.Len != 7 || v.Scale != 1 {
		t.Errorf("Query(B12101) = %+v, want Len=7 Scale=1", v)
	}
}

func TestLoadCrexVartableEmptyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "C.txt")
	writeLines(t, path, []string{""})
	if _, err := LoadCrexVartable(path); err == nil {
		t.Errorf("LoadCrexVartable on a table with no valid lines should fail")
	}
}
