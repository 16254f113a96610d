// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "testing"

func TestCrexReaderDecodeNumber(t *testing.T) {
	info := newCrexVarinfo(MustParseVarcode("B12101"), "temperature", "C", 1, 5)
	r := NewCrexReader([]byte("-0123rest"))
	n, missing, err := r.DecodeNumber(info)
	if err != nil {
		t.Fatalf("DecodeNumber failed: %v", err)
	}
	if missing {
		t.Fatalf("DecodeNumber reported missing for a real value")
	}
	if n != -123 {
		t.Errorf("DecodeNumber = %d, want -123", n)
	}
}

func TestCrexReaderDecodeNumberMissing(t *testing.T) {
	info := newCrexVarinfo(MustParseVarcode("B12101"), "temperature", "C", 1, 5)
	r := NewCrexReader([]byte("/////"))
	_, missing, err := r.DecodeNumber(info)
	if err != nil {
		t.Fatalf("DecodeNumber failed: %v", err)
	}
	if !missing {
		t.Errorf("all-slashes field should decode as missing")
	}
}

func TestCrexReaderDecodeString(t *testing.T) {
	info := newCrexVarinfo(MustParseVarcode("B01019"), "station name", "CHARACTER", 0, 8)
	r := NewCrexReader([]byte("ROMA    rest"))
	s, missing, err := r.DecodeString(info)
	if err != nil {
		t.Fatalf("DecodeString failed: %v", err)
	}
	if missing {
		t.Fatalf("DecodeString reported missing for a present value")
	}
	if s != "ROMA" {
		t.Errorf("DecodeString = %q, want %q", s, "ROMA")
	}
}

func TestCrexReaderDecodeStringMissing(t *testing.T) {
	info := newCrexVarinfo(MustParseVarcode("B01019"), "station name", "CHARACTER", 0, 8)
	r := NewCrexReader([]byte("////////"))
	_, missing, err := r.DecodeString(info)
	if err != nil {
		t.Fatalf("DecodeString failed: %v", err)
	}
	if !missing {
		t.Errorf("all-slashes string field should decode as missing")
	}
}

func TestCrexReaderTakePastEndOfBufferFails(t *testing.T) {
	info := newCrexVarinfo(MustParseVarcode("B12101"), "temperature", "C", 1, 5)
	r := NewCrexReader([]byte("12"))
	if _, _, err := r.DecodeNumber(info); err == nil {
		t.Errorf("DecodeNumber should fail reading past the end of the buffer")
	}
}

func buildCrexTestTable(t *testing.T) *Vartable {
	t.Helper()
	table := &Vartable{arena: newAlterationArena()}
	entries := []*Varinfo{
		newCrexVarinfo(MustParseVarcode("B01001"), "WMO block number", "NUMERIC", 0, 2),
		newCrexVarinfo(MustParseVarcode("B12101"), "temperature", "C", 1, 5),
	}
	for _, e := range entries {
		e.table = table
	}
	table.entries = entries
	return table
}

func TestDecodeCrexSubset(t *testing.T) {
	table := buildCrexTestTable(t)
	r := NewCrexReader([]byte("1400123"))
	dds := []Varcode{MustParseVarcode("B01001"), MustParseVarcode("B12101")}

	subset, err := DecodeCrexSubset(r, dds, table, nil)
	if err != nil {
		t.Fatalf("DecodeCrexSubset failed: %v", err)
	}
	if subset.Len() != 2 {
		t.Fatalf("got %d variables, want 2", subset.Len())
	}
	n0, ok := subset.Var(0).EnqI()
	if !ok || n0 != 14 {
		t.Errorf("var 0 = %v (ok=%v), want 14", n0, ok)
	}
	n1, ok := subset.Var(1).EnqI()
	if !ok || n1 != 123 {
		t.Errorf("var 1 = %v (ok=%v), want 123 (raw encoded, scale applied via EnqD)", n1, ok)
	}
	d1, ok := subset.Var(1).EnqD()
	if !ok || d1 != 12.3 {
		t.Errorf("var 1 EnqD = %v (ok=%v), want 12.3", d1, ok)
	}
}

func TestDecodeCrexSubsetUnknownDescriptorFails(t *testing.T) {
	table := buildCrexTestTable(t)
	r := NewCrexReader([]byte("1400123"))
	dds := []Varcode{MustParseVarcode("B99999")}
	if _, err := DecodeCrexSubset(r, dds, table, nil); err == nil {
		t.Errorf("DecodeCrexSubset should fail for a descriptor not in the table")
	}
}

func TestCrexDecodeTargetAssociatedFieldUnimplemented(t *testing.T) {
	table := buildCrexTestTable(t)
	subset := NewSubset()
	target := NewCrexDecodeTarget(NewCrexReader(nil), subset, table)
	if err := target.AssociatedField(6); err == nil {
		t.Errorf("CREX AssociatedField should be unimplemented")
	}
}

func TestCrexDecodeTargetDefineBitmapUnimplemented(t *testing.T) {
	table := buildCrexTestTable(t)
	subset := NewSubset()
	target := NewCrexDecodeTarget(NewCrexReader(nil), subset, table)
	if err := target.DefineBitmap(VarcodeF(2, 22, 0), 3, false); err == nil {
		t.Errorf("CREX DefineBitmap should be unimplemented")
	}
}
