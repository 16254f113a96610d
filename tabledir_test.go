// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"os"
	"path/filepath"
	"testing"
)

func touchFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("placeholder\n"), 0o644); err != nil {
		t.Fatalf("os.WriteFile(%s) failed: %v", path, err)
	}
}

func TestTabledirResolveBufrExactMatch(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, filepath.Join(dir, "B0000000013000.txt"))
	touchFile(t, filepath.Join(dir, "B0000000014000.txt"))

	td := NewTabledir([]string{dir})
	req := BufrTableID{MasterTableVersionNumber: 13}
	path, err := td.ResolveBufr(req)
	if err != nil {
		t.Fatalf("ResolveBufr failed: %v", err)
	}
	if filepath.Base(path) != "B0000000013000.txt" {
		t.Errorf("ResolveBufr = %s, want the exact version-13 match", path)
	}
}

func TestTabledirResolveBufrPrefersSmallestAcceptableVersion(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, filepath.Join(dir, "B0000000013000.txt"))
	touchFile(t, filepath.Join(dir, "B0000000019000.txt"))
	touchFile(t, filepath.Join(dir, "B0000000025000.txt"))

	td := NewTabledir([]string{dir})
	req := BufrTableID{MasterTableVersionNumber: 15}
	path, err := td.ResolveBufr(req)
	if err != nil {
		t.Fatalf("ResolveBufr failed: %v", err)
	}
	if filepath.Base(path) != "B0000000019000.txt" {
		t.Errorf("ResolveBufr = %s, want the smallest version >= 15 (19)", path)
	}
}

func TestTabledirResolveBufrNewestVersionWildcard(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, filepath.Join(dir, "B0000000013000.txt"))
	touchFile(t, filepath.Join(dir, "B0000000025000.txt"))

	td := NewTabledir([]string{dir})
	req := BufrTableID{MasterTableVersionNumber: NewestVersion}
	path, err := td.ResolveBufr(req)
	if err != nil {
		t.Fatalf("ResolveBufr failed: %v", err)
	}
	if filepath.Base(path) != "B0000000025000.txt" {
		t.Errorf("ResolveBufr with NewestVersion = %s, want the highest available version (25)", path)
	}
}

func TestTabledirResolveBufrNoAcceptableTable(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, filepath.Join(dir, "B0000000013000.txt"))

	td := NewTabledir([]string{dir})
	req := BufrTableID{MasterTableVersionNumber: 99}
	if _, err := td.ResolveBufr(req); err == nil {
		t.Errorf("ResolveBufr should fail when no candidate satisfies the requested version")
	}
}

func TestTabledirResolveBufrIgnoresDAndCrexTables(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, filepath.Join(dir, "D0000000013000.txt"))
	touchFile(t, filepath.Join(dir, "C40000000013000013.txt"))

	td := NewTabledir([]string{dir})
	req := BufrTableID{MasterTableVersionNumber: 13}
	if _, err := td.ResolveBufr(req); err == nil {
		t.Errorf("ResolveBufr should not match D or CREX table files")
	}
}

func TestTabledirResolveD(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, filepath.Join(dir, "B0000000013000.txt"))
	touchFile(t, filepath.Join(dir, "D0000000013000.txt"))

	td := NewTabledir([]string{dir})
	req := BufrTableID{MasterTableVersionNumber: 13}
	path, err := td.ResolveD(req)
	if err != nil {
		t.Fatalf("ResolveD failed: %v", err)
	}
	if filepath.Base(path) != "D0000000013000.txt" {
		t.Errorf("ResolveD = %s, want the D table file", path)
	}
}

func TestTabledirScanIsOnlyDoneOnce(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, filepath.Join(dir, "B0000000013000.txt"))

	td := NewTabledir([]string{dir})
	if _, err := td.ResolveBufr(BufrTableID{MasterTableVersionNumber: 13}); err != nil {
		t.Fatalf("ResolveBufr failed: %v", err)
	}

	// a file added after the first scan should not be picked up
	touchFile(t, filepath.Join(dir, "B0000000099000.txt"))
	if _, err := td.ResolveBufr(BufrTableID{MasterTableVersionNumber: 99}); err == nil {
		t.Errorf("ResolveBufr should not see files added after the directory has already been scanned")
	}
}
