// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "testing"

func buildBitmapSubset(t *testing.T, n int) *Subset {
	t.Helper()
	s := NewSubset()
	info := newBufrVarinfo(MustParseVarcode("B12101"), "temperature", "K", 0, 7, 0, 16)
	for i := 0; i < n; i++ {
		s.StoreInt(info, i)
	}
	return s
}

func TestNewBitmapResolvesForwardOrder(t *testing.T) {
	s := buildBitmapSubset(t, 4)
	bmInfo := newStringVarinfo(MustParseVarcode("C22000"), "data present bitmap", 4)
	bmVar := NewVarString(bmInfo, "+-+-")

	bm, err := NewBitmap(bmVar, s, 4)
	if err != nil {
		t.Fatalf("NewBitmap failed: %v", err)
	}
	if bm.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", bm.Len())
	}
	first, err := bm.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	second, err := bm.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if first != 0 || second != 2 {
		t.Errorf("Next()/Next() = (%d, %d), want (0, 2)", first, second)
	}
	if !bm.Eob() {
		t.Errorf("Eob() should be true after exhausting a 2-entry bitmap")
	}
}

func TestNewBitmapRejectsZeroAnchor(t *testing.T) {
	s := buildBitmapSubset(t, 4)
	bmInfo := newStringVarinfo(MustParseVarcode("C22000"), "data present bitmap", 4)
	bmVar := NewVarString(bmInfo, "+-+-")
	if _, err := NewBitmap(bmVar, s, 0); err == nil {
		t.Errorf("NewBitmap anchored at subset start should fail")
	}
}

func TestBitmapsDefineActiveAndReuse(t *testing.T) {
	s := buildBitmapSubset(t, 2)
	bmInfo := newStringVarinfo(MustParseVarcode("C22000"), "data present bitmap", 2)
	bmVar := NewVarString(bmInfo, "++")
	bm, err := NewBitmap(bmVar, s, 2)
	if err != nil {
		t.Fatalf("NewBitmap failed: %v", err)
	}

	var bs Bitmaps
	if bs.Active() {
		t.Fatalf("Bitmaps should start inactive")
	}
	bs.Define(bm)
	if !bs.Active() {
		t.Fatalf("Bitmaps should be active after Define")
	}

	if _, err := bs.Next(); err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if _, err := bs.Next(); err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if bs.Active() {
		t.Errorf("Bitmaps should become inactive once the bitmap is exhausted")
	}

	if !bs.ReuseLast() {
		t.Fatalf("ReuseLast() should succeed right after exhausting a bitmap")
	}
	if !bs.Active() {
		t.Errorf("Bitmaps should be active again after ReuseLast")
	}
	pos, err := bs.Next()
	if err != nil || pos != 0 {
		t.Errorf("Next() after ReuseLast = (%d, %v), want (0, nil)", pos, err)
	}
}

func TestBitmapsReuseLastWithoutPendingFails(t *testing.T) {
	var bs Bitmaps
	if bs.ReuseLast() {
		t.Errorf("ReuseLast() with no pending bitmap should report false")
	}
}

func TestBitmapsDefineDiscardsPendingLast(t *testing.T) {
	s := buildBitmapSubset(t, 2)
	bmInfo := newStringVarinfo(MustParseVarcode("C22000"), "data present bitmap", 2)
	bm1, err := NewBitmap(NewVarString(bmInfo, "++"), s, 2)
	if err != nil {
		t.Fatalf("NewBitmap failed: %v", err)
	}
	bm2, err := NewBitmap(NewVarString(bmInfo, "++"), s, 2)
	if err != nil {
		t.Fatalf("NewBitmap failed: %v", err)
	}

	var bs Bitmaps
	bs.Define(bm1)
	bs.Next()
	bs.Next() // exhausts bm1, becomes "last"

	bs.Define(bm2) // should discard bm1 as "last"
	if bs.ReuseLast() {
		t.Errorf("ReuseLast() should report false: Define should have discarded the prior last bitmap")
	}
}
