// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "testing"

func TestVarIntAccessors(t *testing.T) {
	info := newBufrVarinfo(MustParseVarcode("B12101"), "temperature", "K", 1, 7, 0, 16)
	v := NewVarInt(info, 2732)

	n, ok := v.EnqI()
	if !ok || n != 2732 {
		t.Fatalf("EnqI() = (%d, %v), want (2732, true)", n, ok)
	}
	d, ok := v.EnqD()
	if !ok || d != 273.2 {
		t.Errorf("EnqD() = (%g, %v), want (273.2, true)", d, ok)
	}
	if _, ok := v.EnqC(); ok {
		t.Errorf("EnqC() on an integer Var should report false")
	}
}

func TestVarStringAccessors(t *testing.T) {
	info := newStringVarinfo(VarcodeF(0, 1, 1), "station", 8)
	v := NewVarString(info, "ABCD")

	s, ok := v.EnqC()
	if !ok || s != "ABCD" {
		t.Fatalf("EnqC() = (%q, %v), want (\"ABCD\", true)", s, ok)
	}
	if _, ok := v.EnqI(); ok {
		t.Errorf("EnqI() on a string Var should report false")
	}
}

func TestVarUnsetVar(t *testing.T) {
	info := newBufrVarinfo(MustParseVarcode("B12101"), "temperature", "K", 1, 7, 0, 16)
	v := NewVar(info)
	if v.IsSet() {
		t.Errorf("NewVar should return an unset Var")
	}
	if err := v.SetI(100); err != nil {
		t.Fatalf("SetI failed: %v", err)
	}
	if !v.IsSet() {
		t.Errorf("Var should be set after SetI")
	}
	v.Unset()
	if v.IsSet() {
		t.Errorf("Var should be unset after Unset()")
	}
}

func TestVarSetWrongTypeFails(t *testing.T) {
	info := newStringVarinfo(VarcodeF(0, 1, 1), "station", 8)
	v := NewVar(info)
	if err := v.SetI(1); err == nil {
		t.Errorf("SetI on a string Var should fail")
	}

	numInfo := newBufrVarinfo(MustParseVarcode("B12101"), "temperature", "K", 1, 7, 0, 16)
	numVar := NewVar(numInfo)
	if err := numVar.SetC("x"); err == nil {
		t.Errorf("SetC on a numeric Var should fail")
	}
}

func TestVarAttrs(t *testing.T) {
	info := newBufrVarinfo(MustParseVarcode("B12101"), "temperature", "K", 1, 7, 0, 16)
	v := NewVarInt(info, 100)

	attrInfo := newIntegerVarinfo(MustParseVarcode("B33002"), "quality", 6)
	v.Seta(NewVarInt(attrInfo, 1))
	v.Seta(NewVarInt(attrInfo, 2)) // replaces the first

	attr, ok := v.Enqa(attrInfo.Code)
	if !ok {
		t.Fatalf("Enqa(%s) not found", attrInfo.Code)
	}
	if n, _ := attr.EnqI(); n != 2 {
		t.Errorf("Seta with a duplicate code should replace, got value %d", n)
	}
	if len(v.Attrs()) != 1 {
		t.Errorf("Attrs() has %d entries, want 1", len(v.Attrs()))
	}
}

func TestVarEqual(t *testing.T) {
	info := newBufrVarinfo(MustParseVarcode("B12101"), "temperature", "K", 1, 7, 0, 16)
	a := NewVarInt(info, 100)
	b := NewVarInt(info, 100)
	if !a.Equal(b) {
		t.Errorf("two Vars with the same code and value should be Equal")
	}

	c := NewVarInt(info, 101)
	if a.Equal(c) {
		t.Errorf("Vars with different values should not be Equal")
	}

	attrInfo := newIntegerVarinfo(MustParseVarcode("B33002"), "quality", 6)
	a.Seta(NewVarInt(attrInfo, 1))
	if a.Equal(b) {
		t.Errorf("Vars with differing attribute chains should not be Equal")
	}
	b.Seta(NewVarInt(attrInfo, 1))
	if !a.Equal(b) {
		t.Errorf("Vars with matching attribute chains should be Equal")
	}
}

func TestVarClone(t *testing.T) {
	info := newBufrVarinfo(MustParseVarcode("B12101"), "temperature", "K", 1, 7, 0, 16)
	v := NewVarInt(info, 100)
	attrInfo := newIntegerVarinfo(MustParseVarcode("B33002"), "quality", 6)
	v.Seta(NewVarInt(attrInfo, 1))

	cp := v.Clone()
	if !v.Equal(cp) {
		t.Fatalf("Clone() should be structurally Equal to the original")
	}
	cp.Attrs()[0].SetI(2)
	if v.Equal(cp) {
		t.Errorf("mutating the clone's attribute should not affect the original")
	}
}
