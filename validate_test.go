// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "testing"

func TestValidateTargetAcceptsInRangeValue(t *testing.T) {
	table := buildTestTable(t)
	info, err := table.Query(MustParseVarcode("B01001"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	subset := NewSubset()
	subset.Store(NewVarInt(info, 5)) // fits in [0, 98]

	target := NewValidateTarget(subset)
	ip := NewInterpreter(table, nil, target)
	if err := ip.Run([]Varcode{MustParseVarcode("B01001")}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestValidateTargetRejectsOutOfRangeValue(t *testing.T) {
	table := buildTestTable(t)
	info, err := table.Query(MustParseVarcode("B01001"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	subset := NewSubset()
	subset.Store(NewVarInt(info, 9999)) // far beyond a 7-bit field

	target := NewValidateTarget(subset)
	ip := NewInterpreter(table, nil, target)
	if err := ip.Run([]Varcode{MustParseVarcode("B01001")}); err == nil {
		t.Errorf("Run should fail when a stored value is outside its declared range")
	}
}

func TestValidateTargetSkipsUnsetValues(t *testing.T) {
	table := buildTestTable(t)
	info, err := table.Query(MustParseVarcode("B01001"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	subset := NewSubset()
	subset.Store(NewVar(info)) // unset

	target := NewValidateTarget(subset)
	ip := NewInterpreter(table, nil, target)
	if err := ip.Run([]Varcode{MustParseVarcode("B01001")}); err != nil {
		t.Errorf("Run should not flag an unset value, got %v", err)
	}
}

func TestValidateTargetSubsetExhaustedFails(t *testing.T) {
	table := buildTestTable(t)
	subset := NewSubset() // no variables stored at all

	target := NewValidateTarget(subset)
	ip := NewInterpreter(table, nil, target)
	if err := ip.Run([]Varcode{MustParseVarcode("B01001")}); err == nil {
		t.Errorf("Run should fail when the subset runs out of variables before the DDS does")
	}
}

func TestValidateBulletinNoTableFails(t *testing.T) {
	b := NewBulletin(1)
	if err := ValidateBulletin(b); err == nil {
		t.Errorf("ValidateBulletin should fail on a bulletin with no resolved BUFR table")
	}
}

func TestValidateBulletinAcrossSubsets(t *testing.T) {
	table := buildTestTable(t)
	info, err := table.Query(MustParseVarcode("B01001"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	b := NewBulletin(2)
	b.BufrTable = table
	b.DDS = []Varcode{MustParseVarcode("B01001")}
	for _, s := range b.Subsets {
		s.Store(NewVarInt(info, 3))
	}

	if err := ValidateBulletin(b); err != nil {
		t.Fatalf("ValidateBulletin failed: %v", err)
	}

	b.Subsets[1].Var(0).SetI(9999)
	if err := ValidateBulletin(b); err == nil {
		t.Errorf("ValidateBulletin should fail when subset 1 has an out-of-range value")
	}
}
