// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "time"

// Bulletin is a decoded (or to-be-encoded) WMO bulletin: identification
// fields, the Data Descriptor Section, and one or more Subsets.
type Bulletin struct {
	Edition int

	OriginatingCentre    uint16
	OriginatingSubcentre uint16
	UpdateSequenceNumber uint8

	MasterTableNumber        uint8
	MasterTableVersion       uint8
	MasterTableLocalVersion  uint8

	DataCategory    uint8
	DataSubcategory uint8
	// LocalSubcategory is only present in edition 4; zero in edition 2/3.
	LocalSubcategory uint8

	ReferenceTime time.Time

	Compressed bool

	// Optional is the raw content of section 2, if present.
	Optional []byte

	// DDS is the ordered Varcode opcode sequence from section 3.
	DDS []Varcode

	Subsets []*Subset

	// BufrTable and DTable are the resolved tables used to interpret DDS
	// and decode/encode this bulletin's variables. Populated once
	// identification has been decoded and the tables loaded.
	BufrTable *Vartable
	DTable    *DTable
}

// NewBulletin returns an empty Bulletin with n empty subsets.
func NewBulletin(n int) *Bulletin {
	b := &Bulletin{Subsets: make([]*Subset, n)}
	for i := range b.Subsets {
		b.Subsets[i] = NewSubset()
	}
	return b
}

// BufrTableID returns the identification tuple used to resolve this
// bulletin's B table.
func (b *Bulletin) BufrTableID() BufrTableID {
	return BufrTableID{
		OriginatingCentre:            b.OriginatingCentre,
		OriginatingSubcentre:         b.OriginatingSubcentre,
		MasterTableNumber:            b.MasterTableNumber,
		MasterTableVersionNumber:     b.MasterTableVersion,
		MasterTableVersionNumberLocal: b.MasterTableLocalVersion,
	}
}

// CheckCongruent verifies that when compression is enabled, every subset
// contains the same sequence of Varcodes.
func (b *Bulletin) CheckCongruent() error {
	if !b.Compressed || len(b.Subsets) < 2 {
		return nil
	}
	want := b.Subsets[0].Codes()
	for i := 1; i < len(b.Subsets); i++ {
		got := b.Subsets[i].Codes()
		if len(got) != len(want) {
			return newErr(Consistency, "subset %d has %d variables, expected %d (compressed bulletins must be structurally congruent)", i, len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				return newErr(Consistency, "subset %d diverges from subset 0 at position %d: %s vs %s", i, j, got[j], want[j])
			}
		}
	}
	return nil
}
