// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"fmt"
	"unicode"
)

// Varcode is a 16-bit WMO descriptor identifier, packed as F:2 | X:6 | Y:8.
//
//	F=0 data element (B table)
//	F=1 replication
//	F=2 modifier (C table)
//	F=3 sequence (D table)
type Varcode uint16

// VarcodeF builds a Varcode from its F, X, Y components.
func VarcodeF(f, x, y int) Varcode {
	return Varcode((uint16(f) << 14) | (uint16(x) << 8) | uint16(y))
}

// F returns the two-bit F part of the code.
func (c Varcode) F() int { return int(c>>14) & 0x3 }

// X returns the six-bit X part of the code.
func (c Varcode) X() int { return int(c>>8) & 0x3f }

// Y returns the eight-bit Y part of the code.
func (c Varcode) Y() int { return int(c) & 0xff }

var fLetters = [4]byte{'B', 'R', 'C', 'D'}

// String formats the code in its canonical Bxxyyy/Rxxyyy/Cxxyyy/Dxxyyy form.
func (c Varcode) String() string {
	return fmt.Sprintf("%c%02d%03d", fLetters[c.F()], c.X(), c.Y())
}

// IsDelayedReplicationFactor reports whether code is one of the F=0, X=31
// descriptors whose value supplies a delayed-replication count, and which
// must therefore never be treated as a BUFR missing value even when all its
// bits are set.
func (c Varcode) IsDelayedReplicationFactor() bool {
	if c.F() != 0 || c.X() != 31 {
		return false
	}
	switch c.Y() {
	case 0, 1, 2, 11, 12:
		return true
	default:
		return false
	}
}

// ParseVarcode parses a canonical textual Varcode such as "B12101",
// "012101", "D20003" or "320003" into its packed form.
func ParseVarcode(s string) (Varcode, error) {
	if len(s) != 6 {
		return 0, newErr(Parse, "cannot parse varcode out of %q: expected 6 characters", s)
	}

	var f int
	switch s[0] {
	case 'B', '0':
		f = 0
	case 'R', '1':
		f = 1
	case 'C', '2':
		f = 2
	case 'D', '3':
		f = 3
	default:
		return 0, newErr(Parse, "cannot parse varcode out of %q: unknown leading character %q", s, s[0])
	}

	for i := 1; i < 6; i++ {
		if !unicode.IsDigit(rune(s[i])) {
			return 0, newErr(Parse, "cannot parse varcode out of %q: expected digits", s)
		}
	}

	x := int(s[1]-'0')*10 + int(s[2]-'0')
	y := int(s[3]-'0')*100 + int(s[4]-'0')*10 + int(s[5]-'0')
	return VarcodeF(f, x, y), nil
}

// MustParseVarcode is ParseVarcode, panicking on error. Intended for
// compile-time-known descriptor literals.
func MustParseVarcode(s string) Varcode {
	c, err := ParseVarcode(s)
	if err != nil {
		panic(err)
	}
	return c
}
