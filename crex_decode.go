// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"strconv"
	"strings"
)

// CrexReader is a character-oriented cursor over a CREX data section: each
// value occupies exactly info.Len ASCII characters, digits for
// integer/decimal values (optionally signed), raw characters for strings,
// and a run of '/' meaning missing. The CREX wire format's section framing
// is handled elsewhere; CrexReader only handles the value encoding, for use
// once a caller has already isolated a data section's character stream.
type CrexReader struct {
	data []byte
	pos  int
}

// NewCrexReader wraps data for character-level reading.
func NewCrexReader(data []byte) *CrexReader {
	return &CrexReader{data: data}
}

func (r *CrexReader) take(n int) (string, error) {
	if r.pos+n > len(r.data) {
		return "", newErr(Parse, "end of buffer while looking for a %d-character CREX field", n)
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

func isAllSlashes(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '/' {
			return false
		}
	}
	return len(s) > 0
}

// DecodeNumber reads info.Len characters as a signed decimal integer, or
// missing if the field is all slashes.
func (r *CrexReader) DecodeNumber(info *Varinfo) (int, bool, error) {
	s, err := r.take(info.Len)
	if err != nil {
		return 0, false, err
	}
	if isAllSlashes(s) {
		return 0, true, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false, wrap(Parse, err, "invalid CREX numeric field %q for %s", s, info.Code)
	}
	return n, false, nil
}

// DecodeString reads info.Len characters verbatim, or missing if the field
// is all slashes.
func (r *CrexReader) DecodeString(info *Varinfo) (string, bool, error) {
	s, err := r.take(info.Len)
	if err != nil {
		return "", false, err
	}
	if isAllSlashes(s) {
		return "", true, nil
	}
	return strings.TrimRight(s, " "), false, nil
}

// crexDecodeTarget decodes a single CREX subset. CREX encoding is an
// explicit non-goal; only decode is implemented.
type crexDecodeTarget struct {
	reader *CrexReader
	subset *Subset
	table  *Vartable

	lastSignificance int
	pendingAssoc     *Var
}

// NewCrexDecodeTarget returns a Target that decodes one CREX subset from r
// into subset using table.
func NewCrexDecodeTarget(r *CrexReader, subset *Subset, table *Vartable) Target {
	return &crexDecodeTarget{reader: r, subset: subset, table: table}
}

func (ct *crexDecodeTarget) Element(info *Varinfo) error {
	var v *Var
	switch info.Type {
	case TypeString, TypeBinary:
		val, missing, err := ct.reader.DecodeString(info)
		if err != nil {
			return err
		}
		if missing {
			v = NewVar(info)
		} else {
			v = NewVarString(info, val)
		}
	default:
		raw, missing, err := ct.reader.DecodeNumber(info)
		if err != nil {
			return err
		}
		if missing {
			v = NewVar(info)
		} else {
			v = NewVarInt(info, raw)
		}
	}

	if ct.pendingAssoc != nil {
		v.Seta(ct.pendingAssoc)
		ct.pendingAssoc = nil
	}
	if info.Code == varB31021 {
		if n, ok := v.EnqI(); ok {
			ct.lastSignificance = n
		}
	}
	ct.subset.Store(v)
	return nil
}

func (ct *crexDecodeTarget) AssociatedField(width int) error {
	// CREX carries no room for an out-of-band associated field; wreport
	// treats C04 in CREX the same as BUFR would, but since the wire
	// format here is character-based with no defined bit-width encoding
	// for it, this is left unimplemented rather than guessed at.
	return newErr(Unimplemented, "associated fields (C04yyy) are not supported for CREX decoding")
}

func (ct *crexDecodeTarget) RawCharacterData(n int) error {
	info := newStringVarinfo(VarcodeF(0, 0, 0), "raw character data", n)
	s, err := ct.reader.take(n)
	if err != nil {
		return err
	}
	ct.subset.Store(NewVarString(info, s))
	return nil
}

func (ct *crexDecodeTarget) DelayedReplicationCount(info *Varinfo) (int, error) {
	n, missing, err := ct.reader.DecodeNumber(info)
	if err != nil {
		return 0, err
	}
	if missing {
		return 0, newErr(Consistency, "delayed replication factor %s is missing", info.Code)
	}
	ct.subset.Store(NewVarInt(info, n))
	return n, nil
}

func (ct *crexDecodeTarget) DefineBitmap(ccode Varcode, size int, reuse bool) error {
	return newErr(Unimplemented, "data present bitmaps are not supported for CREX decoding")
}

// DecodeCrexSubset decodes one subset's worth of character data from r
// using dds against table.
func DecodeCrexSubset(r *CrexReader, dds []Varcode, table *Vartable, dtable *DTable) (*Subset, error) {
	subset := NewSubset()
	target := NewCrexDecodeTarget(r, subset, table)
	ip := NewInterpreter(table, dtable, target)
	if err := ip.Run(dds); err != nil {
		return nil, err
	}
	return subset, nil
}
