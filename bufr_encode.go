// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "github.com/wxreport/bufr/internal/wlog"

// EncodeBulletin serializes the subsets of a populated Bulletin into the
// bit-packed data-section (section 4) payload, driving one interpreter pass
// per subset. Sections 0-3 and 5 are not written. Compressed encoding is not
// implemented: a bulletin with Compressed set, including one decoded from a
// compressed message, is rejected with Unimplemented (see DESIGN.md).
func EncodeBulletin(b *Bulletin, opts *Options) ([]byte, error) {
	if b.Compressed {
		return nil, newErr(Unimplemented, "encoding compressed bulletins is not supported")
	}
	if b.BufrTable == nil {
		return nil, newErr(Consistency, "bulletin has no resolved BUFR table to encode against")
	}
	if err := b.CheckCongruent(); err != nil {
		return nil, err
	}

	helper := opts.helper()
	w := NewWriter()
	for _, subset := range b.Subsets {
		target := newEncodeTarget(w, subset, b.BufrTable, helper)
		ip := NewInterpreter(b.BufrTable, b.DTable, target)
		if err := ip.Run(b.DDS); err != nil {
			return nil, err
		}
		if target.cur != subset.Len() {
			return nil, newErr(Consistency, "subset has %d variables but the DDS only consumed %d", subset.Len(), target.cur)
		}
	}
	return w.Bytes(), nil
}

// encodeTarget is the inverse of uncompressedDecodeTarget: it walks
// subset.Vars() in the exact order the interpreter visits them (the same
// DDS drives both), writing bits instead of reading them.
type encodeTarget struct {
	writer *Writer
	subset *Subset
	table  *Vartable
	helper *wlog.Helper

	cur     int
	bitmaps Bitmaps

	lastSignificance int
}

func newEncodeTarget(w *Writer, s *Subset, t *Vartable, h *wlog.Helper) *encodeTarget {
	return &encodeTarget{writer: w, subset: s, table: t, helper: h}
}

func (et *encodeTarget) next() (*Var, error) {
	if et.cur >= et.subset.Len() {
		return nil, newErr(Consistency, "subset exhausted while the DDS still expects more variables")
	}
	v := et.subset.Var(et.cur)
	et.cur++
	return v, nil
}

func (et *encodeTarget) Element(info *Varinfo) error {
	var v *Var
	var err error
	if et.bitmaps.Active() {
		pos, perr := et.bitmaps.Next()
		if perr != nil {
			return perr
		}
		attr, ok := et.subset.vars[pos].Enqa(info.Code)
		if !ok {
			return newErr(Consistency, "subset position %d has no attribute %s expected by the active bitmap", pos, info.Code)
		}
		v = attr
	} else {
		v, err = et.next()
		if err != nil {
			return err
		}
	}

	if info.Code == varB31021 {
		if n, ok := v.EnqI(); ok {
			et.lastSignificance = n
		}
	}

	switch info.Type {
	case TypeString, TypeBinary:
		val, ok := v.EnqC()
		if !ok {
			return et.writer.EncodeMissingString(info.BitLen)
		}
		return et.writer.EncodeString([]byte(val), info.BitLen)
	default:
		n, ok := v.EnqI()
		if !ok {
			return et.writer.EncodeMissing(info)
		}
		return et.writer.EncodeNumber(info, uint32(n))
	}
}

func (et *encodeTarget) AssociatedField(width int) error {
	v, err := et.next()
	if err != nil {
		return err
	}
	// Put v back: the B element this field precedes has not been
	// consumed yet, only peeked at to find its attribute.
	et.cur--

	attrCode, alwaysSkip, err := AssociatedFieldAttrCode(et.lastSignificance)
	if err != nil {
		return err
	}
	if alwaysSkip {
		return et.writer.PutBits(uint32(1)<<uint(width)-1, width)
	}
	if attr, ok := v.Enqa(attrCode); ok {
		n, ok := attr.EnqI()
		if !ok {
			return newErr(TypeMismatch, "associated field attribute %s on %s has no integer value", attrCode, v.Code())
		}
		return et.writer.PutBits(uint32(n), width)
	}
	return et.writer.PutBits(uint32(1)<<uint(width)-1, width)
}

func (et *encodeTarget) RawCharacterData(n int) error {
	v, err := et.next()
	if err != nil {
		return err
	}
	val, ok := v.EnqC()
	if !ok {
		return et.writer.EncodeMissingString(n * 8)
	}
	return et.writer.EncodeString([]byte(val), n*8)
}

func (et *encodeTarget) DelayedReplicationCount(info *Varinfo) (int, error) {
	v, err := et.next()
	if err != nil {
		return 0, err
	}
	n, ok := v.EnqI()
	if !ok {
		return 0, newErr(Consistency, "delayed replication factor %s has no value to encode", info.Code)
	}
	if err := et.writer.EncodeNumber(info, uint32(n)); err != nil {
		return 0, err
	}
	return n, nil
}

// DefineBitmap builds the data-present bitmap directly from which of the
// last `size` data-bearing variables currently carry any attribute,
// writes it to the wire, and activates it for the following region of
// bitmap-addressed Element calls.
func (et *encodeTarget) DefineBitmap(ccode Varcode, size int, reuse bool) error {
	if reuse {
		if et.bitmaps.ReuseLast() {
			return nil
		}
	}
	if size <= 0 {
		return newErr(Consistency, "data present bitmap %s has non-positive size %d", ccode, size)
	}

	bits := make([]byte, size)
	cur := len(et.subset.vars)
	for pos := size - 1; pos >= 0; pos-- {
		if cur == 0 {
			return newErr(Consistency, "bitmap of size %d refers to variables before the start of the subset", size)
		}
		cur--
		for et.subset.vars[cur].Code().F() != 0 {
			if cur == 0 {
				return newErr(Consistency, "bitmap of size %d refers to variables before the start of the subset", size)
			}
			cur--
		}
		if len(et.subset.vars[cur].Attrs()) > 0 {
			bits[pos] = '+'
		} else {
			bits[pos] = '-'
		}
	}
	bitmapStr := string(bits)
	if err := et.writer.EncodeUncompressedBitmap(bitmapStr); err != nil {
		return err
	}

	info := newStringVarinfo(ccode, "data present bitmap", size)
	bitmapVar := NewVarString(info, bitmapStr)
	anchor := len(et.subset.vars)
	bm, err := NewBitmap(bitmapVar, et.subset, anchor)
	if err != nil {
		return err
	}
	et.bitmaps.Define(bm)
	return nil
}
