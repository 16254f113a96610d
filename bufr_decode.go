// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "github.com/wxreport/bufr/internal/wlog"

// DecodeBulletin parses a complete BUFR message, resolves its tables, and
// decodes every subset, enforcing structural congruence across subsets for
// compressed messages.
func DecodeBulletin(data []byte, opts *Options) (*Bulletin, error) {
	ms, err := scanSections(data)
	if err != nil {
		return nil, err
	}
	b, err := decodeIdentification(data, ms)
	if err != nil {
		return nil, err
	}

	if g := CurrentGlobalOptions(); g.ForceMasterTableVersion != 0 {
		b.MasterTableVersion = g.ForceMasterTableVersion
	}

	nSubsets, compressed, dds, err := decodeDDSHeader(data, ms.section3)
	if err != nil {
		return nil, err
	}
	b.Compressed = compressed
	b.DDS = dds

	tdir := opts.tabledir()
	bufrPath, err := tdir.ResolveBufr(b.BufrTableID())
	if err != nil {
		return nil, err
	}
	table, err := LoadBufrVartable(bufrPath)
	if err != nil {
		return nil, err
	}
	b.BufrTable = table

	if hasSequenceDescriptor(dds) {
		dPath, err := tdir.ResolveD(b.BufrTableID())
		if err != nil {
			return nil, err
		}
		dtable, err := LoadDTable(dPath)
		if err != nil {
			return nil, err
		}
		b.DTable = dtable
	}

	b.Subsets = make([]*Subset, nSubsets)
	for i := range b.Subsets {
		b.Subsets[i] = NewSubset()
	}

	helper := opts.helper()
	reader := NewReader(data[ms.section4.start+4 : ms.section4.start+ms.section4.length])

	if compressed {
		target := newCompressedDecodeTarget(reader, b.Subsets, table, helper)
		ip := NewInterpreter(table, b.DTable, target)
		if err := ip.Run(dds); err != nil {
			return nil, err
		}
	} else {
		for _, subset := range b.Subsets {
			target := newUncompressedDecodeTarget(reader, subset, table, helper)
			ip := NewInterpreter(table, b.DTable, target)
			if err := ip.Run(dds); err != nil {
				return nil, err
			}
		}
	}

	if err := b.CheckCongruent(); err != nil {
		return nil, err
	}
	return b, nil
}

func hasSequenceDescriptor(dds []Varcode) bool {
	for _, c := range dds {
		if c.F() == 3 {
			return true
		}
	}
	return false
}

var varB31021 = MustParseVarcode("B31021")

// uncompressedDecodeTarget decodes one subset from a fresh interpreter
// pass.
type uncompressedDecodeTarget struct {
	reader  *Reader
	subset  *Subset
	table   *Vartable
	helper  *wlog.Helper
	bitmaps Bitmaps

	lastSignificance int
	pendingAssoc     *Var
}

func newUncompressedDecodeTarget(r *Reader, s *Subset, t *Vartable, h *wlog.Helper) *uncompressedDecodeTarget {
	return &uncompressedDecodeTarget{reader: r, subset: s, table: t, helper: h}
}

func (dt *uncompressedDecodeTarget) Element(info *Varinfo) error {
	v, err := dt.decodeOne(info)
	if err != nil {
		return err
	}
	if dt.pendingAssoc != nil {
		v.Seta(dt.pendingAssoc)
		dt.pendingAssoc = nil
	}
	if info.Code == varB31021 {
		if n, ok := v.EnqI(); ok {
			dt.lastSignificance = n
		}
	}

	if dt.bitmaps.Active() {
		pos, err := dt.bitmaps.Next()
		if err != nil {
			return err
		}
		dt.subset.vars[pos].Seta(v)
		return nil
	}
	dt.subset.Store(v)
	return nil
}

func (dt *uncompressedDecodeTarget) decodeOne(info *Varinfo) (*Var, error) {
	switch info.Type {
	case TypeString, TypeBinary:
		val, missing, err := dt.reader.DecodeString(info.BitLen)
		if err != nil {
			return nil, err
		}
		if missing {
			return NewVar(info), nil
		}
		return NewVarString(info, string(val)), nil
	default:
		val, missing, err := dt.reader.DecodeNumber(info)
		if err != nil {
			return nil, err
		}
		if missing {
			return NewVar(info), nil
		}
		return NewVarInt(info, int(val)), nil
	}
}

func (dt *uncompressedDecodeTarget) AssociatedField(width int) error {
	val, err := dt.reader.GetBits(width)
	if err != nil {
		return err
	}
	meaning, err := ResolveAssociatedField(dt.lastSignificance, int(val), dt.helper)
	if err != nil {
		return err
	}
	if meaning.Skip {
		return nil
	}
	info := newIntegerVarinfo(meaning.Attr, "associated field", width)
	dt.pendingAssoc = NewVarInt(info, int(val))
	return nil
}

func (dt *uncompressedDecodeTarget) RawCharacterData(n int) error {
	info := newStringVarinfo(VarcodeF(0, 0, 0), "raw character data", n)
	val, missing, err := dt.reader.DecodeString(n * 8)
	if err != nil {
		return err
	}
	if missing {
		dt.subset.Store(NewVar(info))
		return nil
	}
	dt.subset.Store(NewVarString(info, string(val)))
	return nil
}

func (dt *uncompressedDecodeTarget) DelayedReplicationCount(info *Varinfo) (int, error) {
	val, missing, err := dt.reader.DecodeNumber(info)
	if err != nil {
		return 0, err
	}
	if missing {
		return 0, newErr(Consistency, "delayed replication factor %s is missing", info.Code)
	}
	dt.subset.Store(NewVarInt(info, int(val)))
	return int(val), nil
}

func (dt *uncompressedDecodeTarget) DefineBitmap(ccode Varcode, size int, reuse bool) error {
	if reuse {
		if dt.bitmaps.ReuseLast() {
			return nil
		}
	}
	if size <= 0 {
		return newErr(Consistency, "data present bitmap %s has non-positive size %d", ccode, size)
	}
	bits, err := dt.reader.DecodeUncompressedBitmap(size)
	if err != nil {
		return err
	}
	info := newStringVarinfo(ccode, "data present bitmap", size)
	bitmapVar := NewVarString(info, bits)
	anchor := len(dt.subset.vars)
	bm, err := NewBitmap(bitmapVar, dt.subset, anchor)
	if err != nil {
		return err
	}
	dt.bitmaps.Define(bm)
	return nil
}

// compressedDecodeTarget decodes every subset of a compressed message from
// a single interpreter pass: for each
// element, a base value and a 6-bit diff-bit-count are read once, then one
// diff per subset, filling all subsets before the interpreter advances to
// the next element.
type compressedDecodeTarget struct {
	reader  *Reader
	subsets []*Subset
	table   *Vartable
	helper  *wlog.Helper
	bitmaps []Bitmaps // one per subset, since bitmap references are per-subset positions

	lastSignificance []int
	pendingAssoc     []*Var
}

func newCompressedDecodeTarget(r *Reader, subsets []*Subset, t *Vartable, h *wlog.Helper) *compressedDecodeTarget {
	return &compressedDecodeTarget{
		reader:           r,
		subsets:          subsets,
		table:            t,
		helper:           h,
		bitmaps:          make([]Bitmaps, len(subsets)),
		lastSignificance: make([]int, len(subsets)),
		pendingAssoc:     make([]*Var, len(subsets)),
	}
}

func (dt *compressedDecodeTarget) Element(info *Varinfo) error {
	vars, err := dt.decodeCompressed(info)
	if err != nil {
		return err
	}
	for i, v := range vars {
		if dt.pendingAssoc[i] != nil {
			v.Seta(dt.pendingAssoc[i])
			dt.pendingAssoc[i] = nil
		}
		if info.Code == varB31021 {
			if n, ok := v.EnqI(); ok {
				dt.lastSignificance[i] = n
			}
		}
		if dt.bitmaps[i].Active() {
			pos, err := dt.bitmaps[i].Next()
			if err != nil {
				return err
			}
			dt.subsets[i].vars[pos].Seta(v)
			continue
		}
		dt.subsets[i].Store(v)
	}
	return nil
}

func (dt *compressedDecodeTarget) decodeCompressed(info *Varinfo) ([]*Var, error) {
	n := len(dt.subsets)
	vars := make([]*Var, n)

	if info.Type == TypeString || info.Type == TypeBinary {
		base, baseMissing, err := dt.reader.DecodeString(info.BitLen)
		if err != nil {
			return nil, err
		}
		diffWidth, err := dt.reader.GetBits(6)
		if err != nil {
			return nil, err
		}
		if diffWidth == 0 {
			for i := range vars {
				if baseMissing {
					vars[i] = NewVar(info)
				} else {
					vars[i] = NewVarString(info, string(base))
				}
			}
			return vars, nil
		}
		for i := range vars {
			val, missing, err := dt.reader.DecodeString(int(diffWidth))
			if err != nil {
				return nil, err
			}
			if missing {
				vars[i] = NewVar(info)
			} else {
				vars[i] = NewVarString(info, string(val))
			}
		}
		return vars, nil
	}

	base, err := dt.reader.GetBits(info.BitLen)
	if err != nil {
		return nil, err
	}
	baseMissing := base == info.AllOnes() && !info.Code.IsDelayedReplicationFactor()
	diffWidth, err := dt.reader.GetBits(6)
	if err != nil {
		return nil, err
	}
	if diffWidth != 0 && isSemanticVarcode(info.Code) {
		return nil, newErr(Consistency, "semantic value %s must have a zero diff-bit-count in a compressed message, got %d", info.Code, diffWidth)
	}
	for i := range vars {
		if diffWidth == 0 {
			if baseMissing {
				vars[i] = NewVar(info)
			} else {
				vars[i] = NewVarInt(info, int(base))
			}
			continue
		}
		diff, err := dt.reader.GetBits(int(diffWidth))
		if err != nil {
			return nil, err
		}
		if diff == uint32(1)<<diffWidth-1 {
			vars[i] = NewVar(info)
			continue
		}
		vars[i] = NewVarInt(info, int(base)+int(diff))
	}
	return vars, nil
}

// isSemanticVarcode reports whether code carries interpreter-visible
// meaning (delayed replication factors, associated-field significance) and
// must therefore be identical across all subsets of a compressed message.
func isSemanticVarcode(code Varcode) bool {
	return code.IsDelayedReplicationFactor() || code == varB31021
}

func (dt *compressedDecodeTarget) AssociatedField(width int) error {
	n := len(dt.subsets)
	base, err := dt.reader.GetBits(width)
	if err != nil {
		return err
	}
	diffWidth, err := dt.reader.GetBits(6)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		val := base
		if diffWidth != 0 {
			diff, err := dt.reader.GetBits(int(diffWidth))
			if err != nil {
				return err
			}
			val = base + diff
		}
		meaning, err := ResolveAssociatedField(dt.lastSignificance[i], int(val), dt.helper)
		if err != nil {
			return err
		}
		if meaning.Skip {
			continue
		}
		info := newIntegerVarinfo(meaning.Attr, "associated field", width)
		dt.pendingAssoc[i] = NewVarInt(info, int(val))
	}
	return nil
}

func (dt *compressedDecodeTarget) RawCharacterData(n int) error {
	return newErr(Unimplemented, "raw character data (C05yyy) is not supported in compressed messages")
}

func (dt *compressedDecodeTarget) DelayedReplicationCount(info *Varinfo) (int, error) {
	vars, err := dt.decodeCompressed(info)
	if err != nil {
		return 0, err
	}
	count := -1
	for i, v := range vars {
		n, ok := v.EnqI()
		if !ok {
			return 0, newErr(Consistency, "delayed replication factor %s is missing in subset %d", info.Code, i)
		}
		if count == -1 {
			count = n
		} else if count != n {
			return 0, newErr(Consistency, "delayed replication factor %s diverges across subsets in a compressed message", info.Code)
		}
		dt.subsets[i].Store(v)
	}
	return count, nil
}

func (dt *compressedDecodeTarget) DefineBitmap(ccode Varcode, size int, reuse bool) error {
	// A compressed message's subsets share one DDS, so the reuse decision
	// (driven by the opcode itself: Y=0 on C22/C24/C32/C37) is the same for
	// every subset; checking subset 0 is enough to decide whether to read
	// from the wire at all, same as the uncompressed path.
	if reuse && dt.bitmaps[0].ReuseLast() {
		for i := 1; i < len(dt.bitmaps); i++ {
			dt.bitmaps[i].ReuseLast()
		}
		return nil
	}
	if size <= 0 {
		return newErr(Consistency, "data present bitmap %s has non-positive size %d", ccode, size)
	}
	bits, err := dt.reader.DecodeCompressedBitmap(size)
	if err != nil {
		return err
	}
	info := newStringVarinfo(ccode, "data present bitmap", size)
	for i, subset := range dt.subsets {
		bitmapVar := NewVarString(info, bits)
		anchor := len(subset.vars)
		bm, err := NewBitmap(bitmapVar, subset, anchor)
		if err != nil {
			return err
		}
		dt.bitmaps[i].Define(bm)
	}
	return nil
}
