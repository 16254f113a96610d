// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// VarType is the value representation of a decoded/encoded variable.
type VarType int

// The four value representations a Varinfo can describe.
const (
	TypeInteger VarType = iota
	TypeDecimal
	TypeString
	TypeBinary
)

func (t VarType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Varinfo is the immutable metadata attached to an F=0 Varcode: scale,
// bit-width, unit, range. A Varinfo's lifetime is tied to the Vartable that
// owns it; it is never mutated after creation, with the single exception of
// the alteration chain below.
type Varinfo struct {
	Code Varcode
	Type VarType
	Desc string
	Unit string

	// Scale is the decimal exponent: numeric value = integer * 10^(-Scale).
	Scale int
	// Len is the width in decimal digits (CREX).
	Len int
	// BitRef and BitLen are the binary-encoding parameters (BUFR).
	BitRef int
	BitLen int

	IMin, IMax int
	DMin, DMax float64

	table *Vartable // owning registry, for alteration lookups
}

var scalePow = [...]float64{
	1, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10,
	1e11, 1e12, 1e13, 1e14, 1e15, 1e16,
}

func scaleFactor(scale int) float64 {
	a := scale
	if a < 0 {
		a = -a
	}
	if a < len(scalePow) {
		return scalePow[a]
	}
	return math.Pow(10, float64(a))
}

// DecodeDecimal converts an encoded decimal integer into its real value:
// val / 10^scale (scale>0) or val * 10^(-scale) (scale<0).
func (v *Varinfo) DecodeDecimal(val int) float64 {
	switch {
	case v.Scale > 0:
		return float64(val) / scaleFactor(v.Scale)
	case v.Scale < 0:
		return float64(val) * scaleFactor(v.Scale)
	default:
		return float64(val)
	}
}

// EncodeDecimal converts a real value into its encoded decimal integer,
// rounding half-away-from-zero.
func (v *Varinfo) EncodeDecimal(val float64) int {
	switch {
	case v.Scale > 0:
		return int(roundHalfAwayFromZero(val * scaleFactor(v.Scale)))
	case v.Scale < 0:
		return int(roundHalfAwayFromZero(val / scaleFactor(v.Scale)))
	default:
		return int(roundHalfAwayFromZero(val))
	}
}

// RoundDecimal snaps val to the precision representable by this Varinfo's
// scale.
func (v *Varinfo) RoundDecimal(val float64) float64 {
	switch {
	case v.Scale > 0:
		return roundHalfAwayFromZero(val*scaleFactor(v.Scale)) / scaleFactor(v.Scale)
	case v.Scale < 0:
		return roundHalfAwayFromZero(val/scaleFactor(v.Scale)) * scaleFactor(v.Scale)
	default:
		return roundHalfAwayFromZero(val)
	}
}

// DecodeBinary converts a raw unsigned bit-field into its real value:
// (val + bit_ref) scaled by 10^(-scale).
func (v *Varinfo) DecodeBinary(val uint32) (float64, error) {
	if v.BitLen == 0 {
		return 0, newErr(Consistency, "cannot decode %s from binary: bit_len is unset in this table", v.Code)
	}
	f := float64(val) + float64(v.BitRef)
	if v.Scale >= 0 {
		return f / scaleFactor(v.Scale), nil
	}
	return f * scaleFactor(v.Scale), nil
}

// EncodeBinary converts a real value into the unsigned bit-field that
// represents it, failing with Domain if the result is negative or would not
// fit BitLen bits.
func (v *Varinfo) EncodeBinary(val float64) (uint32, error) {
	if v.BitLen == 0 {
		return 0, newErr(Consistency, "cannot encode %s to binary: bit_len is unset in this table", v.Code)
	}
	var res float64
	switch {
	case v.Scale > 0:
		res = roundHalfAwayFromZero(val*scaleFactor(v.Scale)) - float64(v.BitRef)
	case v.Scale < 0:
		res = roundHalfAwayFromZero(val/scaleFactor(v.Scale)) - float64(v.BitRef)
	default:
		res = roundHalfAwayFromZero(val) - float64(v.BitRef)
	}
	if res < 0 {
		return 0, newErr(Domain, "cannot encode %s value %g to %d bits using scale %d and ref %d: negative encoded value %g",
			v.Code, val, v.BitLen, v.Scale, v.BitRef, res)
	}
	if v.BitLen < 32 && res > float64(uint32(1)<<uint(v.BitLen))-1 {
		return 0, newErr(Domain, "cannot encode %s value %g to %d bits using scale %d and ref %d: value %g does not fit",
			v.Code, val, v.BitLen, v.Scale, v.BitRef, res)
	}
	return uint32(res), nil
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return math.Floor(v + 0.5)
	}
	return math.Ceil(v - 0.5)
}

// AllOnes returns the BUFR missing-value sentinel for this Varinfo's bit
// width: all bits set.
func (v *Varinfo) AllOnes() uint32 {
	if v.BitLen >= 32 {
		return math.MaxUint32
	}
	return uint32(1)<<uint(v.BitLen) - 1
}

// intExp10 mirrors wreport's table of powers of ten used when deriving the
// decimal-domain bounds, capped so the result always fits an int32.
func intExp10(x int) int {
	switch {
	case x <= 9:
		p := 1
		for i := 0; i < x; i++ {
			p *= 10
		}
		return p
	default:
		return math.MaxInt32
	}
}

func computeRange(v *Varinfo) {
	switch v.Type {
	case TypeString, TypeBinary:
		v.IMin, v.IMax = 0, 0
		v.DMin, v.DMax = 0, 0
		return
	}

	if v.Len >= 10 {
		v.IMin = math.MinInt32
		v.IMax = math.MaxInt32
	} else if v.BitLen == 0 {
		v.IMin = -(intExp10(v.Len) - 1)
		v.IMax = intExp10(v.Len) - 2
	} else {
		bitMin := v.BitRef
		bitMax := (1 << uint(v.BitLen)) + v.BitRef
		if v.Code.X() != 31 {
			bitMax -= 2
		}
		decMin := -(intExp10(v.Len) - 1)
		decMax := intExp10(v.Len) - 2
		v.IMin = maxInt(bitMin, decMin)
		v.IMax = minInt(bitMax, decMax)
	}
	v.DMin = v.DecodeDecimal(v.IMin)
	v.DMax = v.DecodeDecimal(v.IMax)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func newBufrVarinfo(code Varcode, desc, unit string, scale, length, bitRef, bitLen int) *Varinfo {
	v := &Varinfo{Code: code, Desc: desc, Unit: unit, Scale: scale, Len: length, BitRef: bitRef, BitLen: bitLen}
	switch {
	case unit == "CCITTIA5":
		v.Type = TypeString
	case scale == 0:
		v.Type = TypeInteger
	default:
		v.Type = TypeDecimal
	}
	computeRange(v)
	return v
}

// newStringVarinfo builds a synthetic string Varinfo for internal use
// (data-present bitmaps, raw C05 character payloads) where no table lookup
// applies: type String, unit CCITTIA5, bit_len = length*8.
func newStringVarinfo(code Varcode, desc string, length int) *Varinfo {
	v := &Varinfo{
		Code:   code,
		Type:   TypeString,
		Desc:   desc,
		Unit:   "CCITTIA5",
		Len:    length,
		BitLen: length * 8,
	}
	computeRange(v)
	return v
}

// newIntegerVarinfo builds a synthetic unscaled integer Varinfo for
// internal use (C04yyy associated field values), bitLen bits wide.
func newIntegerVarinfo(code Varcode, desc string, bitLen int) *Varinfo {
	v := &Varinfo{
		Code:   code,
		Type:   TypeInteger,
		Desc:   desc,
		Unit:   "NUMERIC",
		Len:    (bitLen + 7) / 8,
		BitLen: bitLen,
	}
	computeRange(v)
	return v
}

// newBinaryVarinfo builds a synthetic opaque-binary Varinfo for internal use
// (C06yyy-declared elements with no table entry), bitLen bits wide.
func newBinaryVarinfo(code Varcode, desc string, bitLen int) *Varinfo {
	v := &Varinfo{
		Code:   code,
		Type:   TypeBinary,
		Desc:   desc,
		Unit:   "UNKNOWN",
		Len:    (bitLen + 7) / 8,
		BitLen: bitLen,
	}
	computeRange(v)
	return v
}

func newCrexVarinfo(code Varcode, desc, unit string, scale, length int) *Varinfo {
	v := &Varinfo{Code: code, Desc: desc, Unit: unit, Scale: scale, Len: length}
	switch {
	case unit == "CHARACTER":
		v.Type = TypeString
	case scale == 0:
		v.Type = TypeInteger
	default:
		v.Type = TypeDecimal
	}
	computeRange(v)
	return v
}

// --- Alteration chain -------------------------------------------------
//
// Table entries are stored with an append-only arena of "altered" copies,
// created on demand by BUFR C modifiers requesting a new (scale, bit_len,
// bit_ref) triple. A small hash index keyed on xxhash of the request tuple
// gives O(1) average lookup; a singleflight.Group deduplicates concurrent
// identical alteration requests so at most one copy is created and
// published even under a data race between readers requesting the same
// alteration.

type alterationKey struct {
	base   Varcode
	scale  int
	bitLen int
	bitRef int
}

func (k alterationKey) hash() uint64 {
	var buf [28]byte
	putUint16(buf[0:2], uint16(k.base))
	putInt(buf[2:10], k.scale)
	putInt(buf[10:18], k.bitLen)
	putInt(buf[18:26], k.bitRef)
	return xxhash.Sum64(buf[:26])
}

func putUint16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }

func putInt(b []byte, v int) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (56 - 8*i))
	}
}

type alterationArena struct {
	mu    sync.RWMutex
	index map[uint64][]*Varinfo
	group singleflight.Group
}

func newAlterationArena() *alterationArena {
	return &alterationArena{index: make(map[uint64][]*Varinfo)}
}

func (a *alterationArena) lookup(key alterationKey) *Varinfo {
	h := key.hash()
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, v := range a.index[h] {
		if v.Code == key.base && v.Scale == key.scale && v.BitLen == key.bitLen && v.BitRef == key.bitRef {
			return v
		}
	}
	return nil
}

// obtain returns the Varinfo for key, creating it from base via makeAltered
// if it does not yet exist. Concurrent obtain calls for the same key are
// guaranteed to observe the same returned pointer.
func (a *alterationArena) obtain(key alterationKey, base *Varinfo) *Varinfo {
	if v := a.lookup(key); v != nil {
		return v
	}

	h := key.hash()
	shard := keyString(h, key.base)
	v, _, _ := a.group.Do(shard, func() (interface{}, error) {
		// Re-check the index before creating: another goroutine may have
		// finished an identical request while we waited to be scheduled.
		if v := a.lookup(key); v != nil {
			return v, nil
		}
		altered := makeAltered(base, key.scale, key.bitLen, key.bitRef)
		a.mu.Lock()
		a.index[h] = append(a.index[h], altered)
		a.mu.Unlock()
		return altered, nil
	})
	return v.(*Varinfo)
}

func keyString(h uint64, base Varcode) string {
	var b [10]byte
	putUint16(b[0:2], uint16(base))
	for i := 0; i < 8; i++ {
		b[2+i] = byte(h >> (56 - 8*i))
	}
	return string(b[:])
}

func makeAltered(base *Varinfo, newScale, newBitLen, newBitRef int) *Varinfo {
	altered := &Varinfo{
		Code:   base.Code,
		Type:   base.Type,
		Desc:   base.Desc,
		Unit:   base.Unit,
		Scale:  newScale,
		Len:    base.Len,
		BitRef: newBitRef,
		BitLen: newBitLen,
		table:  base.table,
	}
	computeRange(altered)
	return altered
}
