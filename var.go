// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "fmt"

// Var pairs a Varinfo with an optional value (a decimal value encoded as an
// integer, an opaque byte string, or unset), plus an ordered chain of
// attribute Vars, each itself a full Var, addressed by Varcode with at most
// one attribute per Varcode.
type Var struct {
	info  *Varinfo
	isSet bool
	ival  int    // valid when info.Type is Integer/Decimal
	sval  []byte // valid when info.Type is String/Binary

	attrs []*Var // ordered, at most one entry per Varcode
}

// NewVar constructs an unset Var for info.
func NewVar(info *Varinfo) *Var {
	return &Var{info: info}
}

// NewVarInt constructs a Var for info holding the encoded decimal/integer
// value val directly (no decimal scaling applied).
func NewVarInt(info *Varinfo, val int) *Var {
	return &Var{info: info, isSet: true, ival: val}
}

// NewVarReal constructs a Var for info, encoding val through the Varinfo's
// decimal encoding.
func NewVarReal(info *Varinfo, val float64) *Var {
	return &Var{info: info, isSet: true, ival: info.EncodeDecimal(val)}
}

// NewVarString constructs a Var for info holding a string/binary value.
func NewVarString(info *Varinfo, val string) *Var {
	return &Var{info: info, isSet: true, sval: []byte(val)}
}

// NewVarBytes constructs a Var for info holding an opaque byte value.
func NewVarBytes(info *Varinfo, val []byte) *Var {
	cp := make([]byte, len(val))
	copy(cp, val)
	return &Var{info: info, isSet: true, sval: cp}
}

// Info returns the Varinfo describing this variable.
func (v *Var) Info() *Varinfo { return v.info }

// Code returns the Varcode of this variable.
func (v *Var) Code() Varcode { return v.info.Code }

// IsSet reports whether this Var carries a value.
func (v *Var) IsSet() bool { return v.isSet }

// Unset clears any value on this Var, leaving its attributes untouched.
func (v *Var) Unset() {
	v.isSet = false
	v.ival = 0
	v.sval = nil
}

// EnqI returns the raw encoded integer value and true, or (0, false) if
// unset or not an integer/decimal type.
func (v *Var) EnqI() (int, bool) {
	if !v.isSet || (v.info.Type != TypeInteger && v.info.Type != TypeDecimal) {
		return 0, false
	}
	return v.ival, true
}

// EnqD returns the decoded real value and true, or (0, false) if unset.
func (v *Var) EnqD() (float64, bool) {
	i, ok := v.EnqI()
	if !ok {
		return 0, false
	}
	return v.info.DecodeDecimal(i), true
}

// EnqC returns the string value and true, or ("", false) if unset or not a
// string/binary type.
func (v *Var) EnqC() (string, bool) {
	if !v.isSet || (v.info.Type != TypeString && v.info.Type != TypeBinary) {
		return "", false
	}
	return string(v.sval), true
}

// EnqBytes returns the raw byte value and true, or (nil, false) if unset.
func (v *Var) EnqBytes() ([]byte, bool) {
	if !v.isSet || (v.info.Type != TypeString && v.info.Type != TypeBinary) {
		return nil, false
	}
	return v.sval, true
}

// SetI sets v's value to the raw encoded integer val. Fails with
// TypeMismatch if v is not an integer/decimal variable.
func (v *Var) SetI(val int) error {
	if v.info.Type != TypeInteger && v.info.Type != TypeDecimal {
		return newErr(TypeMismatch, "cannot set integer value on %s variable %s", v.info.Type, v.info.Code)
	}
	v.ival = val
	v.isSet = true
	return nil
}

// SetD sets v's value to the real number val, encoded via the Varinfo's
// decimal encoding.
func (v *Var) SetD(val float64) error {
	if v.info.Type != TypeInteger && v.info.Type != TypeDecimal {
		return newErr(TypeMismatch, "cannot set real value on %s variable %s", v.info.Type, v.info.Code)
	}
	v.ival = v.info.EncodeDecimal(val)
	v.isSet = true
	return nil
}

// SetC sets v's value to the string val.
func (v *Var) SetC(val string) error {
	if v.info.Type != TypeString && v.info.Type != TypeBinary {
		return newErr(TypeMismatch, "cannot set string value on %s variable %s", v.info.Type, v.info.Code)
	}
	v.sval = []byte(val)
	v.isSet = true
	return nil
}

// Seta inserts attr into v's attribute chain, replacing any existing
// attribute with the same Varcode.
func (v *Var) Seta(attr *Var) {
	for i, a := range v.attrs {
		if a.Code() == attr.Code() {
			v.attrs[i] = attr
			return
		}
	}
	v.attrs = append(v.attrs, attr)
}

// Enqa returns the attribute with the given code, or (nil, false).
func (v *Var) Enqa(code Varcode) (*Var, bool) {
	for _, a := range v.attrs {
		if a.Code() == code {
			return a, true
		}
	}
	return nil, false
}

// Attrs returns the attribute chain in insertion order. Callers must not
// mutate the returned slice.
func (v *Var) Attrs() []*Var { return v.attrs }

// Clone returns a deep copy of v, including its attribute chain.
func (v *Var) Clone() *Var {
	cp := &Var{info: v.info, isSet: v.isSet, ival: v.ival}
	if v.sval != nil {
		cp.sval = append([]byte(nil), v.sval...)
	}
	if len(v.attrs) > 0 {
		cp.attrs = make([]*Var, len(v.attrs))
		for i, a := range v.attrs {
			cp.attrs[i] = a.Clone()
		}
	}
	return cp
}

// Equal performs a structural comparison: same
// Varcode, same value (or both unset), and equal attribute chains
// (order-independent, since a bitmap-resolved decode and a hand-built
// encode need not append attributes in the same order to be semantically
// identical).
func (v *Var) Equal(o *Var) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Code() != o.Code() {
		return false
	}
	if v.isSet != o.isSet {
		return false
	}
	if v.isSet {
		switch v.info.Type {
		case TypeInteger, TypeDecimal:
			if v.ival != o.ival {
				return false
			}
		case TypeString, TypeBinary:
			if string(v.sval) != string(o.sval) {
				return false
			}
		}
	}
	if len(v.attrs) != len(o.attrs) {
		return false
	}
	for _, a := range v.attrs {
		b, ok := o.Enqa(a.Code())
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}

func (v *Var) String() string {
	if !v.isSet {
		return fmt.Sprintf("%s=(unset)", v.info.Code)
	}
	switch v.info.Type {
	case TypeInteger, TypeDecimal:
		return fmt.Sprintf("%s=%g", v.info.Code, v.info.DecodeDecimal(v.ival))
	default:
		return fmt.Sprintf("%s=%q", v.info.Code, string(v.sval))
	}
}
