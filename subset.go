// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

// Subset is an ordered sequence of decoded (or to-be-encoded) Vars. Index
// positions are stable for the lifetime of the Subset and are the addresses
// data-present bitmaps refer to.
type Subset struct {
	vars []*Var
}

// NewSubset returns an empty Subset.
func NewSubset() *Subset { return &Subset{} }

// Len returns the number of variables currently stored.
func (s *Subset) Len() int { return len(s.vars) }

// Var returns the variable at position i.
func (s *Subset) Var(i int) *Var { return s.vars[i] }

// Vars returns the full variable slice. Callers must not mutate it.
func (s *Subset) Vars() []*Var { return s.vars }

// Store appends var to the subset.
func (s *Subset) Store(v *Var) { s.vars = append(s.vars, v) }

// StoreInt appends a new Var for info holding the raw encoded integer val.
func (s *Subset) StoreInt(info *Varinfo, val int) {
	s.Store(NewVarInt(info, val))
}

// StoreReal appends a new Var for info holding val, encoded through the
// Varinfo's decimal encoding.
func (s *Subset) StoreReal(info *Varinfo, val float64) {
	s.Store(NewVarReal(info, val))
}

// StoreString appends a new Var for info holding the string val.
func (s *Subset) StoreString(info *Varinfo, val string) {
	s.Store(NewVarString(info, val))
}

// StoreUndef appends a new, unset Var for info.
func (s *Subset) StoreUndef(info *Varinfo) {
	s.Store(NewVar(info))
}

// AppendBitmap builds and appends a data-present bitmap Var under ccode,
// covering the `size` data-bearing (F=0) variables immediately preceding
// the current end of the subset, marking '+' wherever that variable
// already carries an attribute of attrCode. It returns the appended bitmap
// Var and the count of '+' entries.
func (s *Subset) AppendBitmap(ccode Varcode, size int, attrCode Varcode) (*Var, int, error) {
	if size <= 0 {
		return nil, 0, newErr(Consistency, "data present bitmap size must be positive, got %d", size)
	}
	bits := make([]byte, size)
	count := 0
	cur := len(s.vars)
	for pos := size - 1; pos >= 0; pos-- {
		if cur == 0 {
			return nil, 0, newErr(Consistency, "bitmap of size %d refers to variables before the start of the subset", size)
		}
		cur--
		for s.vars[cur].Code().F() != 0 {
			if cur == 0 {
				return nil, 0, newErr(Consistency, "bitmap of size %d refers to variables before the start of the subset", size)
			}
			cur--
		}
		if _, ok := s.vars[cur].Enqa(attrCode); ok {
			bits[pos] = '+'
			count++
		} else {
			bits[pos] = '-'
		}
	}

	info := newStringVarinfo(ccode, "data present bitmap", size)
	v := NewVarString(info, string(bits))
	s.Store(v)
	return v, count, nil
}

// Clone returns a deep copy of the subset.
func (s *Subset) Clone() *Subset {
	cp := &Subset{vars: make([]*Var, len(s.vars))}
	for i, v := range s.vars {
		cp.vars[i] = v.Clone()
	}
	return cp
}

// Equal performs a structural comparison:
// same length, same Varcode sequence, and each Var structurally Equal
// (value + attribute chain).
func (s *Subset) Equal(o *Subset) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.vars) != len(o.vars) {
		return false
	}
	for i := range s.vars {
		if !s.vars[i].Equal(o.vars[i]) {
			return false
		}
	}
	return true
}

// Codes returns the ordered Varcode sequence of this subset, used when
// checking that compressed bulletins' subsets are structurally congruent.
func (s *Subset) Codes() []Varcode {
	codes := make([]Varcode, len(s.vars))
	for i, v := range s.vars {
		codes[i] = v.Code()
	}
	return codes
}
