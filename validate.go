// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

// validateTarget walks a subset's already-decoded variables alongside the
// same DDS traversal used by decode/encode, checking that each value falls
// within its Varinfo's declared domain. It
// performs no bit I/O; it exists purely to exercise the same event stream
// the other targets do, proving the interpreter is agnostic to what a
// target does with each event.
type validateTarget struct {
	subset *Subset
	cur    int

	bitmaps          Bitmaps
	lastSignificance int
}

// NewValidateTarget returns a Target that checks subset's existing values
// against their Varinfo ranges as the interpreter walks dds.
func NewValidateTarget(subset *Subset) Target {
	return &validateTarget{subset: subset}
}

func (vt *validateTarget) next() (*Var, error) {
	if vt.cur >= vt.subset.Len() {
		return nil, newErr(Consistency, "subset exhausted while the DDS still expects more variables")
	}
	v := vt.subset.Var(vt.cur)
	vt.cur++
	return v, nil
}

func (vt *validateTarget) checkRange(v *Var) error {
	if !v.IsSet() {
		return nil
	}
	info := v.Info()
	switch info.Type {
	case TypeInteger, TypeDecimal:
		n, _ := v.EnqI()
		if n < info.IMin || n > info.IMax {
			return newErr(Domain, "%s value %d outside declared range [%d, %d]", info.Code, n, info.IMin, info.IMax)
		}
	case TypeString, TypeBinary:
		s, _ := v.EnqC()
		if info.Len > 0 && len(s) > info.Len {
			return newErr(Domain, "%s string value of length %d exceeds declared length %d", info.Code, len(s), info.Len)
		}
	}
	return nil
}

func (vt *validateTarget) Element(info *Varinfo) error {
	var v *Var
	var err error
	if vt.bitmaps.Active() {
		pos, perr := vt.bitmaps.Next()
		if perr != nil {
			return perr
		}
		attr, ok := vt.subset.vars[pos].Enqa(info.Code)
		if !ok {
			return newErr(Consistency, "subset position %d has no attribute %s expected by the active bitmap", pos, info.Code)
		}
		v = attr
	} else {
		v, err = vt.next()
		if err != nil {
			return err
		}
	}
	if info.Code == varB31021 {
		if n, ok := v.EnqI(); ok {
			vt.lastSignificance = n
		}
	}
	return vt.checkRange(v)
}

func (vt *validateTarget) AssociatedField(width int) error {
	v, err := vt.next()
	if err != nil {
		return err
	}
	vt.cur--

	attrCode, alwaysSkip, err := AssociatedFieldAttrCode(vt.lastSignificance)
	if err != nil {
		return err
	}
	if alwaysSkip {
		return nil
	}
	if attr, ok := v.Enqa(attrCode); ok {
		return vt.checkRange(attr)
	}
	return nil
}

func (vt *validateTarget) RawCharacterData(n int) error {
	v, err := vt.next()
	if err != nil {
		return err
	}
	s, ok := v.EnqC()
	if ok && len(s) > n {
		return newErr(Domain, "raw character data of length %d exceeds declared length %d", len(s), n)
	}
	return nil
}

func (vt *validateTarget) DelayedReplicationCount(info *Varinfo) (int, error) {
	v, err := vt.next()
	if err != nil {
		return 0, err
	}
	if err := vt.checkRange(v); err != nil {
		return 0, err
	}
	n, ok := v.EnqI()
	if !ok {
		return 0, newErr(Consistency, "delayed replication factor %s has no value", info.Code)
	}
	return n, nil
}

func (vt *validateTarget) DefineBitmap(ccode Varcode, size int, reuse bool) error {
	if reuse {
		if vt.bitmaps.ReuseLast() {
			return nil
		}
	}
	if size <= 0 {
		return newErr(Consistency, "data present bitmap %s has non-positive size %d", ccode, size)
	}
	bits := make([]byte, size)
	cur := len(vt.subset.vars)
	for pos := size - 1; pos >= 0; pos-- {
		if cur == 0 {
			return newErr(Consistency, "bitmap of size %d refers to variables before the start of the subset", size)
		}
		cur--
		for vt.subset.vars[cur].Code().F() != 0 {
			if cur == 0 {
				return newErr(Consistency, "bitmap of size %d refers to variables before the start of the subset", size)
			}
			cur--
		}
		if len(vt.subset.vars[cur].Attrs()) > 0 {
			bits[pos] = '+'
		} else {
			bits[pos] = '-'
		}
	}
	info := newStringVarinfo(ccode, "data present bitmap", size)
	bitmapVar := NewVarString(info, string(bits))
	anchor := len(vt.subset.vars)
	bm, err := NewBitmap(bitmapVar, vt.subset, anchor)
	if err != nil {
		return err
	}
	vt.bitmaps.Define(bm)
	return nil
}

// ValidateBulletin runs a validator pass over every subset of b, checking
// that every value fits its Varinfo's declared range.
func ValidateBulletin(b *Bulletin) error {
	if b.BufrTable == nil {
		return newErr(Consistency, "bulletin has no resolved BUFR table to validate against")
	}
	for i, subset := range b.Subsets {
		target := NewValidateTarget(subset)
		ip := NewInterpreter(b.BufrTable, b.DTable, target)
		if err := ip.Run(b.DDS); err != nil {
			return wrap(Consistency, err, "validating subset %d", i)
		}
	}
	return nil
}
