// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

// Target is the interpreter's visitor. Decode, encode and validate all
// implement Target and are driven by the exact same event stream walking
// the exact same DDS, so a bulletin encoded by one target decodes back
// identically under another.
type Target interface {
	// Element handles a plain F=0 descriptor. info carries any
	// C01/C02/C03/C06/C07/C08 overrides already folded in.
	Element(info *Varinfo) error

	// AssociatedField is invoked immediately before Element whenever a
	// C04yyy region is active. width is the field's bit-width; the
	// significance code governing how it should be interpreted (see
	// associated.go) comes from the most recent B31021 element this same
	// Target has decoded or encoded, which only the Target itself
	// observes the value of.
	AssociatedField(width int) error

	// RawCharacterData handles a C05yyy "n raw characters follow"
	// directive, which addresses no table entry.
	RawCharacterData(n int) error

	// DelayedReplicationCount handles the F=0, X=31 descriptor that
	// supplies a delayed replication factor, returning the repeat count
	// to use.
	DelayedReplicationCount(info *Varinfo) (int, error)

	// DefineBitmap handles a C22000/C23yyy/C24yyy/C32yyy/C37yyy bitmap
	// region opener. ccode is the opcode itself; size is the number of
	// immediately preceding data-bearing descriptors it covers; reuse
	// reports whether this occurrence asks to reuse the pending "last"
	// bitmap rather than define a new one.
	DefineBitmap(ccode Varcode, size int, reuse bool) error
}

// modifiers is the interpreter's overridable decoding state, adjusted by
// C-modifiers and restored when the replication scope that changed it
// completes: popped at the end of the enclosing replication or at the next
// cancelling C00000.
type modifiers struct {
	widthDelta int // C01: added to bit_len
	scale      int
	scaleSet   bool
	ref        int
	refSet     bool
	strLen     int
	strLenSet  bool
	assocWidth int // 0 means no associated field region active

	// scaleRefWidthDelta is C07's Y: added to the base scale, multiplied
	// (as a power of ten) into the base reference, and folded into the
	// base bit length, rather than overriding them outright. Zero means no
	// active C07 override (also its own cancellation value).
	scaleRefWidthDelta int
}

// Interpreter walks a Data Descriptor Section, applying modifier state and
// expanding replication/sequence opcodes, driving a Target with the
// resulting element stream.
type Interpreter struct {
	table  *Vartable
	dtable *DTable
	target Target

	mods      modifiers
	modsStack []modifiers

	// lastReplicationCount remembers the count of the most recent fixed
	// (not delayed) replication, used as the bitmap size for the
	// C22/C23/C24/C32/C37 family, which carry no explicit count of their
	// own in the opcode itself.
	lastReplicationCount int
}

// NewInterpreter returns an Interpreter bound to table/dtable and driving
// target.
func NewInterpreter(table *Vartable, dtable *DTable, target Target) *Interpreter {
	return &Interpreter{table: table, dtable: dtable, target: target}
}

// Run evaluates dds in order, in strict reading order.
func (ip *Interpreter) Run(dds []Varcode) error {
	return ip.run(dds)
}

func (ip *Interpreter) pushMods() {
	ip.modsStack = append(ip.modsStack, ip.mods)
}

func (ip *Interpreter) popMods() {
	n := len(ip.modsStack)
	ip.mods = ip.modsStack[n-1]
	ip.modsStack = ip.modsStack[:n-1]
}

func (ip *Interpreter) run(ops []Varcode) error {
	for i := 0; i < len(ops); i++ {
		code := ops[i]
		switch code.F() {
		case 0:
			if err := ip.runElement(code); err != nil {
				return err
			}
		case 1:
			advance, err := ip.runReplication(ops[i:])
			if err != nil {
				return err
			}
			i += advance - 1
		case 2:
			if err := ip.runModifier(code); err != nil {
				return err
			}
		case 3:
			if err := ip.runSequence(code); err != nil {
				return err
			}
		default:
			return newErr(Consistency, "impossible varcode F value in %s", code)
		}
	}
	return nil
}

func (ip *Interpreter) runElement(code Varcode) error {
	if code.IsDelayedReplicationFactor() {
		base, err := ip.table.Query(code)
		if err != nil {
			return err
		}
		// Delayed replication factors are consumed directly by
		// runReplication; reaching one here means it appeared outside a
		// delayed F=1 opcode, which decoders still need to surface as an
		// ordinary element.
		_, err = ip.target.DelayedReplicationCount(base)
		return err
	}

	info, err := ip.resolveElement(code)
	if err != nil {
		return err
	}

	if ip.mods.assocWidth > 0 {
		if err := ip.target.AssociatedField(ip.mods.assocWidth); err != nil {
			return err
		}
	}
	return ip.target.Element(info)
}

// resolveElement looks up code's base Varinfo and applies any active
// C01/C02/C03/C06/C07/C08 overrides, obtaining (or creating) the altered
// Varinfo from the table's alteration arena.
func (ip *Interpreter) resolveElement(code Varcode) (*Varinfo, error) {
	base, err := ip.table.Query(code)
	if err != nil {
		return nil, err
	}

	scale := base.Scale
	bitLen := base.BitLen
	bitRef := base.BitRef
	altered := false

	if ip.mods.scaleSet {
		scale = ip.mods.scale
		altered = true
	}
	if ip.mods.widthDelta != 0 {
		bitLen += ip.mods.widthDelta
		altered = true
	}
	if ip.mods.refSet {
		bitRef = ip.mods.ref
		altered = true
	}
	if ip.mods.strLenSet && base.Type == TypeString {
		bitLen = ip.mods.strLen * 8
		altered = true
	}
	if y := ip.mods.scaleRefWidthDelta; y != 0 {
		scale += y
		bitRef *= intExp10(y)
		bitLen += (10*y + 2) / 3
		altered = true
	}

	if !altered {
		return base, nil
	}
	return ip.table.QueryAltered(code, scale, bitLen, bitRef)
}

// runReplication handles an F=1 opcode at ops[0]: X names how many
// subsequent opcodes form the repeated group, Y is the repeat count or 0
// for delayed (the following opcode must be the F=0 X=31 descriptor
// supplying the count). It returns how many opcodes of ops were consumed.
func (ip *Interpreter) runReplication(ops []Varcode) (int, error) {
	code := ops[0]
	groupLen := code.X()
	count := code.Y()
	consumed := 1

	if groupLen+1 > len(ops) {
		return 0, newErr(Consistency, "replication %s names a group of %d opcodes but only %d remain", code, groupLen, len(ops)-1)
	}

	if count == 0 {
		if len(ops) < 2 || ops[1].F() != 0 || ops[1].X() != 31 {
			return 0, newErr(Consistency, "delayed replication %s must be followed by an F=0 X=31 descriptor", code)
		}
		factorCode := ops[1]
		info, err := ip.table.Query(factorCode)
		if err != nil {
			return 0, err
		}
		n, err := ip.target.DelayedReplicationCount(info)
		if err != nil {
			return 0, err
		}
		count = n
		consumed = 2
	} else {
		ip.lastReplicationCount = count
	}

	group := ops[consumed : consumed+groupLen]
	ip.pushMods()
	for r := 0; r < count; r++ {
		if err := ip.run(group); err != nil {
			ip.popMods()
			return 0, err
		}
	}
	ip.popMods()

	return consumed + groupLen, nil
}

func (ip *Interpreter) runSequence(code Varcode) error {
	expansion, err := ip.dtable.Query(code)
	if err != nil {
		return err
	}
	return ip.run(expansion)
}

func (ip *Interpreter) runModifier(code Varcode) error {
	y := code.Y()
	switch code.X() {
	case 0:
		// C00000 cancels all active overrides in the current scope.
		if y == 0 {
			ip.mods = modifiers{}
			return nil
		}
		return newErr(Unimplemented, "modifier %s not supported", code)
	case 1:
		if y == 0 {
			ip.mods.widthDelta = 0
		} else {
			ip.mods.widthDelta = y - 128
		}
		return nil
	case 2:
		if y == 0 {
			ip.mods.scaleSet = false
			ip.mods.scale = 0
		} else {
			ip.mods.scale = y - 128
			ip.mods.scaleSet = true
		}
		return nil
	case 3:
		if y == 0 {
			ip.mods.refSet = false
			ip.mods.ref = 0
		} else {
			ip.mods.refSet = true
			ip.mods.ref = y
		}
		return nil
	case 4:
		ip.mods.assocWidth = y
		return nil
	case 5:
		return ip.target.RawCharacterData(y)
	case 6:
		info := newBinaryVarinfo(VarcodeF(0, 99, y%1000), "opaque element", y)
		return ip.target.Element(info)
	case 7:
		ip.mods.scaleRefWidthDelta = y
		return nil
	case 8:
		if y == 0 {
			ip.mods.strLenSet = false
			ip.mods.strLen = 0
		} else {
			ip.mods.strLenSet = true
			ip.mods.strLen = y
		}
		return nil
	case 22, 23, 24, 32, 37:
		reuse := y == 0 && code.X() != 23
		return ip.target.DefineBitmap(code, ip.lastReplicationCount, reuse)
	default:
		return newErr(Unimplemented, "modifier %s not supported", code)
	}
}
