// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import "github.com/wxreport/bufr/internal/wlog"

// AssociatedFieldMeaning describes how a decoded C04yyy associated-field
// value should be attached to the element it precedes, as governed by the
// B31021 significance code active when it was decoded.
type AssociatedFieldMeaning struct {
	// Attr is the attribute Varcode the field value should be stored
	// under, or zero if the field carries no attribute (skip).
	Attr Varcode
	// Skip reports whether the field should be dropped without creating
	// an attribute, either because its significance says so unconditionally
	// (63) or because its value is this significance's own "missing" sentinel.
	Skip bool
}

var (
	attrB33002 = MustParseVarcode("B33002")
	attrB33003 = MustParseVarcode("B33003")
	attrB33050 = MustParseVarcode("B33050")
	attrB33040 = MustParseVarcode("B33040")
	attrB33041 = MustParseVarcode("B33041")
)

// AssociatedFieldAttrCode maps a B31021 significance code to the attribute
// Varcode an encoder should look up on the element about to be written,
// independent of any decoded value (the value-dependent "missing" special
// cases of ResolveAssociatedField only affect decode). alwaysSkip reports
// significance 63, which carries no attribute at all.
func AssociatedFieldAttrCode(sig int) (code Varcode, alwaysSkip bool, err error) {
	switch sig {
	case 1, 8:
		return attrB33002, false, nil
	case 2:
		return attrB33003, false, nil
	case 6:
		return attrB33050, false, nil
	case 7:
		return attrB33040, false, nil
	case 21:
		return attrB33041, false, nil
	case 63:
		return 0, true, nil
	default:
		if (sig >= 3 && sig <= 5) || (sig >= 9 && sig <= 20) || (sig >= 22 && sig <= 62) {
			return 0, true, nil
		}
		return 0, false, newErr(Unimplemented, "associated field significance %d is not supported", sig)
	}
}

// ResolveAssociatedField maps a B31021 significance code and the decoded
// field value to the attribute it should produce.
func ResolveAssociatedField(sig int, value int, logger *wlog.Helper) (AssociatedFieldMeaning, error) {
	switch sig {
	case 1, 8:
		return AssociatedFieldMeaning{Attr: attrB33002}, nil
	case 2:
		return AssociatedFieldMeaning{Attr: attrB33003}, nil
	case 6:
		if value == 15 {
			return AssociatedFieldMeaning{Skip: true}, nil
		}
		return AssociatedFieldMeaning{Attr: attrB33050}, nil
	case 7:
		return AssociatedFieldMeaning{Attr: attrB33040}, nil
	case 21:
		if value == 1 {
			return AssociatedFieldMeaning{Skip: true}, nil
		}
		return AssociatedFieldMeaning{Attr: attrB33041}, nil
	case 63:
		return AssociatedFieldMeaning{Skip: true}, nil
	default:
		if (sig >= 3 && sig <= 5) || (sig >= 9 && sig <= 20) || (sig >= 22 && sig <= 62) {
			if logger != nil {
				logger.Warnw("skipping associated field with unhandled significance", "significance", sig)
			}
			return AssociatedFieldMeaning{Skip: true}, nil
		}
		return AssociatedFieldMeaning{}, newErr(Unimplemented, "associated field significance %d is not supported", sig)
	}
}
