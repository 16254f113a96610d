// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

// Bitmap resolves a data-present bitmap Var against the Subset positions it
// refers to. The bitmap is anchored immediately before the C modifier that
// defines or uses it: resolution walks the subset backwards from the
// anchor, skipping non-F=0 entries, one bitmap character at a time from its
// last character to its first, so that the resulting reference list can be
// iterated forward in subset order.
type Bitmap struct {
	refs []int // subset indices with a '+', in forward (subset) order
	pos  int   // index into refs of the next value to yield
}

// NewBitmap resolves bitmap (whose string value holds the '+'/'-' markers)
// against subset, anchored immediately before index anchor.
func NewBitmap(bitmap *Var, subset *Subset, anchor int) (*Bitmap, error) {
	s, ok := bitmap.EnqC()
	if !ok {
		return nil, newErr(Consistency, "data present bitmap has no value")
	}
	bLen := len(s)
	if bLen == 0 {
		return nil, newErr(Consistency, "data present bitmap has length 0")
	}
	if anchor == 0 {
		return nil, newErr(Consistency, "data present bitmap is anchored at start of subset")
	}

	backward := make([]int, 0, bLen)
	bCur := bLen
	sCur := anchor
	for {
		bCur--
		sCur--
		for subset.vars[sCur].Code().F() != 0 {
			if sCur == 0 {
				return nil, newErr(Consistency, "bitmap refers to variables before the start of the subset")
			}
			sCur--
		}
		if s[bCur] == '+' {
			backward = append(backward, sCur)
		}
		if bCur == 0 {
			break
		}
		if sCur == 0 {
			return nil, newErr(Consistency, "bitmap refers to variables before the start of the subset")
		}
	}

	// backward holds indices nearest-to-anchor first; reverse it so
	// iteration below yields increasing subset-position (forward) order.
	refs := make([]int, len(backward))
	for i, v := range backward {
		refs[len(backward)-1-i] = v
	}
	return &Bitmap{refs: refs}, nil
}

// Len returns the number of '+' entries this bitmap resolved.
func (b *Bitmap) Len() int { return len(b.refs) }

// Eob reports whether iteration has reached the end.
func (b *Bitmap) Eob() bool { return b == nil || b.pos >= len(b.refs) }

// Next returns the next subset index with data present, advancing the
// iterator.
func (b *Bitmap) Next() (int, error) {
	if b.Eob() {
		return 0, newErr(Consistency, "bitmap iteration requested past end of bitmap")
	}
	res := b.refs[b.pos]
	b.pos++
	return res, nil
}

func (b *Bitmap) reset() { b.pos = 0 }

// Bitmaps tracks the currently active and most-recently-exhausted data
// present bitmap for one subset's decode/encode pass, implementing the
// rule that the last bitmap may be reused by the next consumer.
type Bitmaps struct {
	current *Bitmap
	last    *Bitmap
}

// Define installs bitmap as the active bitmap, discarding any pending
// "last" bitmap.
func (bs *Bitmaps) Define(bitmap *Bitmap) {
	bs.current = bitmap
	bs.last = nil
}

// Active reports whether a bitmap is currently being iterated.
func (bs *Bitmaps) Active() bool { return bs.current != nil }

// Next advances the active bitmap. Once exhausted, the bitmap becomes the
// pending "last" bitmap and ceases to be active.
func (bs *Bitmaps) Next() (int, error) {
	if bs.current == nil {
		return 0, newErr(Consistency, "bitmap iteration requested when no bitmap is currently active")
	}
	res, err := bs.current.Next()
	if err != nil {
		return 0, err
	}
	if bs.current.Eob() {
		bs.last = bs.current
		bs.current = nil
	}
	return res, nil
}

// ReuseLast reinstates the pending "last" bitmap as active, resetting its
// iteration position to the start.
func (bs *Bitmaps) ReuseLast() bool {
	if bs.last == nil {
		return false
	}
	bs.last.reset()
	bs.current = bs.last
	bs.last = nil
	return true
}

// DiscardLast drops any pending "last" bitmap without reusing it.
func (bs *Bitmaps) DiscardLast() { bs.last = nil }
