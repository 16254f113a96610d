// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/exp/slices"
)

// Vartable is an ordered registry of Varinfo, sorted by Varcode, loaded from
// a fixed-width WMO table-B text file. It is immutable after loading except
// for the alteration arena (see varinfo.go), which is safe for concurrent
// readers.
type Vartable struct {
	Pathname string
	entries  []*Varinfo
	arena    *alterationArena
}

// Query returns the base Varinfo for code, or a NotFound error.
func (t *Vartable) Query(code Varcode) (*Varinfo, error) {
	i, ok := t.search(code)
	if !ok {
		return nil, newErrf(NotFound, t.Pathname, -1, -1, "variable %s not found in table %s", code, t.Pathname)
	}
	return t.entries[i], nil
}

// Contains reports whether code is present in the base table.
func (t *Vartable) Contains(code Varcode) bool {
	_, ok := t.search(code)
	return ok
}

func (t *Vartable) search(code Varcode) (int, bool) {
	return slices.BinarySearchFunc(t.entries, code, func(v *Varinfo, c Varcode) int {
		switch {
		case v.Code < c:
			return -1
		case v.Code > c:
			return 1
		default:
			return 0
		}
	})
}

// QueryAltered resolves code through the alteration chain for the given
// (scale, bit_len, bit_ref) triple, creating and caching a new altered
// Varinfo the first time this exact triple is requested.
func (t *Vartable) QueryAltered(code Varcode, scale, bitLen, bitRef int) (*Varinfo, error) {
	base, err := t.Query(code)
	if err != nil {
		return nil, err
	}
	if base.Scale == scale && base.BitLen == bitLen && base.BitRef == bitRef {
		return base, nil
	}

	switch base.Type {
	case TypeInteger, TypeDecimal:
		if scale < -16 || scale > 16 {
			return nil, newErr(Consistency, "cannot alter variable %s with a new scale of %d", code, scale)
		}
		if bitLen > 32 {
			return nil, newErr(Consistency, "cannot alter variable %s with a new bit_len of %d", code, bitLen)
		}
	}

	key := alterationKey{base: code, scale: scale, bitLen: bitLen, bitRef: bitRef}
	return t.arena.obtain(key, base), nil
}

// Iterate calls fn for every Varinfo in the table, base entries followed by
// any alterations created so far. It stops early if fn returns false.
func (t *Vartable) Iterate(fn func(*Varinfo) bool) {
	for _, e := range t.entries {
		if !fn(e) {
			return
		}
	}
	if t.arena == nil {
		return
	}
	var altered []*Varinfo
	t.arena.mu.RLock()
	for _, vs := range t.arena.index {
		altered = append(altered, vs...)
	}
	t.arena.mu.RUnlock()
	for _, v := range altered {
		if !fn(v) {
			return
		}
	}
}

// --- file parsing -------------------------------------------------------

// LoadBufrVartable parses a BUFR table-B text file at path: lines at least
// 119 bytes long, FXY at column 2 (6 digits), description at column 8 (64
// chars), unit at column 73 (24 chars), scale at column 98, bit-ref at
// column 102, bit-len at column 115.
func LoadBufrVartable(path string) (*Vartable, error) {
	data, closeFn, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	t := &Vartable{Pathname: path, arena: newAlterationArena()}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	lineNo := 0
	var lastCode Varcode
	haveLast := false
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(line) < 119 {
			return nil, newErrf(Parse, path, -1, lineNo, "bufr table line too short")
		}

		code, err := parseFXY(line[2:8])
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid FXY field: %v", err)
		}
		if haveLast && code <= lastCode {
			return nil, newErrf(Parse, path, -1, lineNo, "input file is not sorted")
		}
		lastCode, haveLast = code, true

		desc := trimField(line, 8, 64)
		unit := normalizeUnit(trimField(line, 73, 24))
		scale, err := parseSignedNumber(line, 98, 3)
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid scale: %v", err)
		}
		bitRef, err := parseSignedNumber(line, 102, 12)
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid bit-ref: %v", err)
		}
		bitLen, err := parseSignedNumber(line, 115, 3)
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid bit-len: %v", err)
		}

		v := newBufrVarinfo(code, desc, unit, scale, 0, bitRef, bitLen)
		v.table = t
		t.entries = append(t.entries, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, wrap(System, err, "reading bufr table %s", path)
	}
	return t, nil
}

// LoadCrexVartable parses a CREX table-B text file at path: lines at least
// 157 bytes long, FXY at column 2, description at column 8 (64 chars), unit
// at column 119 (24 chars), scale at column 143, digit-length at column 149.
func LoadCrexVartable(path string) (*Vartable, error) {
	data, closeFn, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	t := &Vartable{Pathname: path, arena: newAlterationArena()}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	lineNo := 0
	found := 0
	var lastCode Varcode
	haveLast := false
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(line) < 157 {
			continue
		}

		code, err := parseFXY(line[2:8])
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid FXY field: %v", err)
		}
		if haveLast && code <= lastCode {
			return nil, newErrf(Parse, path, -1, lineNo, "input file is not sorted")
		}
		lastCode, haveLast = code, true

		desc := trimField(line, 8, 64)
		unit := normalizeUnit(trimField(line, 119, 24))
		scale, err := parseSignedNumber(line, 143, 3)
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid scale: %v", err)
		}
		length, err := parseSignedNumber(line, 149, 3)
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid length: %v", err)
		}

		v := newCrexVarinfo(code, desc, unit, scale, length)
		v.table = t
		t.entries = append(t.entries, v)
		found++
	}
	if err := scanner.Err(); err != nil {
		return nil, wrap(System, err, "reading crex table %s", path)
	}
	if found == 0 {
		return nil, newErrf(Consistency, path, -1, -1, "table does not contain any CREX information")
	}
	return t, nil
}

func mapFile(path string) ([]byte, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, wrap(System, err, "opening table file %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, wrap(System, err, "stat table file %s", path)
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, func() {}, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, wrap(System, err, "mmap table file %s", path)
	}
	return []byte(m), func() { m.Unmap(); f.Close() }, nil
}

func parseFXY(field string) (Varcode, error) {
	field = strings.TrimSpace(field)
	if len(field) != 6 {
		return 0, fmt.Errorf("expected 6-digit FXY, got %q", field)
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	f := n / 100000
	x := (n / 1000) % 100
	y := n % 1000
	return VarcodeF(f, x, y), nil
}

func trimField(line string, offset, width int) string {
	if offset+width > len(line) {
		width = len(line) - offset
	}
	return strings.TrimRight(line[offset:offset+width], " \t\x00")
}

func normalizeUnit(unit string) string {
	upper := strings.ToUpper(unit)
	switch {
	case strings.HasPrefix(upper, "CODE TABLE") || strings.HasPrefix(upper, "CODETABLE"):
		return "CODE TABLE"
	case strings.HasPrefix(upper, "FLAG TABLE") || strings.HasPrefix(upper, "FLAGTABLE"):
		return "FLAG TABLE"
	default:
		return unit
	}
}

// parseSignedNumber reads a width-byte numeric field at offset, tolerating a
// minus sign followed by spaces before the digits (an artifact of some
// fixed-width table generators).
func parseSignedNumber(line string, offset, width int) (int, error) {
	if offset+width > len(line) {
		width = len(line) - offset
	}
	field := strings.TrimSpace(line[offset : offset+width])
	if field == "" {
		return 0, nil
	}
	neg := false
	if field[0] == '-' {
		neg = true
		field = strings.TrimLeft(field[1:], " \t")
	}
	if field == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}
