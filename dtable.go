// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// DTable is an ordered registry mapping an F=3 sequence Varcode to the
// ordered slice of Varcodes it expands to. Unlike Vartable, a D sequence's
// expansion has no alteration mechanism: sequences are looked up once and
// spliced into the interpreter's opcode stream verbatim.
type DTable struct {
	Pathname string
	codes    []Varcode
	expand   [][]Varcode
}

// Query returns the expansion for a D sequence code, or a NotFound error.
func (t *DTable) Query(code Varcode) ([]Varcode, error) {
	i, ok := slices.BinarySearchFunc(t.codes, code, func(c, target Varcode) int {
		switch {
		case c < target:
			return -1
		case c > target:
			return 1
		default:
			return 0
		}
	})
	if !ok {
		return nil, newErrf(NotFound, t.Pathname, -1, -1, "sequence %s not found in table %s", code, t.Pathname)
	}
	return t.expand[i], nil
}

// Contains reports whether code has a registered expansion.
func (t *DTable) Contains(code Varcode) bool {
	_, err := t.Query(code)
	return err == nil
}

// LoadDTable parses a D-table text file at path. Each sequence is one
// non-empty header line "D<xx><yyy> <count>" (the sequence's own Varcode in
// its canonical 6-character form, whitespace, then its component count),
// followed by exactly <count> lines each holding one component Varcode in
// canonical form. Sequences must be listed in ascending order by code, as
// required for the same reasons as the B table: lookups use binary search.
func LoadDTable(path string) (*DTable, error) {
	data, closeFn, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	t := &DTable{Pathname: path}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	lineNo := 0
	var lastCode Varcode
	haveLast := false
	for scanner.Scan() {
		lineNo++
		header := strings.TrimSpace(scanner.Text())
		if header == "" {
			continue
		}
		fields := strings.Fields(header)
		if len(fields) != 2 {
			return nil, newErrf(Parse, path, -1, lineNo, "malformed D-table header %q", header)
		}
		code, err := ParseVarcode(fields[0])
		if err != nil {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid sequence code: %v", err)
		}
		if code.F() != 3 {
			return nil, newErrf(Parse, path, -1, lineNo, "expected an F=3 sequence code, got %s", code)
		}
		if haveLast && code <= lastCode {
			return nil, newErrf(Parse, path, -1, lineNo, "input file is not sorted")
		}
		lastCode, haveLast = code, true

		count, err := strconv.Atoi(fields[1])
		if err != nil || count < 0 {
			return nil, newErrf(Parse, path, -1, lineNo, "invalid component count %q", fields[1])
		}

		components := make([]Varcode, 0, count)
		for i := 0; i < count; i++ {
			if !scanner.Scan() {
				return nil, newErrf(Parse, path, -1, lineNo, "sequence %s: expected %d components, file ended early", code, count)
			}
			lineNo++
			comp, err := ParseVarcode(strings.TrimSpace(scanner.Text()))
			if err != nil {
				return nil, newErrf(Parse, path, -1, lineNo, "invalid component code: %v", err)
			}
			components = append(components, comp)
		}

		t.codes = append(t.codes, code)
		t.expand = append(t.expand, components)
	}
	if err := scanner.Err(); err != nil {
		return nil, wrap(System, err, "reading D table %s", path)
	}
	return t, nil
}
