// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// NewestVersion is the sentinel master-table version (0xFF) meaning
// "accept any version, prefer the newest".
const NewestVersion = 0xff

// BufrTableID identifies one distinct instance of BUFR tables by
// originating centre/subcentre and master/local table version.
type BufrTableID struct {
	OriginatingCentre              uint16
	OriginatingSubcentre           uint16
	MasterTableNumber               uint8
	MasterTableVersionNumber        uint8
	MasterTableVersionNumberLocal   uint8
}

// CrexTableID identifies one distinct instance of CREX tables; it extends
// BufrTableID with the CREX edition and the version of the BUFR master
// table that CREX table was generated against.
type CrexTableID struct {
	EditionNumber                   uint8
	OriginatingCentre                uint16
	OriginatingSubcentre              uint16
	MasterTableNumber                 uint8
	MasterTableVersionNumber           uint8
	MasterTableVersionNumberBufr       uint8
	MasterTableVersionNumberLocal       uint8
}

// tableCandidate is one table file discovered on the search path, with its
// identification parsed from its basename.
type tableCandidate struct {
	path   string
	isCrex bool
	isD    bool
	bufr   BufrTableID
	crex   CrexTableID
}

// Tabledir resolves a table identification request to the closest
// acceptable table file on a configured search path.
type Tabledir struct {
	dirs []string

	mu         sync.RWMutex
	candidates []tableCandidate
	scanned    bool
	group      singleflight.Group
}

var (
	defaultTabledir     *Tabledir
	defaultTabledirOnce sync.Once
)

// DefaultTabledir returns the process-wide Tabledir singleton, built once at
// first use from the environment-variable search path: first
// WREPORT_EXTRA_TABLES, then WREPORT_TABLES, then the compiled-in default
// directory. Once built it is treated as immutable; callers that need a
// different search path should construct their own Tabledir with NewTabledir.
func DefaultTabledir() *Tabledir {
	defaultTabledirOnce.Do(func() {
		defaultTabledir = NewTabledir(searchPathFromEnv())
	})
	return defaultTabledir
}

func searchPathFromEnv() []string {
	var dirs []string
	if extra := os.Getenv("WREPORT_EXTRA_TABLES"); extra != "" {
		dirs = append(dirs, filepath.SplitList(extra)...)
	}
	if base := os.Getenv("WREPORT_TABLES"); base != "" {
		dirs = append(dirs, filepath.SplitList(base)...)
	}
	dirs = append(dirs, CompiledInTableDir())
	return dirs
}

// CompiledInTableDir is the fallback directory, always scanned last, after
// any WREPORT_EXTRA_TABLES and WREPORT_TABLES directories.
func CompiledInTableDir() string {
	return "/usr/share/wreport"
}

// NewTabledir builds a resolver over an explicit, ordered list of
// directories (highest priority first).
func NewTabledir(dirs []string) *Tabledir {
	return &Tabledir{dirs: dirs}
}

func (d *Tabledir) ensureScanned() error {
	d.mu.RLock()
	if d.scanned {
		d.mu.RUnlock()
		return nil
	}
	d.mu.RUnlock()

	_, err, _ := d.group.Do("scan", func() (interface{}, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.scanned {
			return nil, nil
		}
		var found []tableCandidate
		for _, dir := range d.dirs {
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue // missing/unreadable search-path entries are skipped, not fatal
			}
			for _, ent := range entries {
				if ent.IsDir() {
					continue
				}
				if c, ok := parseTableBasename(filepath.Join(dir, ent.Name())); ok {
					found = append(found, c)
				}
			}
		}
		d.candidates = found
		d.scanned = true
		return nil, nil
	})
	return err
}

// parseTableBasename parses the basename pattern
// B<centre:3><subcentre:4><master-version:3><local-version:3>.txt (BUFR) or
// the CREX analogue with a leading edition digit.
func parseTableBasename(path string) (tableCandidate, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".txt" {
		return tableCandidate{}, false
	}
	stem := base[:len(base)-len(ext)]
	if len(stem) == 0 {
		return tableCandidate{}, false
	}

	switch stem[0] {
	case 'B':
		var centre, subcentre, mver, lver int
		if _, err := fmt.Sscanf(stem[1:], "%3d%4d%3d%3d", &centre, &subcentre, &mver, &lver); err != nil {
			return tableCandidate{}, false
		}
		return tableCandidate{
			path: path,
			bufr: BufrTableID{
				OriginatingCentre:            uint16(centre),
				OriginatingSubcentre:         uint16(subcentre),
				MasterTableVersionNumber:     uint8(mver),
				MasterTableVersionNumberLocal: uint8(lver),
			},
		}, true
	case 'D':
		// D tables share BUFR identification; isD distinguishes them from
		// B tables so ResolveBufr and ResolveD each see only their kind.
		var centre, subcentre, mver, lver int
		if _, err := fmt.Sscanf(stem[1:], "%3d%4d%3d%3d", &centre, &subcentre, &mver, &lver); err != nil {
			return tableCandidate{}, false
		}
		return tableCandidate{
			path: path,
			isD:  true,
			bufr: BufrTableID{
				OriginatingCentre:            uint16(centre),
				OriginatingSubcentre:         uint16(subcentre),
				MasterTableVersionNumber:     uint8(mver),
				MasterTableVersionNumberLocal: uint8(lver),
			},
		}, true
	case 'C':
		var edition, centre, subcentre, mver, mverBufr, lver int
		if _, err := fmt.Sscanf(stem[1:], "%1d%3d%4d%3d%3d%3d", &edition, &centre, &subcentre, &mver, &mverBufr, &lver); err != nil {
			return tableCandidate{}, false
		}
		return tableCandidate{
			path:   path,
			isCrex: true,
			crex: CrexTableID{
				EditionNumber:                uint8(edition),
				OriginatingCentre:            uint16(centre),
				OriginatingSubcentre:         uint16(subcentre),
				MasterTableVersionNumber:     uint8(mver),
				MasterTableVersionNumberBufr: uint8(mverBufr),
				MasterTableVersionNumberLocal: uint8(lver),
			},
		}, true
	default:
		return tableCandidate{}, false
	}
}

// ResolveBufr returns the path to the closest acceptable BUFR table file for
// req, ranking candidates by acceptability and closeness.
func (d *Tabledir) ResolveBufr(req BufrTableID) (string, error) {
	if err := d.ensureScanned(); err != nil {
		return "", err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best *tableCandidate
	for i := range d.candidates {
		c := &d.candidates[i]
		if c.isCrex || c.isD {
			continue
		}
		if !bufrAcceptable(req, c.bufr) {
			continue
		}
		if best == nil || rankBufrBufr(req, c.bufr, best.bufr) < 0 {
			best = c
		}
	}
	if best == nil {
		return "", newErr(NotFound, "no acceptable BUFR table found for centre=%d subcentre=%d master=%d version=%d local=%d",
			req.OriginatingCentre, req.OriginatingSubcentre, req.MasterTableNumber, req.MasterTableVersionNumber, req.MasterTableVersionNumberLocal)
	}
	return best.path, nil
}

// ResolveD returns the path to the closest acceptable D-table file for req,
// using the same acceptability and ranking rules as ResolveBufr: D-tables
// share the BUFR naming pattern with a leading D.
func (d *Tabledir) ResolveD(req BufrTableID) (string, error) {
	if err := d.ensureScanned(); err != nil {
		return "", err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best *tableCandidate
	for i := range d.candidates {
		c := &d.candidates[i]
		if !c.isD {
			continue
		}
		if !bufrAcceptable(req, c.bufr) {
			continue
		}
		if best == nil || rankBufrBufr(req, c.bufr, best.bufr) < 0 {
			best = c
		}
	}
	if best == nil {
		return "", newErr(NotFound, "no acceptable D table found for centre=%d subcentre=%d master=%d version=%d local=%d",
			req.OriginatingCentre, req.OriginatingSubcentre, req.MasterTableNumber, req.MasterTableVersionNumber, req.MasterTableVersionNumberLocal)
	}
	return best.path, nil
}

// ResolveCrex returns the path to the closest acceptable CREX table file for
// req.
func (d *Tabledir) ResolveCrex(req CrexTableID) (string, error) {
	if err := d.ensureScanned(); err != nil {
		return "", err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best *tableCandidate
	for i := range d.candidates {
		c := &d.candidates[i]
		if !c.isCrex {
			continue
		}
		if !crexAcceptableCrex(req, c.crex) {
			continue
		}
		if best == nil || rankCrexCrex(req, c.crex, best.crex) < 0 {
			best = c
		}
	}
	if best == nil {
		return "", newErr(NotFound, "no acceptable CREX table found for centre=%d master=%d version=%d",
			req.OriginatingCentre, req.MasterTableNumber, req.MasterTableVersionNumber)
	}
	return best.path, nil
}

func versionAcceptable(requested, candidate uint8) bool {
	if requested == NewestVersion {
		return true
	}
	return candidate >= requested
}

func bufrAcceptable(req, cand BufrTableID) bool {
	if req.MasterTableNumber != cand.MasterTableNumber {
		return false
	}
	return versionAcceptable(req.MasterTableVersionNumber, cand.MasterTableVersionNumber)
}

func crexAcceptableCrex(req, cand CrexTableID) bool {
	if req.MasterTableNumber != cand.MasterTableNumber {
		return false
	}
	if !versionAcceptable(req.MasterTableVersionNumber, cand.MasterTableVersionNumber) {
		return false
	}
	return versionAcceptable(req.MasterTableVersionNumberBufr, cand.MasterTableVersionNumberBufr)
}

// centreScore ranks a candidate's centre match: exact > 0 (WMO standard) >
// 0xFFFF (wildcard) > anything else.
func centreScore(requested, candidate uint16) int {
	switch {
	case candidate == requested:
		return 3
	case candidate == 0:
		return 2
	case candidate == 0xFFFF:
		return 1
	default:
		return 0
	}
}

// versionRank returns a negative number if a should be preferred over b for
// the "lowest version that still satisfies >=" rule (or "highest version"
// when requested is NEWEST), 0 on tie.
func versionRank(requested, a, b uint8) int {
	if requested == NewestVersion {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// localVersionRank prefers the candidate version closest to, but not below,
// requested; if both are below, the larger (closer to request) wins.
func localVersionRank(requested, a, b uint8) int {
	distance := func(v uint8) (int, bool) {
		if v >= requested {
			return int(v) - int(requested), true // at-or-above: smaller distance wins
		}
		return int(requested) - int(v), false // below: smaller distance (i.e. larger v) wins
	}
	da, aboveA := distance(a)
	db, aboveB := distance(b)
	if aboveA != aboveB {
		if aboveA {
			return -1
		}
		return 1
	}
	switch {
	case da < db:
		return -1
	case da > db:
		return 1
	default:
		return 0
	}
}

// rankBufrBufr compares two acceptable BUFR candidates for the same
// request; negative means a should be preferred over b.
func rankBufrBufr(req, a, b BufrTableID) int {
	if r := versionRank(req.MasterTableVersionNumber, a.MasterTableVersionNumber, b.MasterTableVersionNumber); r != 0 {
		return r
	}

	sa := centreScore(req.OriginatingCentre, a.OriginatingCentre)
	sb := centreScore(req.OriginatingCentre, b.OriginatingCentre)
	if sa != 3 && sb != 3 {
		return 0 // neither is an exact match: tie regardless of later rules
	}
	if sa != sb {
		if sa > sb {
			return -1
		}
		return 1
	}

	if r := localVersionRank(req.MasterTableVersionNumberLocal, a.MasterTableVersionNumberLocal, b.MasterTableVersionNumberLocal); r != 0 {
		return r
	}

	if a.OriginatingSubcentre == req.OriginatingSubcentre && b.OriginatingSubcentre != req.OriginatingSubcentre {
		return -1
	}
	if b.OriginatingSubcentre == req.OriginatingSubcentre && a.OriginatingSubcentre != req.OriginatingSubcentre {
		return 1
	}
	return 0
}

func rankCrexCrex(req, a, b CrexTableID) int {
	if r := versionRank(req.MasterTableVersionNumber, a.MasterTableVersionNumber, b.MasterTableVersionNumber); r != 0 {
		return r
	}
	if r := versionRank(req.MasterTableVersionNumberBufr, a.MasterTableVersionNumberBufr, b.MasterTableVersionNumberBufr); r != 0 {
		return r
	}

	sa := centreScore(req.OriginatingCentre, a.OriginatingCentre)
	sb := centreScore(req.OriginatingCentre, b.OriginatingCentre)
	if sa != 3 && sb != 3 {
		return 0
	}
	if sa != sb {
		if sa > sb {
			return -1
		}
		return 1
	}

	if r := localVersionRank(req.MasterTableVersionNumberLocal, a.MasterTableVersionNumberLocal, b.MasterTableVersionNumberLocal); r != 0 {
		return r
	}

	if a.OriginatingSubcentre == req.OriginatingSubcentre && b.OriginatingSubcentre != req.OriginatingSubcentre {
		return -1
	}
	if b.OriginatingSubcentre == req.OriginatingSubcentre && a.OriginatingSubcentre != req.OriginatingSubcentre {
		return 1
	}
	return 0
}

// sortCandidatesForTest is a deterministic ordering helper used by tests
// that need to enumerate discovered candidates reproducibly.
func sortCandidatesForTest(c []tableCandidate) {
	sort.Slice(c, func(i, j int) bool { return c[i].path < c[j].path })
}
