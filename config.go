// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"os"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/wxreport/bufr/internal/wlog"
)

// Options are the per-call knobs accepted by Decode/Encode. The zero value
// (or a nil *Options) uses process defaults.
type Options struct {
	// Tabledir overrides the process-wide table search path for this call.
	// If nil, DefaultTabledir() is used, unless GlobalOptions.ExtraSearchDirs
	// is set, in which case a Tabledir over those directories followed by the
	// default search path is built for the call.
	Tabledir *Tabledir

	// Logger receives diagnostic (non-fatal) events; the only events logged
	// are skipped C04 associated-field significances. If nil, a warn-level
	// stderr logger is used.
	Logger wlog.Logger
}

func (o *Options) helper() *wlog.Helper {
	if o == nil {
		return wlog.NewHelper(nil)
	}
	return wlog.NewHelper(o.Logger)
}

func (o *Options) tabledir() *Tabledir {
	if o != nil && o.Tabledir != nil {
		return o.Tabledir
	}
	if extra := CurrentGlobalOptions().ExtraSearchDirs; len(extra) > 0 {
		dirs := append(append([]string{}, extra...), searchPathFromEnv()...)
		return NewTabledir(dirs)
	}
	return DefaultTabledir()
}

// GlobalOptions are process-scoped overrides, set for the duration of a
// call and restored on all exit paths.
type GlobalOptions struct {
	// ForceMasterTableVersion, when non-zero, overrides any identification
	// decoded from a bulletin's section 1 with this BUFR master-table
	// version before resolving tables. Intended for recovering bulletins
	// encoded against a master table version no longer considered current.
	ForceMasterTableVersion uint8

	// ExtraSearchDirs is prepended to the table search path used by any call
	// that does not supply its own Options.Tabledir, ahead of
	// WREPORT_EXTRA_TABLES, WREPORT_TABLES and the compiled-in default
	// directory.
	ExtraSearchDirs []string
}

var (
	globalOptionsMu sync.RWMutex
	globalOptions   GlobalOptions
)

// CurrentGlobalOptions returns a copy of the currently active scoped
// overrides.
func CurrentGlobalOptions() GlobalOptions {
	globalOptionsMu.RLock()
	defer globalOptionsMu.RUnlock()
	return globalOptions
}

// PushScoped installs opts as the active GlobalOptions and returns a
// restore function that must be called (typically via defer) to pop it,
// guaranteeing restoration on every exit path including panics.
func PushScoped(opts GlobalOptions) (restore func()) {
	globalOptionsMu.Lock()
	previous := globalOptions
	globalOptions = opts
	globalOptionsMu.Unlock()

	return func() {
		globalOptionsMu.Lock()
		globalOptions = previous
		globalOptionsMu.Unlock()
	}
}

// fileConfig is the optional on-disk shape read by LoadGlobalOptionsFile,
// serialized as YAML (sigs.k8s.io/yaml also accepts JSON, since JSON is a
// YAML subset).
type fileConfig struct {
	ForceMasterTableVersion uint8    `json:"forceMasterTableVersion,omitempty"`
	ExtraSearchDirs         []string `json:"extraSearchDirs,omitempty"`
}

// LoadGlobalOptionsFile reads a YAML (or JSON) configuration file describing
// scoped overrides and returns the GlobalOptions it represents. It does not
// install them; pair with PushScoped.
func LoadGlobalOptionsFile(path string) (GlobalOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GlobalOptions{}, wrap(System, err, "reading config file %s", path)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return GlobalOptions{}, wrap(Parse, err, "parsing config file %s", path)
	}
	return GlobalOptions{
		ForceMasterTableVersion: fc.ForceMasterTableVersion,
		ExtraSearchDirs:         fc.ExtraSearchDirs,
	}, nil
}
