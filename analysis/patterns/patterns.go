// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package patterns loads the catalogue of difference patterns -- named
// pairs of IR fragments declaring that a given difference is
// semantics-preserving -- and matches them against live module instructions
// to suppress known-equivalent diffs.
package patterns

import (
	"fmt"
	"os"
	"strings"

	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
	"gopkg.in/yaml.v3"
)

const (
	// NewPrefix and OldPrefix name the two sides of a pattern in its
	// module.
	NewPrefix = "new_"
	OldPrefix = "old_"
	// MappingFunctionName is the reserved name of the function encoding
	// the final new/old value mapping constraint.
	MappingFunctionName = "mapping"
)

// Configuration is the pattern-catalogue configuration file.
type Configuration struct {
	// OnParseFailure selects the behavior on a malformed pattern module:
	// "warn" (default) or "abort".
	OnParseFailure string `yaml:"on-parse-failure"`
	// Patterns lists the IR-module file paths of the catalogue.
	Patterns []string `yaml:"patterns"`
}

// MappingPair constrains one new-side value to correspond to one old-side
// value at the end of a match. Values are named by instruction stream
// index within the pattern side.
type MappingPair struct {
	New int
	Old int
}

// Pattern is one difference pattern: a named pair of functions drawn from a
// pattern module, with per-instruction markers and the final mapping.
type Pattern struct {
	Name string
	// NewFn matches the second (new) module, OldFn the first (old) one.
	NewFn *ir.Func
	OldFn *ir.Func
	// NewStart and OldStart are the pattern-start instructions: the first
	// differing instruction on each side.
	NewStart *ir.Instr
	OldStart *ir.Instr
	// FinalMapping lists the value correspondence constraints checked when
	// both side walks reach the pattern end.
	FinalMapping []MappingPair
}

// Set is the process-wide pattern collection: loaded once at startup,
// immutable during comparison, and safe to share across comparator
// instances.
type Set struct {
	Patterns []*Pattern
}

// Empty returns true when no patterns are loaded.
func (s *Set) Empty() bool { return s == nil || len(s.Patterns) == 0 }

// Load reads the catalogue configuration and parses every pattern module.
// Malformed pattern modules are skipped or abort the load, per the
// on-parse-failure setting.
func Load(configPath string, logger *config.LogGroup) (*Set, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read pattern config: %w", err)
	}
	var cfg Configuration
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal pattern config: %w", err)
	}
	abort := cfg.OnParseFailure == "abort"
	if cfg.OnParseFailure != "" && cfg.OnParseFailure != "warn" && cfg.OnParseFailure != "abort" {
		return nil, fmt.Errorf("invalid on-parse-failure setting %q", cfg.OnParseFailure)
	}

	set := &Set{}
	for _, path := range cfg.Patterns {
		pat, err := loadPattern(path)
		if err != nil {
			if abort {
				return nil, fmt.Errorf("could not load pattern %s: %w", path, err)
			}
			logger.Warnf("skipping pattern %s: %v", path, err)
			continue
		}
		logger.Debugf("loaded difference pattern %s", pat.Name)
		set.Patterns = append(set.Patterns, pat)
	}
	return set, nil
}

// loadPattern parses one pattern module and binds its sides, start
// positions and final mapping.
func loadPattern(path string) (*Pattern, error) {
	m, err := ir.ParseFile(path)
	if err != nil {
		return nil, err
	}
	pat := &Pattern{}
	for _, f := range m.Funcs {
		switch {
		case strings.HasPrefix(f.Name, NewPrefix):
			if pat.NewFn != nil {
				return nil, fmt.Errorf("multiple new-side functions")
			}
			pat.NewFn = f
			pat.Name = strings.TrimPrefix(f.Name, NewPrefix)
		case strings.HasPrefix(f.Name, OldPrefix):
			if pat.OldFn != nil {
				return nil, fmt.Errorf("multiple old-side functions")
			}
			pat.OldFn = f
		}
	}
	if pat.NewFn == nil || pat.OldFn == nil {
		return nil, fmt.Errorf("pattern must define both %s<name> and %s<name>", NewPrefix, OldPrefix)
	}
	if pat.Name != strings.TrimPrefix(pat.OldFn.Name, OldPrefix) {
		return nil, fmt.Errorf("pattern sides %s and %s do not share a name",
			pat.NewFn.Name, pat.OldFn.Name)
	}
	if pat.NewFn.IsDeclaration() || pat.OldFn.IsDeclaration() {
		return nil, fmt.Errorf("pattern sides must be definitions")
	}

	if pat.NewStart, err = findStart(pat.NewFn); err != nil {
		return nil, err
	}
	if pat.OldStart, err = findStart(pat.OldFn); err != nil {
		return nil, err
	}

	if mapping := m.Fn(MappingFunctionName); mapping != nil {
		pat.FinalMapping, err = parseMapping(mapping)
		if err != nil {
			return nil, err
		}
	}
	return pat, nil
}

// findStart locates the single pattern-start instruction of a side.
func findStart(f *ir.Func) (*ir.Instr, error) {
	var start *ir.Instr
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			pm := in.PatternMeta()
			if pm == nil || !pm.Start {
				continue
			}
			if start != nil {
				return nil, fmt.Errorf("%s has more than one pattern-start", f.Name)
			}
			start = in
		}
	}
	if start == nil {
		return nil, fmt.Errorf("%s has no pattern-start", f.Name)
	}
	return start, nil
}

// parseMapping decodes the final mapping function: each call in its body
// carries a pair of integer constants naming the constrained new-side and
// old-side instructions by stream index.
func parseMapping(f *ir.Func) ([]MappingPair, error) {
	var pairs []MappingPair
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Op != ir.OpCall {
				continue
			}
			if len(in.Args) != 2 {
				return nil, fmt.Errorf("mapping call must carry two values")
			}
			newIdx, ok1 := constIndex(in.Args[0])
			oldIdx, ok2 := constIndex(in.Args[1])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("mapping call operands must be integer constants")
			}
			pairs = append(pairs, MappingPair{New: newIdx, Old: oldIdx})
		}
	}
	return pairs, nil
}

func constIndex(v ir.Value) (int, bool) {
	c, ok := v.(*ir.Const)
	if !ok || c.Kind != ir.ConstInt || c.Int < 0 {
		return 0, false
	}
	return int(c.Int), true
}

// InstrByIndex returns the n-th instruction of a function in stream order.
func InstrByIndex(f *ir.Func, n int) *ir.Instr {
	for _, b := range f.Blocks {
		if n < len(b.Instrs) {
			return b.Instrs[n]
		}
		n -= len(b.Instrs)
	}
	return nil
}
