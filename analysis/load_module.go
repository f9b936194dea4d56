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

// Package analysis assembles the semantic-difference engine: it loads the
// two IR modules, runs the pre-comparison passes, builds the debug-info
// indexes and drives the module comparator over the configured symbol
// pairs.
package analysis

import (
	"fmt"

	"github.com/irtools/semdiff/analysis/comparator"
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
	"github.com/irtools/semdiff/analysis/passes"
	"github.com/irtools/semdiff/analysis/patterns"
)

// LoadedModulePair holds the two borrowed modules and their indexes. The
// modules are mutated during comparison; the host must not observe them
// until comparison returns.
type LoadedModulePair struct {
	First  *ir.Module
	Second *ir.Module

	DIFirst  *DebugInfoIndex
	DISecond *DebugInfoIndex
}

// LoadModulePair parses both input modules and prepares them for
// comparison: the unused-return-value rewriting runs once per module, both
// sides are simplified, and the debug-info indexes are built.
func LoadModulePair(firstPath, secondPath string, logger *config.LogGroup) (*LoadedModulePair, error) {
	first, err := ir.ParseFile(firstPath)
	if err != nil {
		return nil, fmt.Errorf("could not load first module: %w", err)
	}
	second, err := ir.ParseFile(secondPath)
	if err != nil {
		return nil, fmt.Errorf("could not load second module: %w", err)
	}
	pair := &LoadedModulePair{First: first, Second: second}
	pair.Prepare(logger)
	return pair, nil
}

// Prepare runs the pre-comparison pipeline on both modules and builds the
// indexes. It is idempotent only up to simplification; hosts call it once.
func (p *LoadedModulePair) Prepare(logger *config.LogGroup) {
	passes.RemoveUnusedReturnValues(p.First, p.Second, logger)
	passes.RemoveUnusedReturnValues(p.Second, p.First, logger)
	simplifier := passes.NewSimplifier(logger)
	for _, m := range []*ir.Module{p.First, p.Second} {
		for _, f := range m.Funcs {
			simplifier.Simplify(f)
		}
	}
	p.DIFirst = NewDebugInfoIndex(p.First)
	p.DISecond = NewDebugInfoIndex(p.Second)
}

// NewComparator assembles a module comparator over the loaded pair with the
// default pass collaborators and an optional pattern set.
func (p *LoadedModulePair) NewComparator(cfg *config.Config, patternSet *patterns.Set,
	logger *config.LogGroup) *comparator.ModuleComparator {
	var matcher comparator.PatternMatcher
	if !patternSet.Empty() {
		matcher = patterns.NewMatcher(patternSet, logger)
	}
	return comparator.NewModuleComparator(p.First, p.Second, cfg.Options,
		p.DIFirst, p.DISecond, matcher,
		passes.NewSimplifier(logger), passes.NewInliner(logger), logger)
}

// Run compares every configured symbol pair and aggregates the overall
// result. Unresolved seed symbols are reported as errors without attempting
// the comparison.
func Run(cfg *config.Config, logger *config.LogGroup) (*comparator.OverallResult, error) {
	pair, err := LoadModulePair(cfg.FirstModule, cfg.SecondModule, logger)
	if err != nil {
		return nil, err
	}
	var patternSet *patterns.Set
	if cfg.PatternConfig != "" {
		patternSet, err = patterns.Load(cfg.PatternConfig, logger)
		if err != nil {
			return nil, err
		}
	}
	mc := pair.NewComparator(cfg, patternSet, logger)

	overall := &comparator.OverallResult{}
	for _, seed := range cfg.Compare {
		res, err := mc.CompareSymbols(seed.First, seed.Second)
		if err != nil {
			return nil, err
		}
		overall.FunctionResults = append(overall.FunctionResults, res)
	}
	overall.MissingDefs = mc.MissingDefs
	return overall, nil
}
