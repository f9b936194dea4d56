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

package patterns

import (
	"github.com/irtools/semdiff/analysis/comparator"
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
)

// Matcher matches the loaded pattern set against diverging module
// instruction pairs on behalf of the differential comparator.
type Matcher struct {
	set *Set
	log *config.LogGroup
}

// NewMatcher binds a pattern set to a logger. The matcher is stateless
// between calls and may be shared by the comparators of one instance.
func NewMatcher(set *Set, logger *config.LogGroup) *Matcher {
	return &Matcher{set: set, log: logger}
}

// TryMatch attempts every pattern whose start shape is compatible with the
// diverging pair: the old side against the left instruction, the new side
// against the right one. On success, the match's bindings for the final
// mapping are installed into the walk correspondence and the consumed
// module instructions are returned.
func (pm *Matcher) TryMatch(corr *comparator.Correspondence,
	il, jr *ir.Instr) ([]*ir.Instr, []*ir.Instr, bool) {
	if pm.set.Empty() {
		return nil, nil, false
	}
	for _, pat := range pm.set.Patterns {
		if pat.OldStart.Op != il.Op || pat.NewStart.Op != jr.Op {
			continue
		}
		consumedL, consumedR, ok := pm.tryPattern(corr, pat, il, jr)
		if ok {
			pm.log.Debugf("pattern %s suppressed a difference in %s", pat.Name, il.Parent.Parent.Name)
			return consumedL, consumedR, true
		}
	}
	return nil, nil, false
}

func (pm *Matcher) tryPattern(corr *comparator.Correspondence, pat *Pattern,
	il, jr *ir.Instr) ([]*ir.Instr, []*ir.Instr, bool) {
	oldSide := comparator.NewPatternSideComparator(il.Parent.Parent, pat.OldFn, pm.log)
	if !oldSide.CompareFrom(il, pat.OldStart) {
		return nil, nil, false
	}
	newSide := comparator.NewPatternSideComparator(jr.Parent.Parent, pat.NewFn, pm.log)
	if !newSide.CompareFrom(jr, pat.NewStart) {
		return nil, nil, false
	}

	// The final mapping constrains which new-side module values correspond
	// to which old-side module values; a conflict with the established
	// correspondence rejects the match.
	for _, mp := range pat.FinalMapping {
		newPatIn := InstrByIndex(pat.NewFn, mp.New)
		oldPatIn := InstrByIndex(pat.OldFn, mp.Old)
		if newPatIn == nil || oldPatIn == nil {
			return nil, nil, false
		}
		modR, okR := newSide.ModuleInstrFor(newPatIn)
		modL, okL := oldSide.ModuleInstrFor(oldPatIn)
		if !okR || !okL {
			return nil, nil, false
		}
		if !corr.Relate(modL, modR) {
			return nil, nil, false
		}
	}
	return oldSide.Consumed(), newSide.Consumed(), true
}
