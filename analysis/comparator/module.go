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

package comparator

import (
	"fmt"

	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
	"github.com/irtools/semdiff/analysis/passes"
)

// Simplifier is the external simplification collaborator. Simplify must not
// alter the function signature and must not change observable behavior.
type Simplifier interface {
	Simplify(f *ir.Func)
}

// Inliner is the external inlining collaborator. Inline is best-effort and
// returns whether the call was replaced with the callee's body. Intrinsics
// and declarations must not be passed in.
type Inliner interface {
	Inline(call *ir.Instr) bool
}

// ModuleComparator drives the per-pair comparison of two modules: the
// declaration fast path, the differential walk, the inlining feedback loop
// and the aggregation of differences. It borrows both modules and mutates
// them through the inliner and simplifier.
type ModuleComparator struct {
	First  *ir.Module
	Second *ir.Module

	Opts     config.Options
	DIFirst  DebugInfo
	DISecond DebugInfo
	Patterns PatternMatcher

	Simplifier Simplifier
	Inliner    Inliner

	// ComparedFuns caches the verdict of every pair ever compared; an
	// entry with kind Unknown marks a comparison in progress.
	ComparedFuns map[FunPair]*Result

	// MissingDefs records callees that existed only as declarations when
	// inlining was attempted.
	MissingDefs []MissingDef

	// CoveredFuns names the functions whose bodies were folded into a
	// caller by the inlining loop.
	CoveredFuns map[string]bool

	log *config.LogGroup
}

// NewModuleComparator assembles a comparator instance for one module pair.
// The debug-info indexes and the pattern matcher may be nil.
func NewModuleComparator(first, second *ir.Module, opts config.Options,
	diFirst, diSecond DebugInfo, patterns PatternMatcher,
	simplifier Simplifier, inliner Inliner,
	logger *config.LogGroup) *ModuleComparator {
	return &ModuleComparator{
		First:        first,
		Second:       second,
		Opts:         opts,
		DIFirst:      diFirst,
		DISecond:     diSecond,
		Patterns:     patterns,
		Simplifier:   simplifier,
		Inliner:      inliner,
		ComparedFuns: make(map[FunPair]*Result),
		CoveredFuns:  make(map[string]bool),
		log:          logger,
	}
}

// CompareSymbols resolves a seed symbol pair and compares the functions.
// Unresolved symbols are input errors; the comparison is not attempted.
func (mc *ModuleComparator) CompareSymbols(first, second string) (*Result, error) {
	if second == "" {
		second = first
	}
	fl := mc.First.Fn(first)
	if fl == nil {
		return nil, fmt.Errorf("could not resolve symbol %s in module %s", first, mc.First.Name)
	}
	fr := mc.Second.Fn(second)
	if fr == nil {
		return nil, fmt.Errorf("could not resolve symbol %s in module %s", second, mc.Second.Name)
	}
	return mc.CompareFunctions(fl, fr), nil
}

// CompareFunctions compares one function pair, returning the cached result
// when the pair was compared before. Re-entry on a pair whose walk is in
// progress returns its pending result, which callers treat as equal for
// the purpose of the enclosing walk.
func (mc *ModuleComparator) CompareFunctions(fl, fr *ir.Func) *Result {
	pair := FunPair{First: fl, Second: fr}
	if r, ok := mc.ComparedFuns[pair]; ok {
		return r
	}
	mc.log.Debugf("comparing %s and %s", fl.Name, fr.Name)
	r := NewResult(fl, fr)
	// Insert the pending entry first: it breaks recursive cycles on
	// mutually recursive calls.
	mc.ComparedFuns[pair] = r

	if fl.IsDeclaration() || fr.IsDeclaration() {
		mc.compareDeclarations(fl, fr, r)
		return r
	}

	out := mc.runComparison(fl, fr, r)
	if out.Res == 0 {
		mc.log.Debugf("functions %s and %s are equal", fl.Name, fr.Name)
		r.Kind = Equal
		return r
	}
	r.Kind = NotEqual
	mc.inliningLoop(fl, fr, r, out)
	return r
}

// compareDeclarations is the declaration fast path: matching base names of
// two declarations are taken as equal; a single declaration against a
// definition records a missing definition and leaves the verdict unknown.
func (mc *ModuleComparator) compareDeclarations(fl, fr *ir.Func, r *Result) {
	baseL, baseR := fl.BaseName(), fr.BaseName()
	if mc.Opts.ControlFlowOnly {
		// Under control-flow-only a single declaration on either side with
		// a matching base name suffices.
		if baseL == baseR {
			r.Kind = Equal
		} else {
			r.Kind = NotEqual
		}
		return
	}
	switch {
	case baseL != baseR:
		r.Kind = NotEqual
	case fl.IsDeclaration() && fr.IsDeclaration():
		mc.log.Debugf("declarations %s and %s with matching names, assuming equal", fl.Name, fr.Name)
		r.Kind = Equal
	case fl.IsDeclaration():
		mc.MissingDefs = append(mc.MissingDefs, MissingDef{First: fl})
	default:
		mc.MissingDefs = append(mc.MissingDefs, MissingDef{Second: fr})
	}
}

// runComparison performs one differential walk with a fresh correspondence.
func (mc *ModuleComparator) runComparison(fl, fr *ir.Func, r *Result) Outcome {
	dfc := NewDifferentialFunctionComparator(fl, fr, mc.Opts,
		mc.DIFirst, mc.DISecond, mc.Patterns, r, NewCorrespondence(), mc.log)
	dfc.SetCalleeComparison(mc.compareCallees)
	return dfc.CompareDiff()
}

// compareCallees compares a callee pair mid-walk. A pending pair is treated
// as equal for the purpose of the enclosing walk: the optimistic assumption
// contributes no structural equality to the bijection, so discarding it
// later needs no further action.
func (mc *ModuleComparator) compareCallees(cl, cr *ir.Func) Kind {
	pair := FunPair{First: cl, Second: cr}
	if r, ok := mc.ComparedFuns[pair]; ok && r.Kind == Unknown {
		mc.log.Tracef("recursive reentry on %s/%s, assuming equal", cl.Name, cr.Name)
		return AssumedEqual
	}
	res := mc.CompareFunctions(cl, cr)
	if res.Kind == Unknown {
		return AssumedEqual
	}
	return res.Kind
}

// inliningLoop drives the inlining feedback: as long as the walk pinpoints
// a call-site pair and something was inlined, simplify both sides and
// re-compare. Each iteration strictly reduces the number of non-inlinable
// call instructions, bounding the loop.
func (mc *ModuleComparator) inliningLoop(fl, fr *ir.Func, r *Result, out Outcome) {
	preInline := NotEqual
	for out.InlineL != nil || out.InlineR != nil {
		inlineL, inlineR := out.InlineL, out.InlineR
		calleeL := calledFunc(inlineL)
		calleeR := calledFunc(inlineR)

		// If exactly one side's callee is a field-access abstraction,
		// defer inlining that side until the other side has been inlined:
		// structure type difference detection relies on the abstractions.
		if inlineL != nil && inlineR != nil {
			if passes.IsFieldAccessAbstraction(calleeL) && !passes.IsFieldAccessAbstraction(calleeR) {
				inlineL = nil
			} else if passes.IsFieldAccessAbstraction(calleeR) && !passes.IsFieldAccessAbstraction(calleeL) {
				inlineR = nil
			}
		}

		var missing MissingDef
		inlined := false
		if inlineL != nil {
			if mc.tryInlineCall(inlineL, "first", &missing.First) {
				inlined = true
			}
		}
		if inlineR != nil {
			if mc.tryInlineCall(inlineR, "second", &missing.Second) {
				inlined = true
			}
		}
		if missing.First != nil || missing.Second != nil {
			mc.MissingDefs = append(mc.MissingDefs, missing)
		}
		if !inlined {
			break
		}
		mc.Simplifier.Simplify(fl)
		mc.Simplifier.Simplify(fr)

		// Reset the pair result and re-run the comparison.
		r.Kind = Unknown
		out = mc.runComparison(fl, fr, r)
		if out.Res == 0 {
			r.Kind = Equal
			r.PreInline = preInline
			// The callee pair is no longer reachable through this path;
			// its earlier verdict may have been NotEqual in isolation, so
			// drop it rather than report it on its own.
			if prev, ok := mc.ComparedFuns[FunPair{First: calleeL, Second: calleeR}]; ok {
				mc.log.Infof("inlining made %s and %s equal; discarding %s verdict of %s/%s",
					fl.Name, fr.Name, prev.Kind, nameOf(calleeL), nameOf(calleeR))
				delete(mc.ComparedFuns, FunPair{First: calleeL, Second: calleeR})
			}
			return
		}
		r.Kind = NotEqual
	}
}

// tryInlineCall inlines one call site, or records its callee as a missing
// definition when only a declaration is available. Intrinsics and
// synthesized abstractions are never reported missing.
func (mc *ModuleComparator) tryInlineCall(call *ir.Instr, side string, missing **ir.Func) bool {
	callee := calledFunc(call)
	if callee == nil {
		return false
	}
	mc.log.Debugf("try to inline %s in %s", callee.Name, side)
	if callee.IsDeclaration() {
		mc.log.Debugf("missing definition of %s", callee.Name)
		if !callee.IsIntrinsic() && !passes.IsAbstraction(callee) {
			*missing = callee
		}
		return false
	}
	if !mc.Inliner.Inline(call) {
		return false
	}
	mc.CoveredFuns[callee.Name] = true
	return true
}

func calledFunc(call *ir.Instr) *ir.Func {
	if call == nil {
		return nil
	}
	return call.CalledFunc()
}

func nameOf(f *ir.Func) string {
	if f == nil {
		return "<none>"
	}
	return f.Name
}
