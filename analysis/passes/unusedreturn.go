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

package passes

import (
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
)

// VoidVariantMarker is appended to the name of the void-returning variant a
// function gets when all its compared call sites discard the result.
const VoidVariantMarker = ".void"

// RemoveUnusedReturnValues rewrites functions whose return value is
// discarded at every call site and whose counterpart in the other module
// returns void: a void-returning variant is created and the
// result-discarding call sites are redirected to it. The original function
// is preserved for its remaining uses. Invoked once per module before
// comparison begins.
func RemoveUnusedReturnValues(m, other *ir.Module, logger *config.LogGroup) {
	funcs := append([]*ir.Func{}, m.Funcs...)
	for _, f := range funcs {
		if f.IsIntrinsic() || ir.IsVoid(f.Ret) {
			continue
		}
		counterpart := other.Fn(ir.DropSuffix(f.Name))
		if counterpart == nil {
			counterpart = other.Fn(f.Name)
		}
		if counterpart == nil || !ir.IsVoid(counterpart.Ret) {
			continue
		}
		sites := discardingCallSites(m, f)
		if len(sites) == 0 {
			continue
		}

		variant, err := makeVoidVariant(m, f)
		if err != nil {
			logger.Warnf("could not create void variant of %s: %v", f.Name, err)
			continue
		}
		logger.Debugf("creating void-returning variant of %s", f.Name)
		for _, call := range sites {
			call.Callee = variant
			call.Typ = ir.Void
			call.Name = ""
		}
	}
}

// discardingCallSites returns the direct call sites of f whose result is
// never read.
func discardingCallSites(m *ir.Module, f *ir.Func) []*ir.Instr {
	var sites []*ir.Instr
	for _, caller := range m.Funcs {
		if caller.IsDeclaration() {
			continue
		}
		var uses map[ir.Value]int
		for _, b := range caller.Blocks {
			for _, in := range b.Instrs {
				if in.CalledFunc() != f {
					continue
				}
				if uses == nil {
					uses = ir.UseCounts(caller)
				}
				if !in.HasResult() || uses[in] == 0 {
					sites = append(sites, in)
				}
			}
		}
	}
	return sites
}

// makeVoidVariant clones f into a void-returning variant with all returns
// rewritten to ret void. Attributes that only make sense on a return value
// do not exist in this IR beyond the type itself, so the signature change
// is the whole rewrite. Declarations get a declared variant.
func makeVoidVariant(m *ir.Module, f *ir.Func) (*ir.Func, error) {
	name := ir.DropSuffix(f.Name) + VoidVariantMarker
	if existing := m.Fn(name); existing != nil {
		return existing, nil
	}
	variant, err := CloneFunction(m, f, name)
	if err != nil {
		return nil, err
	}
	variant.Ret = ir.Void
	for _, b := range variant.Blocks {
		t := b.Terminator()
		if t != nil && t.Op == ir.OpRet {
			t.Args = nil
		}
	}
	return variant, nil
}
