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

// Package passes implements the per-function simplification collaborators
// of the comparison engine: dead-code and unreachable-block removal, the
// best-effort call-site inliner, and the unused-return-value rewriter.
package passes

import (
	"strings"

	"github.com/irtools/semdiff/analysis/ir"
)

// Reserved name prefixes of synthesized helper functions emitted by the
// abstraction pre-passes. They are recognized during inlining: abstractions
// are never reported as missing definitions, and when only one callee of a
// call-site pair is a field-access abstraction, it is inlined after the
// other side to preserve aggregate-type correspondence.
const (
	// FieldAccessPrefix marks a synthesized field-access helper.
	FieldAccessPrefix = "__field_access_"
	// AsmAbstractionPrefix marks a synthesized inline-assembly wrapper.
	AsmAbstractionPrefix = "__inline_asm_"
)

// IsAbstraction returns true for any synthesized helper function.
func IsAbstraction(f *ir.Func) bool {
	return f != nil && (IsFieldAccessAbstraction(f) || IsAsmAbstraction(f))
}

// IsFieldAccessAbstraction returns true for synthesized field-access
// helpers.
func IsFieldAccessAbstraction(f *ir.Func) bool {
	return f != nil && strings.HasPrefix(f.Name, FieldAccessPrefix)
}

// IsAsmAbstraction returns true for synthesized inline-assembly wrappers.
func IsAsmAbstraction(f *ir.Func) bool {
	return f != nil && strings.HasPrefix(f.Name, AsmAbstractionPrefix)
}

// OutlineAsm replaces an inline-assembly instruction with a call to a fresh
// asm abstraction, moving the asm body into the new function. It returns
// the abstraction. Used by hosts that want asm fragments compared as named
// objects.
func OutlineAsm(m *ir.Module, in *ir.Instr) *ir.Func {
	if in.Op != ir.OpAsm || in.Parent == nil {
		return nil
	}
	name := m.FreshName(AsmAbstractionPrefix + "f")
	params := make([]*ir.Param, len(in.Args))
	args := in.Args
	fn := &ir.Func{Name: name, Ret: in.Type()}
	for i, a := range args {
		params[i] = &ir.Param{
			Name:   m.FreshName("p"),
			Typ:    a.Type(),
			Index:  i,
			Parent: fn,
		}
	}
	fn.Params = params

	body := &ir.Block{Name: "entry"}
	asm := &ir.Instr{
		Op:          ir.OpAsm,
		Typ:         in.Typ,
		Asm:         in.Asm,
		Constraints: in.Constraints,
		Meta:        in.Meta,
	}
	for _, p := range params {
		asm.Args = append(asm.Args, p)
	}
	ret := &ir.Instr{Op: ir.OpRet}
	if asm.HasResult() {
		asm.Name = m.FreshName("r")
		ret.Args = []ir.Value{asm}
	}
	body.Append(asm)
	body.Append(ret)
	fn.AddBlock(body)
	if err := m.AddFunc(fn); err != nil {
		return nil
	}

	// Rewrite the original instruction into a call to the abstraction.
	in.Op = ir.OpCall
	in.Callee = fn
	in.Asm = ""
	in.Constraints = ""
	return fn
}
