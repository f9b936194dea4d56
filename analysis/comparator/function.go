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

// Package comparator implements the cross-module function-pair equivalence
// engine: a structural lockstep walk of two functions' basic-block graphs
// that maintains a bijective value correspondence, a differential
// specialization that recognizes known-benign syntactic differences, and the
// module-level driver with its inlining feedback loop.
package comparator

import (
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
	"github.com/oleiade/lane"
)

// walkerHooks are the three override points of the structural walk. The
// generic comparator, the differential comparator and the pattern matcher
// share the walk algorithm and diverge only here. All overrides must
// preserve the bijectivity of the correspondence.
type walkerHooks interface {
	cmpOperationsWithOperands(il, ir *ir.Instr) int
	cmpBasicBlocks(bl, br *ir.Block) int
	cmpGlobalValues(l, r ir.Value) int
}

type blockPair struct {
	l, r *ir.Block
}

// FunctionComparator performs a generic lockstep structural walk of two
// function bodies. Compare returns 0 when the functions are structurally
// equal modulo the accumulated correspondence.
type FunctionComparator struct {
	FnL *ir.Func
	FnR *ir.Func

	// Corr is the value/type correspondence extended during the walk.
	Corr *Correspondence

	log   *config.LogGroup
	hooks walkerHooks

	// queue holds block pairs discovered but not yet walked.
	queue   *lane.Queue
	visited map[blockPair]bool
}

// NewFunctionComparator returns a comparator for one function pair sharing
// the given correspondence.
func NewFunctionComparator(fl, fr *ir.Func, corr *Correspondence,
	logger *config.LogGroup) *FunctionComparator {
	fc := &FunctionComparator{
		FnL:  fl,
		FnR:  fr,
		Corr: corr,
		log:  logger,
	}
	fc.hooks = fc
	return fc
}

// setHooks installs the override points of an embedding specialization.
func (fc *FunctionComparator) setHooks(h walkerHooks) { fc.hooks = h }

// Compare walks the reachable block graphs of both functions in lockstep.
// It returns 0 when every reachable pair matched consistently.
func (fc *FunctionComparator) Compare() int {
	if res := fc.cmpSignatures(); res != 0 {
		return res
	}
	if fc.FnL.IsDeclaration() || fc.FnR.IsDeclaration() {
		if fc.FnL.IsDeclaration() != fc.FnR.IsDeclaration() {
			return 1
		}
		return 0
	}
	fc.queue = lane.NewQueue()
	fc.visited = make(map[blockPair]bool)
	fc.enqueueBlocks(fc.FnL.Entry(), fc.FnR.Entry())
	for !fc.queue.Empty() {
		pair := fc.queue.Dequeue().(blockPair)
		if fc.visited[pair] {
			continue
		}
		fc.visited[pair] = true
		if res := fc.hooks.cmpBasicBlocks(pair.l, pair.r); res != 0 {
			return res
		}
	}
	return 0
}

func (fc *FunctionComparator) enqueueBlocks(bl, br *ir.Block) {
	fc.queue.Enqueue(blockPair{bl, br})
}

// cmpSignatures compares argument counts and types, the return type, the
// vararg flag and the calling convention.
func (fc *FunctionComparator) cmpSignatures() int {
	fl, fr := fc.FnL, fc.FnR
	if len(fl.Params) != len(fr.Params) || fl.Variadic != fr.Variadic ||
		fl.CallConv != fr.CallConv {
		return 1
	}
	if !fc.Corr.RelateTypes(fl.Ret, fr.Ret) {
		return 1
	}
	for i := range fl.Params {
		if !fc.Corr.RelateTypes(fl.Params[i].Typ, fr.Params[i].Typ) {
			return 1
		}
		if !fc.Corr.Relate(fl.Params[i], fr.Params[i]) {
			return 1
		}
	}
	return 0
}

// cmpBasicBlocks is the default block comparison: relate the pair, then
// walk both instruction streams in lockstep. Both blocks must end at the
// same stream position.
func (fc *FunctionComparator) cmpBasicBlocks(bl, br *ir.Block) int {
	if !fc.Corr.RelateBlocks(bl, br) {
		return 1
	}
	if len(bl.Instrs) != len(br.Instrs) {
		return 1
	}
	for i := range bl.Instrs {
		if res := fc.hooks.cmpOperationsWithOperands(bl.Instrs[i], br.Instrs[i]); res != 0 {
			return res
		}
	}
	return 0
}

// cmpOperationsWithOperands compares one instruction pair: opcode, result
// type, opcode-specific attributes, operands, and successor pairing for
// terminators.
func (fc *FunctionComparator) cmpOperationsWithOperands(il, ir *ir.Instr) int {
	if res := fc.cmpOperations(il, ir); res != 0 {
		return res
	}
	if res := fc.cmpOperands(il, ir); res != 0 {
		return res
	}
	// Successor ordering is significant: the k-th successor on the left
	// must correspond to the k-th successor on the right.
	if il.IsTerminator() {
		if len(il.Succs) != len(ir.Succs) {
			return 1
		}
		for i := range il.Succs {
			fc.enqueueBlocks(il.Succs[i], ir.Succs[i])
		}
	}
	if il.HasResult() {
		if !fc.Corr.Relate(il, ir) {
			return 1
		}
	}
	return 0
}

// cmpOperations compares opcodes, result types and opcode-specific
// attributes without touching operands.
func (fc *FunctionComparator) cmpOperations(il, ir2 *ir.Instr) int {
	if il.Op != ir2.Op || len(il.Args) != len(ir2.Args) {
		return 1
	}
	if !fc.Corr.RelateTypes(il.Type(), ir2.Type()) {
		return 1
	}
	switch il.Op {
	case ir.OpICmp:
		if il.Pred != ir2.Pred {
			return 1
		}
	case ir.OpAlloca, ir.OpLoad, ir.OpStore:
		if il.Align != ir2.Align {
			return 1
		}
	case ir.OpGetField:
		if il.Field != ir2.Field {
			return 1
		}
	case ir.OpSwitch:
		if len(il.Cases) != len(ir2.Cases) {
			return 1
		}
		for i := range il.Cases {
			if il.Cases[i] != ir2.Cases[i] {
				return 1
			}
		}
	case ir.OpAsm:
		if il.Asm != ir2.Asm || il.Constraints != ir2.Constraints {
			return 1
		}
	}
	return 0
}

// cmpOperands compares the value operands, the callee and the phi incoming
// blocks of an instruction pair.
func (fc *FunctionComparator) cmpOperands(il, ir2 *ir.Instr) int {
	if (il.Callee == nil) != (ir2.Callee == nil) {
		return 1
	}
	if il.Callee != nil {
		if res := fc.hooks.cmpGlobalValues(il.Callee, ir2.Callee); res != 0 {
			return res
		}
	}
	for i := range il.Args {
		if res := fc.cmpValues(il.Args[i], ir2.Args[i]); res != 0 {
			return res
		}
	}
	if il.Op == ir.OpPhi {
		if len(il.Preds) != len(ir2.Preds) {
			return 1
		}
		for i := range il.Preds {
			if !fc.Corr.RelateBlocks(il.Preds[i], ir2.Preds[i]) {
				return 1
			}
		}
	}
	return 0
}

// cmpValues compares a pair of operands by kind, extending the value
// correspondence for locals.
func (fc *FunctionComparator) cmpValues(l, r ir.Value) int {
	switch l := l.(type) {
	case *ir.Const:
		rc, ok := r.(*ir.Const)
		if !ok {
			return 1
		}
		return fc.cmpConstants(l, rc)
	case *ir.Param:
		rp, ok := r.(*ir.Param)
		if !ok || l.Index != rp.Index {
			return 1
		}
		if !fc.Corr.Relate(l, rp) {
			return 1
		}
		return 0
	case *ir.Instr:
		rin, ok := r.(*ir.Instr)
		if !ok {
			return 1
		}
		if !fc.Corr.Relate(l, rin) {
			return 1
		}
		return 0
	case *ir.Global, *ir.Func:
		return fc.hooks.cmpGlobalValues(l, r)
	}
	return 1
}

// cmpConstants compares two constants by kind, type and value.
func (fc *FunctionComparator) cmpConstants(l, r *ir.Const) int {
	if l.Kind != r.Kind || !fc.Corr.RelateTypes(l.Typ, r.Typ) {
		return 1
	}
	switch l.Kind {
	case ir.ConstInt:
		if l.Int != r.Int {
			return 1
		}
	case ir.ConstFloat:
		if l.Float != r.Float {
			return 1
		}
	case ir.ConstString:
		if l.Str != r.Str {
			return 1
		}
	}
	return 0
}

// cmpGlobalValues compares globals and functions by name rather than by
// index, because symbol ordering differs across modules. Numeric suffixes
// introduced by transformations are stripped first.
func (fc *FunctionComparator) cmpGlobalValues(l, r ir.Value) int {
	switch l := l.(type) {
	case *ir.Global:
		rg, ok := r.(*ir.Global)
		if !ok || ir.DropSuffix(l.Name) != ir.DropSuffix(rg.Name) {
			return 1
		}
		if !fc.Corr.Relate(l, rg) {
			return 1
		}
		return 0
	case *ir.Func:
		rf, ok := r.(*ir.Func)
		if !ok || l.BaseName() != rf.BaseName() {
			return 1
		}
		return 0
	}
	return 1
}
