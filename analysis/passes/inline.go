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

// CallInliner replaces direct call sites with the callee's body. Inlining
// is best-effort: unsupported shapes are refused rather than mangled.
type CallInliner struct {
	log *config.LogGroup
}

// NewInliner returns the default inlining collaborator.
func NewInliner(logger *config.LogGroup) *CallInliner {
	return &CallInliner{log: logger}
}

// Inline splices the callee body at the call site and returns whether the
// call was replaced. It refuses indirect calls, declarations, intrinsics,
// variadic callees and argument-count mismatches.
func (ci *CallInliner) Inline(call *ir.Instr) bool {
	if call == nil || call.Op != ir.OpCall || call.Parent == nil {
		return false
	}
	callee := call.CalledFunc()
	if callee == nil || callee.IsDeclaration() || callee.IsIntrinsic() || callee.Variadic {
		return false
	}
	if len(call.Args) != len(callee.Params) {
		return false
	}
	caller := call.Parent.Parent
	m := caller.Parent
	if m == nil || caller == callee {
		return false
	}

	callIdx := call.Index()
	if callIdx < 0 {
		return false
	}
	head := call.Parent

	// Substitute the callee parameters with the call arguments, then copy
	// the body.
	valueMap := make(map[ir.Value]ir.Value, len(callee.Params))
	for i, p := range callee.Params {
		valueMap[p] = call.Args[i]
	}
	body := cloneBlocks(m, callee.Blocks, valueMap, callee.Name+".")

	// Split the caller block: instructions after the call move to a new
	// tail block that the inlined returns branch to.
	tail := &ir.Block{Name: m.FreshName(head.Name + ".cont")}
	for _, in := range head.Instrs[callIdx+1:] {
		tail.Append(in)
	}
	head.Instrs = head.Instrs[:callIdx]

	// Phi nodes downstream referenced the original block as predecessor;
	// the terminator now lives in the tail.
	for _, b := range caller.Blocks {
		if b == head {
			continue
		}
		retargetPhiPreds(b, head, tail)
	}

	// Collect the cloned returns and rewrite them into branches to the
	// tail.
	type retEdge struct {
		val   ir.Value
		block *ir.Block
	}
	var rets []retEdge
	for _, b := range body {
		t := b.Terminator()
		if t == nil || t.Op != ir.OpRet {
			continue
		}
		edge := retEdge{block: b}
		if len(t.Args) > 0 {
			edge.val = t.Args[0]
		}
		rets = append(rets, edge)
		t.Op = ir.OpBr
		t.Args = nil
		t.Succs = []*ir.Block{tail}
	}

	// Pick the value that replaces the call result. The uses are rewired
	// after the splice below, so that uses moved into the tail are covered.
	var result ir.Value
	if call.HasResult() {
		switch len(rets) {
		case 0:
			// The callee never returns; downstream uses are unreachable.
		case 1:
			result = rets[0].val
		default:
			phi := &ir.Instr{
				Op:   ir.OpPhi,
				Name: m.FreshName(call.Name),
				Typ:  call.Typ,
			}
			for _, e := range rets {
				phi.Args = append(phi.Args, e.val)
				phi.Preds = append(phi.Preds, e.block)
			}
			tail.Instrs = append([]*ir.Instr{phi}, tail.Instrs...)
			phi.Parent = tail
			result = phi
		}
	}

	// Branch from the truncated head into the inlined entry.
	head.Append(&ir.Instr{Op: ir.OpBr, Succs: []*ir.Block{body[0]}})

	// Splice the cloned blocks and the tail right after the head.
	insert := append([]*ir.Block{}, body...)
	insert = append(insert, tail)
	for _, b := range insert {
		b.Parent = caller
	}
	pos := indexOfBlock(caller, head)
	blocks := append([]*ir.Block{}, caller.Blocks[:pos+1]...)
	blocks = append(blocks, insert...)
	blocks = append(blocks, caller.Blocks[pos+1:]...)
	caller.Blocks = blocks
	caller.Renumber()
	if result != nil {
		ir.ReplaceUses(caller, call, result)
	}

	ci.log.Debugf("inlined %s into %s", callee.Name, caller.Name)
	return true
}

func retargetPhiPreds(b *ir.Block, from, to *ir.Block) {
	for _, in := range b.Instrs {
		if in.Op != ir.OpPhi {
			continue
		}
		for i, p := range in.Preds {
			if p == from {
				in.Preds[i] = to
			}
		}
	}
}

func indexOfBlock(f *ir.Func, b *ir.Block) int {
	for i, other := range f.Blocks {
		if other == b {
			return i
		}
	}
	return -1
}
