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
	"github.com/irtools/semdiff/internal/funcutil"
	"github.com/yourbasic/graph"
	"golang.org/x/tools/container/intsets"
)

// FunctionSimplifier removes dead instructions, no-op casts, forwarding
// blocks and unreachable blocks from a function. It never alters the
// function signature and never changes observable behavior.
type FunctionSimplifier struct {
	log *config.LogGroup
}

// NewSimplifier returns the default simplification collaborator.
func NewSimplifier(logger *config.LogGroup) *FunctionSimplifier {
	return &FunctionSimplifier{log: logger}
}

// Simplify normalizes one function in place. Declarations are left alone.
func (s *FunctionSimplifier) Simplify(f *ir.Func) {
	if f.IsDeclaration() {
		return
	}
	s.dropNoopCasts(f)
	s.removeDeadInstructions(f)
	s.skipForwardingBlocks(f)
	s.mergeLinearBlocks(f)
	s.removeUnreachableBlocks(f)
	f.Renumber()
}

// mergeLinearBlocks appends the unconditional successor of a block to that
// block when the successor has no other predecessors. Inlining produces such chains
// around every former call site.
func (s *FunctionSimplifier) mergeLinearBlocks(f *ir.Func) {
	for {
		preds := predCounts(f)
		merged := false
		for _, b := range f.Blocks {
			t := b.Terminator()
			if t == nil || t.Op != ir.OpBr || len(t.Args) != 0 {
				continue
			}
			target := t.Succs[0]
			if target == b || preds[target] != 1 {
				continue
			}
			// Single-predecessor phis collapse to their only incoming
			// value.
			rest := target.Instrs[:0]
			for _, in := range target.Instrs {
				if in.Op == ir.OpPhi && len(in.Args) == 1 {
					ir.ReplaceUses(f, in, in.Args[0])
					continue
				}
				rest = append(rest, in)
			}
			target.Instrs = rest
			b.Instrs = b.Instrs[:len(b.Instrs)-1]
			for _, in := range target.Instrs {
				in.Parent = b
				b.Instrs = append(b.Instrs, in)
			}
			target.Instrs = nil
			for _, other := range f.Blocks {
				retargetPhiPreds(other, target, b)
			}
			merged = true
			break
		}
		if !merged {
			return
		}
	}
}

// predCounts counts the predecessors of every block.
func predCounts(f *ir.Func) map[*ir.Block]int {
	preds := make(map[*ir.Block]int)
	for _, b := range f.Blocks {
		for _, succ := range b.Succs() {
			preds[succ]++
		}
	}
	return preds
}

// dropNoopCasts replaces casts between equal types with their operand.
func (s *FunctionSimplifier) dropNoopCasts(f *ir.Func) {
	for _, b := range f.Blocks {
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if in.IsCast() && len(in.Args) == 1 && in.Args[0] != nil &&
				ir.EqualTypes(in.Args[0].Type(), in.Type()) {
				ir.ReplaceUses(f, in, in.Args[0])
				continue
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
}

// removeDeadInstructions iteratively removes side-effect-free instructions
// whose results are unused.
func (s *FunctionSimplifier) removeDeadInstructions(f *ir.Func) {
	// Index all instructions once; the dead set is tracked as a sparse
	// integer set across rounds.
	var index []*ir.Instr
	pos := make(map[*ir.Instr]int)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			pos[in] = len(index)
			index = append(index, in)
		}
	}
	var dead intsets.Sparse
	for {
		uses := ir.UseCounts(f)
		changed := false
		for _, b := range f.Blocks {
			for _, in := range b.Instrs {
				if dead.Has(pos[in]) || in.HasSideEffects() {
					continue
				}
				if in.HasResult() && uses[in] > 0 {
					continue
				}
				dead.Insert(pos[in])
				changed = true
			}
		}
		if !changed {
			break
		}
		for _, b := range f.Blocks {
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				if !dead.Has(pos[in]) {
					kept = append(kept, in)
				}
			}
			b.Instrs = kept
		}
	}
	if n := dead.Len(); n > 0 {
		s.log.Tracef("removed %d dead instructions from %s", n, f.Name)
	}
}

// skipForwardingBlocks retargets branches around blocks that contain only
// an unconditional branch, provided the target has no phi nodes. The
// emptied blocks become unreachable and are removed afterwards.
func (s *FunctionSimplifier) skipForwardingBlocks(f *ir.Func) {
	forward := make(map[*ir.Block]*ir.Block)
	for _, b := range f.Blocks {
		if b == f.Entry() || len(b.Instrs) != 1 {
			continue
		}
		t := b.Instrs[0]
		if t.Op != ir.OpBr || len(t.Args) != 0 {
			continue
		}
		target := t.Succs[0]
		if hasPhis(target) || target == b {
			continue
		}
		forward[b] = target
	}
	if len(forward) == 0 {
		return
	}
	resolve := func(b *ir.Block) *ir.Block {
		seen := map[*ir.Block]bool{}
		for forward[b] != nil && !seen[b] {
			seen[b] = true
			b = forward[b]
		}
		return b
	}
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil {
			continue
		}
		for i, succ := range t.Succs {
			t.Succs[i] = resolve(succ)
		}
	}
}

func hasPhis(b *ir.Block) bool {
	return funcutil.Exists(b.Instrs, func(in *ir.Instr) bool { return in.Op == ir.OpPhi })
}

// removeUnreachableBlocks drops blocks not reachable from the entry and
// prunes phi incomings from removed blocks.
func (s *FunctionSimplifier) removeUnreachableBlocks(f *ir.Func) {
	f.Renumber()
	g := graph.New(len(f.Blocks))
	for _, b := range f.Blocks {
		for _, succ := range b.Succs() {
			g.Add(b.Index, succ.Index)
		}
	}
	reached := make([]bool, len(f.Blocks))
	reached[0] = true
	graph.BFS(g, 0, func(v, w int, _ int64) {
		reached[w] = true
	})

	removed := make(map[*ir.Block]bool)
	kept := f.Blocks[:0]
	for i, b := range f.Blocks {
		if reached[i] {
			kept = append(kept, b)
		} else {
			removed[b] = true
		}
	}
	if len(removed) == 0 {
		return
	}
	f.Blocks = kept
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Op != ir.OpPhi {
				continue
			}
			args := in.Args[:0]
			preds := in.Preds[:0]
			for i, p := range in.Preds {
				if !removed[p] {
					args = append(args, in.Args[i])
					preds = append(preds, p)
				}
			}
			in.Args = args
			in.Preds = preds
		}
	}
}
