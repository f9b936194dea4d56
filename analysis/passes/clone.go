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
	"github.com/irtools/semdiff/analysis/ir"
)

// cloneBlocks copies a list of blocks, remapping all local references
// through valueMap. Callers pre-populate valueMap with parameter
// substitutions. The returned blocks are detached: they have no parent
// function until the caller attaches them.
func cloneBlocks(m *ir.Module, blocks []*ir.Block, valueMap map[ir.Value]ir.Value,
	namePrefix string) []*ir.Block {
	blockMap := make(map[*ir.Block]*ir.Block, len(blocks))
	clones := make([]*ir.Block, len(blocks))

	// First pass: create the block and instruction shells so that forward
	// references (phis, branch targets) can be resolved in the second pass.
	for i, b := range blocks {
		nb := &ir.Block{Name: m.FreshName(namePrefix + b.Name)}
		blockMap[b] = nb
		clones[i] = nb
		for _, in := range b.Instrs {
			clone := &ir.Instr{
				Op:          in.Op,
				Typ:         in.Typ,
				Pred:        in.Pred,
				Align:       in.Align,
				Field:       in.Field,
				Asm:         in.Asm,
				Constraints: in.Constraints,
				Meta:        in.Meta,
			}
			if in.Name != "" {
				clone.Name = m.FreshName(in.Name)
			}
			if len(in.Cases) > 0 {
				clone.Cases = append([]int64(nil), in.Cases...)
			}
			valueMap[in] = clone
			nb.Append(clone)
		}
	}

	// Second pass: remap operands, callees, successors and phi preds.
	for i, b := range blocks {
		nb := clones[i]
		for k, in := range b.Instrs {
			clone := nb.Instrs[k]
			for _, arg := range in.Args {
				clone.Args = append(clone.Args, mapValue(valueMap, arg))
			}
			if in.Callee != nil {
				clone.Callee = mapValue(valueMap, in.Callee)
			}
			for _, s := range in.Succs {
				clone.Succs = append(clone.Succs, blockMap[s])
			}
			for _, p := range in.Preds {
				clone.Preds = append(clone.Preds, blockMap[p])
			}
		}
	}
	return clones
}

// mapValue resolves a value through the clone map; globals, functions and
// constants are shared, not copied.
func mapValue(valueMap map[ir.Value]ir.Value, v ir.Value) ir.Value {
	if mapped, ok := valueMap[v]; ok {
		return mapped
	}
	return v
}

// CloneFunction copies a function definition under a new name and registers
// it in the module. Declarations are cloned as declarations.
func CloneFunction(m *ir.Module, f *ir.Func, name string) (*ir.Func, error) {
	clone := &ir.Func{
		Name:     name,
		Ret:      f.Ret,
		Variadic: f.Variadic,
		CallConv: f.CallConv,
		Loc:      f.Loc,
	}
	valueMap := make(map[ir.Value]ir.Value)
	for _, p := range f.Params {
		np := &ir.Param{Name: p.Name, Typ: p.Typ, Index: p.Index, Parent: clone}
		clone.Params = append(clone.Params, np)
		valueMap[p] = np
	}
	for _, b := range cloneBlocks(m, f.Blocks, valueMap, f.Name+".") {
		clone.AddBlock(b)
	}
	if err := m.AddFunc(clone); err != nil {
		return nil, err
	}
	return clone, nil
}
