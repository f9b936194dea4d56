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

// Package ir defines the intermediate representation the comparison engine
// operates on: modules of typed functions in basic-block form, with attached
// debug metadata, plus a textual format for loading them.
package ir

import (
	"fmt"
	"strings"
)

// IntrinsicPrefix marks compiler intrinsics; calls to intrinsics are never
// inlined and never reported as missing definitions.
const IntrinsicPrefix = "intrinsic."

// Module is a loaded IR module: an ordered list of functions and globals and
// the named aggregate types they use.
type Module struct {
	Name      string
	Funcs     []*Func
	Globals   []*Global
	Types     []*StructType
	funcIdx   map[string]*Func
	globalIdx map[string]*Global
	typeIdx   map[string]*StructType
	// nameCounter generates fresh value and block names during inlining and
	// cloning.
	nameCounter int
}

// NewModule returns an empty module with the given name.
func NewModule(name string) *Module {
	return &Module{
		Name:      name,
		funcIdx:   make(map[string]*Func),
		globalIdx: make(map[string]*Global),
		typeIdx:   make(map[string]*StructType),
	}
}

// Fn returns the function with the given name, or nil.
func (m *Module) Fn(name string) *Func { return m.funcIdx[name] }

// GlobalVar returns the global with the given name, or nil.
func (m *Module) GlobalVar(name string) *Global { return m.globalIdx[name] }

// StructByName returns the named struct type, or nil.
func (m *Module) StructByName(name string) *StructType { return m.typeIdx[name] }

// AddFunc registers a function in the module. The name must be unused.
func (m *Module) AddFunc(f *Func) error {
	if _, ok := m.funcIdx[f.Name]; ok {
		return fmt.Errorf("duplicate function @%s in module %s", f.Name, m.Name)
	}
	f.Parent = m
	m.Funcs = append(m.Funcs, f)
	m.funcIdx[f.Name] = f
	return nil
}

// RemoveFunc removes a function from the module.
func (m *Module) RemoveFunc(f *Func) {
	delete(m.funcIdx, f.Name)
	for i, other := range m.Funcs {
		if other == f {
			m.Funcs = append(m.Funcs[:i], m.Funcs[i+1:]...)
			break
		}
	}
	f.Parent = nil
}

// RenameFunc changes the name of a function, keeping the index consistent.
func (m *Module) RenameFunc(f *Func, name string) error {
	if _, ok := m.funcIdx[name]; ok {
		return fmt.Errorf("duplicate function @%s in module %s", name, m.Name)
	}
	delete(m.funcIdx, f.Name)
	f.Name = name
	m.funcIdx[name] = f
	return nil
}

// AddGlobal registers a global variable.
func (m *Module) AddGlobal(g *Global) error {
	if _, ok := m.globalIdx[g.Name]; ok {
		return fmt.Errorf("duplicate global @%s in module %s", g.Name, m.Name)
	}
	m.Globals = append(m.Globals, g)
	m.globalIdx[g.Name] = g
	return nil
}

// AddType registers a named struct type.
func (m *Module) AddType(t *StructType) error {
	if _, ok := m.typeIdx[t.Name]; ok {
		return fmt.Errorf("duplicate type %%%s in module %s", t.Name, m.Name)
	}
	m.Types = append(m.Types, t)
	m.typeIdx[t.Name] = t
	return nil
}

// FreshName returns a module-unique name with the given prefix, used when
// cloning values during inlining.
func (m *Module) FreshName(prefix string) string {
	m.nameCounter++
	return fmt.Sprintf("%s.%d", prefix, m.nameCounter)
}

// Func is an IR function: a declaration when Blocks is nil, a definition
// otherwise.
type Func struct {
	Parent   *Module
	Name     string
	Params   []*Param
	Ret      Type
	Variadic bool
	// CallConv is the calling convention name; empty is the default
	// convention.
	CallConv string
	Blocks   []*Block
	Loc      *Loc
}

// Type implements Value: functions used as operands have function type.
func (f *Func) Type() Type {
	params := make([]Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Typ
	}
	return &FuncType{Params: params, Ret: f.Ret, Variadic: f.Variadic}
}

func (f *Func) String() string { return "@" + f.Name }

// IsDeclaration returns true when the function has no body.
func (f *Func) IsDeclaration() bool { return len(f.Blocks) == 0 }

// IsIntrinsic returns true for compiler intrinsics, recognized by name.
func (f *Func) IsIntrinsic() bool {
	return strings.HasPrefix(f.Name, IntrinsicPrefix)
}

// Entry returns the entry block of a definition, or nil for declarations.
func (f *Func) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Block returns the block with the given name, or nil.
func (f *Func) Block(name string) *Block {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// AddBlock appends a block to the function body.
func (f *Func) AddBlock(b *Block) {
	b.Parent = f
	b.Index = len(f.Blocks)
	f.Blocks = append(f.Blocks, b)
}

// Renumber restores block indices after blocks were inserted or removed.
func (f *Func) Renumber() {
	for i, b := range f.Blocks {
		b.Index = i
	}
}

// HasSuffix reports whether a name carries a numeric suffix introduced by an
// IR transformation, e.g. "foo.42". The substring behind the last dot must
// contain only digits.
func HasSuffix(name string) bool {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 || dot == len(name)-1 {
		return false
	}
	for _, c := range name[dot+1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// DropSuffix removes the numeric suffix from a name. The result of DropSuffix
// on a name without a suffix is the name itself.
func DropSuffix(name string) string {
	if !HasSuffix(name) {
		return name
	}
	return name[:strings.LastIndexByte(name, '.')]
}

// BaseName returns the function name with any numeric suffix stripped; base
// names are the identity used when comparing renamed functions.
func (f *Func) BaseName() string { return DropSuffix(f.Name) }

// Block is a basic block: an ordered list of instructions ending in a
// terminator.
type Block struct {
	Parent *Func
	Name   string
	Index  int
	Instrs []*Instr
}

func (b *Block) String() string { return "%" + b.Name }

// Terminator returns the last instruction of the block if it is a
// terminator, nil otherwise.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	t := b.Instrs[len(b.Instrs)-1]
	if !t.IsTerminator() {
		return nil
	}
	return t
}

// Succs returns the successor blocks of the block, in terminator order.
func (b *Block) Succs() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	return t.Succs
}

// Append adds an instruction at the end of the block.
func (b *Block) Append(in *Instr) {
	in.Parent = b
	b.Instrs = append(b.Instrs, in)
}

// UseCounts computes, for every value defined in the function, the number of
// operand positions that use it. Phi incoming values and call arguments are
// counted; block references are not values and are ignored.
func UseCounts(f *Func) map[Value]int {
	uses := make(map[Value]int)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for _, arg := range in.Args {
				uses[arg]++
			}
			if in.Callee != nil {
				uses[in.Callee]++
			}
		}
	}
	return uses
}

// ReplaceUses rewrites every operand of the function that is old to new.
func ReplaceUses(f *Func, old, new Value) {
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for i, arg := range in.Args {
				if arg == old {
					in.Args[i] = new
				}
			}
			if in.Callee == old {
				in.Callee = new
			}
		}
	}
}
