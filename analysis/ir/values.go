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

package ir

import (
	"fmt"
	"strconv"
)

// Value is anything that can appear as an instruction operand: constants,
// function parameters, instruction results, globals and functions.
type Value interface {
	Type() Type
	String() string
}

// Param is a function parameter.
type Param struct {
	Name   string
	Typ    Type
	Index  int
	Parent *Func
}

// Type implements Value.
func (p *Param) Type() Type { return p.Typ }

func (p *Param) String() string { return "%" + p.Name }

// Global is a module-level variable. Its value type is Typ; as an operand it
// denotes the address of the variable, so Type() returns a pointer.
type Global struct {
	Name string
	Typ  Type
	Loc  *Loc
}

// Type implements Value.
func (g *Global) Type() Type { return &PtrType{Elem: g.Typ} }

func (g *Global) String() string { return "@" + g.Name }

// ConstKind discriminates constant values.
type ConstKind int

const (
	// ConstInt is an integer constant.
	ConstInt ConstKind = iota
	// ConstFloat is a floating-point constant.
	ConstFloat
	// ConstString is a string constant.
	ConstString
	// ConstNull is a null pointer constant.
	ConstNull
)

// MacroRef records that a constant originates from the expansion of a named
// macro. It is the IR-level stand-in for compiler debug-info macro records.
type MacroRef struct {
	Name  string
	Value string
}

// Const is a constant operand. Macro is non-nil when debug metadata ties the
// constant to a macro expansion.
type Const struct {
	Kind  ConstKind
	Typ   Type
	Int   int64
	Float float64
	Str   string
	Macro *MacroRef
}

// Type implements Value.
func (c *Const) Type() Type { return c.Typ }

func (c *Const) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstNull:
		return "null"
	}
	return "<invalid const>"
}

// Text returns the textual body of a constant, used when reporting macro
// differences: the raw string for string constants, the decimal value for
// integers.
func (c *Const) Text() string {
	if c.Kind == ConstString {
		return c.Str
	}
	return c.String()
}

// IntConst returns an integer constant of the given type.
func IntConst(t Type, v int64) *Const {
	return &Const{Kind: ConstInt, Typ: t, Int: v}
}

// StringConst returns a string constant (typed as i8*).
func StringConst(s string) *Const {
	return &Const{Kind: ConstString, Typ: &PtrType{Elem: I8}, Str: s}
}

// Loc is a source location attached through debug metadata.
type Loc struct {
	File string
	Line int
}

func (l Loc) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// PatternMeta holds difference-pattern markers attached to an instruction in
// a pattern module.
type PatternMeta struct {
	// Start marks the first differing instruction of a pattern side.
	Start bool
	// End marks the last differing instruction of a pattern side.
	End bool
	// BasicBlockLimit bounds the number of successor blocks followed from
	// the instruction's block; negative means unlimited.
	BasicBlockLimit int
	// BasicBlockLimitEnd stops successor enqueuing at this terminator.
	BasicBlockLimitEnd bool
}

// Metadata is the per-instruction metadata bag: an optional debug location
// and optional pattern markers.
type Metadata struct {
	Loc     *Loc
	Pattern *PatternMeta
}
