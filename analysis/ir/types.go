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
	"strings"
)

// PointerSize is the byte size of pointers in the size model used by the
// aggregate size index.
const PointerSize = 8

// Type is the interface implemented by all IR types.
type Type interface {
	String() string
	isType()
}

// VoidType is the type of instructions that produce no value.
type VoidType struct{}

// IntType is an integer type of a given bit width (i1, i8, ..., i64).
type IntType struct {
	Bits int
}

// FloatType is a floating-point type of a given bit width (f32, f64).
type FloatType struct {
	Bits int
}

// PtrType is a pointer to an element type.
type PtrType struct {
	Elem Type
}

// ArrayType is a fixed-length array of an element type.
type ArrayType struct {
	Len  int
	Elem Type
}

// StructType is a named aggregate type. Struct types are defined once per
// module and referenced by name; Fields may be nil for opaque references.
type StructType struct {
	Name   string
	Fields []Type
	Loc    *Loc
}

// FuncType is the type of a function: parameter types, return type and
// whether the function is variadic.
type FuncType struct {
	Params   []Type
	Ret      Type
	Variadic bool
}

func (VoidType) isType()    {}
func (*IntType) isType()    {}
func (*FloatType) isType()  {}
func (*PtrType) isType()    {}
func (*ArrayType) isType()  {}
func (*StructType) isType() {}
func (*FuncType) isType()   {}

// Void is the canonical void type.
var Void = VoidType{}

// Common integer types.
var (
	I1  = &IntType{Bits: 1}
	I8  = &IntType{Bits: 8}
	I16 = &IntType{Bits: 16}
	I32 = &IntType{Bits: 32}
	I64 = &IntType{Bits: 64}
)

func (VoidType) String() string     { return "void" }
func (t *IntType) String() string   { return fmt.Sprintf("i%d", t.Bits) }
func (t *FloatType) String() string { return fmt.Sprintf("f%d", t.Bits) }
func (t *PtrType) String() string   { return t.Elem.String() + "*" }

func (t *ArrayType) String() string {
	return fmt.Sprintf("[%d x %s]", t.Len, t.Elem.String())
}

func (t *StructType) String() string { return "%" + t.Name }

// Def returns the full definition form of the struct type, e.g.
// "%pair = { i32, i64 }".
func (t *StructType) Def() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.String()
	}
	return fmt.Sprintf("%%%s = { %s }", t.Name, strings.Join(fields, ", "))
}

func (t *FuncType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	if t.Variadic {
		params = append(params, "...")
	}
	return fmt.Sprintf("(%s) %s", strings.Join(params, ", "), t.Ret.String())
}

// IsVoid returns true if t is the void type.
func IsVoid(t Type) bool {
	_, ok := t.(VoidType)
	return ok
}

// IsAggregate returns true if t is a struct or array type.
func IsAggregate(t Type) bool {
	switch t.(type) {
	case *StructType, *ArrayType:
		return true
	}
	return false
}

// BitSize returns the bit width of integer, float and pointer types
// (pointers are PointerSize*8 bits wide), and 0 for any other type.
func BitSize(t Type) int {
	switch t := t.(type) {
	case *IntType:
		return t.Bits
	case *FloatType:
		return t.Bits
	case *PtrType:
		return PointerSize * 8
	}
	return 0
}

// SizeOf returns the byte size of a type under the natural-alignment size
// model. Void and opaque structs have size 0.
func SizeOf(t Type) int {
	switch t := t.(type) {
	case VoidType:
		return 0
	case *IntType:
		return (t.Bits + 7) / 8
	case *FloatType:
		return (t.Bits + 7) / 8
	case *PtrType, *FuncType:
		return PointerSize
	case *ArrayType:
		return t.Len * SizeOf(t.Elem)
	case *StructType:
		size := 0
		maxAlign := 1
		for _, f := range t.Fields {
			a := AlignOf(f)
			if a > maxAlign {
				maxAlign = a
			}
			size = align(size, a) + SizeOf(f)
		}
		return align(size, maxAlign)
	}
	return 0
}

// AlignOf returns the natural alignment of a type in bytes.
func AlignOf(t Type) int {
	switch t := t.(type) {
	case *IntType, *FloatType:
		s := SizeOf(t)
		if s > PointerSize {
			return PointerSize
		}
		if s == 0 {
			return 1
		}
		return s
	case *PtrType, *FuncType:
		return PointerSize
	case *ArrayType:
		return AlignOf(t.Elem)
	case *StructType:
		maxAlign := 1
		for _, f := range t.Fields {
			if a := AlignOf(f); a > maxAlign {
				maxAlign = a
			}
		}
		return maxAlign
	}
	return 1
}

func align(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

// EqualTypes reports whether two types are structurally equal. Named struct
// types are compared by name and field structure; the visited set guards
// against recursive struct references.
func EqualTypes(a, b Type) bool {
	return equalTypes(a, b, make(map[[2]string]bool))
}

func equalTypes(a, b Type, visited map[[2]string]bool) bool {
	switch a := a.(type) {
	case VoidType:
		_, ok := b.(VoidType)
		return ok
	case *IntType:
		bb, ok := b.(*IntType)
		return ok && a.Bits == bb.Bits
	case *FloatType:
		bb, ok := b.(*FloatType)
		return ok && a.Bits == bb.Bits
	case *PtrType:
		bb, ok := b.(*PtrType)
		return ok && equalTypes(a.Elem, bb.Elem, visited)
	case *ArrayType:
		bb, ok := b.(*ArrayType)
		return ok && a.Len == bb.Len && equalTypes(a.Elem, bb.Elem, visited)
	case *StructType:
		bb, ok := b.(*StructType)
		if !ok {
			return false
		}
		key := [2]string{a.Name, bb.Name}
		if visited[key] {
			return true
		}
		visited[key] = true
		if a.Name != bb.Name || len(a.Fields) != len(bb.Fields) {
			return false
		}
		for i := range a.Fields {
			if !equalTypes(a.Fields[i], bb.Fields[i], visited) {
				return false
			}
		}
		return true
	case *FuncType:
		bb, ok := b.(*FuncType)
		if !ok || a.Variadic != bb.Variadic || len(a.Params) != len(bb.Params) {
			return false
		}
		if !equalTypes(a.Ret, bb.Ret, visited) {
			return false
		}
		for i := range a.Params {
			if !equalTypes(a.Params[i], bb.Params[i], visited) {
				return false
			}
		}
		return true
	}
	return false
}
