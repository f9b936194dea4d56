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

import "testing"

func TestSizeOf(t *testing.T) {
	cases := []struct {
		typ  Type
		size int
	}{
		{I8, 1},
		{I32, 4},
		{I64, 8},
		{&PtrType{Elem: I8}, 8},
		{&ArrayType{Len: 4, Elem: I32}, 16},
		{&StructType{Name: "s", Fields: []Type{I32, I64}}, 16},
		{&StructType{Name: "t", Fields: []Type{I8, I8, I32}}, 8},
		{Void, 0},
	}
	for _, c := range cases {
		if got := SizeOf(c.typ); got != c.size {
			t.Errorf("SizeOf(%s) = %d, expected %d", c.typ, got, c.size)
		}
	}
}

func TestAlignOf(t *testing.T) {
	st := &StructType{Name: "s", Fields: []Type{I8, I64}}
	if AlignOf(st) != 8 {
		t.Errorf("struct with i64 field should align to 8")
	}
	if AlignOf(I16) != 2 {
		t.Errorf("i16 should align to 2")
	}
}

func TestEqualTypes(t *testing.T) {
	a := &StructType{Name: "pair", Fields: []Type{I32, I64}}
	b := &StructType{Name: "pair", Fields: []Type{I32, I64}}
	c := &StructType{Name: "pair", Fields: []Type{I32, I32}}
	if !EqualTypes(a, b) {
		t.Errorf("identical structs should be equal")
	}
	if EqualTypes(a, c) {
		t.Errorf("structs with differing fields should not be equal")
	}
	if !EqualTypes(&PtrType{Elem: a}, &PtrType{Elem: b}) {
		t.Errorf("pointers to equal structs should be equal")
	}
	if EqualTypes(I32, I64) {
		t.Errorf("i32 and i64 should not be equal")
	}
}

func TestEqualTypesRecursive(t *testing.T) {
	// A struct containing a pointer to itself must not diverge.
	a := &StructType{Name: "node"}
	a.Fields = []Type{I32, &PtrType{Elem: a}}
	b := &StructType{Name: "node"}
	b.Fields = []Type{I32, &PtrType{Elem: b}}
	if !EqualTypes(a, b) {
		t.Errorf("recursive structs with equal shape should be equal")
	}
}

func TestTypeStrings(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{I1, "i1"},
		{&FloatType{Bits: 64}, "f64"},
		{&PtrType{Elem: &PtrType{Elem: I8}}, "i8**"},
		{&ArrayType{Len: 3, Elem: I16}, "[3 x i16]"},
		{&StructType{Name: "pair"}, "%pair"},
	}
	for _, c := range cases {
		if got := c.typ.String(); got != c.want {
			t.Errorf("String() = %q, expected %q", got, c.want)
		}
	}
}
