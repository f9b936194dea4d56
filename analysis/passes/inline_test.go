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
	"testing"

	"github.com/irtools/semdiff/analysis/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findCall returns the first direct call to the named function.
func findCall(f *ir.Func, name string) *ir.Instr {
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if callee := in.CalledFunc(); callee != nil && callee.Name == name {
				return in
			}
		}
	}
	return nil
}

func TestInlineStraightLineCallee(t *testing.T) {
	m := parse(t, `
module "m"
define @helper(i32 %x) i32 {
entry:
  %a = add i32 %x, 1
  ret i32 %a
}
define @caller(i32 %x) i32 {
entry:
  %r = call i32 @helper(i32 %x)
  %s = mul i32 %r, 2
  ret i32 %s
}
`)
	caller := m.Fn("caller")
	call := findCall(caller, "helper")
	require.NotNil(t, call)
	require.True(t, NewInliner(testLogger()).Inline(call))

	assert.Nil(t, findCall(caller, "helper"), "call should be gone")
	NewSimplifier(testLogger()).Simplify(caller)
	require.Len(t, caller.Blocks, 1, "inlined straight-line code should collapse")

	// The behavior is preserved: add then mul.
	instrs := caller.Entry().Instrs
	require.Len(t, instrs, 3)
	assert.Equal(t, ir.OpAdd, instrs[0].Op)
	assert.Equal(t, ir.OpMul, instrs[1].Op)
	assert.Equal(t, ir.OpRet, instrs[2].Op)
	assert.Same(t, instrs[0], instrs[1].Args[0], "mul must consume the inlined add result")
}

func TestInlineBranchingCallee(t *testing.T) {
	m := parse(t, `
module "m"
define @pick(i32 %a, i32 %b) i32 {
entry:
  %c = icmp sgt i32 %a, %b
  br i1 %c, %then, %else
then:
  ret i32 %a
else:
  ret i32 %b
}
define @caller(i32 %x) i32 {
entry:
  %r = call i32 @pick(i32 %x, i32 10)
  ret i32 %r
}
`)
	caller := m.Fn("caller")
	call := findCall(caller, "pick")
	require.NotNil(t, call)
	require.True(t, NewInliner(testLogger()).Inline(call))
	NewSimplifier(testLogger()).Simplify(caller)

	// Two returns merge through a phi in the continuation block.
	var phi *ir.Instr
	for _, b := range caller.Blocks {
		for _, in := range b.Instrs {
			if in.Op == ir.OpPhi {
				phi = in
			}
		}
	}
	require.NotNil(t, phi, "multiple returns need a phi")
	assert.Len(t, phi.Args, 2)
	assert.Nil(t, findCall(caller, "pick"))
}

func TestInlineRefusesDeclaration(t *testing.T) {
	m := parse(t, `
module "m"
declare @ext(i32) i32
define @caller(i32 %x) i32 {
entry:
  %r = call i32 @ext(i32 %x)
  ret i32 %r
}
`)
	call := findCall(m.Fn("caller"), "ext")
	assert.False(t, NewInliner(testLogger()).Inline(call))
}

func TestInlineRefusesRecursion(t *testing.T) {
	m := parse(t, `
module "m"
define @self(i32 %x) i32 {
entry:
  %r = call i32 @self(i32 %x)
  ret i32 %r
}
`)
	call := findCall(m.Fn("self"), "self")
	assert.False(t, NewInliner(testLogger()).Inline(call))
}

func TestInlineVoidCallee(t *testing.T) {
	m := parse(t, `
module "m"
global @g i64
define @bump() void {
entry:
  %v = load i64, @g
  %n = add i64 %v, 1
  store i64 %n, @g
  ret void
}
define @caller() void {
entry:
  call void @bump()
  ret void
}
`)
	caller := m.Fn("caller")
	call := findCall(caller, "bump")
	require.True(t, NewInliner(testLogger()).Inline(call))
	NewSimplifier(testLogger()).Simplify(caller)
	require.Len(t, caller.Blocks, 1)
	assert.Equal(t, 4, len(caller.Entry().Instrs))
}
