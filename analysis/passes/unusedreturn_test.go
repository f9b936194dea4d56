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

const retLeft = `
module "l"
define @get(i32 %x) i32 {
entry:
  %r = add i32 %x, 1
  ret i32 %r
}
define @use(i32 %x) void {
entry:
  %ignored = call i32 @get(i32 %x)
  ret void
}
define @keeper(i32 %x) i32 {
entry:
  %kept = call i32 @get(i32 %x)
  ret i32 %kept
}
`

const retRight = `
module "r"
define @get(i32 %x) void {
entry:
  ret void
}
`

func TestRemoveUnusedReturnValues(t *testing.T) {
	left := parse(t, retLeft)
	right := parse(t, retRight)
	RemoveUnusedReturnValues(left, right, testLogger())

	variant := left.Fn("get" + VoidVariantMarker)
	require.NotNil(t, variant, "void variant should be created")
	assert.True(t, ir.IsVoid(variant.Ret))
	for _, b := range variant.Blocks {
		if t2 := b.Terminator(); t2 != nil && t2.Op == ir.OpRet {
			assert.Empty(t, t2.Args, "returns of the variant must be void")
		}
	}

	// The discarding call site now calls the variant.
	use := left.Fn("use")
	call := findCall(use, "get.void")
	require.NotNil(t, call, "discarding call site should be redirected")
	assert.False(t, call.HasResult())

	// The call site that reads the result keeps the original.
	keeper := left.Fn("keeper")
	assert.NotNil(t, findCall(keeper, "get"), "used result must keep the original callee")

	// The original function survives for its remaining uses.
	assert.NotNil(t, left.Fn("get"))
}

func TestRemoveUnusedReturnValuesNonVoidCounterpart(t *testing.T) {
	left := parse(t, retLeft)
	right := parse(t, `
module "r"
define @get(i32 %x) i32 {
entry:
  ret i32 %x
}
`)
	RemoveUnusedReturnValues(left, right, testLogger())
	assert.Nil(t, left.Fn("get"+VoidVariantMarker),
		"no variant when the counterpart does not return void")
}

func TestRemoveUnusedReturnValuesDeclaration(t *testing.T) {
	left := parse(t, `
module "l"
declare @probe(i64) i64
define @use(i64 %x) void {
entry:
  %r = call i64 @probe(i64 %x)
  ret void
}
`)
	right := parse(t, `
module "r"
declare @probe(i64) void
`)
	RemoveUnusedReturnValues(left, right, testLogger())
	variant := left.Fn("probe" + VoidVariantMarker)
	require.NotNil(t, variant)
	assert.True(t, variant.IsDeclaration())
	assert.True(t, ir.IsVoid(variant.Ret))
}
