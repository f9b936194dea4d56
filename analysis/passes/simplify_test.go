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

	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *config.LogGroup {
	cfg := config.NewDefault()
	cfg.LogLevel = int(config.ErrLevel)
	return config.NewLogGroup(cfg)
}

func parse(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := ir.Parse("test.ir", src)
	require.NoError(t, err)
	return m
}

func countInstrs(f *ir.Func) int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

func TestSimplifyRemovesDeadInstructions(t *testing.T) {
	m := parse(t, `
module "m"
define @f(i32 %x) i32 {
entry:
  %dead1 = mul i32 %x, 3
  %dead2 = add i32 %dead1, 1
  %r = add i32 %x, 1
  ret i32 %r
}
`)
	f := m.Fn("f")
	NewSimplifier(testLogger()).Simplify(f)
	assert.Equal(t, 2, countInstrs(f), "both dead instructions should be removed")
}

func TestSimplifyKeepsSideEffects(t *testing.T) {
	m := parse(t, `
module "m"
declare @ext(i32) i32
define @f(i32 %x) void {
entry:
  %ignored = call i32 @ext(i32 %x)
  ret void
}
`)
	f := m.Fn("f")
	NewSimplifier(testLogger()).Simplify(f)
	assert.Equal(t, 2, countInstrs(f), "calls must survive even when unused")
}

func TestSimplifyRemovesUnreachableBlocks(t *testing.T) {
	m := parse(t, `
module "m"
define @f(i32 %x) i32 {
entry:
  br %exit
orphan:
  %d = add i32 %x, 1
  br %exit
exit:
  ret i32 %x
}
`)
	f := m.Fn("f")
	NewSimplifier(testLogger()).Simplify(f)
	assert.Nil(t, f.Block("orphan"), "orphan block should be removed")
}

func TestSimplifyDropsNoopCasts(t *testing.T) {
	m := parse(t, `
module "m"
define @f(i64 %x) i64 {
entry:
  %c = bitcast i64 %x to i64
  %r = add i64 %c, 1
  ret i64 %r
}
`)
	f := m.Fn("f")
	NewSimplifier(testLogger()).Simplify(f)
	assert.Equal(t, 2, countInstrs(f))
	add := f.Entry().Instrs[0]
	assert.Same(t, f.Params[0], add.Args[0], "cast should be replaced by its operand")
}

func TestSimplifyMergesLinearBlocks(t *testing.T) {
	m := parse(t, `
module "m"
define @f(i32 %x) i32 {
entry:
  br %middle
middle:
  %r = add i32 %x, 1
  br %exit
exit:
  ret i32 %r
}
`)
	f := m.Fn("f")
	NewSimplifier(testLogger()).Simplify(f)
	require.Len(t, f.Blocks, 1, "linear chain should collapse into the entry")
	assert.Equal(t, 2, len(f.Entry().Instrs))
}

func TestSimplifyPrunesPhiIncomings(t *testing.T) {
	m := parse(t, `
module "m"
define @f(i32 %x) i32 {
entry:
  %c = icmp sgt i32 %x, 0
  br i1 %c, %a, %join
a:
  %y = add i32 %x, 1
  br %join
orphan:
  br %join
join:
  %p = phi i32 [ %x, %entry ], [ %y, %a ], [ 0, %orphan ]
  ret i32 %p
}
`)
	f := m.Fn("f")
	NewSimplifier(testLogger()).Simplify(f)
	join := f.Block("join")
	require.NotNil(t, join)
	phi := join.Instrs[0]
	require.Equal(t, ir.OpPhi, phi.Op)
	assert.Len(t, phi.Args, 2, "incoming from the removed block should be pruned")
}
