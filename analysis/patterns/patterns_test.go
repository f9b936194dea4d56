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

package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/irtools/semdiff/analysis/comparator"
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
	"github.com/irtools/semdiff/analysis/passes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A pattern declaring that doubling via multiplication (new) is equivalent
// to doubling via self-addition (old).
const doublePattern = `
module "double"

define @new_double(i32 %x) i32 {
entry:
  %r = mul i32 %x, 2 !pattern(start, end)
  ret i32 %r
}

define @old_double(i32 %x) i32 {
entry:
  %r = add i32 %x, %x !pattern(start, end)
  ret i32 %r
}

declare @map(i64, i64) void

define @mapping() void {
entry:
  call void @map(i64 0, i64 0)
  ret void
}
`

func testLogger() *config.LogGroup {
	cfg := config.NewDefault()
	cfg.LogLevel = int(config.ErrLevel)
	return config.NewLogGroup(cfg)
}

// writeCatalogue writes a pattern module and its catalogue config into a
// temp dir and returns the config path.
func writeCatalogue(t *testing.T, onParseFailure string, modules ...string) string {
	t.Helper()
	dir := t.TempDir()
	var paths string
	for i, src := range modules {
		p := filepath.Join(dir, fmt.Sprintf("pat%d.ir", i))
		require.NoError(t, os.WriteFile(p, []byte(src), 0600))
		paths += "\n  - " + p
	}
	cfgPath := filepath.Join(dir, "patterns.yaml")
	content := "patterns:" + paths + "\n"
	if onParseFailure != "" {
		content = "on-parse-failure: " + onParseFailure + "\n" + content
	}
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))
	return cfgPath
}

func TestLoadPatternSet(t *testing.T) {
	cfgPath := writeCatalogue(t, "", doublePattern)
	set, err := Load(cfgPath, testLogger())
	require.NoError(t, err)
	require.Len(t, set.Patterns, 1)

	pat := set.Patterns[0]
	assert.Equal(t, "double", pat.Name)
	assert.Equal(t, ir.OpMul, pat.NewStart.Op)
	assert.Equal(t, ir.OpAdd, pat.OldStart.Op)
	require.Len(t, pat.FinalMapping, 1)
	assert.Equal(t, MappingPair{New: 0, Old: 0}, pat.FinalMapping[0])
}

func TestLoadRejectsIncompletePattern(t *testing.T) {
	missingOld := `
module "broken"
define @new_only(i32 %x) i32 {
entry:
  %r = add i32 %x, 1 !pattern(start, end)
  ret i32 %r
}
`
	// Default on-parse-failure is warn: the bad pattern is skipped.
	cfgPath := writeCatalogue(t, "", missingOld, doublePattern)
	set, err := Load(cfgPath, testLogger())
	require.NoError(t, err)
	assert.Len(t, set.Patterns, 1, "broken pattern should be skipped")

	// With abort, loading fails.
	cfgPath = writeCatalogue(t, "abort", missingOld)
	_, err = Load(cfgPath, testLogger())
	assert.Error(t, err)
}

func TestLoadRejectsMissingStart(t *testing.T) {
	noStart := `
module "nostart"
define @new_p(i32 %x) i32 {
entry:
  ret i32 %x
}
define @old_p(i32 %x) i32 {
entry:
  ret i32 %x
}
`
	cfgPath := writeCatalogue(t, "abort", noStart)
	_, err := Load(cfgPath, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern-start")
}

// Loading the same pattern twice has no effect on verdicts.
func TestPatternIdempotence(t *testing.T) {
	once := writeCatalogue(t, "", doublePattern)
	twice := writeCatalogue(t, "", doublePattern, doublePattern)

	for _, cfgPath := range []string{once, twice} {
		set, err := Load(cfgPath, testLogger())
		require.NoError(t, err)
		res := compareWithPatterns(t, set)
		assert.Equal(t, comparator.Equal, res.Kind)
	}
}

const moduleOld = `
module "old"
define @f(i32 %x) i32 {
entry:
  %r = add i32 %x, %x
  ret i32 %r
}
`

const moduleNew = `
module "new"
define @f(i32 %x) i32 {
entry:
  %r = mul i32 %x, 2
  ret i32 %r
}
`

func compareWithPatterns(t *testing.T, set *Set) *comparator.Result {
	t.Helper()
	logger := testLogger()
	left, err := ir.Parse("old.ir", moduleOld)
	require.NoError(t, err)
	right, err := ir.Parse("new.ir", moduleNew)
	require.NoError(t, err)
	mc := comparator.NewModuleComparator(left, right, config.NewDefault().Options,
		nil, nil, NewMatcher(set, logger),
		passes.NewSimplifier(logger), passes.NewInliner(logger), logger)
	res, err := mc.CompareSymbols("f", "")
	require.NoError(t, err)
	return res
}

// A matching pattern suppresses the difference; without the pattern the
// same pair is not equal.
func TestPatternSuppressesDifference(t *testing.T) {
	cfgPath := writeCatalogue(t, "", doublePattern)
	set, err := Load(cfgPath, testLogger())
	require.NoError(t, err)

	res := compareWithPatterns(t, set)
	assert.Equal(t, comparator.Equal, res.Kind)

	res = compareWithPatterns(t, &Set{})
	assert.Equal(t, comparator.NotEqual, res.Kind)
}

func TestPatternStartShapeFilter(t *testing.T) {
	// The pattern starts with add/mul; a sub/mul divergence must not match.
	cfgPath := writeCatalogue(t, "", doublePattern)
	set, err := Load(cfgPath, testLogger())
	require.NoError(t, err)

	logger := testLogger()
	left, err := ir.Parse("old.ir", `
module "old"
define @f(i32 %x) i32 {
entry:
  %r = sub i32 %x, %x
  ret i32 %r
}
`)
	require.NoError(t, err)
	right, err := ir.Parse("new.ir", moduleNew)
	require.NoError(t, err)
	mc := comparator.NewModuleComparator(left, right, config.NewDefault().Options,
		nil, nil, NewMatcher(set, logger),
		passes.NewSimplifier(logger), passes.NewInliner(logger), logger)
	res, err := mc.CompareSymbols("f", "")
	require.NoError(t, err)
	assert.Equal(t, comparator.NotEqual, res.Kind)
}

func TestInstrByIndex(t *testing.T) {
	m, err := ir.Parse("pat.ir", doublePattern)
	require.NoError(t, err)
	f := m.Fn("new_double")
	in := InstrByIndex(f, 0)
	require.NotNil(t, in)
	assert.Equal(t, ir.OpMul, in.Op)
	assert.Nil(t, InstrByIndex(f, 99))
}
