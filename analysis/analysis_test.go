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

package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/irtools/semdiff/analysis/comparator"
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
)

func testLogger() *config.LogGroup {
	cfg := config.NewDefault()
	cfg.LogLevel = int(config.ErrLevel)
	return config.NewLogGroup(cfg)
}

const oldModule = `
module "old"

type %buf = { i32, i64 } !dbg("buf.h", 12)

define @process(i32 %x) i32 {
entry:
  %a = add i32 %x, 1
  %b = mul i32 %a, 2
  ret i32 %b
}
`

const newModule = `
module "new"

type %buf = { i32, i64 } !dbg("buf.h", 14)

define @double(i32 %x) i32 {
entry:
  %b = mul i32 %x, 2
  ret i32 %b
}

define @process(i32 %x) i32 {
entry:
  %a = add i32 %x, 1
  %r = call i32 @double(i32 %a)
  ret i32 %r
}
`

func writeModules(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	first := filepath.Join(dir, "old.ir")
	second := filepath.Join(dir, "new.ir")
	if err := os.WriteFile(first, []byte(oldModule), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(second, []byte(newModule), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return first, second
}

func TestRunEndToEnd(t *testing.T) {
	first, second := writeModules(t)
	cfg := config.NewDefault()
	cfg.FirstModule = first
	cfg.SecondModule = second
	cfg.LogLevel = int(config.ErrLevel)
	cfg.Compare = []config.SymbolPair{{First: "process"}}

	overall, err := Run(cfg, testLogger())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(overall.FunctionResults) != 1 {
		t.Fatalf("expected one result, got %d", len(overall.FunctionResults))
	}
	res := overall.FunctionResults[0]
	if res.Kind != comparator.Equal {
		t.Errorf("function split should compare equal, got %s", res.Kind)
	}
}

func TestRunUnresolvedSymbol(t *testing.T) {
	first, second := writeModules(t)
	cfg := config.NewDefault()
	cfg.FirstModule = first
	cfg.SecondModule = second
	cfg.LogLevel = int(config.ErrLevel)
	cfg.Compare = []config.SymbolPair{{First: "missing"}}

	if _, err := Run(cfg, testLogger()); err == nil {
		t.Errorf("unresolved seed symbol should be an input error")
	}
}

func TestDebugInfoIndex(t *testing.T) {
	m, err := ir.Parse("old.ir", oldModule)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	idx := NewDebugInfoIndex(m)
	loc, ok := idx.TypeLoc("buf")
	if !ok || loc.File != "buf.h" || loc.Line != 12 {
		t.Errorf("bad type location: %v %v", loc, ok)
	}
	names := idx.StructsBySize(16)
	if len(names) != 1 || names[0] != "buf" {
		t.Errorf("expected buf at size 16, got %v", names)
	}
	if _, ok := idx.TypeLoc("ghost"); ok {
		t.Errorf("unexpected location for unknown type")
	}
}

func TestComputeStatistics(t *testing.T) {
	m, err := ir.Parse("m.ir", `
module "m"
define @a() void {
entry:
  call void @b()
  ret void
}
define @b() void {
entry:
  call void @a()
  ret void
}
define @leaf() void {
entry:
  ret void
}
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	stats := ComputeStatistics(m)
	if stats.Functions != 3 || stats.Definitions != 3 {
		t.Errorf("bad counts: %+v", stats)
	}
	if len(stats.RecursiveGroups) != 1 {
		t.Fatalf("expected one recursive group, got %v", stats.RecursiveGroups)
	}
	group := stats.RecursiveGroups[0]
	if len(group) != 2 || group[0] != "a" || group[1] != "b" {
		t.Errorf("bad recursive group: %v", group)
	}
	if stats.ElementaryCycles != 1 {
		t.Errorf("expected one elementary cycle, got %d", stats.ElementaryCycles)
	}
}
