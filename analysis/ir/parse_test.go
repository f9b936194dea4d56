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
	"strings"
	"testing"
)

const sampleModule = `
module "sample"

type %pair = { i32, i64 } !dbg("pair.h", 3)

global @counter i64 !dbg("counter.c", 10)

declare @printk(i8*, ...) void
declare @intrinsic.expect(i64, i64) i64

define @max(i32 %a, i32 %b) i32 !dbg("max.c", 5) {
entry:
  %c = icmp sgt i32 %a, %b !dbg("max.c", 6)
  br i1 %c, %then, %else
then:
  ret i32 %a
else:
  ret i32 %b
}

define @loop(i32 %n) i32 {
entry:
  br %header
header:
  %i = phi i32 [ 0, %entry ], [ %next, %body ]
  %cond = icmp slt i32 %i, %n
  br i1 %cond, %body, %exit
body:
  %next = add i32 %i, 1
  br %header
exit:
  ret i32 %i
}

define @mem(%pair* %p) void {
entry:
  %f = getfield i64 %p, 1
  %q = alloca i64, align 8
  store i64 %f, %q, align 8
  %v = load i64, %q, align 8
  call void @printk(i8* "value %ld" !macro("FMT", "value"), i64 %v)
  ret void
}
`

func parseSample(t *testing.T) *Module {
	t.Helper()
	m, err := Parse("sample.ir", sampleModule)
	if err != nil {
		t.Fatalf("could not parse sample module: %v", err)
	}
	return m
}

func TestParseModuleStructure(t *testing.T) {
	m := parseSample(t)
	if m.Name != "sample" {
		t.Errorf("expected module name sample, got %q", m.Name)
	}
	if len(m.Funcs) != 5 {
		t.Fatalf("expected 5 functions, got %d", len(m.Funcs))
	}
	if m.Fn("printk") == nil || !m.Fn("printk").IsDeclaration() {
		t.Errorf("printk should be a declaration")
	}
	if !m.Fn("printk").Variadic {
		t.Errorf("printk should be variadic")
	}
	if !m.Fn("intrinsic.expect").IsIntrinsic() {
		t.Errorf("intrinsic.expect should be an intrinsic")
	}
	maxFn := m.Fn("max")
	if maxFn == nil || len(maxFn.Blocks) != 3 {
		t.Fatalf("max should have 3 blocks")
	}
	if maxFn.Loc == nil || maxFn.Loc.File != "max.c" || maxFn.Loc.Line != 5 {
		t.Errorf("bad debug location on max: %v", maxFn.Loc)
	}
	if g := m.GlobalVar("counter"); g == nil {
		t.Errorf("missing global counter")
	}
	st := m.StructByName("pair")
	if st == nil || len(st.Fields) != 2 {
		t.Fatalf("bad struct pair")
	}
	if st.Loc == nil || st.Loc.File != "pair.h" {
		t.Errorf("missing type location on pair")
	}
}

func TestParseBranchTargets(t *testing.T) {
	m := parseSample(t)
	entry := m.Fn("max").Entry()
	term := entry.Terminator()
	if term == nil || term.Op != OpBr {
		t.Fatalf("entry terminator should be a branch")
	}
	if len(term.Succs) != 2 || term.Succs[0].Name != "then" || term.Succs[1].Name != "else" {
		t.Errorf("branch successors not resolved in order")
	}
}

func TestParsePhiForwardReference(t *testing.T) {
	m := parseSample(t)
	header := m.Fn("loop").Block("header")
	phi := header.Instrs[0]
	if phi.Op != OpPhi || len(phi.Args) != 2 {
		t.Fatalf("expected two-way phi, got %s", phi)
	}
	if phi.Preds[0].Name != "entry" || phi.Preds[1].Name != "body" {
		t.Errorf("phi incoming blocks not resolved")
	}
	next, ok := phi.Args[1].(*Instr)
	if !ok || next.Name != "next" {
		t.Errorf("forward value reference not resolved, got %v", phi.Args[1])
	}
}

func TestParseMacroAnnotation(t *testing.T) {
	m := parseSample(t)
	var call *Instr
	for _, in := range m.Fn("mem").Entry().Instrs {
		if in.Op == OpCall {
			call = in
		}
	}
	if call == nil {
		t.Fatalf("missing printk call")
	}
	c, ok := call.Args[0].(*Const)
	if !ok || c.Macro == nil {
		t.Fatalf("macro annotation lost")
	}
	if c.Macro.Name != "FMT" || c.Macro.Value != "value" {
		t.Errorf("bad macro record: %+v", c.Macro)
	}
}

func TestParseRoundTrip(t *testing.T) {
	m := parseSample(t)
	text := m.String()
	m2, err := Parse("roundtrip.ir", text)
	if err != nil {
		t.Fatalf("printed module does not parse: %v\n%s", err, text)
	}
	if len(m2.Funcs) != len(m.Funcs) {
		t.Errorf("function count changed across round trip")
	}
	for _, f := range m.Funcs {
		f2 := m2.Fn(f.Name)
		if f2 == nil {
			t.Fatalf("function %s lost in round trip", f.Name)
		}
		if len(f2.Blocks) != len(f.Blocks) {
			t.Errorf("block count of %s changed", f.Name)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unknown opcode", "define @f() void {\nentry:\n  frob i32 1\n}", "unknown opcode"},
		{"undefined value", "define @f() void {\nentry:\n  %x = add i32 %y, 1\n  ret void\n}", "undefined value"},
		{"undefined block", "define @f() void {\nentry:\n  br %missing\n}", "undefined block"},
		{"unterminated body", "define @f() void {\nentry:\n  ret void\n", "unterminated function"},
		{"duplicate function", "declare @f() void\ndeclare @f() void", "duplicate function"},
		{"no terminator", "define @f() void {\nentry:\n  %x = add i32 1, 2\n}", "no terminator"},
		{"undefined callee", "define @f() void {\nentry:\n  call void @gone()\n  ret void\n}", "undefined symbol"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse("bad.ir", c.src)
			if err == nil {
				t.Fatalf("expected parse error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("expected error containing %q, got %v", c.want, err)
			}
		})
	}
}

func TestSuffixHandling(t *testing.T) {
	if !HasSuffix("foo.42") || HasSuffix("foo.bar") || HasSuffix("foo") || HasSuffix("foo.") {
		t.Errorf("suffix detection wrong")
	}
	if DropSuffix("foo.42") != "foo" {
		t.Errorf("DropSuffix(foo.42) = %q", DropSuffix("foo.42"))
	}
	if DropSuffix("foo.void") != "foo.void" {
		t.Errorf("non-numeric suffix must be kept")
	}
}
