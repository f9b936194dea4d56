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
	"strings"
)

// String renders the module in its textual form; the output parses back to
// an equivalent module, except that !pattern markers are not printed.
func (m *Module) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %q\n", m.Name)
	for _, t := range m.Types {
		if t.Fields == nil {
			continue
		}
		sb.WriteString("\ntype ")
		sb.WriteString(t.Def())
		if t.Loc != nil {
			fmt.Fprintf(&sb, " !dbg(%q, %d)", t.Loc.File, t.Loc.Line)
		}
		sb.WriteByte('\n')
	}
	for _, g := range m.Globals {
		fmt.Fprintf(&sb, "\nglobal @%s %s", g.Name, g.Typ.String())
		if g.Loc != nil {
			fmt.Fprintf(&sb, " !dbg(%q, %d)", g.Loc.File, g.Loc.Line)
		}
		sb.WriteByte('\n')
	}
	for _, f := range m.Funcs {
		sb.WriteByte('\n')
		sb.WriteString(f.Format())
	}
	return sb.String()
}

// Format renders the function header and, for definitions, its body.
func (f *Func) Format() string {
	var sb strings.Builder
	kw := "define"
	if f.IsDeclaration() {
		kw = "declare"
	}
	params := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		params = append(params, fmt.Sprintf("%s %%%s", p.Typ.String(), p.Name))
	}
	if f.Variadic {
		params = append(params, "...")
	}
	fmt.Fprintf(&sb, "%s @%s(%s) %s", kw, f.Name, strings.Join(params, ", "), f.Ret.String())
	if f.CallConv != "" {
		sb.WriteByte(' ')
		sb.WriteString(f.CallConv)
	}
	if f.Loc != nil {
		fmt.Fprintf(&sb, " !dbg(%q, %d)", f.Loc.File, f.Loc.Line)
	}
	if f.IsDeclaration() {
		sb.WriteByte('\n')
		return sb.String()
	}
	sb.WriteString(" {\n")
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for _, in := range b.Instrs {
			sb.WriteString("  ")
			sb.WriteString(in.String())
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func operandString(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case *Instr:
		// As an operand, an instruction stands for its result register.
		return "%" + v.Name
	case *Const:
		s := v.String()
		if v.Macro != nil {
			s += fmt.Sprintf(" !macro(%q, %q)", v.Macro.Name, v.Macro.Value)
		}
		return s
	}
	return v.String()
}

func typedOperand(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Type().String() + " " + operandString(v)
}

// String renders one instruction in its textual form.
//
//gocyclo:ignore
func (in *Instr) String() string {
	var sb strings.Builder
	if in.Name != "" {
		fmt.Fprintf(&sb, "%%%s = ", in.Name)
	}
	switch in.Op {
	case OpAdd, OpSub, OpMul, OpSDiv, OpUDiv, OpSRem, OpURem,
		OpAnd, OpOr, OpXor, OpShl, OpLShr, OpAShr:
		fmt.Fprintf(&sb, "%s %s %s, %s", in.Op, in.Typ.String(),
			operandString(in.Args[0]), operandString(in.Args[1]))
	case OpICmp:
		fmt.Fprintf(&sb, "icmp %s %s %s, %s", in.Pred, in.Args[0].Type().String(),
			operandString(in.Args[0]), operandString(in.Args[1]))
	case OpAlloca:
		elem := in.Typ.(*PtrType).Elem
		fmt.Fprintf(&sb, "alloca %s", elem.String())
		writeAlign(&sb, in.Align)
	case OpLoad:
		fmt.Fprintf(&sb, "load %s, %s", in.Typ.String(), operandString(in.Args[0]))
		writeAlign(&sb, in.Align)
	case OpStore:
		fmt.Fprintf(&sb, "store %s %s, %s", in.Args[0].Type().String(),
			operandString(in.Args[0]), operandString(in.Args[1]))
		writeAlign(&sb, in.Align)
	case OpGetField:
		fmt.Fprintf(&sb, "getfield %s %s, %d", in.Typ.String(),
			operandString(in.Args[0]), in.Field)
	case OpSelect:
		fmt.Fprintf(&sb, "select %s %s, %s, %s", in.Typ.String(),
			operandString(in.Args[0]), operandString(in.Args[1]), operandString(in.Args[2]))
	case OpPhi:
		fmt.Fprintf(&sb, "phi %s ", in.Typ.String())
		for i, arg := range in.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "[ %s, %s ]", operandString(arg), in.Preds[i].String())
		}
	case OpCall:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = typedOperand(a)
		}
		fmt.Fprintf(&sb, "call %s %s(%s)", in.Typ.String(),
			operandString(in.Callee), strings.Join(args, ", "))
	case OpBitcast, OpZExt, OpSExt, OpTrunc, OpPtrToInt, OpIntToPtr:
		fmt.Fprintf(&sb, "%s %s %s to %s", in.Op, in.Args[0].Type().String(),
			operandString(in.Args[0]), in.Typ.String())
	case OpBr:
		if len(in.Args) == 0 {
			fmt.Fprintf(&sb, "br %s", in.Succs[0].String())
		} else {
			fmt.Fprintf(&sb, "br i1 %s, %s, %s", operandString(in.Args[0]),
				in.Succs[0].String(), in.Succs[1].String())
		}
	case OpSwitch:
		fmt.Fprintf(&sb, "switch %s %s, %s", in.Args[0].Type().String(),
			operandString(in.Args[0]), in.Succs[0].String())
		for i, cv := range in.Cases {
			fmt.Fprintf(&sb, ", %d: %s", cv, in.Succs[i+1].String())
		}
	case OpRet:
		if len(in.Args) == 0 {
			sb.WriteString("ret void")
		} else {
			fmt.Fprintf(&sb, "ret %s", typedOperand(in.Args[0]))
		}
	case OpAsm:
		fmt.Fprintf(&sb, "asm %s %s", in.Typ.String(), strconv.Quote(in.Asm))
		if in.Constraints != "" {
			fmt.Fprintf(&sb, ", %s", strconv.Quote(in.Constraints))
		}
		if len(in.Args) > 0 {
			args := make([]string, len(in.Args))
			for i, a := range in.Args {
				args[i] = typedOperand(a)
			}
			fmt.Fprintf(&sb, " (%s)", strings.Join(args, ", "))
		}
	case OpUnreachable:
		sb.WriteString("unreachable")
	default:
		sb.WriteString("<invalid instruction>")
	}
	if in.Meta != nil && in.Meta.Loc != nil {
		fmt.Fprintf(&sb, " !dbg(%q, %d)", in.Meta.Loc.File, in.Meta.Loc.Line)
	}
	return sb.String()
}

func writeAlign(sb *strings.Builder, a int) {
	if a > 0 {
		fmt.Fprintf(sb, ", align %d", a)
	}
}
