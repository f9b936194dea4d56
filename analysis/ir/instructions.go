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

// Op is an instruction opcode.
type Op int

// The closed opcode set of the IR.
const (
	OpInvalid Op = iota
	OpAlloca
	OpLoad
	OpStore
	OpGetField
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpICmp
	OpSelect
	OpPhi
	OpCall
	OpBitcast
	OpZExt
	OpSExt
	OpTrunc
	OpPtrToInt
	OpIntToPtr
	OpBr
	OpSwitch
	OpRet
	OpAsm
	OpUnreachable
)

var opNames = map[Op]string{
	OpAlloca:      "alloca",
	OpLoad:        "load",
	OpStore:       "store",
	OpGetField:    "getfield",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpSDiv:        "sdiv",
	OpUDiv:        "udiv",
	OpSRem:        "srem",
	OpURem:        "urem",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpShl:         "shl",
	OpLShr:        "lshr",
	OpAShr:        "ashr",
	OpICmp:        "icmp",
	OpSelect:      "select",
	OpPhi:         "phi",
	OpCall:        "call",
	OpBitcast:     "bitcast",
	OpZExt:        "zext",
	OpSExt:        "sext",
	OpTrunc:       "trunc",
	OpPtrToInt:    "ptrtoint",
	OpIntToPtr:    "inttoptr",
	OpBr:          "br",
	OpSwitch:      "switch",
	OpRet:         "ret",
	OpAsm:         "asm",
	OpUnreachable: "unreachable",
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "<invalid op>"
}

// OpFromName returns the opcode for an instruction mnemonic.
func OpFromName(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}

// Pred is an integer comparison predicate.
type Pred int

// Comparison predicates of the icmp instruction.
const (
	PredInvalid Pred = iota
	PredEQ
	PredNE
	PredSGT
	PredSGE
	PredSLT
	PredSLE
	PredUGT
	PredUGE
	PredULT
	PredULE
)

var predNames = map[Pred]string{
	PredEQ:  "eq",
	PredNE:  "ne",
	PredSGT: "sgt",
	PredSGE: "sge",
	PredSLT: "slt",
	PredSLE: "sle",
	PredUGT: "ugt",
	PredUGE: "uge",
	PredULT: "ult",
	PredULE: "ule",
}

var predByName = func() map[string]Pred {
	m := make(map[string]Pred, len(predNames))
	for p, name := range predNames {
		m[name] = p
	}
	return m
}()

func (p Pred) String() string {
	if s, ok := predNames[p]; ok {
		return s
	}
	return "<invalid pred>"
}

// PredFromName returns the predicate for its mnemonic.
func PredFromName(name string) (Pred, bool) {
	p, ok := predByName[name]
	return p, ok
}

// Instr is a single IR instruction. One struct represents all opcodes;
// opcode-specific attributes are unused for the others.
type Instr struct {
	Parent *Block
	Op     Op
	// Name is the result register name, without the leading '%'. Empty for
	// instructions without a result.
	Name string
	// Typ is the result type; Void when the instruction produces no value.
	Typ Type
	// Args are the value operands. Per opcode:
	//   store:  value, address
	//   load:   address
	//   phi:    incoming values, aligned with Preds
	//   call:   call arguments
	//   ret:    return value (absent for ret void)
	//   br:     condition (absent for unconditional)
	//   asm:    asm input operands
	Args []Value
	// Pred is the icmp predicate.
	Pred Pred
	// Align is the alignment of alloca/load/store, 0 when unspecified.
	Align int
	// Field is the field index of getfield.
	Field int
	// Callee is the called function or global of a call instruction.
	Callee Value
	// Succs are the successor blocks of a terminator; for br they are
	// ordered (then, else), for switch (default, case blocks...).
	Succs []*Block
	// Cases are the switch case values, aligned with Succs[1:].
	Cases []int64
	// Preds are the incoming blocks of a phi, aligned with Args.
	Preds []*Block
	// Asm and Constraints carry the body of an inline-assembly instruction.
	Asm         string
	Constraints string
	// Meta is the optional metadata bag.
	Meta *Metadata
}

// Type implements Value: the type of the instruction result.
func (in *Instr) Type() Type {
	if in.Typ == nil {
		return Void
	}
	return in.Typ
}

// HasResult returns true if the instruction produces a value.
func (in *Instr) HasResult() bool {
	return in.Typ != nil && !IsVoid(in.Typ)
}

// IsTerminator returns true for instructions that end a basic block.
func (in *Instr) IsTerminator() bool {
	switch in.Op {
	case OpBr, OpSwitch, OpRet, OpUnreachable:
		return true
	}
	return false
}

// IsCast returns true for conversion instructions, including trunc, which
// drops high bits.
func (in *Instr) IsCast() bool {
	switch in.Op {
	case OpBitcast, OpZExt, OpSExt, OpTrunc, OpPtrToInt, OpIntToPtr:
		return true
	}
	return false
}

// HasSideEffects returns true if removing the instruction could change
// observable behavior. Calls are conservatively considered effectful.
func (in *Instr) HasSideEffects() bool {
	switch in.Op {
	case OpStore, OpCall, OpAsm:
		return true
	}
	return in.IsTerminator()
}

// CalledFunc resolves the callee of a call instruction to a function,
// returning nil when the call is indirect.
func (in *Instr) CalledFunc() *Func {
	if in.Op != OpCall {
		return nil
	}
	f, _ := in.Callee.(*Func)
	return f
}

// Loc returns the debug location of the instruction, if any.
func (in *Instr) Loc() *Loc {
	if in.Meta == nil {
		return nil
	}
	return in.Meta.Loc
}

// PatternMeta returns the pattern markers of the instruction, if any.
func (in *Instr) PatternMeta() *PatternMeta {
	if in.Meta == nil {
		return nil
	}
	return in.Meta.Pattern
}

// Index returns the position of the instruction in its block, or -1 if the
// instruction is detached.
func (in *Instr) Index() int {
	if in.Parent == nil {
		return -1
	}
	for i, other := range in.Parent.Instrs {
		if other == in {
			return i
		}
	}
	return -1
}
