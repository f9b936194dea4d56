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
	"strconv"
)

// parseInstr parses one instruction line into the current block.
func (p *parser) parseInstr(b *Block) error {
	in := &Instr{Typ: Void}

	// Optional "%name =" result prefix.
	if t, ok := p.peek(); ok && t.kind == tkLocal {
		if p.pos+1 < len(p.toks) && p.toks[p.pos+1] == (token{tkPunct, "="}) {
			p.pos += 2
			in.Name = t.text
		}
	}

	opTok, ok := p.next()
	if !ok || opTok.kind != tkIdent {
		return p.errf("expected instruction opcode")
	}
	op, known := OpFromName(opTok.text)
	if !known {
		return p.errf("unknown opcode %q", opTok.text)
	}
	in.Op = op

	var err error
	switch op {
	case OpAdd, OpSub, OpMul, OpSDiv, OpUDiv, OpSRem, OpURem,
		OpAnd, OpOr, OpXor, OpShl, OpLShr, OpAShr:
		err = p.parseBinary(in)
	case OpICmp:
		err = p.parseICmp(in)
	case OpAlloca:
		err = p.parseAlloca(in)
	case OpLoad:
		err = p.parseLoad(in)
	case OpStore:
		err = p.parseStore(in)
	case OpGetField:
		err = p.parseGetField(in)
	case OpSelect:
		err = p.parseSelect(in)
	case OpPhi:
		err = p.parsePhi(in)
	case OpCall:
		err = p.parseCall(in)
	case OpBitcast, OpZExt, OpSExt, OpTrunc, OpPtrToInt, OpIntToPtr:
		err = p.parseCast(in)
	case OpBr:
		err = p.parseBr(in)
	case OpSwitch:
		err = p.parseSwitch(in)
	case OpRet:
		err = p.parseRet(in)
	case OpAsm:
		err = p.parseAsm(in)
	case OpUnreachable:
		// No operands.
	default:
		return p.errf("unhandled opcode %q", opTok.text)
	}
	if err != nil {
		return err
	}

	meta, err := p.parseAnnotations()
	if err != nil {
		return err
	}
	in.Meta = meta
	if err := p.endOfLine(); err != nil {
		return err
	}

	if in.Name != "" {
		if !in.HasResult() {
			return p.errf("instruction %q produces no result", opTok.text)
		}
		if _, dup := p.locals[in.Name]; dup {
			return p.errf("duplicate value %%%s", in.Name)
		}
		p.locals[in.Name] = in
	} else if in.HasResult() {
		return p.errf("result of %q must be named", opTok.text)
	}
	b.Append(in)
	return nil
}

// appendOperand parses one operand of the given type and stores it at the
// next argument slot, accounting for forward references.
func (p *parser) appendOperand(in *Instr, typ Type) error {
	idx := len(in.Args)
	in.Args = append(in.Args, nil)
	v, err := p.parseOperand(in, idx, typ)
	if err != nil {
		return err
	}
	in.Args[idx] = v
	return nil
}

// parseBinary parses "add <ty> <op>, <op>".
func (p *parser) parseBinary(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = ty
	if err := p.appendOperand(in, ty); err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	return p.appendOperand(in, ty)
}

// parseICmp parses "icmp <pred> <ty> <op>, <op>"; the result type is i1.
func (p *parser) parseICmp(in *Instr) error {
	predTok, ok := p.next()
	if !ok || predTok.kind != tkIdent {
		return p.errf("expected icmp predicate")
	}
	pred, known := PredFromName(predTok.text)
	if !known {
		return p.errf("unknown icmp predicate %q", predTok.text)
	}
	in.Pred = pred
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = I1
	if err := p.appendOperand(in, ty); err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	return p.appendOperand(in, ty)
}

// parseAlloca parses "alloca <ty>[, align N]"; the result is <ty>*.
func (p *parser) parseAlloca(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = &PtrType{Elem: ty}
	return p.parseAlign(in)
}

// parseLoad parses "load <ty>, <addr>[, align N]".
func (p *parser) parseLoad(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = ty
	if err := p.expectPunct(","); err != nil {
		return err
	}
	if err := p.appendOperand(in, &PtrType{Elem: ty}); err != nil {
		return err
	}
	return p.parseAlign(in)
}

// parseStore parses "store <ty> <val>, <addr>[, align N]".
func (p *parser) parseStore(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	if err := p.appendOperand(in, ty); err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	if err := p.appendOperand(in, &PtrType{Elem: ty}); err != nil {
		return err
	}
	return p.parseAlign(in)
}

func (p *parser) parseAlign(in *Instr) error {
	if !p.accept(tkPunct, ",") {
		return nil
	}
	if !p.accept(tkIdent, "align") {
		return p.errf("expected 'align'")
	}
	t, ok := p.next()
	if !ok || t.kind != tkNumber {
		return p.errf("expected alignment value")
	}
	a, err := strconv.Atoi(t.text)
	if err != nil || a <= 0 {
		return p.errf("bad alignment %q", t.text)
	}
	in.Align = a
	return nil
}

// parseGetField parses "getfield <resty> <aggr>, <index>".
func (p *parser) parseGetField(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = ty
	if err := p.appendOperand(in, ty); err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	t, ok := p.next()
	if !ok || t.kind != tkNumber {
		return p.errf("expected field index")
	}
	idx, err := strconv.Atoi(t.text)
	if err != nil || idx < 0 {
		return p.errf("bad field index %q", t.text)
	}
	in.Field = idx
	return nil
}

// parseSelect parses "select <ty> <cond>, <a>, <b>".
func (p *parser) parseSelect(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = ty
	if err := p.appendOperand(in, I1); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := p.expectPunct(","); err != nil {
			return err
		}
		if err := p.appendOperand(in, ty); err != nil {
			return err
		}
	}
	return nil
}

// parsePhi parses "phi <ty> [ <op>, %bb ], ...".
func (p *parser) parsePhi(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = ty
	for {
		if err := p.expectPunct("["); err != nil {
			return err
		}
		if err := p.appendOperand(in, ty); err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		t, ok := p.next()
		if !ok || t.kind != tkLocal {
			return p.errf("expected incoming block in phi")
		}
		in.Preds = append(in.Preds, nil)
		p.pendBlk = append(p.pendBlk, pendingBlock{
			in: in, idx: len(in.Preds) - 1, name: t.text, line: p.line, phi: true,
		})
		if err := p.expectPunct("]"); err != nil {
			return err
		}
		if !p.accept(tkPunct, ",") {
			return nil
		}
	}
}

// parseCall parses "call <retty> @f(<ty> <op>, ...)".
func (p *parser) parseCall(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = ty
	t, ok := p.next()
	if !ok || t.kind != tkGlobal {
		return p.errf("expected call target")
	}
	p.pendCallee = append(p.pendCallee, pendingCallee{in: in, name: t.text, line: p.line})
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.accept(tkPunct, ")") {
		if len(in.Args) > 0 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		argTy, err := p.parseType()
		if err != nil {
			return err
		}
		if err := p.appendOperand(in, argTy); err != nil {
			return err
		}
	}
	return nil
}

// parseCast parses "<castop> <fromty> <op> to <toty>".
func (p *parser) parseCast(in *Instr) error {
	fromTy, err := p.parseType()
	if err != nil {
		return err
	}
	if err := p.appendOperand(in, fromTy); err != nil {
		return err
	}
	if !p.accept(tkIdent, "to") {
		return p.errf("expected 'to' in cast")
	}
	toTy, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = toTy
	return nil
}

// parseBr parses "br %dest" and "br i1 <cond>, %then, %else".
func (p *parser) parseBr(in *Instr) error {
	t, ok := p.peek()
	if !ok {
		return p.errf("expected branch target")
	}
	if t.kind == tkLocal && (p.pos+1 >= len(p.toks) || p.toks[p.pos+1].kind == tkAnnot) {
		// Unconditional branch.
		p.pos++
		in.Succs = append(in.Succs, nil)
		p.pendBlk = append(p.pendBlk, pendingBlock{in: in, idx: 0, name: t.text, line: p.line})
		return nil
	}
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	if err := p.appendOperand(in, ty); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := p.expectPunct(","); err != nil {
			return err
		}
		bt, ok := p.next()
		if !ok || bt.kind != tkLocal {
			return p.errf("expected branch target")
		}
		in.Succs = append(in.Succs, nil)
		p.pendBlk = append(p.pendBlk, pendingBlock{in: in, idx: i, name: bt.text, line: p.line})
	}
	return nil
}

// parseSwitch parses "switch <ty> <op>, %default, <int>: %bb, ...".
func (p *parser) parseSwitch(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	if err := p.appendOperand(in, ty); err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	t, ok := p.next()
	if !ok || t.kind != tkLocal {
		return p.errf("expected default block")
	}
	in.Succs = append(in.Succs, nil)
	p.pendBlk = append(p.pendBlk, pendingBlock{in: in, idx: 0, name: t.text, line: p.line})
	for p.accept(tkPunct, ",") {
		caseTok, ok := p.next()
		if !ok || caseTok.kind != tkNumber {
			return p.errf("expected switch case value")
		}
		cv, err := strconv.ParseInt(caseTok.text, 10, 64)
		if err != nil {
			return p.errf("bad case value %q", caseTok.text)
		}
		if err := p.expectPunct(":"); err != nil {
			return err
		}
		bt, ok := p.next()
		if !ok || bt.kind != tkLocal {
			return p.errf("expected case block")
		}
		in.Cases = append(in.Cases, cv)
		in.Succs = append(in.Succs, nil)
		p.pendBlk = append(p.pendBlk, pendingBlock{
			in: in, idx: len(in.Succs) - 1, name: bt.text, line: p.line,
		})
	}
	return nil
}

// parseRet parses "ret void" and "ret <ty> <op>".
func (p *parser) parseRet(in *Instr) error {
	if p.accept(tkIdent, "void") {
		return nil
	}
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	return p.appendOperand(in, ty)
}

// parseAsm parses `asm <ty> "body", "constraints" (<ty> <op>, ...)`.
func (p *parser) parseAsm(in *Instr) error {
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	in.Typ = ty
	bodyTok, ok := p.next()
	if !ok || bodyTok.kind != tkString {
		return p.errf("expected asm body string")
	}
	in.Asm = bodyTok.text
	if p.accept(tkPunct, ",") {
		consTok, ok := p.next()
		if !ok || consTok.kind != tkString {
			return p.errf("expected asm constraint string")
		}
		in.Constraints = consTok.text
	}
	if !p.accept(tkPunct, "(") {
		return nil
	}
	for !p.accept(tkPunct, ")") {
		if len(in.Args) > 0 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		argTy, err := p.parseType()
		if err != nil {
			return err
		}
		if err := p.appendOperand(in, argTy); err != nil {
			return err
		}
	}
	return nil
}
