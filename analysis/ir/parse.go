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
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ParseFile reads and parses a textual IR module from a file.
func ParseFile(path string) (*Module, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read module file: %w", err)
	}
	return Parse(path, string(b))
}

// Parse parses a textual IR module. The filename is used in error positions
// only.
func Parse(filename string, src string) (*Module, error) {
	p := &parser{
		filename: filename,
		mod:      NewModule(filename),
	}
	if err := p.run(src); err != nil {
		return nil, err
	}
	return p.mod, nil
}

type tokKind int

const (
	tkIdent tokKind = iota
	tkLocal
	tkGlobal
	tkNumber
	tkString
	tkPunct
	tkAnnot
)

type token struct {
	kind tokKind
	// text is the token body without sigils: the name for locals, globals
	// and annotations, the unquoted value for strings.
	text string
}

type parser struct {
	filename string
	mod      *Module
	line     int

	// toks is the token stream of the current line; pos indexes into it.
	toks []token
	pos  int

	// Per-function state.
	fn      *Func
	locals  map[string]Value
	pendVal []pendingValue
	pendBlk []pendingBlock

	// Module-level call fixups: callees may be defined later in the file.
	pendCallee []pendingCallee
}

type pendingValue struct {
	in   *Instr
	idx  int
	name string
	line int
}

type pendingBlock struct {
	in   *Instr
	idx  int
	name string
	line int
	phi  bool
}

type pendingCallee struct {
	in   *Instr
	name string
	line int
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", p.filename, p.line, fmt.Sprintf(format, args...))
}

// scanLine tokenizes one source line, stripping comments.
func (p *parser) scanLine(s string) error {
	p.toks = p.toks[:0]
	p.pos = 0
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case c == ';':
			return nil
		case unicode.IsSpace(c):
			i++
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return p.errf("unterminated string")
			}
			unq, err := strconv.Unquote(s[i : j+1])
			if err != nil {
				return p.errf("bad string literal %s", s[i:j+1])
			}
			p.toks = append(p.toks, token{tkString, unq})
			i = j + 1
		case c == '%' || c == '@' || c == '!':
			kind := tkLocal
			if c == '@' {
				kind = tkGlobal
			} else if c == '!' {
				kind = tkAnnot
			}
			j := i + 1
			for j < len(s) && isNameChar(s[j]) {
				j++
			}
			if j == i+1 {
				return p.errf("empty name after %q", string(c))
			}
			p.toks = append(p.toks, token{kind, s[i+1 : j]})
			i = j
		case c == '-' || unicode.IsDigit(c):
			j := i + 1
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.') {
				j++
			}
			p.toks = append(p.toks, token{tkNumber, s[i:j]})
			i = j
		case strings.ContainsRune(",(){}[]=:*", c):
			p.toks = append(p.toks, token{tkPunct, string(c)})
			i++
		case c == '.' && strings.HasPrefix(s[i:], "..."):
			p.toks = append(p.toks, token{tkIdent, "..."})
			i += 3
		case isNameChar(s[i]):
			j := i
			for j < len(s) && isNameChar(s[j]) {
				j++
			}
			p.toks = append(p.toks, token{tkIdent, s[i:j]})
			i = j
		default:
			return p.errf("unexpected character %q", string(c))
		}
	}
	return nil
}

func isNameChar(c byte) bool {
	return c == '_' || c == '.' || c == '-' ||
		c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) accept(kind tokKind, text string) bool {
	t, ok := p.peek()
	if ok && t.kind == kind && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectPunct(text string) error {
	if !p.accept(tkPunct, text) {
		return p.errf("expected %q", text)
	}
	return nil
}

func (p *parser) atEnd() bool {
	_, ok := p.peek()
	return !ok
}

// run drives line-oriented parsing of the whole module.
func (p *parser) run(src string) error {
	lines := strings.Split(src, "\n")
	var curBlock *Block
	for n, raw := range lines {
		p.line = n + 1
		if err := p.scanLine(raw); err != nil {
			return err
		}
		if p.atEnd() {
			continue
		}
		t, _ := p.peek()

		// Inside a function body.
		if p.fn != nil {
			if t.kind == tkPunct && t.text == "}" {
				if err := p.endFunc(); err != nil {
					return err
				}
				curBlock = nil
				continue
			}
			// A block label is "name:".
			if t.kind == tkIdent && p.pos+1 < len(p.toks) &&
				p.toks[p.pos+1] == (token{tkPunct, ":"}) && len(p.toks) == 2 {
				b := &Block{Name: t.text}
				if p.fn.Block(t.text) != nil {
					return p.errf("duplicate block %%%s", t.text)
				}
				p.fn.AddBlock(b)
				curBlock = b
				continue
			}
			if curBlock == nil {
				return p.errf("instruction outside of a block")
			}
			if err := p.parseInstr(curBlock); err != nil {
				return err
			}
			continue
		}

		switch {
		case t.kind == tkIdent && t.text == "module":
			p.pos++
			if name, ok := p.next(); ok && name.kind == tkString {
				p.mod.Name = name.text
			} else {
				return p.errf("expected module name string")
			}
		case t.kind == tkIdent && t.text == "type":
			if err := p.parseTypeDef(); err != nil {
				return err
			}
		case t.kind == tkIdent && t.text == "global":
			if err := p.parseGlobal(); err != nil {
				return err
			}
		case t.kind == tkIdent && (t.text == "define" || t.text == "declare"):
			if err := p.parseFuncHeader(t.text == "define"); err != nil {
				return err
			}
		default:
			return p.errf("unexpected token %q at top level", t.text)
		}
	}
	if p.fn != nil {
		return p.errf("unterminated function body for @%s", p.fn.Name)
	}
	return p.resolveCallees()
}

// parseTypeDef parses "type %name = { i32, i64 }" with optional !dbg.
func (p *parser) parseTypeDef() error {
	p.pos++ // "type"
	nameTok, ok := p.next()
	if !ok || nameTok.kind != tkLocal {
		return p.errf("expected type name")
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	var fields []Type
	for !p.accept(tkPunct, "}") {
		if len(fields) > 0 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		ft, err := p.parseType()
		if err != nil {
			return err
		}
		fields = append(fields, ft)
	}
	meta, err := p.parseAnnotations()
	if err != nil {
		return err
	}
	st := p.mod.StructByName(nameTok.text)
	if st != nil {
		if st.Fields != nil {
			return p.errf("duplicate type %%%s", nameTok.text)
		}
		st.Fields = fields
	} else {
		st = &StructType{Name: nameTok.text, Fields: fields}
		if err := p.mod.AddType(st); err != nil {
			return p.errf("%v", err)
		}
	}
	if meta != nil {
		st.Loc = meta.Loc
	}
	return p.endOfLine()
}

// parseGlobal parses "global @name <type>" with optional !dbg.
func (p *parser) parseGlobal() error {
	p.pos++ // "global"
	nameTok, ok := p.next()
	if !ok || nameTok.kind != tkGlobal {
		return p.errf("expected global name")
	}
	typ, err := p.parseType()
	if err != nil {
		return err
	}
	meta, err := p.parseAnnotations()
	if err != nil {
		return err
	}
	g := &Global{Name: nameTok.text, Typ: typ}
	if meta != nil {
		g.Loc = meta.Loc
	}
	if err := p.mod.AddGlobal(g); err != nil {
		return p.errf("%v", err)
	}
	return p.endOfLine()
}

// parseFuncHeader parses "define @f(i32 %a, ...) i32 [callconv] {" and
// "declare @f(i32, ...) i32".
func (p *parser) parseFuncHeader(define bool) error {
	p.pos++ // "define" / "declare"
	nameTok, ok := p.next()
	if !ok || nameTok.kind != tkGlobal {
		return p.errf("expected function name")
	}
	f := &Func{Name: nameTok.text}
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.accept(tkPunct, ")") {
		if len(f.Params) > 0 || f.Variadic {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		if p.accept(tkIdent, "...") {
			f.Variadic = true
			continue
		}
		pt, err := p.parseType()
		if err != nil {
			return err
		}
		param := &Param{Typ: pt, Index: len(f.Params), Parent: f}
		if t, ok := p.peek(); ok && t.kind == tkLocal {
			p.pos++
			param.Name = t.text
		} else {
			param.Name = fmt.Sprintf("arg%d", len(f.Params))
		}
		f.Params = append(f.Params, param)
	}
	ret, err := p.parseType()
	if err != nil {
		return err
	}
	f.Ret = ret
	if t, ok := p.peek(); ok && t.kind == tkIdent {
		p.pos++
		f.CallConv = t.text
	}
	meta, err := p.parseAnnotations()
	if err != nil {
		return err
	}
	if meta != nil {
		f.Loc = meta.Loc
	}
	if define {
		if err := p.expectPunct("{"); err != nil {
			return err
		}
		p.fn = f
		p.locals = make(map[string]Value)
		for _, param := range f.Params {
			p.locals[param.Name] = param
		}
		p.pendVal = nil
		p.pendBlk = nil
	}
	if err := p.mod.AddFunc(f); err != nil {
		return p.errf("%v", err)
	}
	return p.endOfLine()
}

// endFunc resolves pending value and block references at the closing brace.
func (p *parser) endFunc() error {
	for _, pv := range p.pendVal {
		v, ok := p.locals[pv.name]
		if !ok {
			return fmt.Errorf("%s:%d: undefined value %%%s", p.filename, pv.line, pv.name)
		}
		pv.in.Args[pv.idx] = v
	}
	for _, pb := range p.pendBlk {
		b := p.fn.Block(pb.name)
		if b == nil {
			return fmt.Errorf("%s:%d: undefined block %%%s", p.filename, pb.line, pb.name)
		}
		if pb.phi {
			pb.in.Preds[pb.idx] = b
		} else {
			pb.in.Succs[pb.idx] = b
		}
	}
	for _, b := range p.fn.Blocks {
		if b.Terminator() == nil {
			return fmt.Errorf("%s: block %%%s of @%s has no terminator",
				p.filename, b.Name, p.fn.Name)
		}
	}
	p.fn = nil
	p.locals = nil
	return nil
}

// resolveCallees resolves call targets once the whole module is parsed.
func (p *parser) resolveCallees() error {
	for _, pc := range p.pendCallee {
		if f := p.mod.Fn(pc.name); f != nil {
			pc.in.Callee = f
			continue
		}
		if g := p.mod.GlobalVar(pc.name); g != nil {
			pc.in.Callee = g
			continue
		}
		return fmt.Errorf("%s:%d: call to undefined symbol @%s", p.filename, pc.line, pc.name)
	}
	p.pendCallee = nil
	return nil
}

func (p *parser) parseType() (Type, error) {
	t, ok := p.next()
	if !ok {
		return nil, p.errf("expected type")
	}
	var base Type
	switch {
	case t.kind == tkIdent && t.text == "void":
		base = Void
	case t.kind == tkIdent && strings.HasPrefix(t.text, "i"):
		bits, err := strconv.Atoi(t.text[1:])
		if err != nil || bits <= 0 {
			return nil, p.errf("bad integer type %q", t.text)
		}
		base = &IntType{Bits: bits}
	case t.kind == tkIdent && (t.text == "f32" || t.text == "f64"):
		bits, _ := strconv.Atoi(t.text[1:])
		base = &FloatType{Bits: bits}
	case t.kind == tkLocal:
		st := p.mod.StructByName(t.text)
		if st == nil {
			st = &StructType{Name: t.text}
			if err := p.mod.AddType(st); err != nil {
				return nil, p.errf("%v", err)
			}
		}
		base = st
	case t.kind == tkPunct && t.text == "[":
		n, ok := p.next()
		if !ok || n.kind != tkNumber {
			return nil, p.errf("expected array length")
		}
		ln, err := strconv.Atoi(n.text)
		if err != nil {
			return nil, p.errf("bad array length %q", n.text)
		}
		if !p.accept(tkIdent, "x") {
			return nil, p.errf("expected 'x' in array type")
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		base = &ArrayType{Len: ln, Elem: elem}
	default:
		return nil, p.errf("expected type, got %q", t.text)
	}
	for p.accept(tkPunct, "*") {
		base = &PtrType{Elem: base}
	}
	return base, nil
}

// parseOperand parses a value operand of the expected type, with an optional
// trailing !macro annotation on constants.
func (p *parser) parseOperand(in *Instr, idx int, typ Type) (Value, error) {
	t, ok := p.next()
	if !ok {
		return nil, p.errf("expected operand")
	}
	var v Value
	switch {
	case t.kind == tkLocal:
		if local, ok := p.locals[t.text]; ok {
			v = local
		} else {
			p.pendVal = append(p.pendVal, pendingValue{in: in, idx: idx, name: t.text, line: p.line})
			v = nil // placeholder, fixed up in endFunc
		}
	case t.kind == tkGlobal:
		if g := p.mod.GlobalVar(t.text); g != nil {
			v = g
		} else if f := p.mod.Fn(t.text); f != nil {
			v = f
		} else {
			return nil, p.errf("undefined global @%s", t.text)
		}
	case t.kind == tkNumber:
		if _, isFloat := typ.(*FloatType); isFloat || strings.Contains(t.text, ".") {
			fv, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, p.errf("bad float literal %q", t.text)
			}
			v = &Const{Kind: ConstFloat, Typ: typ, Float: fv}
		} else {
			iv, err := strconv.ParseInt(t.text, 10, 64)
			if err != nil {
				return nil, p.errf("bad integer literal %q", t.text)
			}
			v = &Const{Kind: ConstInt, Typ: typ, Int: iv}
		}
	case t.kind == tkString:
		v = &Const{Kind: ConstString, Typ: typ, Str: t.text}
	case t.kind == tkIdent && t.text == "null":
		v = &Const{Kind: ConstNull, Typ: typ}
	default:
		return nil, p.errf("expected operand, got %q", t.text)
	}
	// Optional macro-origin record on constants.
	if nt, ok := p.peek(); ok && nt.kind == tkAnnot && nt.text == "macro" {
		p.pos++
		macro, err := p.parseMacroAnnot()
		if err != nil {
			return nil, err
		}
		c, isConst := v.(*Const)
		if !isConst {
			return nil, p.errf("!macro annotation on a non-constant operand")
		}
		c.Macro = macro
		if macro.Value == "" {
			macro.Value = c.Text()
		}
	}
	return v, nil
}

func (p *parser) parseMacroAnnot() (*MacroRef, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	nameTok, ok := p.next()
	if !ok || nameTok.kind != tkString {
		return nil, p.errf("expected macro name string")
	}
	m := &MacroRef{Name: nameTok.text}
	if p.accept(tkPunct, ",") {
		valTok, ok := p.next()
		if !ok || valTok.kind != tkString {
			return nil, p.errf("expected macro value string")
		}
		m.Value = valTok.text
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return m, nil
}

// parseAnnotations parses trailing !dbg / !pattern annotations.
func (p *parser) parseAnnotations() (*Metadata, error) {
	var meta *Metadata
	for {
		t, ok := p.peek()
		if !ok || t.kind != tkAnnot {
			break
		}
		p.pos++
		if meta == nil {
			meta = &Metadata{}
		}
		switch t.text {
		case "dbg":
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			fileTok, ok := p.next()
			if !ok || fileTok.kind != tkString {
				return nil, p.errf("expected file string in !dbg")
			}
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
			lineTok, ok := p.next()
			if !ok || lineTok.kind != tkNumber {
				return nil, p.errf("expected line number in !dbg")
			}
			line, err := strconv.Atoi(lineTok.text)
			if err != nil {
				return nil, p.errf("bad line number %q", lineTok.text)
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			meta.Loc = &Loc{File: fileTok.text, Line: line}
		case "pattern":
			pm, err := p.parsePatternAnnot()
			if err != nil {
				return nil, err
			}
			meta.Pattern = pm
		default:
			return nil, p.errf("unknown annotation !%s", t.text)
		}
	}
	return meta, nil
}

// endOfLine rejects trailing garbage after a fully parsed line.
func (p *parser) endOfLine() error {
	if !p.atEnd() {
		t, _ := p.peek()
		return p.errf("trailing token %q", t.text)
	}
	return nil
}

func (p *parser) parsePatternAnnot() (*PatternMeta, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	pm := &PatternMeta{BasicBlockLimit: -1}
	for {
		t, ok := p.next()
		if !ok || t.kind != tkIdent {
			return nil, p.errf("expected pattern marker")
		}
		switch t.text {
		case "start":
			pm.Start = true
		case "end":
			pm.End = true
		case "bb-limit-end":
			pm.BasicBlockLimitEnd = true
		case "bb-limit":
			n, ok := p.next()
			if !ok || n.kind != tkNumber {
				return nil, p.errf("expected limit after bb-limit")
			}
			limit, err := strconv.Atoi(n.text)
			if err != nil {
				return nil, p.errf("bad bb-limit %q", n.text)
			}
			pm.BasicBlockLimit = limit
		default:
			return nil, p.errf("unknown pattern marker %q", t.text)
		}
		if p.accept(tkPunct, ")") {
			return pm, nil
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
	}
}
