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

package comparator

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
)

// DebugInfo is the lookup surface of the debug-info index built by the host
// for each module. The comparator only reads it.
type DebugInfo interface {
	// TypeLoc returns the definition site of a named aggregate type.
	TypeLoc(name string) (ir.Loc, bool)
	// StructsBySize returns the names of aggregate types with the given
	// byte size.
	StructsBySize(size int) []string
}

// PatternMatcher matches the loaded difference patterns against a diverging
// module instruction pair. On success it returns the module instructions
// consumed by the match on each side; the differential comparator skips
// them.
type PatternMatcher interface {
	TryMatch(corr *Correspondence, il, ir *ir.Instr) (consumedL, consumedR []*ir.Instr, ok bool)
}

// Outcome is the verdict of one differential comparison. Res is zero when
// the functions are equal modulo the benign-pattern catalogue. InlineL and
// InlineR, when non-nil, pinpoint the call instructions whose inlining may
// make the pair equal; they are only set together with a nonzero Res.
type Outcome struct {
	Res     int
	InlineL *ir.Instr
	InlineR *ir.Instr
}

// kernelPrintFunctions are the diagnostic print functions whose argument
// differences are benign under the kernel-prints flag: string, file-name,
// line-number and expansion-site macro arguments.
var kernelPrintFunctions = map[string]bool{
	"printk":            true,
	"pr_debug":          true,
	"pr_info":           true,
	"pr_warn":           true,
	"pr_err":            true,
	"dev_dbg":           true,
	"dev_info":          true,
	"dev_warn":          true,
	"dev_err":           true,
	"seq_printf":        true,
	"sprintf":           true,
	"snprintf":          true,
	"printf_debug":      true,
	"warn_slowpath_fmt": true,
}

// IsKernelPrintFunction returns true for the fixed list of diagnostic print
// functions.
func IsKernelPrintFunction(name string) bool {
	return kernelPrintFunctions[ir.DropSuffix(name)]
}

// DifferentialFunctionComparator specializes the structural walk with the
// catalogue of known-benign difference patterns, pattern-set matching, and
// difference recording.
type DifferentialFunctionComparator struct {
	*FunctionComparator

	opts     config.Options
	diL, diR DebugInfo
	patterns PatternMatcher
	res      *Result

	// usesL and usesR are the use counts of the two functions, consulted
	// by the dead-code and unused-return rules.
	usesL map[ir.Value]int
	usesR map[ir.Value]int

	// aliasL and aliasR resolve values through skipped cast instructions.
	aliasL map[ir.Value]ir.Value
	aliasR map[ir.Value]ir.Value

	// consumed marks module instructions matched by a difference pattern.
	consumed map[*ir.Instr]bool

	// macroDiffs de-duplicates reported macro differences by macro name.
	macroDiffs map[string]bool

	// calleeCmp, when set, compares callee pairs of equal base name through
	// the module comparator, which breaks recursive cycles through its
	// result cache. Nil falls back to name-based comparison.
	calleeCmp func(cl, cr *ir.Func) Kind

	inlineL *ir.Instr
	inlineR *ir.Instr
}

// NewDifferentialFunctionComparator builds the differential comparator for
// one pair. The debug-info indexes and the pattern matcher may be nil; the
// corresponding features are then disabled.
func NewDifferentialFunctionComparator(fl, fr *ir.Func, opts config.Options,
	diL, diR DebugInfo, patterns PatternMatcher, res *Result,
	corr *Correspondence, logger *config.LogGroup) *DifferentialFunctionComparator {
	dfc := &DifferentialFunctionComparator{
		FunctionComparator: NewFunctionComparator(fl, fr, corr, logger),
		opts:               opts,
		diL:                diL,
		diR:                diR,
		patterns:           patterns,
		res:                res,
		usesL:              ir.UseCounts(fl),
		usesR:              ir.UseCounts(fr),
		aliasL:             make(map[ir.Value]ir.Value),
		aliasR:             make(map[ir.Value]ir.Value),
		consumed:           make(map[*ir.Instr]bool),
		macroDiffs:         make(map[string]bool),
	}
	dfc.Corr.SetSizeIndexes(diL, diR)
	dfc.setHooks(dfc)
	return dfc
}

// SetCalleeComparison installs the module-level callee comparison used when
// both sides call functions of the same base name.
func (dfc *DifferentialFunctionComparator) SetCalleeComparison(cmp func(cl, cr *ir.Func) Kind) {
	dfc.calleeCmp = cmp
}

// cmpGlobalValues compares function callees by base name and, when a module
// comparator is attached, by the verdict of their own comparison. Other
// globals fall back to the generic name comparison.
func (dfc *DifferentialFunctionComparator) cmpGlobalValues(l, r ir.Value) int {
	lf, lok := l.(*ir.Func)
	rf, rok := r.(*ir.Func)
	if lok && rok {
		if voidBase(lf.Name) != voidBase(rf.Name) {
			return 1
		}
		if dfc.calleeCmp != nil && dfc.calleeCmp(lf, rf) == NotEqual {
			return 1
		}
		return 0
	}
	return dfc.FunctionComparator.cmpGlobalValues(l, r)
}

// CompareDiff runs the walk and returns the outcome, including the inline
// candidates when the divergence is reducible by inlining.
func (dfc *DifferentialFunctionComparator) CompareDiff() Outcome {
	res := dfc.Compare()
	out := Outcome{Res: res}
	if res != 0 {
		out.InlineL = dfc.inlineL
		out.InlineR = dfc.inlineR
	}
	return out
}

// cmpBasicBlocks walks the two instruction streams with the benign-pattern
// catalogue applied on divergence. Unlike the generic walk, the streams may
// advance independently when a rule skips instructions on one side.
func (dfc *DifferentialFunctionComparator) cmpBasicBlocks(bl, br *ir.Block) int {
	if !dfc.Corr.RelateBlocks(bl, br) {
		return 1
	}
	if dfc.opts.ControlFlowOnly {
		return dfc.cmpBlocksControlFlow(bl, br)
	}
	i, j := 0, 0
	for {
		for i < len(bl.Instrs) && dfc.consumed[bl.Instrs[i]] {
			i++
		}
		for j < len(br.Instrs) && dfc.consumed[br.Instrs[j]] {
			j++
		}
		if i >= len(bl.Instrs) && j >= len(br.Instrs) {
			return 0
		}
		if i >= len(bl.Instrs) || j >= len(br.Instrs) {
			// One stream ended early: both blocks must end at the same
			// position.
			return 1
		}
		il, jr := bl.Instrs[i], br.Instrs[j]
		snap := dfc.Corr.Snapshot()
		if dfc.cmpInstrPair(il, jr) == 0 {
			i, j = i+1, j+1
			continue
		}
		dfc.Corr.Rollback(snap)
		if dfc.resolveDivergence(il, jr, &i, &j) {
			continue
		}
		dfc.log.Debugf("unresolved divergence in %s/%s:\n  L: %s\n  R: %s",
			dfc.FnL.Name, dfc.FnR.Name, il.String(), jr.String())
		dfc.log.Tracef("diverging instructions:\n%s", spew.Sdump(il.Op, jr.Op))
		return 1
	}
}

// cmpBlocksControlFlow compares only the terminator kind and the successor
// shape of a block pair, ignoring all data instructions.
func (dfc *DifferentialFunctionComparator) cmpBlocksControlFlow(bl, br *ir.Block) int {
	tl, tr := bl.Terminator(), br.Terminator()
	if tl == nil || tr == nil || tl.Op != tr.Op || len(tl.Succs) != len(tr.Succs) {
		return 1
	}
	for i := range tl.Succs {
		dfc.enqueueBlocks(tl.Succs[i], tr.Succs[i])
	}
	return 0
}

// cmpInstrPair compares one instruction pair with the relaxations that work
// at the instruction and operand level: alignment under struct-alignment,
// cast look-through under type-casts, macro-sourced constants under
// numerical-macros, and corresponding-but-differing aggregate result types.
func (dfc *DifferentialFunctionComparator) cmpInstrPair(il, jr *ir.Instr) int {
	if il.Op != jr.Op || len(il.Args) != len(jr.Args) {
		return 1
	}
	if !dfc.cmpTypesRelaxed(il.Type(), jr.Type(), il, jr) {
		return 1
	}
	switch il.Op {
	case ir.OpICmp:
		if il.Pred != jr.Pred {
			return 1
		}
	case ir.OpAlloca, ir.OpLoad, ir.OpStore:
		// Alignment-only differences are benign under struct-alignment.
		if il.Align != jr.Align && !dfc.opts.StructAlignment {
			return 1
		}
	case ir.OpGetField:
		if il.Field != jr.Field {
			return 1
		}
	case ir.OpSwitch:
		if len(il.Cases) != len(jr.Cases) {
			return 1
		}
		for i := range il.Cases {
			if il.Cases[i] != jr.Cases[i] {
				return 1
			}
		}
	case ir.OpAsm:
		if il.Asm != jr.Asm || il.Constraints != jr.Constraints {
			return 1
		}
	}
	if (il.Callee == nil) != (jr.Callee == nil) {
		return 1
	}
	if il.Callee != nil {
		if res := dfc.cmpGlobalValues(il.Callee, jr.Callee); res != 0 {
			return res
		}
	}
	for i := range il.Args {
		if res := dfc.cmpValuesRelaxed(il.Args[i], jr.Args[i]); res != 0 {
			return res
		}
	}
	if il.Op == ir.OpPhi {
		if len(il.Preds) != len(jr.Preds) {
			return 1
		}
		for i := range il.Preds {
			if !dfc.Corr.RelateBlocks(il.Preds[i], jr.Preds[i]) {
				return 1
			}
		}
	}
	if il.IsTerminator() {
		if len(il.Succs) != len(jr.Succs) {
			return 1
		}
		for i := range il.Succs {
			dfc.enqueueBlocks(il.Succs[i], jr.Succs[i])
		}
	}
	if il.HasResult() && jr.HasResult() {
		if !dfc.Corr.Relate(il, jr) {
			return 1
		}
	}
	return 0
}

// cmpTypesRelaxed compares result types. Two aggregate types with
// corresponding names but differing layouts are reported as a type
// difference on the side channel and then treated as corresponding, so the
// walk can continue past them.
func (dfc *DifferentialFunctionComparator) cmpTypesRelaxed(tl, tr ir.Type, il, jr *ir.Instr) bool {
	if dfc.Corr.RelateTypes(tl, tr) {
		return true
	}
	sl := namedStruct(tl)
	sr := namedStruct(tr)
	if sl != nil && sr != nil && dfc.Corr.StructLayoutsDiffer(sl, sr) {
		dfc.recordTypeDifference(sl, sr, il, jr)
		return true
	}
	return false
}

// namedStruct unwraps pointers down to a named struct type, or nil.
func namedStruct(t ir.Type) *ir.StructType {
	for {
		switch tt := t.(type) {
		case *ir.PtrType:
			t = tt.Elem
		case *ir.StructType:
			return tt
		default:
			return nil
		}
	}
}

// cmpValuesRelaxed compares operands after cast look-through, treating
// macro-sourced integer constants of equal macro name as equal under
// numerical-macros.
func (dfc *DifferentialFunctionComparator) cmpValuesRelaxed(l, r ir.Value) int {
	l = resolveAlias(dfc.aliasL, l)
	r = resolveAlias(dfc.aliasR, r)
	lc, lok := l.(*ir.Const)
	rc, rok := r.(*ir.Const)
	if lok && rok && dfc.opts.NumericalMacros &&
		lc.Kind == ir.ConstInt && rc.Kind == ir.ConstInt &&
		lc.Macro != nil && rc.Macro != nil && lc.Macro.Name == rc.Macro.Name {
		if lc.Int != rc.Int {
			dfc.recordMacroDifference(lc.Macro.Name, lc.Macro.Value, rc.Macro.Value)
		}
		return 0
	}
	return dfc.cmpValues(l, r)
}

func resolveAlias(aliases map[ir.Value]ir.Value, v ir.Value) ir.Value {
	for {
		next, ok := aliases[v]
		if !ok {
			return v
		}
		v = next
	}
}

// resolveDivergence consults the benign-pattern catalogue in its fixed
// order, then the pattern matcher. It returns true when the divergence was
// resolved and the iterators were advanced; recording the inline candidates
// does not resolve the divergence.
func (dfc *DifferentialFunctionComparator) resolveDivergence(il, jr *ir.Instr, i, j *int) bool {
	if dfc.probe(func() bool { return dfc.resolveUnusedReturn(il, jr) }) {
		*i, *j = *i+1, *j+1
		return true
	}
	if dfc.probe(func() bool { return dfc.resolveKernelPrint(il, jr) }) {
		*i, *j = *i+1, *j+1
		return true
	}
	if dfc.opts.DeadCode {
		if dfc.isDeadInstr(il, dfc.usesL) {
			*i++
			return true
		}
		if dfc.isDeadInstr(jr, dfc.usesR) {
			*j++
			return true
		}
	}
	if dfc.opts.TypeCasts {
		if skippableCast(il) {
			dfc.aliasL[il] = resolveAlias(dfc.aliasL, il.Args[0])
			*i++
			return true
		}
		if skippableCast(jr) {
			dfc.aliasR[jr] = resolveAlias(dfc.aliasR, jr.Args[0])
			*j++
			return true
		}
	}
	if dfc.probe(func() bool { return dfc.resolveAsmDifference(il, jr) }) {
		*i, *j = *i+1, *j+1
		return true
	}
	if dfc.patterns != nil {
		if consumedL, consumedR, ok := dfc.patterns.TryMatch(dfc.Corr, il, jr); ok {
			dfc.log.Debugf("difference pattern matched at %s / %s", il.String(), jr.String())
			for _, in := range consumedL {
				dfc.consumed[in] = true
			}
			for _, in := range consumedR {
				dfc.consumed[in] = true
			}
			return true
		}
	}
	// A pair of direct calls to callees of different identity is the
	// inlining case; the sole legal exit with inline candidates set.
	if dfc.opts.FunctionSplits {
		lCall := il.Op == ir.OpCall && il.CalledFunc() != nil
		rCall := jr.Op == ir.OpCall && jr.CalledFunc() != nil
		switch {
		case lCall && rCall:
			if il.CalledFunc().BaseName() != jr.CalledFunc().BaseName() {
				dfc.inlineL, dfc.inlineR = il, jr
			}
		case lCall:
			dfc.inlineL = il
		case rCall:
			dfc.inlineR = jr
		}
	}
	return false
}

// probe runs one resolution rule, rolling back any relations it installed
// when the rule declines. Keeps the bijection clean across failed attempts.
func (dfc *DifferentialFunctionComparator) probe(rule func() bool) bool {
	snap := dfc.Corr.Snapshot()
	if rule() {
		return true
	}
	dfc.Corr.Rollback(snap)
	return false
}

// voidBase strips the ".void" marker of an unused-return-value variant and
// any numeric suffix from a function name.
func voidBase(name string) string {
	name = ir.DropSuffix(name)
	const marker = ".void"
	if len(name) > len(marker) && name[len(name)-len(marker):] == marker {
		name = name[:len(name)-len(marker)]
	}
	return ir.DropSuffix(name)
}

// resolveUnusedReturn treats a call whose never-read result type differs
// from the void return on the other side as equal.
func (dfc *DifferentialFunctionComparator) resolveUnusedReturn(il, jr *ir.Instr) bool {
	if !dfc.opts.UnusedReturnTypes {
		return false
	}
	if il.Op != ir.OpCall || jr.Op != ir.OpCall {
		return false
	}
	cl, cr := il.CalledFunc(), jr.CalledFunc()
	if cl == nil || cr == nil || voidBase(cl.Name) != voidBase(cr.Name) {
		return false
	}
	lVoid := !il.HasResult()
	rVoid := !jr.HasResult()
	if lVoid == rVoid {
		return false
	}
	if !lVoid && dfc.usesL[il] > 0 || !rVoid && dfc.usesR[jr] > 0 {
		return false
	}
	if len(il.Args) != len(jr.Args) {
		return false
	}
	for i := range il.Args {
		if dfc.cmpValuesRelaxed(il.Args[i], jr.Args[i]) != 0 {
			return false
		}
	}
	return true
}

// resolveKernelPrint treats calls to a diagnostic print function as equal
// when the only differing arguments are string literals or macro-sourced
// values, recording the textual difference on the side channel.
func (dfc *DifferentialFunctionComparator) resolveKernelPrint(il, jr *ir.Instr) bool {
	if !dfc.opts.KernelPrints {
		return false
	}
	if il.Op != ir.OpCall || jr.Op != ir.OpCall {
		return false
	}
	cl, cr := il.CalledFunc(), jr.CalledFunc()
	if cl == nil || cr == nil || cl.BaseName() != cr.BaseName() ||
		!IsKernelPrintFunction(cl.Name) {
		return false
	}
	if len(il.Args) != len(jr.Args) {
		return false
	}
	type diff struct {
		name         string
		bodyL, bodyR string
	}
	var diffs []diff
	for i := range il.Args {
		if dfc.cmpValuesRelaxed(il.Args[i], jr.Args[i]) == 0 {
			continue
		}
		lc, lok := il.Args[i].(*ir.Const)
		rc, rok := jr.Args[i].(*ir.Const)
		if !lok || !rok {
			return false
		}
		switch {
		case lc.Macro != nil && rc.Macro != nil && lc.Macro.Name == rc.Macro.Name:
			diffs = append(diffs, diff{lc.Macro.Name, lc.Macro.Value, rc.Macro.Value})
		case lc.Kind == ir.ConstString && rc.Kind == ir.ConstString:
			// Plain string arguments of print functions are benign;
			// report the bodies under the callee's name.
			diffs = append(diffs, diff{cl.BaseName(), lc.Str, rc.Str})
		case lc.Kind == ir.ConstInt && rc.Kind == ir.ConstInt:
			// Line-number style arguments.
			diffs = append(diffs, diff{cl.BaseName(), lc.Text(), rc.Text()})
		default:
			return false
		}
	}
	for _, d := range diffs {
		dfc.recordSyntaxDifference(d.name, d.bodyL, d.bodyR, il, jr)
	}
	return true
}

// resolveAsmDifference records differing inline-assembly bodies of an
// otherwise matching pair as a syntax difference.
func (dfc *DifferentialFunctionComparator) resolveAsmDifference(il, jr *ir.Instr) bool {
	if il.Op != ir.OpAsm || jr.Op != ir.OpAsm {
		return false
	}
	if il.Asm == jr.Asm && il.Constraints == jr.Constraints {
		return false
	}
	if len(il.Args) != len(jr.Args) {
		return false
	}
	for i := range il.Args {
		if dfc.cmpValuesRelaxed(il.Args[i], jr.Args[i]) != 0 {
			return false
		}
	}
	if !dfc.Corr.RelateTypes(il.Type(), jr.Type()) {
		return false
	}
	if il.HasResult() && jr.HasResult() && !dfc.Corr.Relate(il, jr) {
		return false
	}
	if dfc.opts.PrintAsmDiffs {
		dfc.recordSyntaxDifference(asmDiffName(il), il.Asm, jr.Asm, il, jr)
	}
	return true
}

func asmDiffName(in *ir.Instr) string {
	if loc := in.Loc(); loc != nil {
		return "inline-asm@" + loc.String()
	}
	return "inline-asm"
}

// isDeadInstr returns true for instructions whose results are unused and
// that have no side effects.
func (dfc *DifferentialFunctionComparator) isDeadInstr(in *ir.Instr, uses map[ir.Value]int) bool {
	if in.HasSideEffects() {
		return false
	}
	return uses[in] == 0
}

// skippableCast returns true for bit-width-preserving pointer and integer
// casts.
func skippableCast(in *ir.Instr) bool {
	if !in.IsCast() || len(in.Args) != 1 || in.Args[0] == nil {
		return false
	}
	from := in.Args[0].Type()
	to := in.Type()
	return ir.BitSize(from) == ir.BitSize(to) && ir.BitSize(from) != 0
}

func (dfc *DifferentialFunctionComparator) recordMacroDifference(name, bodyL, bodyR string) {
	if dfc.res == nil || dfc.macroDiffs[name] {
		return
	}
	dfc.macroDiffs[name] = true
	dfc.res.AddDifferingObject(&SyntaxDifference{
		Name:     name,
		BodyL:    bodyL,
		BodyR:    bodyR,
		StackL:   CallStack{{Fun: dfc.FnL.Name}},
		StackR:   CallStack{{Fun: dfc.FnR.Name}},
		Function: dfc.FnL.Name,
	})
}

func (dfc *DifferentialFunctionComparator) recordSyntaxDifference(name, bodyL, bodyR string, il, jr *ir.Instr) {
	if dfc.res == nil {
		return
	}
	if name != "" && dfc.macroDiffs[name+"\x00"+bodyL+"\x00"+bodyR] {
		return
	}
	dfc.macroDiffs[name+"\x00"+bodyL+"\x00"+bodyR] = true
	dfc.res.AddDifferingObject(&SyntaxDifference{
		Name:     name,
		BodyL:    bodyL,
		BodyR:    bodyR,
		StackL:   stackFor(dfc.FnL, il),
		StackR:   stackFor(dfc.FnR, jr),
		Function: dfc.FnL.Name,
	})
}

func (dfc *DifferentialFunctionComparator) recordTypeDifference(sl, sr *ir.StructType, il, jr *ir.Instr) {
	if dfc.res == nil {
		return
	}
	d := &TypeDifference{
		Name:     ir.DropSuffix(sl.Name),
		StackL:   stackFor(dfc.FnL, il),
		StackR:   stackFor(dfc.FnR, jr),
		Function: dfc.FnL.Name,
	}
	if loc := structLoc(dfc.diL, sl); loc != nil {
		d.FileL, d.LineL = loc.File, loc.Line
	}
	if loc := structLoc(dfc.diR, sr); loc != nil {
		d.FileR, d.LineR = loc.File, loc.Line
	}
	dfc.res.AddDifferingObject(d)
}

func structLoc(di DebugInfo, st *ir.StructType) *ir.Loc {
	if di != nil {
		if loc, ok := di.TypeLoc(st.Name); ok {
			return &loc
		}
	}
	if st.Loc != nil {
		return st.Loc
	}
	return nil
}

// stackFor builds the call stack locating an instruction: the top-level
// compared function, annotated with the instruction's source position.
func stackFor(f *ir.Func, in *ir.Instr) CallStack {
	ci := CallInfo{Fun: f.Name}
	if f.Loc != nil {
		ci.File = f.Loc.File
		ci.Line = f.Loc.Line
	}
	if loc := in.Loc(); loc != nil {
		ci.File = loc.File
		ci.Line = loc.Line
	}
	return CallStack{ci}
}
