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
	"fmt"

	"github.com/irtools/semdiff/analysis/ir"
)

// Kind is the verdict of a function-pair comparison.
type Kind int

const (
	// Unknown marks comparisons that are in progress or waiting for an
	// inlining iteration.
	Unknown Kind = iota
	// Equal means the pair was walked to completion without an unresolved
	// difference.
	Equal
	// AssumedEqual is handed to an enclosing walk that re-enters a pair
	// whose comparison is still pending (optimistic cycle recovery). It is
	// never stored in the result cache.
	AssumedEqual
	// NotEqual means a difference remains after all benign-pattern rules
	// and inlining iterations.
	NotEqual
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case AssumedEqual:
		return "assumed-equal"
	case NotEqual:
		return "not-equal"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CallInfo locates one call: the callee name and the call-site position.
type CallInfo struct {
	Fun  string
	File string
	Line int
}

// CallStack is an ordered list of calls tracing how an object was reached
// from the top-level compared function.
type CallStack []CallInfo

// FunctionInfo describes one side of a compared pair: its name, definition
// site and outgoing call set.
type FunctionInfo struct {
	Name  string
	File  string
	Line  int
	Calls []CallInfo
}

// NewFunctionInfo collects the information for one function.
func NewFunctionInfo(f *ir.Func) FunctionInfo {
	info := FunctionInfo{Name: f.Name}
	if f.Loc != nil {
		info.File = f.Loc.File
		info.Line = f.Loc.Line
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			callee := in.CalledFunc()
			if callee == nil {
				continue
			}
			ci := CallInfo{Fun: callee.Name, File: info.File}
			if loc := in.Loc(); loc != nil {
				ci.File = loc.File
				ci.Line = loc.Line
			}
			info.Calls = append(info.Calls, ci)
		}
	}
	return info
}

// DiffKind discriminates non-function differences.
type DiffKind int

const (
	// SynDiff marks macro and inline-assembly differences.
	SynDiff DiffKind = iota
	// TypeDiff marks aggregate type layout differences.
	TypeDiff
)

// NonFunctionDifference is a difference in an object that is not a function:
// a macro expansion, an inline-assembly fragment, or an aggregate type.
type NonFunctionDifference interface {
	Kind() DiffKind
	// ObjectName is the name of the differing object.
	ObjectName() string
}

// SyntaxDifference is a textual difference in a macro expansion or
// inline-assembly body, with the call stacks locating the use on both sides.
type SyntaxDifference struct {
	Name         string
	BodyL, BodyR string
	StackL       CallStack
	StackR       CallStack
	// Function is the top-level compared function the difference was found
	// under.
	Function string
}

// Kind implements NonFunctionDifference.
func (d *SyntaxDifference) Kind() DiffKind { return SynDiff }

// ObjectName implements NonFunctionDifference.
func (d *SyntaxDifference) ObjectName() string { return d.Name }

// TypeDifference is a layout difference between aggregate types used at
// corresponding positions.
type TypeDifference struct {
	Name         string
	FileL, FileR string
	LineL, LineR int
	StackL       CallStack
	StackR       CallStack
	Function     string
}

// Kind implements NonFunctionDifference.
func (d *TypeDifference) Kind() DiffKind { return TypeDiff }

// ObjectName implements NonFunctionDifference.
func (d *TypeDifference) ObjectName() string { return d.Name }

// FunPair keys the result cache.
type FunPair struct {
	First  *ir.Func
	Second *ir.Func
}

// MissingDef records a callee that existed only as a declaration when
// inlining was attempted. At least one side is non-nil: the inlining loop
// fills both sides when both callees are declarations, and the declaration
// fast path records the declared side alone.
type MissingDef struct {
	First  *ir.Func
	Second *ir.Func
}

// Result is the outcome of comparing one function pair.
type Result struct {
	Kind   Kind
	First  FunctionInfo
	Second FunctionInfo
	// DifferingObjects are the non-function differences discovered during
	// the walk.
	DifferingObjects []NonFunctionDifference
	// PreInline is the verdict of the first walk when inlining iterations
	// changed the outcome; Unknown otherwise.
	PreInline Kind
}

// NewResult initializes a result for a pair with an Unknown verdict.
func NewResult(first, second *ir.Func) *Result {
	return &Result{
		Kind:   Unknown,
		First:  NewFunctionInfo(first),
		Second: NewFunctionInfo(second),
	}
}

// AddDifferingObject appends a non-function difference.
func (r *Result) AddDifferingObject(d NonFunctionDifference) {
	r.DifferingObjects = append(r.DifferingObjects, d)
}

// OverallResult aggregates the results of all compared pairs and the missing
// definitions encountered.
type OverallResult struct {
	FunctionResults []*Result
	MissingDefs     []MissingDef
}
