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

// semdiff: compares two versions of an IR module and reports, for each
// requested function pair, whether the versions are semantically equal
// under the configured set of known-benign syntactic transformations.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/irtools/semdiff/analysis"
	"github.com/irtools/semdiff/analysis/comparator"
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/internal/formatutil"
	"github.com/irtools/semdiff/internal/funcutil"
)

var (
	configFlag   = flag.String("config", "", "Path of the yaml configuration file")
	firstFlag    = flag.String("first", "", "Path of the first (old) IR module")
	secondFlag   = flag.String("second", "", "Path of the second (new) IR module")
	patternsFlag = flag.String("patterns", "", "Path of the pattern-catalogue configuration file")
	statsFlag    = flag.Bool("stats", false, "Print module statistics before comparing")
	logFlag      = flag.Int("log", 0, "Log level (1=error .. 5=trace)")
	funcsFlag    funcList

	// Per-flag overrides of the benign-pattern toggles; only flags given on
	// the command line override the configuration file.
	structAlignmentFlag = flag.Bool("struct-alignment", true, "Treat alignment-only differences as equal")
	functionSplitsFlag  = flag.Bool("function-splits", true, "Inline split-out callees and re-compare")
	unusedReturnFlag    = flag.Bool("unused-return-types", true, "Treat never-read returns against void as equal")
	kernelPrintsFlag    = flag.Bool("kernel-prints", true, "Ignore benign diagnostic print argument changes")
	deadCodeFlag        = flag.Bool("dead-code", true, "Ignore unused side-effect-free instructions")
	numericalMacrosFlag = flag.Bool("numerical-macros", true, "Ignore value changes of named macros")
	typeCastsFlag       = flag.Bool("type-casts", false, "Ignore bit-width-preserving casts")
	controlFlowFlag     = flag.Bool("control-flow-only", false, "Compare control flow only")
)

func init() {
	flag.Var(&funcsFlag, "fn", "Function to compare; either name or first:second. Repeatable.")
}

// funcList accumulates repeated -fn flags.
type funcList []config.SymbolPair

func (fl *funcList) String() string {
	parts := funcutil.Map(*fl, func(p config.SymbolPair) string {
		if p.Second == "" {
			return p.First
		}
		return p.First + ":" + p.Second
	})
	return strings.Join(parts, ",")
}

func (fl *funcList) Set(s string) error {
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		first, second, _ := strings.Cut(entry, ":")
		*fl = append(*fl, config.SymbolPair{First: first, Second: second})
	}
	return nil
}

const usage = `Compare the functions of two IR module versions for semantic equality.
Usage:
  semdiff [options] -first old.ir -second new.ir -fn function
`

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if cfg.FirstModule == "" || cfg.SecondModule == "" || len(cfg.Compare) == 0 {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := config.NewLogGroup(cfg)
	fmt.Fprintln(os.Stderr, formatutil.Faint("Reading modules"))

	start := time.Now()
	overall, err := analysis.Run(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatutil.Red(fmt.Sprintf("Comparison failed: %v", err)))
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr,
		formatutil.Faint(fmt.Sprintf("Compared %d pairs in %.3f s",
			len(overall.FunctionResults), time.Since(start).Seconds())))

	if *statsFlag {
		printStats(cfg, logger)
	}

	notEqual := report(overall, cfg)
	if notEqual > 0 {
		os.Exit(1)
	}
}

// loadConfig merges the configuration file with the command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.NewDefault()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *firstFlag != "" {
		cfg.FirstModule = *firstFlag
	}
	if *secondFlag != "" {
		cfg.SecondModule = *secondFlag
	}
	if *patternsFlag != "" {
		cfg.PatternConfig = *patternsFlag
	}
	if *logFlag != 0 {
		cfg.LogLevel = *logFlag
	}
	// Apply only the toggles the user actually set, so that command-line
	// overrides never clobber the config file with flag defaults.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "struct-alignment":
			cfg.StructAlignment = *structAlignmentFlag
		case "function-splits":
			cfg.FunctionSplits = *functionSplitsFlag
		case "unused-return-types":
			cfg.UnusedReturnTypes = *unusedReturnFlag
		case "kernel-prints":
			cfg.KernelPrints = *kernelPrintsFlag
		case "dead-code":
			cfg.DeadCode = *deadCodeFlag
		case "numerical-macros":
			cfg.NumericalMacros = *numericalMacrosFlag
		case "type-casts":
			cfg.TypeCasts = *typeCastsFlag
		case "control-flow-only":
			cfg.ControlFlowOnly = *controlFlowFlag
		}
	})
	cfg.Compare = append(cfg.Compare, funcsFlag...)
	return cfg, nil
}

func printStats(cfg *config.Config, logger *config.LogGroup) {
	// Statistics are computed on the already-simplified modules; reload so
	// the numbers match what the comparator saw at the start.
	pair, err := analysis.LoadModulePair(cfg.FirstModule, cfg.SecondModule, logger)
	if err != nil {
		return
	}
	analysis.ComputeStatistics(pair.First).Print(os.Stderr, "first")
	analysis.ComputeStatistics(pair.Second).Print(os.Stderr, "second")
}

// report prints the per-pair verdicts and differences, returning the number
// of pairs found not equal.
func report(overall *comparator.OverallResult, cfg *config.Config) int {
	notEqual := 0
	for _, res := range overall.FunctionResults {
		verdict := res.Kind.String()
		switch res.Kind {
		case comparator.Equal, comparator.AssumedEqual:
			verdict = formatutil.Green(verdict)
		case comparator.NotEqual:
			verdict = formatutil.Red(verdict)
			notEqual++
		default:
			verdict = formatutil.Yellow(verdict)
		}
		fmt.Printf("%s / %s: %s\n", res.First.Name, res.Second.Name, verdict)
		if res.PreInline == comparator.NotEqual && res.Kind == comparator.Equal {
			fmt.Printf("  %s\n", formatutil.Faint("equal only after inlining"))
		}
		for _, obj := range res.DifferingObjects {
			printDifference(obj, cfg)
		}
	}
	for _, md := range overall.MissingDefs {
		if md.First != nil {
			fmt.Printf("%s\n", formatutil.Yellow("missing definition in first module: "+md.First.Name))
		}
		if md.Second != nil {
			fmt.Printf("%s\n", formatutil.Yellow("missing definition in second module: "+md.Second.Name))
		}
	}
	return notEqual
}

func printDifference(obj comparator.NonFunctionDifference, cfg *config.Config) {
	switch d := obj.(type) {
	case *comparator.SyntaxDifference:
		fmt.Printf("  syntax difference in %s: %q vs %q\n", d.Name,
			formatutil.Sanitize(d.BodyL), formatutil.Sanitize(d.BodyR))
		if cfg.PrintCallStacks {
			printStack("    first:  ", d.StackL)
			printStack("    second: ", d.StackR)
		}
	case *comparator.TypeDifference:
		fmt.Printf("  type difference in %s: %s:%d vs %s:%d\n", d.Name,
			d.FileL, d.LineL, d.FileR, d.LineR)
		if cfg.PrintCallStacks {
			printStack("    first:  ", d.StackL)
			printStack("    second: ", d.StackR)
		}
	}
}

func printStack(prefix string, stack comparator.CallStack) {
	for _, ci := range stack {
		if ci.File == "" {
			fmt.Printf("%s%s\n", prefix, ci.Fun)
		} else {
			fmt.Printf("%s%s (%s:%d)\n", prefix, ci.Fun, ci.File, ci.Line)
		}
	}
}
