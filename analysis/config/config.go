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

package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config drives one comparison run: the two input modules, the seed symbol
// pairs to compare, the benign-pattern toggles and the pattern catalogue.
// If some field is not defined in the config file, it keeps its default.
type Config struct {
	Options

	sourceFile string

	// FirstModule and SecondModule are the paths of the two IR modules to
	// compare.
	FirstModule  string `yaml:"first-module"`
	SecondModule string `yaml:"second-module"`

	// PatternConfig is the path of the pattern-catalogue configuration file.
	// Empty means no pattern matching.
	PatternConfig string `yaml:"pattern-config"`

	// Compare lists the seed symbol pairs. A pair with an empty Second
	// compares the same symbol name on both sides.
	Compare []SymbolPair `yaml:"compare"`
}

// SymbolPair names one function on each side of the comparison.
type SymbolPair struct {
	First  string `yaml:"first"`
	Second string `yaml:"second"`
}

// Options are the flags controlling which syntactic difference patterns are
// treated as semantically equal, plus output and logging settings.
type Options struct {
	// StructAlignment ignores alignment-only differences on aggregate
	// loads, stores and allocas.
	StructAlignment bool `yaml:"struct-alignment"`

	// FunctionSplits treats code inlined on one side and factored into a
	// callee on the other as equal, driving the inlining loop.
	FunctionSplits bool `yaml:"function-splits"`

	// UnusedReturnTypes treats a never-read non-void return type against a
	// void return as equal.
	UnusedReturnTypes bool `yaml:"unused-return-types"`

	// KernelPrints ignores differences in calls to diagnostic print
	// functions when the differing argument is a string or a
	// location-related macro value.
	KernelPrints bool `yaml:"kernel-prints"`

	// DeadCode ignores instructions whose results are unused and that have
	// no side effects.
	DeadCode bool `yaml:"dead-code"`

	// NumericalMacros ignores integer constants differing only in value
	// when both originate from a named macro.
	NumericalMacros bool `yaml:"numerical-macros"`

	// TypeCasts ignores bit-width-preserving pointer and integer casts.
	// Off by default.
	TypeCasts bool `yaml:"type-casts"`

	// ControlFlowOnly ignores all data differences and compares only the
	// block-graph shape and terminator kinds. Off by default.
	ControlFlowOnly bool `yaml:"control-flow-only"`

	// PrintAsmDiffs reports raw differences in inline assembly.
	PrintAsmDiffs bool `yaml:"print-asm-diffs"`

	// PrintCallStacks reports call stacks for differences.
	PrintCallStacks bool `yaml:"print-call-stacks"`

	// LogLevel controls the verbosity of the tool.
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings.
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns the default configuration: the semantically-safe
// pattern set on, the unsafe patterns off.
func NewDefault() *Config {
	return &Config{
		Options: Options{
			StructAlignment:   true,
			FunctionSplits:    true,
			UnusedReturnTypes: true,
			KernelPrints:      true,
			DeadCode:          true,
			NumericalMacros:   true,
			TypeCasts:         false,
			ControlFlowOnly:   false,
			PrintAsmDiffs:     true,
			PrintCallStacks:   true,
			LogLevel:          int(InfoLevel),
		},
	}
}

// Load reads a configuration from a file. Absent fields keep the defaults
// of NewDefault.
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
