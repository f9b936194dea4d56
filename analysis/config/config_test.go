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
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := NewDefault()
	for name, val := range map[string]bool{
		"struct-alignment":    cfg.StructAlignment,
		"function-splits":     cfg.FunctionSplits,
		"unused-return-types": cfg.UnusedReturnTypes,
		"kernel-prints":       cfg.KernelPrints,
		"dead-code":           cfg.DeadCode,
		"numerical-macros":    cfg.NumericalMacros,
	} {
		if !val {
			t.Errorf("%s should default to on", name)
		}
	}
	if cfg.TypeCasts {
		t.Errorf("type-casts should default to off")
	}
	if cfg.ControlFlowOnly {
		t.Errorf("control-flow-only should default to off")
	}
	if cfg.LogLevel != int(InfoLevel) {
		t.Errorf("default log level should be info")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	return path
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
first-module: old.ir
second-module: new.ir
pattern-config: patterns.yaml
options:
  struct-alignment: false
  control-flow-only: true
  log-level: 4
compare:
  - first: foo
  - first: bar
    second: bar.2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if cfg.StructAlignment {
		t.Errorf("struct-alignment override lost")
	}
	if !cfg.ControlFlowOnly {
		t.Errorf("control-flow-only override lost")
	}
	if !cfg.DeadCode {
		t.Errorf("absent flags must keep their defaults")
	}
	if cfg.FirstModule != "old.ir" || cfg.SecondModule != "new.ir" {
		t.Errorf("module paths lost")
	}
	if len(cfg.Compare) != 2 || cfg.Compare[0].First != "foo" || cfg.Compare[1].Second != "bar.2" {
		t.Errorf("seed pairs wrong: %v", cfg.Compare)
	}
	if cfg.LogLevel != 4 {
		t.Errorf("log level override lost")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("expected error for a missing config file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "options: [not, a, mapping")
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for malformed yaml")
	}
}

func TestRelPath(t *testing.T) {
	path := writeConfig(t, "first-module: old.ir\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	want := filepath.Join(filepath.Dir(path), "patterns.yaml")
	if got := cfg.RelPath("patterns.yaml"); got != want {
		t.Errorf("RelPath = %q, expected %q", got, want)
	}
}
