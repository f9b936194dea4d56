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
	"testing"

	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
	"github.com/irtools/semdiff/analysis/passes"
	"github.com/stretchr/testify/require"
)

func testLogger() *config.LogGroup {
	cfg := config.NewDefault()
	cfg.LogLevel = int(config.ErrLevel)
	return config.NewLogGroup(cfg)
}

func mustParse(t *testing.T, name, src string) *ir.Module {
	t.Helper()
	m, err := ir.Parse(name, src)
	require.NoError(t, err)
	return m
}

// newTestComparator builds a module comparator over two parsed modules with
// the real pass collaborators and the given options.
func newTestComparator(t *testing.T, opts config.Options, srcL, srcR string) *ModuleComparator {
	t.Helper()
	left := mustParse(t, "left.ir", srcL)
	right := mustParse(t, "right.ir", srcR)
	logger := testLogger()
	return NewModuleComparator(left, right, opts, nil, nil, nil,
		passes.NewSimplifier(logger), passes.NewInliner(logger), logger)
}

// compareFn runs a full module comparison of one symbol on both sides.
func compareFn(t *testing.T, opts config.Options, srcL, srcR, name string) *Result {
	t.Helper()
	mc := newTestComparator(t, opts, srcL, srcR)
	res, err := mc.CompareSymbols(name, "")
	require.NoError(t, err)
	return res
}

func defaultOpts() config.Options {
	return config.NewDefault().Options
}
