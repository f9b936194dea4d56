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

/*
Package config provides the configuration of a comparison run and the
leveled logger shared by the analyses.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and
then [LoadGlobal]() to load the global config.

A config file is in yaml format. The top-level fields name the two modules,
the pattern catalogue and the seed symbol pairs; the benign-pattern toggles
live under options. For example, a valid config file is as follows:

	first-module: old.ir
	second-module: new.ir
	pattern-config: patterns.yaml
	options:
	  struct-alignment: false
	  log-level: 4
	compare:
	  - first: do_init
	  - first: probe
	    second: probe.2

Flags absent from the file keep the defaults of [NewDefault]: the
semantically-safe patterns (struct-alignment, function-splits,
unused-return-types, kernel-prints, dead-code, numerical-macros) are on,
the unsafe ones (type-casts, control-flow-only) are off.
*/
package config
