// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package common

import (
	"github.com/BurntSushi/toml"
)

// Config is the driver configuration: heap/stack sizing, verbosity, and
// graph-dump options. It is ordinarily loaded from an optional
// `basecode.toml` file and then overridden by CLI
// flags (see pkg/cmd).
type Config struct {
	// HeapSize is the number of bytes allocated for the VM's heap,
	// including the interrupt/heap vector tables (see pkg/vm).
	HeapSize uint64 `toml:"heap_size"`
	// StackSize is the number of bytes reserved at the top of the heap for
	// the descending VM stack.
	StackSize uint64 `toml:"stack_size"`
	// Verbose raises session logging to debug level.
	Verbose bool `toml:"verbose"`
	// OutputASTGraphs requests that each module's element graph be
	// rendered by an external DOT formatter.
	OutputASTGraphs bool `toml:"output_ast_graphs"`
	// DOMGraphFile is the path at which a DOT-graph rendering of the
	// program's element graph should be written, if OutputASTGraphs is
	// set.
	DOMGraphFile string `toml:"dom_graph_file"`
}

// DefaultConfig returns the configuration used when no config file and no
// overriding CLI flags are present.
func DefaultConfig() Config {
	return Config{
		HeapSize:  1024 * 1024,
		StackSize: 64 * 1024,
	}
}

// LoadConfig reads a TOML configuration file, starting from DefaultConfig
// and overwriting only the fields present in the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, &cfg)

	return cfg, err
}
