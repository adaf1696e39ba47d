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

// Package cmd implements the Basecode Cobra CLI, structured the way
// Consensys-go-corset/pkg/cmd/root.go and compile.go are (a package-level
// rootCmd plus subcommands, package-level logrus logger gated by a
// --verbose flag).
package cmd

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/basecode-lang/basecode/pkg/common"
)

// Version is filled in when building with a release tag, but *not* when
// installing via "go install".
var Version string

// rootCmd is the base command when basecode is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "basecode",
	Short: "A bootstrap compiler for the Basecode systems language.",
	Long:  "A compiler, assembler, and register-machine VM for the Basecode systems language.",
	Run: func(cmd *cobra.Command, args []string) {
		if !GetFlag(cmd, "version") {
			cmd.Help() //nolint:errcheck

			return
		}

		fmt.Print("basecode ")

		switch {
		case Version != "":
			fmt.Printf("%s", Version)
		default:
			if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Printf("%s", info.Main.Version)
			} else {
				fmt.Printf("(unknown version)")
			}
		}

		fmt.Println()
	},
}

// Execute adds every child command to rootCmd and runs it. Called once by
// cmd/basecode/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:errcheck
func init() {
	rootCmd.PersistentFlags().Bool("version", false, "print version information")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().String("config", "", "path to a basecode.toml configuration file")
	rootCmd.PersistentFlags().Uint64("heap-size", 0, "override the VM heap size, in bytes")
	rootCmd.PersistentFlags().Uint64("stack-size", 0, "override the VM stack size, in bytes")
}

// loadConfig builds a common.Config from --config (if given), overridden
// by the heap/stack/verbose flags: CLI flags always win over file values.
func loadConfig(cmd *cobra.Command) common.Config {
	cfg := common.DefaultConfig()

	if path := GetString(cmd, "config"); path != "" {
		loaded, err := common.LoadConfig(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: unable to read config %q: %s\n", path, err)
		} else {
			cfg = loaded
		}
	}

	if v := GetUint64(cmd, "heap-size"); v != 0 {
		cfg.HeapSize = v
	}

	if v := GetUint64(cmd, "stack-size"); v != 0 {
		cfg.StackSize = v
	}

	if GetFlag(cmd, "verbose") {
		cfg.Verbose = true
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	return cfg
}
