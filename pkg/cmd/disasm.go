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
package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/basecode-lang/basecode/pkg/session"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [flags] source_file(s)",
	Short: "assemble Basecode source and print a disassembly listing.",
	Long: `Disasm builds a program and pretty-prints its
instruction stream starting at the program entry point.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		s := session.New(cfg)

		if !s.Compile(args...) {
			printDiagnostics(s.Result)
			os.Exit(1)
		}

		count := GetInt(cmd, "count")
		if count <= 0 {
			count = 64
		}

		// The assembler's listing knows where segments end and code begins;
		// raw heap decoding (vm.Disassemble) is used only by tests.
		lines := s.Assembler.Listing()
		if len(lines) > count {
			lines = lines[:count]
		}

		width := listingWidth()
		bold := color.New(color.Bold)

		for _, line := range lines {
			if len(line) > width {
				line = line[:width]
			}

			bold.Println(line)
		}
	},
}

// listingWidth returns the terminal column width when stdout is a TTY, or
// a conservative default otherwise.
func listingWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 120
	}

	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 120
	}

	return w
}

func init() {
	rootCmd.AddCommand(disasmCmd)
	disasmCmd.Flags().Int("count", 64, "number of listing lines to print")
}
