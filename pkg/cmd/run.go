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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/basecode-lang/basecode/pkg/session"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] source_file(s)",
	Short: "elaborate, assemble, and execute Basecode source.",
	Long: `Run carries a program through every session phase and hands
control to the VM (terp); with --dump-registers it prints the first four
integer registers on exit.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		s := session.New(cfg)

		if !s.CompileFiles(args...) {
			printDiagnostics(s.Result)
			os.Exit(1)
		}

		terp := s.Run()

		printDiagnostics(s.Result)

		if terp == nil {
			os.Exit(1)
		}

		if !terp.HasExited() {
			log.Warn("program trapped before reaching EXIT")
		}

		if GetFlag(cmd, "dump-registers") {
			fmt.Printf("I0-I3: %d %d %d %d\n", terp.Regs.I[0], terp.Regs.I[1], terp.Regs.I[2], terp.Regs.I[3])
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dump-registers", false, "print the first four integer registers after execution")
}
