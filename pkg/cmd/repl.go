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
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/session"
)

const replHistoryFile = ".basecode_history"

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "interactively elaborate Basecode statements.",
	Long: `Repl reads one statement at a time, elaborating it against a single
running session so identifiers declared on one line are visible to the
next, the way sunholo-data-ailang's REPL keeps one interpreter instance
across lines.`,
	Run: func(cmd *cobra.Command, args []string) {
		runRepl(loadConfig(cmd))
	},
}

func runRepl(cfg common.Config) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	if f, err := os.Open(replHistoryFile); err == nil {
		line.ReadHistory(f) //nolint:errcheck
		f.Close()
	}

	s := session.New(cfg)

	fmt.Println("basecode repl — one statement per line, Ctrl-D to exit")

	for i := 1; ; i++ {
		text, err := line.Prompt(fmt.Sprintf("%d> ", i))
		if err == io.EOF || err == liner.ErrPromptAborted {
			break
		}

		if err != nil {
			color.Red("error: %s", err)
			break
		}

		if text == "" {
			continue
		}

		line.AppendHistory(text)

		if !s.CompileSource(fmt.Sprintf("<repl:%d>", i), text) {
			printDiagnostics(s.Result)
		}
	}

	if f, err := os.Create(replHistoryFile); err == nil {
		line.WriteHistory(f) //nolint:errcheck
		f.Close()
	}
}

func init() {
	rootCmd.AddCommand(replCmd)
}
