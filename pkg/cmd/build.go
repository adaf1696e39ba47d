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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/basecode-lang/basecode/pkg/session"
	"github.com/basecode-lang/basecode/pkg/vm"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] source_file(s)",
	Short: "elaborate and assemble Basecode source into a VM program.",
	Long: `Build runs every session phase through assembly
without executing the result, reporting any diagnostic produced along the way.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		s := session.New(cfg)

		s.OnPhase = func(file string, event session.PhaseEvent) {
			entry := log.WithFields(log.Fields{"phase": "elaborate", "file": file})

			switch event {
			case session.PhaseStart:
				entry.Debug("elaborating")
			case session.PhaseSuccess:
				entry.Debug("elaborated")
			case session.PhaseFailed:
				entry.Warn("elaboration failed")
			}
		}

		ok := s.Compile(args...)

		printDiagnostics(s.Result)

		if !ok {
			os.Exit(1)
		}

		log.WithField("entry", s.Heap.Vector(vm.VectorProgramStart)).Debug("assembled program")
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
