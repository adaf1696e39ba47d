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

	"github.com/fatih/color"

	"github.com/basecode-lang/basecode/pkg/common"
)

// printDiagnostics renders every message in result, colorizing errors red
// and warnings yellow, the way sunholo-data-ailang colors its REPL output.
func printDiagnostics(result *common.Result) {
	for _, m := range result.Messages() {
		switch m.Severity {
		case common.Error, common.Fatal:
			color.Red("%s", m)
		case common.Warning:
			color.Yellow("%s", m)
		default:
			fmt.Println(m)
		}
	}
}
