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
package ast

import "strconv"

// ParseUint64 parses a numeric literal's source text, accepting decimal and
// `0x`-prefixed hexadecimal spellings. Failure produces the zero value and a
// false second result.
func ParseUint64(text string) (uint64, bool) {
	v, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// ParseFloat64 parses a floating-point literal's source text.
func ParseFloat64(text string) (float64, bool) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
