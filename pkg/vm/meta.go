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
package vm

// MetaInformation describes a source location and symbol name for a range
// of generated instructions. Neither Disassemble nor the REPL reads it, so
// listings do not show `file:line:col symbol` annotations.
type MetaInformation struct {
	Symbol     string
	SourceFile string
	Line       int
	Column     int
}

// StackFrame describes one activation record on the VM's descending native
// stack: the saved frame pointer and return address, plus the local
// variable and parameter offsets assigned by the code generator.
type StackFrame struct {
	ReturnAddress uint64
	SavedFP       uint64
	// Locals maps a local variable's element id to its byte offset from
	// the frame pointer (negative offsets grow toward lower addresses, as
	// the stack descends).
	Locals map[uint64]int64
}

// NewStackFrame constructs an empty frame.
func NewStackFrame(returnAddress, savedFP uint64) *StackFrame {
	return &StackFrame{ReturnAddress: returnAddress, SavedFP: savedFP, Locals: map[uint64]int64{}}
}

// Offset records a local's frame-relative offset.
func (f *StackFrame) Offset(id uint64, offset int64) {
	f.Locals[id] = offset
}
