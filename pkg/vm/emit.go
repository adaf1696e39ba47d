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

// EmitContext is threaded through the code generator's on_emit calls,
// carrying whether the emission site is a read or a write access and the
// branch labels an if/while/procedure needs to thread through to its
// children.
type EmitContext struct {
	// ForWrite is true when the element being emitted is an assignment's
	// target rather than a value being read.
	ForWrite bool

	// TrueLabel/FalseLabel are the branch targets an if/while condition's
	// emission should jump to.
	TrueLabel  string
	FalseLabel string

	// ExitLabel is the label a while loop's body should jump to on break
	// (and the condition re-check, on continue).
	ExitLabel     string
	ContinueLabel string

	// ProcedureName names the enclosing procedure instance, used to derive
	// parameter/local frame offsets and the return-value label.
	ProcedureName string
}

// ForRead returns a copy of ctx configured for a read access.
func (ctx EmitContext) ForRead() EmitContext {
	ctx.ForWrite = false
	return ctx
}

// WithBranchLabels returns a copy of ctx with its true/false branch targets
// set, for emitting an if/while predicate.
func (ctx EmitContext) WithBranchLabels(trueLabel, falseLabel string) EmitContext {
	ctx.TrueLabel = trueLabel
	ctx.FalseLabel = falseLabel

	return ctx
}
