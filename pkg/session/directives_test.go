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
package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/vm"
)

// TestForeignDirective checks that `#foreign` marks the following
// procedure declaration's type foreign and queues an FFI signature with
// the resolved library/alias attributes, a pointer-typed argument (from
// `address`), and an int return (from `s32`). Registration into a live
// FFI bridge is deferred to phase 10, so the queued signature is
// inspected directly.
func TestForeignDirective(t *testing.T) {
	contents := "#foreign(library: \"libc\", alias: \"puts\");\n" +
		"puts :: proc(s: address) -> s32;\n"

	path := filepath.Join(t.TempDir(), "foreign.bc")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write source: %s", err)
	}

	s := New(common.DefaultConfig())
	if !s.CompileFiles(path) {
		t.Fatalf("compile failed: %v", s.Diagnostics())
	}

	module, _ := s.Registry.Find(s.RootModule)
	block, _ := s.Registry.Find(module.Lhs)

	putsId, ok := block.Identifiers["puts"]
	if !ok {
		t.Fatalf("identifier puts not declared")
	}

	puts, _ := s.Registry.Find(putsId)

	procType, ok := s.Registry.Find(s.procTypeOf(puts))
	if !ok || procType.Kind != elements.KindProcedureType {
		t.Fatalf("puts is not procedure-typed: %+v", procType)
	}

	if !procType.IsForeign {
		t.Fatalf("procedure type was not marked foreign")
	}

	if len(s.pendingFFI) != 1 {
		t.Fatalf("pending FFI signatures = %d, want 1", len(s.pendingFFI))
	}

	sig := s.pendingFFI[0].sig
	if sig.Symbol != "puts" || sig.Library != "libc" {
		t.Fatalf("signature = %+v, want symbol puts in libc", sig)
	}

	if len(sig.Arguments) != 1 || sig.Arguments[0].Type != vm.FFIPointer {
		t.Fatalf("arguments = %+v, want one pointer", sig.Arguments)
	}

	if sig.ReturnValue.Type != vm.FFIInt {
		t.Fatalf("return value = %+v, want int", sig.ReturnValue)
	}
}
