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

import (
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/basecode-lang/basecode/pkg/common"
)

// TestDisassembleListing assembles a small block with a forward branch and
// snapshots the disassembly listing, pinning both the instruction layout
// (4-byte-aligned addresses from ProgramStart) and the resolved branch
// target.
func TestDisassembleListing(t *testing.T) {
	heap := NewHeap(4096)
	result := common.NewResult()

	b := NewInstructionBlock("entry")
	b.Add(Instruction{Op: OpMove, Size: SizeQWord, Operands: []Operand{
		{Flags: OperandReg, Reg: 0}, {Flags: OperandInteger, Value: 10},
	}})
	b.Add(Instruction{Op: OpAdd, Size: SizeQWord, Operands: []Operand{
		{Flags: OperandReg, Reg: 0}, {Flags: OperandReg, Reg: 0}, {Flags: OperandInteger, Value: 5},
	}})

	jmpIx := b.Add(Instruction{Op: OpJmp, Size: SizeQWord, Operands: []Operand{{Flags: OperandInteger}}})
	b.ReferenceLabel("done", jmpIx, 0)
	b.Label("done")
	b.Add(Instruction{Op: OpExit})

	asm := NewAssembler(heap)
	entry := asm.Assemble(b, result)

	if result.IsFailed() {
		t.Fatalf("assemble failed: %+v", result.Messages())
	}

	done := b.Labels["done"]
	if !done.Resolved || done.Address != b.addresses[jmpIx+1] {
		t.Fatalf("label done resolved to %#x, want address of the instruction after the jump", done.Address)
	}

	// Entry is the bootstrap jump, followed by the block's four
	// instructions.
	lines := Disassemble(heap, entry, 5)
	snaps.MatchSnapshot(t, strings.Join(lines, "\n"))
}

// TestSegmentPlacement checks that a constant segment is placed between
// the bootstrap jump and the code, its symbol bytes written into the
// heap, and execution still reaches the code through the bootstrap jump.
func TestSegmentPlacement(t *testing.T) {
	heap := NewHeap(4096)
	result := common.NewResult()

	asm := NewAssembler(heap)
	constants := asm.Segment("constants", SegmentConstant)
	greeting := constants.Define("__str_1__", SymbolBytes, []byte("hi\x00"))

	b := NewInstructionBlock("entry")
	b.Add(Instruction{Op: OpMove, Size: SizeQWord, Operands: []Operand{
		{Flags: OperandReg, Reg: 0}, {Flags: OperandInteger, Value: 7},
	}})
	b.Add(Instruction{Op: OpExit})

	entry := asm.Assemble(b, result)
	if result.IsFailed() {
		t.Fatalf("assemble failed: %+v", result.Messages())
	}

	if string(heap.Bytes[greeting.Address:greeting.Address+2]) != "hi" {
		t.Fatalf("symbol bytes not written at %#x", greeting.Address)
	}

	term := NewTerp(4096, 512)
	term.Heap = heap
	term.Regs.PC = entry
	term.Run(result)

	if !term.HasExited() || term.Regs.I[0] != 7 {
		t.Fatalf("program did not run through the bootstrap jump: I0=%d", term.Regs.I[0])
	}
}

// TestMisalignedDecode checks that decoding at a non-4-byte boundary is
// rejected rather than misinterpreted.
func TestMisalignedDecode(t *testing.T) {
	heap := make([]byte, 64)

	in := Instruction{Op: OpNop}
	if in.Encode(heap, 2) != 0 {
		t.Fatalf("expected Encode at a misaligned address to be rejected")
	}

	if _, size := Decode(heap, 2); size != 0 {
		t.Fatalf("expected Decode at a misaligned address to be rejected")
	}
}
