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
	"testing"

	"github.com/basecode-lang/basecode/pkg/common"
)

// TestInstructionRoundTrip verifies that encoding `add.qword I0, I1, I2`
// produces exactly 9 bytes aligned up to 12 and decodes back to the same
// instruction.
func TestInstructionRoundTrip(t *testing.T) {
	in := Instruction{
		Op:   OpAdd,
		Size: SizeQWord,
		Operands: []Operand{
			{Flags: OperandReg, Reg: 0},
			{Flags: OperandReg, Reg: 1},
			{Flags: OperandReg, Reg: 2},
		},
	}

	rawSize := uint64(instructionBaseSize)
	for range in.Operands {
		rawSize += 2 // flag byte + register byte per operand
	}

	if rawSize != 9 {
		t.Fatalf("expected raw encoded size 9, got %d", rawSize)
	}

	if got := in.EncodedSize(); got != 12 {
		t.Fatalf("expected aligned encoded size 12, got %d", got)
	}

	heap := make([]byte, 64)
	written := in.Encode(heap, 0)
	if written != 12 {
		t.Fatalf("Encode wrote %d bytes, want 12", written)
	}

	// Byte 0 is the self-describing aligned length, byte 1 the opcode,
	// byte 2 the size nybble over the operand count nybble.
	if heap[0] != 12 || heap[1] != byte(OpAdd) || heap[2] != byte(SizeQWord)<<4|3 {
		t.Fatalf("unexpected header bytes % x", heap[:3])
	}

	out, size := Decode(heap, 0)
	if size != 12 {
		t.Fatalf("Decode reported %d bytes, want 12", size)
	}

	if out.Op != OpAdd || out.Size != SizeQWord || len(out.Operands) != 3 {
		t.Fatalf("decoded instruction mismatch: %+v", out)
	}

	for i, op := range out.Operands {
		if !op.IsReg() || op.Reg != in.Operands[i].Reg {
			t.Fatalf("operand %d mismatch: got %+v, want %+v", i, op, in.Operands[i])
		}
	}
}

func newTestTerp() *Terp {
	return NewTerp(4096, 1024)
}

// runOneAt encodes and executes a single instruction at a caller-chosen,
// never-reused address, so the terp's per-address instruction cache never
// serves a stale decode for a later instruction encoded over the same
// bytes (tests that execute several instructions in sequence on the same
// Terp must each pick a distinct address).
func runOneAt(t *Terp, addr uint64, in Instruction) *common.Result {
	heap := make([]byte, 64)
	in.Encode(heap, 0)
	copy(t.Heap.Bytes[addr:], heap)
	t.Regs.PC = addr

	result := common.NewResult()
	t.Step(result)

	return result
}

func runOne(t *Terp, in Instruction) *common.Result {
	return runOneAt(t, ProgramStart, in)
}

func TestArithmeticSizeMasking(t *testing.T) {
	term := newTestTerp()
	term.Regs.I[1] = 0xff
	term.Regs.I[2] = 0x02

	runOne(term, Instruction{
		Op: OpAdd, Size: SizeByte,
		Operands: []Operand{{Flags: OperandReg, Reg: 0}, {Flags: OperandReg, Reg: 1}, {Flags: OperandReg, Reg: 2}},
	})

	if term.Regs.I[0] != 0x01 {
		t.Fatalf("byte-sized add should wrap at 0xff, got %#x", term.Regs.I[0])
	}

	if !term.Regs.Flag(FlagCarry) {
		t.Fatalf("expected carry flag set on byte-sized overflow")
	}
}

func TestIncDec(t *testing.T) {
	term := newTestTerp()
	term.Regs.I[0] = 41

	runOneAt(term, ProgramStart, Instruction{Op: OpInc, Size: SizeQWord, Operands: []Operand{{Flags: OperandReg, Reg: 0}}})

	if term.Regs.I[0] != 42 {
		t.Fatalf("expected INC to produce 42, got %d", term.Regs.I[0])
	}

	runOneAt(term, ProgramStart+64, Instruction{Op: OpDec, Size: SizeQWord, Operands: []Operand{{Flags: OperandReg, Reg: 0}}})

	if term.Regs.I[0] != 41 {
		t.Fatalf("expected DEC to produce 41, got %d", term.Regs.I[0])
	}
}

func TestSwap(t *testing.T) {
	term := newTestTerp()
	term.Regs.I[0], term.Regs.I[1] = 10, 20

	runOne(term, Instruction{
		Op: OpSwap, Size: SizeQWord,
		Operands: []Operand{{Flags: OperandReg, Reg: 0}, {Flags: OperandReg, Reg: 1}},
	})

	if term.Regs.I[0] != 20 || term.Regs.I[1] != 10 {
		t.Fatalf("expected SWAP to exchange registers, got I0=%d I1=%d", term.Regs.I[0], term.Regs.I[1])
	}
}

func TestDup(t *testing.T) {
	term := newTestTerp()
	term.Push(7)

	runOne(term, Instruction{Op: OpDup})

	if got := term.Pop(); got != 7 {
		t.Fatalf("expected top of stack 7 after DUP, got %d", got)
	}

	if got := term.Pop(); got != 7 {
		t.Fatalf("expected original value 7 still on stack, got %d", got)
	}
}

func TestRotate(t *testing.T) {
	term := newTestTerp()
	term.Regs.I[1] = 0x1
	term.Regs.I[2] = 1

	runOneAt(term, ProgramStart, Instruction{
		Op: OpRol, Size: SizeByte,
		Operands: []Operand{{Flags: OperandReg, Reg: 0}, {Flags: OperandReg, Reg: 1}, {Flags: OperandReg, Reg: 2}},
	})

	if term.Regs.I[0] != 0x2 {
		t.Fatalf("expected ROL byte(0x1, 1) == 0x2, got %#x", term.Regs.I[0])
	}

	runOneAt(term, ProgramStart+64, Instruction{
		Op: OpRor, Size: SizeByte,
		Operands: []Operand{{Flags: OperandReg, Reg: 0}, {Flags: OperandReg, Reg: 0}, {Flags: OperandReg, Reg: 2}},
	})

	if term.Regs.I[0] != 0x1 {
		t.Fatalf("expected ROR byte(0x2, 1) == 0x1, got %#x", term.Regs.I[0])
	}
}

func TestTestBitBranches(t *testing.T) {
	term := newTestTerp()
	term.Regs.I[0] = 0x4 // bit 2 set

	runOne(term, Instruction{
		Op: OpTbnz, Size: SizeQWord,
		Operands: []Operand{
			{Flags: OperandReg, Reg: 0},
			{Flags: OperandInteger, Value: 2},
			{Flags: OperandInteger, Value: 0xff},
		},
	})

	if term.Regs.PC != 0xff {
		t.Fatalf("expected TBNZ to branch when bit set, PC=%#x", term.Regs.PC)
	}
}

func TestCopyAndFill(t *testing.T) {
	term := newTestTerp()
	src := uint64(ProgramStart + 128)
	dest := uint64(ProgramStart + 256)

	for i := uint64(0); i < 8; i++ {
		term.Heap.Bytes[src+i] = byte(i + 1)
	}

	runOneAt(term, ProgramStart, Instruction{
		Op: OpCopy,
		Operands: []Operand{
			{Flags: OperandInteger, Value: dest},
			{Flags: OperandInteger, Value: src},
			{Flags: OperandInteger, Value: 8},
		},
	})

	for i := uint64(0); i < 8; i++ {
		if term.Heap.Bytes[dest+i] != byte(i+1) {
			t.Fatalf("COPY mismatch at offset %d: got %d", i, term.Heap.Bytes[dest+i])
		}
	}

	runOneAt(term, ProgramStart+64, Instruction{
		Op: OpFill,
		Operands: []Operand{
			{Flags: OperandInteger, Value: dest},
			{Flags: OperandInteger, Value: 0xaa},
			{Flags: OperandInteger, Value: 4},
		},
	})

	for i := uint64(0); i < 4; i++ {
		if term.Heap.Bytes[dest+i] != 0xaa {
			t.Fatalf("FILL mismatch at offset %d: got %#x", i, term.Heap.Bytes[dest+i])
		}
	}
}

// TestFFICall registers a host-side function and invokes it through the
// FFI instruction by its assigned operand id; an unregistered id raises
// the invalid-FFI trap instead.
func TestFFICall(t *testing.T) {
	term := newTestTerp()

	err := term.FFI.Register("double", FFISignature{
		Symbol: "double",
		Fn:     func(args []uint64) uint64 { return args[0] * 2 },
	})
	if err != nil {
		t.Fatalf("register: %s", err)
	}

	id, ok := term.FFI.Id("double")
	if !ok {
		t.Fatal("registered function has no operand id")
	}

	term.Regs.I[0] = id
	term.Regs.I[1] = 21

	runOneAt(term, ProgramStart, Instruction{
		Op: OpFfi, Size: SizeQWord,
		Operands: []Operand{{Flags: OperandReg, Reg: 0}, {Flags: OperandReg, Reg: 1}},
	})

	if term.Regs.I[0] != 42 {
		t.Fatalf("FFI call result = %d, want 42", term.Regs.I[0])
	}

	var trapped bool

	term.RegisterTrap(TrapInvalidFFI, func(*Terp) { trapped = true })
	term.Regs.I[0] = id + 100

	runOneAt(term, ProgramStart+64, Instruction{
		Op: OpFfi, Size: SizeQWord,
		Operands: []Operand{{Flags: OperandReg, Reg: 0}},
	})

	if !trapped {
		t.Fatal("expected invalid-FFI trap for an unregistered id")
	}
}

func TestHeapAllocFreeCoalesce(t *testing.T) {
	h := NewHeap(4096)

	a, ok := h.Alloc(16)
	if !ok {
		t.Fatal("expected alloc to succeed")
	}

	b, ok := h.Alloc(16)
	if !ok {
		t.Fatal("expected second alloc to succeed")
	}

	if h.Free(a) != 16 {
		t.Fatalf("expected Free to report freed size 16")
	}

	// A second alloc of 16 may reuse the freed block at `a`: two live
	// allocations of n <= previous size never overlap.
	c, ok := h.Alloc(16)
	if !ok {
		t.Fatal("expected alloc after free to succeed")
	}

	if c == b {
		t.Fatalf("new allocation must not collide with still-live block b")
	}

	h.Free(b)
	h.Free(c)

	// With b and c freed, the whole region has coalesced back into one block.
	if whole, ok := h.Alloc(4096 - ProgramStart); !ok || whole != a {
		t.Fatalf("expected freed blocks to coalesce into a single block at %#x", a)
	}
}
