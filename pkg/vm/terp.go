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
	"github.com/basecode-lang/basecode/pkg/common"
)

// Trap is a host callback invoked by the TRAP instruction, keyed by trap
// index.
type Trap func(t *Terp)

// Terp is the VM execution core: a register file plus a heap, stepping one
// instruction at a time.
type Terp struct {
	Regs    Registers
	Heap    *Heap
	traps   map[uint8]Trap
	exited  bool
	cache   map[uint64]cachedInstruction
	FFI     *FFIBridge
}

// cachedInstruction memoizes a previously fetched-and-decoded instruction
// keyed by address, so hot loops avoid repeated decode overhead.
type cachedInstruction struct {
	in   Instruction
	size uint64
}

// NewTerp constructs a VM over a freshly allocated heap of heapSize bytes,
// reserving the top stackSize bytes of the heap for the descending stack.
func NewTerp(heapSize, stackSize uint64) *Terp {
	heap := NewHeap(heapSize)
	heap.SetVector(VectorBottomOfStack, heapSize-stackSize)
	heap.SetVector(VectorTopOfStack, heapSize)
	heap.first.size -= stackSize

	t := &Terp{
		Heap:  heap,
		traps: map[uint8]Trap{},
		cache: map[uint64]cachedInstruction{},
		FFI:   NewFFIBridge(),
	}
	t.Regs.SP = heap.Vector(VectorTopOfStack)

	return t
}

// RegisterTrap installs a host callback for the given trap index.
func (t *Terp) RegisterTrap(index uint8, fn Trap) {
	t.traps[index] = fn
}

// HasExited reports whether the EXIT instruction has executed.
func (t *Terp) HasExited() bool {
	return t.exited
}

// Push decrements SP by 8 and writes value at the new SP, the VM's native
// stack push.
func (t *Terp) Push(value uint64) {
	t.Regs.SP -= 8
	putUint(t.Heap.Bytes[t.Regs.SP:t.Regs.SP+8], value, 8)
}

// Pop reads the value at SP and increments SP by 8.
func (t *Terp) Pop() uint64 {
	value := getUint(t.Heap.Bytes[t.Regs.SP:t.Regs.SP+8], 8)
	t.Regs.SP += 8

	return value
}

// Run steps the VM until it exits or a diagnostic (an error such as B003, or
// a fatal one) marks result as failed.
func (t *Terp) Run(result *common.Result) {
	for !t.exited && !result.IsFailed() {
		if !t.Step(result) {
			break
		}
	}
}

// Step fetches, decodes (via the instruction cache), and executes a single
// instruction, advancing PC. It returns false when execution should stop
// (EXIT executed, or an error or fatal diagnostic was recorded).
func (t *Terp) Step(result *common.Result) bool {
	if t.Regs.PC%instructionAlignment != 0 {
		result.AddError("B003", nil, "", "instruction fetch at misaligned address %#x", t.Regs.PC)
		return false
	}

	entry, ok := t.cache[t.Regs.PC]
	if !ok {
		in, size := Decode(t.Heap.Bytes, t.Regs.PC)
		if size == 0 {
			result.AddError("B003", nil, "", "undecodable instruction at %#x", t.Regs.PC)
			return false
		}

		entry = cachedInstruction{in, size}
		t.cache[t.Regs.PC] = entry
	}

	nextPC := t.Regs.PC + entry.size
	t.Regs.PC = nextPC

	return t.execute(entry.in, result)
}

func (t *Terp) operandValue(op Operand) uint64 {
	if op.IsReg() {
		return t.Regs.I[op.Reg]
	}

	return op.Value
}

func (t *Terp) storeResult(dest Operand, value uint64) {
	if dest.IsReg() {
		t.Regs.I[dest.Reg] = value
	}
}

//nolint:gocyclo
func (t *Terp) execute(in Instruction, result *common.Result) bool {
	ops := in.Operands

	switch in.Op {
	case OpNop:
		// no-op

	case OpExit:
		t.exited = true
		return false

	case OpMove:
		t.storeResult(ops[0], t.operandValue(ops[1]))

	case OpLoad:
		addr := t.operandValue(ops[1])
		width := operandValueWidth(in.Size)
		t.storeResult(ops[0], getUint(t.Heap.Bytes[addr:addr+width], width))

	case OpStore:
		addr := t.operandValue(ops[0])
		width := operandValueWidth(in.Size)
		putUint(t.Heap.Bytes[addr:addr+width], t.operandValue(ops[1]), width)

	case OpPush:
		t.Push(t.operandValue(ops[0]))

	case OpPop:
		t.storeResult(ops[0], t.Pop())

	case OpAdd:
		mask := sizeMask(in.Size)
		a, b := t.operandValue(ops[1])&mask, t.operandValue(ops[2])&mask
		full := a + b
		masked := full & mask
		t.storeResult(ops[0], masked)
		t.Regs.SetArithmeticFlagsSized(masked, in.Size, full > mask, overflowsAdd(a, b, masked, in.Size), false)

	case OpSub:
		mask := sizeMask(in.Size)
		a, b := t.operandValue(ops[1])&mask, t.operandValue(ops[2])&mask
		diff := (a - b) & mask
		t.storeResult(ops[0], diff)
		t.Regs.SetArithmeticFlagsSized(diff, in.Size, a < b, overflowsSub(a, b, diff, in.Size), true)

	case OpMul:
		mask := sizeMask(in.Size)
		a, b := t.operandValue(ops[1])&mask, t.operandValue(ops[2])&mask
		full := a * b
		masked := full & mask
		t.storeResult(ops[0], masked)
		t.Regs.SetArithmeticFlagsSized(masked, in.Size, b != 0 && full/b != a, false, false)

	case OpDiv:
		mask := sizeMask(in.Size)
		a, b := t.operandValue(ops[1])&mask, t.operandValue(ops[2])&mask
		if b == 0 {
			result.AddFatal("division by zero")
			return false
		}

		quotient := a / b
		t.storeResult(ops[0], quotient)
		t.Regs.SetArithmeticFlagsSized(quotient, in.Size, false, false, false)

	case OpMod:
		mask := sizeMask(in.Size)
		a, b := t.operandValue(ops[1])&mask, t.operandValue(ops[2])&mask
		if b == 0 {
			result.AddFatal("modulo by zero")
			return false
		}

		t.storeResult(ops[0], a%b)

	case OpNeg:
		mask := sizeMask(in.Size)
		a := t.operandValue(ops[1]) & mask
		neg := uint64(-int64(a)) & mask
		t.storeResult(ops[0], neg)
		t.Regs.SetArithmeticFlagsSized(neg, in.Size, false, false, true)

	case OpAnd:
		t.storeResult(ops[0], (t.operandValue(ops[1])&t.operandValue(ops[2]))&sizeMask(in.Size))

	case OpOr:
		t.storeResult(ops[0], (t.operandValue(ops[1])|t.operandValue(ops[2]))&sizeMask(in.Size))

	case OpXor:
		t.storeResult(ops[0], (t.operandValue(ops[1])^t.operandValue(ops[2]))&sizeMask(in.Size))

	case OpNot:
		t.storeResult(ops[0], ^t.operandValue(ops[1])&sizeMask(in.Size))

	case OpBis:
		t.storeResult(ops[0], (t.operandValue(ops[1])|t.operandValue(ops[2]))&sizeMask(in.Size))

	case OpBic:
		t.storeResult(ops[0], t.operandValue(ops[1])&^t.operandValue(ops[2])&sizeMask(in.Size))

	case OpShl:
		t.storeResult(ops[0], (t.operandValue(ops[1])<<t.operandValue(ops[2]))&sizeMask(in.Size))

	case OpShr:
		t.storeResult(ops[0], (t.operandValue(ops[1])&sizeMask(in.Size))>>t.operandValue(ops[2]))

	case OpRol:
		t.storeResult(ops[0], rotateLeft(t.operandValue(ops[1]), t.operandValue(ops[2]), in.Size))

	case OpRor:
		bits := sizeBits(in.Size)
		shift := t.operandValue(ops[2]) % bits
		t.storeResult(ops[0], rotateLeft(t.operandValue(ops[1]), bits-shift, in.Size))

	case OpInc:
		mask := sizeMask(in.Size)
		value := (t.operandValue(ops[0]) + 1) & mask
		t.storeResult(ops[0], value)
		t.Regs.SetArithmeticFlagsSized(value, in.Size, false, false, false)

	case OpDec:
		mask := sizeMask(in.Size)
		value := (t.operandValue(ops[0]) - 1) & mask
		t.storeResult(ops[0], value)
		t.Regs.SetArithmeticFlagsSized(value, in.Size, false, false, true)

	case OpSwap:
		if ops[0].IsReg() && ops[1].IsReg() {
			t.Regs.I[ops[0].Reg], t.Regs.I[ops[1].Reg] = t.Regs.I[ops[1].Reg], t.Regs.I[ops[0].Reg]
		}

	case OpDup:
		t.Push(t.Peek())

	case OpCopy:
		dest, src, count := t.operandValue(ops[0]), t.operandValue(ops[1]), t.operandValue(ops[2])
		copy(t.Heap.Bytes[dest:dest+count], t.Heap.Bytes[src:src+count])

	case OpFill:
		dest, value, count := t.operandValue(ops[0]), byte(t.operandValue(ops[1])), t.operandValue(ops[2])
		for i := uint64(0); i < count; i++ {
			t.Heap.Bytes[dest+i] = value
		}

	case OpCmp:
		mask := sizeMask(in.Size)
		a, b := t.operandValue(ops[0])&mask, t.operandValue(ops[1])&mask
		diff := (a - b) & mask
		t.Regs.SetArithmeticFlagsSized(diff, in.Size, a < b, overflowsSub(a, b, diff, in.Size), true)

	case OpTest:
		a := t.operandValue(ops[0]) & sizeMask(in.Size)
		t.Regs.SetFlag(FlagZero, a == 0)
		t.Regs.SetFlag(FlagNegative, a&signMask(in.Size) != 0)

	case OpTbz:
		bit := t.operandValue(ops[1])
		if (t.operandValue(ops[0])>>bit)&1 == 0 {
			t.Regs.PC = t.operandValue(ops[2])
		}

	case OpTbnz:
		bit := t.operandValue(ops[1])
		if (t.operandValue(ops[0])>>bit)&1 != 0 {
			t.Regs.PC = t.operandValue(ops[2])
		}

	case OpJmp:
		t.Regs.PC = t.operandValue(ops[0])

	case OpBz:
		if t.Regs.Flag(FlagZero) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpBnz:
		if !t.Regs.Flag(FlagZero) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpBeq:
		if t.Regs.Flag(FlagZero) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpBne:
		if !t.Regs.Flag(FlagZero) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpBg:
		if !t.Regs.Flag(FlagZero) && !t.Regs.Flag(FlagNegative) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpBge:
		if !t.Regs.Flag(FlagNegative) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpBl:
		if t.Regs.Flag(FlagNegative) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpBle:
		if t.Regs.Flag(FlagNegative) || t.Regs.Flag(FlagZero) {
			t.Regs.PC = t.operandValue(ops[0])
		}

	case OpJsr:
		t.Push(t.Regs.PC)
		t.Regs.PC = t.operandValue(ops[0])

	case OpRts:
		t.Regs.PC = t.Pop()

	case OpAlloc:
		size := t.operandValue(ops[1])
		addr, ok := t.Heap.Alloc(size)
		if !ok {
			t.ExecuteTrap(TrapOutOfMemory)
			return !result.IsFailed()
		}

		t.storeResult(ops[0], addr)

	case OpFree:
		t.storeResult(ops[0], t.Heap.Free(t.operandValue(ops[0])))

	case OpSize:
		t.storeResult(ops[0], t.Heap.SizeOf(t.operandValue(ops[1])))

	case OpTrap:
		t.ExecuteTrap(uint8(t.operandValue(ops[0])))

	case OpFfi:
		t.FFI.Call(t, ops)

	case OpSwi:
		t.ExecuteSoftwareInterrupt(uint8(t.operandValue(ops[0])))

	case OpMeta:
		// A META instruction carries debug annotations for the disassembler
		// (vm.MetaInformation) and has no runtime effect.

	default:
		result.AddFatal("unimplemented opcode %s", in.Op)
		return false
	}

	return true
}

// ExecuteTrap invokes a registered trap handler, if any.
func (t *Terp) ExecuteTrap(index uint8) {
	if fn, ok := t.traps[index]; ok {
		fn(t)
	}
}

// ExecuteSoftwareInterrupt implements the SWI instruction: it reads the
// handler address out of the heap's interrupt vector table
// (`[0..interrupt_vector_table_end)`) and calls into it the same way JSR
// does, pushing the current PC as the return address.
func (t *Terp) ExecuteSoftwareInterrupt(index uint8) {
	if index >= interruptVectorTableSize {
		return
	}

	vectorAddr := interruptVectorTableStart + uint64(index)*interruptVectorEntrySize
	handler := getUint(t.Heap.Bytes[vectorAddr:vectorAddr+interruptVectorEntrySize], interruptVectorEntrySize)

	if handler == 0 {
		return
	}

	t.Push(t.Regs.PC)
	t.Regs.PC = handler
}

// Peek reads the value at SP without popping it, used by DUP.
func (t *Terp) Peek() uint64 {
	return getUint(t.Heap.Bytes[t.Regs.SP:t.Regs.SP+8], 8)
}

// sizeBits returns the bit width of an op-size, used by rotate instructions.
func sizeBits(size OperandSize) uint64 {
	switch size {
	case SizeByte:
		return 8
	case SizeWord:
		return 16
	case SizeDWord:
		return 32
	default:
		return 64
	}
}

// rotateLeft rotates value left by shift bits within the declared op-size's
// width, backing the `rol`/`ror` instructions.
func rotateLeft(value, shift uint64, size OperandSize) uint64 {
	bits := sizeBits(size)
	mask := sizeMask(size)
	value &= mask
	shift %= bits

	return ((value << shift) | (value >> (bits - shift))) & mask
}

func overflowsAdd(a, b, sum uint64, size OperandSize) bool {
	sign := signMask(size)

	return (^(a ^ b) & (a ^ sum) & sign) != 0
}

func overflowsSub(a, b, diff uint64, size OperandSize) bool {
	sign := signMask(size)

	return ((a ^ b) & (a ^ diff) & sign) != 0
}
