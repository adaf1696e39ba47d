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
	"github.com/basecode-lang/basecode/pkg/adt"
)

// Label names a position within an instruction block; branches reference
// labels by name and are back-patched once every block's address is known.
type Label struct {
	Name string
	// InstructionIx is the index of the instruction this label precedes
	// (equal to len(Instructions) for a label at the block's end).
	InstructionIx int
	// Address is filled in by the Assembler once this block is placed.
	Address uint64
	Resolved bool
}

// LabelRef is an outstanding reference to a label from within some
// instruction's operand, recorded so the assembler can patch it once the
// label resolves.
type LabelRef struct {
	Label         string
	InstructionIx int
	OperandIx     int
}

// InstructionBlock is one basic block of a procedure's generated code: a
// flat sequence of instructions, the labels defined within it, and any
// unresolved label references, plus child blocks forming the tree the code
// generator builds one per ast.KindBasicBlock.
type InstructionBlock struct {
	Name         string
	Instructions []Instruction
	Labels       map[string]*Label
	Unresolved   []LabelRef
	Children     []*InstructionBlock
	Parent       *InstructionBlock

	// UsedRegisters tracks integer register numbers currently allocated
	// within this block, so the register allocator (SortedSet.Smallest)
	// can hand out the lowest free register.
	UsedRegisters adt.SortedSet[uint8]

	// addresses holds the placed address of each instruction, filled in by
	// Assembler.layout; used by Assembler.resolve to re-encode the correct
	// instruction rather than the block's first one.
	addresses []uint64
}

// NewInstructionBlock constructs an empty, named block.
func NewInstructionBlock(name string) *InstructionBlock {
	return &InstructionBlock{Name: name, Labels: map[string]*Label{}}
}

// Add appends an instruction to this block and returns its index, for use
// when registering a LabelRef against it.
func (b *InstructionBlock) Add(in Instruction) int {
	b.Instructions = append(b.Instructions, in)
	return len(b.Instructions) - 1
}

// Label defines a label at the current end of this block, marking the
// position of the next instruction added.
func (b *InstructionBlock) Label(name string) *Label {
	l := &Label{Name: name, InstructionIx: len(b.Instructions)}
	b.Labels[name] = l

	return l
}

// ReferenceLabel records that operandIx of the instruction at
// instructionIx names the given label, to be patched once it resolves.
func (b *InstructionBlock) ReferenceLabel(name string, instructionIx, operandIx int) {
	b.Unresolved = append(b.Unresolved, LabelRef{name, instructionIx, operandIx})
}

// AllocRegister returns the lowest-numbered integer register not currently
// in use within this block.
func (b *InstructionBlock) AllocRegister() (uint8, bool) {
	reg, ok := b.UsedRegisters.Smallest(0, NumIntRegisters)
	if !ok {
		return 0, false
	}

	b.UsedRegisters.Insert(reg)

	return reg, true
}

// FreeRegister releases a register previously returned by AllocRegister.
func (b *InstructionBlock) FreeRegister(reg uint8) {
	b.UsedRegisters.Remove(reg)
}
