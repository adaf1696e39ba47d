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
	"fmt"

	"github.com/basecode-lang/basecode/pkg/common"
)

// SegmentType classifies an assembler segment.
type SegmentType uint8

// Segment types.
const (
	SegmentCode SegmentType = iota
	SegmentData
	SegmentStack
	SegmentConstant
)

// SymbolType is the storage type of a named segment symbol.
type SymbolType uint8

// Symbol storage types.
const (
	SymbolU8 SymbolType = iota
	SymbolU16
	SymbolU32
	SymbolU64
	SymbolF32
	SymbolF64
	SymbolBytes
)

// Symbol is a named location within a segment; Address is absolute once
// the segment has been placed.
type Symbol struct {
	Name    string
	Type    SymbolType
	Offset  uint64
	Address uint64
	Size    uint64
	Value   []byte
}

// Segment is a named region of the assembled image (data, constant,
// stack, or code) holding named symbols at running offsets.
type Segment struct {
	Name        string
	Type        SegmentType
	Address     uint64
	Offset      uint64
	Initialized bool
	Symbols     map[string]*Symbol

	order []string
}

// Define appends a symbol of the given type and value at the segment's
// current offset, advancing it.
func (s *Segment) Define(name string, typ SymbolType, value []byte) *Symbol {
	sym := &Symbol{Name: name, Type: typ, Offset: s.Offset, Size: uint64(len(value)), Value: value}
	s.Symbols[name] = sym
	s.order = append(s.order, name)
	s.Offset += sym.Size

	if len(value) > 0 {
		s.Initialized = true
	}

	return sym
}

// Assembler walks a tree of InstructionBlocks, lays them out into a heap's
// program segment behind a bootstrap jump and any data/constant segments,
// resolves every label reference, and writes the bit-exact encoded bytes.
type Assembler struct {
	heap *Heap
	// blockAddr records where each named block's first instruction landed,
	// so branch targets naming a block (rather than an in-block label) can
	// resolve too.
	blockAddr map[string]uint64

	segments map[string]*Segment
	segOrder []string
	listing  []string
}

// NewAssembler constructs an assembler targeting the given heap.
func NewAssembler(heap *Heap) *Assembler {
	return &Assembler{
		heap:      heap,
		blockAddr: map[string]uint64{},
		segments:  map[string]*Segment{},
	}
}

// Segment returns (creating if necessary) the named segment.
func (a *Assembler) Segment(name string, typ SegmentType) *Segment {
	if seg, ok := a.segments[name]; ok {
		return seg
	}

	seg := &Segment{Name: name, Type: typ, Symbols: map[string]*Symbol{}}
	a.segments[name] = seg
	a.segOrder = append(a.segOrder, name)

	return seg
}

// Listing returns the layout listing built during Assemble, one line per
// placed segment symbol and instruction.
func (a *Assembler) Listing() []string {
	return a.listing
}

// Assemble lays out the image starting at ProgramStart: a bootstrap jump
// to the code's first instruction, each defined segment in definition
// order, then root's instruction tree depth-first. Every label is
// resolved and the entry address (the bootstrap jump) returned.
func (a *Assembler) Assemble(root *InstructionBlock, result *common.Result) uint64 {
	start := uint64(ProgramStart)

	boot := Instruction{Op: OpJmp, Size: SizeQWord, Operands: []Operand{{Flags: OperandInteger}}}
	address := start + boot.EncodedSize()

	for _, name := range a.segOrder {
		address = a.placeSegment(a.segments[name], address)
	}

	codeStart := alignUp(address, instructionAlignment)

	boot.Operands[0].Value = codeStart
	boot.Encode(a.heap.Bytes, start)
	a.listing = append(a.listing, fmt.Sprintf("%08x: %s", start, formatInstruction(boot)))

	end := a.layout(root, codeStart)

	a.heap.SetVector(VectorProgramStart, start)
	a.heap.SetVector(VectorFreeSpaceStart, end)

	a.resolve(root, result)

	return start
}

// placeSegment assigns the segment (and its symbols) absolute addresses
// starting at address, writes any initialized symbol values into the
// heap, and returns the address just past the segment.
func (a *Assembler) placeSegment(seg *Segment, address uint64) uint64 {
	seg.Address = address
	a.listing = append(a.listing, fmt.Sprintf("%08x: .segment %s", address, seg.Name))

	for _, name := range seg.order {
		sym := seg.Symbols[name]
		sym.Address = seg.Address + sym.Offset

		if sym.Address+sym.Size <= a.heap.Size() {
			copy(a.heap.Bytes[sym.Address:sym.Address+sym.Size], sym.Value)
		}

		a.listing = append(a.listing, fmt.Sprintf("%08x: .symbol %s (%d bytes)", sym.Address, sym.Name, sym.Size))
	}

	return alignUp(address+seg.Offset, instructionAlignment)
}

// layout assigns addresses to every instruction in block and its children,
// encoding each as it goes, and returns the address just past the last
// instruction written.
func (a *Assembler) layout(b *InstructionBlock, address uint64) uint64 {
	a.blockAddr[b.Name] = address

	// One extra slot holds the end-of-block address, so a label defined
	// after the last instruction still resolves.
	b.addresses = make([]uint64, len(b.Instructions)+1)

	for i := range b.Instructions {
		in := &b.Instructions[i]
		size := in.EncodedSize()

		if address+size > a.heap.Size() {
			break
		}

		b.addresses[i] = address
		in.Encode(a.heap.Bytes, address)
		a.listing = append(a.listing, fmt.Sprintf("%08x: %s", address, formatInstruction(*in)))
		address += size
	}

	b.addresses[len(b.Instructions)] = address

	for _, label := range b.Labels {
		ix := label.InstructionIx
		if ix > len(b.Instructions) {
			ix = len(b.Instructions)
		}

		label.Address = b.addresses[ix]
		label.Resolved = true
	}

	for _, child := range b.Children {
		address = a.layout(child, address)
	}

	return address
}

// resolve walks block and its children, patching every LabelRef's operand
// with the final address of the label (or child block) it names.
func (a *Assembler) resolve(b *InstructionBlock, result *common.Result) {
	for _, ref := range b.Unresolved {
		target, ok := a.lookup(b, ref.Label)
		if !ok {
			result.AddError("P004", nil, "", "unresolved branch label %q", ref.Label)
			continue
		}

		if ref.InstructionIx < len(b.Instructions) {
			in := &b.Instructions[ref.InstructionIx]
			if ref.OperandIx < len(in.Operands) {
				in.Operands[ref.OperandIx].Value = target
				in.Operands[ref.OperandIx].Flags = OperandInteger
				in.Encode(a.heap.Bytes, b.addresses[ref.InstructionIx])
			}
		}
	}

	for _, child := range b.Children {
		a.resolve(child, result)
	}
}

func (a *Assembler) lookup(b *InstructionBlock, name string) (uint64, bool) {
	if label, ok := b.Labels[name]; ok {
		return label.Address, true
	}

	if addr, ok := a.blockAddr[name]; ok {
		return addr, true
	}

	if b.Parent != nil {
		return a.lookup(b.Parent, name)
	}

	return 0, false
}

// Disassemble renders count instructions starting at address as a
// human-readable listing, one mnemonic per line. It is used by tests; the
// `disasm` CLI command prints Assembler.Listing instead.
func Disassemble(heap *Heap, address uint64, count int) []string {
	lines := make([]string, 0, count)

	for i := 0; i < count && address < heap.Size(); i++ {
		in, size := Decode(heap.Bytes, address)
		lines = append(lines, fmt.Sprintf("%08x: %s", address, formatInstruction(in)))
		address += size
	}

	return lines
}

func formatInstruction(in Instruction) string {
	out := in.Op.String()

	for _, operand := range in.Operands {
		if operand.IsReg() {
			out += fmt.Sprintf(" I%d", operand.Reg)
		} else {
			out += fmt.Sprintf(" #%d", operand.Value)
		}
	}

	return out
}
