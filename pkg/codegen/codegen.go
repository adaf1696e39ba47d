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

// Package codegen implements the on_emit code generator: a walk over the
// elements.Registry's element graph that lowers each element into
// vm.Instruction sequences within a tree of vm.InstructionBlocks.
package codegen

import (
	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/vm"
)

// Generator lowers an elaborated module into an instruction-block tree. It
// keeps a flat map from Identifier element id to the integer register
// currently holding its value — a simplified register-resident storage
// model appropriate for a bootstrap compiler, in place of the original's
// full stack-frame address computation.
type Generator struct {
	Registry *elements.Registry
	Result   *common.Result

	registers map[elements.Id]uint8
	labelSeq  int
}

// New constructs a generator over registry, reporting fatal emission
// failures (e.g. register exhaustion) into result.
func New(registry *elements.Registry, result *common.Result) *Generator {
	return &Generator{Registry: registry, Result: result, registers: map[elements.Id]uint8{}}
}

// Emit lowers moduleId's block into a root instruction block terminated by
// an EXIT instruction.
func (g *Generator) Emit(moduleId elements.Id) *vm.InstructionBlock {
	module, ok := g.Registry.Find(moduleId)
	if !ok {
		return nil
	}

	root := vm.NewInstructionBlock(module.LabelName())
	g.emitBlockBody(root, module.Lhs, vm.EmitContext{})
	root.Add(vm.Instruction{Op: vm.OpExit})

	return root
}

func (g *Generator) nextLabel(prefix string) string {
	g.labelSeq++
	return prefix + "_" + itoa(uint64(g.labelSeq))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}

	var buf [20]byte
	i := len(buf)

	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}

	return string(buf[i:])
}

// emitBlockBody emits every statement owned by the block element blockId,
// in source order, into b.
func (g *Generator) emitBlockBody(b *vm.InstructionBlock, blockId elements.Id, ctx vm.EmitContext) {
	block, ok := g.Registry.Find(blockId)
	if !ok {
		return
	}

	for _, stmt := range block.Statements {
		g.emitStatement(b, stmt, ctx)
	}
}

// emitStatement emits one top-level member of a block: an Identifier
// declaration, a bare Statement wrapping an expression, a control-flow
// form, or a procedure instance (whose body is emitted as its own child
// block, not inline).
func (g *Generator) emitStatement(b *vm.InstructionBlock, id elements.Id, ctx vm.EmitContext) {
	elem, ok := g.Registry.Find(id)
	if !ok {
		return
	}

	switch elem.Kind {
	case elements.KindIdentifier:
		g.emitIdentifierDecl(b, elem, ctx)
	case elements.KindStatement:
		g.emitExpression(b, elem.Lhs, ctx)
	case elements.KindProcedureType:
		g.emitProcedureType(b, elem)
	case elements.KindIf, elements.KindWhile, elements.KindReturn:
		g.emitExpression(b, id, ctx)
	default:
		g.emitExpression(b, id, ctx)
	}
}

// emitIdentifierDecl evaluates an identifier's initializer (if any) and
// binds the resulting register as the identifier's home: literals/constants
// are folded by an earlier session phase before this runs, so most
// initializers here are already
// immediates or simple expressions.
func (g *Generator) emitIdentifierDecl(b *vm.InstructionBlock, ident *elements.Element, ctx vm.EmitContext) {
	value := ident.Initializer
	if init, ok := g.Registry.Find(ident.Initializer); ok && init.Kind == elements.KindInitializer {
		value = init.Lhs
	}

	// A procedure declaration's body becomes a labeled child block, not a
	// register-resident value; foreign procedures have no body to emit.
	if valueElem, ok := g.Registry.Find(value); ok && valueElem.Kind == elements.KindProcedureType {
		if !valueElem.IsForeign {
			g.emitProcedureType(b, valueElem)
		}

		return
	}

	// Type declarations (`Point :: struct {...}`) occupy no storage either.
	if valueElem, ok := g.Registry.Find(value); ok && isTypeKind(valueElem.Kind) {
		return
	}

	reg, ok := b.AllocRegister()
	if !ok {
		g.Result.AddError("P052", &ident.Location, "", "register allocator exhausted emitting %q", ident.Name)
		return
	}

	g.registers[ident.Id] = reg

	if value == 0 {
		return
	}

	src := g.emitExpression(b, value, ctx.ForRead())
	b.Add(vm.Instruction{Op: vm.OpMove, Size: vm.SizeQWord, Operands: []vm.Operand{
		regOperand(reg), src.operand(),
	}})
}

func isTypeKind(kind elements.Kind) bool {
	switch kind {
	case elements.KindCompositeType, elements.KindArrayType, elements.KindPointerType,
		elements.KindNumericType, elements.KindBoolType, elements.KindStringType,
		elements.KindAnyType, elements.KindNamespaceType, elements.KindModuleType,
		elements.KindTypeInfoType, elements.KindTupleType:
		return true
	default:
		return false
	}
}

// result is a just-computed value: either a register that holds it or an
// immediate constant, so emitExpression's callers can choose the cheapest
// encoding without a register round-trip for plain literals.
type result struct {
	reg   uint8
	isReg bool
	value uint64
}

func (r result) operand() vm.Operand {
	if r.isReg {
		return regOperand(r.reg)
	}

	return vm.Operand{Flags: vm.OperandInteger, Value: r.value}
}

func regOperand(reg uint8) vm.Operand {
	return vm.Operand{Flags: vm.OperandReg, Reg: reg}
}

func regResult(reg uint8) result     { return result{reg: reg, isReg: true} }
func immResult(value uint64) result  { return result{value: value} }

// emitExpression lowers id into zero or more instructions appended to b,
// returning the value it produced (a zero result.operand() with neither
// flag meaningfully set marks a value with no home, e.g. a bare control
// flow statement).
func (g *Generator) emitExpression(b *vm.InstructionBlock, id elements.Id, ctx vm.EmitContext) result {
	elem, ok := g.Registry.Find(id)
	if !ok {
		return result{}
	}

	switch elem.Kind {
	case elements.KindIntegerLiteral:
		return immResult(elem.IntValue)
	case elements.KindBooleanLiteral:
		if elem.BoolValue {
			return immResult(1)
		}

		return immResult(0)
	case elements.KindFloatLiteral:
		return immResult(uint64(elem.FloatValue))
	case elements.KindStringLiteral:
		return immResult(0)
	case elements.KindExpression:
		return g.emitExpression(b, elem.Lhs, ctx)
	case elements.KindStatement:
		return g.emitExpression(b, elem.Lhs, ctx)
	case elements.KindIdentifierReference:
		return g.emitIdentifierReference(b, elem)
	case elements.KindUnaryOperator:
		return g.emitUnaryOperator(b, elem, ctx)
	case elements.KindBinaryOperator:
		return g.emitBinaryOperator(b, elem, ctx)
	case elements.KindIf:
		g.emitIf(b, elem, ctx)
		return result{}
	case elements.KindWhile:
		g.emitWhile(b, elem, ctx)
		return result{}
	case elements.KindReturn:
		g.emitReturn(b, elem, ctx)
		return result{}
	case elements.KindProcedureCall:
		return g.emitProcedureCall(b, elem, ctx)
	case elements.KindIdentifier:
		g.emitIdentifierDecl(b, elem, ctx)
		return regResult(g.registers[elem.Id])
	default:
		return result{}
	}
}

func (g *Generator) emitIdentifierReference(b *vm.InstructionBlock, ref *elements.Element) result {
	reg, ok := g.registers[ref.ResolvedIdentifier]
	if !ok {
		g.Result.AddError("P051", &ref.Location, "", "identifier reference resolved to an element with no assigned register")
		return result{}
	}

	return regResult(reg)
}

var binaryOps = map[elements.OperatorType]vm.OpCode{
	elements.OpAdd:        vm.OpAdd,
	elements.OpSubtract:   vm.OpSub,
	elements.OpMultiply:   vm.OpMul,
	elements.OpDivide:     vm.OpDiv,
	elements.OpModulo:     vm.OpMod,
	elements.OpBinaryAnd:  vm.OpAnd,
	elements.OpBinaryOr:   vm.OpOr,
	elements.OpBinaryXor:  vm.OpXor,
	elements.OpShiftLeft:  vm.OpShl,
	elements.OpShiftRight: vm.OpShr,
}

func (g *Generator) emitBinaryOperator(b *vm.InstructionBlock, elem *elements.Element, ctx vm.EmitContext) result {
	if elem.Operator == elements.OpAssignment {
		return g.emitAssignment(b, elem, ctx)
	}

	lhs := g.emitExpression(b, elem.Lhs, ctx.ForRead())
	rhs := g.emitExpression(b, elem.Rhs, ctx.ForRead())

	if op, ok := binaryOps[elem.Operator]; ok {
		dest, allocated := b.AllocRegister()
		if !allocated {
			g.Result.AddError("P052", &elem.Location, "", "register allocator exhausted emitting binary operator")
			return result{}
		}

		b.Add(vm.Instruction{Op: op, Size: vm.SizeQWord, Operands: []vm.Operand{
			regOperand(dest), lhs.operand(), rhs.operand(),
		}})

		return regResult(dest)
	}

	if cmp, ok := comparisonOp(elem.Operator); ok {
		b.Add(vm.Instruction{Op: vm.OpCmp, Size: vm.SizeQWord, Operands: []vm.Operand{lhs.operand(), rhs.operand()}})

		dest, allocated := b.AllocRegister()
		if !allocated {
			g.Result.AddError("P052", &elem.Location, "", "register allocator exhausted emitting comparison")
			return result{}
		}

		trueLabel, endLabel := g.nextLabel("cmp_true"), g.nextLabel("cmp_end")
		b.Add(vm.Instruction{Op: vm.OpMove, Size: vm.SizeQWord, Operands: []vm.Operand{regOperand(dest), {Flags: vm.OperandInteger, Value: 0}}})
		branchIx := b.Add(vm.Instruction{Op: cmp, Size: vm.SizeQWord, Operands: []vm.Operand{{Flags: vm.OperandInteger}}})
		b.ReferenceLabel(trueLabel, branchIx, 0)
		jmpIx := b.Add(vm.Instruction{Op: vm.OpJmp, Size: vm.SizeQWord, Operands: []vm.Operand{{Flags: vm.OperandInteger}}})
		b.ReferenceLabel(endLabel, jmpIx, 0)
		b.Label(trueLabel)
		b.Add(vm.Instruction{Op: vm.OpMove, Size: vm.SizeQWord, Operands: []vm.Operand{regOperand(dest), {Flags: vm.OperandInteger, Value: 1}}})
		b.Label(endLabel)

		return regResult(dest)
	}

	g.Result.AddError("C024", &elem.Location, "", "unsupported binary operator")

	return result{}
}

func comparisonOp(op elements.OperatorType) (vm.OpCode, bool) {
	switch op {
	case elements.OpEquals:
		return vm.OpBeq, true
	case elements.OpNotEquals:
		return vm.OpBne, true
	case elements.OpGreaterThan:
		return vm.OpBg, true
	case elements.OpLessThan:
		return vm.OpBl, true
	case elements.OpGreaterThanOrEqual:
		return vm.OpBge, true
	case elements.OpLessThanOrEqual:
		return vm.OpBle, true
	default:
		return 0, false
	}
}

func (g *Generator) emitAssignment(b *vm.InstructionBlock, elem *elements.Element, ctx vm.EmitContext) result {
	target, ok := g.Registry.Find(elem.Lhs)
	if !ok || target.Kind != elements.KindIdentifierReference {
		g.Result.AddError("P051", &elem.Location, "", "assignment target is not an identifier")
		return result{}
	}

	reg, ok := g.registers[target.ResolvedIdentifier]
	if !ok {
		g.Result.AddError("P051", &elem.Location, "", "assignment target has no assigned register")
		return result{}
	}

	value := g.emitExpression(b, elem.Rhs, ctx.ForRead())
	b.Add(vm.Instruction{Op: vm.OpMove, Size: vm.SizeQWord, Operands: []vm.Operand{regOperand(reg), value.operand()}})

	return regResult(reg)
}

func (g *Generator) emitUnaryOperator(b *vm.InstructionBlock, elem *elements.Element, ctx vm.EmitContext) result {
	rhs := g.emitExpression(b, elem.Rhs, ctx.ForRead())

	dest, ok := b.AllocRegister()
	if !ok {
		g.Result.AddError("P052", &elem.Location, "", "register allocator exhausted emitting unary operator")
		return result{}
	}

	var op vm.OpCode
	switch elem.Operator {
	case elements.OpNegate:
		op = vm.OpNeg
	case elements.OpBinaryNot:
		op = vm.OpNot
	default:
		g.Result.AddError("C024", &elem.Location, "", "unsupported unary operator")
		return result{}
	}

	b.Add(vm.Instruction{Op: op, Size: vm.SizeQWord, Operands: []vm.Operand{regOperand(dest), rhs.operand()}})

	return regResult(dest)
}

// emitIf lowers predicate/true-branch/false-branch into a TEST of the
// predicate plus a branch-if-zero (BZ) to the false branch.
func (g *Generator) emitIf(b *vm.InstructionBlock, elem *elements.Element, ctx vm.EmitContext) {
	predicate := g.emitExpression(b, elem.Lhs, ctx.ForRead())

	elseLabel := g.nextLabel("if_else")
	endLabel := g.nextLabel("if_end")

	b.Add(vm.Instruction{Op: vm.OpTest, Size: vm.SizeQWord, Operands: []vm.Operand{predicate.operand()}})
	branchIx := b.Add(vm.Instruction{Op: vm.OpBz, Size: vm.SizeQWord, Operands: []vm.Operand{{Flags: vm.OperandInteger}}})
	b.ReferenceLabel(elseLabel, branchIx, 0)

	g.emitExpression(b, elem.Rhs, ctx)

	jmpIx := b.Add(vm.Instruction{Op: vm.OpJmp, Size: vm.SizeQWord, Operands: []vm.Operand{{Flags: vm.OperandInteger}}})
	b.ReferenceLabel(endLabel, jmpIx, 0)

	b.Label(elseLabel)

	if len(elem.Children) > 0 && elem.Children[0] != 0 {
		g.emitExpression(b, elem.Children[0], ctx)
	}

	b.Label(endLabel)
}

// emitWhile lowers predicate/body into a condition-check loop.
func (g *Generator) emitWhile(b *vm.InstructionBlock, elem *elements.Element, ctx vm.EmitContext) {
	startLabel := g.nextLabel("while_start")
	endLabel := g.nextLabel("while_end")

	b.Label(startLabel)

	predicate := g.emitExpression(b, elem.Lhs, ctx.ForRead())
	b.Add(vm.Instruction{Op: vm.OpTest, Size: vm.SizeQWord, Operands: []vm.Operand{predicate.operand()}})
	branchIx := b.Add(vm.Instruction{Op: vm.OpBz, Size: vm.SizeQWord, Operands: []vm.Operand{{Flags: vm.OperandInteger}}})
	b.ReferenceLabel(endLabel, branchIx, 0)

	g.emitExpression(b, elem.Rhs, ctx.WithBranchLabels(startLabel, endLabel))

	jmpIx := b.Add(vm.Instruction{Op: vm.OpJmp, Size: vm.SizeQWord, Operands: []vm.Operand{{Flags: vm.OperandInteger}}})
	b.ReferenceLabel(startLabel, jmpIx, 0)

	b.Label(endLabel)
}

// emitReturn evaluates its (at most one, per the concrete parser's single
// expression form) return expression into I0, the procedure's canonical
// return-value register, then returns to the caller.
func (g *Generator) emitReturn(b *vm.InstructionBlock, elem *elements.Element, ctx vm.EmitContext) {
	if len(elem.Args) > 0 {
		value := g.emitExpression(b, elem.Args[0], ctx.ForRead())
		b.Add(vm.Instruction{Op: vm.OpMove, Size: vm.SizeQWord, Operands: []vm.Operand{regOperand(0), value.operand()}})
	}

	b.Add(vm.Instruction{Op: vm.OpRts})
}

// emitProcedureType emits each of its instances as a named child block so
// JSR can target the procedure by label.
func (g *Generator) emitProcedureType(b *vm.InstructionBlock, procType *elements.Element) {
	for _, instanceId := range procType.ProcInstances {
		instance, ok := g.Registry.Find(instanceId)
		if !ok {
			continue
		}

		child := vm.NewInstructionBlock(procType.LabelName())
		child.Parent = b
		b.Children = append(b.Children, child)

		for _, paramId := range procType.ProcParams {
			if param, ok := g.Registry.Find(paramId); ok {
				if reg, allocated := child.AllocRegister(); allocated {
					g.registers[param.Id] = reg
				}
			}
		}

		g.emitBlockBody(child, instance.Rhs, vm.EmitContext{ProcedureName: procType.LabelName()})
		child.Add(vm.Instruction{Op: vm.OpRts})
	}
}

// emitProcedureCall pushes no arguments yet (argument marshalling is left
// to the stack-frame work the original does in its procedure-call emitter)
// and emits a JSR to the callee's label, returning I0.
func (g *Generator) emitProcedureCall(b *vm.InstructionBlock, elem *elements.Element, ctx vm.EmitContext) result {
	callee, ok := g.Registry.Find(elem.Callee)
	if !ok || callee.Kind != elements.KindIdentifierReference {
		g.Result.AddError("P004", &elem.Location, "", "procedure call target is not an identifier reference")
		return result{}
	}

	target, ok := g.Registry.Find(callee.ResolvedIdentifier)
	if !ok {
		g.Result.AddError("P004", &elem.Location, "", "unresolved procedure call target")
		return result{}
	}

	procType, ok := g.Registry.Find(target.DeclaredType)
	label := target.Name

	if ok && procType.Kind == elements.KindProcedureType {
		label = procType.LabelName()
	}

	ix := b.Add(vm.Instruction{Op: vm.OpJsr, Size: vm.SizeQWord, Operands: []vm.Operand{{Flags: vm.OperandInteger}}})
	b.ReferenceLabel(label, ix, 0)

	return regResult(0)
}
