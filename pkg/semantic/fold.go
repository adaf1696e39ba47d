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
package semantic

import (
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/source"
)

// Fold replaces constant subexpressions (unary and binary operators over
// literal operands, and the size_of/align_of intrinsics) with a new
// literal holding their computed value, so pkg/codegen never has to recognize
// constant subexpressions itself. Fold recurses bottom-up and reports the
// (possibly unchanged) id to use in the parent's place.
func (c *Checker) Fold(id elements.Id) elements.Id {
	elem, ok := c.Registry.Find(id)
	if !ok {
		return id
	}

	switch elem.Kind {
	case elements.KindUnaryOperator:
		return c.foldUnary(elem)
	case elements.KindBinaryOperator:
		return c.foldBinary(elem)
	case elements.KindIntrinsic:
		return c.foldIntrinsic(elem)
	default:
		return id
	}
}

// foldIntrinsic folds an intrinsic's arguments per-kind: size_of/align_of
// are always constant (their argument is a type, known entirely at
// compile time) and fold to an IntegerLiteral;
// type_of, and the side-effecting alloc/free/copy/fill intrinsics, are
// never folded here (type_of would need a first-class type-value literal
// kind this element model doesn't define; the others have runtime effects).
func (c *Checker) foldIntrinsic(elem *elements.Element) elements.Id {
	switch elem.Name {
	case "size_of":
		return c.foldSizeOrAlignOf(elem, c.sizeOfType)
	case "align_of":
		return c.foldSizeOrAlignOf(elem, c.alignOfType)
	default:
		return elem.Id
	}
}

func (c *Checker) foldSizeOrAlignOf(elem *elements.Element, measure func(elements.Id) (uint64, bool)) elements.Id {
	if len(elem.Args) != 1 {
		return elem.Id
	}

	size, ok := measure(elem.Args[0])
	if !ok {
		return elem.Id
	}

	return c.Builder.NewIntegerLiteral(int64(size), 8, false, elem.Location).Id
}

// sizeOfType computes the storage size, in bytes, of the type named by id.
func (c *Checker) sizeOfType(id elements.Id) (uint64, bool) {
	t, ok := c.Registry.Find(id)
	if !ok {
		return 0, false
	}

	switch t.Kind {
	case elements.KindNumericType:
		return uint64(t.SizeInBytes), true
	case elements.KindBoolType:
		return 1, true
	case elements.KindStringType, elements.KindPointerType:
		return 8, true
	case elements.KindArrayType:
		elemSize, ok := c.sizeOfType(t.ArrayEntry)
		if !ok {
			return 0, false
		}

		return elemSize * t.ArraySize, true
	case elements.KindCompositeType:
		block, ok := c.Registry.Find(t.Lhs)
		if !ok {
			return 0, false
		}

		var total uint64

		for _, fieldId := range block.Fields {
			field, ok := c.Registry.Find(fieldId)
			if !ok {
				return 0, false
			}

			ident, ok := c.Registry.Find(field.Lhs)
			if !ok {
				return 0, false
			}

			fieldSize, ok := c.sizeOfType(ident.DeclaredType)
			if !ok {
				return 0, false
			}

			total += fieldSize
		}

		return total, true
	default:
		return 0, false
	}
}

// alignOfType approximates natural alignment as the type's size capped at
// 8 bytes (the VM's widest register width), matching the original's
// pointer-width-aligned allocator.
func (c *Checker) alignOfType(id elements.Id) (uint64, bool) {
	size, ok := c.sizeOfType(id)
	if !ok {
		return 0, false
	}

	if size > 8 {
		return 8, true
	}

	return size, true
}

func (c *Checker) foldUnary(elem *elements.Element) elements.Id {
	operand := c.Fold(elem.Rhs)
	elem.Rhs = operand

	val, ok := c.Registry.Find(operand)
	if !ok || !val.IsConstant() {
		return elem.Id
	}

	switch elem.Operator {
	case elements.OpNegate:
		if i, ok := val.AsInteger(); ok {
			return c.Builder.NewIntegerLiteral(-int64(i), val.SizeInBytes, true, elem.Location).Id
		}

		if f, ok := val.AsFloat(); ok {
			return c.Builder.NewFloatLiteral(-f, elem.Location).Id
		}
	case elements.OpBinaryNot:
		if i, ok := val.AsInteger(); ok {
			return c.Builder.NewIntegerLiteral(int64(^i), val.SizeInBytes, val.Signed, elem.Location).Id
		}
	case elements.OpLogicalNot:
		if b, ok := val.AsBool(); ok {
			return c.Builder.NewBooleanLiteral(!b, elem.Location).Id
		}
	}

	return elem.Id
}

func (c *Checker) foldBinary(elem *elements.Element) elements.Id {
	if elem.Operator == elements.OpAssignment {
		elem.Rhs = c.Fold(elem.Rhs)
		return elem.Id
	}

	lhsId := c.Fold(elem.Lhs)
	rhsId := c.Fold(elem.Rhs)
	elem.Lhs, elem.Rhs = lhsId, rhsId

	lhs, ok := c.Registry.Find(lhsId)
	if !ok || !lhs.IsConstant() {
		return elem.Id
	}

	rhs, ok := c.Registry.Find(rhsId)
	if !ok || !rhs.IsConstant() {
		return elem.Id
	}

	if li, lok := lhs.AsInteger(); lok {
		if ri, rok := rhs.AsInteger(); rok {
			return c.foldIntegerPair(elem, li, ri, lhs.SizeInBytes, lhs.Signed)
		}
	}

	if lf, lok := lhs.AsFloat(); lok {
		if rf, rok := rhs.AsFloat(); rok {
			return c.foldFloatPair(elem, lf, rf)
		}
	}

	if lb, lok := lhs.AsBool(); lok {
		if rb, rok := rhs.AsBool(); rok {
			return c.foldBoolPair(elem, lb, rb)
		}
	}

	return elem.Id
}

func (c *Checker) foldIntegerPair(elem *elements.Element, l, r uint64, size uint8, signed bool) elements.Id {
	switch elem.Operator {
	case elements.OpAdd:
		return c.intLiteral(l+r, size, signed, elem.Location)
	case elements.OpSubtract:
		return c.intLiteral(l-r, size, signed, elem.Location)
	case elements.OpMultiply:
		return c.intLiteral(l*r, size, signed, elem.Location)
	case elements.OpDivide:
		if r == 0 {
			return elem.Id
		}

		return c.intLiteral(l/r, size, signed, elem.Location)
	case elements.OpModulo:
		if r == 0 {
			return elem.Id
		}

		return c.intLiteral(l%r, size, signed, elem.Location)
	case elements.OpBinaryAnd:
		return c.intLiteral(l&r, size, signed, elem.Location)
	case elements.OpBinaryOr:
		return c.intLiteral(l|r, size, signed, elem.Location)
	case elements.OpBinaryXor:
		return c.intLiteral(l^r, size, signed, elem.Location)
	case elements.OpShiftLeft:
		return c.intLiteral(l<<r, size, signed, elem.Location)
	case elements.OpShiftRight:
		return c.intLiteral(l>>r, size, signed, elem.Location)
	case elements.OpEquals:
		return c.Builder.NewBooleanLiteral(l == r, elem.Location).Id
	case elements.OpNotEquals:
		return c.Builder.NewBooleanLiteral(l != r, elem.Location).Id
	case elements.OpLessThan:
		return c.Builder.NewBooleanLiteral(l < r, elem.Location).Id
	case elements.OpLessThanOrEqual:
		return c.Builder.NewBooleanLiteral(l <= r, elem.Location).Id
	case elements.OpGreaterThan:
		return c.Builder.NewBooleanLiteral(l > r, elem.Location).Id
	case elements.OpGreaterThanOrEqual:
		return c.Builder.NewBooleanLiteral(l >= r, elem.Location).Id
	default:
		return elem.Id
	}
}

func (c *Checker) foldFloatPair(elem *elements.Element, l, r float64) elements.Id {
	switch elem.Operator {
	case elements.OpAdd:
		return c.Builder.NewFloatLiteral(l+r, elem.Location).Id
	case elements.OpSubtract:
		return c.Builder.NewFloatLiteral(l-r, elem.Location).Id
	case elements.OpMultiply:
		return c.Builder.NewFloatLiteral(l*r, elem.Location).Id
	case elements.OpDivide:
		if r == 0 {
			return elem.Id
		}

		return c.Builder.NewFloatLiteral(l/r, elem.Location).Id
	case elements.OpEquals:
		return c.Builder.NewBooleanLiteral(l == r, elem.Location).Id
	case elements.OpNotEquals:
		return c.Builder.NewBooleanLiteral(l != r, elem.Location).Id
	case elements.OpLessThan:
		return c.Builder.NewBooleanLiteral(l < r, elem.Location).Id
	case elements.OpLessThanOrEqual:
		return c.Builder.NewBooleanLiteral(l <= r, elem.Location).Id
	case elements.OpGreaterThan:
		return c.Builder.NewBooleanLiteral(l > r, elem.Location).Id
	case elements.OpGreaterThanOrEqual:
		return c.Builder.NewBooleanLiteral(l >= r, elem.Location).Id
	default:
		return elem.Id
	}
}

func (c *Checker) foldBoolPair(elem *elements.Element, l, r bool) elements.Id {
	switch elem.Operator {
	case elements.OpLogicalAnd:
		return c.Builder.NewBooleanLiteral(l && r, elem.Location).Id
	case elements.OpLogicalOr:
		return c.Builder.NewBooleanLiteral(l || r, elem.Location).Id
	case elements.OpEquals:
		return c.Builder.NewBooleanLiteral(l == r, elem.Location).Id
	case elements.OpNotEquals:
		return c.Builder.NewBooleanLiteral(l != r, elem.Location).Id
	default:
		return elem.Id
	}
}

func (c *Checker) intLiteral(v uint64, size uint8, signed bool, loc source.Location) elements.Id {
	return c.Builder.NewIntegerLiteral(int64(v), size, signed, loc).Id
}
