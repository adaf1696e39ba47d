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

// Package semantic implements the inference/fold/type-check phases that
// run after elaboration: resolving identifier references and unknown
// types left pending by pkg/eval, inferring an identifier's type from its
// initializer, constant-folding operators over literals and the
// size_of/align_of intrinsics,
// and checking a declared type against its initializer's inferred type.
// It lives apart from pkg/elements because it needs pkg/scope's name
// resolution, and pkg/scope already imports pkg/elements.
package semantic

import (
	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/scope"
	"github.com/basecode-lang/basecode/pkg/source"
)

// Checker threads the registry, scope manager, and diagnostic result
// through every phase-4-7 pass.
type Checker struct {
	Registry *elements.Registry
	Scope    *scope.Manager
	Builder  *elements.Builder
	Result   *common.Result
	// CoreScope is the block holding the builtin numeric/bool/string/...
	// types (populated by session.Session.InitCoreTypes). It is the lookup
	// root for coreNumericType/coreBoolType/coreStringType rather than
	// Scope.CurrentTopLevel(), which is empty by the time these later
	// phases run (every module's scope has already been popped).
	CoreScope elements.Id
}

// New constructs a checker over the given builder/manager pair.
func New(builder *elements.Builder, mgr *scope.Manager, result *common.Result) *Checker {
	return &Checker{Registry: builder.Registry, Scope: mgr, Builder: builder, Result: result}
}

// ResolveIdentifierReferences implements session phase 4: every reference
// left unresolved by pkg/eval is retried now that every module's top-level
// declarations exist.
func (c *Checker) ResolveIdentifierReferences() {
	pending := c.Builder.UnresolvedIdentifierReferences
	c.Builder.UnresolvedIdentifierReferences = nil

	for _, refId := range pending {
		ref, ok := c.Registry.Find(refId)
		if !ok || ref.Resolved {
			continue
		}

		symbol, ok := c.Registry.Find(ref.Symbol)
		if !ok {
			continue
		}

		ident, ok := c.Scope.FindIdentifier(symbol.Namespaces, symbol.Name, ref.ParentScope)
		if !ok {
			c.Result.AddError("P004", &ref.Location, "", "unresolved identifier %q", symbol.Name)
			continue
		}

		ref.ResolvedIdentifier = ident.Id
		ref.Resolved = true
	}
}

// ResolveUnknownTypes implements session phase 5: every identifier whose
// declared type was a placeholder UnknownType at elaboration time (because
// the named type appeared later in the file) gets its DeclaredType patched
// to the now-resolvable concrete type.
func (c *Checker) ResolveUnknownTypes() {
	pending := c.Builder.IdentifiersWithUnknownTypes
	c.Builder.IdentifiersWithUnknownTypes = nil

	for _, identId := range pending {
		ident, ok := c.Registry.Find(identId)
		if !ok {
			continue
		}

		unknown, ok := c.Registry.Find(ident.DeclaredType)
		if !ok || unknown.Kind != elements.KindUnknownType {
			continue
		}

		resolved, ok := c.resolveNamedType(unknown, ident.ParentScope)
		if !ok {
			c.Result.AddError("P004", &ident.Location, "", "unresolved type %q", unknown.Name)
			continue
		}

		ident.DeclaredType = resolved
	}
}

func (c *Checker) resolveNamedType(unknown *elements.Element, from elements.Id) (elements.Id, bool) {
	t, ok := c.Scope.FindType(nil, unknown.Name, from)
	if !ok {
		return 0, false
	}

	if unknown.IsPointer {
		if ptr, ok := c.Scope.FindPointerType(unknown.Name, from); ok {
			return ptr.Id, true
		}

		return c.Builder.NewPointerType(t.Id, unknown.Location).Id, true
	}

	if unknown.IsArray {
		if arr, ok := c.Scope.FindArrayType(unknown.Name, unknown.ArraySize, from); ok {
			return arr.Id, true
		}

		return c.Builder.NewArrayType(t.Id, unknown.ArraySize, unknown.Location).Id, true
	}

	return t.Id, true
}

// InferType assigns a type to an identifier with no DeclaredType: it
// takes the type of its initializer's (possibly constant-folded) value.
func (c *Checker) InferType(identId elements.Id) elements.Id {
	ident, ok := c.Registry.Find(identId)
	if !ok || !ident.InferredType {
		return 0
	}

	if ident.DeclaredType != 0 {
		if declared, ok := c.Registry.Find(ident.DeclaredType); ok && declared.Kind != elements.KindUnknownType {
			return ident.DeclaredType
		}
	}

	if ident.Initializer == 0 {
		return 0
	}

	value := c.initializerValue(ident.Initializer)

	t := c.typeOf(value, map[elements.Id]bool{identId: true})
	if t != 0 {
		ident.DeclaredType = t
	}

	return t
}

func (c *Checker) initializerValue(initId elements.Id) elements.Id {
	init, ok := c.Registry.Find(initId)
	if ok && init.Kind == elements.KindInitializer {
		return init.Lhs
	}

	return initId
}

// typeOf computes the type of an arbitrary expression element,
// materializing core types the first time they're needed. Integer
// literals are coarsely typed u32, matching the original's inference.
// visited guards against reference cycles (an identifier whose
// initializer mentions itself).
func (c *Checker) typeOf(id elements.Id, visited map[elements.Id]bool) elements.Id {
	elem, ok := c.Registry.Find(id)
	if !ok {
		return 0
	}

	switch elem.Kind {
	case elements.KindIntegerLiteral:
		return c.coreNumericType("u32")
	case elements.KindFloatLiteral:
		return c.coreNumericType("f64")
	case elements.KindBooleanLiteral:
		return c.coreBoolType()
	case elements.KindStringLiteral:
		return c.coreStringType()
	case elements.KindCompositeType, elements.KindArrayType, elements.KindPointerType, elements.KindProcedureType:
		return id
	case elements.KindExpression, elements.KindInitializer, elements.KindAlias, elements.KindStatement:
		return c.typeOf(elem.Lhs, visited)
	case elements.KindCast, elements.KindTransmute:
		return elem.DeclaredType
	case elements.KindIdentifier:
		return c.typeOfIdentifier(elem, visited)
	case elements.KindIdentifierReference:
		if !elem.Resolved {
			return 0
		}

		ident, ok := c.Registry.Find(elem.ResolvedIdentifier)
		if !ok {
			return 0
		}

		return c.typeOfIdentifier(ident, visited)
	case elements.KindUnaryOperator:
		if elem.Operator == elements.OpLogicalNot {
			return c.coreBoolType()
		}

		return c.typeOf(elem.Rhs, visited)
	case elements.KindBinaryOperator:
		return c.typeOfBinary(elem, visited)
	case elements.KindIntrinsic:
		return c.typeOfIntrinsic(elem)
	default:
		return 0
	}
}

func (c *Checker) typeOfIdentifier(ident *elements.Element, visited map[elements.Id]bool) elements.Id {
	if visited[ident.Id] {
		return 0
	}

	visited[ident.Id] = true

	if ident.DeclaredType != 0 {
		if declared, ok := c.Registry.Find(ident.DeclaredType); ok && declared.Kind != elements.KindUnknownType {
			return ident.DeclaredType
		}
	}

	if ident.Initializer == 0 {
		return 0
	}

	t := c.typeOf(c.initializerValue(ident.Initializer), visited)
	if t != 0 && ident.InferredType {
		ident.DeclaredType = t
	}

	return t
}

// typeOfBinary unifies a binary operator's operand types: comparisons and
// logical connectives produce bool; assignment takes the target's type;
// arithmetic produces the floating-point operand's type when the operands
// mix integer and float, otherwise the left operand's type.
func (c *Checker) typeOfBinary(elem *elements.Element, visited map[elements.Id]bool) elements.Id {
	switch elem.Operator {
	case elements.OpEquals, elements.OpNotEquals,
		elements.OpLessThan, elements.OpLessThanOrEqual,
		elements.OpGreaterThan, elements.OpGreaterThanOrEqual,
		elements.OpLogicalAnd, elements.OpLogicalOr:
		return c.coreBoolType()
	case elements.OpAssignment:
		return c.typeOf(elem.Lhs, visited)
	}

	lhs := c.typeOf(elem.Lhs, visited)
	rhs := c.typeOf(elem.Rhs, visited)

	if c.isFloatingType(rhs) && !c.isFloatingType(lhs) {
		return rhs
	}

	if lhs != 0 {
		return lhs
	}

	return rhs
}

func (c *Checker) typeOfIntrinsic(elem *elements.Element) elements.Id {
	switch elem.Name {
	case "size_of", "align_of":
		return c.coreNumericType("u32")
	case "alloc":
		return c.coreNumericType("address")
	default:
		return 0
	}
}

func (c *Checker) isFloatingType(id elements.Id) bool {
	t, ok := c.Registry.Find(id)
	return ok && t.Kind == elements.KindNumericType && t.Floating
}

func (c *Checker) coreNumericType(name string) elements.Id {
	if t, ok := c.Scope.FindType(nil, name, c.CoreScope); ok {
		return t.Id
	}

	for _, spec := range elements.NumericTypeTable {
		if spec.Name == name {
			return c.Builder.NewNumericType(spec, c.zeroLocation()).Id
		}
	}

	return 0
}

func (c *Checker) coreBoolType() elements.Id {
	if t, ok := c.Scope.FindType(nil, "bool", c.CoreScope); ok {
		return t.Id
	}

	return c.Builder.NewBoolType(c.zeroLocation()).Id
}

func (c *Checker) coreStringType() elements.Id {
	if t, ok := c.Scope.FindType(nil, "string", c.CoreScope); ok {
		return t.Id
	}

	return c.Builder.NewStringType(c.zeroLocation()).Id
}

// OnTypeCheck reports an identifier whose declared type and inferred
// initializer type disagree.
func (c *Checker) OnTypeCheck(identId elements.Id) {
	ident, ok := c.Registry.Find(identId)
	if !ok || ident.DeclaredType == 0 || ident.Initializer == 0 {
		return
	}

	value := c.initializerValue(ident.Initializer)

	actual := c.typeOf(value, map[elements.Id]bool{identId: true})
	if actual == 0 {
		return
	}

	declared, ok := c.Registry.Find(ident.DeclaredType)
	if !ok {
		return
	}

	actualElem, ok := c.Registry.Find(actual)
	if !ok {
		return
	}

	if !typesCompatible(declared, actualElem) {
		c.Result.AddError("C051", &ident.Location, "", "cannot assign %s to identifier %q declared as %s",
			actualElem.LabelName(), ident.Name, declared.LabelName())
	}
}

// CheckAssignment verifies a reassignment's RHS type against the target
// identifier's declared type (C051). Unresolved targets were already
// reported by the resolution pass and are skipped here.
func (c *Checker) CheckAssignment(id elements.Id) {
	binop, ok := c.Registry.Find(id)
	if !ok || binop.Operator != elements.OpAssignment {
		return
	}

	target, ok := c.Registry.Find(binop.Lhs)
	if !ok || target.Kind != elements.KindIdentifierReference || !target.Resolved {
		return
	}

	ident, ok := c.Registry.Find(target.ResolvedIdentifier)
	if !ok || ident.DeclaredType == 0 {
		return
	}

	actualId := c.typeOf(binop.Rhs, map[elements.Id]bool{})
	if actualId == 0 {
		return
	}

	declared, ok := c.Registry.Find(ident.DeclaredType)
	if !ok {
		return
	}

	actual, ok := c.Registry.Find(actualId)
	if !ok {
		return
	}

	if !typesCompatible(declared, actual) {
		c.Result.AddError("C051", &binop.Location, "", "cannot assign %s to identifier %q declared as %s",
			actual.LabelName(), ident.Name, declared.LabelName())
	}
}

// typesCompatible reports whether an initializer of kind actual may be
// assigned to a declaration of kind declared. Numeric-to-numeric and
// exact-kind matches are accepted; this is intentionally permissive about
// widening/narrowing between numeric types, left to a later pass.
func typesCompatible(declared, actual *elements.Element) bool {
	if declared.Kind == elements.KindAnyType {
		return true
	}

	if declared.Kind == elements.KindNumericType && actual.Kind == elements.KindNumericType {
		return true
	}

	return declared.Kind == actual.Kind
}

func (c *Checker) zeroLocation() (loc source.Location) {
	return loc
}
