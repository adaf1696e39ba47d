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
package elements

import (
	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/source"
)

// Element is the universal program-entity node. Every compiled
// construct, regardless of Kind, is one of these: cross-element
// references are always by Id (never a Go pointer), so cycles among
// references are legal while ownership still lives solely in the Registry.
type Element struct {
	Id Id
	Kind Kind

	ParentElement Id // 0 if none
	ParentScope   Id // 0 if none (the enclosing Block)
	Module        Id // 0 if none

	Attributes map[string]Id
	Location   source.Location

	// --- symbol / qualified name ---
	Namespaces []string
	Name       string
	Qualified  bool

	// --- literals ---
	IntValue   uint64
	FloatValue float64
	BoolValue  bool
	StrValue   string

	// --- operators ---
	Operator OperatorType
	Lhs      Id
	Rhs      Id

	// --- block / scope ---
	Statements []Id
	Comments   []Id
	Imports    []Id
	Blocks     []Id
	Identifiers map[string]Id
	Types       map[string]Id

	// --- types ---
	NumericMin, NumericMax uint64
	SizeInBytes            uint8
	Signed                 bool
	Floating               bool
	Composite              CompositeKind
	Fields                 []Id
	ArrayEntry              Id
	ArraySize               uint64
	PointerBase             Id
	ProcParams, ProcReturns []Id
	ProcScope               Id
	IsForeign               bool
	ProcInstances           []Id
	IsArray, IsPointer      bool

	// --- identifiers ---
	Symbol        Id
	DeclaredType  Id
	Initializer   Id
	Usage         string // "heap" | "stack"
	InferredType  bool
	Constant      bool

	// --- identifier reference ---
	ResolvedIdentifier Id
	Resolved           bool

	// --- directives/attributes ---
	AttrName  string
	AttrValue Id

	// --- argument lists / calls ---
	Args     []Id
	Callee   Id

	// --- misc containers ---
	Children []Id
	Label    string
}

// Id identifies an Element within a Registry. The zero value never refers
// to a real element (common.ID's pool starts at 1), so an unset Id is
// always distinguishable from a real one.
type Id = common.ID

// IsConstant reports whether this element's value is known at compile
// time: literals are always constant; operators are constant iff their
// operands are (checked by the caller, which has registry access — see
// Registry.IsConstant).
func (e *Element) IsConstant() bool {
	switch e.Kind {
	case KindIntegerLiteral, KindFloatLiteral, KindBooleanLiteral, KindStringLiteral:
		return true
	case KindNumericType, KindBoolType, KindStringType, KindAnyType, KindNamespaceType,
		KindModuleType, KindTypeInfoType, KindTupleType,
		KindProcedureType, KindCompositeType, KindArrayType, KindPointerType:
		// A resolved type is always known at compile time, so a reference to
		// one (e.g. the `u64` argument of `size_of(u64)`) is as constant as a
		// literal.
		return true
	default:
		return e.Constant
	}
}

// LabelName derives a stable label for this element, used by the code
// generator to name blocks that have no source-level identifier (e.g. an
// anonymous composite type's member block). Named identifiers use their
// own name; anonymous composites fall back to a kind-prefixed,
// id-suffixed name so every generated label is unique.
func (e *Element) LabelName() string {
	if e.Name != "" {
		return e.Name
	}

	switch e.Kind {
	case KindCompositeType:
		switch e.Composite {
		case CompositeUnion:
			return compositeLabel("union", e.Id)
		case CompositeEnum:
			return compositeLabel("enum", e.Id)
		default:
			return compositeLabel("struct", e.Id)
		}
	case KindProcedureType:
		return compositeLabel("proc", e.Id)
	default:
		return compositeLabel("block", e.Id)
	}
}

func compositeLabel(prefix string, id Id) string {
	return "__" + prefix + "_" + itoaID(uint64(id)) + "__"
}

func itoaID(v uint64) string {
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

// AsBool extracts a literal boolean value.
func (e *Element) AsBool() (bool, bool) {
	if e.Kind == KindBooleanLiteral {
		return e.BoolValue, true
	}

	return false, false
}

// AsInteger extracts a literal integer value.
func (e *Element) AsInteger() (uint64, bool) {
	if e.Kind == KindIntegerLiteral {
		return e.IntValue, true
	}

	return 0, false
}

// AsFloat extracts a literal float value.
func (e *Element) AsFloat() (float64, bool) {
	if e.Kind == KindFloatLiteral {
		return e.FloatValue, true
	}

	return 0, false
}

// AsString extracts a literal string value.
func (e *Element) AsString() (string, bool) {
	if e.Kind == KindStringLiteral {
		return e.StrValue, true
	}

	return "", false
}

// OnAccessModel reports how values of this type are held: numeric,
// bool, and pointer-shaped scalars are held by value; composite, array, and
// procedure types are accessed via pointer.
func (e *Element) OnAccessModel() AccessModel {
	switch e.Kind {
	case KindNumericType, KindBoolType, KindPointerType:
		return AccessValue
	default:
		return AccessPointer
	}
}
