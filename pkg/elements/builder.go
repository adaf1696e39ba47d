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

// Builder is the sole path by which elements come into existence: it
// assigns ids, registers each element, and sets parentage exactly once
// per child. It also keeps the session-wide bookkeeping lists the later
// resolution passes consume.
type Builder struct {
	Registry *Registry
	ids      *common.IDPool

	// StringLiterals interns string-literal values so duplicate source
	// text shares one canonical element.
	StringLiterals map[string]Id

	// IdentifiersWithUnknownTypes and UnresolvedIdentifierReferences are
	// the pending lists the later resolution passes consume.
	IdentifiersWithUnknownTypes    []Id
	UnresolvedIdentifierReferences []Id
}

// NewBuilder constructs a builder writing into registry, allocating ids
// from ids.
func NewBuilder(registry *Registry, ids *common.IDPool) *Builder {
	return &Builder{Registry: registry, ids: ids, StringLiterals: map[string]Id{}}
}

// new allocates, registers, and returns a new element of the given kind at
// loc. Callers fill in kind-specific fields afterward.
func (b *Builder) new(kind Kind, loc source.Location) *Element {
	elem := &Element{Id: b.ids.Next(), Kind: kind, Location: loc}
	b.Registry.Add(elem)

	return elem
}

// adopt sets child's ParentElement to parent.Id, exactly once per child.
func (b *Builder) adopt(parent *Element, children ...Id) {
	for _, child := range children {
		if child == 0 {
			continue
		}

		if c, ok := b.Registry.Find(child); ok {
			c.ParentElement = parent.Id
		}
	}
}

// --- symbols, attributes, directives -------------------------------------

// NewSymbol builds a SymbolElement from a qualified-name chain.
func (b *Builder) NewSymbol(namespaces []string, name string, constant bool, loc source.Location) *Element {
	elem := b.new(KindSymbol, loc)
	elem.Namespaces = namespaces
	elem.Name = name
	elem.Qualified = len(namespaces) > 0
	elem.Constant = constant

	return elem
}

// NewAttribute builds Attribute(name, value).
func (b *Builder) NewAttribute(name string, value Id, loc source.Location) *Element {
	elem := b.new(KindAttribute, loc)
	elem.AttrName = name
	elem.AttrValue = value
	b.adopt(elem, value)

	return elem
}

// NewDirective builds Directive(name, lhs).
func (b *Builder) NewDirective(name string, lhs Id, loc source.Location) *Element {
	elem := b.new(KindDirective, loc)
	elem.AttrName = name
	elem.Lhs = lhs
	b.adopt(elem, lhs)

	return elem
}

// NewLabel builds a branch/statement label.
func (b *Builder) NewLabel(name string, loc source.Location) *Element {
	elem := b.new(KindLabel, loc)
	elem.Name = name

	return elem
}

// NewField builds a Field wrapping an identifier, used for procedure
// params/returns and composite-type members.
func (b *Builder) NewField(identifier Id, loc source.Location) *Element {
	elem := b.new(KindField, loc)
	elem.Lhs = identifier
	b.adopt(elem, identifier)

	return elem
}

// NewComment builds a line or block comment element.
func (b *Builder) NewComment(block bool, text string, loc source.Location) *Element {
	kind := KindComment
	elem := b.new(kind, loc)
	elem.StrValue = text
	elem.BoolValue = block

	return elem
}

// --- blocks / module -----------------------------------------------------

// NewBlock pushes a new scope block of the given kind (module_block,
// proc_type_block, proc_instance_block, or generic block).
func (b *Builder) NewBlock(kind Kind, loc source.Location) *Element {
	elem := b.new(kind, loc)
	elem.Identifiers = map[string]Id{}
	elem.Types = map[string]Id{}

	return elem
}

// NewModule builds a Module element owning a module_block.
func (b *Builder) NewModule(block Id, loc source.Location) *Element {
	elem := b.new(KindModule, loc)
	elem.Lhs = block
	b.adopt(elem, block)

	return elem
}

// NewModuleReference wraps a loaded module.
func (b *Builder) NewModuleReference(module Id, loc source.Location) *Element {
	elem := b.new(KindModuleReference, loc)
	elem.Lhs = module
	b.adopt(elem, module)

	return elem
}

// --- types -----------------------------------------------------------------

// NumericTypeSpec describes one of the static primitive numeric types.
type NumericTypeSpec struct {
	Name     string
	Size     uint8
	Signed   bool
	Floating bool
	Min, Max uint64
}

// NumericTypeTable is the static table of primitive numeric types and
// their size/signedness/range.
var NumericTypeTable = []NumericTypeSpec{
	{"u8", 1, false, false, 0, 0xff},
	{"u16", 2, false, false, 0, 0xffff},
	{"u32", 4, false, false, 0, 0xffffffff},
	{"u64", 8, false, false, 0, 0xffffffffffffffff},
	{"s8", 1, true, false, 0, 0x7f},
	{"s16", 2, true, false, 0, 0x7fff},
	{"s32", 4, true, false, 0, 0x7fffffff},
	{"s64", 8, true, false, 0, 0x7fffffffffffffff},
	{"f32", 4, true, true, 0, 0},
	{"f64", 8, true, true, 0, 0},
	{"address", 8, false, false, 0, 0xffffffffffffffff},
}

// NewNumericType builds one of the primitive numeric types.
func (b *Builder) NewNumericType(spec NumericTypeSpec, loc source.Location) *Element {
	elem := b.new(KindNumericType, loc)
	elem.Name = spec.Name
	elem.SizeInBytes = spec.Size
	elem.Signed = spec.Signed
	elem.Floating = spec.Floating
	elem.NumericMin = spec.Min
	elem.NumericMax = spec.Max
	elem.Constant = true

	return elem
}

// NewBoolType, NewStringType, NewAnyType, NewNamespaceType, NewModuleType,
// NewTypeInfoType, and NewTupleType build the remaining core scalar/meta
// types.
func (b *Builder) newCoreType(kind Kind, name string, loc source.Location) *Element {
	elem := b.new(kind, loc)
	elem.Name = name
	elem.Constant = true

	return elem
}

func (b *Builder) NewBoolType(loc source.Location) *Element      { return b.newCoreType(KindBoolType, "bool", loc) }
func (b *Builder) NewStringType(loc source.Location) *Element    { return b.newCoreType(KindStringType, "string", loc) }
func (b *Builder) NewAnyType(loc source.Location) *Element       { return b.newCoreType(KindAnyType, "any", loc) }
func (b *Builder) NewNamespaceType(loc source.Location) *Element { return b.newCoreType(KindNamespaceType, "namespace", loc) }
func (b *Builder) NewModuleType(loc source.Location) *Element    { return b.newCoreType(KindModuleType, "module", loc) }
func (b *Builder) NewTypeInfoType(loc source.Location) *Element  { return b.newCoreType(KindTypeInfoType, "type_info", loc) }
func (b *Builder) NewTupleType(loc source.Location) *Element     { return b.newCoreType(KindTupleType, "tuple", loc) }

// NewCompositeType builds a struct/union/enum type over a member block.
func (b *Builder) NewCompositeType(kind CompositeKind, block Id, loc source.Location) *Element {
	elem := b.new(KindCompositeType, loc)
	elem.Composite = kind
	elem.Lhs = block
	b.adopt(elem, block)

	return elem
}

// NewArrayType builds (or should be called only after the scope manager
// confirms no interned instance exists for) an array-of-entry-size-n type;
// array types are interned by entry/size within a scope chain.
func (b *Builder) NewArrayType(entry Id, size uint64, loc source.Location) *Element {
	elem := b.new(KindArrayType, loc)
	elem.ArrayEntry = entry
	elem.ArraySize = size
	b.adopt(elem, entry)

	return elem
}

// NewPointerType builds a pointer-to-base type.
func (b *Builder) NewPointerType(base Id, loc source.Location) *Element {
	elem := b.new(KindPointerType, loc)
	elem.PointerBase = base
	b.adopt(elem, base)

	return elem
}

// NewProcedureType builds a ProcedureType over its own scope block.
func (b *Builder) NewProcedureType(scope Id, params, returns []Id, isForeign bool, loc source.Location) *Element {
	elem := b.new(KindProcedureType, loc)
	elem.ProcScope = scope
	elem.ProcParams = params
	elem.ProcReturns = returns
	elem.IsForeign = isForeign
	elem.Constant = true
	b.adopt(elem, scope)
	b.adopt(elem, params...)
	b.adopt(elem, returns...)

	return elem
}

// NewProcedureInstance builds one body (block) of a procedure type.
func (b *Builder) NewProcedureInstance(procType, block Id, loc source.Location) *Element {
	elem := b.new(KindProcedureInstance, loc)
	elem.Lhs = procType
	elem.Rhs = block
	b.adopt(elem, block)

	if owner, ok := b.Registry.Find(procType); ok {
		owner.ProcInstances = append(owner.ProcInstances, elem.Id)
	}

	return elem
}

// NewUnknownType builds a deferred-resolution placeholder; the caller
// records it for later type resolution.
func (b *Builder) NewUnknownType(name string, isArray, isPointer bool, arraySize uint64, loc source.Location) *Element {
	elem := b.new(KindUnknownType, loc)
	elem.Name = name
	elem.IsArray = isArray
	elem.IsPointer = isPointer
	elem.ArraySize = arraySize

	return elem
}

// --- identifiers -----------------------------------------------------------

// NewIdentifier builds an Identifier bound to a symbol, optional declared
// type, and optional initializer.
func (b *Builder) NewIdentifier(scope Id, symbol, declaredType, initializer Id, usage string, loc source.Location) *Element {
	elem := b.new(KindIdentifier, loc)
	elem.ParentScope = scope
	elem.Symbol = symbol
	elem.DeclaredType = declaredType
	elem.Initializer = initializer
	elem.Usage = usage

	if sym, ok := b.Registry.Find(symbol); ok {
		elem.Name = sym.Name
		elem.Namespaces = sym.Namespaces
	}

	b.adopt(elem, symbol, initializer)

	return elem
}

// NewInitializer wraps a compile-time-constant expression.
func (b *Builder) NewInitializer(expression Id, loc source.Location) *Element {
	elem := b.new(KindInitializer, loc)
	elem.Lhs = expression
	b.adopt(elem, expression)

	return elem
}

// NewIdentifierReference builds an (possibly unresolved) IdentifierReference.
// Callers append the returned id to UnresolvedIdentifierReferences
// themselves when resolved == false, since only the caller knows the scope
// to retry against later.
func (b *Builder) NewIdentifierReference(symbol Id, identifier Id, resolved bool, loc source.Location) *Element {
	elem := b.new(KindIdentifierReference, loc)
	elem.Symbol = symbol
	elem.ResolvedIdentifier = identifier
	elem.Resolved = resolved
	b.adopt(elem, symbol)

	return elem
}

// --- literals ----------------------------------------------------------

// NewIntegerLiteral builds an integer literal element, recording the
// two's-complement size/signedness it was produced at (used by fold.go to
// preserve width/sign through constant-folded arithmetic).
func (b *Builder) NewIntegerLiteral(value int64, sizeInBytes uint8, signed bool, loc source.Location) *Element {
	elem := b.new(KindIntegerLiteral, loc)
	elem.IntValue = uint64(value)
	elem.SizeInBytes = sizeInBytes
	elem.Signed = signed

	return elem
}

func (b *Builder) NewFloatLiteral(value float64, loc source.Location) *Element {
	elem := b.new(KindFloatLiteral, loc)
	elem.FloatValue = value

	return elem
}

func (b *Builder) NewBooleanLiteral(value bool, loc source.Location) *Element {
	elem := b.new(KindBooleanLiteral, loc)
	elem.BoolValue = value

	return elem
}

// NewStringLiteral interns by value: a repeated string literal's source
// text shares one canonical element.
func (b *Builder) NewStringLiteral(value string, loc source.Location) *Element {
	if id, ok := b.StringLiterals[value]; ok {
		if elem, ok := b.Registry.Find(id); ok {
			return elem
		}
	}

	elem := b.new(KindStringLiteral, loc)
	elem.StrValue = value
	b.StringLiterals[value] = elem.Id

	return elem
}

// --- expressions / operators ---------------------------------------------

func (b *Builder) NewUnaryOperator(op OperatorType, rhs Id, loc source.Location) *Element {
	elem := b.new(KindUnaryOperator, loc)
	elem.Operator = op
	elem.Rhs = rhs
	b.adopt(elem, rhs)

	return elem
}

func (b *Builder) NewBinaryOperator(op OperatorType, lhs, rhs Id, loc source.Location) *Element {
	elem := b.new(KindBinaryOperator, loc)
	elem.Operator = op
	elem.Lhs = lhs
	elem.Rhs = rhs
	b.adopt(elem, lhs, rhs)

	return elem
}

func (b *Builder) newConversion(kind Kind, typeRef, rhs Id, loc source.Location) *Element {
	elem := b.new(kind, loc)
	elem.DeclaredType = typeRef
	elem.Rhs = rhs
	b.adopt(elem, rhs)

	return elem
}

func (b *Builder) NewCast(typeRef, rhs Id, loc source.Location) *Element {
	return b.newConversion(KindCast, typeRef, rhs, loc)
}

func (b *Builder) NewTransmute(typeRef, rhs Id, loc source.Location) *Element {
	return b.newConversion(KindTransmute, typeRef, rhs, loc)
}

func (b *Builder) NewAlias(rhs Id, loc source.Location) *Element {
	elem := b.new(KindAlias, loc)
	elem.Rhs = rhs
	b.adopt(elem, rhs)

	return elem
}

// NewArgumentList builds the ArgumentList wrapping a call's evaluated args.
func (b *Builder) NewArgumentList(args []Id, loc source.Location) *Element {
	elem := b.new(KindArgumentList, loc)
	elem.Args = args
	b.adopt(elem, args...)

	return elem
}

// NewProcedureCall assembles ProcedureCall(ref, args).
func (b *Builder) NewProcedureCall(ref, args Id, loc source.Location) *Element {
	elem := b.new(KindProcedureCall, loc)
	elem.Callee = ref
	elem.Args = []Id{args}
	b.adopt(elem, ref, args)

	return elem
}

// NewIntrinsic builds one of the special procedure-like elements
// (size_of, align_of, type_of, alloc, free, copy, fill).
func (b *Builder) NewIntrinsic(name string, args []Id, loc source.Location) *Element {
	elem := b.new(KindIntrinsic, loc)
	elem.Name = name
	elem.Args = args
	b.adopt(elem, args...)

	return elem
}

func (b *Builder) NewIf(predicate, trueBranch, falseBranch Id, loc source.Location) *Element {
	elem := b.new(KindIf, loc)
	elem.Lhs = predicate
	elem.Rhs = trueBranch
	elem.Children = []Id{falseBranch}
	b.adopt(elem, predicate, trueBranch, falseBranch)

	return elem
}

func (b *Builder) NewWhile(predicate, body Id, loc source.Location) *Element {
	elem := b.new(KindWhile, loc)
	elem.Lhs = predicate
	elem.Rhs = body
	b.adopt(elem, predicate, body)

	return elem
}

func (b *Builder) NewReturn(expressions []Id, loc source.Location) *Element {
	elem := b.new(KindReturn, loc)
	elem.Args = expressions
	b.adopt(elem, expressions...)

	return elem
}

func (b *Builder) NewStatement(labels []Id, expression Id, loc source.Location) *Element {
	elem := b.new(KindStatement, loc)
	elem.Args = labels
	elem.Lhs = expression
	b.adopt(elem, expression)
	b.adopt(elem, labels...)

	return elem
}

func (b *Builder) NewExpression(lhs Id, loc source.Location) *Element {
	elem := b.new(KindExpression, loc)
	elem.Lhs = lhs
	b.adopt(elem, lhs)

	return elem
}

func (b *Builder) NewImport(symbol, reference Id, loc source.Location) *Element {
	elem := b.new(KindImport, loc)
	elem.Symbol = symbol
	elem.Lhs = reference
	b.adopt(elem, symbol, reference)

	return elem
}

func (b *Builder) NewNamespace(identifier Id, loc source.Location) *Element {
	elem := b.new(KindNamespace, loc)
	elem.Lhs = identifier
	b.adopt(elem, identifier)

	return elem
}
