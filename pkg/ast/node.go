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

// Package ast defines the AST that the elaboration front-end (pkg/eval)
// consumes: a tree of kind-tagged nodes carrying token values and source
// locations, produced by this package's own lexer/parser.
package ast

import (
	"github.com/basecode-lang/basecode/pkg/source"
)

// Kind tags every node in the tree.
type Kind uint8

// The node kinds the parser produces.
const (
	KindModule Kind = iota
	KindBasicBlock
	KindStatement
	KindExpression
	KindAssignment
	KindSymbol
	KindAttribute
	KindDirective
	KindProcCall
	KindProcExpression
	KindArgumentList
	KindUnaryOperator
	KindBinaryOperator
	KindIfExpression
	KindElseIfExpression
	KindElseExpression
	// KindWhileExpression denotes a `while cond { body }` loop, grouped with
	// the other control-flow node kinds.
	KindWhileExpression
	KindEnumExpression
	KindUnionExpression
	KindStructExpression
	KindReturnStatement
	KindImportExpression
	KindNamespaceExpression
	KindCastExpression
	KindAliasExpression
	KindTransmuteExpression
	KindLineComment
	KindBlockComment
	KindStringLiteral
	KindNumberLiteral
	KindBooleanLiteral
	KindNullLiteral
	// KindModuleExpression denotes a `module "path"` load expression.
	KindModuleExpression
)

// NumberType classifies a parsed numeric literal token.
type NumberType uint8

const (
	// NumberInteger indicates the token parses via Token.AsUint64.
	NumberInteger NumberType = iota
	// NumberFloating indicates the token parses via Token.AsFloat64.
	NumberFloating
)

// Token is the leaf payload attached to literal/symbol/operator nodes.
type Token struct {
	// Type is a short textual tag naming the lexical category, e.g.
	// "identifier", "operator", "number", "string".
	Type string
	// Value is the raw source text of this token.
	Value string
	// NumberType classifies Value when Type == "number".
	NumberType NumberType
	// Signed records whether a numeric literal's source text carried an
	// explicit minus sign.
	Signed bool
}

// AsUint64 parses Value as an unsigned 64-bit integer, applying two's
// complement conversion for signed literals.
func (t Token) AsUint64() uint64 {
	v, _ := ParseUint64(t.Value)

	if t.Signed {
		return uint64(-int64(v))
	}

	return v
}

// AsFloat64 parses Value as a 64-bit float.
func (t Token) AsFloat64() float64 {
	v, _ := ParseFloat64(t.Value)

	return v
}

// AsBool interprets Value as a boolean literal ("true"/"false").
func (t Token) AsBool() bool {
	return t.Value == "true"
}

// Node is a single element of the raw AST produced by the external
// parser. Every node carries a Kind, an optional leaf Token, optional
// Lhs/Rhs children (used by binary-shaped constructs), a general Children
// list (used by n-ary constructs such as basic_block/argument_list), and a
// SourceLocation.
type Node struct {
	Kind     Kind
	Token    Token
	Lhs      *Node
	Rhs      *Node
	Children []*Node
	Location source.Location

	// Flags carry the auxiliary node predicates the evaluator consults.
	IsArray             bool
	IsSpread            bool
	IsPointer           bool
	IsQualifiedSymbol   bool
	IsConstantExpr      bool
	ArraySize           uint64
	// Label carries the operator token or keyword spelling for operator
	// and directive/attribute nodes (e.g. "+", "#foreign", "library").
	Label string

	// TypeName, when non-nil, is the declared type of an assignment's
	// single target (the `: TYPE` portion of `x: u32 := 10;`). Rather than a
	// separate "type annotation" node kind, the parser threads the declared
	// type directly on the assignment node, for the evaluator's
	// add_identifier_to_scope to consume.
	TypeName *Node

	// IsConstantDecl marks a symbol that was declared with `::` rather
	// than `:=`, so the evaluator marks the resulting identifier constant.
	IsConstantDecl bool
}

// NewNode constructs a node of the given kind at the given location.
func NewNode(kind Kind, loc source.Location) *Node {
	return &Node{Kind: kind, Location: loc}
}
