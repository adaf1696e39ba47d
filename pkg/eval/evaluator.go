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

// Package eval implements the AST Evaluator: the single-entry elaboration
// front end that walks a parsed ast.Node tree and builds the corresponding
// elements.Element graph.
package eval

import (
	"path/filepath"

	"github.com/basecode-lang/basecode/pkg/ast"
	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/scope"
)

// Evaluator holds the shared state threaded through every evaluate call:
// the element builder, the scope manager, and the diagnostics result being
// accumulated for the current source file.
type Evaluator struct {
	Builder *elements.Builder
	Scope   *scope.Manager
	File    string
	Result  *common.Result

	// LoadModule compiles another source file into a Module element, for
	// `module "path"` expressions. It is installed by the session driver;
	// when nil, module expressions fail with C021.
	LoadModule func(path string) elements.Id
}

// New constructs an evaluator over builder/mgr, reporting diagnostics
// against file into result.
func New(builder *elements.Builder, mgr *scope.Manager, file string, result *common.Result) *Evaluator {
	return &Evaluator{Builder: builder, Scope: mgr, File: file, Result: result}
}

// Evaluate dispatches on node.Kind, one case per node kind the parser
// produces. It returns 0 if the node failed to elaborate (a diagnostic has
// already been recorded).
func (e *Evaluator) Evaluate(node *ast.Node, defaultBlockKind elements.Kind) elements.Id {
	if node == nil {
		return 0
	}

	switch node.Kind {
	case ast.KindModule:
		return e.evalModule(node)
	case ast.KindBasicBlock:
		return e.evalBasicBlock(node, defaultBlockKind)
	case ast.KindStatement:
		return e.evalStatement(node)
	case ast.KindExpression:
		return e.evalExpression(node)
	case ast.KindAssignment:
		return e.evalAssignment(node)
	case ast.KindSymbol:
		return e.evalSymbol(node)
	case ast.KindAttribute:
		return e.evalAttribute(node)
	case ast.KindDirective:
		return e.evalDirective(node)
	case ast.KindProcCall:
		return e.evalProcCall(node)
	case ast.KindProcExpression:
		return e.evalProcExpression(node)
	case ast.KindArgumentList:
		return e.evalArgumentList(node)
	case ast.KindUnaryOperator:
		return e.evalUnaryOperator(node)
	case ast.KindBinaryOperator:
		return e.evalBinaryOperator(node)
	case ast.KindIfExpression:
		return e.evalIf(node)
	case ast.KindWhileExpression:
		return e.evalWhile(node)
	case ast.KindEnumExpression:
		return e.evalComposite(node, elements.CompositeEnum)
	case ast.KindUnionExpression:
		return e.evalComposite(node, elements.CompositeUnion)
	case ast.KindStructExpression:
		return e.evalComposite(node, elements.CompositeStruct)
	case ast.KindReturnStatement:
		return e.evalReturn(node)
	case ast.KindImportExpression:
		return e.evalImport(node)
	case ast.KindNamespaceExpression:
		return e.evalNamespace(node)
	case ast.KindModuleExpression:
		return e.evalModuleExpression(node)
	case ast.KindCastExpression:
		return e.evalConversion(node, elements.KindCast)
	case ast.KindTransmuteExpression:
		return e.evalConversion(node, elements.KindTransmute)
	case ast.KindAliasExpression:
		return e.evalAlias(node)
	case ast.KindLineComment:
		return e.Builder.NewComment(false, node.Token.Value, node.Location).Id
	case ast.KindBlockComment:
		return e.Builder.NewComment(true, node.Token.Value, node.Location).Id
	case ast.KindStringLiteral:
		return e.Builder.NewStringLiteral(node.Token.Value, node.Location).Id
	case ast.KindNumberLiteral:
		return e.evalNumberLiteral(node)
	case ast.KindBooleanLiteral:
		return e.Builder.NewBooleanLiteral(node.Token.AsBool(), node.Location).Id
	case ast.KindNullLiteral:
		return e.Builder.NewIntegerLiteral(0, 8, false, node.Location).Id
	default:
		e.Result.AddError("P001", &node.Location, e.File, "unsupported node kind")
		return 0
	}
}

func (e *Evaluator) evalNumberLiteral(node *ast.Node) elements.Id {
	if node.Token.NumberType == ast.NumberFloating {
		return e.Builder.NewFloatLiteral(node.Token.AsFloat64(), node.Location).Id
	}

	v, ok := ast.ParseUint64(node.Token.Value)
	if !ok {
		e.Result.AddError("P041", &node.Location, e.File, "invalid numeric literal %q", node.Token.Value)
		return 0
	}

	return e.Builder.NewIntegerLiteral(int64(v), 8, false, node.Location).Id
}

// evalModuleExpression resolves a `module <expr>` load: the expression
// must be a constant string naming a source path, resolved relative to
// the current file's directory when not absolute; the named file is
// compiled into its own Module and wrapped in a ModuleReference.
func (e *Evaluator) evalModuleExpression(node *ast.Node) elements.Id {
	exprId := e.Evaluate(node.Lhs, elements.KindBlock)

	expr, ok := e.Builder.Registry.Find(exprId)
	if !ok {
		return 0
	}

	path, ok := expr.AsString()
	if !ok {
		e.Result.AddError("C021", &node.Location, e.File, "module expression must be a constant string")
		return 0
	}

	if !filepath.IsAbs(path) && e.File != "" {
		path = filepath.Join(filepath.Dir(e.File), path)
	}

	if e.LoadModule == nil {
		e.Result.AddError("C021", &node.Location, e.File, "unable to load module %q", path)
		return 0
	}

	moduleId := e.LoadModule(path)
	if moduleId == 0 {
		e.Result.AddError("C021", &node.Location, e.File, "unable to load module %q", path)
		return 0
	}

	return e.Builder.NewModuleReference(moduleId, node.Location).Id
}

// evalModule pushes a module_block, evaluates every child, and wraps the
// result in a Module element.
func (e *Evaluator) evalModule(node *ast.Node) elements.Id {
	block := e.Scope.PushNewBlock(e.Builder, elements.KindModuleBlock, node.Location)

	for _, child := range node.Children {
		id := e.Evaluate(child, elements.KindModuleBlock)
		e.attachToBlock(block, child.Kind, id)
	}

	e.Scope.PopScope()
	module := e.Builder.NewModule(block.Id, node.Location)

	return module.Id
}

// attachToBlock files an evaluated child into the right bucket of its
// containing block, by the shape of the source AST node.
func (e *Evaluator) attachToBlock(block *elements.Element, kind ast.Kind, id elements.Id) {
	if id == 0 {
		return
	}

	switch kind {
	case ast.KindLineComment, ast.KindBlockComment:
		block.Comments = append(block.Comments, id)
	case ast.KindImportExpression:
		block.Imports = append(block.Imports, id)
	default:
		block.Statements = append(block.Statements, id)
	}
}

// evalBasicBlock pushes a new block of defaultBlockKind, evaluates every
// child, and pops.
func (e *Evaluator) evalBasicBlock(node *ast.Node, defaultBlockKind elements.Kind) elements.Id {
	block := e.Scope.PushNewBlock(e.Builder, defaultBlockKind, node.Location)

	for _, child := range node.Children {
		id := e.Evaluate(child, defaultBlockKind)
		if id == 0 {
			e.Result.AddError("C024", &child.Location, e.File, "failed to elaborate block member")
			continue
		}

		e.attachToBlock(block, child.Kind, id)
	}

	e.Scope.PopScope()

	return block.Id
}

// evalStatement evaluates the statement's expression (Lhs) and wraps it in
// a Statement with no labels; a bare symbol is upgraded to an
// identifier reference.
func (e *Evaluator) evalStatement(node *ast.Node) elements.Id {
	expr := e.resolveSymbolOrEvaluate(node.Lhs)

	return e.Builder.NewStatement(nil, expr, node.Location).Id
}

func (e *Evaluator) evalExpression(node *ast.Node) elements.Id {
	lhs := e.Evaluate(node.Lhs, elements.KindBlock)
	return e.Builder.NewExpression(lhs, node.Location).Id
}

// resolveSymbolOrEvaluate resolves a bare symbol into a (possibly
// unresolved) IdentifierReference; anything else is evaluated directly.
func (e *Evaluator) resolveSymbolOrEvaluate(node *ast.Node) elements.Id {
	if node == nil {
		return 0
	}

	if node.Kind != ast.KindSymbol {
		return e.Evaluate(node, elements.KindBlock)
	}

	symbol := e.evalSymbol(node)
	namespaces, name := splitQualifiedParts(node.Token.Value)
	ident, ok := e.Scope.FindIdentifier(namespaces, name, e.Scope.CurrentScope())
	_ = ok

	identId := elements.Id(0)
	resolved := false

	if ident != nil {
		identId = ident.Id
		resolved = true
	}

	ref := e.Builder.NewIdentifierReference(symbol, identId, resolved, node.Location)
	if !resolved {
		ref.ParentScope = e.Scope.CurrentScope()
		e.Builder.UnresolvedIdentifierReferences = append(e.Builder.UnresolvedIdentifierReferences, ref.Id)
	}

	return ref.Id
}

func (e *Evaluator) evalSymbol(node *ast.Node) elements.Id {
	namespaces, name := splitQualifiedParts(node.Token.Value)
	return e.Builder.NewSymbol(namespaces, name, node.IsConstantDecl, node.Location).Id
}

func splitQualifiedParts(value string) ([]string, string) {
	parts := splitQualified(value)
	if len(parts) == 0 {
		return nil, value
	}

	return parts[:len(parts)-1], parts[len(parts)-1]
}

func splitQualified(value string) []string {
	var parts []string

	start := 0
	for i := 0; i+1 < len(value); i++ {
		if value[i] == ':' && value[i+1] == ':' {
			parts = append(parts, value[start:i])
			i++
			start = i + 1
		}
	}

	parts = append(parts, value[start:])

	return parts
}

func (e *Evaluator) evalAttribute(node *ast.Node) elements.Id {
	value := e.Evaluate(node.Rhs, elements.KindBlock)
	return e.Builder.NewAttribute(node.Label, value, node.Location).Id
}

func (e *Evaluator) evalDirective(node *ast.Node) elements.Id {
	directive := e.Builder.NewDirective(node.Label, 0, node.Location)

	for _, child := range node.Children {
		attr := e.evalAttribute(child)
		if attr != 0 {
			directive.Attributes = ensureAttrMap(directive.Attributes)
			directive.Attributes[child.Label] = attr
		}
	}

	return directive.Id
}

func ensureAttrMap(m map[string]elements.Id) map[string]elements.Id {
	if m == nil {
		return map[string]elements.Id{}
	}

	return m
}

// intrinsicNames lists the built-in pseudo-procedures recognized by name
// rather than by declaration.
var intrinsicNames = map[string]bool{
	"size_of": true, "align_of": true, "type_of": true,
	"alloc": true, "free": true, "copy": true, "fill": true,
}

// typeArgIntrinsics names the intrinsics whose arguments are type names
// rather than value expressions, so their arguments resolve through
// scope.Manager.FindType instead of becoming IdentifierReferences.
var typeArgIntrinsics = map[string]bool{"size_of": true, "align_of": true, "type_of": true}

func (e *Evaluator) evalProcCall(node *ast.Node) elements.Id {
	if node.Lhs != nil && node.Lhs.Kind == ast.KindSymbol && !node.Lhs.IsQualifiedSymbol {
		if name := node.Lhs.Token.Value; intrinsicNames[name] {
			return e.evalIntrinsic(name, node)
		}
	}

	ref := e.resolveSymbolOrEvaluate(node.Lhs)
	args := e.evalArgumentList(node.Rhs)

	return e.Builder.NewProcedureCall(ref, args, node.Location).Id
}

// evalIntrinsic recognizes a call whose callee names a built-in
// pseudo-procedure and turns it into a KindIntrinsic element instead of an
// ordinary KindProcedureCall, so pkg/semantic's fold pass can recognize and
// constant-fold it.
func (e *Evaluator) evalIntrinsic(name string, node *ast.Node) elements.Id {
	var children []*ast.Node
	if node.Rhs != nil {
		children = node.Rhs.Children
	}

	args := make([]elements.Id, 0, len(children))

	for _, child := range children {
		if typeArgIntrinsics[name] && child.Kind == ast.KindSymbol {
			args = append(args, e.resolveTypeSymbol(child))
			continue
		}

		args = append(args, e.resolveSymbolOrEvaluate(child))
	}

	return e.Builder.NewIntrinsic(name, args, node.Location).Id
}

// resolveTypeSymbol looks up a bare type name (e.g. the `u64` in
// `size_of(u64)`) directly through the scope manager's type table, since a
// type name is never an IdentifierReference target.
func (e *Evaluator) resolveTypeSymbol(node *ast.Node) elements.Id {
	namespaces, name := splitQualifiedParts(node.Token.Value)

	t, ok := e.Scope.FindType(namespaces, name, e.Scope.CurrentScope())
	if !ok {
		e.Result.AddError("P091", &node.Location, e.File, "unresolved type %q in intrinsic argument", name)
		return 0
	}

	return t.Id
}

func (e *Evaluator) evalArgumentList(node *ast.Node) elements.Id {
	if node == nil {
		return e.Builder.NewArgumentList(nil, ast.Node{}.Location).Id
	}

	args := make([]elements.Id, 0, len(node.Children))
	for _, child := range node.Children {
		args = append(args, e.resolveSymbolOrEvaluate(child))
	}

	return e.Builder.NewArgumentList(args, node.Location).Id
}

func (e *Evaluator) evalUnaryOperator(node *ast.Node) elements.Id {
	op, ok := elements.LookupOperator(node.Label)
	if !ok {
		e.Result.AddError("P001", &node.Location, e.File, "unknown unary operator %q", node.Label)
		return 0
	}

	if op == elements.OpSubtract {
		op = elements.OpNegate
	}

	rhs := e.resolveSymbolOrEvaluate(node.Lhs)

	return e.Builder.NewUnaryOperator(op, rhs, node.Location).Id
}

func (e *Evaluator) evalBinaryOperator(node *ast.Node) elements.Id {
	op, ok := elements.LookupOperator(node.Label)
	if !ok {
		e.Result.AddError("P001", &node.Location, e.File, "unknown binary operator %q", node.Label)
		return 0
	}

	lhs := e.resolveSymbolOrEvaluate(node.Lhs)
	rhs := e.resolveSymbolOrEvaluate(node.Rhs)

	return e.Builder.NewBinaryOperator(op, lhs, rhs, node.Location).Id
}

func (e *Evaluator) evalIf(node *ast.Node) elements.Id {
	predicate := e.resolveSymbolOrEvaluate(node.Lhs)
	trueBranch := e.Evaluate(node.Rhs, elements.KindBlock)

	var falseBranch elements.Id
	for _, child := range node.Children {
		switch child.Kind {
		case ast.KindElseIfExpression:
			falseBranch = e.evalElseIf(child)
		case ast.KindElseExpression:
			falseBranch = e.Evaluate(child.Lhs, elements.KindBlock)
		}
	}

	return e.Builder.NewIf(predicate, trueBranch, falseBranch, node.Location).Id
}

func (e *Evaluator) evalElseIf(node *ast.Node) elements.Id {
	predicate := e.resolveSymbolOrEvaluate(node.Lhs)
	trueBranch := e.Evaluate(node.Rhs, elements.KindBlock)

	return e.Builder.NewIf(predicate, trueBranch, 0, node.Location).Id
}

func (e *Evaluator) evalWhile(node *ast.Node) elements.Id {
	predicate := e.resolveSymbolOrEvaluate(node.Lhs)
	body := e.Evaluate(node.Rhs, elements.KindBlock)

	return e.Builder.NewWhile(predicate, body, node.Location).Id
}

func (e *Evaluator) evalReturn(node *ast.Node) elements.Id {
	var exprs []elements.Id
	if node.Lhs != nil {
		exprs = append(exprs, e.resolveSymbolOrEvaluate(node.Lhs))
	}

	return e.Builder.NewReturn(exprs, node.Location).Id
}

func (e *Evaluator) evalImport(node *ast.Node) elements.Id {
	symbol := e.evalSymbol(node.Lhs)

	var fromRef elements.Id
	if node.Rhs != nil {
		fromRef = e.resolveSymbolOrEvaluate(node.Rhs)
	}

	ref := e.Builder.NewIdentifierReference(symbol, 0, false, node.Location)
	e.Builder.UnresolvedIdentifierReferences = append(e.Builder.UnresolvedIdentifierReferences, ref.Id)

	return e.Builder.NewImport(symbol, orElse(fromRef, ref.Id), node.Location).Id
}

func orElse(a, b elements.Id) elements.Id {
	if a != 0 {
		return a
	}

	return b
}

func (e *Evaluator) evalConversion(node *ast.Node, kind elements.Kind) elements.Id {
	typeRef := e.resolveType(node.TypeName)
	if typeRef == 0 {
		e.Result.AddError("P002", &node.Location, e.File, "unknown type in conversion")
	}

	rhs := e.resolveSymbolOrEvaluate(node.Lhs)

	if kind == elements.KindCast {
		return e.Builder.NewCast(typeRef, rhs, node.Location).Id
	}

	return e.Builder.NewTransmute(typeRef, rhs, node.Location).Id
}

func (e *Evaluator) evalAlias(node *ast.Node) elements.Id {
	rhs := e.resolveSymbolOrEvaluate(node.Lhs)
	return e.Builder.NewAlias(rhs, node.Location).Id
}

// resolveType looks up a (possibly array/pointer, possibly qualified) type
// name via the scope manager's find_type/find_pointer_type/
// find_array_type.
func (e *Evaluator) resolveType(typeName *ast.Node) elements.Id {
	if typeName == nil {
		return 0
	}

	namespaces, name := splitQualifiedParts(typeName.Token.Value)

	t, ok := e.Scope.FindType(namespaces, name, e.Scope.CurrentScope())
	if !ok {
		return 0
	}

	if typeName.IsPointer {
		if ptr, ok := e.Scope.FindPointerType(name, e.Scope.CurrentScope()); ok {
			return ptr.Id
		}

		return e.Builder.NewPointerType(t.Id, typeName.Location).Id
	}

	if typeName.IsArray {
		if arr, ok := e.Scope.FindArrayType(name, typeName.ArraySize, e.Scope.CurrentScope()); ok {
			return arr.Id
		}

		return e.Builder.NewArrayType(t.Id, typeName.ArraySize, typeName.Location).Id
	}

	return t.Id
}
