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
package eval

import (
	"github.com/basecode-lang/basecode/pkg/ast"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/source"
)

// AddIdentifierToScope builds a Symbol, evaluates the optional value
// expression (wrapping it in an Initializer when constant), and registers
// the resulting Identifier under name in the current scope. A nil
// valueNode yields an identifier with no initializer (a bare param or enum
// member).
func (e *Evaluator) AddIdentifierToScope(name string, declaredType elements.Id, valueNode *ast.Node, loc source.Location) elements.Id {
	scope := e.Scope.CurrentScope()
	symbol := e.Builder.NewSymbol(nil, name, false, loc)

	var initializer elements.Id
	if valueNode != nil {
		value := e.resolveSymbolOrEvaluate(valueNode)
		if value != 0 {
			if e.Builder.Registry.IsConstant(value) {
				initializer = e.Builder.NewInitializer(value, loc).Id
			} else {
				initializer = value
			}
		}
	}

	ident := e.Builder.NewIdentifier(scope, symbol.Id, declaredType, initializer, "stack", loc)
	if declaredType == 0 {
		ident.InferredType = true
	}

	if t, ok := e.Builder.Registry.Find(declaredType); ok && t.Kind == elements.KindUnknownType {
		e.Builder.IdentifiersWithUnknownTypes = append(e.Builder.IdentifiersWithUnknownTypes, ident.Id)
	}

	e.registerInBlock(scope, name, ident.Id)

	return ident.Id
}

// registerInBlock files name -> id into scope's Identifiers map.
func (e *Evaluator) registerInBlock(scope elements.Id, name string, id elements.Id) {
	block, ok := e.Builder.Registry.Find(scope)
	if !ok {
		return
	}

	if block.Identifiers == nil {
		block.Identifiers = map[string]elements.Id{}
	}

	block.Identifiers[name] = id
}

// lookupNamespaceBlock reports the inner block of an already-materialized
// namespace named name directly within scope.
func (e *Evaluator) lookupNamespaceBlock(scope elements.Id, name string) (elements.Id, bool) {
	block, ok := e.Builder.Registry.Find(scope)
	if !ok {
		return 0, false
	}

	id, ok := block.Identifiers[name]
	if !ok {
		return 0, false
	}

	ns, ok := e.Builder.Registry.Find(id)
	if !ok || ns.Kind != elements.KindNamespace {
		return 0, false
	}

	return ns.Lhs, true
}

// materializeNamespaces walks namespaces from the current scope, reusing
// any segment already declared and creating the rest as empty namespace
// blocks. It returns the block in which the final (unqualified) name of
// the declaration belongs, or 0 if a segment is already bound to
// something other than a namespace (P018).
func (e *Evaluator) materializeNamespaces(namespaces []string, loc source.Location) elements.Id {
	current := e.Scope.CurrentScope()

	for _, segment := range namespaces {
		if block, ok := e.lookupNamespaceBlock(current, segment); ok {
			current = block
			continue
		}

		if outer, ok := e.Builder.Registry.Find(current); ok {
			if _, bound := outer.Identifiers[segment]; bound {
				e.Result.AddError("P018", &loc, e.File, "qualified name traverses non-namespace %q", segment)
				return 0
			}
		}

		inner := e.Builder.NewBlock(elements.KindBlock, loc)
		inner.ParentScope = current
		ns := e.Builder.NewNamespace(inner.Id, loc)
		e.registerInBlock(current, segment, ns.Id)

		current = inner.Id
	}

	return current
}

// resolveTypeOrUnknown resolves typeName, falling back to an UnknownType
// placeholder (recorded for session phase 5) when the name isn't yet
// in scope.
func (e *Evaluator) resolveTypeOrUnknown(typeName *ast.Node) elements.Id {
	if typeName == nil {
		return 0
	}

	if t := e.resolveType(typeName); t != 0 {
		return t
	}

	return e.Builder.NewUnknownType(typeName.Token.Value, typeName.IsArray, typeName.IsPointer, typeName.ArraySize, typeName.Location).Id
}

// evalNamespace materializes (or reuses) the intermediate segments of a
// qualified name as namespace elements, and elaborates the final segment's
// body as a block scoped
// beneath them.
func (e *Evaluator) evalNamespace(node *ast.Node) elements.Id {
	namespaces, name := splitQualifiedParts(node.Lhs.Token.Value)

	enclosing := e.materializeNamespaces(namespaces, node.Location)
	if enclosing == 0 {
		return 0
	}

	return e.buildNamespace(enclosing, name, node.Rhs, node.Location)
}

// buildNamespace elaborates body as a block scoped beneath enclosing and
// registers the resulting Namespace element directly under name. It is
// shared by the statement-position `namespace math { ... }` form (whose
// name comes from a qualified symbol) and the expression-position
// `math :: namespace { ... }` form (whose name comes from the enclosing
// constant declaration) — both must register a bare Namespace element, not
// one wrapped in an Identifier/Initializer, since walk_namespaces
// (pkg/scope) expects each segment to resolve straight to it.
func (e *Evaluator) buildNamespace(enclosing elements.Id, name string, body *ast.Node, loc source.Location) elements.Id {
	e.Scope.PushScope(enclosing)
	block := e.evalBasicBlock(body, elements.KindBlock)
	e.Scope.PopScope()

	ns := e.Builder.NewNamespace(block, loc)
	e.registerInBlock(enclosing, name, ns.Id)

	return ns.Id
}

// evalAssignment handles declaration and assignment: a name already bound
// in the enclosing scope chain is a plain reassignment (compiled to an
// Assignment BinaryOperator); otherwise it
// declares a new Identifier. `::` declarations (IsConstantDecl) always
// declare fresh, never reassign.
func (e *Evaluator) evalAssignment(node *ast.Node) elements.Id {
	name := node.Lhs.Token.Value

	if !node.IsConstantDecl {
		if existing, ok := e.Scope.FindIdentifier(nil, name, e.Scope.CurrentScope()); ok {
			ref := e.Builder.NewIdentifierReference(e.evalSymbol(node.Lhs), existing.Id, true, node.Lhs.Location)

			if node.Rhs == nil {
				return ref.Id
			}

			rhs := e.resolveSymbolOrEvaluate(node.Rhs)

			return e.Builder.NewBinaryOperator(elements.OpAssignment, ref.Id, rhs, node.Location).Id
		}
	}

	// `name :: namespace { ... }` names the namespace from the declaration
	// itself rather than an embedded qualified symbol (contrast the
	// statement-position `namespace name { ... }` form), so it bypasses
	// AddIdentifierToScope and registers the Namespace element directly.
	if node.IsConstantDecl && node.Rhs != nil && node.Rhs.Kind == ast.KindNamespaceExpression {
		return e.buildNamespace(e.Scope.CurrentScope(), name, node.Rhs.Rhs, node.Location)
	}

	declaredType := e.resolveTypeOrUnknown(node.TypeName)

	return e.AddIdentifierToScope(name, declaredType, node.Rhs, node.Location)
}

// evalProcExpression builds a ProcedureType owning a ProcTypeBlock scope
// of parameter Identifiers, plus
// (when a body is present) a ProcedureInstance over a ProcInstanceBlock
// scoped beneath the parameters.
func (e *Evaluator) evalProcExpression(node *ast.Node) elements.Id {
	scopeBlock := e.Scope.PushNewBlock(e.Builder, elements.KindProcTypeBlock, node.Location)

	var params []elements.Id
	if node.Lhs != nil {
		for _, p := range node.Lhs.Children {
			params = append(params, e.evalProcParam(p))
		}
	}

	var returns []elements.Id
	if r := e.resolveTypeOrUnknown(node.TypeName); r != 0 {
		returns = append(returns, r)
	}

	e.Scope.PopScope()

	procType := e.Builder.NewProcedureType(scopeBlock.Id, params, returns, false, node.Location)

	if node.Rhs != nil {
		e.Scope.PushScope(scopeBlock.Id)
		body := e.evalBasicBlock(node.Rhs, elements.KindProcInstanceBlock)
		e.Scope.PopScope()

		e.Builder.NewProcedureInstance(procType.Id, body, node.Location)
	}

	return procType.Id
}

// evalProcParam builds a parameter's Identifier, bare or assignment-form
// (with a default value).
func (e *Evaluator) evalProcParam(node *ast.Node) elements.Id {
	declaredType := e.resolveTypeOrUnknown(node.TypeName)

	return e.AddIdentifierToScope(node.Lhs.Token.Value, declaredType, node.Rhs, node.Location)
}

// evalComposite builds a struct/union/enum type: each member of the
// aggregate's body becomes a Field over an Identifier, owned by a
// CompositeType's member block.
func (e *Evaluator) evalComposite(node *ast.Node, kind elements.CompositeKind) elements.Id {
	block := e.Scope.PushNewBlock(e.Builder, elements.KindBlock, node.Location)

	if node.Rhs != nil {
		for _, child := range node.Rhs.Children {
			if field := e.evalCompositeField(child, kind); field != 0 {
				block.Fields = append(block.Fields, field)
			}
		}
	}

	e.Scope.PopScope()

	return e.Builder.NewCompositeType(kind, block.Id, node.Location).Id
}

// evalCompositeField handles the two member shapes the parser produces:
// assignment-form (`name: type` or `name: type := default`) and bare-form
// (a lone symbol, as in enum/union member lists without explicit types).
// Bare enum members without a declared type default to u32.
func (e *Evaluator) evalCompositeField(node *ast.Node, kind elements.CompositeKind) elements.Id {
	switch node.Kind {
	case ast.KindAssignment:
		declaredType := e.resolveTypeOrUnknown(node.TypeName)
		ident := e.AddIdentifierToScope(node.Lhs.Token.Value, declaredType, node.Rhs, node.Location)

		return e.Builder.NewField(ident, node.Location).Id
	case ast.KindStatement:
		if node.Lhs != nil && node.Lhs.Kind == ast.KindSymbol {
			var declaredType elements.Id
			if kind == elements.CompositeEnum {
				if t, ok := e.Scope.FindType(nil, "u32", e.Scope.CurrentScope()); ok {
					declaredType = t.Id
				}
			}

			ident := e.AddIdentifierToScope(node.Lhs.Token.Value, declaredType, nil, node.Location)

			return e.Builder.NewField(ident, node.Location).Id
		}
	}

	e.Result.AddError("C024", &node.Location, e.File, "unsupported composite member")

	return 0
}
