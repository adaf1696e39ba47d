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

// Package scope implements the Scope Manager: module/top-level-block/scope
// stacks and the name-resolution walks used throughout elaboration.
package scope

import (
	"github.com/basecode-lang/basecode/pkg/adt"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/source"
)

// Manager tracks the module stack, the top-level block stack, and the
// active scope stack; push/pop are always paired.
type Manager struct {
	registry  *elements.Registry
	modules   adt.Stack[elements.Id]
	topLevel  adt.Stack[elements.Id]
	scopes    adt.Stack[elements.Id]
}

// NewManager constructs a manager over registry, with all three stacks
// empty.
func NewManager(registry *elements.Registry) *Manager {
	return &Manager{
		registry: registry,
		modules:  *adt.NewStack[elements.Id](),
		topLevel: *adt.NewStack[elements.Id](),
		scopes:   *adt.NewStack[elements.Id](),
	}
}

// PushModule enters a new module's scope.
func (m *Manager) PushModule(module elements.Id) {
	m.modules.Push(module)
}

// PopModule exits the current module's scope.
func (m *Manager) PopModule() elements.Id {
	return m.modules.Pop()
}

// CurrentModule returns the innermost module, or 0 if none.
func (m *Manager) CurrentModule() elements.Id {
	if m.modules.IsEmpty() {
		return 0
	}

	return m.modules.Peek(0)
}

// PushNewBlock creates a block of the given kind, links it as a child of
// the current scope (if any), and pushes it.
func (m *Manager) PushNewBlock(builder *elements.Builder, kind elements.Kind, loc source.Location) *elements.Element {
	block := builder.NewBlock(kind, loc)

	if !m.scopes.IsEmpty() {
		parent := m.scopes.Peek(0)
		if p, ok := m.registry.Find(parent); ok {
			p.Blocks = append(p.Blocks, block.Id)
			block.ParentScope = parent
		}
	}

	m.scopes.Push(block.Id)

	if kind == elements.KindModuleBlock {
		m.topLevel.Push(block.Id)
	}

	return block
}

// PushScope pushes an already-built block as the current scope, without
// re-parenting it (used for procedure instance bodies, whose block was
// already built and parented elsewhere).
func (m *Manager) PushScope(block elements.Id) {
	m.scopes.Push(block)
}

// PopScope exits the current scope, also popping the top-level stack if the
// scope being exited was pushed onto it (i.e. it was a module_block) and is
// not still open further down the scope stack (a module block re-entered
// with PushScope leaves the top-level stack untouched when exited).
func (m *Manager) PopScope() elements.Id {
	top := m.scopes.Pop()
	if !m.topLevel.IsEmpty() && m.topLevel.Peek(0) == top && m.CurrentScope() != top {
		m.topLevel.Pop()
	}

	return top
}

// CurrentScope returns the innermost scope block's id, or 0 if none.
func (m *Manager) CurrentScope() elements.Id {
	if m.scopes.IsEmpty() {
		return 0
	}

	return m.scopes.Peek(0)
}

// CurrentTopLevel returns the innermost top-level (module or namespace)
// block, or 0 if none.
func (m *Manager) CurrentTopLevel() elements.Id {
	if m.topLevel.IsEmpty() {
		return 0
	}

	return m.topLevel.Peek(0)
}

// FindType resolves a (possibly qualified) name to a Type element:
// qualified names walk namespace segments from the current top-level;
// unqualified names walk the parent-scope chain, consulting types then
// identifier-carried types at each block.
func (m *Manager) FindType(namespaces []string, name string, from elements.Id) (*elements.Element, bool) {
	if len(namespaces) > 0 {
		block, ok := m.walkNamespaces(namespaces, m.CurrentTopLevel())
		if !ok {
			return nil, false
		}

		return m.lookupInBlock(block, name)
	}

	for scope := from; scope != 0; {
		block, ok := m.registry.Find(scope)
		if !ok {
			break
		}

		if found, ok := m.lookupInBlock(scope, name); ok {
			return found, true
		}

		scope = block.ParentScope
	}

	return nil, false
}

func (m *Manager) lookupInBlock(block elements.Id, name string) (*elements.Element, bool) {
	b, ok := m.registry.Find(block)
	if !ok {
		return nil, false
	}

	if typeId, ok := b.Types[name]; ok {
		if t, ok := m.registry.Find(typeId); ok {
			return t, true
		}
	}

	if identId, ok := b.Identifiers[name]; ok {
		if ident, ok := m.registry.Find(identId); ok {
			return ident, true
		}
	}

	return nil, false
}

// FindIdentifier resolves a (possibly qualified) name to an Identifier
// element; unqualified lookups also consult each import's target module
// by rewriting the symbol.
func (m *Manager) FindIdentifier(namespaces []string, name string, from elements.Id) (*elements.Element, bool) {
	if len(namespaces) > 0 {
		block, ok := m.walkNamespaces(namespaces, m.CurrentTopLevel())
		if !ok {
			return nil, false
		}

		b, ok := m.registry.Find(block)
		if !ok {
			return nil, false
		}

		if identId, ok := b.Identifiers[name]; ok {
			return m.registry.Find(identId)
		}

		return nil, false
	}

	for scope := from; scope != 0; {
		block, ok := m.registry.Find(scope)
		if !ok {
			break
		}

		if identId, ok := block.Identifiers[name]; ok {
			if ident, ok := m.registry.Find(identId); ok {
				return ident, true
			}
		}

		for _, importId := range block.Imports {
			imp, ok := m.registry.Find(importId)
			if !ok {
				continue
			}

			if target, ok := m.registry.Find(imp.Lhs); ok {
				if identId, ok := target.Identifiers[name]; ok {
					if ident, ok := m.registry.Find(identId); ok {
						return ident, true
					}
				}
			}
		}

		scope = block.ParentScope
	}

	return nil, false
}

// walkNamespaces descends from start through each namespace segment,
// requiring every intermediate to be a namespace_element or
// module_reference (possibly reached through an identifier's initializer,
// as with `lib :: module "lib.bc"`).
func (m *Manager) walkNamespaces(namespaces []string, start elements.Id) (elements.Id, bool) {
	current := start

	for _, segment := range namespaces {
		b, ok := m.registry.Find(current)
		if !ok {
			return 0, false
		}

		nextId, ok := b.Identifiers[segment]
		if !ok {
			return 0, false
		}

		next, ok := m.registry.Find(nextId)
		if !ok {
			return 0, false
		}

		next = m.lookThroughIdentifier(next)

		switch next.Kind {
		case elements.KindNamespace:
			current = next.Lhs
		case elements.KindModuleReference:
			if mod, ok := m.registry.Find(next.Lhs); ok && mod.Kind == elements.KindModule {
				current = mod.Lhs
			} else {
				current = next.Lhs
			}
		default:
			return 0, false
		}
	}

	return current, true
}

// lookThroughIdentifier unwraps an identifier to the element its
// initializer binds, so a qualified segment declared as a constant
// (`lib :: module "lib.bc"`) walks the same way a bare Namespace does.
func (m *Manager) lookThroughIdentifier(e *elements.Element) *elements.Element {
	if e.Kind != elements.KindIdentifier || e.Initializer == 0 {
		return e
	}

	init, ok := m.registry.Find(e.Initializer)
	if !ok {
		return e
	}

	if init.Kind == elements.KindInitializer {
		if inner, ok := m.registry.Find(init.Lhs); ok {
			return inner
		}

		return e
	}

	return init
}

// FindPointerType delegates to FindType with the canonical
// `__ptr_<base>__` name, per invariant T1.
func (m *Manager) FindPointerType(baseName string, from elements.Id) (*elements.Element, bool) {
	return m.FindType(nil, "__ptr_"+baseName+"__", from)
}

// FindArrayType delegates to FindType with the canonical
// `__array_<entry>_<n>__` name, per invariant T1.
func (m *Manager) FindArrayType(entryName string, size uint64, from elements.Id) (*elements.Element, bool) {
	return m.FindType(nil, canonicalArrayName(entryName, size), from)
}

func canonicalArrayName(entry string, size uint64) string {
	return "__array_" + entry + "_" + itoa(size) + "__"
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

// FindModule walks the parent-element chain from elem until a Module is
// found.
func (m *Manager) FindModule(elem elements.Id) (*elements.Element, bool) {
	for current := elem; current != 0; {
		e, ok := m.registry.Find(current)
		if !ok {
			return nil, false
		}

		if e.Kind == elements.KindModule {
			return e, true
		}

		current = e.ParentElement
	}

	return nil, false
}

// WithinProcedureScope reports whether any ancestor of scope is a
// proc_type_block or proc_instance_block.
func (m *Manager) WithinProcedureScope(scope elements.Id) bool {
	for current := scope; current != 0; {
		e, ok := m.registry.Find(current)
		if !ok {
			return false
		}

		if e.Kind == elements.KindProcTypeBlock || e.Kind == elements.KindProcInstanceBlock {
			return true
		}

		current = e.ParentScope
	}

	return false
}
