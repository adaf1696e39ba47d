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
package session

import (
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/vm"
)

// pendingFFI records a #foreign directive's resolved signature until a Terp
// exists to register it into (directives execute in phase 3, long before
// the VM is constructed in phase 10).
type pendingFFI struct {
	name string
	sig  vm.FFISignature
}

// blockKinds lists every element kind that carries a Statements slice, so
// ExecuteDirectives can find directives wherever they were declared.
var blockKinds = []elements.Kind{
	elements.KindModuleBlock,
	elements.KindBlock,
	elements.KindProcTypeBlock,
	elements.KindProcInstanceBlock,
}

// ExecuteDirectives implements session phase 3: every Directive element is
// found and its handler invoked. Only `#foreign` has a concrete handler;
// `#load` and `#run` are declared but inert, since their intended runtime
// behavior was never specified beyond parsing.
func (s *Session) ExecuteDirectives() {
	for _, kind := range blockKinds {
		for _, block := range s.Registry.FindByKind(kind) {
			s.executeDirectivesInBlock(block)
		}
	}
}

func (s *Session) executeDirectivesInBlock(block *elements.Element) {
	for i, stmtId := range block.Statements {
		stmt, ok := s.Registry.Find(stmtId)
		if !ok || stmt.Kind != elements.KindDirective {
			continue
		}

		switch stmt.AttrName {
		case "foreign":
			var next elements.Id
			if i+1 < len(block.Statements) {
				next = block.Statements[i+1]
			}

			s.executeForeign(stmt, next)
		case "load", "run":
			// Declared but inert; no-op in the core.
		default:
			s.Result.AddWarning("P044", &stmt.Location, "", "unknown directive %q", stmt.AttrName)
		}
	}
}

// executeForeign implements the `#foreign` handler: it loads the named
// library, resolves the proc-typed identifier declared immediately after
// the directive, marks its ProcedureType is_foreign, and
// promotes the directive's library/alias attributes onto that type so the
// FFI bridge can later register it (wired once the VM exists, in
// Session.installFFI, since vm.Terp isn't constructed until phase 10).
func (s *Session) executeForeign(directive *elements.Element, nextId elements.Id) {
	library := s.attrString(directive, "library")
	alias := s.attrString(directive, "alias")

	next, ok := s.Registry.Find(nextId)
	if !ok || next.Kind != elements.KindIdentifier {
		s.Result.AddError("P044", &directive.Location, "", "#foreign directive must precede a procedure declaration")
		return
	}

	procType, ok := s.Registry.Find(s.procTypeOf(next))
	if !ok || procType.Kind != elements.KindProcedureType {
		s.Result.AddError("P044", &directive.Location, "", "#foreign target %q is not a procedure", next.Name)
		return
	}

	procType.IsForeign = true
	procType.Attributes = ensureAttrs(procType.Attributes)
	procType.Attributes["library"] = directive.Attributes["library"]
	procType.Attributes["alias"] = directive.Attributes["alias"]

	symbol := alias
	if symbol == "" {
		symbol = next.Name
	}

	sig := vm.FFISignature{Library: library, Symbol: symbol, CallingMode: vm.CallCDefault}

	for _, paramId := range procType.ProcParams {
		param, ok := s.Registry.Find(paramId)
		if !ok {
			continue
		}

		sig.Arguments = append(sig.Arguments, s.ffiValueOf(param.DeclaredType))
	}

	if len(procType.ProcReturns) > 0 {
		sig.ReturnValue = s.ffiValueOf(procType.ProcReturns[0])
	}

	s.pendingFFI = append(s.pendingFFI, pendingFFI{name: next.Name, sig: sig})
}

// ffiValueOf maps a declared parameter/return type onto the C-side storage
// class the foreign callee expects. The `address` primitive marshals as a
// pointer, not an integer.
func (s *Session) ffiValueOf(typeId elements.Id) vm.FFIValue {
	t, ok := s.Registry.Find(typeId)
	if !ok {
		return vm.FFIValue{Type: vm.FFIVoid}
	}

	switch t.Kind {
	case elements.KindBoolType:
		return vm.FFIValue{Type: vm.FFIBool}
	case elements.KindStringType, elements.KindPointerType, elements.KindArrayType:
		return vm.FFIValue{Type: vm.FFIPointer}
	case elements.KindCompositeType:
		value := vm.FFIValue{Type: vm.FFIStruct}

		block, ok := s.Registry.Find(t.Lhs)
		if !ok {
			return value
		}

		for _, fieldId := range block.Fields {
			field, ok := s.Registry.Find(fieldId)
			if !ok {
				continue
			}

			if ident, ok := s.Registry.Find(field.Lhs); ok {
				value.Fields = append(value.Fields, s.ffiValueOf(ident.DeclaredType))
			}
		}

		return value
	case elements.KindNumericType:
		if t.Name == "address" {
			return vm.FFIValue{Type: vm.FFIPointer}
		}

		if t.Floating {
			if t.SizeInBytes == 4 {
				return vm.FFIValue{Type: vm.FFIFloat}
			}

			return vm.FFIValue{Type: vm.FFIDouble}
		}

		switch t.SizeInBytes {
		case 1:
			return vm.FFIValue{Type: vm.FFIChar}
		case 2:
			return vm.FFIValue{Type: vm.FFIShort}
		case 4:
			return vm.FFIValue{Type: vm.FFIInt}
		default:
			return vm.FFIValue{Type: vm.FFILongLong}
		}
	default:
		return vm.FFIValue{Type: vm.FFIVoid}
	}
}

// procTypeOf finds the ProcedureType behind an identifier: its declared
// type when bound, otherwise its initializer's value (directives run in
// phase 3, before type inference has bound `puts :: proc(...)` style
// declarations).
func (s *Session) procTypeOf(ident *elements.Element) elements.Id {
	if ident.DeclaredType != 0 {
		return ident.DeclaredType
	}

	init, ok := s.Registry.Find(ident.Initializer)
	if !ok {
		return 0
	}

	if init.Kind == elements.KindInitializer {
		return init.Lhs
	}

	return ident.Initializer
}

func (s *Session) attrString(elem *elements.Element, name string) string {
	attrId, ok := elem.Attributes[name]
	if !ok {
		return ""
	}

	attr, ok := s.Registry.Find(attrId)
	if !ok {
		return ""
	}

	value, ok := s.Registry.Find(attr.AttrValue)
	if !ok {
		return ""
	}

	return value.StrValue
}

// installFFI registers every signature gathered during phase 3 into the
// freshly constructed Terp.
func (s *Session) installFFI() {
	for _, pending := range s.pendingFFI {
		if err := s.Terp.FFI.Register(pending.name, pending.sig); err != nil {
			s.Result.AddError("B062", nil, "", "unable to load shared library %q: %s", pending.sig.Library, err)
		}
	}
}
