// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// SPDX-License-Identifier: Apache-2.0
package session_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/session"
)

func writeSource(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scenario.bc")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write source: %s", err)
	}

	return path
}

// TestNumericDeclarationAndAssignment exercises a typed declaration
// followed by a reassignment through the full pipeline, checking both the
// elaborated element graph and the executed VM state.
func TestNumericDeclarationAndAssignment(t *testing.T) {
	path := writeSource(t, "x: u32 := 10; x := x + 5;")

	s := session.New(common.DefaultConfig())
	if !s.CompileFiles(path) {
		t.Fatalf("compile failed: %v", s.Diagnostics())
	}

	module, ok := s.Registry.Find(s.RootModule)
	if !ok {
		t.Fatalf("root module not found")
	}

	block, ok := s.Registry.Find(module.Lhs)
	if !ok {
		t.Fatalf("module block not found")
	}

	ident, ok := block.Identifiers["x"]
	if !ok {
		t.Fatalf("identifier x not declared")
	}

	x, ok := s.Registry.Find(ident)
	if !ok || x.Kind != elements.KindIdentifier {
		t.Fatalf("x is not an identifier")
	}

	declared, ok := s.Registry.Find(x.DeclaredType)
	if !ok || declared.Name != "u32" {
		t.Fatalf("x declared type = %+v, want u32", declared)
	}

	terp := s.Run()
	if terp == nil {
		t.Fatalf("run failed: %v", s.Diagnostics())
	}

	if !terp.HasExited() {
		t.Fatalf("VM did not exit")
	}

	if got := terp.Regs.I[0]; got != 15 {
		t.Fatalf("x register = %d, want 15", got)
	}
}

// TestSizeOfIntrinsicFolds checks that size_of(u64) folds to a literal 8
// at compile time, and the intrinsic is removed from the registry.
func TestSizeOfIntrinsicFolds(t *testing.T) {
	path := writeSource(t, "N :: size_of(u64);")

	s := session.New(common.DefaultConfig())
	if !s.CompileFiles(path) {
		t.Fatalf("compile failed: %v", s.Diagnostics())
	}

	module, _ := s.Registry.Find(s.RootModule)
	block, _ := s.Registry.Find(module.Lhs)

	identId, ok := block.Identifiers["N"]
	if !ok {
		t.Fatalf("identifier N not declared")
	}

	n, _ := s.Registry.Find(identId)
	init, ok := s.Registry.Find(n.Initializer)
	if !ok || init.Kind != elements.KindInitializer {
		t.Fatalf("N has no initializer")
	}

	literal, ok := s.Registry.Find(init.Lhs)
	if !ok || literal.Kind != elements.KindIntegerLiteral {
		t.Fatalf("initializer did not fold to an integer literal: %+v", literal)
	}

	if literal.IntValue != 8 {
		t.Fatalf("size_of(u64) folded to %d, want 8", literal.IntValue)
	}
}

// TestQualifiedNamespaceResolution checks that a namespace declared via
// `name :: namespace { ... }` registers a Namespace element directly under
// name, that a qualified reference into it resolves through the full
// identifier-reference pass, and that the referencing declaration's type
// is inferred through the arithmetic expression (f64, from pi).
func TestQualifiedNamespaceResolution(t *testing.T) {
	path := writeSource(t, "math :: namespace { pi :: 3.14159; }; r := math::pi * 2.0;")

	s := session.New(common.DefaultConfig())
	if !s.CompileFiles(path) {
		t.Fatalf("compile failed: %v", s.Diagnostics())
	}

	module, _ := s.Registry.Find(s.RootModule)
	block, _ := s.Registry.Find(module.Lhs)

	nsId, ok := block.Identifiers["math"]
	if !ok {
		t.Fatalf("namespace math not declared")
	}

	ns, ok := s.Registry.Find(nsId)
	if !ok || ns.Kind != elements.KindNamespace {
		t.Fatalf("math is not a namespace element: %+v", ns)
	}

	inner, ok := s.Registry.Find(ns.Lhs)
	if !ok {
		t.Fatalf("namespace body block not found")
	}

	piId, ok := inner.Identifiers["pi"]
	if !ok {
		t.Fatalf("pi not declared inside math")
	}

	pi, ok := s.Registry.Find(piId)
	if !ok || pi.Kind != elements.KindIdentifier {
		t.Fatalf("pi is not an identifier")
	}

	rId, ok := block.Identifiers["r"]
	if !ok {
		t.Fatalf("identifier r not declared")
	}

	r, ok := s.Registry.Find(rId)
	if !ok {
		t.Fatalf("r not found")
	}

	mul, ok := s.Registry.Find(r.Initializer)
	if !ok || mul.Kind != elements.KindBinaryOperator || mul.Operator != elements.OpMultiply {
		t.Fatalf("r initializer is not a multiplication: %+v", mul)
	}

	ref, ok := s.Registry.Find(mul.Lhs)
	if !ok || ref.Kind != elements.KindIdentifierReference {
		t.Fatalf("multiplication lhs is not an identifier reference: %+v", ref)
	}

	if !ref.Resolved || ref.ResolvedIdentifier != piId {
		t.Fatalf("math::pi did not resolve to pi's identifier, got %+v", ref)
	}

	inferred, ok := s.Registry.Find(r.DeclaredType)
	if !ok || inferred.Name != "f64" {
		t.Fatalf("r inferred type = %+v, want f64", inferred)
	}
}

// TestModuleExpressionLoad checks that `module "path"` compiles the named
// file (relative to the including file's directory) into its own Module,
// and that qualified references walk through the binding identifier into
// the loaded module's declarations.
func TestModuleExpressionLoad(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "lib.bc"), []byte("pi :: 3.14;"), 0o644); err != nil {
		t.Fatalf("write lib: %s", err)
	}

	main := filepath.Join(dir, "main.bc")
	if err := os.WriteFile(main, []byte("lib :: module \"lib.bc\"; x := lib::pi;"), 0o644); err != nil {
		t.Fatalf("write main: %s", err)
	}

	s := session.New(common.DefaultConfig())
	if !s.CompileFiles(main) {
		t.Fatalf("compile failed: %v", s.Diagnostics())
	}

	if len(s.Modules) != 2 {
		t.Fatalf("modules = %d, want main plus the loaded lib", len(s.Modules))
	}

	module, _ := s.Registry.Find(s.RootModule)
	block, _ := s.Registry.Find(module.Lhs)

	xId, ok := block.Identifiers["x"]
	if !ok {
		t.Fatalf("identifier x not declared")
	}

	x, _ := s.Registry.Find(xId)

	ref, ok := s.Registry.Find(x.Initializer)
	if !ok || ref.Kind != elements.KindIdentifierReference || !ref.Resolved {
		t.Fatalf("x initializer did not resolve through the module reference: %+v", ref)
	}

	pi, ok := s.Registry.Find(ref.ResolvedIdentifier)
	if !ok || pi.Name != "pi" {
		t.Fatalf("lib::pi resolved to %+v", pi)
	}

	inferred, ok := s.Registry.Find(x.DeclaredType)
	if !ok || inferred.Name != "f64" {
		t.Fatalf("x inferred type = %+v, want f64", inferred)
	}
}

// TestStructWithInferredFieldTypes checks that an anonymous composite type
// gets a stable `__struct_<n>__` label, a typedef-style binding under the
// declared name, and u32-inferred field types from the numeric literal
// initializers.
func TestStructWithInferredFieldTypes(t *testing.T) {
	path := writeSource(t, "Point :: struct { x := 0; y := 0; };")

	s := session.New(common.DefaultConfig())
	if !s.CompileFiles(path) {
		t.Fatalf("compile failed: %v", s.Diagnostics())
	}

	module, _ := s.Registry.Find(s.RootModule)
	block, _ := s.Registry.Find(module.Lhs)

	pointId, ok := block.Identifiers["Point"]
	if !ok {
		t.Fatalf("identifier Point not declared")
	}

	point, _ := s.Registry.Find(pointId)

	init, ok := s.Registry.Find(point.Initializer)
	if !ok || init.Kind != elements.KindInitializer {
		t.Fatalf("Point has no constant initializer: %+v", init)
	}

	composite, ok := s.Registry.Find(init.Lhs)
	if !ok || composite.Kind != elements.KindCompositeType || composite.Composite != elements.CompositeStruct {
		t.Fatalf("Point initializer is not a struct type: %+v", composite)
	}

	if !strings.HasPrefix(composite.LabelName(), "__struct_") {
		t.Fatalf("anonymous struct label = %q, want __struct_<n>__ form", composite.LabelName())
	}

	if point.DeclaredType != composite.Id {
		t.Fatalf("Point is not bound to the struct type")
	}

	members, _ := s.Registry.Find(composite.Lhs)

	type fieldInfo struct {
		Name, Type string
	}

	var got []fieldInfo

	for _, fieldId := range members.Fields {
		field, _ := s.Registry.Find(fieldId)
		ident, _ := s.Registry.Find(field.Lhs)
		declared, _ := s.Registry.Find(ident.DeclaredType)
		got = append(got, fieldInfo{ident.Name, declared.Name})
	}

	want := []fieldInfo{{"x", "u32"}, {"y", "u32"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("struct fields mismatch (-want +got):\n%s", diff)
	}
}
