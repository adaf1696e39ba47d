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

// Package session implements the Session/Program Driver: the ten-phase
// pipeline that turns a set of source files into an executed (or merely
// assembled) program, orchestrating pkg/ast, pkg/eval, pkg/scope,
// pkg/semantic, pkg/codegen, and pkg/vm in turn. The per-file
// compile-phase callback follows Consensys-go-corset/pkg/cmd/compile.go's
// single-pass "read, compile, report" driver structure.
package session

import (
	"fmt"
	"sort"

	"github.com/basecode-lang/basecode/pkg/ast"
	"github.com/basecode-lang/basecode/pkg/codegen"
	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/elements"
	"github.com/basecode-lang/basecode/pkg/eval"
	"github.com/basecode-lang/basecode/pkg/scope"
	"github.com/basecode-lang/basecode/pkg/semantic"
	"github.com/basecode-lang/basecode/pkg/source"
	"github.com/basecode-lang/basecode/pkg/vm"
)

// PhaseEvent names a point in the per-file compile-phase callback
// (start|success|failed).
type PhaseEvent uint8

// Phase events reported to an optional PhaseCallback.
const (
	PhaseStart PhaseEvent = iota
	PhaseSuccess
	PhaseFailed
)

// PhaseCallback is invoked once per source file as it moves through
// elaboration, letting a driver (e.g. the CLI in pkg/cmd) print progress.
type PhaseCallback func(file string, event PhaseEvent)

// Session orchestrates one compilation: it owns the element registry, the
// id pool, the scope manager, and the diagnostics result that every phase
// accumulates into.
type Session struct {
	Config   common.Config
	Result   *common.Result
	IDs      *common.IDPool
	Registry *elements.Registry
	Builder  *elements.Builder
	Scope    *scope.Manager
	Checker  *semantic.Checker

	// CoreScope is the session-wide scope every module is parented under,
	// holding the builtin numeric/bool/string/... types.
	CoreScope elements.Id

	// Modules holds the id of every elaborated file's root Module element,
	// in the order elaboration finished: a module loaded by a `module "path"`
	// expression is appended before the file that loads it.
	Modules []elements.Id
	// RootModule is the first source file compiled.
	RootModule elements.Id

	// Program is the assembled/executed artifact, populated once Emit and
	// Assemble (phases 8-9) have run.
	Program   *vm.InstructionBlock
	Heap      *vm.Heap
	Assembler *vm.Assembler
	Terp      *vm.Terp

	OnPhase PhaseCallback

	pendingFFI []pendingFFI
}

// New constructs a Session with a fresh registry, id pool, scope manager,
// and checker, ready for phase 1.
func New(cfg common.Config) *Session {
	ids := common.NewIDPool()
	registry := elements.NewRegistry()
	builder := elements.NewBuilder(registry, ids)
	mgr := scope.NewManager(registry)
	result := common.NewResult()

	return &Session{
		Config:   cfg,
		Result:   result,
		IDs:      ids,
		Registry: registry,
		Builder:  builder,
		Scope:    mgr,
		Checker:  semantic.New(builder, mgr, result),
	}
}

func (s *Session) notify(file string, event PhaseEvent) {
	if s.OnPhase != nil {
		s.OnPhase(file, event)
	}
}

// CompileFiles runs phases 1-7 (everything up to, but not including, code
// generation) over the given source paths. Every file is elaborated even if
// an earlier one fails; after that, it stops at the first of directive
// execution and phases 4-5 whose Result is failed, while type checking
// (phase 6) and folding (phase 7) always run together.
func (s *Session) CompileFiles(paths ...string) bool {
	s.InitCoreTypes()

	files, err := source.ReadFiles(paths...)
	if err != nil {
		s.Result.AddError("C021", nil, "", "module load failed: %s", err)
		return false
	}

	for i := range files {
		file := &files[i]
		s.notify(file.Filename(), PhaseStart)

		moduleId, ok := s.elaborateFile(file)
		if !ok {
			s.notify(file.Filename(), PhaseFailed)
			continue
		}

		s.notify(file.Filename(), PhaseSuccess)
		s.Modules = append(s.Modules, moduleId)

		if s.RootModule == 0 {
			s.RootModule = moduleId
		}
	}

	if s.Result.IsFailed() {
		return false
	}

	s.ExecuteDirectives()
	if s.Result.IsFailed() {
		return false
	}

	s.ResolveIdentifierReferences()
	s.ResolveUnknownTypes()
	if s.Result.IsFailed() {
		return false
	}

	s.TypeCheck()
	s.FoldConstants()

	return !s.Result.IsFailed()
}

// CompileSource runs phases 1-7 over a single in-memory snippet rather than
// a file on disk, for use by the REPL (`basecode repl`), which reads one
// line at a time from github.com/peterh/liner rather than a source path.
func (s *Session) CompileSource(name, contents string) bool {
	if s.CoreScope == 0 {
		s.InitCoreTypes()
	}

	file := source.NewSourceFile(name, []byte(contents))

	moduleId, ok := s.elaborateFile(file)
	if !ok {
		return false
	}

	s.Modules = append(s.Modules, moduleId)

	if s.RootModule == 0 {
		s.RootModule = moduleId
	}

	if s.Result.IsFailed() {
		return false
	}

	s.ExecuteDirectives()
	s.ResolveIdentifierReferences()
	s.ResolveUnknownTypes()
	s.TypeCheck()
	s.FoldConstants()

	return !s.Result.IsFailed()
}

// elaborateFile implements phase 2 for a single file: parse, then evaluate
// the resulting module AST.
func (s *Session) elaborateFile(file *source.File) (elements.Id, bool) {
	root, parseResult := ast.Parse(file)
	s.Result.Merge(parseResult)

	if parseResult.IsFailed() {
		return 0, false
	}

	evaluator := eval.New(s.Builder, s.Scope, file.Filename(), s.Result)
	evaluator.LoadModule = s.loadModule
	moduleId := evaluator.Evaluate(root, elements.KindModuleBlock)

	return moduleId, moduleId != 0 && !s.Result.IsFailed()
}

// loadModule compiles the file at path into its own Module element, for
// `module "path"` expressions; the loaded module joins Modules so the
// later resolution/emit phases see its declarations.
func (s *Session) loadModule(path string) elements.Id {
	files, err := source.ReadFiles(path)
	if err != nil || len(files) == 0 {
		return 0
	}

	moduleId, ok := s.elaborateFile(&files[0])
	if !ok {
		return 0
	}

	s.Modules = append(s.Modules, moduleId)

	return moduleId
}

// ResolveIdentifierReferences implements session phase 4.
func (s *Session) ResolveIdentifierReferences() {
	s.Checker.ResolveIdentifierReferences()
}

// ResolveUnknownTypes implements session phase 5.
func (s *Session) ResolveUnknownTypes() {
	s.Checker.ResolveUnknownTypes()
}

// TypeCheck implements session phase 6: every identifier with both a
// declared type and an initializer is checked for compatibility. An
// identifier with no declared type and nothing to infer from is a P019.
func (s *Session) TypeCheck() {
	for _, ident := range s.Registry.FindByKind(elements.KindIdentifier) {
		s.Checker.InferType(ident.Id)
		s.Checker.OnTypeCheck(ident.Id)

		if ident.InferredType && ident.DeclaredType == 0 && ident.Initializer == 0 {
			s.Result.AddError("P019", &ident.Location, "", "unable to infer type for %q", ident.Name)
		}
	}

	for _, binop := range s.Registry.FindByKind(elements.KindBinaryOperator) {
		if binop.Operator == elements.OpAssignment {
			s.Checker.CheckAssignment(binop.Id)
		}
	}
}

// FoldConstants implements session phase 7: every intrinsic element is
// folded, splicing the replacement into its parent per the parent's kind.
func (s *Session) FoldConstants() {
	for _, intrinsic := range s.Registry.FindByKind(elements.KindIntrinsic) {
		s.foldAndSplice(intrinsic.Id)
	}
}

// foldAndSplice folds id and, if a replacement was produced, patches the
// replacement into id's parent according to the parent's kind
// (initializer.expression, argument_list[i], unary.rhs, binary.lhs/rhs).
func (s *Session) foldAndSplice(id elements.Id) {
	elem, ok := s.Registry.Find(id)
	if !ok {
		return
	}

	replacement := s.Checker.Fold(id)
	if replacement == 0 || replacement == id {
		return
	}

	parent, ok := s.Registry.Find(elem.ParentElement)
	if !ok {
		return
	}

	if replaced, ok := s.Registry.Find(replacement); ok {
		replaced.Attributes = ensureAttrs(replaced.Attributes)
		replaced.Attributes["intrinsic_substitution"] = id
	}

	switch parent.Kind {
	case elements.KindInitializer:
		parent.Lhs = replacement
	case elements.KindArgumentList:
		for i, arg := range parent.Args {
			if arg == id {
				parent.Args[i] = replacement
			}
		}
	case elements.KindUnaryOperator:
		parent.Rhs = replacement
	case elements.KindBinaryOperator:
		if parent.Lhs == id {
			parent.Lhs = replacement
		}

		if parent.Rhs == id {
			parent.Rhs = replacement
		}
	case elements.KindStatement, elements.KindExpression:
		parent.Lhs = replacement
	}

	s.Registry.Remove(id)
}

func ensureAttrs(m map[string]elements.Id) map[string]elements.Id {
	if m == nil {
		return map[string]elements.Id{}
	}

	return m
}

// Emit implements session phase 8: every module emits its instruction
// block, and the blocks are sequenced under one synthetic root so the
// assembler sees a single tree.
func (s *Session) Emit() {
	gen := codegen.New(s.Registry, s.Result)

	root := vm.NewInstructionBlock("__program__")
	for _, moduleId := range s.Modules {
		if block := gen.Emit(moduleId); block != nil {
			block.Parent = root
			root.Children = append(root.Children, block)
		}
	}

	s.Program = root
}

// Assemble implements session phase 9: lay out the instruction-block tree
// into a freshly allocated VM heap behind a bootstrap jump and a constant
// segment holding every interned string literal, and resolve every label.
func (s *Session) Assemble() uint64 {
	if s.Program == nil {
		s.Emit()
	}

	s.Heap = vm.NewHeap(s.Config.HeapSize)
	s.Assembler = vm.NewAssembler(s.Heap)

	if len(s.Builder.StringLiterals) > 0 {
		constants := s.Assembler.Segment("constants", vm.SegmentConstant)

		values := make([]string, 0, len(s.Builder.StringLiterals))
		for value := range s.Builder.StringLiterals {
			values = append(values, value)
		}

		sort.Slice(values, func(i, j int) bool {
			return s.Builder.StringLiterals[values[i]] < s.Builder.StringLiterals[values[j]]
		})

		for _, value := range values {
			label := fmt.Sprintf("__str_%d__", s.Builder.StringLiterals[value])
			constants.Define(label, vm.SymbolBytes, append([]byte(value), 0))
		}
	}

	return s.Assembler.Assemble(s.Program, s.Result)
}

// Run implements session phase 10: hand control to the VM, starting at the
// entry address produced by Assemble, until it exits or a diagnostic marks
// the result failed.
func (s *Session) Run() *vm.Terp {
	entry := s.Assemble()
	if s.Result.IsFailed() {
		return nil
	}

	s.Terp = vm.NewTerp(s.Config.HeapSize, s.Config.StackSize)
	s.Terp.Heap = s.Heap
	s.Terp.Regs.PC = entry
	s.installFFI()

	s.Terp.Run(s.Result)

	return s.Terp
}

// Compile runs every phase through assembly (1 through 9) but does not
// execute the program, for use by the `basecode build` command.
func (s *Session) Compile(paths ...string) bool {
	if !s.CompileFiles(paths...) {
		return false
	}

	s.Assemble()

	return !s.Result.IsFailed()
}

// Diagnostics renders every accumulated message, one per line, the way a
// command-line compiler reports a batch of errors.
func (s *Session) Diagnostics() []string {
	lines := make([]string, 0, len(s.Result.Messages()))
	for _, m := range s.Result.Messages() {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Severity, m.Text))
	}

	return lines
}
