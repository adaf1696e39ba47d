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
	"github.com/basecode-lang/basecode/pkg/source"
)

// InitCoreTypes implements session phase 1: it creates one instance of
// every numeric primitive plus bool/string/namespace/module/tuple/
// type_info/any, and registers each in a session-wide core scope that
// every file's module block is parented under (via scope.Manager's normal
// PushNewBlock parenting), so unqualified lookups from any module walk up
// into it.
func (s *Session) InitCoreTypes() {
	var zero source.Location

	core := s.Scope.PushNewBlock(s.Builder, elements.KindBlock, zero)
	s.CoreScope = core.Id
	s.Checker.CoreScope = core.Id

	for _, spec := range elements.NumericTypeTable {
		t := s.Builder.NewNumericType(spec, zero)
		core.Types[spec.Name] = t.Id
	}

	register := func(name string, elem *elements.Element) {
		core.Types[name] = elem.Id
	}

	register("bool", s.Builder.NewBoolType(zero))
	register("string", s.Builder.NewStringType(zero))
	register("namespace", s.Builder.NewNamespaceType(zero))
	register("module", s.Builder.NewModuleType(zero))
	register("tuple", s.Builder.NewTupleType(zero))
	register("type_info", s.Builder.NewTypeInfoType(zero))
	register("any", s.Builder.NewAnyType(zero))
}
