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

// Registry is the session-wide owner of every Element: the primary map
// is the sole owner of storage, and a secondary index keyed by Kind
// supports FindByKind without a linear scan.
type Registry struct {
	byId   map[Id]*Element
	byKind map[Kind][]Id
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byId: map[Id]*Element{}, byKind: map[Kind][]Id{}}
}

// Add inserts elem into both indexes. elem.Id must already be set by the
// caller (the Builder owns id assignment).
func (r *Registry) Add(elem *Element) {
	r.byId[elem.Id] = elem
	r.byKind[elem.Kind] = append(r.byKind[elem.Kind], elem.Id)
}

// Remove drops an element permanently; its id is never reused.
func (r *Registry) Remove(id Id) {
	elem, ok := r.byId[id]
	if !ok {
		return
	}

	delete(r.byId, id)

	ids := r.byKind[elem.Kind]
	for i, candidate := range ids {
		if candidate == id {
			r.byKind[elem.Kind] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Find looks up an element by id.
func (r *Registry) Find(id Id) (*Element, bool) {
	elem, ok := r.byId[id]
	return elem, ok
}

// FindByKind returns every element currently registered under kind.
func (r *Registry) FindByKind(kind Kind) []*Element {
	ids := r.byKind[kind]
	out := make([]*Element, 0, len(ids))

	for _, id := range ids {
		if elem, ok := r.byId[id]; ok {
			out = append(out, elem)
		}
	}

	return out
}

// IsConstant handles the compound cases that need registry access to
// inspect operands: operators are constant iff every operand is.
func (r *Registry) IsConstant(id Id) bool {
	elem, ok := r.Find(id)
	if !ok {
		return false
	}

	switch elem.Kind {
	case KindUnaryOperator:
		return r.IsConstant(elem.Rhs)
	case KindBinaryOperator:
		return r.IsConstant(elem.Lhs) && r.IsConstant(elem.Rhs)
	case KindIntrinsic:
		for _, arg := range elem.Args {
			if !r.IsConstant(arg) {
				return false
			}
		}

		return true
	default:
		return elem.IsConstant()
	}
}

// OnOwnedElements lists the child ids in the ownership forest, used by
// walks and teardown.
func (r *Registry) OnOwnedElements(id Id) []Id {
	elem, ok := r.Find(id)
	if !ok {
		return nil
	}

	var children []Id

	children = append(children, elem.Statements...)
	children = append(children, elem.Comments...)
	children = append(children, elem.Imports...)
	children = append(children, elem.Blocks...)
	children = append(children, elem.Fields...)
	children = append(children, elem.Args...)
	children = append(children, elem.Children...)
	children = append(children, elem.ProcInstances...)

	if elem.Lhs != 0 {
		children = append(children, elem.Lhs)
	}

	if elem.Rhs != 0 {
		children = append(children, elem.Rhs)
	}

	return children
}
