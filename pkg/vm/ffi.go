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
package vm

import "plugin"

// FFIValueType classifies one value crossing the FFI boundary, matching
// the C-side storage class the callee expects.
type FFIValueType uint8

// FFI value types.
const (
	FFIVoid FFIValueType = iota
	FFIBool
	FFIChar
	FFIShort
	FFIInt
	FFILong
	FFILongLong
	FFIFloat
	FFIDouble
	FFIPointer
	FFIStruct
)

// FFICallingMode selects how a foreign function's arguments are marshaled.
type FFICallingMode uint8

// Calling modes.
const (
	CallCDefault FFICallingMode = iota
	CallCEllipsis
	CallCEllipsisVarargs
)

// FFIValue describes one argument or return slot of a foreign function.
// Fields is populated only for FFIStruct.
type FFIValue struct {
	Type   FFIValueType
	Fields []FFIValue
}

// FFISignature describes a foreign function registered by a `#foreign`
// directive: the shared object it lives in, its exported symbol name, its
// argument/return value types, and the host-side Go function actually
// invoked. Arbitrary C ABI calls via dyncall/dynload aren't available in
// pure Go, so this bridge instead loads Go plugins via the standard
// library's plugin package, which is the closest stdlib equivalent to
// dynload's "open a shared object, look up a symbol by name" contract
// (see DESIGN.md).
type FFISignature struct {
	Library     string
	Symbol      string
	ReturnValue FFIValue
	Arguments   []FFIValue
	CallingMode FFICallingMode
	Fn          func(args []uint64) uint64
}

// FFIBridge resolves and invokes foreign functions named by FFI
// instructions. Each registered function is assigned a numeric id (1-based,
// in registration order); an FFI instruction's first operand carries that
// id at run time.
type FFIBridge struct {
	functions map[string]FFISignature
	names     map[uint64]string
	nextId    uint64
	libraries map[string]*plugin.Plugin
}

// NewFFIBridge constructs an empty bridge.
func NewFFIBridge() *FFIBridge {
	return &FFIBridge{
		functions: map[string]FFISignature{},
		names:     map[uint64]string{},
		libraries: map[string]*plugin.Plugin{},
	}
}

// Register loads (if not already loaded) the shared object named by sig's
// Library, looks up Symbol within it, and records it under name for later
// FFI instructions to invoke, assigning the function's operand id.
func (b *FFIBridge) Register(name string, sig FFISignature) error {
	if sig.Library != "" {
		lib, ok := b.libraries[sig.Library]
		if !ok {
			var err error

			lib, err = plugin.Open(sig.Library)
			if err != nil {
				return err
			}

			b.libraries[sig.Library] = lib
		}

		symbol, err := lib.Lookup(sig.Symbol)
		if err != nil {
			return err
		}

		if fn, ok := symbol.(func(args []uint64) uint64); ok {
			sig.Fn = fn
		}
	}

	if _, registered := b.functions[name]; !registered {
		b.nextId++
		b.names[b.nextId] = name
	}

	b.functions[name] = sig

	return nil
}

// Signature returns the signature registered under name.
func (b *FFIBridge) Signature(name string) (FFISignature, bool) {
	sig, ok := b.functions[name]
	return sig, ok
}

// Id returns the operand id assigned to a registered function, for
// emitting FFI instructions that target it.
func (b *FFIBridge) Id(name string) (uint64, bool) {
	for id, registered := range b.names {
		if registered == name {
			return id, true
		}
	}

	return 0, false
}

// Call invokes the foreign function whose operand id is the first operand,
// passing the remaining operands as arguments and storing the result back
// into the first operand's register. An id with no registered function
// raises the invalid-FFI trap.
func (b *FFIBridge) Call(t *Terp, ops []Operand) {
	if len(ops) == 0 {
		return
	}

	name, ok := b.names[t.operandValue(ops[0])]
	if !ok {
		t.ExecuteTrap(TrapInvalidFFI)
		return
	}

	sig, ok := b.functions[name]
	if !ok || sig.Fn == nil {
		t.ExecuteTrap(TrapInvalidFFI)
		return
	}

	args := make([]uint64, 0, len(ops)-1)
	for _, op := range ops[1:] {
		args = append(args, t.operandValue(op))
	}

	result := sig.Fn(args)
	t.storeResult(ops[0], result)
}
