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

// Package common provides the session-scoped primitives shared across the
// whole compiler pipeline: unique identifiers and the diagnostics result
// type that every fallible operation returns into.
package common

import "sync/atomic"

// ID is a monotonically increasing identifier, unique within the IDPool
// that minted it. A session creates one pool and uses it for element
// identities.
type ID uint64

// IDPool is a monotonic unique-identifier source. One pool is created per
// compile session (see session.Session); there is no global/static pool, so
// that two sessions running in the same process never interfere with one
// another.
type IDPool struct {
	next atomic.Uint64
}

// NewIDPool constructs a fresh pool starting at 1; 0 is reserved to mean
// "no id" so that a zero-valued ID is always recognizably invalid.
func NewIDPool() *IDPool {
	pool := &IDPool{}
	pool.next.Store(1)

	return pool
}

// Next allocates and returns the next unique identifier from this pool.
func (p *IDPool) Next() ID {
	return ID(p.next.Add(1) - 1)
}
