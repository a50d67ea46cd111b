/*
 * blobvault: a content-addressable blob store
 * Copyright (C) 2016-2025 SUSE LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics provides a small named-counter registry. The store uses
// it to track blobCount/byteCount and to count filesystem operations
// performed by internal/fsutil; none of this is part of the on-disk state,
// it exists purely for observability and tests.
package metrics

import (
	"sync"

	"github.com/mohae/deepcopy"
)

// Standard counter names maintained by the store.
const (
	BlobCount = "blobCount"
	ByteCount = "byteCount"

	OpExists           = "fs.exists"
	OpCreateDirectory  = "fs.createDirectory"
	OpListDirectory    = "fs.list"
	OpAtomicMove       = "fs.atomicMove"
	OpDeleteIfExists   = "fs.deleteIfExists"
	OpDeleteTree       = "fs.deleteTree"
	OpOpenOutput       = "fs.openOutput"
	OpOpenExisting     = "fs.openExisting"
	OpSize             = "fs.size"
	OpRemoveEmptyDir   = "fs.removeEmptyDir"
)

// Registry is a thread-safe mapping from counter name to a 64-bit signed
// counter. The zero value is a usable, empty registry.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{counters: map[string]int64{}}
}

// Inc increments the named counter by one.
func (r *Registry) Inc(name string) {
	r.IncBy(name, 1)
}

// IncBy increments the named counter by n.
func (r *Registry) IncBy(name string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = map[string]int64{}
	}
	r.counters[name] += n
}

// Dec decrements the named counter by one.
func (r *Registry) Dec(name string) {
	r.DecBy(name, 1)
}

// DecBy decrements the named counter by n.
func (r *Registry) DecBy(name string, n int64) {
	r.IncBy(name, -n)
}

// Set overwrites the named counter with an absolute value. Used by the
// startup scan, which recomputes blobCount/byteCount from scratch rather
// than incrementally.
func (r *Registry) Set(name string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = map[string]int64{}
	}
	r.counters[name] = value
}

// Get returns the current value of the named counter (zero if never set).
func (r *Registry) Get(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Snapshot returns an independent copy of the registry's counters, safe to
// range over or hand to a metrics publisher while other goroutines keep
// calling Inc/Dec on the live registry.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		return map[string]int64{}
	}
	return deepcopy.Copy(r.counters).(map[string]int64)
}
