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

// Package funchelpers keeps deferred-cleanup error handling uniform: a
// deferred cleanup whose error would otherwise be discarded gets folded
// into the surrounding function's named return value instead. Store.Close
// is the motivating caller, with its stack of incoming-directory removal,
// lock release, and lock-file close.
package funchelpers

import (
	"io"

	"github.com/cyphar/blobvault/internal/assert"
)

// VerifyError runs cleanupFn and, if it fails while the surrounding
// function was otherwise succeeding, stores its error in the named return
// slot:
//
//	func (s *Store) Close() (err error) {
//		defer funchelpers.VerifyError(&err, s.lock.Close)
//		...
//	}
//
// The first error wins: a cleanup failure never overwrites an error the
// function body (or an earlier-executed deferred cleanup) already produced,
// but every cleanup still runs.
func VerifyError(Err *error, cleanupFn func() error) {
	assert.Assert(Err != nil,
		"VerifyError must be called with non-nil Err slot") // programmer error
	if err := cleanupFn(); err != nil && *Err == nil {
		*Err = err
	}
}

// VerifyClose is shorthand for VerifyError(Err, closer.Close).
func VerifyClose(Err *error, closer io.Closer) {
	VerifyError(Err, closer.Close)
}
