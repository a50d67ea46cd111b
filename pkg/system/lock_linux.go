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

// Package system wraps the advisory-locking syscalls the store uses to
// enforce its single-writer-per-root rule.
package system

import "golang.org/x/sys/unix"

// Flock takes a non-blocking advisory lock on fd: shared for readers,
// exclusive for a writer. If another descriptor already holds a conflicting
// lock it fails immediately (EWOULDBLOCK) instead of waiting, which is what
// lets Open reject a second store on the same root and lets Clean probe
// whether a staging file's writer is still alive.
func Flock(fd uintptr, exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	return unix.Flock(int(fd), how|unix.LOCK_NB)
}

// Unflock releases an advisory lock held on fd.
func Unflock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
