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

// Package system provides the low-level stream copy shared by the staging
// and manual-reference write paths.
package system

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

// copyBufferSize is the chunk size for streaming a source into a staging
// file (and through its digest writer).
const copyBufferSize = 32 * 1024

// Copy behaves like io.Copy but automatically resumes after EINTR, which a
// plain io.Copy would surface as a hard failure mid-stream. Every blob
// written to the store is funnelled through here, so the buffer is
// allocated once up front rather than per io.Copy retry.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)

	var written int64
	for {
		n, err := io.CopyBuffer(dst, src, buf)
		written += n // n is always non-negative
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return written, err
	}
}
