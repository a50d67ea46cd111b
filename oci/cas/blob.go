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

package cas

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Blob is a handle to content that existed in the store at the moment the
// handle was created. It holds only a path and a cached size -- it does not
// own the backing file, and a later Delete of the same reference does not
// retroactively invalidate a handle that has already been returned (Open
// will simply start failing).
type Blob struct {
	ref  Reference
	size int64
	path string
}

// ID returns the lowercase hex identifier of the blob.
func (b *Blob) ID() string {
	return b.ref.ID()
}

// Reference returns the validated reference this handle was resolved from.
func (b *Blob) Reference() Reference {
	return b.ref
}

// Size returns the blob's size in bytes, as observed when the handle was
// created.
func (b *Blob) Size() int64 {
	return b.size
}

// Open returns a fresh reader over the blob's content. The caller must
// Close it. If the blob has since been deleted, Open returns the
// underlying os.ErrNotExist-wrapped error.
func (b *Blob) Open() (io.ReadCloser, error) {
	fh, err := os.Open(b.path)
	if err != nil {
		return nil, NewError(KindIoFailure, "open blob", errors.WithStack(err))
	}
	return fh, nil
}
