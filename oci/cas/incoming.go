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
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/internal/system"
	syslock "github.com/cyphar/blobvault/pkg/system"
)

// incomingBlob is a transient, staged write: a uniquely-named temp file
// inside the store's incoming/ directory, together with the digest and size
// computed while the source was streamed through it. It is created outside
// the store's lock and either adopted by moveTo (the caller takes
// over the file) or cleaned up by discard.
//
// The file descriptor is held open and flock'd exclusively for the whole
// lifetime of the incomingBlob, not just while it's being written: this is
// what lets Store.Clean tell a merely-slow write apart from one whose owning
// process died mid-stream (the lock dies with the process; Clean's own
// non-blocking flock attempt on the same file then succeeds).
type incomingBlob struct {
	fs       *fsutil.FS
	file     *os.File
	tempPath string
	size     int64
	digest   []byte
	moved    bool
}

// newIncomingBlob streams src into a new "incoming-<n>.tmp" file inside dir,
// hashing it with a fresh instance of newHash as it goes. The 32 KiB
// buffered copy (with EINTR retry) is shared with internal/system.Copy. On
// any read/write/lock error the temp file is removed before the error is
// returned.
func newIncomingBlob(fs *fsutil.FS, dir string, newHash func() hash.Hash, nextID func() int64, src io.Reader) (*incomingBlob, error) {
	name := fmt.Sprintf("incoming-%d.tmp", nextID())
	tempPath := filepath.Join(dir, name)

	fh, err := fs.CreateExclusive(tempPath, 0o600)
	if err != nil {
		return nil, NewError(KindIoFailure, "create incoming temp file", err)
	}

	abort := func(cause error) (*incomingBlob, error) {
		if cerr := syslock.Unflock(fh.Fd()); cerr != nil {
			log.WithFields(log.Fields{"path": tempPath, "error": cerr}).
				Warn("failed to unlock incoming temp file during cleanup")
		}
		if cerr := fh.Close(); cerr != nil {
			log.WithFields(log.Fields{"path": tempPath, "error": cerr}).
				Warn("failed to close incoming temp file during cleanup")
		}
		if cerr := fs.DeleteIfExists(tempPath); cerr != nil {
			log.WithFields(log.Fields{"path": tempPath, "error": cerr}).
				Warn("failed to clean up incoming temp file after error")
		}
		return nil, cause
	}

	if err := syslock.Flock(fh.Fd(), true); err != nil {
		return abort(NewError(KindIoFailure, "lock incoming temp file", err))
	}

	hasher := newHash()
	writer := io.MultiWriter(fh, hasher)

	size, err := system.Copy(writer, src)
	if err != nil {
		return abort(NewError(KindIoFailure, "copy into incoming blob", err))
	}

	return &incomingBlob{
		fs:       fs,
		file:     fh,
		tempPath: tempPath,
		size:     size,
		digest:   hasher.Sum(nil),
	}, nil
}

// moveTo ensures dest's parent directory exists and atomically renames the
// temp file to dest. After a successful call, the incomingBlob no longer
// owns a file on disk (discard becomes a no-op).
func (ib *incomingBlob) moveTo(dest string) error {
	if err := ib.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return NewError(KindIoFailure, "ensure blob parent directory", err)
	}
	if err := ib.fs.Rename(ib.tempPath, dest); err != nil {
		return NewError(KindIoFailure, "move incoming blob into place", err)
	}
	ib.release()
	ib.moved = true
	return nil
}

// discard deletes the temp file if moveTo was never called (or failed). It
// is always safe to call, including after a successful moveTo.
func (ib *incomingBlob) discard() error {
	if ib.moved {
		return nil
	}
	ib.release()
	if err := ib.fs.DeleteIfExists(ib.tempPath); err != nil {
		return NewError(KindIoFailure, "discard incoming blob", err)
	}
	return nil
}

// release unlocks and closes the staging file descriptor. It is idempotent:
// moveTo and discard can never both hold an open file, but either may be
// called more than once.
func (ib *incomingBlob) release() {
	if ib.file == nil {
		return
	}
	if err := syslock.Unflock(ib.file.Fd()); err != nil {
		log.WithFields(log.Fields{"path": ib.tempPath, "error": err}).
			Warn("failed to unlock incoming temp file")
	}
	if err := ib.file.Close(); err != nil {
		log.WithFields(log.Fields{"path": ib.tempPath, "error": err}).
			Warn("failed to close incoming temp file")
	}
	ib.file = nil
}
