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
	"strings"

	"github.com/apex/log"

	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/internal/hexcodec"
	syslock "github.com/cyphar/blobvault/pkg/system"
)

// WalkFunc is called once per blob found by Walk, with its reference and
// current on-disk size. Returning an error stops the walk and the error
// propagates out of Walk.
type WalkFunc func(ref Reference, size int64) error

// Walk visits every blob currently in the store, in an unspecified order.
// It holds the store's lock for its entire duration, so fn should not call
// back into the store.
func (s *Store) Walk(fn WalkFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewError(KindStoreClosed, "store is closed", nil)
	}
	return s.walkDir(s.blobsRoot, "", fn)
}

func (s *Store) walkDir(path, prefix string, fn WalkFunc) error {
	entries, err := s.fs.List(path)
	if err != nil {
		return NewError(KindIoFailure, "walk blob directory", err)
	}

	remaining := s.digestLen - len(prefix)/2
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() {
			id, ok := blobFileID(name, prefix, remaining)
			if !ok {
				continue
			}
			ref, err := ReferenceFromHex(id, s.digestLen)
			if err != nil {
				continue
			}
			fullPath, err := s.fs.Join(path, name)
			if err != nil {
				return err
			}
			size, err := s.fs.Size(fullPath)
			if err != nil {
				return NewError(KindIoFailure, "stat blob during walk", err)
			}
			if err := fn(ref, size); err != nil {
				return err
			}
			continue
		}
		if e.IsDir() && hexcodec.IsValidLowercase(name, 1) {
			childPath, err := s.fs.Join(path, name)
			if err != nil {
				return err
			}
			if err := s.walkDir(childPath, prefix+name, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clean removes staged "incoming-*.tmp" files whose owning Add abandoned
// them -- in practice, a process that crashed between newIncomingBlob and
// its eventual moveTo/discard. A live staging file is held open and
// flock'd by its owner for exactly that window, so Clean tells the two
// apart by attempting the same non-blocking exclusive flock: if it
// succeeds, nothing else holds the file open and it's safe to delete; if
// it fails, a write is still in progress and Clean leaves it alone.
//
// This is deliberately narrower than a general garbage collector: it never
// removes anything based on age, only on whether the lock is actually
// released.
func (s *Store) Clean() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewError(KindStoreClosed, "store is closed", nil)
	}

	entries, err := s.fs.List(s.incoming)
	if err != nil {
		return NewError(KindIoFailure, "list incoming directory", err)
	}

	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, "incoming-") || !strings.HasSuffix(name, ".tmp") {
			continue
		}
		path, err := s.fs.Join(s.incoming, name)
		if err != nil {
			return err
		}
		if err := cleanStaleIncoming(s.fs, path); err != nil {
			log.WithFields(log.Fields{"path": path, "error": err}).
				Warn("failed to reap stale incoming file")
		}
	}
	return nil
}

// cleanStaleIncoming removes path if (and only if) no process currently
// holds its advisory lock.
func cleanStaleIncoming(fs *fsutil.FS, path string) error {
	fh, err := fs.OpenExisting(path)
	if err != nil {
		return err
	}
	defer fh.Close() //nolint:errcheck

	if err := syslock.Flock(fh.Fd(), true); err != nil {
		// Held by a live writer; leave it be.
		return nil //nolint:nilerr
	}
	defer syslock.Unflock(fh.Fd()) //nolint:errcheck

	return fs.DeleteIfExists(path)
}
