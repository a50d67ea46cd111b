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

// Package manualref implements the degenerate sibling of oci/cas: a flat,
// single-level store keyed by a caller-supplied identifier rather than a
// content digest. Entries are not deduplicated and the identifier need not
// relate to the file's content at all -- the caller is trusted to pick (and
// remember) keys that don't collide.
//
// It shares its identifier validation and atomic-move mechanics with
// oci/cas, but not the self-balancing hierarchy: every key lives under a
// single two-hex-digit parent directory keyed by the first byte of the key,
// which is enough to keep any one directory from holding an unbounded
// number of files but requires none of oci/cas's promotion/cleanup logic.
package manualref

import (
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/internal/hexcodec"
	"github.com/cyphar/blobvault/internal/system"
	"github.com/cyphar/blobvault/metrics"
)

// Key is a validated, fixed-length manual-reference identifier. Unlike
// oci/cas.Reference, a Key is not required to be (and is never checked
// against) the digest of the entry's content.
type Key struct {
	raw string
}

// KeyFromHex validates s as exactly 2*length lowercase-or-uppercase hex
// characters.
func KeyFromHex(s string, length int) (Key, error) {
	b, err := hexcodec.Decode(s, length)
	if err != nil {
		return Key{}, errors.Wrap(err, "parse manual-reference key")
	}
	return Key{raw: string(b)}, nil
}

// ID returns the lowercase hex string form of the key.
func (k Key) ID() string {
	return hexcodec.Encode([]byte(k.raw))
}

func (k Key) String() string {
	return k.ID()
}

func (k Key) parentDir() string {
	return hexcodec.Encode([]byte{k.raw[0]})
}

func (k Key) fileName() string {
	return hexcodec.Encode([]byte(k.raw[1:])) + ".blob"
}

// Entry is a handle to content that existed under a Key at the moment it
// was resolved.
type Entry struct {
	key  Key
	size int64
	path string
}

// ID returns the entry's key in lowercase hex form.
func (e *Entry) ID() string { return e.key.ID() }

// Size returns the entry's size in bytes, as observed when it was resolved.
func (e *Entry) Size() int64 { return e.size }

// Open returns a fresh reader over the entry's content. The caller must
// close it.
func (e *Entry) Open() (io.ReadCloser, error) {
	fh, err := os.Open(e.path)
	if err != nil {
		return nil, errors.Wrap(err, "open manual-reference entry")
	}
	return fh, nil
}

// Store is a flat, single-level manual-reference store rooted at a
// directory on disk. Unlike oci/cas.Store, keys are never deduplicated by
// content: two Put calls with the same key simply overwrite one another
// (the second wins), and two different keys whose content happens to match
// are stored twice.
type Store struct {
	root     string
	keyLen   int
	fs       *fsutil.FS
	metrics  *metrics.Registry
	mu       sync.Mutex
	counter  int64
	closed   bool
}

// Open opens (creating if necessary) a manual-reference store rooted at
// path, whose keys are exactly keyLen bytes.
func Open(path string, keyLen int) (*Store, error) {
	if keyLen < 1 {
		return nil, errors.New("manualref: keyLen must be positive")
	}
	reg := metrics.NewRegistry()
	fs := fsutil.New(reg)
	if err := fs.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "create manual-reference store")
	}
	return &Store{root: path, keyLen: keyLen, fs: fs, metrics: reg}, nil
}

func (s *Store) nextTempID() int64 {
	return atomic.AddInt64(&s.counter, 1)
}

// Put stages src and atomically installs it under key, overwriting any
// entry already stored there. newHash is unused for deduplication (manual
// references aren't content-addressed); when non-nil it is run over the
// stream as it is staged, but its sum is neither stored nor returned.
func (s *Store) Put(key Key, newHash func() hash.Hash, src io.Reader) (*Entry, error) {
	if key.raw == "" || len(key.raw) != s.keyLen {
		return nil, errors.New("manualref: key length does not match store")
	}

	tempName := fmt.Sprintf("incoming-%d.tmp", s.nextTempID())
	tempPath := filepath.Join(s.root, tempName)

	fh, err := s.fs.CreateExclusive(tempPath, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "stage manual-reference entry")
	}

	var hasher hash.Hash
	var writer io.Writer = fh
	if newHash != nil {
		hasher = newHash()
		writer = io.MultiWriter(fh, hasher)
	}

	size, copyErr := system.Copy(writer, src)
	closeErr := fh.Close()
	if copyErr != nil || closeErr != nil {
		if rerr := s.fs.DeleteIfExists(tempPath); rerr != nil {
			log.WithFields(log.Fields{"path": tempPath, "error": rerr}).
				Warn("failed to clean up manual-reference temp file after error")
		}
		if copyErr != nil {
			return nil, errors.Wrap(copyErr, "stage manual-reference entry")
		}
		return nil, errors.Wrap(closeErr, "close manual-reference temp file")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if rerr := s.fs.DeleteIfExists(tempPath); rerr != nil {
			log.WithFields(log.Fields{"path": tempPath, "error": rerr}).
				Warn("failed to clean up manual-reference temp file on closed store")
		}
		return nil, errors.New("manualref: store is closed")
	}

	parentDir, err := s.fs.Join(s.root, key.parentDir())
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(parentDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create manual-reference parent directory")
	}

	destPath, err := s.fs.Join(parentDir, key.fileName())
	if err != nil {
		return nil, err
	}
	if err := s.fs.Rename(tempPath, destPath); err != nil {
		return nil, errors.Wrap(err, "install manual-reference entry")
	}

	return &Entry{key: key, size: size, path: destPath}, nil
}

// Get resolves key, or returns (nil, nil) if nothing is stored under it.
func (s *Store) Get(key Key) (*Entry, error) {
	path, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("manualref: store is closed")
	}

	exists, err := s.fs.Exists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	size, err := s.fs.Size(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat manual-reference entry")
	}
	return &Entry{key: key, size: size, path: path}, nil
}

// Delete removes key, reporting whether anything was actually removed.
func (s *Store) Delete(key Key) (bool, error) {
	path, err := s.entryPath(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errors.New("manualref: store is closed")
	}

	exists, err := s.fs.Exists(path)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := s.fs.DeleteIfExists(path); err != nil {
		return false, errors.Wrap(err, "delete manual-reference entry")
	}
	parentDir := filepath.Dir(path)
	if err := s.fs.RemoveEmptyDir(parentDir); err != nil {
		return true, errors.Wrap(err, "prune manual-reference parent directory")
	}
	return true, nil
}

func (s *Store) entryPath(key Key) (string, error) {
	if key.raw == "" || len(key.raw) != s.keyLen {
		return "", errors.New("manualref: key length does not match store")
	}
	parentDir, err := s.fs.Join(s.root, key.parentDir())
	if err != nil {
		return "", err
	}
	return s.fs.Join(parentDir, key.fileName())
}

// Close marks the store closed. Unlike oci/cas.Store, manual-reference
// stores hold no persistent lock file of their own (callers typically open
// one alongside a cas.Store and rely on that store's lock for exclusivity).
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
