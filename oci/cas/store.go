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

// Package cas implements a content-addressable, local-disk blob store: a
// self-balancing hex-prefix directory hierarchy keyed by digest, with
// deduplication, atomic insertion, and crash-safe deletion.
package cas

import (
	"hash"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	digest "github.com/opencontainers/go-digest"

	"github.com/cyphar/blobvault/digestalgo"
	"github.com/cyphar/blobvault/internal/funchelpers"
	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/metrics"
	syslock "github.com/cyphar/blobvault/pkg/system"
)

const (
	blobsDirName    = "blobs"
	incomingDirName = "incoming"
	lockFileName    = "lock"
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o600
)

// Store is a single content-addressable blob store rooted at a directory on
// disk. All structural reads and mutations (Add, Get, Delete) are
// serialized through a single in-process lock; only the staging write that
// happens before a digest is known runs unlocked (see newIncomingBlob). A
// process-exclusive advisory flock on the store root prevents two Store
// instances -- in this process or another -- from opening the same path at
// once.
type Store struct {
	root      string
	blobsRoot string
	incoming  string

	algorithm digestalgo.Algorithm
	digestLen int
	newHash   func() hash.Hash

	fs      *fsutil.FS
	metrics *metrics.Registry
	lock    *os.File

	mu      sync.Mutex
	tree    *blobDirectory
	counter int64
	closed  bool
}

// Open opens (creating if necessary) a blob store rooted at path, using
// algorithm to compute references and maxPerDir as the balancing threshold
// for the directory hierarchy. Opening scans the whole tree to recompute
// blobCount/byteCount and heal any crash-induced duplicate (deepScanAndDedupe),
// so it is proportional to the number of blobs already stored.
func Open(path string, algorithm digestalgo.Algorithm, maxPerDir int) (*Store, error) {
	if maxPerDir <= 0 {
		return nil, NewError(KindInvalidArgument, "maxPerDir must be positive", nil)
	}
	digestLen, err := digestalgo.Size(algorithm)
	if err != nil {
		return nil, NewError(KindUnknownAlgorithm, "open store", err)
	}
	if _, err := digestalgo.New(algorithm); err != nil {
		return nil, NewError(KindUnknownAlgorithm, "open store", err)
	}

	reg := metrics.NewRegistry()
	fs := fsutil.New(reg)

	blobsRoot := filepath.Join(path, blobsDirName)
	incomingRoot := filepath.Join(path, incomingDirName)
	for _, dir := range []string{path, blobsRoot, incomingRoot} {
		if err := fs.MkdirAll(dir, defaultDirPerm); err != nil {
			return nil, NewError(KindIoFailure, "create store layout", err)
		}
	}

	lockPath := filepath.Join(path, lockFileName)
	lockFile, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, defaultFilePerm)
	if err != nil {
		return nil, NewError(KindIoFailure, "open store lock file", err)
	}
	if err := syslock.Flock(lockFile.Fd(), true); err != nil {
		lockFile.Close() //nolint:errcheck
		return nil, NewError(KindIoFailure, "lock store (already open elsewhere?)", err)
	}

	// Staged writes from a previous, crashed process are orphans: nothing
	// references them and they were never linked into blobs/, so the whole
	// directory can simply be emptied.
	if err := fs.RemoveAll(incomingRoot); err != nil {
		return nil, NewError(KindIoFailure, "clear incoming directory", err)
	}
	if err := fs.MkdirAll(incomingRoot, defaultDirPerm); err != nil {
		return nil, NewError(KindIoFailure, "recreate incoming directory", err)
	}

	if err := deepScanAndDedupe(fs, reg, blobsRoot, digestLen); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"path":      path,
		"algorithm": algorithm.String(),
		"maxPerDir": maxPerDir,
		"blobCount": reg.Get(metrics.BlobCount),
		"byteCount": reg.Get(metrics.ByteCount),
	}).Info("opened blob store")

	s := &Store{
		root:      path,
		blobsRoot: blobsRoot,
		incoming:  incomingRoot,
		algorithm: algorithm,
		digestLen: digestLen,
		newHash:   func() hash.Hash { h, _ := digestalgo.New(algorithm); return h },
		fs:        fs,
		metrics:   reg,
		lock:      lockFile,
		tree:      newBlobDirectory(fs, reg, blobsRoot, "", digestLen, maxPerDir),
	}

	// Best-effort safety net for a caller that forgets to Close: once this
	// Store becomes unreachable, release the advisory lock and stop leaking
	// the lock file descriptor rather than holding R hostage until the
	// process exits. This is not a substitute for a real Close -- it runs at
	// an unspecified point (or not at all before process exit) and cannot
	// report an error.
	runtime.SetFinalizer(s, func(s *Store) {
		if cerr := s.Close(); cerr != nil {
			log.WithFields(log.Fields{"path": s.root, "error": cerr}).Warn("finalizer failed to close abandoned store")
		}
	})

	return s, nil
}

func (s *Store) nextIncomingID() int64 {
	return atomic.AddInt64(&s.counter, 1)
}

// Algorithm returns the digest algorithm this store was opened with.
func (s *Store) Algorithm() digestalgo.Algorithm {
	return s.algorithm
}

// DigestLength returns the fixed digest length, in bytes, of every
// Reference this store produces or accepts.
func (s *Store) DigestLength() int {
	return s.digestLen
}

// Add streams src into the store. The source is hashed and staged to disk
// before any lock is taken; only the insertion into the directory hierarchy
// (listing, rename, and any deeper-duplicate cleanup) is serialized against
// other callers.
func (s *Store) Add(src io.Reader) (*Blob, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, NewError(KindStoreClosed, "store is closed", nil)
	}

	ib, err := newIncomingBlob(s.fs, s.incoming, s.newHash, s.nextIncomingID, src)
	if err != nil {
		return nil, err
	}

	ref, err := ReferenceFromBytes(ib.digest, s.digestLen)
	if err != nil {
		if derr := ib.discard(); derr != nil {
			log.WithFields(log.Fields{"error": derr}).Warn("failed to discard orphaned incoming blob")
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if derr := ib.discard(); derr != nil {
			log.WithFields(log.Fields{"error": derr}).Warn("failed to discard incoming blob on closed store")
		}
		return nil, NewError(KindStoreClosed, "store is closed", nil)
	}

	blob, err := s.tree.add(ref, ib)
	if err != nil {
		if derr := ib.discard(); derr != nil {
			log.WithFields(log.Fields{"error": derr}).Warn("failed to discard incoming blob after failed add")
		}
	} else {
		log.WithFields(log.Fields{
			"digest": s.CanonicalDigest(ref),
			"size":   blob.Size(),
		}).Debug("added blob")
	}
	return blob, err
}

// CanonicalDigest returns ref in go-digest's canonical "algorithm:hex"
// form, for callers handing identifiers to tooling that expects prefixed
// digest strings. The store's own on-disk names and Get/Delete identifiers
// stay bare hex.
func (s *Store) CanonicalDigest(ref Reference) digest.Digest {
	return digest.NewDigestFromEncoded(s.algorithm, ref.ID())
}

// Get resolves id (a hex-encoded reference) to a handle on the blob's
// current content, or (nil, nil) if no such blob exists.
func (s *Store) Get(id string) (*Blob, error) {
	ref, err := ReferenceFromHex(id, s.digestLen)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, NewError(KindStoreClosed, "store is closed", nil)
	}
	return s.tree.get(ref)
}

// Delete removes id from the store, returning whether anything was
// actually removed. Deleting an id that was stored as a duplicate at more
// than one depth (a stray duplicate left behind by a crash) removes every
// copy.
func (s *Store) Delete(id string) (bool, error) {
	ref, err := ReferenceFromHex(id, s.digestLen)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, NewError(KindStoreClosed, "store is closed", nil)
	}
	return s.tree.delete(ref)
}

// BlobCount returns the number of distinct blobs currently stored.
func (s *Store) BlobCount() int64 {
	return s.metrics.Get(metrics.BlobCount)
}

// ByteCount returns the total size, in bytes, of every blob currently
// stored.
func (s *Store) ByteCount() int64 {
	return s.metrics.Get(metrics.ByteCount)
}

// Metrics returns a point-in-time snapshot of every counter the store
// tracks, including filesystem operation counts (for diagnostics and the
// stat command).
func (s *Store) Metrics() map[string]int64 {
	return s.metrics.Snapshot()
}

// Close recursively deletes the staging directory and releases the store's
// exclusive lock on its root directory. A failure to clean incoming/ is
// surfaced, but the store is marked closed regardless. After Close, Add,
// Get, Delete, Walk and Clean return a KindStoreClosed error (Get and Delete
// report a malformed id as KindBadIdentifier first); BlobCount, ByteCount,
// Metrics, Algorithm and DigestLength keep returning their last values.
func (s *Store) Close() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	runtime.SetFinalizer(s, nil)

	defer funchelpers.VerifyClose(&err, s.lock)
	defer funchelpers.VerifyError(&err, func() error {
		return syslock.Unflock(s.lock.Fd())
	})
	defer funchelpers.VerifyError(&err, func() error {
		if rerr := s.fs.RemoveAll(s.incoming); rerr != nil {
			return NewError(KindIoFailure, "clean incoming directory on close", rerr)
		}
		return nil
	})
	return nil
}
