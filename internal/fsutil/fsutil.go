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

// Package fsutil wraps the handful of filesystem primitives the CAS engine
// needs: existence checks, directory creation and listing, atomic rename,
// recursive tree deletion, and "delete directory if empty". Every filesystem
// operation (everything except the pure path computation in Join) bumps a
// named counter in a metrics.Registry.
package fsutil

import (
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/cyphar/blobvault/metrics"
)

// FS wraps filesystem operations rooted at an arbitrary path, counting each
// call against the given metrics registry.
type FS struct {
	metrics *metrics.Registry
}

// New returns an FS that records its operations in reg.
func New(reg *metrics.Registry) *FS {
	return &FS{metrics: reg}
}

// Join securely joins a path element (e.g. a two-hex-digit subdirectory
// name, or a "<hex>.blob" filename) onto root, guaranteeing the result
// cannot escape root even if elem were ever attacker-controlled.
func (fs *FS) Join(root, elem string) (string, error) {
	path, err := securejoin.SecureJoin(root, elem)
	return path, errors.Wrapf(err, "securejoin %q onto %q", elem, root)
}

// Exists reports whether path exists (as any file type).
func (fs *FS) Exists(path string) (bool, error) {
	fs.metrics.Inc(metrics.OpExists)
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %q", path)
}

// MkdirAll ensures path (and all missing parents) exists as a directory.
func (fs *FS) MkdirAll(path string, perm os.FileMode) error {
	fs.metrics.Inc(metrics.OpCreateDirectory)
	return errors.Wrapf(os.MkdirAll(path, perm), "mkdir %q", path)
}

// List reads and returns all entries of a directory.
func (fs *FS) List(path string) ([]os.DirEntry, error) {
	fs.metrics.Inc(metrics.OpListDirectory)
	entries, err := os.ReadDir(path)
	return entries, errors.Wrapf(err, "readdir %q", path)
}

// Rename atomically moves oldpath to newpath. Both paths must be on the
// same filesystem for the atomicity guarantee to hold; the store only ever
// calls this within a single root (incoming/ and blobs/ are siblings), so
// that invariant always holds in practice.
func (fs *FS) Rename(oldpath, newpath string) error {
	fs.metrics.Inc(metrics.OpAtomicMove)
	return errors.Wrapf(os.Rename(oldpath, newpath), "rename %q -> %q", oldpath, newpath)
}

// DeleteIfExists removes path if it exists; it is not an error if it
// doesn't (the caller only cares that it's gone afterwards).
func (fs *FS) DeleteIfExists(path string) error {
	fs.metrics.Inc(metrics.OpDeleteIfExists)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %q", path)
	}
	return nil
}

// RemoveAll recursively deletes the tree rooted at path. It is not an
// error if path doesn't exist.
func (fs *FS) RemoveAll(path string) error {
	fs.metrics.Inc(metrics.OpDeleteTree)
	return errors.Wrapf(os.RemoveAll(path), "removeall %q", path)
}

// RemoveEmptyDir deletes path if, and only if, it is an empty directory.
// It is a silent no-op if the directory is non-empty or doesn't exist.
func (fs *FS) RemoveEmptyDir(path string) error {
	fs.metrics.Inc(metrics.OpRemoveEmptyDir)
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST) {
		// Directory still has entries; leave it alone.
		return nil
	}
	return errors.Wrapf(err, "rmdir %q", path)
}

// CreateTemp creates a new, uniquely-named file inside dir with the given
// name pattern (see os.CreateTemp), counting it as an "open output" op.
func (fs *FS) CreateTemp(dir, pattern string) (*os.File, error) {
	fs.metrics.Inc(metrics.OpOpenOutput)
	fh, err := os.CreateTemp(dir, pattern)
	return fh, errors.Wrapf(err, "create temp in %q", dir)
}

// CreateExclusive opens path for writing, failing if it already exists
// (O_EXCL). Used for the store's deterministically-named "incoming-<n>.tmp"
// staging files, where the name is already guaranteed unique by a counter
// and CreateTemp's randomized-suffix behavior would be the wrong fit.
func (fs *FS) CreateExclusive(path string, perm os.FileMode) (*os.File, error) {
	fs.metrics.Inc(metrics.OpOpenOutput)
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	return fh, errors.Wrapf(err, "create %q", path)
}

// OpenExisting opens an already-existing file for reading and writing,
// without creating or truncating it. Used by Store.Clean to probe whether a
// leftover incoming-*.tmp file is still held by a live writer.
func (fs *FS) OpenExisting(path string) (*os.File, error) {
	fs.metrics.Inc(metrics.OpOpenExisting)
	fh, err := os.OpenFile(path, os.O_RDWR, 0)
	return fh, errors.Wrapf(err, "open %q", path)
}

// Size stats path and returns its size in bytes.
func (fs *FS) Size(path string) (int64, error) {
	fs.metrics.Inc(metrics.OpSize)
	fi, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %q", path)
	}
	return fi.Size(), nil
}
