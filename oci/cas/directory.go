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
	"path/filepath"
	"strings"

	"github.com/apex/log"

	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/internal/hexcodec"
	"github.com/cyphar/blobvault/metrics"
)

// blobDirectory is one node of the self-balancing, variable-depth directory
// hierarchy keyed by hex prefix. Every instance is scoped to a
// single on-disk directory and caches its listing lazily; after a startup
// scan, every previously-constructed node must be discarded and replaced by
// a fresh one (see deepScanAndDedupe).
type blobDirectory struct {
	fs        *fsutil.FS
	metrics   *metrics.Registry
	path      string
	prefix    string
	digestLen int
	maxPerDir int

	loaded  bool
	blobs   map[string]struct{} // filenames, e.g. "<hex>.blob"
	subdirs map[string]struct{} // two-lowercase-hex-digit directory names
}

func newBlobDirectory(fs *fsutil.FS, reg *metrics.Registry, path, prefix string, digestLen, maxPerDir int) *blobDirectory {
	return &blobDirectory{
		fs:        fs,
		metrics:   reg,
		path:      path,
		prefix:    prefix,
		digestLen: digestLen,
		maxPerDir: maxPerDir,
	}
}

func (d *blobDirectory) depth() int {
	return len(d.prefix) / 2
}

// blobNamePattern reports whether name matches this directory's required
// blob filename shape: prefix + 2*(D-depth) lowercase hex chars + ".blob".
func (d *blobDirectory) blobNamePattern(name string) bool {
	const ext = ".blob"
	if !strings.HasSuffix(name, ext) {
		return false
	}
	base := strings.TrimSuffix(name, ext)
	if !strings.HasPrefix(base, d.prefix) {
		return false
	}
	rest := base[len(d.prefix):]
	remaining := d.digestLen - d.depth()
	return hexcodec.IsValidLowercase(rest, remaining)
}

// readDir lazily lists the directory once: a
// regular file matching the blob pattern at this depth is a blob; a
// directory named with exactly two lowercase hex digits is a subdir;
// anything else is silently ignored (not deleted, not counted).
func (d *blobDirectory) readDir() error {
	if d.loaded {
		return nil
	}
	entries, err := d.fs.List(d.path)
	if err != nil {
		return NewError(KindIoFailure, "list blob directory", err)
	}

	blobs := map[string]struct{}{}
	subdirs := map[string]struct{}{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.Type().IsRegular() && d.blobNamePattern(name):
			blobs[name] = struct{}{}
		case e.IsDir() && hexcodec.IsValidLowercase(name, 1):
			subdirs[name] = struct{}{}
		}
	}

	d.blobs = blobs
	d.subdirs = subdirs
	d.loaded = true
	return nil
}

func (d *blobDirectory) isFull() bool {
	return len(d.blobs) >= d.maxPerDir
}

// isTerminal reports whether this directory is at the deepest level the
// hierarchy can reach: with digestLen bytes of digest, there is no byte
// left to key a subdirectory on beyond depth digestLen-1, so that level
// must always accept placement regardless of isFull.
func (d *blobDirectory) isTerminal() bool {
	return d.depth() >= d.digestLen-1
}

func (d *blobDirectory) blobName(ref Reference) string {
	return ref.ID() + ".blob"
}

func (d *blobDirectory) resolve(ref Reference) (string, error) {
	return d.fs.Join(d.path, d.blobName(ref))
}

// descend returns the child directory keyed by the hex form of this
// digest's byte at the current depth. If create is false and the child
// directory doesn't exist on disk, it returns (nil, nil).
func (d *blobDirectory) descend(ref Reference, create bool) (*blobDirectory, error) {
	if d.depth() >= d.digestLen {
		return nil, nil
	}
	childName := hexcodec.Encode([]byte{ref.byteAt(d.depth())})
	childPath, err := d.fs.Join(d.path, childName)
	if err != nil {
		return nil, NewError(KindIoFailure, "resolve child directory", err)
	}

	if create {
		if err := d.fs.MkdirAll(childPath, 0o755); err != nil {
			return nil, NewError(KindIoFailure, "create child directory", err)
		}
		if d.subdirs != nil {
			d.subdirs[childName] = struct{}{}
		}
	} else {
		exists, err := d.fs.Exists(childPath)
		if err != nil {
			return nil, NewError(KindIoFailure, "check child directory", err)
		}
		if !exists {
			return nil, nil
		}
	}

	return newBlobDirectory(d.fs, d.metrics, childPath, d.prefix+childName, d.digestLen, d.maxPerDir), nil
}

// add places ib at the shallowest non-full directory, removing any deeper
// copy the placement just shadowed.
func (d *blobDirectory) add(ref Reference, ib *incomingBlob) (*Blob, error) {
	if err := d.readDir(); err != nil {
		return nil, err
	}

	name := d.blobName(ref)
	fullPath, err := d.resolve(ref)
	if err != nil {
		return nil, err
	}

	if _, exists := d.blobs[name]; exists {
		// Idempotent add: drop the incoming temp file and hand back a
		// handle to the blob that is already there.
		if err := ib.discard(); err != nil {
			return nil, err
		}
		size, err := d.fs.Size(fullPath)
		if err != nil {
			return nil, NewError(KindIoFailure, "stat existing blob", err)
		}
		return &Blob{ref: ref, size: size, path: fullPath}, nil
	}

	if !d.isFull() || d.isTerminal() {
		if err := ib.moveTo(fullPath); err != nil {
			return nil, err
		}
		d.blobs[name] = struct{}{}

		size, err := d.fs.Size(fullPath)
		if err != nil {
			// The move already succeeded; counters may undercount this
			// blob's bytes, but the blob itself is safely in place.
			log.WithFields(log.Fields{"path": fullPath, "error": err}).
				Warn("stat of freshly moved blob failed; byteCount may drift")
			size = ib.size
		}
		d.metrics.Inc(metrics.BlobCount)
		d.metrics.IncBy(metrics.ByteCount, size)

		handle := &Blob{ref: ref, size: size, path: fullPath}

		// Promotion-induced cleanup: a vacancy here may have let this add
		// land shallower than a duplicate left behind by an earlier full
		// directory. Heal it immediately (the online counterpart of
		// deepScanAndDedupe's duplicate repair).
		if !d.isTerminal() {
			child, err := d.descend(ref, false)
			if err != nil {
				return nil, err
			}
			if child != nil {
				if _, err := child.delete(ref); err != nil {
					return nil, err
				}
			}
		}

		return handle, nil
	}

	child, err := d.descend(ref, true)
	if err != nil {
		return nil, err
	}
	return child.add(ref, ib)
}

// get resolves ref to a handle, recursing into the hierarchy without
// creating anything.
func (d *blobDirectory) get(ref Reference) (*Blob, error) {
	if err := d.readDir(); err != nil {
		return nil, err
	}

	name := d.blobName(ref)
	if _, exists := d.blobs[name]; exists {
		fullPath, err := d.resolve(ref)
		if err != nil {
			return nil, err
		}
		size, err := d.fs.Size(fullPath)
		if err != nil {
			return nil, NewError(KindIoFailure, "stat blob", err)
		}
		return &Blob{ref: ref, size: size, path: fullPath}, nil
	}

	child, err := d.descend(ref, false)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, nil
	}
	return child.get(ref)
}

// delete removes ref from this directory (if present) and recurses into
// the child, OR-ing the two results together: true iff any level actually
// removed a file. A non-root directory left empty by the removal is
// pruned.
func (d *blobDirectory) delete(ref Reference) (bool, error) {
	if err := d.readDir(); err != nil {
		return false, err
	}

	removedHere := false
	name := d.blobName(ref)
	if _, exists := d.blobs[name]; exists {
		fullPath, err := d.resolve(ref)
		if err != nil {
			return false, err
		}

		size, statErr := d.fs.Size(fullPath)
		if statErr != nil {
			log.WithFields(log.Fields{"path": fullPath, "error": statErr}).
				Warn("stat before delete failed; byteCount may drift")
			size = 0
		}

		if err := d.fs.DeleteIfExists(fullPath); err != nil {
			return false, NewError(KindIoFailure, "delete blob", err)
		}

		delete(d.blobs, name)
		d.metrics.Dec(metrics.BlobCount)
		d.metrics.DecBy(metrics.ByteCount, size)
		removedHere = true

		if d.depth() > 0 && len(d.blobs) == 0 && len(d.subdirs) == 0 {
			if err := d.fs.RemoveEmptyDir(d.path); err != nil {
				return removedHere, NewError(KindIoFailure, "prune empty directory", err)
			}
		}
	}

	child, err := d.descend(ref, false)
	if err != nil {
		return removedHere, err
	}
	if child == nil {
		return removedHere, nil
	}

	childRemoved, err := child.delete(ref)
	if err != nil {
		return removedHere, err
	}
	if childRemoved && d.depth() > 0 {
		// The child may have just pruned itself; re-check whether that
		// leaves this directory empty too (e.g. the child was the only
		// subdir and it just removed its last blob).
		stillExists, err := d.fs.Exists(filepath.Join(d.path, d.childName(ref)))
		if err == nil && !stillExists {
			delete(d.subdirs, d.childName(ref))
			if len(d.blobs) == 0 && len(d.subdirs) == 0 {
				if err := d.fs.RemoveEmptyDir(d.path); err != nil {
					return removedHere || childRemoved, NewError(KindIoFailure, "prune empty directory", err)
				}
			}
		}
	}

	return removedHere || childRemoved, nil
}

func (d *blobDirectory) childName(ref Reference) string {
	return hexcodec.Encode([]byte{ref.byteAt(d.depth())})
}
