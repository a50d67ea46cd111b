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

	"github.com/cyphar/blobvault/internal/assert"
	"github.com/cyphar/blobvault/internal/fsutil"
	"github.com/cyphar/blobvault/internal/hexcodec"
	"github.com/cyphar/blobvault/metrics"
)

// chainedSet is a parent-linked set used by deepScanAndDedupe to answer
// exactly one question per directory level: "has any ancestor (or this
// directory itself) already placed this blob ID?" It deliberately does not
// support removal or merging -- the scan only ever needs contains-in-chain
// and insert-into-self.
type chainedSet struct {
	parent *chainedSet
	items  map[string]struct{}
}

func newChainedSet(parent *chainedSet) *chainedSet {
	return &chainedSet{parent: parent, items: map[string]struct{}{}}
}

func (s *chainedSet) contains(id string) bool {
	for c := s; c != nil; c = c.parent {
		if _, ok := c.items[id]; ok {
			return true
		}
	}
	return false
}

func (s *chainedSet) insert(id string) {
	assert.Assert(s.items != nil, "chainedSet used before construction")
	s.items[id] = struct{}{}
}

// deepScanAndDedupe walks the whole blob hierarchy once at store startup. It
// recomputes blobCount and byteCount from what's actually on disk (rather
// than trusting any persisted counter), heals any duplicate left behind
// by a crash between a promotion-cleanup's two steps (a shallower and a
// deeper copy of the same blob both present -- the deeper one loses), and
// prunes directories that scanning finds empty.
//
// It must run before the store serves any request, and every blobDirectory
// constructed before the scan must be discarded afterwards: the scan
// mutates the tree out from under any cached listing.
func deepScanAndDedupe(fs *fsutil.FS, reg *metrics.Registry, rootPath string, digestLen int) error {
	blobCount, byteCount, _, err := scanDir(fs, reg, rootPath, "", digestLen, nil)
	if err != nil {
		return err
	}
	reg.Set(metrics.BlobCount, blobCount)
	reg.Set(metrics.ByteCount, byteCount)
	return nil
}

// scanDir scans one directory, recursing into subdirectories before
// returning. seen is the chainedSet rooted at this directory's parent; a
// blob ID found in seen (i.e. placed by some ancestor) is a duplicate and is
// deleted rather than counted. It returns the surviving blob count and byte
// total for this subtree, and whether this directory still has any content
// (blobs of its own, or a subdirectory that itself survived pruning).
func scanDir(fs *fsutil.FS, reg *metrics.Registry, path, prefix string, digestLen int, parentSeen *chainedSet) (int64, int64, bool, error) {
	entries, err := fs.List(path)
	if err != nil {
		return 0, 0, false, NewError(KindIoFailure, "scan blob directory", err)
	}

	seen := newChainedSet(parentSeen)
	remaining := digestLen - len(prefix)/2

	var blobCount, byteCount int64
	hasOwnBlobs := false

	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() {
			continue
		}
		id, ok := blobFileID(name, prefix, remaining)
		if !ok {
			continue
		}

		fullPath, err := fs.Join(path, name)
		if err != nil {
			return 0, 0, false, err
		}

		if parentSeen != nil && parentSeen.contains(id) {
			// An ancestor directory already holds this blob: this copy is
			// a leftover from a promotion whose cleanup step didn't run
			// (e.g. a crash between the two).
			log.WithFields(log.Fields{"id": id, "path": fullPath}).
				Warn("removing duplicate blob found deeper than an existing copy")
			if err := fs.DeleteIfExists(fullPath); err != nil {
				// A failed removal leaves the duplicate in place until the
				// next scan succeeds; the shallower copy stays
				// authoritative, so the scan itself carries on.
				log.WithFields(log.Fields{"id": id, "path": fullPath, "error": err}).
					Warn("failed to remove duplicate blob; deeper copy left in place")
				hasOwnBlobs = true
			}
			continue
		}

		seen.insert(id)
		size, err := fs.Size(fullPath)
		if err != nil {
			return 0, 0, false, NewError(KindIoFailure, "stat blob during scan", err)
		}
		blobCount++
		byteCount += size
		hasOwnBlobs = true
	}

	hasSurvivingChildren := false
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !hexcodec.IsValidLowercase(name, 1) {
			continue
		}
		childPath, err := fs.Join(path, name)
		if err != nil {
			return 0, 0, false, err
		}

		childBlobs, childBytes, childSurvives, err := scanDir(fs, reg, childPath, prefix+name, digestLen, seen)
		if err != nil {
			return 0, 0, false, err
		}
		blobCount += childBlobs
		byteCount += childBytes

		if childSurvives {
			hasSurvivingChildren = true
		} else if err := fs.RemoveEmptyDir(childPath); err != nil {
			return 0, 0, false, NewError(KindIoFailure, "prune empty directory during scan", err)
		}
	}

	return blobCount, byteCount, hasOwnBlobs || hasSurvivingChildren, nil
}

// blobFileID reports whether name is a valid blob filename at this depth
// (prefix + exactly 2*remaining lowercase hex chars + ".blob") and, if so,
// returns its full hex ID (which is simply its basename: the prefix is
// already the ID's leading characters by construction).
func blobFileID(name, prefix string, remaining int) (string, bool) {
	const ext = ".blob"
	if !strings.HasSuffix(name, ext) {
		return "", false
	}
	base := strings.TrimSuffix(name, ext)
	if !strings.HasPrefix(base, prefix) {
		return "", false
	}
	if !hexcodec.IsValidLowercase(base[len(prefix):], remaining) {
		return "", false
	}
	return base, true
}
