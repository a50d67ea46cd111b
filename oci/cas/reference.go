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
	"github.com/cyphar/blobvault/internal/hexcodec"
)

// Reference is a validated, fixed-length blob identifier: the digest of a
// blob's content under the algorithm a particular Store was opened with.
// References from one Store are not portable to a Store configured with a
// different algorithm (their lengths may not even match). The zero value is
// not a valid Reference; always construct one via ReferenceFromHex or
// ReferenceFromBytes.
//
// Reference is comparable and hashable (it wraps an immutable string of raw
// digest bytes), so it can be used directly as a map key.
type Reference struct {
	raw string
}

// ReferenceFromHex validates s as exactly 2*length lowercase-or-uppercase
// hex characters and returns the corresponding Reference. Uppercase input
// is normalized to lowercase.
func ReferenceFromHex(s string, length int) (Reference, error) {
	b, err := hexcodec.Decode(s, length)
	if err != nil {
		return Reference{}, NewError(KindBadIdentifier, "parse reference hex", err)
	}
	return Reference{raw: string(b)}, nil
}

// ReferenceFromBytes validates b as exactly length bytes and returns the
// corresponding Reference. The slice is copied; later mutation of b does
// not affect the Reference.
func ReferenceFromBytes(b []byte, length int) (Reference, error) {
	if len(b) != length {
		return Reference{}, NewError(KindBadIdentifier, "reference must be exact digest length", nil)
	}
	cp := make([]byte, length)
	copy(cp, b)
	return Reference{raw: string(cp)}, nil
}

// ID returns the lowercase hex string form of the reference.
func (r Reference) ID() string {
	return hexcodec.Encode([]byte(r.raw))
}

// Digest returns an independent copy of the reference's raw digest bytes.
func (r Reference) Digest() []byte {
	b := make([]byte, len(r.raw))
	copy(b, r.raw)
	return b
}

// Len returns the digest length in bytes.
func (r Reference) Len() int {
	return len(r.raw)
}

// Valid reports whether r was produced by ReferenceFromHex/ReferenceFromBytes
// (as opposed to being the zero value).
func (r Reference) Valid() bool {
	return r.raw != ""
}

// byteAt returns the raw digest byte at position i, used by the directory
// hierarchy's descent rule (the next path element is hex(digest[depth])).
func (r Reference) byteAt(i int) byte {
	return r.raw[i]
}

func (r Reference) String() string {
	return r.ID()
}
