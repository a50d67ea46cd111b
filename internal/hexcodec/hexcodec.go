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

// Package hexcodec implements a strict hex codec with exact length
// validation. encoding/hex already does the byte<->hex conversion; this
// package adds the "exactly N bytes" discipline the blob reference and
// directory-name validators need (Decode accepts uppercase input and
// normalizes it, Encode always emits lowercase, and IsValidLowercase admits
// lowercase only), so that callers don't each re-implement the same regexp.
package hexcodec

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// ErrBadLength is the cause wrapped when a hex string or byte slice is not
// exactly the expected length.
var ErrBadLength = errors.New("wrong length")

// ErrBadChar is the cause wrapped when a hex string contains something
// other than [0-9a-fA-F].
var ErrBadChar = errors.New("invalid hex character")

// Decode parses s as exactly n bytes of hex (2n characters). Uppercase
// input is accepted and normalized; leading/trailing whitespace, odd
// length, wrong length, and non-hex characters are all rejected.
func Decode(s string, n int) ([]byte, error) {
	if len(s) != 2*n {
		return nil, errors.Wrapf(ErrBadLength, "hex string %q must be %d characters", s, 2*n)
	}
	for i := 0; i < len(s); i++ {
		if !isHexChar(s[i]) {
			return nil, errors.Wrapf(ErrBadChar, "hex string %q", s)
		}
	}
	b, err := hex.DecodeString(lower(s))
	if err != nil {
		return nil, errors.Wrapf(ErrBadChar, "hex string %q: %v", s, err)
	}
	return b, nil
}

// Encode returns the lowercase hex encoding of b.
func Encode(b []byte) string {
	return hex.EncodeToString(b)
}

// IsValid reports whether s is exactly n bytes of hex (2n lowercase or
// uppercase hex characters, no whitespace).
func IsValid(s string, n int) bool {
	if len(s) != 2*n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexChar(s[i]) {
			return false
		}
	}
	return true
}

// IsValidLowercase reports whether s is exactly n bytes of strictly
// lowercase hex, as required of on-disk file and directory names.
func IsValidLowercase(s string, n int) bool {
	if len(s) != 2*n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func isHexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func lower(s string) string {
	buf := []byte(s)
	for i, c := range buf {
		if c >= 'A' && c <= 'F' {
			buf[i] = c - 'A' + 'a'
		}
	}
	return string(buf)
}
