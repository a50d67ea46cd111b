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

package funchelpers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyErrorKeepsNil(t *testing.T) {
	fn := func() (err error) {
		defer VerifyError(&err, func() error { return nil })
		return nil
	}
	assert.NoError(t, fn())
}

func TestVerifyErrorSurfacesCleanupFailure(t *testing.T) {
	cleanupErr := errors.New("cleanup failed")
	fn := func() (err error) {
		defer VerifyError(&err, func() error { return cleanupErr })
		return nil
	}
	assert.ErrorIs(t, fn(), cleanupErr)
}

func TestVerifyErrorBodyErrorWins(t *testing.T) {
	bodyErr := errors.New("body failed")
	cleanupErr := errors.New("cleanup failed")
	fn := func() (err error) {
		defer VerifyError(&err, func() error { return cleanupErr })
		return bodyErr
	}
	assert.ErrorIs(t, fn(), bodyErr)
}

func TestVerifyErrorEveryCleanupRunsFirstErrorKept(t *testing.T) {
	first := errors.New("first cleanup error")
	later := errors.New("later cleanup error")

	var calls int
	fn := func() (err error) {
		// Defers run in reverse declaration order, so the cleanup declared
		// last executes first; "first" here means first to execute.
		defer VerifyError(&err, func() error { calls++; return later })
		defer VerifyError(&err, func() error { calls++; return nil })
		defer VerifyError(&err, func() error { calls++; return first })
		return nil
	}

	err := fn()
	require.Equal(t, 3, calls, "every cleanup must run even after a failure")
	assert.ErrorIs(t, err, first)
}

type errCloser struct{ err error }

func (c errCloser) Close() error { return c.err }

func TestVerifyClose(t *testing.T) {
	closeErr := errors.New("close failed")
	fn := func() (err error) {
		defer VerifyClose(&err, errCloser{err: closeErr})
		return nil
	}
	assert.ErrorIs(t, fn(), closeErr)

	fnOK := func() (err error) {
		defer VerifyClose(&err, errCloser{})
		return nil
	}
	assert.NoError(t, fnOK())
}
