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

package assert_test

import (
	"errors"
	"testing"

	testassert "github.com/stretchr/testify/assert"

	"github.com/cyphar/blobvault/internal/assert"
)

func TestAssertTrueDoesNotPanic(t *testing.T) {
	for _, test := range []struct {
		name string
		val  any
	}{
		{"String", "directory cache out of sync"},
		{"Int", 42},
		{"Error", errors.New("boom")},
		{"Nil", nil},
	} {
		t.Run(test.name, func(t *testing.T) {
			testassert.NotPanicsf(t, func() {
				assert.Assert(true, test.val)
			}, "Assert(true) with value %v (%T)", test.val, test.val)
		})
	}

	testassert.NotPanics(t, func() {
		assert.Assertf(true, "unreached %d", 1)
	})
}

func TestAssertFalsePanicsWithValue(t *testing.T) {
	for _, test := range []struct {
		name string
		val  any
	}{
		{"String", "chained set used before construction"},
		{"Int", 42},
		{"Error", errors.New("boom")},
	} {
		t.Run(test.name, func(t *testing.T) {
			testassert.PanicsWithValuef(t, test.val, func() {
				assert.Assert(false, test.val)
			}, "Assert(false) with value %v (%T)", test.val, test.val)
		})
	}

	t.Run("Nil", func(t *testing.T) {
		// The runtime's representation of a panic(nil) value changed in Go
		// 1.21 (and depends on GODEBUG=panicnil), so only the panic itself
		// is asserted, not the recovered value.
		testassert.Panics(t, func() {
			assert.Assert(false, nil)
		})
	})
}

func TestAssertfFormatsMessage(t *testing.T) {
	testassert.PanicsWithValue(t, "bad depth 3 for prefix \"aabb\"", func() {
		assert.Assertf(false, "bad depth %d for prefix %q", 3, "aabb")
	})
}
