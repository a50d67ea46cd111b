package cas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphar/blobvault/oci/cas"
)

func TestReferenceFromHexRoundTrip(t *testing.T) {
	const hexID = "c7be1ed902fb8dd4d48997c6452f5d7e509fbcdbe2808b16bcf4edce4c07d14e"
	ref, err := cas.ReferenceFromHex(hexID, 32)
	require.NoError(t, err)
	assert.Equal(t, hexID, ref.ID())
	assert.Equal(t, 32, ref.Len())
	assert.True(t, ref.Valid())
}

func TestReferenceFromHexNormalizesUppercase(t *testing.T) {
	ref, err := cas.ReferenceFromHex("E19C1283C925B3206685FF522ACFE3E6", 16)
	require.NoError(t, err)
	assert.Equal(t, "e19c1283c925b3206685ff522acfe3e6", ref.ID())
}

func TestReferenceFromHexRejectsWrongLength(t *testing.T) {
	// MD5-length identifier handed to a SHA-256-configured reference length.
	_, err := cas.ReferenceFromHex("e19c1283c925b3206685ff522acfe3e6", 32)
	require.Error(t, err)
	assert.True(t, cas.IsKind(err, cas.KindBadIdentifier))
}

func TestReferenceFromHexRejectsBadChars(t *testing.T) {
	for _, s := range []string{
		"",
		"zz9c1283c925b3206685ff522acfe3e6",
		"e19c1283c925b3206685ff522acfe3e",
		"e19c1283c925b3206685ff522acfe3e600",
		" 19c1283c925b3206685ff522acfe3e6",
	} {
		_, err := cas.ReferenceFromHex(s, 16)
		assert.Errorf(t, err, "expected error for %q", s)
		assert.True(t, cas.IsKind(err, cas.KindBadIdentifier))
	}
}

func TestReferenceFromBytesRejectsWrongLength(t *testing.T) {
	_, err := cas.ReferenceFromBytes([]byte{1, 2, 3}, 16)
	require.Error(t, err)
	assert.True(t, cas.IsKind(err, cas.KindBadIdentifier))
}

func TestReferenceFromBytesCopiesInput(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	ref, err := cas.ReferenceFromBytes(b, 4)
	require.NoError(t, err)
	b[0] = 0xff
	assert.Equal(t, []byte{1, 2, 3, 4}, ref.Digest())
}

func TestReferenceEquality(t *testing.T) {
	a, err := cas.ReferenceFromHex("deadbeef", 4)
	require.NoError(t, err)
	b, err := cas.ReferenceFromHex("DEADBEEF", 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	m := map[cas.Reference]int{a: 1}
	assert.Equal(t, 1, m[b])
}
