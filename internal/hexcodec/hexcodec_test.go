package hexcodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphar/blobvault/internal/hexcodec"
)

func TestDecodeValid(t *testing.T) {
	b, err := hexcodec.Decode("deadbeef", 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)
}

func TestDecodeUppercaseNormalizes(t *testing.T) {
	b, err := hexcodec.Decode("DEADBEEF", 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)
}

func TestDecodeRejects(t *testing.T) {
	for _, test := range []struct {
		name string
		s    string
		n    int
	}{
		{"Empty", "", 4},
		{"OddLength", "abc", 2},
		{"OneShort", "deadbe", 4},
		{"OneLong", "deadbeef00", 4},
		{"NonHexChar", "deadbeeg", 4},
		{"LeadingSpace", " deadbeef", 4},
		{"TrailingSpace", "deadbeef ", 4},
		{"InnerSpace", "dead beef", 4},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := hexcodec.Decode(test.s, test.n)
			assert.Error(t, err)
		})
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "deadbeef", hexcodec.Encode([]byte{0xde, 0xad, 0xbe, 0xef}))
}

func TestIsValidLowercase(t *testing.T) {
	assert.True(t, hexcodec.IsValidLowercase("ab", 1))
	assert.False(t, hexcodec.IsValidLowercase("AB", 1))
	assert.False(t, hexcodec.IsValidLowercase("ab", 2))
	assert.False(t, hexcodec.IsValidLowercase("zz", 1))
	assert.False(t, hexcodec.IsValidLowercase(" a", 1))
}

func TestIsValidAcceptsUppercase(t *testing.T) {
	assert.True(t, hexcodec.IsValid("AB", 1))
	assert.True(t, hexcodec.IsValid("ab", 1))
	assert.False(t, hexcodec.IsValid("ab", 2))
}
