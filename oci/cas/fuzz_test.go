package cas_test

import (
	"testing"

	fuzzheaders "github.com/AdaLogics/go-fuzz-headers"

	"github.com/cyphar/blobvault/internal/hexcodec"
	"github.com/cyphar/blobvault/oci/cas"
)

// FuzzReferenceFromHex feeds structured, consumer-derived strings and
// lengths into ReferenceFromHex the way FuzzGenerateLayer in oci/layer
// derives structured filenames and directory names from raw fuzz bytes
// via a fuzzheaders.Consumer, rather than treating the corpus as one flat
// byte slice. Only well-formedness is asserted: ReferenceFromHex must never
// panic, must reject only with KindBadIdentifier, and any Reference it does
// accept must have the requested length and an ID() of lowercase hex.
func FuzzReferenceFromHex(f *testing.F) {
	f.Add("deadbeef", 4)
	f.Add("e19c1283c925b3206685ff522acfe3e6", 16)
	f.Add("", 0)
	f.Add("zz", 1)

	f.Fuzz(func(t *testing.T, data string, lengthSeed int) {
		consumer := fuzzheaders.NewConsumer([]byte(data))
		s, err := consumer.GetString()
		if err != nil {
			t.Skip()
		}
		length := lengthSeed % 65
		if length < 0 {
			length = -length
		}

		ref, err := cas.ReferenceFromHex(s, length)
		if err != nil {
			if !cas.IsKind(err, cas.KindBadIdentifier) {
				t.Fatalf("ReferenceFromHex(%q, %d): unexpected error kind: %v", s, length, err)
			}
			return
		}
		if ref.Len() != length {
			t.Fatalf("ReferenceFromHex(%q, %d) = ref of length %d", s, length, ref.Len())
		}
		if id := ref.ID(); !hexcodec.IsValidLowercase(id, length) {
			t.Fatalf("ReferenceFromHex(%q, %d).ID() = %q is not valid lowercase hex", s, length, id)
		}
	})
}

// FuzzHexcodecDecode exercises the lower-level codec directly on the raw fuzz
// string, confirming Decode never panics and every successful decode yields
// n bytes that re-Encode to 2n lowercase hex characters.
func FuzzHexcodecDecode(f *testing.F) {
	f.Add("deadbeef", 4)
	f.Add("DEADBEEF", 4)
	f.Add("not hex!", 4)

	f.Fuzz(func(t *testing.T, s string, n int) {
		if n < 0 || n > 1<<16 {
			t.Skip()
		}
		b, err := hexcodec.Decode(s, n)
		if err != nil {
			return
		}
		if len(b) != n {
			t.Fatalf("Decode(%q, %d) returned %d bytes", s, n, len(b))
		}
		if got := hexcodec.Encode(b); !hexcodec.IsValidLowercase(got, n) {
			t.Fatalf("Encode(Decode(%q)) = %q is not valid lowercase hex", s, got)
		}
	})
}
