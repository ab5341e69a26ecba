package crypt

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// RFC 6229 test vectors (offset 0, first 16 keystream bytes), XORed
// against an all-zero plaintext so the ciphertext equals the keystream.
func TestRC4KnownAnswer(t *testing.T) {
	cases := []struct {
		key    string
		stream string
	}{
		{"0102030405", "b2396305f03dc027ccc3524a0a1118a8"},
		{"01020304050607", "293f02d47f37c9b633f2af5285feb46b"},
		{"0102030405060708", "97ab8a1bf0afb96132f2f67258da15a8"},
		{"0102030405060708090a0b0c0d0e0f10", "9ac7cc9a609d1ef7b2932899cde41b97"},
	}
	for _, c := range cases {
		key, err := hex.DecodeString(c.key)
		require.NoError(t, err)
		want, err := hex.DecodeString(c.stream)
		require.NoError(t, err)

		got, err := rc4Crypt(key, make([]byte, len(want)))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
