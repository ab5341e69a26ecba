package crypt

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// NIST SP 800-38A F.2.1/F.2.2, AES-128-CBC.
func TestAESCBCNoPaddingKnownAnswer(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plain := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")
	wantCipher := mustHex(t, "7649abac8119b246cee98e9b12e9197d")

	got, err := aesCBCNoPaddingEncrypt(key, iv, plain)
	require.NoError(t, err)
	require.Equal(t, wantCipher, got)

	back, err := aesCBCNoPaddingDecrypt(key, iv, got)
	require.NoError(t, err)
	require.Equal(t, plain, back)
}

func TestAESCBCRoundtrip(t *testing.T) {
	key := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	data := []byte("a PDF object's string or stream content, of arbitrary length")

	encrypted, err := aesCBCEncrypt(key, data)
	require.NoError(t, err)
	decrypted, err := aesCBCDecrypt(key, encrypted)
	require.NoError(t, err)
	require.Equal(t, data, decrypted)
}

func TestAESECBBlockRoundtrip(t *testing.T) {
	key := mustHex(t, "101112131415161718191a1b1c1d1e1f202122232425262728292a2b2c2d2e2f")
	block := make([]byte, 16)
	copy(block, "perms-plaintext!")

	encrypted := aesECBEncryptBlock(key, block)
	decrypted := aesECBDecryptBlock(key, encrypted)
	require.Equal(t, block, decrypted)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
