package crypt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benoitkugler/pdfgraph/object"
)

func TestStandardSecurityHandlerR4RoundTrip(t *testing.T) {
	fileID := []byte("0123456789abcdef")
	sec, err := NewStandardSecurityHandler(R4, 16, CipherAESV2, fileID, -4, true, "user", "owner")
	require.NoError(t, err)

	reader := &SecurityHandler{
		Revision:        R4,
		KeyBytes:        16,
		Cipher:          CipherAESV2,
		FileID:          fileID,
		O:               sec.O,
		U:               sec.U,
		Permission:      -4,
		EncryptMetadata: true,
	}
	require.NoError(t, reader.Authenticate("user", ""))
	require.Equal(t, sec.key, reader.Key())

	reader2 := *reader
	reader2.key = nil
	require.NoError(t, reader2.Authenticate("wrong", "owner"))
	require.Equal(t, sec.key, reader2.Key())

	reader3 := *reader
	reader3.key = nil
	require.ErrorIs(t, reader3.Authenticate("wrong", "alsowrong"), ErrAuthenticationFailed)
}

func TestStandardSecurityHandlerR6RoundTrip(t *testing.T) {
	fileID := []byte("0123456789abcdef")
	sec, err := NewStandardSecurityHandler(R6, 32, CipherAESV3, fileID, -4, true, "user", "owner")
	require.NoError(t, err)

	reader := &SecurityHandler{
		Revision:        R6,
		KeyBytes:        32,
		Cipher:          CipherAESV3,
		FileID:          fileID,
		O:               sec.O,
		U:               sec.U,
		OE:              sec.OE,
		UE:              sec.UE,
		Perms:           sec.Perms,
		Permission:      -4,
		EncryptMetadata: true,
	}
	require.NoError(t, reader.Authenticate("user", ""))
	require.Equal(t, sec.key, reader.Key())

	reader2 := *reader
	reader2.key = nil
	require.NoError(t, reader2.Authenticate("", "owner"))
	require.Equal(t, sec.key, reader2.Key())
}

func TestComputePermsRandomizesTrailingBytes(t *testing.T) {
	fileKey := make([]byte, 32)
	sec := &SecurityHandler{Permission: -4, EncryptMetadata: true}

	permsA, err := sec.computePerms(fileKey)
	require.NoError(t, err)
	permsB, err := sec.computePerms(fileKey)
	require.NoError(t, err)

	plainA := aesECBDecryptBlock(fileKey, permsA)
	plainB := aesECBDecryptBlock(fileKey, permsB)

	require.Equal(t, plainA[:9], plainB[:9], "the permission bits and extension flags must stay fixed")
	require.Equal(t, []byte("adb"), plainA[9:12])
	require.NotEqual(t, plainA[12:16], plainB[12:16], "bytes 12-15 must be freshly randomized on every call")
}

func TestObjectEncryptDecryptRoundTrip(t *testing.T) {
	fileID := []byte("0123456789abcdef")
	sec, err := NewStandardSecurityHandler(R4, 16, CipherAESV2, fileID, -4, true, "", "owner")
	require.NoError(t, err)

	ref := object.Reference{Num: 7, Gen: 0}
	plain := []byte("(Hello, encrypted PDF world)")

	encrypted, err := sec.EncryptBytes(ref, plain)
	require.NoError(t, err)
	decrypted, err := sec.DecryptBytes(ref, encrypted)
	require.NoError(t, err)
	require.Equal(t, plain, decrypted)
}

func TestRC4ObjectEncryptDecryptRoundTrip(t *testing.T) {
	fileID := []byte("0123456789abcdef")
	sec, err := NewStandardSecurityHandler(R3, 16, CipherRC4, fileID, -4, true, "", "owner")
	require.NoError(t, err)

	ref := object.Reference{Num: 3, Gen: 1}
	plain := []byte("stream content")

	encrypted, err := sec.EncryptBytes(ref, plain)
	require.NoError(t, err)
	decrypted, err := sec.DecryptBytes(ref, encrypted)
	require.NoError(t, err)
	require.Equal(t, plain, decrypted)
}
