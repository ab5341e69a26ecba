package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// aesCBCEncrypt implements the AES-128/256 CBC crypt filter: a random 16-byte IV is prepended to the ciphertext, and the
// plaintext is padded with PKCS#7.
func aesCBCEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(data, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// aesCBCDecrypt reverses aesCBCEncrypt: the first 16 bytes are the IV,
// and PKCS#7 padding is stripped from the result.
func aesCBCDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aes.BlockSize || (len(data)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, errors.New("crypt: AES-CBC ciphertext has invalid length")
	}
	if len(data) == aes.BlockSize {
		return nil, nil
	}
	iv := data[:aes.BlockSize]
	ciphertext := data[aes.BlockSize:]
	out := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	n := int(data[len(data)-1])
	if n == 0 || n > len(data) {
		return nil, errors.New("crypt: invalid PKCS#7 padding")
	}
	return data[:len(data)-n], nil
}

// aesECBEncryptBlock runs a single AES block without chaining, used only for the
// /Perms validation block, which is not CBC-chained.
func aesECBEncryptBlock(key, block []byte) []byte {
	c, err := aes.NewCipher(key)
	if err != nil {
		// the caller only ever passes a 32-byte key, so this cannot fail
		panic(err)
	}
	out := make([]byte, aes.BlockSize)
	c.Encrypt(out, block)
	return out
}

func aesECBDecryptBlock(key, block []byte) []byte {
	c, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, aes.BlockSize)
	c.Decrypt(out, block)
	return out
}

// aesCBCNoPaddingEncrypt runs CBC with a caller-supplied IV and no
// padding, used by the R6 slow-hash (Algorithm 2.B step b) and by the
// UE/OE key-wrapping (Algorithms 8-9), where the input is already a
// multiple of the block size.
func aesCBCNoPaddingEncrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("crypt: data is not a multiple of the AES block size")
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesCBCNoPaddingDecrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("crypt: data is not a multiple of the AES block size")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}
