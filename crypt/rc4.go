// Package crypt implements the PDF standard security handler: revisions 2-4 using MD5-derived RC4/AES-128 keys, and revisions
// 5-6 using SASLprep-normalized passwords and the ISO 32000-2 Algorithm
// 2.B hash with AES-256.
package crypt

import "crypto/rc4"

// rc4Crypt XORs data with the RC4 keystream derived from key. RC4 is
// symmetric, so the same call encrypts and decrypts.
func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// rc4Xor19 repeats RC4 encryption 19 times with key XORed against an
// incrementing byte each round, per PDF 32000-1:2008 Algorithm 3 step (c)
// (used both forward, encrypting O, and backward, authenticating it).
func rc4Xor19(buf, key []byte, ascending bool) {
	tmp := make([]byte, len(key))
	for round := 1; round <= 19; round++ {
		i := round
		if !ascending {
			i = 20 - round
		}
		for j := range tmp {
			tmp[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(tmp)
		c.XORKeyStream(buf, buf)
	}
}
