package crypt

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"hash"
	"io"

	"github.com/xdg-go/stringprep"

	"github.com/benoitkugler/pdfgraph/object"
)

// ErrAuthenticationFailed is returned when neither the user nor the owner
// password matches the document's O/U hashes.
var ErrAuthenticationFailed = errors.New("crypt: password does not match the document's security handler")

// Revision identifies a standard security handler revision, each with its own key-derivation and hash algorithm.
type Revision int

const (
	R2 Revision = 2
	R3 Revision = 3
	R4 Revision = 4
	R5 Revision = 5
	R6 Revision = 6
)

// CipherMethod names the crypt filter method (/CFM) applied per object.
type CipherMethod int

const (
	CipherRC4   CipherMethod = iota
	CipherAESV2              // AES-128
	CipherAESV3              // AES-256
	CipherIdentity
)

var passwordPad = [32]byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// SecurityHandler implements the standard security handler described in
// PDF 32000-1:2008 §7.6.3 (revisions 2-4) and ISO 32000-2:2020 §7.6.4
// (revisions 5-6): it derives a file encryption key from a password and
// encrypts/decrypts object strings and streams with it.
type SecurityHandler struct {
	Revision   Revision
	KeyBytes   int // file encryption key length, 5-32
	Cipher     CipherMethod
	FileID     []byte // first element of the trailer /ID array
	O, U       []byte // 32 bytes (R2-R4) or 48 bytes (R5-R6)
	OE, UE     []byte // R5-R6 only, 32 bytes each
	Perms      []byte // R5-R6 only, 16 bytes
	Permission int32
	// EncryptMetadata is false only when V>=4 and /EncryptMetadata is
	// explicitly false, which folds 0xffffffff into the key derivation.
	EncryptMetadata bool

	key []byte // set once authentication succeeds
}

// Authenticate tries the user password then the owner password and, on
// success, derives and stores the file encryption key.
func (s *SecurityHandler) Authenticate(userPassword, ownerPassword string) error {
	if s.Revision >= R5 {
		return s.authenticateR6(userPassword, ownerPassword)
	}
	return s.authenticateR2to4(userPassword, ownerPassword)
}

// Key returns the authenticated file encryption key. Authenticate must
// have succeeded first.
func (s *SecurityHandler) Key() []byte { return s.key }

func (s *SecurityHandler) authenticateR2to4(userPassword, ownerPassword string) error {
	paddedUser := padPassword(userPassword)
	if key, ok := s.tryUserKey(paddedUser); ok {
		s.key = key
		return nil
	}
	paddedOwner := padPassword(ownerPassword)
	recoveredUser := s.recoverUserPasswordFromOwner(paddedOwner)
	if key, ok := s.tryUserKey(recoveredUser); ok {
		s.key = key
		return nil
	}
	return ErrAuthenticationFailed
}

func padPassword(password string) []byte {
	raw, ok := object.PDFDocEncode(password)
	if !ok {
		raw = []byte(password)
	}
	out := make([]byte, 32)
	n := copy(out, raw)
	copy(out[n:], passwordPad[:])
	return out
}

// tryUserKey derives the file key from a (possibly already padded-and-
// decrypted) user password candidate and checks it against U.
func (s *SecurityHandler) tryUserKey(paddedUser []byte) ([]byte, bool) {
	key := s.fileKey(paddedUser)
	u := s.computeU(key)
	if s.Revision == R2 {
		return key, bytes.Equal(u, s.U)
	}
	return key, len(s.U) >= 16 && bytes.Equal(u[:16], s.U[:16])
}

// fileKey implements Algorithm 2 (revisions 2-4).
func (s *SecurityHandler) fileKey(paddedUser []byte) []byte {
	h := md5.New()
	h.Write(paddedUser)
	h.Write(s.O)
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], uint32(s.Permission))
	h.Write(p[:])
	h.Write(s.FileID)
	if s.Revision >= R4 && !s.EncryptMetadata {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := h.Sum(nil)
	if s.Revision >= R3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:s.KeyBytes])
			key = sum[:]
		}
	}
	return key[:s.KeyBytes]
}

// computeU implements Algorithm 4 (R2) / Algorithm 5 (R3-R4).
func (s *SecurityHandler) computeU(key []byte) []byte {
	if s.Revision == R2 {
		out, _ := rc4Crypt(key, passwordPad[:])
		return out
	}
	h := md5.New()
	h.Write(passwordPad[:])
	h.Write(s.FileID)
	sum := h.Sum(nil)
	out, _ := rc4Crypt(key, sum)
	rc4Xor19(out, key, true)
	full := make([]byte, 32)
	copy(full, out)
	return full
}

// recoverUserPasswordFromOwner implements Algorithm 7: decrypt O with a
// key derived from the owner password candidate to recover a user
// password candidate, which is then checked the normal way.
func (s *SecurityHandler) recoverUserPasswordFromOwner(paddedOwner []byte) []byte {
	sum := md5.Sum(paddedOwner)
	key := sum[:]
	if s.Revision >= R3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:s.KeyBytes])
			key = sum[:]
		}
	}
	key = key[:s.KeyBytes]

	buf := make([]byte, 32)
	copy(buf, s.O)
	if s.Revision == R2 {
		out, _ := rc4Crypt(key, buf)
		return out
	}
	rc4Xor19(buf, key, false)
	out, _ := rc4Crypt(key, buf)
	return out
}

// ObjectKey derives the per-object key for RC4/AES-128 (R2-R4), per
// Algorithm 1 step (a)-(d): the file key plus the object number/generation
// (and, for AES, a constant "sAlT" suffix) fed through MD5.
func (s *SecurityHandler) ObjectKey(ref object.Reference) []byte {
	if s.Revision >= R5 {
		return s.key
	}
	buf := append([]byte(nil), s.key...)
	buf = append(buf, byte(ref.Num), byte(ref.Num>>8), byte(ref.Num>>16))
	buf = append(buf, byte(ref.Gen), byte(ref.Gen>>8))
	if s.Cipher == CipherAESV2 {
		buf = append(buf, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	sum := md5.Sum(buf)
	n := len(s.key) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// DecryptBytes decrypts a string or stream body belonging to ref.
func (s *SecurityHandler) DecryptBytes(ref object.Reference, data []byte) ([]byte, error) {
	switch s.Cipher {
	case CipherIdentity:
		return data, nil
	case CipherRC4:
		return rc4Crypt(s.ObjectKey(ref), data)
	default:
		return aesCBCDecrypt(s.ObjectKey(ref), data)
	}
}

// EncryptBytes is the inverse of DecryptBytes, used when writing.
func (s *SecurityHandler) EncryptBytes(ref object.Reference, data []byte) ([]byte, error) {
	switch s.Cipher {
	case CipherIdentity:
		return data, nil
	case CipherRC4:
		return rc4Crypt(s.ObjectKey(ref), data)
	default:
		return aesCBCEncrypt(s.ObjectKey(ref), data)
	}
}

// --- revisions 5-6: AES-256 with SASLprep passwords and Algorithm 2.B ---

func utf8Password(password string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(password)
	if err != nil {
		// ISO 32000-2 allows falling back to the raw UTF-8 bytes when
		// SASLprep cannot normalize the input (e.g. unassigned code points).
		prepped = password
	}
	buf := []byte(prepped)
	if len(buf) > 127 {
		buf = buf[:127]
	}
	return buf, nil
}

func (s *SecurityHandler) authenticateR6(userPassword, ownerPassword string) error {
	upw, err := utf8Password(userPassword)
	if err != nil {
		return err
	}
	if key, ok := s.tryUser6(upw); ok {
		s.key = key
		return nil
	}
	opw, err := utf8Password(ownerPassword)
	if err != nil {
		return err
	}
	if key, ok := s.tryOwner6(opw); ok {
		s.key = key
		return nil
	}
	return ErrAuthenticationFailed
}

func (s *SecurityHandler) tryUser6(utf8Pwd []byte) ([]byte, bool) {
	if len(s.U) < 48 {
		return nil, false
	}
	validationSalt := s.U[32:40]
	keySalt := s.U[40:48]

	if !bytes.Equal(slowHash(utf8Pwd, validationSalt, nil), s.U[:32]) {
		return nil, false
	}
	intermediateKey := slowHash(utf8Pwd, keySalt, nil)
	fileKey, err := aesCBCNoPaddingDecrypt(intermediateKey, make([]byte, 16), s.UE)
	if err != nil {
		return nil, false
	}
	if !s.checkPerms(fileKey) {
		return nil, false
	}
	return fileKey, true
}

func (s *SecurityHandler) tryOwner6(utf8Pwd []byte) ([]byte, bool) {
	if len(s.O) < 48 {
		return nil, false
	}
	validationSalt := s.O[32:40]
	keySalt := s.O[40:48]

	if !bytes.Equal(slowHash(utf8Pwd, validationSalt, s.U), s.O[:32]) {
		return nil, false
	}
	intermediateKey := slowHash(utf8Pwd, keySalt, s.U)
	fileKey, err := aesCBCNoPaddingDecrypt(intermediateKey, make([]byte, 16), s.OE)
	if err != nil {
		return nil, false
	}
	if !s.checkPerms(fileKey) {
		return nil, false
	}
	return fileKey, true
}

func (s *SecurityHandler) checkPerms(fileKey []byte) bool {
	if len(s.Perms) != 16 {
		return true // no Perms to validate against
	}
	buf := aesECBDecryptBlock(fileKey, s.Perms)
	if string(buf[9:12]) != "adb" {
		return false
	}
	p := int32(binary.LittleEndian.Uint32(buf[:4]))
	return p == s.Permission
}

// slowHash implements ISO 32000-2:2020 Algorithm 2.B, the revision 6
// password hash. salt is the 8-byte validation or key salt; extra is nil
// when hashing a user password, or the 48-byte U string when hashing an
// owner password.
func slowHash(password, salt, extra []byte) []byte {
	h := sha256.New()
	h.Write(password)
	h.Write(salt)
	h.Write(extra)
	k := h.Sum(nil)

	round := make([]byte, 0, 64*(len(password)+len(k)+len(extra)))
	var last byte // final byte of the previous round's AES output
	for i := 0; i < 64 || int(last) > i-32; i++ {
		round = round[:0]
		for j := 0; j < 64; j++ {
			round = append(round, password...)
			round = append(round, k...)
			round = append(round, extra...)
		}

		encrypted, err := aesCBCNoPaddingEncrypt(k[:16], k[16:32], round)
		if err != nil {
			panic(err) // round is always a multiple of 16 by construction
		}

		sum := 0
		for _, b := range encrypted[:16] {
			sum += int(b)
		}
		var next hash.Hash
		switch sum % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(encrypted)
		last = encrypted[len(encrypted)-1]
		k = next.Sum(nil)
	}
	return k[:32]
}

// NewFileID generates a fresh 16-byte document ID half, used both for the
// trailer /ID array and as salt material in key derivation for newly
// encrypted documents.
func NewFileID() ([]byte, error) {
	id := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, id); err != nil {
		return nil, err
	}
	return id, nil
}

// NewStandardSecurityHandler builds the O/U (and, for R5-R6, OE/UE/Perms)
// fields for a document being newly encrypted.
func NewStandardSecurityHandler(revision Revision, keyBytes int, cipher CipherMethod, fileID []byte, permission int32, encryptMetadata bool, userPassword, ownerPassword string) (*SecurityHandler, error) {
	s := &SecurityHandler{
		Revision:        revision,
		KeyBytes:        keyBytes,
		Cipher:          cipher,
		FileID:          fileID,
		Permission:      permission,
		EncryptMetadata: encryptMetadata,
	}
	if revision >= R5 {
		return s.createR6(userPassword, ownerPassword)
	}
	return s.createR2to4(userPassword, ownerPassword)
}

func (s *SecurityHandler) createR2to4(userPassword, ownerPassword string) (*SecurityHandler, error) {
	paddedUser := padPassword(userPassword)
	paddedOwner := padPassword(ownerPassword)

	s.O = s.computeO(paddedUser, paddedOwner)
	s.key = s.fileKey(paddedUser)
	s.U = s.computeU(s.key)
	return s, nil
}

// computeO implements Algorithm 3.
func (s *SecurityHandler) computeO(paddedUser, paddedOwner []byte) []byte {
	sum := md5.Sum(paddedOwner)
	key := sum[:]
	if s.Revision >= R3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:s.KeyBytes])
			key = sum[:]
		}
	}
	key = key[:s.KeyBytes]

	O, _ := rc4Crypt(key, paddedUser)
	if s.Revision >= R3 {
		rc4Xor19(O, key, true)
	}
	return O
}

func (s *SecurityHandler) createR6(userPassword, ownerPassword string) (*SecurityHandler, error) {
	upw, err := utf8Password(userPassword)
	if err != nil {
		return nil, err
	}
	opw, err := utf8Password(ownerPassword)
	if err != nil {
		return nil, err
	}

	fileKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, fileKey); err != nil {
		return nil, err
	}
	s.key = fileKey

	userValidationSalt, userKeySalt, err := randomSalts()
	if err != nil {
		return nil, err
	}
	uHash := slowHash(upw, userValidationSalt, nil)
	s.U = append(append(append([]byte(nil), uHash...), userValidationSalt...), userKeySalt...)
	userIntermediateKey := slowHash(upw, userKeySalt, nil)
	ue, err := aesCBCNoPaddingEncrypt(userIntermediateKey, make([]byte, 16), fileKey)
	if err != nil {
		return nil, err
	}
	s.UE = ue

	ownerValidationSalt, ownerKeySalt, err := randomSalts()
	if err != nil {
		return nil, err
	}
	oHash := slowHash(opw, ownerValidationSalt, s.U)
	s.O = append(append(append([]byte(nil), oHash...), ownerValidationSalt...), ownerKeySalt...)
	ownerIntermediateKey := slowHash(opw, ownerKeySalt, s.U)
	oe, err := aesCBCNoPaddingEncrypt(ownerIntermediateKey, make([]byte, 16), fileKey)
	if err != nil {
		return nil, err
	}
	s.OE = oe

	perms, err := s.computePerms(fileKey)
	if err != nil {
		return nil, err
	}
	s.Perms = perms
	return s, nil
}

func randomSalts() (validation, key []byte, err error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, nil, err
	}
	return buf[:8], buf[8:], nil
}

// computePerms implements Algorithm 10.
func (s *SecurityHandler) computePerms(fileKey []byte) ([]byte, error) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf, uint32(s.Permission))
	buf[4], buf[5], buf[6], buf[7] = 0xff, 0xff, 0xff, 0xff
	if s.EncryptMetadata {
		buf[8] = 'T'
	} else {
		buf[8] = 'F'
	}
	buf[9], buf[10], buf[11] = 'a', 'd', 'b'
	if _, err := io.ReadFull(rand.Reader, buf[12:16]); err != nil {
		return nil, err
	}
	return aesECBEncryptBlock(fileKey, buf), nil
}
