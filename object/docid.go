package object

import "crypto/rand"

// NewDocumentID generates a fresh two-element /ID array for a newly
// created document: both elements start out identical, 16 random bytes
// each, per PDF 32000-1:2008 14.4. On save, the writer rotates the second
// element while leaving the first untouched.
func NewDocumentID() (Array, error) {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return nil, err
	}
	first := NewHexString(append([]byte(nil), id...))
	second := NewHexString(append([]byte(nil), id...))
	return Array{first, second}, nil
}

// RotateDocumentID returns a new /ID array for an incremental save:
// the first element persists, the second is replaced with fresh random
// bytes (PDF 32000-1:2008 14.4 note 2).
func RotateDocumentID(original Array) (Array, error) {
	next := make([]byte, 16)
	if _, err := rand.Read(next); err != nil {
		return nil, err
	}
	first := String{Bytes: []byte(nil), Form: Hex}
	if len(original) > 0 {
		if s, ok := original[0].(String); ok {
			first = String{Bytes: append([]byte(nil), s.Bytes...), Form: Hex}
		}
	}
	return Array{first, NewHexString(next)}, nil
}
