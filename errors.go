package pdfgraph

import "fmt"

// SyntaxError reports that the tokenizer or parser rejected malformed
// bytes. Load returns it when the data carries no %PDF- header. Malformed
// cross-reference data does not produce one: xref.Load falls back to
// brute-force indexing, and a failure of that recovery is reported as a
// StructuralError.
type SyntaxError struct{ err error }

func (e *SyntaxError) Error() string { return "pdfgraph: syntax error: " + e.err.Error() }
func (e *SyntaxError) Unwrap() error { return e.err }

// StructuralError reports that cross-reference offsets did not resolve,
// /Root was missing, or the catalog was not a dictionary.
// Load has already attempted brute-force recovery before returning one.
type StructuralError struct{ err error }

func (e *StructuralError) Error() string { return "pdfgraph: structural error: " + e.err.Error() }
func (e *StructuralError) Unwrap() error { return e.err }

// CryptoError reports a wrong password, corrupt permissions, or a
// key-length mismatch. Load returns it when authentication or security
// handler setup fails; a stream whose bytes fail to decrypt during lazy
// resolution is instead recorded as a CryptoError in Document.Warnings().
type CryptoError struct{ err error }

func (e *CryptoError) Error() string { return "pdfgraph: crypto error: " + e.err.Error() }
func (e *CryptoError) Unwrap() error { return e.err }

// FilterError reports invalid Flate/LZW/ASCII85/predictor data met while
// decoding an object stream. It is always returned to the caller that
// resolved the object; it is never recorded as a Document.Warnings() entry.
type FilterError struct{ err error }

func (e *FilterError) Error() string { return "pdfgraph: filter error: " + e.err.Error() }
func (e *FilterError) Unwrap() error { return e.err }

// InvariantViolation indicates a bug: a state the core's own invariants
// should have made unreachable, as opposed to a malformed
// input file.
type InvariantViolation struct{ err error }

func (e *InvariantViolation) Error() string {
	return "pdfgraph: invariant violation (this is a bug): " + e.err.Error()
}
func (e *InvariantViolation) Unwrap() error { return e.err }

// IncrementalBlockedError reports that SaveIncremental was refused;
// Reason names which of CanSaveIncrementally's blockers applies.
type IncrementalBlockedError struct{ Reason BlockerReason }

func (e *IncrementalBlockedError) Error() string {
	return fmt.Sprintf("pdfgraph: cannot save incrementally: %s", e.Reason)
}
