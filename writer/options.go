// Package writer serializes a registry of PDF objects back to bytes,
// either as a fresh file with unreachable objects garbage collected, or
// as a byte-identical incremental append.
package writer

import (
	"github.com/go-playground/validator/v10"

	"github.com/benoitkugler/pdfgraph/object"
)

// XRefForm selects the cross-reference section layout a save produces.
type XRefForm int

const (
	ClassicXRef XRefForm = iota
	StreamXRef
)

// Options configures a save. The zero value is valid: no compression,
// classic xref tables.
type Options struct {
	// Compress enables the write-time compression policy: a stream
	// with no existing /Filter is FlateDecode-compressed only if doing
	// so strictly reduces its size.
	Compress bool

	// CompressionLevel is passed to compress/flate; -1 means
	// flate.DefaultCompression, 0 none, 9 best.
	CompressionLevel int `validate:"min=-1,max=9"`

	// XRefForm picks classic table or cross-reference stream. On
	// incremental save, StreamXRef is also the default whenever the
	// original file already used xref streams, regardless of this
	// field's zero value.
	XRefForm XRefForm `validate:"oneof=0 1"`

	// Security, if non-nil, is applied to every written string and
	// stream (except the /Encrypt dictionary itself).
	Security SecurityWriter

	// EncryptMetadataStreams mirrors the security handler's
	// /EncryptMetadata setting: when false, streams with /Type
	// /Metadata are written in the clear even though Security is set.
	EncryptMetadataStreams bool
}

// SecurityWriter is the subset of crypt.SecurityHandler the writer
// needs: per-object encryption of strings and streams. Defined here
// (rather than imported directly) so writer does not need to depend on
// the crypt package's authentication machinery, only its output.
type SecurityWriter interface {
	EncryptBytes(ref object.Reference, data []byte) ([]byte, error)
}

var validate = validator.New()

// Validate checks cross-field constraints on Options: the
// CompressionLevel range and the XRefForm enum.
func (o Options) Validate() error {
	return validate.Struct(o)
}

func defaultedLevel(o Options) int {
	if o.CompressionLevel == 0 && !o.Compress {
		return -1
	}
	return o.CompressionLevel
}
