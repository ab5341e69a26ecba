package filter

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/benoitkugler/pdfgraph/object"
)

// flateCodec implements FlateDecode with the standard library's zlib
// codec (PDF's Flate is zlib-wrapped deflate, RFC 1950/1951).
type flateCodec struct{}

func (flateCodec) Decode(data []byte, _ *object.Dict) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (flateCodec) Encode(data []byte, _ *object.Dict) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
