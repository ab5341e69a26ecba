package filter

import (
	"bytes"
	"io"

	"github.com/hhrutter/lzw"

	"github.com/benoitkugler/pdfgraph/object"
)

// lzwCodec implements LZWDecode. The /EarlyChange parameter (default 1)
// controls when the code width increases; PDF readers must match the
// writer's choice exactly or the table desyncs.
type lzwCodec struct{}

func earlyChange(params *object.Dict) bool {
	if params == nil {
		return true
	}
	v, ok := params.Get("EarlyChange")
	if !ok {
		return true
	}
	i, ok := v.(object.Integer)
	if !ok {
		return true
	}
	return i != 0
}

func (lzwCodec) Decode(data []byte, params *object.Dict) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), earlyChange(params))
	defer r.Close()
	return io.ReadAll(r)
}

func (lzwCodec) Encode(data []byte, params *object.Dict) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzw.NewWriter(&buf, earlyChange(params))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
