package filter

import (
	"bytes"
	"encoding/ascii85"
	"io"

	"github.com/benoitkugler/pdfgraph/object"
)

// ascii85Codec implements ASCII85Decode. PDF terminates the stream with
// "~>", which the standard library's ascii85 codec does not know about,
// so it is stripped/appended here.
type ascii85Codec struct{}

func (ascii85Codec) Decode(data []byte, _ *object.Dict) ([]byte, error) {
	data = bytes.TrimSpace(data)
	data = bytes.TrimSuffix(data, []byte("~>"))
	r := ascii85.NewDecoder(bytes.NewReader(data))
	return io.ReadAll(r)
}

func (ascii85Codec) Encode(data []byte, _ *object.Dict) ([]byte, error) {
	var buf bytes.Buffer
	w := ascii85.NewEncoder(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("~>")
	return buf.Bytes(), nil
}
