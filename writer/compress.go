package writer

import (
	"bytes"
	"compress/zlib"

	"github.com/benoitkugler/pdfgraph/object"
)

// compressStream applies the write-time compression policy: a stream with no /Filter is FlateDecode-compressed only if that
// strictly reduces its size; streams that already carry a /Filter are
// serialized byte-for-byte, unmodified.
func compressStream(dict *object.Dict, raw []byte, opts Options) (*object.Dict, []byte) {
	if !opts.Compress {
		return dict, raw
	}
	if _, has := dict.Get("Filter"); has {
		return dict, raw
	}
	if len(raw) == 0 {
		return dict, raw
	}

	var buf bytes.Buffer
	level := defaultedLevel(opts)
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return dict, raw
	}
	if _, err := zw.Write(raw); err != nil {
		return dict, raw
	}
	if err := zw.Close(); err != nil {
		return dict, raw
	}
	if buf.Len() >= len(raw) {
		return dict, raw
	}

	out := dict.Clone().(*object.Dict)
	out.Set("Filter", object.Name("FlateDecode"))
	return out, buf.Bytes()
}
