package writer

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
)

// serializeObject renders ref's current value as the bytes that follow
// "<n> <g> obj\n", up to (but not including) "\nendobj\n". Streams get
// the write-time compression policy and, unless ref names
// the encryption dictionary itself, per-object encryption of both the
// stream bytes and any embedded strings.
func serializeObject(ref object.Reference, obj object.Object, opts Options, isEncryptDict bool) []byte {
	var enc object.StringEncoder
	if !isEncryptDict && opts.Security != nil {
		enc = refEncoder{sec: opts.Security, ref: ref}
	}

	stream, ok := obj.(*object.Stream)
	if !ok {
		return []byte(obj.Write(enc))
	}

	dict, raw := stream.Dict, stream.Raw
	if !isEncryptDict {
		dict, raw = compressStream(dict, raw, opts)
		if opts.Security != nil && (!isMetadataStream(dict) || opts.EncryptMetadataStreams) {
			encrypted, err := opts.Security.EncryptBytes(ref, raw)
			if err != nil {
				panic(fmt.Sprintf("writer: encrypting stream in %s: %v", ref, err))
			}
			raw = encrypted
		}
	}

	dict = dict.Clone().(*object.Dict)
	dict.Set("Length", object.Integer(len(raw)))

	out := []byte(dict.Write(enc))
	out = append(out, []byte("\nstream\n")...)
	out = append(out, raw...)
	out = append(out, []byte("\nendstream")...)
	return out
}
