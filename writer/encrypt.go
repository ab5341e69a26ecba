package writer

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
)

// refEncoder adapts a SecurityWriter to object.StringEncoder, bound to
// one object's reference.
type refEncoder struct {
	sec SecurityWriter
	ref object.Reference
}

// EncodeString never falls back to returning raw on error: object.Write
// has no error return, and a string write for an encrypted document must
// not silently emit unencrypted bytes into the output. A failure here
// means the security handler is broken in a way callers must not ignore.
func (e refEncoder) EncodeString(raw []byte) []byte {
	if e.sec == nil {
		return raw
	}
	out, err := e.sec.EncryptBytes(e.ref, raw)
	if err != nil {
		panic(fmt.Sprintf("writer: encrypting string in %s: %v", e.ref, err))
	}
	return out
}

func isMetadataStream(d *object.Dict) bool {
	t, _ := dictGet(d, "Type").(object.Name)
	return t == "Metadata"
}

func dictGet(d *object.Dict, key object.Name) object.Object {
	v, _ := d.Get(key)
	return v
}
