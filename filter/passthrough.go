package filter

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
)

// passthroughCodec handles DCTDecode, JPXDecode and Crypt: the encoded
// bytes are already the form the registry should hand back (a JPEG/JPEG2000
// image, or data already decrypted by the security handler), so both
// directions are the identity.
type passthroughCodec struct{}

func (passthroughCodec) Decode(data []byte, _ *object.Dict) ([]byte, error) { return data, nil }
func (passthroughCodec) Encode(data []byte, _ *object.Dict) ([]byte, error) { return data, nil }

// ccittFaxCodec recognizes CCITTFaxDecode streams but does not decompress
// the fax-encoded bitmap; image rendering is out of scope, so this
// exists only so a pipeline that names CCITTFaxDecode resolves a filter
// rather than failing to look one up. Encode refuses to re-run the
// compressor: the raw bits making it back out would not match what a
// real CCITT encoder produces, which would break incremental saves.
type ccittFaxCodec struct{}

func (ccittFaxCodec) Decode(data []byte, _ *object.Dict) ([]byte, error) {
	return data, nil
}

func (ccittFaxCodec) Encode(data []byte, _ *object.Dict) ([]byte, error) {
	return nil, fmt.Errorf("filter: CCITTFaxDecode re-encoding is not supported")
}
