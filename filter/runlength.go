package filter

import (
	"bytes"

	"github.com/benoitkugler/pdfgraph/object"
)

// runLengthCodec implements RunLengthDecode (PDF 32000-1:2008 §7.4.5): a
// length byte 0-127 is followed by that many+1 literal bytes; a length
// byte 129-255 is followed by one byte to be repeated 257-length times;
// length byte 128 (EOD) ends the stream.
type runLengthCodec struct{}

func (runLengthCodec) Decode(data []byte, _ *object.Dict) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		length := data[i]
		i++
		switch {
		case length == 128:
			return out.Bytes(), nil
		case length < 128:
			n := int(length) + 1
			if i+n > len(data) {
				return nil, errShortRunLength
			}
			out.Write(data[i : i+n])
			i += n
		default:
			if i >= len(data) {
				return nil, errShortRunLength
			}
			b := data[i]
			i++
			for k := 0; k < 257-int(length); k++ {
				out.WriteByte(b)
			}
		}
	}
	return out.Bytes(), nil
}

func (runLengthCodec) Encode(data []byte, _ *object.Dict) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		runEnd := i + 1
		for runEnd < len(data) && runEnd-i < 128 && data[runEnd] == data[i] {
			runEnd++
		}
		if runEnd-i >= 2 {
			out.WriteByte(byte(257 - (runEnd - i)))
			out.WriteByte(data[i])
			i = runEnd
			continue
		}
		litStart := i
		litEnd := i + 1
		for litEnd < len(data) && litEnd-litStart < 128 {
			if litEnd+1 < len(data) && data[litEnd] == data[litEnd+1] {
				break
			}
			litEnd++
		}
		out.WriteByte(byte(litEnd - litStart - 1))
		out.Write(data[litStart:litEnd])
		i = litEnd
	}
	out.WriteByte(128)
	return out.Bytes(), nil
}

var errShortRunLength = runLengthError("truncated RunLengthDecode stream")

type runLengthError string

func (e runLengthError) Error() string { return string(e) }
