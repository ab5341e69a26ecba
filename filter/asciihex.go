package filter

import (
	"bytes"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/token"
)

// asciiHexCodec implements ASCIIHexDecode.
type asciiHexCodec struct{}

const eodHex = '>'

func (asciiHexCodec) Decode(data []byte, _ *object.Dict) ([]byte, error) {
	var digits []byte
	for _, c := range data {
		if c == eodHex {
			break
		}
		if c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' ' {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		h, err := hexPair(digits[2*i], digits[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func hexPair(a, b byte) (byte, error) {
	va, oka := token.IsHexChar(a)
	vb, okb := token.IsHexChar(b)
	if !oka || !okb {
		return 0, &token.Error{Kind: token.BadHex, Msg: "invalid hex digit in ASCIIHexDecode stream"}
	}
	return va<<4 | vb, nil
}

func (asciiHexCodec) Encode(data []byte, _ *object.Dict) ([]byte, error) {
	var buf bytes.Buffer
	for _, b := range data {
		buf.WriteByte(hexDigit(b >> 4))
		buf.WriteByte(hexDigit(b & 0xf))
	}
	buf.WriteByte('>')
	return buf.Bytes(), nil
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'a' + v - 10
}
