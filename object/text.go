package object

import (
	"golang.org/x/text/encoding/unicode"
)

var utf16Enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// EncodeTextString renders s as a PDF text string: UTF-16BE with a leading
// BOM, wrapped as a literal string. Conforming readers fall back to
// PDFDocEncoding when no BOM is present; writers always emit the BOM form
// for non-ASCII content so round-tripping is unambiguous.
func EncodeTextString(s string) (String, error) {
	if isASCII(s) {
		return NewLiteralString([]byte(s)), nil
	}
	enc, err := utf16Enc.NewEncoder().String(s)
	if err != nil {
		return String{}, err
	}
	return NewLiteralString([]byte(enc)), nil
}

// DecodeTextString interprets raw as a PDF text string: UTF-16BE if it
// starts with the BOM 0xFE 0xFF, PDFDocEncoding otherwise.
func DecodeTextString(raw []byte) (string, error) {
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		dec, err := utf16Enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
		return string(dec), nil
	}
	return PDFDocDecode(raw), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
