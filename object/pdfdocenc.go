package object

import "strings"

// pdfDocHighBits holds the PDFDocEncoding mapping for byte values 0x18-0x9e
// that diverge from ASCII/Latin-1 (PDF 32000-1 Annex D). Bytes 0x20-0x7e map
// to themselves; bytes 0xa0-0xff map to the identical Unicode code point
// except 0xa0, which is the Euro sign rather than a non-breaking space.
// There is no third-party charmap for this PDF-specific table (it is not
// one of the IANA charsets golang.org/x/text/encoding/charmap ships), so it
// is hand-coded here; see DESIGN.md.
var pdfDocHighBits = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1a: 'ˆ', 0x1b: '˙',
	0x1c: '˝', 0x1d: '˛', 0x1e: '˚', 0x1f: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
	0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8a: '−', 0x8b: '‰',
	0x8c: '„', 0x8d: '“', 0x8e: '”', 0x8f: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
	0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9a: 'ı', 0x9b: 'ł',
	0x9c: 'œ', 0x9d: 'š', 0x9e: 'ž',
	0xa0: '€',
}

var pdfDocHighBitsInverse = buildInverse()

func buildInverse() map[rune]byte {
	out := make(map[rune]byte, len(pdfDocHighBits))
	for b, r := range pdfDocHighBits {
		out[r] = b
	}
	return out
}

// PDFDocDecode decodes b, assumed to hold PDFDocEncoding bytes, into a
// Go string.
func PDFDocDecode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if r, ok := pdfDocHighBits[c]; ok {
			sb.WriteRune(r)
			continue
		}
		if c < 0x18 || (c >= 0x20 && c <= 0x7e) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// PDFDocEncode encodes s into PDFDocEncoding bytes. ok is false if s
// contains a rune with no PDFDocEncoding representation.
func PDFDocEncode(s string) (out []byte, ok bool) {
	ok = true
	for _, r := range s {
		if r < 0x100 {
			if _, isHigh := pdfDocHighBits[byte(r)]; !isHigh || r < 0x80 {
				out = append(out, byte(r))
				continue
			}
		}
		if b, has := pdfDocHighBitsInverse[r]; has {
			out = append(out, b)
			continue
		}
		ok = false
		out = append(out, '?')
	}
	return out, ok
}
