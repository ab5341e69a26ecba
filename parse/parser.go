// Package parse builds the typed object tree (package object) from the
// token stream produced by package token. It is re-entrant, drives no
// I/O itself, and operates on in-memory byte slices handed to it by
// package xref.
package parse

import (
	"fmt"
	"strconv"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/token"
)

// LengthResolver resolves an indirect /Length reference to its integer
// value. It is supplied by the caller (normally the registry) because the
// parser has no notion of cross-reference lookups.
type LengthResolver func(ref object.Reference) (int64, bool)

// Parser recursively builds Objects from a byte buffer. It buffers up to
// three tokens of lookahead: two to recognize "N G R" references, a third
// so a dictionary can check for a following "stream" keyword.
type Parser struct {
	data          []byte
	lex           *token.Lexer
	resolveLength LengthResolver

	buf    [3]token.Token
	bufErr [3]error
	n      int // number of valid tokens currently buffered, 0..3
}

// New returns a Parser reading data from the start.
func New(data []byte, resolveLength LengthResolver) *Parser {
	return NewAt(data, 0, resolveLength)
}

// NewAt returns a Parser reading data starting at byte offset pos.
func NewAt(data []byte, pos int, resolveLength LengthResolver) *Parser {
	lex := token.New(data)
	lex.SetPos(pos)
	return &Parser{data: data, lex: lex, resolveLength: resolveLength}
}

// Pos returns the lexer's current byte offset.
func (p *Parser) Pos() int { return p.lex.Pos() }

// SetPos repositions the parser, discarding any buffered lookahead.
func (p *Parser) SetPos(pos int) {
	p.lex.SetPos(pos)
	p.n = 0
}

func (p *Parser) fill(k int) error {
	for p.n <= k {
		t, err := p.lex.Next()
		p.buf[p.n], p.bufErr[p.n] = t, err
		p.n++
	}
	return p.bufErr[k]
}

func (p *Parser) peek(k int) (token.Token, error) {
	if err := p.fill(k); err != nil {
		return token.Token{}, err
	}
	return p.buf[k], nil
}

func (p *Parser) advance() (token.Token, error) {
	if err := p.fill(0); err != nil {
		return token.Token{}, err
	}
	t := p.buf[0]
	copy(p.buf[:], p.buf[1:])
	copy(p.bufErr[:], p.bufErr[1:])
	p.n--
	return t, nil
}

// ParseObject parses one complete object value starting at the current
// position: a Dictionary, Array, scalar, or the three-token collapse of
// an indirect Reference.
func (p *Parser) ParseObject() (object.Object, error) {
	t, err := p.advance()
	if err != nil {
		return nil, err
	}
	return p.parseFrom(t)
}

func (p *Parser) parseFrom(t token.Token) (object.Object, error) {
	switch t.Kind {
	case token.EOF:
		return nil, fmt.Errorf("parse: unexpected EOF while parsing object")
	case token.Integer:
		if ref, ok, err := p.tryParseReference(t); err != nil {
			return nil, err
		} else if ok {
			return ref, nil
		}
		n, _ := parseInt(t.Value)
		return object.Integer(n), nil
	case token.Real:
		f, _ := parseFloat(t.Value)
		return object.Real(f), nil
	case token.NameTok:
		return object.Name(t.Value), nil
	case token.LiteralString:
		return object.NewLiteralString([]byte(t.Value)), nil
	case token.HexString:
		return object.NewHexString([]byte(t.Value)), nil
	case token.ArrayOpen:
		return p.parseArray()
	case token.DictOpen:
		return p.parseDictOrStream()
	case token.Keyword:
		switch t.Value {
		case "true":
			return object.Boolean(true), nil
		case "false":
			return object.Boolean(false), nil
		case "null":
			return object.Null{}, nil
		default:
			return nil, fmt.Errorf("parse: unexpected keyword %q at position %d", t.Value, t.Pos)
		}
	default:
		return nil, fmt.Errorf("parse: unexpected token %s at position %d", t.Kind, t.Pos)
	}
}

// tryParseReference looks ahead for "Integer 'R'" following the integer
// already consumed as first, collapsing "N G R" into a Reference. If the
// lookahead does not match, the buffered tokens are left in place for the
// caller who must treat `first` as a plain Integer.
func (p *Parser) tryParseReference(first token.Token) (object.Reference, bool, error) {
	second, err := p.peek(0)
	if err != nil || second.Kind != token.Integer {
		return object.Reference{}, false, nil
	}
	third, err := p.peek(1)
	if err != nil || third.Kind != token.Keyword || third.Value != "R" {
		return object.Reference{}, false, nil
	}
	// commit: consume the two lookahead tokens
	_, _ = p.advance()
	_, _ = p.advance()
	num, _ := parseInt(first.Value)
	gen, _ := parseInt(second.Value)
	return object.Reference{Num: num, Gen: gen}, true, nil
}

func (p *Parser) parseArray() (object.Object, error) {
	var out object.Array
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if t.Kind == token.ArrayClose {
			_, _ = p.advance()
			return out, nil
		}
		if t.Kind == token.EOF {
			return nil, fmt.Errorf("parse: unterminated array at position %d", t.Pos)
		}
		_, _ = p.advance()
		v, err := p.parseFrom(t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (p *Parser) parseDict() (*object.Dict, error) {
	d := object.NewDict()
	for {
		t, err := p.advance()
		if err != nil {
			return nil, err
		}
		if t.Kind == token.DictClose {
			return d, nil
		}
		if t.Kind != token.NameTok {
			return nil, fmt.Errorf("parse: expected dict key, got %s at position %d", t.Kind, t.Pos)
		}
		key := object.Name(t.Value)
		v, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		d.Set(key, v) // a duplicate key's later value wins
	}
}

// parseDictOrStream parses "<< ... >>", then checks whether a "stream"
// keyword immediately follows: if so, the object is a Stream, whose raw
// byte span is computed from /Length (resolving an indirect reference if
// necessary, falling back to scanning for "endstream" when that fails).
func (p *Parser) parseDictOrStream() (object.Object, error) {
	d, err := p.parseDict()
	if err != nil {
		return nil, err
	}

	t, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if t.Kind != token.Keyword || t.Value != "stream" {
		return d, nil
	}
	_, _ = p.advance()

	// position right after "stream": exactly one EOL must be consumed
	// before raw bytes begin.
	p.n = 0
	p.lex.SetPos(p.lex.Pos())
	p.lex.ConsumeEOLAfterStream()
	contentStart := p.lex.Pos()

	length, lengthOK := p.streamLength(d)

	var raw []byte
	var end int
	if lengthOK && contentStart+length <= len(p.data) && contentStart+length >= 0 {
		raw = p.data[contentStart : contentStart+length]
		end = contentStart + length
	} else {
		// recovery: scan forward for "endstream" at the start of a line
		idx := findEndstream(p.data, contentStart)
		if idx < 0 {
			return nil, fmt.Errorf("parse: stream at %d has no matching endstream", contentStart)
		}
		raw = p.data[contentStart:idx]
		end = idx
	}

	p.lex.SetPos(end)
	p.n = 0
	kw, err := p.advance()
	if err != nil {
		return nil, err
	}
	if kw.Kind != token.Keyword || kw.Value != "endstream" {
		// tolerate an extra EOL before endstream
		kw2, err2 := p.advance()
		if err2 != nil || kw2.Kind != token.Keyword || kw2.Value != "endstream" {
			return nil, fmt.Errorf("parse: expected endstream at position %d", p.lex.Pos())
		}
	}

	return &object.Stream{Dict: d, Raw: append([]byte(nil), raw...)}, nil
}

func (p *Parser) streamLength(d *object.Dict) (int, bool) {
	lenObj, ok := d.Get("Length")
	if !ok {
		return 0, false
	}
	switch v := lenObj.(type) {
	case object.Integer:
		return int(v), true
	case object.Reference:
		if p.resolveLength == nil {
			return 0, false
		}
		n, ok := p.resolveLength(v)
		return int(n), ok
	default:
		return 0, false
	}
}

func findEndstream(data []byte, from int) int {
	needle := []byte("endstream")
	for i := from; i+len(needle) <= len(data); i++ {
		if string(data[i:i+len(needle)]) == "endstream" {
			// walk back over the EOL preceding it
			j := i
			for j > from && (data[j-1] == '\n' || data[j-1] == '\r') {
				j--
			}
			return j
		}
	}
	return -1
}

// ParseIndirectObject parses "N G obj <value> endobj" at the current
// position and returns the object number, generation, and parsed value.
func (p *Parser) ParseIndirectObject() (num, gen int, obj object.Object, err error) {
	numTok, err := p.advance()
	if err != nil {
		return 0, 0, nil, err
	}
	if numTok.Kind != token.Integer {
		return 0, 0, nil, fmt.Errorf("parse: expected object number at position %d", numTok.Pos)
	}
	genTok, err := p.advance()
	if err != nil {
		return 0, 0, nil, err
	}
	if genTok.Kind != token.Integer {
		return 0, 0, nil, fmt.Errorf("parse: expected generation number at position %d", genTok.Pos)
	}
	kwTok, err := p.advance()
	if err != nil {
		return 0, 0, nil, err
	}
	if kwTok.Kind != token.Keyword || kwTok.Value != "obj" {
		return 0, 0, nil, fmt.Errorf("parse: expected 'obj' at position %d", kwTok.Pos)
	}

	value, err := p.ParseObject()
	if err != nil {
		return 0, 0, nil, err
	}

	endTok, err := p.advance()
	if err != nil {
		return 0, 0, nil, err
	}
	if endTok.Kind != token.Keyword || endTok.Value != "endobj" {
		return 0, 0, nil, fmt.Errorf("parse: expected 'endobj' at position %d", endTok.Pos)
	}

	n1, _ := parseInt(numTok.Value)
	n2, _ := parseInt(genTok.Value)
	return n1, n2, value, nil
}

func parseInt(s string) (int, error) {
	n := 0
	neg := false
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("parse: invalid integer %q", s)
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	// strconv handles the PDF-legal forms ("3.", ".5", "-0.") directly.
	switch s {
	case "", "+", "-", ".", "+.", "-.":
		return 0, nil
	}
	if s[len(s)-1] == '.' {
		s = s + "0"
	}
	if s[0] == '.' {
		s = "0" + s
	} else if (s[0] == '+' || s[0] == '-') && s[1] == '.' {
		s = s[:1] + "0" + s[1:]
	}
	return strconv.ParseFloat(s, 64)
}
