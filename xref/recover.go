package xref

import (
	"bytes"
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/parse"
	"github.com/benoitkugler/pdfgraph/token"
)

// BruteForceRecovery rebuilds a cross-reference table by scanning the
// entire file for "N G obj" declarations, ignoring whatever (possibly
// corrupt) xref sections exist. The last "trailer"
// keyword's dictionary wins; if none is found, a synthetic trailer is
// assembled from the first object whose /Type is /Catalog.
func BruteForceRecovery(data []byte) (Table, Trailer, error) {
	table := make(Table)

	lex := token.New(data)
	var catalogRef object.Reference
	foundCatalog := false
	var lastTrailerDict *object.Dict

	for {
		pos := lex.Pos()
		tok, err := lex.Next()
		if err != nil || tok.Kind == token.EOF {
			break
		}
		if tok.Kind != token.Integer {
			continue
		}
		save := lex.Pos()
		genTok, err := lex.Next()
		if err != nil || genTok.Kind != token.Integer {
			lex.SetPos(save)
			continue
		}
		objTok, err := lex.Next()
		if err != nil || objTok.Kind != token.Keyword || objTok.Value != "obj" {
			lex.SetPos(save)
			continue
		}

		num, errNum := parseDecimal(tok.Value)
		gen, errGen := parseDecimal(genTok.Value)
		if errNum != nil || errGen != nil {
			continue
		}
		// the last declaration of an object number wins: PDF incremental
		// saves append newer bodies after older ones.
		table[num] = Entry{Kind: InUse, Offset: int64(pos), Gen: gen}

		if !foundCatalog {
			if typ := peekDictType(data, lex.Pos()); typ == "Catalog" {
				catalogRef = object.Reference{Num: num, Gen: gen}
				foundCatalog = true
			}
		}
	}

	if idx := bytes.LastIndex(data, []byte("trailer")); idx != -1 {
		p := parse.New(data, nil)
		p.SetPos(idx + len("trailer"))
		if obj, err := p.ParseObject(); err == nil {
			if d, ok := obj.(*object.Dict); ok {
				lastTrailerDict = d
			}
		}
	}

	var trailer Trailer
	if lastTrailerDict != nil {
		mergeTrailer(&trailer, lastTrailerDict)
	}
	if !trailer.HasRoot {
		if !foundCatalog {
			return nil, Trailer{}, fmt.Errorf("xref: brute-force recovery found no /Catalog object")
		}
		trailer.Root = catalogRef
		trailer.HasRoot = true
	}
	if trailer.Size == 0 {
		max := 0
		for n := range table {
			if n > max {
				max = n
			}
		}
		trailer.Size = max + 1
	}
	return table, trailer, nil
}

func parseDecimal(s string) (int, error) {
	n := 0
	neg := false
	for i, c := range []byte(s) {
		if i == 0 && c == '+' {
			continue
		}
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a decimal integer: %q", s)
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

// peekDictType parses a dict starting at pos (the object's value position)
// and, if the value is itself a dict carrying /Type, returns it; this lets
// brute-force recovery spot the catalog without resolving cross-references.
func peekDictType(data []byte, pos int) string {
	p := parse.NewAt(data, pos, nil)
	obj, err := p.ParseObject()
	if err != nil {
		return ""
	}
	d, ok := obj.(*object.Dict)
	if !ok {
		return ""
	}
	v, ok := d.Get("Type")
	if !ok {
		return ""
	}
	n, ok := v.(object.Name)
	if !ok {
		return ""
	}
	return string(n)
}
