// Package xref locates and parses the cross-reference information of a PDF
// file: classic xref tables, cross-reference streams,
// the /Prev chain (including hybrid-reference files), and a brute-force
// fallback when that chain is broken.
package xref

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/benoitkugler/pdfgraph/filter"
	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/parse"
	"github.com/benoitkugler/pdfgraph/token"
)

// EntryKind distinguishes the three entry forms a cross-reference section
// can describe.
type EntryKind uint8

const (
	Free EntryKind = iota
	InUse
	Compressed
)

// Entry is one object's location, prior to any parsing of its content.
type Entry struct {
	Kind EntryKind
	Gen  int

	// InUse
	Offset int64

	// Compressed
	StreamObjectNumber int
	StreamIndex        int
}

// Table maps object number to its most recent cross-reference entry.
type Table map[int]Entry

// Trailer carries the merged trailer dictionary fields: the
// values from the newest trailer win, except where a field is absent and
// an older /Prev trailer supplies it.
type Trailer struct {
	Root     object.Reference
	HasRoot  bool
	Info     object.Reference
	HasInfo  bool
	ID       object.Array
	Size     int
	Encrypt  object.Object
	Extra    *object.Dict // raw trailer dict, for fields not otherwise modeled
}

// Result is the outcome of locating and walking a file's cross-reference
// chain.
type Result struct {
	Table     Table
	Trailer   Trailer
	Recovered bool // true if brute-force recovery was used
	UsedXRefStreams bool
}

// Load builds the full cross-reference table for data, starting from the
// offset recorded after the final "startxref" keyword. On any structural
// failure it falls back to brute-force recovery.
func Load(data []byte) (Result, error) {
	startOffset, err := LocateStartXRef(data)
	if err != nil {
		return recover(data)
	}

	table := make(Table)
	var trailer Trailer
	seen := map[int64]bool{}
	usedStreams := false

	offset := startOffset
	for offset != 0 {
		if seen[offset] || offset < 0 || offset >= int64(len(data)) {
			break
		}
		seen[offset] = true

		isStream, err := looksLikeXRefStream(data, offset)
		if err != nil {
			return recover(data)
		}

		var prev int64
		var xrefStmOffset int64
		var hasXRefStm bool
		if isStream {
			usedStreams = true
			prev, err = parseXRefStreamSection(data, offset, table, &trailer)
		} else {
			prev, xrefStmOffset, hasXRefStm, err = parseClassicSection(data, offset, table, &trailer)
		}
		if err != nil {
			return recover(data)
		}
		if hasXRefStm {
			usedStreams = true
			// Hybrid file: process the hidden XRefStm before following Prev,
			// so its entries only fill in gaps left by the classic section.
			if _, err := parseXRefStreamSection(data, xrefStmOffset, table, &trailer); err != nil {
				return recover(data)
			}
		}
		offset = prev
	}

	if !trailer.HasRoot {
		return recover(data)
	}

	return Result{Table: table, Trailer: trailer, UsedXRefStreams: usedStreams}, nil
}

func recover(data []byte) (Result, error) {
	table, trailer, err := BruteForceRecovery(data)
	if err != nil {
		return Result{}, err
	}
	return Result{Table: table, Trailer: trailer, Recovered: true}, nil
}

// LocateStartXRef finds the byte offset written after the last
// "startxref" keyword before the trailing "%%EOF" marker, scanning
// backwards from the end of the file.
func LocateStartXRef(data []byte) (int64, error) {
	tail := data
	const window = 2048
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx == -1 {
		return 0, fmt.Errorf("xref: no startxref keyword found")
	}
	rest := tail[idx+len("startxref"):]
	eof := bytes.Index(rest, []byte("%%EOF"))
	if eof == -1 {
		eof = len(rest)
	}
	numText := bytes.TrimSpace(rest[:eof])
	offset, err := strconv.ParseInt(string(numText), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("xref: malformed startxref offset: %w", err)
	}
	return offset, nil
}

func looksLikeXRefStream(data []byte, offset int64) (bool, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return false, fmt.Errorf("xref: offset %d out of range", offset)
	}
	lex := token.New(data)
	lex.SetPos(int(offset))
	first, err := lex.Next()
	if err != nil {
		return false, err
	}
	if first.Kind == token.Keyword && first.Value == "xref" {
		return false, nil
	}
	return true, nil
}

// parseClassicSection parses one "xref ... trailer <<...>>" section
// starting at offset, merges new entries into table (entries for object
// numbers already present are left untouched, since the newest section is
// always processed first), and merges the trailer dict. It returns the
// /Prev offset and, if present, the hybrid-file /XRefStm offset.
func parseClassicSection(data []byte, offset int64, table Table, trailer *Trailer) (prev int64, xrefStm int64, hasXRefStm bool, err error) {
	lex := token.New(data)
	lex.SetPos(int(offset))

	kw, err := lex.Next()
	if err != nil {
		return 0, 0, false, err
	}
	if kw.Kind != token.Keyword || kw.Value != "xref" {
		return 0, 0, false, fmt.Errorf("xref: expected \"xref\" keyword at %d", offset)
	}

	for {
		save := lex.Pos()
		peek, err := lex.Next()
		if err != nil {
			return 0, 0, false, err
		}
		if peek.Kind == token.Keyword && peek.Value == "trailer" {
			break
		}
		lex.SetPos(save)
		if err := parseSubsection(lex, table); err != nil {
			return 0, 0, false, err
		}
	}

	p := parse.New(data, nil)
	p.SetPos(lex.Pos())
	obj, err := p.ParseObject()
	if err != nil {
		return 0, 0, false, fmt.Errorf("xref: trailer: %w", err)
	}
	dict, ok := obj.(*object.Dict)
	if !ok {
		return 0, 0, false, fmt.Errorf("xref: trailer is not a dict: %T", obj)
	}

	mergeTrailer(trailer, dict)
	prev = offsetEntry(dict, "Prev")
	if v, ok := dict.Get("XRefStm"); ok {
		if i, ok := v.(object.Integer); ok {
			xrefStm = int64(i)
			hasXRefStm = true
		}
	}
	return prev, xrefStm, hasXRefStm, nil
}

func parseSubsection(lex *token.Lexer, table Table) error {
	startTok, err := lex.Next()
	if err != nil {
		return err
	}
	start, err := parseTokInt(startTok)
	if err != nil {
		return fmt.Errorf("xref: subsection start: %w", err)
	}
	countTok, err := lex.Next()
	if err != nil {
		return err
	}
	count, err := parseTokInt(countTok)
	if err != nil {
		return fmt.Errorf("xref: subsection count: %w", err)
	}

	for i := 0; i < count; i++ {
		offTok, err := lex.Next()
		if err != nil {
			return err
		}
		genTok, err := lex.Next()
		if err != nil {
			return err
		}
		typeTok, err := lex.Next()
		if err != nil {
			return err
		}
		if typeTok.Kind != token.Keyword || (typeTok.Value != "n" && typeTok.Value != "f") {
			return fmt.Errorf("xref: malformed entry at subsection index %d", i)
		}
		offset, err := strconv.ParseInt(offTok.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("xref: entry offset: %w", err)
		}
		gen, err := parseTokInt(genTok)
		if err != nil {
			return fmt.Errorf("xref: entry generation: %w", err)
		}

		objNum := start + i
		if _, exists := table[objNum]; exists {
			continue // a newer section already defined this object
		}
		if typeTok.Value == "f" {
			table[objNum] = Entry{Kind: Free, Gen: gen}
			continue
		}
		if offset == 0 {
			continue // some writers emit a bogus zero offset for in-use entries
		}
		table[objNum] = Entry{Kind: InUse, Offset: offset, Gen: gen}
	}
	return nil
}

func parseTokInt(t token.Token) (int, error) {
	if t.Kind != token.Integer {
		return 0, fmt.Errorf("expected integer, got %s", t.Kind)
	}
	return strconv.Atoi(t.Value)
}

func offsetEntry(d *object.Dict, key object.Name) int64 {
	v, ok := d.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case object.Integer:
		return int64(n)
	case object.Reference:
		// some writers mistakenly emit "/Prev N 0 R"; treat the object
		// number as the intended offset since no indirection is possible
		// at trailer-parse time.
		return int64(n.Num)
	default:
		return 0
	}
}

func mergeTrailer(trailer *Trailer, dict *object.Dict) {
	if !trailer.HasRoot {
		if v, ok := dict.Get("Root"); ok {
			if ref, ok := v.(object.Reference); ok {
				trailer.Root = ref
				trailer.HasRoot = true
			}
		}
	}
	if !trailer.HasInfo {
		if v, ok := dict.Get("Info"); ok {
			if ref, ok := v.(object.Reference); ok {
				trailer.Info = ref
				trailer.HasInfo = true
			}
		}
	}
	if trailer.ID == nil {
		if v, ok := dict.Get("ID"); ok {
			if arr, ok := v.(object.Array); ok {
				trailer.ID = arr
			}
		}
	}
	if trailer.Size == 0 {
		if v, ok := dict.Get("Size"); ok {
			if i, ok := v.(object.Integer); ok {
				trailer.Size = int(i)
			}
		}
	}
	if trailer.Encrypt == nil {
		if v, ok := dict.Get("Encrypt"); ok {
			trailer.Encrypt = v
		}
	}
	if trailer.Extra == nil {
		trailer.Extra = dict
	}
}
