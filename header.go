package pdfgraph

import (
	"fmt"
	"regexp"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/parse"
	"github.com/benoitkugler/pdfgraph/xref"
)

var headerRe = regexp.MustCompile(`%PDF-(\d\.\d)`)

// parseHeader extracts the minor version from the leading "%PDF-1.N"
// line; conforming readers are tolerant of garbage bytes
// before it, so the search is not anchored to offset 0.
func parseHeader(data []byte) (string, error) {
	window := data
	if len(window) > 1024 {
		window = window[:1024]
	}
	m := headerRe.FindSubmatch(window)
	if m == nil {
		return "", fmt.Errorf("no %%PDF-x.y header found in the first 1024 bytes")
	}
	return string(m[1]), nil
}

// detectLinearized reports whether the file opens with a linearization
// parameter dictionary: the first object in the table, keyed by /Linearized.
// Incremental save is refused on such input because the writer has no
// linearization-aware append path.
func detectLinearized(data []byte, table xref.Table) bool {
	var earliest xref.Entry
	found := false
	for _, entry := range table {
		if entry.Kind != xref.InUse {
			continue
		}
		if !found || entry.Offset < earliest.Offset {
			earliest = entry
			found = true
		}
	}
	if !found {
		return false
	}
	p := parse.NewAt(data, int(earliest.Offset), nil)
	_, _, obj, err := p.ParseIndirectObject()
	if err != nil {
		return false
	}
	dict, ok := obj.(*object.Dict)
	if !ok {
		return false
	}
	_, has := dict.Get("Linearized")
	return has
}
