package writer

import (
	"fmt"
	"sort"
)

// xrefEntry is one object's classic or stream xref record, independent
// of layout; writeClassicSection below and packEntries (xref_stream.go)
// render it either way.
type xrefEntry struct {
	Num    int
	Gen    int
	Free   bool
	Offset int64

	// Compressed entries (only ever produced by a reader, never by this
	// writer — see DESIGN.md) are not modeled here.
}

// writeClassicSection renders entries (sorted by object number, with no
// duplicate numbers) as one or more "<first> <count>" subsections of
// exactly-20-byte lines. Gaps between
// object numbers start new subsections.
func writeClassicSection(entries []xrefEntry) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Num < entries[j].Num })

	var out []byte
	out = append(out, []byte("xref\n")...)

	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].Num == entries[j-1].Num+1 {
			j++
		}
		first, count := entries[i].Num, j-i
		out = append(out, []byte(fmt.Sprintf("%d %d\n", first, count))...)
		for k := i; k < j; k++ {
			e := entries[k]
			if e.Free {
				out = append(out, []byte(fmt.Sprintf("%010d %05d f \n", 0, e.Gen))...)
			} else {
				out = append(out, []byte(fmt.Sprintf("%010d %05d n \n", e.Offset, e.Gen))...)
			}
		}
		i = j
	}
	return out
}
