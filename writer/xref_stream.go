package writer

import (
	"bytes"
	"compress/zlib"
	"sort"

	"github.com/benoitkugler/pdfgraph/object"
)

// packedWidths chooses [1 4 2],
// widening the offset field only if some entry's offset would not fit.
func packedWidths(entries []xrefEntry) [3]int {
	w := [3]int{1, 4, 2}
	var maxOffset int64
	for _, e := range entries {
		if e.Offset > maxOffset {
			maxOffset = e.Offset
		}
	}
	for maxOffset >= (1 << (8 * w[1])) {
		w[1]++
	}
	return w
}

func beAppend(out []byte, v int64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		out = append(out, byte(v>>(8*uint(i))))
	}
	return out
}

// packEntries renders entries (sorted by object number) as the
// concatenated fixed-width rows an xref stream's decoded payload holds,
// plus the /Index pairs describing the (possibly non-contiguous) object
// number ranges covered.
func packEntries(entries []xrefEntry, w [3]int) (packed []byte, index object.Array) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Num < entries[j].Num })

	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].Num == entries[j-1].Num+1 {
			j++
		}
		index = append(index, object.Integer(entries[i].Num), object.Integer(j-i))
		for k := i; k < j; k++ {
			e := entries[k]
			if e.Free {
				packed = beAppend(packed, 0, w[0])
				packed = beAppend(packed, 0, w[1])
				packed = beAppend(packed, int64(e.Gen), w[2])
			} else {
				packed = beAppend(packed, 1, w[0])
				packed = beAppend(packed, e.Offset, w[1])
				packed = beAppend(packed, int64(e.Gen), w[2])
			}
		}
		i = j
	}
	return packed, index
}

// buildXRefStreamObject renders the complete "N G obj ... endobj" bytes
// for the /Type /XRef stream itself, given that its own entry (in-use, at
// the offset where these bytes will be written) is already included in
// entries. The xref stream and the
// encryption dictionary are never encrypted.
func buildXRefStreamObject(ref object.Reference, entries []xrefEntry, trailerDict *object.Dict, compress bool, level int) []byte {
	w := packedWidths(entries)
	packed, index := packEntries(entries, w)

	raw := packed
	dict := trailerDict.Clone().(*object.Dict)
	dict.Set("Type", object.Name("XRef"))
	dict.Set("W", object.Array{object.Integer(w[0]), object.Integer(w[1]), object.Integer(w[2])})
	dict.Set("Index", index)

	if compress {
		var buf bytes.Buffer
		if zw, err := zlib.NewWriterLevel(&buf, level); err == nil {
			if _, err := zw.Write(raw); err == nil && zw.Close() == nil && buf.Len() < len(raw) {
				raw = buf.Bytes()
				dict.Set("Filter", object.Name("FlateDecode"))
			}
		}
	}
	dict.Set("Length", object.Integer(len(raw)))

	var out []byte
	out = append(out, []byte(dict.Write(nil))...)
	out = append(out, []byte("\nstream\n")...)
	out = append(out, raw...)
	out = append(out, []byte("\nendstream")...)
	return out
}
