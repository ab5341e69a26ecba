package xref

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/filter"
	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/parse"
)

// streamDict holds the /Type /XRef-specific entries (PDF 32000-1:2008
// Table 17). All of them must be direct objects.
type streamDict struct {
	w     [3]int
	index [][2]int
	size  int
}

func (d streamDict) entrySize() int { return d.w[0] + d.w[1] + d.w[2] }

func (d streamDict) count() int {
	total := 0
	for _, sub := range d.index {
		total += sub[1]
	}
	return total
}

// parseXRefStreamSection parses the cross-reference stream object at
// offset, merges its entries into table and its trailer-like dict entries
// into trailer, and returns the /Prev offset.
func parseXRefStreamSection(data []byte, offset int64, table Table, trailer *Trailer) (int64, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return 0, fmt.Errorf("xref: stream offset %d out of range", offset)
	}

	// Length must be a direct integer in a cross-reference stream dict, so
	// no length-resolver callback is needed (and none would be safe: the
	// xref table that would answer it is exactly what we are building).
	p := parse.NewAt(data, int(offset), nil)
	_, _, obj, err := p.ParseIndirectObject()
	if err != nil {
		return 0, fmt.Errorf("xref: parsing xref stream object: %w", err)
	}
	streamObj, ok := obj.(*object.Stream)
	if !ok {
		return 0, fmt.Errorf("xref: object at %d is not a stream", offset)
	}

	sd, err := parseStreamDictFields(streamObj.Dict)
	if err != nil {
		return 0, err
	}

	resolve := func(o object.Object) (object.Object, error) { return o, nil } // xref stream dict entries are always direct
	pipeline, err := filter.ParseFilterEntries(getEntry(streamObj.Dict, "Filter"), getEntry(streamObj.Dict, "DecodeParms"), resolve)
	if err != nil {
		return 0, fmt.Errorf("xref: stream filters: %w", err)
	}
	decoded := streamObj.Raw
	if len(pipeline) > 0 {
		decoded, err = pipeline.Decode(streamObj.Raw)
		if err != nil {
			return 0, fmt.Errorf("xref: decoding stream: %w", err)
		}
	}

	if err := extractEntries(decoded, sd, table); err != nil {
		return 0, err
	}

	mergeTrailer(trailer, streamObj.Dict)
	return offsetEntry(streamObj.Dict, "Prev"), nil
}

func getEntry(d *object.Dict, key object.Name) object.Object {
	v, _ := d.Get(key)
	return v
}

func parseStreamDictFields(d *object.Dict) (streamDict, error) {
	var out streamDict

	w, ok := getEntry(d, "W").(object.Array)
	if !ok || len(w) < 3 {
		return out, fmt.Errorf("xref: xref stream missing valid /W")
	}
	for i := 0; i < 3; i++ {
		n, ok := w[i].(object.Integer)
		if !ok || n < 0 {
			return out, fmt.Errorf("xref: /W entry %d is not a non-negative integer", i)
		}
		out.w[i] = int(n)
	}

	if sz, ok := getEntry(d, "Size").(object.Integer); ok {
		if sz < 0 {
			return out, fmt.Errorf("xref: /Size must be non-negative")
		}
		out.size = int(sz)
	} else {
		return out, fmt.Errorf("xref: xref stream missing /Size")
	}

	if idx, ok := getEntry(d, "Index").(object.Array); ok && len(idx) > 0 {
		if len(idx)%2 != 0 {
			return out, fmt.Errorf("xref: /Index has odd length")
		}
		for i := 0; i < len(idx); i += 2 {
			start, ok1 := idx[i].(object.Integer)
			count, ok2 := idx[i+1].(object.Integer)
			if !ok1 || !ok2 {
				return out, fmt.Errorf("xref: /Index entries must be integers")
			}
			if start < 0 || count < 0 {
				return out, fmt.Errorf("xref: /Index entries must be non-negative")
			}
			out.index = append(out.index, [2]int{int(start), int(count)})
		}
	} else {
		out.index = [][2]int{{0, out.size}}
	}
	return out, nil
}

func extractEntries(buf []byte, sd streamDict, table Table) error {
	entrySize, count := sd.entrySize(), sd.count()
	need := entrySize * count
	if len(buf) < need {
		return fmt.Errorf("xref: decoded xref stream too short (%d < %d)", len(buf), need)
	}
	buf = buf[:need]

	w0, w1, w2 := sd.w[0], sd.w[1], sd.w[2]
	j := 0
	for _, sub := range sd.index {
		first, n := sub[0], sub[1]
		for i := 0; i < n; i++ {
			objNum := first + i
			base := j * entrySize
			j++

			typeField := int64(1) // default type, when W[0] == 0
			if w0 > 0 {
				typeField = beInt(buf[base : base+w0])
			}
			field2 := beInt(buf[base+w0 : base+w0+w1])
			field3 := beInt(buf[base+w0+w1 : base+w0+w1+w2])

			if _, exists := table[objNum]; exists {
				continue
			}
			switch typeField {
			case 0:
				table[objNum] = Entry{Kind: Free, Gen: int(field3)}
			case 1:
				table[objNum] = Entry{Kind: InUse, Offset: field2, Gen: int(field3)}
			case 2:
				table[objNum] = Entry{Kind: Compressed, StreamObjectNumber: int(field2), StreamIndex: int(field3)}
			default:
				// unknown entry type: ignore rather than reject the file
			}
		}
	}
	return nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
