package writer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/registry"
	"github.com/benoitkugler/pdfgraph/xref"
)

// buildOriginalFile renders a minimal, already-saved classic-xref PDF and
// the registry a loader would have populated from it, so a test can then
// mutate the registry and exercise IncrementalSave against real bytes.
func buildOriginalFile() (original []byte, prevXRefOffset int64, reg *registry.Registry, root object.Reference) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := map[int]int{}
	write := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	write(1, "<< /Type /Catalog /Pages 2 0 R >>")
	write(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	write(3, "<< /Type /Page /Parent 2 0 R >>")

	prevXRefOffset = int64(buf.Len())
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[i], 0)
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", prevXRefOffset)

	reg = registry.New(nil)
	root = object.Reference{Num: 1, Gen: 0}
	rootDict := object.NewDict()
	rootDict.Set("Type", object.Name("Catalog"))
	rootDict.Set("Pages", object.Reference{Num: 2, Gen: 0})
	reg.Define(1, 0, rootDict)

	pagesDict := object.NewDict()
	pagesDict.Set("Type", object.Name("Pages"))
	pagesDict.Set("Kids", object.Array{object.Reference{Num: 3, Gen: 0}})
	pagesDict.Set("Count", object.Integer(1))
	reg.Define(2, 0, pagesDict)

	pageDict := object.NewDict()
	pageDict.Set("Type", object.Name("Page"))
	pageDict.Set("Parent", object.Reference{Num: 2, Gen: 0})
	pageDict.Set("Rotate", object.Integer(0))
	reg.Define(3, 0, pageDict)

	return buf.Bytes(), prevXRefOffset, reg, root
}

func TestIncrementalSavePreservesOriginalBytesAsPrefix(t *testing.T) {
	original, prevXRefOffset, reg, root := buildOriginalFile()

	ref3 := object.Reference{Num: 3, Gen: 0}
	updated, _, _, _ := reg.RawObject(3)
	dict := updated.(*object.Dict).Clone().(*object.Dict)
	dict.Set("Rotate", object.Integer(90))
	reg.Set(ref3, dict)

	newRef := reg.Allocate()
	newDict := object.NewDict()
	newDict.Set("Type", object.Name("Font"))
	reg.Set(newRef, newDict)

	out, err := IncrementalSave(IncrementalInput{
		Input:          Input{Registry: reg, Header: "1.7", Root: root},
		Original:       original,
		PrevXRefOffset: prevXRefOffset,
	}, Options{})
	require.NoError(t, err)

	require.True(t, len(out) >= len(original))
	assert.Equal(t, original, out[:len(original)], "incremental save must not alter any original byte")
	assert.Contains(t, string(out), "/Prev")
	assert.Contains(t, string(out), "/Rotate 90")
}

func TestIncrementalSaveRoundTripsThroughXRefLoad(t *testing.T) {
	original, prevXRefOffset, reg, root := buildOriginalFile()

	newRef := reg.Allocate()
	newDict := object.NewDict()
	newDict.Set("Type", object.Name("Font"))
	reg.Set(newRef, newDict)

	out, err := IncrementalSave(IncrementalInput{
		Input:          Input{Registry: reg, Header: "1.7", Root: root},
		Original:       original,
		PrevXRefOffset: prevXRefOffset,
	}, Options{})
	require.NoError(t, err)

	result, err := xref.Load(out)
	require.NoError(t, err)
	assert.Equal(t, root, result.Trailer.Root)
	entry, ok := result.Table[newRef.Num]
	require.True(t, ok)
	assert.Equal(t, xref.InUse, entry.Kind)
	_, ok = result.Table[1]
	require.True(t, ok, "the /Prev chain must still expose objects only present in the original section")
}

func TestIncrementalSaveStreamXRefSizeCountsTheXRefStreamItself(t *testing.T) {
	original, prevXRefOffset, reg, root := buildOriginalFile()

	newRef := reg.Allocate()
	newDict := object.NewDict()
	newDict.Set("Type", object.Name("Font"))
	reg.Set(newRef, newDict)

	out, err := IncrementalSave(IncrementalInput{
		Input:          Input{Registry: reg, Header: "1.7", Root: root},
		Original:       original,
		PrevXRefOffset: prevXRefOffset,
		PrevUsedStream: true,
	}, Options{})
	require.NoError(t, err)

	result, err := xref.Load(out)
	require.NoError(t, err)
	assert.True(t, result.UsedXRefStreams)

	highest := 0
	for num := range result.Table {
		if num > highest {
			highest = num
		}
	}
	assert.Equal(t, highest+1, result.Trailer.Size, "/Size must count the xref stream object itself")
}

func TestIncrementalSaveWritesFreedObjectsAsFreeEntries(t *testing.T) {
	original, prevXRefOffset, reg, root := buildOriginalFile()

	reg.Delete(object.Reference{Num: 3, Gen: 0})

	out, err := IncrementalSave(IncrementalInput{
		Input:          Input{Registry: reg, Header: "1.7", Root: root},
		Original:       original,
		PrevXRefOffset: prevXRefOffset,
	}, Options{})
	require.NoError(t, err)

	result, err := xref.Load(out)
	require.NoError(t, err)
	entry, ok := result.Table[3]
	require.True(t, ok)
	assert.Equal(t, xref.Free, entry.Kind)
}
