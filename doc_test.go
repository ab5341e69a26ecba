package pdfgraph

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/writer"
	"github.com/benoitkugler/pdfgraph/xref"
)

// buildSimplePDF assembles a minimal classic-xref document with a
// catalog, a page tree, and a content stream, computing byte offsets as
// it writes.
func buildSimplePDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := map[int]int{}
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	offsets[4] = buf.Len()
	content := "BT /F1 12 Tf (Hello) Tj ET"
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 5\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[i], 0)
	}
	buf.WriteString("trailer\n<< /Size 5 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)
	return buf.Bytes()
}

func TestLoadResolvesGraph(t *testing.T) {
	doc, err := Load(buildSimplePDF(), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1.7", doc.header)

	root, err := doc.Root()
	require.NoError(t, err)
	typ, _ := root.Get("Type")
	assert.Equal(t, object.Name("Catalog"), typ)

	pagesObj, err := doc.ResolveDeep(mustGet(t, root, "Pages"))
	require.NoError(t, err)
	pages := pagesObj.(*object.Dict)
	count, _ := pages.Get("Count")
	assert.Equal(t, object.Integer(1), count)

	reason, ok := doc.CanSaveIncrementally()
	assert.True(t, ok)
	assert.Equal(t, BlockerReason(""), reason)
}

func TestLoadDanglingReferenceResolvesToNull(t *testing.T) {
	doc, err := Load(buildSimplePDF(), LoadOptions{})
	require.NoError(t, err)

	obj, err := doc.Resolve(object.Reference{Num: 999, Gen: 0})
	require.NoError(t, err)
	assert.Equal(t, object.Null{}, obj)
}

func TestLoadBruteForceRecoveryBlocksIncrementalSave(t *testing.T) {
	data := buildSimplePDF()
	corrupted := bytes.Replace(data, []byte("startxref"), []byte("startxrof"), 1)

	doc, err := Load(corrupted, LoadOptions{})
	require.NoError(t, err)

	reason, ok := doc.CanSaveIncrementally()
	assert.False(t, ok)
	assert.Equal(t, BruteForceRecovery, reason)

	_, err = doc.SaveIncremental(writer.Options{})
	require.Error(t, err)
	var blocked *IncrementalBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, BruteForceRecovery, blocked.Reason)
}

func TestLoadMalformedHeaderReturnsSyntaxError(t *testing.T) {
	_, err := Load([]byte("not a pdf at all"), LoadOptions{})
	require.Error(t, err)
	var syntax *SyntaxError
	assert.True(t, errors.As(err, &syntax))
}

func TestNewDocumentSavesFromScratch(t *testing.T) {
	doc := New()
	root, err := doc.Root()
	require.NoError(t, err)
	assert.NotNil(t, root)

	out, err := doc.Save(writer.Options{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "%PDF-1.7")

	result, err := xref.Load(out)
	require.NoError(t, err)
	assert.Equal(t, doc.trailer.Root, result.Trailer.Root)
}

func TestLoadThenSaveIncrementalPreservesOriginalBytes(t *testing.T) {
	data := buildSimplePDF()
	doc, err := Load(data, LoadOptions{})
	require.NoError(t, err)

	root, err := doc.Root()
	require.NoError(t, err)
	root.Set("Extra", object.Name("Marker"))
	doc.Registry().Set(doc.trailer.Root, root)

	out, err := doc.SaveIncremental(writer.Options{})
	require.NoError(t, err)
	require.True(t, len(out) >= len(data))
	assert.Equal(t, data, out[:len(data)])
	assert.Contains(t, string(out), "/Extra")
}

func TestSaveIncrementalWithNoChangesAppendsNothingButValidTrailer(t *testing.T) {
	data := buildSimplePDF()
	doc, err := Load(data, LoadOptions{})
	require.NoError(t, err)

	out, err := doc.SaveIncremental(writer.Options{})
	require.NoError(t, err)
	require.True(t, len(out) >= len(data), "incremental save must never shrink the original bytes")
	assert.Equal(t, data, out[:len(data)], "the original bytes must be an exact prefix of the result")

	redoc, err := Load(out, LoadOptions{})
	require.NoError(t, err)
	root, err := redoc.Root()
	require.NoError(t, err)
	typ, _ := root.Get("Type")
	assert.Equal(t, object.Name("Catalog"), typ, "the appended update must still resolve to a valid document")
}

func TestLoadThenFullSaveGarbageCollectsUnreachableObjects(t *testing.T) {
	data := buildSimplePDF()
	doc, err := Load(data, LoadOptions{})
	require.NoError(t, err)

	orphan := object.NewDict()
	orphan.Set("Marker", object.Name("Orphan"))
	orphanRef := doc.Registry().Allocate()
	doc.Registry().Set(orphanRef, orphan)

	out, err := doc.Save(writer.Options{})
	require.NoError(t, err)

	result, err := xref.Load(out)
	require.NoError(t, err)
	_, ok := result.Table[orphanRef.Num]
	assert.False(t, ok)
}

// buildObjectStreamPDF builds a document whose catalog and page tree are
// compressed inside an object stream, referenced via a cross-reference
// stream (PDF 1.5+ style).
func buildObjectStreamPDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	// object stream holding objects 1 (Catalog) and 2 (Pages)
	catalogBody := "<< /Type /Catalog /Pages 2 0 R >>"
	pagesBody := "<< /Type /Pages /Kids [] /Count 0 >>"
	prolog := fmt.Sprintf("1 0 2 %d", len(catalogBody)+1)
	content := prolog + " " + catalogBody + " " + pagesBody
	first := len(prolog) + 1

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	objStmOffset := buf.Len()
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n", first, compressed.Len())
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	// cross-reference stream as object 4; W = [1 4 2], per-object-number
	// entries built programmatically to keep field widths unambiguous.
	xrefOffset := buf.Len()
	be := func(v, width int) []byte {
		out := make([]byte, width)
		for i := width - 1; i >= 0; i-- {
			out[i] = byte(v)
			v >>= 8
		}
		return out
	}
	xrefEntry := func(typ, f2, f3 int) []byte {
		out := []byte{byte(typ)}
		out = append(out, be(f2, 4)...)
		out = append(out, be(f3, 2)...)
		return out
	}
	var entries bytes.Buffer
	entries.Write(xrefEntry(0, 0, 0))                // object 0: free
	entries.Write(xrefEntry(2, 3, 0))                // object 1: compressed in objstm 3, index 0
	entries.Write(xrefEntry(2, 3, 1))                // object 2: compressed in objstm 3, index 1
	entries.Write(xrefEntry(1, objStmOffset, 0))      // object 3: the object stream itself
	entries.Write(xrefEntry(1, xrefOffset, 0))        // object 4: this xref stream

	var xrefCompressed bytes.Buffer
	zw2 := zlib.NewWriter(&xrefCompressed)
	_, err = zw2.Write(entries.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw2.Close())

	fmt.Fprintf(&buf, "4 0 obj\n<< /Type /XRef /Size 5 /W [1 4 2] /Root 1 0 R /Filter /FlateDecode /Length %d >>\nstream\n", xrefCompressed.Len())
	buf.Write(xrefCompressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)
	return buf.Bytes()
}

func TestLoadResolvesCompressedObjects(t *testing.T) {
	doc, err := Load(buildObjectStreamPDF(t), LoadOptions{})
	require.NoError(t, err)

	root, err := doc.Root()
	require.NoError(t, err)
	typ, _ := root.Get("Type")
	assert.Equal(t, object.Name("Catalog"), typ)

	pagesObj, err := doc.ResolveDeep(mustGet(t, root, "Pages"))
	require.NoError(t, err)
	pages := pagesObj.(*object.Dict)
	count, _ := pages.Get("Count")
	assert.Equal(t, object.Integer(0), count)
}

func mustGet(t *testing.T, d *object.Dict, key object.Name) object.Object {
	t.Helper()
	v, ok := d.Get(key)
	require.True(t, ok, "missing key %q", key)
	return v
}
