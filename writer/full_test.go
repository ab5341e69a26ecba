package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/registry"
	"github.com/benoitkugler/pdfgraph/xref"
)

func buildGraph() (*registry.Registry, object.Reference) {
	reg := registry.New(nil)

	pages := object.Reference{Num: 2, Gen: 0}
	page := object.Reference{Num: 3, Gen: 0}
	root := object.Reference{Num: 1, Gen: 0}

	rootDict := object.NewDict()
	rootDict.Set("Type", object.Name("Catalog"))
	rootDict.Set("Pages", pages)
	reg.Define(1, 0, rootDict)

	pagesDict := object.NewDict()
	pagesDict.Set("Type", object.Name("Pages"))
	pagesDict.Set("Kids", object.Array{page})
	pagesDict.Set("Count", object.Integer(1))
	reg.Define(2, 0, pagesDict)

	pageDict := object.NewDict()
	pageDict.Set("Type", object.Name("Page"))
	pageDict.Set("Parent", pages)
	reg.Define(3, 0, pageDict)

	return reg, root
}

func TestFullSaveClassicXRefRoundTrips(t *testing.T) {
	reg, root := buildGraph()

	out, err := FullSave(Input{Registry: reg, Header: "1.7", Root: root}, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "%PDF-1.7")

	result, err := xref.Load(out)
	require.NoError(t, err)
	assert.False(t, result.UsedXRefStreams)
	assert.Equal(t, root, result.Trailer.Root)
	for num := 1; num <= 3; num++ {
		entry, ok := result.Table[num]
		require.True(t, ok, "object %d missing from rebuilt xref table", num)
		assert.Equal(t, xref.InUse, entry.Kind)
	}
}

func TestFullSaveStreamXRefRoundTrips(t *testing.T) {
	reg, root := buildGraph()

	out, err := FullSave(Input{Registry: reg, Header: "1.7", Root: root}, Options{XRefForm: StreamXRef})
	require.NoError(t, err)

	result, err := xref.Load(out)
	require.NoError(t, err)
	assert.True(t, result.UsedXRefStreams)
	assert.Equal(t, root, result.Trailer.Root)
	assert.Equal(t, xref.InUse, result.Table[3].Kind)

	highest := 0
	for num := range result.Table {
		if num > highest {
			highest = num
		}
	}
	assert.Equal(t, highest+1, result.Trailer.Size, "/Size must count the xref stream object itself")
}

func TestFullSaveCompressesUnfilteredStreams(t *testing.T) {
	reg, root := buildGraph()

	repeated := make([]byte, 4096)
	for i := range repeated {
		repeated[i] = 'a'
	}
	streamDict := object.NewDict()
	stream := &object.Stream{Dict: streamDict, Raw: repeated}
	reg.Define(3, 0, stream) // replace page 3 with a large stream for this test

	out, err := FullSave(Input{Registry: reg, Header: "1.7", Root: root}, Options{Compress: true, CompressionLevel: -1})
	require.NoError(t, err)
	assert.Less(t, len(out), 4096+200)
	assert.Contains(t, string(out), "FlateDecode")
}

func TestFullSaveGarbageCollectsUnreachableObjects(t *testing.T) {
	reg, root := buildGraph()

	orphanDict := object.NewDict()
	orphanDict.Set("Marker", object.Name("OrphanOnly"))
	reg.Define(99, 0, orphanDict)

	out, err := FullSave(Input{Registry: reg, Header: "1.7", Root: root}, Options{})
	require.NoError(t, err)

	result, err := xref.Load(out)
	require.NoError(t, err)
	_, ok := result.Table[99]
	assert.False(t, ok, "unreachable object 99 should have been collected")
}

func TestFullSaveExcludesEncryptDictFromEncryption(t *testing.T) {
	reg, root := buildGraph()
	encryptRef := reg.Allocate()
	encryptDict := object.NewDict()
	encryptDict.Set("Filter", object.Name("Standard"))
	reg.Set(encryptRef, encryptDict)

	sec := &recordingSecurity{}
	out, err := FullSave(Input{
		Registry:   reg,
		Header:     "1.7",
		Root:       root,
		Encrypt:    encryptRef,
		HasEncrypt: true,
	}, Options{Security: sec})
	require.NoError(t, err)
	require.NotEmpty(t, out)

	for _, ref := range sec.calls {
		assert.NotEqual(t, encryptRef, ref, "the encryption dictionary must never be passed through EncryptBytes")
	}
}

type recordingSecurity struct {
	calls []object.Reference
}

func (r *recordingSecurity) EncryptBytes(ref object.Reference, data []byte) ([]byte, error) {
	r.calls = append(r.calls, ref)
	return data, nil
}
