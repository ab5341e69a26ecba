package writer

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/registry"
)

// IncrementalInput extends Input with the state only an incremental save
// needs: the original file's bytes (copied verbatim) and the byte offset
// of its final cross-reference section, so the new one can chain to it
// via /Prev.
type IncrementalInput struct {
	Input
	Original       []byte
	PrevXRefOffset int64
	PrevUsedStream bool // the original file's final xref was a stream, not a table
}

// IncrementalSave appends only the objects CollectChanges reports as
// modified, created or freed, leaving every prior byte untouched: the
// first len(in.Original) bytes of the result equal in.Original exactly.
func IncrementalSave(in IncrementalInput, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("writer: invalid options: %w", err)
	}

	changes := CollectChanges(in.Registry)
	refs := changes.Refs()

	out := append([]byte(nil), in.Original...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}

	var entries []xrefEntry
	for _, ref := range refs {
		_, gen, status, ok := in.Registry.RawObject(ref.Num)
		if !ok {
			continue
		}
		if status == registry.Free {
			entries = append(entries, xrefEntry{Num: ref.Num, Gen: gen, Free: true})
			continue
		}
		resolved, err := in.Registry.Resolve(object.Reference{Num: ref.Num, Gen: gen})
		if err != nil {
			return nil, fmt.Errorf("writer: resolving %s: %w", ref, err)
		}
		offset := int64(len(out))
		out = append(out, []byte(fmt.Sprintf("%d %d obj\n", ref.Num, gen))...)
		out = append(out, serializeObject(object.Reference{Num: ref.Num, Gen: gen}, resolved, opts, in.HasEncrypt && ref.Num == in.Encrypt.Num)...)
		out = append(out, []byte("\nendobj\n")...)
		entries = append(entries, xrefEntry{Num: ref.Num, Gen: gen, Offset: offset})
	}

	size := in.Registry.MaxObjectNumber() + 1

	trailerDict := object.NewDict()
	trailerDict.Set("Size", object.Integer(size))
	trailerDict.Set("Root", in.Root)
	if in.HasInfo {
		trailerDict.Set("Info", in.Info)
	}
	if in.HasEncrypt {
		trailerDict.Set("Encrypt", in.Encrypt)
	}
	if in.ID != nil {
		trailerDict.Set("ID", in.ID)
	}
	trailerDict.Set("Prev", object.Integer(in.PrevXRefOffset))

	xrefForm := opts.XRefForm
	if in.PrevUsedStream {
		xrefForm = StreamXRef
	}

	if xrefForm == StreamXRef {
		xrefRef := in.Registry.Allocate()
		trailerDict.Set("Size", object.Integer(xrefRef.Num+1))
		entries = append(entries, xrefEntry{Num: xrefRef.Num, Gen: xrefRef.Gen, Offset: int64(len(out))})
		body := buildXRefStreamObject(xrefRef, entries, trailerDict, opts.Compress, defaultedLevel(opts))
		xrefOffset := int64(len(out))
		out = append(out, []byte(fmt.Sprintf("%d %d obj\n", xrefRef.Num, xrefRef.Gen))...)
		out = append(out, body...)
		out = append(out, []byte("\nendobj\n")...)
		out = append(out, []byte(fmt.Sprintf("startxref\n%d\n%%%%EOF", xrefOffset))...)
		return out, nil
	}

	xrefOffset := int64(len(out))
	out = append(out, writeClassicSection(entries)...)
	out = append(out, []byte("trailer\n")...)
	out = append(out, []byte(trailerDict.Write(nil))...)
	out = append(out, []byte(fmt.Sprintf("\nstartxref\n%d\n%%%%EOF", xrefOffset))...)
	return out, nil
}
