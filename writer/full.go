package writer

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/registry"
)

// Input bundles everything a save needs from the document layer, kept
// separate from the root package's Document type to avoid an import
// cycle (writer is imported by the root package, not the reverse).
type Input struct {
	Registry *registry.Registry
	Header   string // minor version, e.g. "1.7"

	Root       object.Reference
	Info       object.Reference
	HasInfo    bool
	Encrypt    object.Reference
	HasEncrypt bool
	ID         object.Array
}

// FullSave renders the entire reachable object graph from scratch:
// unreachable objects are garbage collected,
// every surviving object is (optionally) compressed and encrypted, and a
// fresh cross-reference section is written.
func FullSave(in Input, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("writer: invalid options: %w", err)
	}

	roots := []object.Reference{in.Root}
	if in.HasInfo {
		roots = append(roots, in.Info)
	}
	if in.HasEncrypt {
		roots = append(roots, in.Encrypt)
	}
	reachable, err := Reachable(in.Registry, roots...)
	if err != nil {
		return nil, fmt.Errorf("writer: walking reachable objects: %w", err)
	}

	var out []byte
	out = append(out, []byte(fmt.Sprintf("%%PDF-%s\n", orDefault(in.Header, "1.7")))...)
	out = append(out, []byte("%")...)
	out = append(out, []byte{0xe2, 0xe3, 0xcf, 0xd3}...)
	out = append(out, '\n')

	var entries []xrefEntry
	entries = append(entries, xrefEntry{Num: 0, Free: true, Gen: 65535})

	for _, ref := range in.Registry.Entries() {
		if !reachable[ref] {
			continue
		}
		obj, err := in.Registry.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("writer: resolving %s: %w", ref, err)
		}
		offset := int64(len(out))
		out = append(out, []byte(fmt.Sprintf("%d %d obj\n", ref.Num, ref.Gen))...)
		out = append(out, serializeObject(ref, obj, opts, in.HasEncrypt && ref == in.Encrypt)...)
		out = append(out, []byte("\nendobj\n")...)
		entries = append(entries, xrefEntry{Num: ref.Num, Gen: ref.Gen, Offset: offset})
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

	if opts.XRefForm == StreamXRef {
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

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
