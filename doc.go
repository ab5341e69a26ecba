// Package pdfgraph loads, mutates and re-serializes PDF files: a
// tokenizer and parser build a typed object graph over a cross-reference
// table that may need recovery, an object registry tracks what has
// changed, and a writer turns that graph back into bytes either as a
// fresh file or as a byte-identical incremental append.
//
// Font parsing, content-stream rendering, form-field layout, annotation
// semantics and page-tree traversal are out of scope; callers reach them
// by resolving references themselves through Document.Resolve.
package pdfgraph

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/benoitkugler/pdfgraph/crypt"
	"github.com/benoitkugler/pdfgraph/filter"
	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/parse"
	"github.com/benoitkugler/pdfgraph/registry"
	"github.com/benoitkugler/pdfgraph/writer"
	"github.com/benoitkugler/pdfgraph/xref"
)

// BlockerReason names why an incremental save must be refused.
type BlockerReason string

const (
	Linearized         BlockerReason = "linearized"
	BruteForceRecovery BlockerReason = "brute-force-recovery"
	EncryptionAdded    BlockerReason = "encryption-added"
	EncryptionRemoved  BlockerReason = "encryption-removed"
	EncryptionChanged  BlockerReason = "encryption-changed"
)

// LoadOptions controls how Load authenticates and tolerates a source file.
type LoadOptions struct {
	// Passwords are tried, in order, as both user and owner password
	// candidates against an encrypted document's security handler. A
	// blank password is always tried first regardless of this list.
	Passwords []string
}

// Document is the root handle on a loaded (or newly created) PDF object
// graph: the registry of objects, the security handler if the file is
// encrypted, and enough of the original trailer/header to decide whether
// an incremental save is possible.
type Document struct {
	reg *registry.Registry

	header  string // e.g. "1.7", the minor version from the %PDF- line
	trailer xref.Trailer

	security *crypt.SecurityHandler

	linearized bool
	recovered  bool

	// original holds the exact bytes Load was given; SaveIncremental
	// appends to it unmodified. Nil for documents created from scratch.
	original []byte

	// encryptRef is the reference to the /Encrypt dictionary, original or
	// newly assigned, so the writer can recognize and skip it.
	encryptRef    object.Reference
	hadEncryptRef bool // the original trailer named an /Encrypt dictionary
	encryptAdded  bool // SetSecurityHandler called on a document that had none
	encryptRemoved bool // RemoveSecurityHandler called on a document that had one

	objStreamCache map[int]objectStreamEntries

	// table is the cross-reference table Load built, kept around so the
	// resolver's length-resolver closure can look up an indirect
	// /Length's own offset without re-deriving it.
	table xref.Table

	// startXRefOffset and usedXRefStreams describe the original file's
	// final cross-reference section, so SaveIncremental can chain a new
	// one to it via /Prev in the same form.
	startXRefOffset int64
	usedXRefStreams bool

	warnings []error
}

// Warnings returns the non-fatal recoveries accumulated while resolving
// objects lazily (a stream whose bytes could not be decrypted): the
// core stays silent by design and surfaces these instead of
// logging them.
func (d *Document) Warnings() []error { return d.warnings }

func (d *Document) warn(err error) { d.warnings = append(d.warnings, err) }

// Registry exposes mutation access: allocate, set, delete.
func (d *Document) Registry() registry.MutableRegistry { return d.reg }

// Resolve traverses a single level of indirection; non-reference objects
// are returned unchanged, and a dangling or freed reference resolves to
// Null rather than an error.
func (d *Document) Resolve(o object.Object) (object.Object, error) {
	ref, ok := o.(object.Reference)
	if !ok {
		return o, nil
	}
	return d.reg.Resolve(ref)
}

// ResolveDeep follows chained references until a non-Reference value (or
// Null) is reached, guarding against reference cycles.
func (d *Document) ResolveDeep(o object.Object) (object.Object, error) {
	seen := map[object.Reference]bool{}
	for {
		ref, ok := o.(object.Reference)
		if !ok {
			return o, nil
		}
		if seen[ref] {
			return object.Null{}, nil
		}
		seen[ref] = true
		next, err := d.reg.Resolve(ref)
		if err != nil {
			return nil, err
		}
		o = next
	}
}

// Root returns the document catalog dictionary.
func (d *Document) Root() (*object.Dict, error) {
	obj, err := d.ResolveDeep(d.trailer.Root)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*object.Dict)
	if !ok {
		return nil, &StructuralError{err: fmt.Errorf("/Root does not resolve to a dictionary")}
	}
	return dict, nil
}

// Trailer returns the merged trailer information gathered while loading
// the cross-reference chain.
func (d *Document) Trailer() xref.Trailer { return d.trailer }

// CanSaveIncrementally reports whether SaveIncremental is available, and
// if not, why.
func (d *Document) CanSaveIncrementally() (BlockerReason, bool) {
	if d.linearized {
		return Linearized, false
	}
	if d.recovered {
		return BruteForceRecovery, false
	}
	switch {
	case d.encryptAdded:
		return EncryptionAdded, false
	case d.encryptRemoved:
		return EncryptionRemoved, false
	}
	if d.hadEncryptRef {
		if status, ok := d.reg.Status(d.encryptRef.Num); ok && status == registry.Dirty {
			return EncryptionChanged, false
		}
	}
	return "", true
}

// SetSecurityHandler installs h as the document's security handler,
// registering its encryption dictionary at ref. Calling this on a
// document that was not originally encrypted blocks incremental save.
func (d *Document) SetSecurityHandler(h *crypt.SecurityHandler, ref object.Reference) {
	if !d.hadEncryptRef {
		d.encryptAdded = true
	}
	d.security = h
	d.encryptRef = ref
}

// RemoveSecurityHandler strips encryption from the document. Calling
// this on a document that was originally encrypted blocks incremental
// save.
func (d *Document) RemoveSecurityHandler() {
	if d.hadEncryptRef {
		d.encryptRemoved = true
	}
	d.security = nil
}

// New returns an empty Document with no backing bytes, suitable for
// building a PDF from scratch: every object is inserted through
// Registry().Allocate/Set, and Save (never SaveIncremental, since there
// is no original byte buffer to append to) produces the file.
func New() *Document {
	reg := registry.New(nil)

	pages := reg.Allocate()
	pagesDict := object.NewDict()
	pagesDict.Set("Type", object.Name("Pages"))
	pagesDict.Set("Kids", object.Array{})
	pagesDict.Set("Count", object.Integer(0))
	reg.Set(pages, pagesDict)

	root := reg.Allocate()
	rootDict := object.NewDict()
	rootDict.Set("Type", object.Name("Catalog"))
	rootDict.Set("Pages", pages)
	reg.Set(root, rootDict)

	info := reg.Allocate()
	reg.Set(info, object.NewDict())

	id, _ := object.NewDocumentID()
	return &Document{
		reg:            reg,
		header:         "1.7",
		trailer:        xref.Trailer{Root: root, HasRoot: true, Info: info, HasInfo: true, ID: id, Size: 0},
		objStreamCache: map[int]objectStreamEntries{},
	}
}

// Load parses data, builds the cross-reference table (recovering it by
// brute force if necessary), and authenticates against the standard
// security handler if the document is encrypted.
func Load(data []byte, opts LoadOptions) (*Document, error) {
	header, err := parseHeader(data)
	if err != nil {
		return nil, &SyntaxError{err: err}
	}

	result, err := xref.Load(data)
	if err != nil {
		return nil, &StructuralError{err: fmt.Errorf("loading cross-reference table: %w", err)}
	}
	startXRefOffset, _ := xref.LocateStartXRef(data)

	d := &Document{
		header:          header,
		trailer:         result.Trailer,
		recovered:       result.Recovered,
		original:        data,
		objStreamCache:  map[int]objectStreamEntries{},
		table:           result.Table,
		startXRefOffset: startXRefOffset,
		usedXRefStreams: result.UsedXRefStreams,
	}
	d.linearized = detectLinearized(data, result.Table)

	if result.Trailer.Encrypt != nil {
		if ref, ok := result.Trailer.Encrypt.(object.Reference); ok {
			d.encryptRef = ref
			d.hadEncryptRef = true
		}
		if err := d.setupSecurityHandler(data, result.Table, opts); err != nil {
			return nil, &CryptoError{err: err}
		}
	}

	d.reg = registry.New(d.makeResolver(data, result.Table))
	for num, entry := range result.Table {
		switch entry.Kind {
		case xref.Free:
			d.reg.DefineFree(num, entry.Gen)
		default:
			d.reg.Define(num, entry.Gen, nil)
		}
	}

	return d, nil
}

// makeResolver returns the registry.Resolver that lazily parses an
// object from either a direct file offset or a compressed object stream,
// decrypting it first if the document is encrypted.
func (d *Document) makeResolver(data []byte, table xref.Table) registry.Resolver {
	return func(num, gen int) (object.Object, error) {
		entry, ok := table[num]
		if !ok {
			return object.Null{}, nil
		}
		switch entry.Kind {
		case xref.Compressed:
			return d.resolveCompressed(data, table, entry)
		case xref.InUse:
			return d.resolveDirect(data, num, gen, entry)
		default:
			return object.Null{}, nil
		}
	}
}

func (d *Document) resolveDirect(data []byte, num, gen int, entry xref.Entry) (object.Object, error) {
	// A stream's /Length may be an indirect reference to a plain integer
	// object elsewhere in the file; resolving it here must not recurse
	// into the registry (which is still being populated), so it is
	// looked up directly against the xref table instead.
	lenResolver := func(ref object.Reference) (int64, bool) {
		if ref.Num == num {
			return 0, false // a stream cannot declare its own length circularly
		}
		other, ok := d.table[ref.Num]
		if !ok || other.Kind != xref.InUse {
			return 0, false
		}
		p := parse.NewAt(data, int(other.Offset), nil)
		_, _, obj, err := p.ParseIndirectObject()
		if err != nil {
			return 0, false
		}
		n, ok := obj.(object.Integer)
		if !ok {
			return 0, false
		}
		return int64(n), true
	}

	p := parse.NewAt(data, int(entry.Offset), lenResolver)
	n, g, obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("pdfgraph: object %d %d at offset %d: %w", num, gen, entry.Offset, err)
	}
	if n != num {
		return nil, fmt.Errorf("pdfgraph: xref points to object %d at an offset declaring object %d", num, n)
	}

	ref := object.Reference{Num: num, Gen: g}
	if d.security == nil || (d.hadEncryptRef && ref.Num == d.encryptRef.Num) {
		// the encryption dictionary itself is never encrypted
		return obj, nil
	}

	if stream, ok := obj.(*object.Stream); ok {
		if isMetadataStream(stream) && !d.security.EncryptMetadata {
			return obj, nil
		}
		plain, err := d.security.DecryptBytes(ref, stream.Raw)
		if err != nil {
			d.warn(&CryptoError{err: fmt.Errorf("decrypting stream %d %d R: %w", num, g, err)})
		} else {
			stream.Raw = plain
		}
		decryptStringsIn(stream.Dict, d.security, ref)
		return obj, nil
	}
	if s, ok := obj.(object.String); ok {
		if plain, err := d.security.DecryptBytes(ref, s.Bytes); err == nil {
			return object.String{Bytes: plain, Form: s.Form}, nil
		}
		return obj, nil
	}
	decryptStringsIn(obj, d.security, ref)
	return obj, nil
}

func isMetadataStream(s *object.Stream) bool {
	t, _ := dictGet(s.Dict, "Type").(object.Name)
	return t == "Metadata"
}

// decryptStringsIn walks dicts/arrays in place, decrypting literal and
// hex strings found inside them; streams and top-level strings are
// handled by the caller. The encryption dictionary itself is excluded by
// the caller never invoking this on it.
func decryptStringsIn(obj object.Object, sec *crypt.SecurityHandler, ref object.Reference) {
	if sec == nil {
		return
	}
	switch v := obj.(type) {
	case *object.Dict:
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			if s, ok := val.(object.String); ok {
				if plain, err := sec.DecryptBytes(ref, s.Bytes); err == nil {
					v.Set(k, object.String{Bytes: plain, Form: s.Form})
				}
				continue
			}
			decryptStringsIn(val, sec, ref)
		}
	case object.Array:
		for i, item := range v {
			if s, ok := item.(object.String); ok {
				if plain, err := sec.DecryptBytes(ref, s.Bytes); err == nil {
					v[i] = object.String{Bytes: plain, Form: s.Form}
				}
				continue
			}
			decryptStringsIn(item, sec, ref)
		}
	case *object.Stream:
		decryptStringsIn(v.Dict, sec, ref)
	}
}

type objectStreamEntries []object.Object

func (d *Document) resolveCompressed(data []byte, table xref.Table, entry xref.Entry) (object.Object, error) {
	entries, ok := d.objStreamCache[entry.StreamObjectNumber]
	if !ok {
		var err error
		entries, err = d.parseObjectStream(data, table, entry.StreamObjectNumber)
		if err != nil {
			return nil, err
		}
		d.objStreamCache[entry.StreamObjectNumber] = entries
	}
	if entry.StreamIndex < 0 || entry.StreamIndex >= len(entries) {
		return nil, fmt.Errorf("pdfgraph: object stream %d has no entry %d", entry.StreamObjectNumber, entry.StreamIndex)
	}
	return entries[entry.StreamIndex], nil
}

// parseObjectStream decodes the ObjStm numbered streamNum: N pairs of
// ASCII integers (object number, offset relative to /First) followed by
// the concatenated object values.
// Compressed objects are never themselves streams or encryption
// dictionaries, so no recursive decryption/decoding is attempted here.
func (d *Document) parseObjectStream(data []byte, table xref.Table, streamNum int) (objectStreamEntries, error) {
	entry, ok := table[streamNum]
	if !ok || entry.Kind != xref.InUse {
		return nil, fmt.Errorf("pdfgraph: missing object stream %d", streamNum)
	}

	p := parse.NewAt(data, int(entry.Offset), nil)
	n, _, obj, err := p.ParseIndirectObject()
	if err != nil || n != streamNum {
		return nil, fmt.Errorf("pdfgraph: parsing object stream %d: %w", streamNum, err)
	}
	stream, ok := obj.(*object.Stream)
	if !ok {
		return nil, fmt.Errorf("pdfgraph: object %d is not a stream", streamNum)
	}

	raw := stream.Raw
	if d.security != nil {
		raw, err = d.security.DecryptBytes(object.Reference{Num: streamNum}, raw)
		if err != nil {
			return nil, fmt.Errorf("pdfgraph: decrypting object stream %d: %w", streamNum, err)
		}
	}

	resolve := func(o object.Object) (object.Object, error) { return o, nil }
	pipeline, err := filter.ParseFilterEntries(dictGet(stream.Dict, "Filter"), dictGet(stream.Dict, "DecodeParms"), resolve)
	if err != nil {
		return nil, &FilterError{err: fmt.Errorf("object stream %d filters: %w", streamNum, err)}
	}
	decoded := raw
	if len(pipeline) > 0 {
		decoded, err = pipeline.Decode(raw)
		if err != nil {
			return nil, &FilterError{err: fmt.Errorf("decoding object stream %d: %w", streamNum, err)}
		}
	}

	first, ok := dictGet(stream.Dict, "First").(object.Integer)
	if !ok {
		return nil, fmt.Errorf("pdfgraph: object stream %d missing /First", streamNum)
	}
	if int(first) > len(decoded) {
		return nil, fmt.Errorf("pdfgraph: object stream %d /First out of bounds", streamNum)
	}
	prolog := bytes.ReplaceAll(decoded[:first], []byte{0}, []byte{' '})
	fields := bytes.Fields(prolog)
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("pdfgraph: object stream %d has an odd number of prolog fields", streamNum)
	}

	count := len(fields) / 2
	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		off, err := parseASCIIInt(fields[2*i+1])
		if err != nil {
			return nil, fmt.Errorf("pdfgraph: object stream %d: %w", streamNum, err)
		}
		offsets[i] = int(first) + off
		if offsets[i] > len(decoded) {
			return nil, fmt.Errorf("pdfgraph: object stream %d offset %d out of bounds", streamNum, offsets[i])
		}
	}

	entries := make(objectStreamEntries, count)
	for i := range entries {
		start, end := offsets[i], len(decoded)
		if i+1 < count {
			end = offsets[i+1]
		}
		obj, err := parse.New(decoded[start:end], nil).ParseObject()
		if err != nil {
			return nil, fmt.Errorf("pdfgraph: object stream %d entry %d: %w", streamNum, i, err)
		}
		entries[i] = obj
	}
	return entries, nil
}

func parseASCIIInt(b []byte) (int, error) {
	n := 0
	neg := false
	for i, c := range b {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a decimal integer: %q", b)
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func dictGet(d *object.Dict, key object.Name) object.Object {
	v, _ := d.Get(key)
	return v
}

var errNoPasswordMatched = errors.New("pdfgraph: no supplied password authenticates this document")

// Save renders the entire reachable object graph from scratch, garbage
// collecting anything no longer reachable from /Root, /Info or /Encrypt.
// It is not subject to CanSaveIncrementally's blockers.
func (d *Document) Save(opts writer.Options) ([]byte, error) {
	out, err := writer.FullSave(d.writerInput(), d.withSecurity(opts))
	if err != nil {
		return nil, err
	}
	d.reg.ClearDirty()
	return out, nil
}

// SaveIncremental appends only the objects changed since Load (or since
// the last successful save) to the original bytes, leaving everything
// before them untouched. It refuses when CanSaveIncrementally does.
func (d *Document) SaveIncremental(opts writer.Options) ([]byte, error) {
	if reason, ok := d.CanSaveIncrementally(); !ok {
		return nil, &IncrementalBlockedError{Reason: reason}
	}

	in := writer.IncrementalInput{
		Input:          d.writerInput(),
		Original:       d.original,
		PrevXRefOffset: d.startXRefOffset,
		PrevUsedStream: d.usedXRefStreams,
	}
	if d.trailer.ID != nil {
		if rotated, err := object.RotateDocumentID(d.trailer.ID); err == nil {
			in.ID = rotated
			d.trailer.ID = rotated
		}
	}

	out, err := writer.IncrementalSave(in, d.withSecurity(opts))
	if err != nil {
		return nil, err
	}
	d.reg.ClearDirty()
	return out, nil
}

func (d *Document) writerInput() writer.Input {
	in := writer.Input{
		Registry:   d.reg,
		Header:     d.header,
		Root:       d.trailer.Root,
		Info:       d.trailer.Info,
		HasInfo:    d.trailer.HasInfo,
		HasEncrypt: d.hadEncryptRef || d.encryptAdded,
		ID:         d.trailer.ID,
	}
	if in.HasEncrypt {
		in.Encrypt = d.encryptRef
	}
	return in
}

// withSecurity fills in opts.Security/EncryptMetadataStreams from the
// document's current security handler, keeping the writer package
// ignorant of crypt.SecurityHandler's full surface.
func (d *Document) withSecurity(opts writer.Options) writer.Options {
	if d.security == nil {
		opts.Security = nil
		return opts
	}
	opts.Security = d.security
	opts.EncryptMetadataStreams = d.security.EncryptMetadata
	return opts
}
