// Package registry implements the in-memory object registry: a mapping
// from (object number, generation) to the current object, with a
// per-slot dirty/new/free flag rather than a dirty flag carried by the
// object value itself — dirtiness is a property of a slot, not of the
// object value.
package registry

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
)

// Status is the lifecycle state of a registry slot.
type Status uint8

const (
	// Original objects were produced by the parser and are unmodified.
	Original Status = iota
	// Dirty objects were parsed, then replaced via Set.
	Dirty
	// New objects were created by Allocate and never existed on disk
	// under this object number (or this generation, after a free/reuse).
	New
	// Free slots resolve to Null; the object number may be reused once
	// its generation has been incremented.
	Free
)

func (s Status) String() string {
	switch s {
	case Original:
		return "original"
	case Dirty:
		return "dirty"
	case New:
		return "new"
	case Free:
		return "free"
	default:
		return "<invalid status>"
	}
}

// Resolver lazily materializes an object on first access, e.g. by
// invoking the parser against the byte offset recorded by the xref
// reader. A nil Resolver means every slot must already carry its Object.
type Resolver func(num, gen int) (object.Object, error)

type slot struct {
	gen    int
	obj    object.Object // nil until lazily materialized
	status Status
}

// RefResolver is the read-only interface the core exposes to out-of-scope
// consumers (font parsing, content-stream rendering, page-tree traversal,
// the high-level document API): indirect reference in, object out.
type RefResolver interface {
	Resolve(ref object.Reference) (object.Object, error)
}

// MutableRegistry is the read/write interface the core exposes upward for
// document mutation: allocate, replace, delete.
type MutableRegistry interface {
	RefResolver
	Allocate() object.Reference
	Set(ref object.Reference, obj object.Object)
	Delete(ref object.Reference)
}

// Registry owns every object keyed by (obj#, gen). It is not safe for
// concurrent mutation; concurrent reads of distinct immutable objects are
// fine as long as nothing is writing.
type Registry struct {
	slots    map[int]*slot
	order    []int // object numbers, in first-seen order, for deterministic emission
	resolver Resolver
	maxNum   int
}

var _ MutableRegistry = (*Registry)(nil)

// New returns an empty Registry. resolver may be nil if every object will
// be inserted up front via Set (e.g. when building a document from
// scratch rather than loading one).
func New(resolver Resolver) *Registry {
	return &Registry{slots: make(map[int]*slot), resolver: resolver}
}

func (r *Registry) touch(num int) {
	if _, ok := r.slots[num]; !ok {
		r.order = append(r.order, num)
	}
	if num > r.maxNum {
		r.maxNum = num
	}
}

// Define registers an object coming from the parser/xref reader, i.e. an
// Original slot with a known generation but not necessarily a
// materialized value yet (obj may be nil to defer to the Resolver).
func (r *Registry) Define(num, gen int, obj object.Object) {
	r.touch(num)
	r.slots[num] = &slot{gen: gen, obj: obj, status: Original}
}

// DefineFree registers a free slot at the given generation, as reported
// by the cross-reference table.
func (r *Registry) DefineFree(num, gen int) {
	r.touch(num)
	r.slots[num] = &slot{gen: gen, status: Free}
}

// Resolve implements RefResolver: it returns the object named by ref, or
// Null if ref does not (or no longer) resolve — an undefined or freed
// reference is never an error.
func (r *Registry) Resolve(ref object.Reference) (object.Object, error) {
	s, ok := r.slots[ref.Num]
	if !ok || s.status == Free || s.gen != ref.Gen {
		return object.Null{}, nil
	}
	if s.obj == nil {
		if r.resolver == nil {
			return object.Null{}, nil
		}
		// assign null first so a malicious/cyclic reference graph cannot
		// recurse back into this slot during resolution
		s.obj = object.Null{}
		obj, err := r.resolver(ref.Num, ref.Gen)
		if err != nil {
			return nil, fmt.Errorf("registry: resolving %d %d R: %w", ref.Num, ref.Gen, err)
		}
		s.obj = obj
	}
	return s.obj, nil
}

// Set replaces the object at ref, preserving its current generation, and
// marks the slot Dirty (New slots stay New: they still do not exist on
// disk, so there is nothing to consider "modified").
func (r *Registry) Set(ref object.Reference, obj object.Object) {
	s, ok := r.slots[ref.Num]
	if !ok {
		r.touch(ref.Num)
		r.slots[ref.Num] = &slot{gen: ref.Gen, obj: obj, status: New}
		return
	}
	s.obj = obj
	if s.status != New {
		s.status = Dirty
	}
}

// Allocate reserves the next free object number at generation 0 and
// marks it New.
func (r *Registry) Allocate() object.Reference {
	num := r.maxNum + 1
	r.touch(num)
	r.slots[num] = &slot{gen: 0, status: New}
	return object.Reference{Num: num, Gen: 0}
}

// Delete marks ref's slot Free and bumps its stored generation, so a
// stale handle to the old (num, gen) resolves to Null rather than to
// whatever is written next. Allocate never hands the number out again; a
// later Set on the same number refills the slot at the bumped generation.
func (r *Registry) Delete(ref object.Reference) {
	s, ok := r.slots[ref.Num]
	if !ok {
		r.touch(ref.Num)
		r.slots[ref.Num] = &slot{gen: ref.Gen + 1, status: Free}
		return
	}
	s.obj = nil
	s.gen = ref.Gen + 1
	s.status = Free
}

// MaxObjectNumber returns the highest object number ever seen.
func (r *Registry) MaxObjectNumber() int { return r.maxNum }

// NextObjectNumber returns the object number Allocate would hand out next.
func (r *Registry) NextObjectNumber() int { return r.maxNum + 1 }

// Entries returns every known reference, in stable insertion order,
// including free slots.
func (r *Registry) Entries() []object.Reference {
	out := make([]object.Reference, 0, len(r.order))
	for _, num := range r.order {
		s := r.slots[num]
		out = append(out, object.Reference{Num: num, Gen: s.gen})
	}
	return out
}

// Status returns the slot status for ref's object number (not re-checking
// ref.Gen against the stored generation — callers that need strict
// matching should consult Entries()).
func (r *Registry) Status(num int) (Status, bool) {
	s, ok := r.slots[num]
	if !ok {
		return 0, false
	}
	return s.status, true
}

// Dirty returns references whose slots are Dirty.
func (r *Registry) Dirty() []object.Reference { return r.filter(Dirty) }

// New returns references whose slots are New.
func (r *Registry) New() []object.Reference { return r.filter(New) }

// Free returns references whose slots are Free.
func (r *Registry) Free() []object.Reference { return r.filter(Free) }

func (r *Registry) filter(want Status) []object.Reference {
	var out []object.Reference
	for _, num := range r.order {
		s := r.slots[num]
		if s.status == want {
			out = append(out, object.Reference{Num: num, Gen: s.gen})
		}
	}
	return out
}

// ClearDirty clears the dirty/new flags on every slot, promoting New and
// Dirty slots to Original. Called once after a successful write.
func (r *Registry) ClearDirty() {
	for _, s := range r.slots {
		if s.status == Dirty || s.status == New {
			s.status = Original
		}
	}
}

// RawObject returns the raw stored object for num without triggering lazy
// resolution or generation checks; used internally by the writer, which
// walks every slot regardless of what a caller's Reference says its
// generation is.
func (r *Registry) RawObject(num int) (object.Object, int, Status, bool) {
	s, ok := r.slots[num]
	if !ok {
		return nil, 0, 0, false
	}
	return s.obj, s.gen, s.status, true
}
