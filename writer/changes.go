package writer

import (
	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/registry"
)

// ChangeSet partitions a registry's entries by status,
// used only on incremental save.
type ChangeSet struct {
	Modified        []object.Reference
	Created         []object.Reference
	Freed           []object.Reference
	MaxObjectNumber int
}

// CollectChanges walks reg and returns the modified and created slots,
// every Free slot (whether freed by Delete or already free when the
// document was loaded), and the highest object number seen.
func CollectChanges(reg *registry.Registry) ChangeSet {
	return ChangeSet{
		Modified:        reg.Dirty(),
		Created:         reg.New(),
		Freed:           reg.Free(),
		MaxObjectNumber: reg.MaxObjectNumber(),
	}
}

// Refs returns every reference an incremental save's cross-reference
// section lists: the modified and created ones plus every Free slot,
// including slots that were already free in the loaded file.
func (c ChangeSet) Refs() []object.Reference {
	out := make([]object.Reference, 0, len(c.Modified)+len(c.Created)+len(c.Freed))
	out = append(out, c.Modified...)
	out = append(out, c.Created...)
	out = append(out, c.Freed...)
	return out
}
