package writer

import (
	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/registry"
)

// Reachable walks the object graph starting at roots (typically /Root,
// /Info and /Encrypt) through Dicts/Arrays/Streams and returns every
// (obj#, gen) reached. Objects outside this set are garbage collected on
// a full save.
func Reachable(resolver registry.RefResolver, roots ...object.Reference) (map[object.Reference]bool, error) {
	seen := map[object.Reference]bool{}
	var walk func(o object.Object) error
	walk = func(o object.Object) error {
		switch v := o.(type) {
		case object.Reference:
			if seen[v] {
				return nil
			}
			seen[v] = true
			resolved, err := resolver.Resolve(v)
			if err != nil {
				return err
			}
			return walk(resolved)
		case *object.Dict:
			for _, k := range v.Keys() {
				val, _ := v.Get(k)
				if err := walk(val); err != nil {
					return err
				}
			}
		case object.Array:
			for _, item := range v {
				if err := walk(item); err != nil {
					return err
				}
			}
		case *object.Stream:
			return walk(v.Dict)
		}
		return nil
	}
	for _, r := range roots {
		if r == (object.Reference{}) {
			continue
		}
		if err := walk(r); err != nil {
			return nil, err
		}
	}
	return seen, nil
}
