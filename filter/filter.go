// Package filter implements the PDF stream filter/codec pipeline: FlateDecode, ASCII85Decode, ASCIIHexDecode, LZWDecode,
// RunLengthDecode, CCITTFaxDecode (decode-only stub), DCTDecode/JPXDecode
// (pass-through), and the PNG/TIFF predictors layered around Flate/LZW.
package filter

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
)

// Names of the supported filters.
const (
	FlateDecode     object.Name = "FlateDecode"
	ASCII85Decode   object.Name = "ASCII85Decode"
	ASCIIHexDecode  object.Name = "ASCIIHexDecode"
	LZWDecode       object.Name = "LZWDecode"
	RunLengthDecode object.Name = "RunLengthDecode"
	CCITTFaxDecode  object.Name = "CCITTFaxDecode"
	DCTDecode       object.Name = "DCTDecode"
	JPXDecode       object.Name = "JPXDecode"
)

// Codec is the uniform interface every filter variant implements. params may be nil.
type Codec interface {
	Decode(data []byte, params *object.Dict) ([]byte, error)
	Encode(data []byte, params *object.Dict) ([]byte, error)
}

func lookup(name object.Name) (Codec, error) {
	switch name {
	case FlateDecode:
		return flateCodec{}, nil
	case ASCII85Decode:
		return ascii85Codec{}, nil
	case ASCIIHexDecode:
		return asciiHexCodec{}, nil
	case LZWDecode:
		return lzwCodec{}, nil
	case RunLengthDecode:
		return runLengthCodec{}, nil
	case CCITTFaxDecode:
		return ccittFaxCodec{}, nil
	case DCTDecode:
		return passthroughCodec{}, nil
	case JPXDecode:
		return passthroughCodec{}, nil
	case "Crypt":
		return passthroughCodec{}, nil
	default:
		return nil, fmt.Errorf("filter: unsupported filter %q", name)
	}
}

// Step is one filter in a pipeline, paired with its decode parameters.
type Step struct {
	Name   object.Name
	Params *object.Dict
}

// Pipeline is an ordered chain of filters, applied in order on decode and
// in reverse order on encode.
type Pipeline []Step

// ParseFilterEntries builds a Pipeline from a stream dictionary's /Filter
// and /DecodeParms entries, which are each either a single value or an
// Array of matching length. resolve is used to follow indirect references
// (the xref stream case requires direct objects only, so callers there
// pass an identity resolver, and a Reference left in either entry is
// rejected as being of the wrong type).
func ParseFilterEntries(filterEntry, parmsEntry object.Object, resolve func(object.Object) (object.Object, error)) (Pipeline, error) {
	if filterEntry == nil {
		return nil, nil
	}
	resolved, err := resolve(filterEntry)
	if err != nil {
		return nil, err
	}
	if object.IsNull(resolved) {
		return nil, nil
	}

	var names []object.Name
	switch v := resolved.(type) {
	case object.Name:
		names = []object.Name{v}
	case object.Array:
		for _, item := range v {
			ri, err := resolve(item)
			if err != nil {
				return nil, err
			}
			n, ok := ri.(object.Name)
			if !ok {
				return nil, fmt.Errorf("filter: /Filter array entry is not a Name: %T", ri)
			}
			names = append(names, n)
		}
	default:
		return nil, fmt.Errorf("filter: /Filter is neither Name nor Array: %T", resolved)
	}

	var parms []*object.Dict
	if parmsEntry != nil {
		rp, err := resolve(parmsEntry)
		if err != nil {
			return nil, err
		}
		switch v := rp.(type) {
		case *object.Dict:
			parms = []*object.Dict{v}
		case object.Array:
			for _, item := range v {
				ri, err := resolve(item)
				if err != nil {
					return nil, err
				}
				if object.IsNull(ri) {
					parms = append(parms, nil)
					continue
				}
				d, ok := ri.(*object.Dict)
				if !ok {
					return nil, fmt.Errorf("filter: /DecodeParms array entry is not a Dict: %T", ri)
				}
				parms = append(parms, d)
			}
		case object.Null:
			// no params
		default:
			return nil, fmt.Errorf("filter: /DecodeParms is neither Dict nor Array: %T", rp)
		}
	}

	out := make(Pipeline, len(names))
	for i, n := range names {
		var p *object.Dict
		if i < len(parms) {
			p = parms[i]
		}
		out[i] = Step{Name: n, Params: p}
	}
	return out, nil
}

// Decode runs every step in order, applying the matching predictor after
// any step that carries one.
func (p Pipeline) Decode(data []byte) ([]byte, error) {
	for _, step := range p {
		codec, err := lookup(step.Name)
		if err != nil {
			return nil, err
		}
		data, err = codec.Decode(data, step.Params)
		if err != nil {
			return nil, fmt.Errorf("filter: %s: %w", step.Name, err)
		}
		data, err = unpredict(data, step.Params)
		if err != nil {
			return nil, fmt.Errorf("filter: %s: predictor: %w", step.Name, err)
		}
	}
	return data, nil
}

// Encode runs the steps in reverse, applying the matching predictor
// before the step that declares it.
func (p Pipeline) Encode(data []byte) ([]byte, error) {
	for i := len(p) - 1; i >= 0; i-- {
		step := p[i]
		predicted, err := predict(data, step.Params)
		if err != nil {
			return nil, fmt.Errorf("filter: %s: predictor: %w", step.Name, err)
		}
		codec, err := lookup(step.Name)
		if err != nil {
			return nil, err
		}
		data, err = codec.Encode(predicted, step.Params)
		if err != nil {
			return nil, fmt.Errorf("filter: %s: %w", step.Name, err)
		}
	}
	return data, nil
}

// Names returns the filter names in pipeline order, for writing /Filter.
func (p Pipeline) Names() []object.Name {
	out := make([]object.Name, len(p))
	for i, s := range p {
		out[i] = s.Name
	}
	return out
}
