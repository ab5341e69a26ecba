package filter

import (
	"bytes"
	"fmt"

	"github.com/benoitkugler/pdfgraph/object"
)

// predictorParams mirrors the /DecodeParms entries that govern PNG and
// TIFF prediction, shared by FlateDecode and LZWDecode.
type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func parsePredictorParams(params *object.Dict) (predictorParams, error) {
	out := predictorParams{predictor: 1, colors: 1, bpc: 8, columns: 1}
	if params == nil {
		return out, nil
	}
	if v, ok := params.Get("Predictor"); ok {
		i, ok := v.(object.Integer)
		if !ok {
			return out, fmt.Errorf("Predictor must be an integer")
		}
		out.predictor = int(i)
	}
	switch out.predictor {
	case 1, 2, 10, 11, 12, 13, 14, 15:
	default:
		return out, fmt.Errorf("unsupported Predictor %d", out.predictor)
	}
	if v, ok := params.Get("Colors"); ok {
		i, ok := v.(object.Integer)
		if !ok || i <= 0 {
			return out, fmt.Errorf("Colors must be a positive integer")
		}
		out.colors = int(i)
	}
	if v, ok := params.Get("BitsPerComponent"); ok {
		i, ok := v.(object.Integer)
		if !ok {
			return out, fmt.Errorf("BitsPerComponent must be an integer")
		}
		switch i {
		case 1, 2, 4, 8, 16:
		default:
			return out, fmt.Errorf("unsupported BitsPerComponent %d", i)
		}
		out.bpc = int(i)
	}
	if v, ok := params.Get("Columns"); ok {
		i, ok := v.(object.Integer)
		if !ok || i <= 0 {
			return out, fmt.Errorf("Columns must be a positive integer")
		}
		out.columns = int(i)
	}
	return out, nil
}

func (p predictorParams) rowSize() int {
	return (p.bpc*p.colors*p.columns + 7) / 8
}

// unpredict reverses PNG (predictor >= 10) or TIFF (predictor == 2)
// prediction. predictor 1 (or absent params) is a no-op.
func unpredict(data []byte, params *object.Dict) ([]byte, error) {
	pp, err := parsePredictorParams(params)
	if err != nil {
		return nil, err
	}
	if pp.predictor <= 1 {
		return data, nil
	}
	if pp.predictor == 2 {
		return unpredictTIFF(data, pp)
	}
	return unpredictPNG(data, pp)
}

// predict applies the inverse transform before re-encoding, using the
// predictor named by the same params. PNG rows are always re-filtered with
// the Up tag (see predictPNG), so the result need not match the bytes the
// data was originally decoded from.
func predict(data []byte, params *object.Dict) ([]byte, error) {
	pp, err := parsePredictorParams(params)
	if err != nil {
		return nil, err
	}
	if pp.predictor <= 1 {
		return data, nil
	}
	if pp.predictor == 2 {
		return predictTIFF(data, pp)
	}
	return predictPNG(data, pp)
}

func bytesPerPixel(pp predictorParams) int {
	bpp := (pp.bpc*pp.colors + 7) / 8
	if bpp < 1 {
		bpp = 1
	}
	return bpp
}

func unpredictPNG(data []byte, pp predictorParams) ([]byte, error) {
	rowSize := pp.rowSize()
	bpp := bytesPerPixel(pp)
	stride := rowSize + 1

	var out bytes.Buffer
	prev := make([]byte, rowSize)
	for off := 0; off+stride <= len(data); off += stride {
		tag := data[off]
		cur := make([]byte, rowSize)
		copy(cur, data[off+1:off+stride])
		if err := unfilterRow(tag, cur, prev, bpp); err != nil {
			return nil, err
		}
		out.Write(cur)
		prev = cur
	}
	return out.Bytes(), nil
}

func unfilterRow(tag byte, cur, prev []byte, bpp int) error {
	switch tag {
	case 0:
	case 1:
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case 2:
		for i := range cur {
			cur[i] += prev[i]
		}
	case 3:
		for i := 0; i < bpp; i++ {
			cur[i] += prev[i] / 2
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += byte((int(cur[i-bpp]) + int(prev[i])) / 2)
		}
	case 4:
		paethUnfilter(cur, prev, bpp)
	default:
		return fmt.Errorf("unsupported PNG predictor tag %d", tag)
	}
	return nil
}

func paethUnfilter(cur, prev []byte, bpp int) {
	for i := 0; i < bpp; i++ {
		a, c := int32(0), int32(0)
		for j := i; j < len(cur); j += bpp {
			b := int32(prev[j])
			cur[j] += byte(paethPredictor(a, b, c))
			a = int32(cur[j])
			c = b
		}
	}
}

func paethPredictor(a, b, c int32) int32 {
	p := a + b - c
	pa := absInt32(p - a)
	pb := absInt32(p - b)
	pc := absInt32(p - c)
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func absInt32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// predictPNG re-encodes with the Up filter uniformly: it is always valid
// (losslessly reversible) regardless of which tag the original used, so
// an incremental save does not need to remember the writer's original
// per-row filter choice.
func predictPNG(data []byte, pp predictorParams) ([]byte, error) {
	rowSize := pp.rowSize()
	if rowSize <= 0 || len(data)%rowSize != 0 {
		return nil, fmt.Errorf("predictor: data length %d is not a multiple of row size %d", len(data), rowSize)
	}
	var out bytes.Buffer
	prev := make([]byte, rowSize)
	for off := 0; off < len(data); off += rowSize {
		row := data[off : off+rowSize]
		out.WriteByte(2)
		for i, b := range row {
			out.WriteByte(b - prev[i])
		}
		prev = row
	}
	return out.Bytes(), nil
}

func unpredictTIFF(data []byte, pp predictorParams) ([]byte, error) {
	rowSize := pp.rowSize()
	if rowSize <= 0 || len(data)%rowSize != 0 {
		return nil, fmt.Errorf("predictor: data length %d is not a multiple of row size %d", len(data), rowSize)
	}
	out := append([]byte(nil), data...)
	if pp.bpc != 8 {
		return out, nil // only 8 bpc horizontal differencing is implemented
	}
	for off := 0; off < len(out); off += rowSize {
		row := out[off : off+rowSize]
		for i := pp.colors; i < len(row); i++ {
			row[i] += row[i-pp.colors]
		}
	}
	return out, nil
}

func predictTIFF(data []byte, pp predictorParams) ([]byte, error) {
	rowSize := pp.rowSize()
	if rowSize <= 0 || len(data)%rowSize != 0 {
		return nil, fmt.Errorf("predictor: data length %d is not a multiple of row size %d", len(data), rowSize)
	}
	out := append([]byte(nil), data...)
	if pp.bpc != 8 {
		return out, nil
	}
	for off := 0; off < len(out); off += rowSize {
		row := out[off : off+rowSize]
		for i := len(row) - 1; i >= pp.colors; i-- {
			row[i] -= row[i-pp.colors]
		}
	}
	return out, nil
}
