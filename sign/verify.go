// Package sign verifies digital signatures already present in a loaded
// document: it recomputes the signed digest over the byte range a /Sig
// field claims and checks it against the embedded PKCS#7 SignedData blob.
// It never produces signatures; this engine's writer only has to keep the
// signed bytes unchanged across an incremental save, not
// understand their cryptographic content.
package sign

import (
	"crypto/x509"
	"fmt"
	"sort"

	"go.mozilla.org/pkcs7"

	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/registry"
)

// Result describes the outcome of checking one signature field.
type Result struct {
	// ByteRangeIntact is true if the PKCS#7 signature validates against
	// the bytes named by /ByteRange as they currently stand.
	ByteRangeIntact bool

	// Signers holds the certificate chain PKCS#7 reports, regardless of
	// ByteRangeIntact (a tampered document can still name its signer).
	Signers []*x509.Certificate
}

// VerifyField resolves the signature dictionary at ref (the value of a
// /V entry in an AcroForm /Sig field) and checks it against document, the
// full current file content.
func VerifyField(resolver registry.RefResolver, ref object.Reference, document []byte) (Result, error) {
	obj, err := resolver.Resolve(ref)
	if err != nil {
		return Result{}, fmt.Errorf("sign: resolving signature dictionary: %w", err)
	}
	dict, ok := obj.(*object.Dict)
	if !ok {
		return Result{}, fmt.Errorf("sign: signature field /V does not resolve to a dictionary")
	}

	subFilter, _ := dictGet(dict, "SubFilter").(object.Name)
	if subFilter != "adbe.pkcs7.detached" && subFilter != "adbe.pkcs7.sha1" && subFilter != "ETSI.CAdES.detached" {
		return Result{}, fmt.Errorf("sign: unsupported /SubFilter %q", subFilter)
	}

	byteRange, ok := dictGet(dict, "ByteRange").(object.Array)
	if !ok {
		return Result{}, fmt.Errorf("sign: signature dictionary missing /ByteRange")
	}
	contents, ok := dictGet(dict, "Contents").(object.String)
	if !ok {
		return Result{}, fmt.Errorf("sign: signature dictionary missing /Contents")
	}

	return Verify(document, byteRange, contents.Bytes)
}

// Verify recomputes the digest over the spans of document named by
// byteRange (an array of alternating offset/length integer pairs, as the
// /ByteRange key of a signature dictionary holds) and checks contents, a
// PKCS#7 SignedData blob, against it.
func Verify(document []byte, byteRange object.Array, contents []byte) (Result, error) {
	spans, err := parseByteRange(byteRange, len(document))
	if err != nil {
		return Result{}, err
	}

	signed := make([]byte, 0, spanLen(spans))
	for _, s := range spans {
		signed = append(signed, document[s.offset:s.offset+s.length]...)
	}

	p7, err := pkcs7.Parse(contents)
	if err != nil {
		return Result{}, fmt.Errorf("sign: parsing PKCS#7 signature: %w", err)
	}
	p7.Content = signed

	var signers []*x509.Certificate
	signers = append(signers, p7.Certificates...)

	if err := p7.Verify(); err != nil {
		return Result{ByteRangeIntact: false, Signers: signers}, nil
	}
	return Result{ByteRangeIntact: true, Signers: signers}, nil
}

type span struct {
	offset, length int
}

func spanLen(spans []span) int {
	n := 0
	for _, s := range spans {
		n += s.length
	}
	return n
}

// parseByteRange validates that byteRange is a well-formed, in-bounds,
// non-overlapping sequence of offset/length pairs (Adobe's digital
// signature spec requires exactly two spans bracketing /Contents, but
// this accepts any count to tolerate unusual producers).
func parseByteRange(byteRange object.Array, documentLen int) ([]span, error) {
	if len(byteRange)%2 != 0 || len(byteRange) == 0 {
		return nil, fmt.Errorf("sign: /ByteRange must hold an even, non-zero number of integers")
	}
	spans := make([]span, 0, len(byteRange)/2)
	for i := 0; i < len(byteRange); i += 2 {
		off, ok1 := byteRange[i].(object.Integer)
		ln, ok2 := byteRange[i+1].(object.Integer)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("sign: /ByteRange entries must be integers")
		}
		if off < 0 || ln < 0 || int(off)+int(ln) > documentLen {
			return nil, fmt.Errorf("sign: /ByteRange span [%d, %d) out of bounds", off, off+ln)
		}
		spans = append(spans, span{offset: int(off), length: int(ln)})
	}

	sorted := append([]span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].offset < sorted[i-1].offset+sorted[i-1].length {
			return nil, fmt.Errorf("sign: /ByteRange spans overlap")
		}
	}

	return spans, nil
}

func dictGet(d *object.Dict, key object.Name) object.Object {
	v, _ := d.Get(key)
	return v
}
