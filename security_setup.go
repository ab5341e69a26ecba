package pdfgraph

import (
	"fmt"

	"github.com/benoitkugler/pdfgraph/crypt"
	"github.com/benoitkugler/pdfgraph/object"
	"github.com/benoitkugler/pdfgraph/parse"
	"github.com/benoitkugler/pdfgraph/xref"
)

// setupSecurityHandler reads the /Encrypt dictionary named by the trailer
// and authenticates against it with the blank password followed by every
// password supplied in opts.
func (d *Document) setupSecurityHandler(data []byte, table xref.Table, opts LoadOptions) error {
	dict, err := d.loadEncryptDict(data, table)
	if err != nil {
		return fmt.Errorf("pdfgraph: reading /Encrypt dictionary: %w", err)
	}

	handler, err := buildSecurityHandler(dict, firstIDBytes(d.trailer.ID))
	if err != nil {
		return fmt.Errorf("pdfgraph: %w", err)
	}

	candidates := append([]string{""}, opts.Passwords...)
	var lastErr error
	for _, pw := range candidates {
		if err := handler.Authenticate(pw, pw); err == nil {
			d.security = handler
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = errNoPasswordMatched
	}
	return fmt.Errorf("pdfgraph: authenticating encrypted document: %w", lastErr)
}

// loadEncryptDict parses the /Encrypt dictionary directly from its xref
// entry, bypassing the registry (which does not exist yet at this point
// in Load) and bypassing decryption (the encryption dictionary is never
// itself encrypted).
func (d *Document) loadEncryptDict(data []byte, table xref.Table) (*object.Dict, error) {
	if !d.hadEncryptRef {
		return nil, fmt.Errorf("no /Encrypt reference in trailer")
	}
	entry, ok := table[d.encryptRef.Num]
	if !ok || entry.Kind != xref.InUse {
		return nil, fmt.Errorf("dangling /Encrypt reference %d %d R", d.encryptRef.Num, d.encryptRef.Gen)
	}
	p := parse.NewAt(data, int(entry.Offset), nil)
	_, _, obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*object.Dict)
	if !ok {
		return nil, fmt.Errorf("/Encrypt does not resolve to a dictionary")
	}
	return dict, nil
}

func firstIDBytes(id object.Array) []byte {
	if len(id) == 0 {
		return nil
	}
	s, ok := id[0].(object.String)
	if !ok {
		return nil
	}
	return s.Bytes
}

// buildSecurityHandler maps the /Encrypt dictionary's fields onto a
// crypt.SecurityHandler. Only the standard security handler
// (/Filter /Standard) is supported.
func buildSecurityHandler(dict *object.Dict, fileID []byte) (*crypt.SecurityHandler, error) {
	if filter, ok := dictGet(dict, "Filter").(object.Name); !ok || filter != "Standard" {
		return nil, fmt.Errorf("unsupported security handler /Filter %v", dictGet(dict, "Filter"))
	}

	r, ok := dictGet(dict, "R").(object.Integer)
	if !ok {
		return nil, fmt.Errorf("/Encrypt missing /R")
	}

	o, err := bytesField(dict, "O")
	if err != nil {
		return nil, err
	}
	u, err := bytesField(dict, "U")
	if err != nil {
		return nil, err
	}

	p, ok := dictGet(dict, "P").(object.Integer)
	if !ok {
		return nil, fmt.Errorf("/Encrypt missing /P")
	}

	encryptMetadata := true
	if b, ok := dictGet(dict, "EncryptMetadata").(object.Boolean); ok {
		encryptMetadata = bool(b)
	}

	handler := &crypt.SecurityHandler{
		Revision:        crypt.Revision(int(r)),
		O:               o,
		U:               u,
		Permission:      int32(p),
		FileID:          fileID,
		EncryptMetadata: encryptMetadata,
	}

	switch {
	case r <= 3:
		handler.KeyBytes = keyLengthBytes(dict)
		handler.Cipher = crypt.CipherRC4
	case r == 4:
		length, method, err := crypt4CipherMethod(dict)
		if err != nil {
			return nil, err
		}
		handler.KeyBytes = length
		handler.Cipher = method
	case r >= 5:
		handler.KeyBytes = 32
		handler.Cipher = crypt.CipherAESV3
		if oe, err := bytesField(dict, "OE"); err == nil {
			handler.OE = oe
		}
		if ue, err := bytesField(dict, "UE"); err == nil {
			handler.UE = ue
		}
		if perms, err := bytesField(dict, "Perms"); err == nil {
			handler.Perms = perms
		}
	default:
		return nil, fmt.Errorf("unsupported security handler revision %d", r)
	}
	return handler, nil
}

func keyLengthBytes(dict *object.Dict) int {
	if length, ok := dictGet(dict, "Length").(object.Integer); ok && length > 0 {
		return int(length) / 8
	}
	return 5
}

// crypt4CipherMethod resolves the V=4 crypt-filter indirection: /CF names
// a dictionary of filter definitions, /StmF and /StrF select which one
// applies to streams and strings respectively. Mixed StmF/StrF filters
// are not modeled; the stream filter's method is used for both, which
// matches every producer seen in the corpus.
func crypt4CipherMethod(dict *object.Dict) (int, crypt.CipherMethod, error) {
	stmF, _ := dictGet(dict, "StmF").(object.Name)
	if stmF == "" || stmF == "Identity" {
		return 5, crypt.CipherIdentity, nil
	}
	cf, ok := dictGet(dict, "CF").(*object.Dict)
	if !ok {
		return 0, 0, fmt.Errorf("/Encrypt V4 missing /CF")
	}
	filterDict, ok := dictGet(cf, stmF).(*object.Dict)
	if !ok {
		return 0, 0, fmt.Errorf("/CF missing entry %q named by /StmF", stmF)
	}
	cfm, _ := dictGet(filterDict, "CFM").(object.Name)
	length := keyLengthBytes(filterDict)
	if length == 5 {
		if l, ok := dictGet(filterDict, "Length").(object.Integer); ok && l > 0 {
			length = int(l)
			if length > 40 {
				length /= 8
			}
		}
	}
	switch cfm {
	case "AESV2":
		return 16, crypt.CipherAESV2, nil
	case "AESV3":
		return 32, crypt.CipherAESV3, nil
	case "V2":
		if length <= 0 {
			length = 16
		}
		return length, crypt.CipherRC4, nil
	default:
		return 0, 0, fmt.Errorf("unsupported /CFM %q", cfm)
	}
}

func bytesField(dict *object.Dict, key object.Name) ([]byte, error) {
	s, ok := dictGet(dict, key).(object.String)
	if !ok {
		return nil, fmt.Errorf("/Encrypt missing /%s", key)
	}
	return s.Bytes, nil
}
