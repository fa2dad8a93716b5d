package signatures

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// XML namespaces used by ASiC signature documents.
const (
	NamespaceASiC  = "http://uri.etsi.org/02918/v1.2.1#"
	NamespaceDSig  = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"
)

// Additional profiles reported by XAdES signatures.
const (
	ProfileXAdESBES Profile = "BES"
	ProfileXAdEST   Profile = "time-stamp"
)

// ErrNoSignatures is returned for a signatures document without ds:Signature elements.
var ErrNoSignatures = errors.New("signatures document contains no signatures")

// XAdESDocument is a parsed META-INF/signatures.xml shared by its signatures.
type XAdESDocument struct {
	raw        []byte
	signatures []xadesSignature
}

type xadesSignature struct {
	id         string
	references []Reference
	properties map[string]int // XAdES element local name -> occurrences
}

// Reference is a ds:Reference of a signature's SignedInfo.
type Reference struct {
	URI    string
	Digest Digest
}

type xmlSignaturesDocument struct {
	XMLName    xml.Name       `xml:"http://uri.etsi.org/02918/v1.2.1# XAdESSignatures"`
	Signatures []xmlSignature `xml:"http://www.w3.org/2000/09/xmldsig# Signature"`
}

type xmlSignature struct {
	ID         string         `xml:"Id,attr"`
	References []xmlReference `xml:"http://www.w3.org/2000/09/xmldsig# SignedInfo>Reference"`
	Inner      []byte         `xml:",innerxml"`
}

type xmlReference struct {
	URI          string `xml:"URI,attr"`
	DigestMethod struct {
		Algorithm string `xml:"Algorithm,attr"`
	} `xml:"http://www.w3.org/2000/09/xmldsig# DigestMethod"`
	DigestValue string `xml:"http://www.w3.org/2000/09/xmldsig# DigestValue"`
}

// ParseXAdESSignatures parses a signatures document and returns one signature per ds:Signature.
// All returned signatures share the document.
func ParseXAdESSignatures(data []byte) ([]*XAdESLongTermArchive, error) {
	var doc xmlSignaturesDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse signatures document: %w", err)
	}
	if len(doc.Signatures) == 0 {
		return nil, ErrNoSignatures
	}

	shared := &XAdESDocument{raw: data}
	for i, s := range doc.Signatures {
		sig := xadesSignature{id: s.ID, properties: map[string]int{}}
		for _, r := range s.References {
			ref := Reference{URI: r.URI}
			ref.Digest.Algorithm = DigestAlgorithm(r.DigestMethod.Algorithm)
			if v, err := decodeBase64(r.DigestValue); err == nil {
				ref.Digest.Value = v
			} else {
				return nil, fmt.Errorf("signature %d: reference %q: %w", i, r.URI, err)
			}
			sig.references = append(sig.references, ref)
		}
		if err := collectProperties(s.Inner, sig.properties); err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		shared.signatures = append(shared.signatures, sig)
	}

	out := make([]*XAdESLongTermArchive, len(shared.signatures))
	for i := range shared.signatures {
		out[i] = &XAdESLongTermArchive{doc: shared, index: i}
	}
	return out, nil
}

// collectProperties counts XAdES qualifying property elements by local name.
// The fragment is matched by local name because its namespace declarations live on the root.
func collectProperties(inner []byte, into map[string]int) error {
	dec := xml.NewDecoder(bytes.NewReader(inner))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan signature properties: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch se.Name.Local {
			case "ArchiveTimeStamp", "SignatureTimeStamp", "SigningCertificate", "SigningCertificateV2",
				"SigningTime", "CertificateValues", "RevocationValues":
				into[se.Name.Local]++
			}
		}
	}
}

// XAdESLongTermArchive is one XAdES signature from a shared signatures document.
// It is parsed for inspection and round-tripping only.
type XAdESLongTermArchive struct {
	doc   *XAdESDocument
	index int
}

// Profile implements Signature.
func (x *XAdESLongTermArchive) Profile() Profile {
	props := x.doc.signatures[x.index].properties
	switch {
	case props["ArchiveTimeStamp"] > 0:
		return ProfileXAdESLTA
	case props["SignatureTimeStamp"] > 0:
		return ProfileXAdEST
	default:
		return ProfileXAdESBES
	}
}

// Save implements Signature and returns the whole shared document.
func (x *XAdESLongTermArchive) Save() []byte { return x.doc.raw }

func (x *XAdESLongTermArchive) sealed() {}

// ID returns the signature's Id attribute.
func (x *XAdESLongTermArchive) ID() string { return x.doc.signatures[x.index].id }

// Index is the position of the signature within the shared document.
func (x *XAdESLongTermArchive) Index() int { return x.index }

// References returns the signed references.
func (x *XAdESLongTermArchive) References() []Reference {
	return x.doc.signatures[x.index].references
}

// Document returns the shared document.
func (x *XAdESLongTermArchive) Document() *XAdESDocument { return x.doc }

// Len returns the number of signatures in the document.
func (d *XAdESDocument) Len() int { return len(d.signatures) }
