package asics

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/willibrandon/goasics/asics/signatures"
)

// Fixed entry names.
const (
	EntryMimetype        = "mimetype"
	EntryTimestamp       = "META-INF/timestamp.tst"
	EntrySignatures      = "META-INF/signatures.xml"
	EntryArchiveManifest = "META-INF/ASiCArchiveManifest.xml"
	metaInfPrefix        = "META-INF/"
)

// MaxManifestDepth bounds how deeply Rootfile references are followed on load.
const MaxManifestDepth = 64

// ArchiveManifest is an ASiCManifest document: the artifacts a chained timestamp covers.
type ArchiveManifest struct {
	SigReference SigReference
	References   []DataObjectReference
}

// SigReference points at the timestamp token over the manifest.
type SigReference struct {
	MimeType string
	URI      string // entry name, not encoded
}

// DataObjectReference is one covered artifact and its digest.
type DataObjectReference struct {
	URI      string // entry name, not encoded
	MimeType string
	Rootfile bool
	Digest   signatures.Digest
}

// NewArchiveManifest creates a manifest whose SigReference points at tokenName.
func NewArchiveManifest(tokenName string) *ArchiveManifest {
	return &ArchiveManifest{SigReference: SigReference{MimeType: MediaTypeTimestampToken, URI: tokenName}}
}

// AddReference appends a DataObjectReference.
func (m *ArchiveManifest) AddReference(name, mimeType string, root bool, digest signatures.Digest) {
	m.References = append(m.References, DataObjectReference{
		URI:      name,
		MimeType: mimeType,
		Rootfile: root,
		Digest:   digest,
	})
}

// RootReferences returns the references flagged Rootfile, in document order.
func (m *ArchiveManifest) RootReferences() []DataObjectReference {
	var roots []DataObjectReference
	for _, r := range m.References {
		if r.Rootfile {
			roots = append(roots, r)
		}
	}
	return roots
}

// Covers reports whether the manifest covers the entry called name.
func (m *ArchiveManifest) Covers(name string) bool {
	for _, r := range m.References {
		if r.URI == name {
			return true
		}
	}
	return false
}

// Output documents spell out prefixes so that ds elements carry the ds prefix.

type manifestOut struct {
	XMLName   xml.Name     `xml:"asic:ASiCManifest"`
	XmlnsASiC string       `xml:"xmlns:asic,attr"`
	XmlnsDS   string       `xml:"xmlns:ds,attr"`
	SigRef    sigRefOut    `xml:"asic:SigReference"`
	Refs      []dataRefOut `xml:"asic:DataObjectReference"`
}

type sigRefOut struct {
	MimeType string `xml:"MimeType,attr"`
	URI      string `xml:"URI,attr"`
}

type dataRefOut struct {
	MimeType     string          `xml:"MimeType,attr"`
	URI          string          `xml:"URI,attr"`
	Rootfile     string          `xml:"Rootfile,attr,omitempty"`
	DigestMethod digestMethodOut `xml:"ds:DigestMethod"`
	DigestValue  string          `xml:"ds:DigestValue"`
}

type digestMethodOut struct {
	Algorithm string `xml:"Algorithm,attr"`
}

// Marshal serializes the manifest as a standalone XML document.
func (m *ArchiveManifest) Marshal() ([]byte, error) {
	out := manifestOut{
		XmlnsASiC: signatures.NamespaceASiC,
		XmlnsDS:   signatures.NamespaceDSig,
		SigRef:    sigRefOut{MimeType: m.SigReference.MimeType, URI: toURIPath(m.SigReference.URI)},
	}
	for _, r := range m.References {
		ref := dataRefOut{
			MimeType:     r.MimeType,
			URI:          toURIPath(r.URI),
			DigestMethod: digestMethodOut{Algorithm: string(r.Digest.Algorithm)},
			DigestValue:  r.Digest.Base64(),
		}
		if r.Rootfile {
			ref.Rootfile = "true"
		}
		out.Refs = append(out.Refs, ref)
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode archive manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode archive manifest: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Input documents are matched by namespace, whatever prefixes the producer chose.

type manifestIn struct {
	XMLName xml.Name    `xml:"http://uri.etsi.org/02918/v1.2.1# ASiCManifest"`
	SigRefs []sigRefIn  `xml:"http://uri.etsi.org/02918/v1.2.1# SigReference"`
	Refs    []dataRefIn `xml:"http://uri.etsi.org/02918/v1.2.1# DataObjectReference"`
}

type sigRefIn struct {
	MimeType string `xml:"MimeType,attr"`
	URI      string `xml:"URI,attr"`
}

type dataRefIn struct {
	MimeType     string `xml:"MimeType,attr"`
	URI          string `xml:"URI,attr"`
	Rootfile     string `xml:"Rootfile,attr"`
	DigestMethod *struct {
		Algorithm string `xml:"Algorithm,attr"`
	} `xml:"http://www.w3.org/2000/09/xmldsig# DigestMethod"`
	DigestValue *string `xml:"http://www.w3.org/2000/09/xmldsig# DigestValue"`
}

// ParseArchiveManifest parses and validates an ASiCManifest document.
//
// Validation is structural: the root element and namespaces, exactly one SigReference with a URI,
// and on every DataObjectReference a URI, a known digest method, a decodable digest value and a
// boolean Rootfile. Failures wrap ErrSchemaValidation.
func ParseArchiveManifest(data []byte) (*ArchiveManifest, error) {
	var in manifestIn
	if err := xml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}

	if len(in.SigRefs) != 1 {
		return nil, fmt.Errorf("%w: expected one SigReference, found %d", ErrSchemaValidation, len(in.SigRefs))
	}
	if in.SigRefs[0].URI == "" {
		return nil, fmt.Errorf("%w: SigReference has no URI", ErrSchemaValidation)
	}
	sigURI, err := fromURIPath(in.SigRefs[0].URI)
	if err != nil {
		return nil, err
	}

	m := &ArchiveManifest{SigReference: SigReference{MimeType: in.SigRefs[0].MimeType, URI: sigURI}}
	for i, r := range in.Refs {
		if r.URI == "" {
			return nil, fmt.Errorf("%w: DataObjectReference %d has no URI", ErrSchemaValidation, i)
		}
		name, err := fromURIPath(r.URI)
		if err != nil {
			return nil, err
		}
		if r.DigestMethod == nil || r.DigestValue == nil {
			return nil, fmt.Errorf("%w: DataObjectReference %q lacks DigestMethod or DigestValue", ErrSchemaValidation, name)
		}
		alg, err := signatures.ParseDigestAlgorithm(r.DigestMethod.Algorithm)
		if err != nil || string(alg) != r.DigestMethod.Algorithm {
			return nil, fmt.Errorf("%w: DataObjectReference %q has unsupported DigestMethod %q",
				ErrSchemaValidation, name, r.DigestMethod.Algorithm)
		}
		value, err := signatures.ParseDigestValue(*r.DigestValue)
		if err != nil {
			return nil, fmt.Errorf("%w: DataObjectReference %q: %v", ErrSchemaValidation, name, err)
		}

		var root bool
		switch r.Rootfile {
		case "", "false", "0":
		case "true", "1":
			root = true
		default:
			return nil, fmt.Errorf("%w: DataObjectReference %q has Rootfile=%q", ErrSchemaValidation, name, r.Rootfile)
		}

		m.References = append(m.References, DataObjectReference{
			URI:      name,
			MimeType: r.MimeType,
			Rootfile: root,
			Digest:   signatures.Digest{Algorithm: alg, Value: value},
		})
	}
	return m, nil
}
