// Package signatures provides the signature variants stored in ASiC-S containers.
//
// Two variants exist: TimestampToken, an RFC 3161 time-stamp token that covers either the
// container's data object or an ASiCArchiveManifest, and XAdESLongTermArchive, an XML signature
// read from META-INF/signatures.xml. Only TimestampToken can be produced by this module; XAdES
// signatures are parsed so that containers carrying them can be opened and inspected.
//
// The package also carries the digest engine used by the container (algorithm URIs as used in
// XML-DSig), an RFC 3161 client for remote time-stamp authorities and an in-process
// authority for offline signing.
package signatures

import (
	"encoding/asn1"
)

// Profile identifies the signing profile of a signature.
type Profile string

const (
	// ProfileTimestampToken is the only profile an ASiC-S container can be signed with.
	ProfileTimestampToken Profile = "TimeStampToken"

	// ProfileXAdESLTA is reported by XAdES signatures carrying long-term archive material.
	ProfileXAdESLTA Profile = "time-stamp-archive"
)

// TimestampTokenMediaType is the media type of a raw RFC 3161 token entry.
const TimestampTokenMediaType = "application/vnd.etsi.timestamp-token"

// Signature is one element of a container's signature chain.
//
// The set of implementations is closed: TimestampToken and XAdESLongTermArchive.
type Signature interface {
	// Profile reports the signing profile.
	Profile() Profile

	// Save returns the bytes persisted for this signature.
	Save() []byte

	sealed()
}

// ASN.1 structures shared by token parsing, the local authority and verification (RFC 5652, RFC 3161).

// ContentInfo is the outer CMS wrapper.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// SignedData represents CMS SignedData (RFC 5652).
type SignedData struct {
	Version          int
	DigestAlgorithms []AlgorithmIdentifier `asn1:"set"`
	ContentInfo      EncapsulatedContentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      []SignerInfo  `asn1:"set"`
}

// EncapsulatedContentInfo carries the signed content. For time-stamp tokens it is a DER TSTInfo.
type EncapsulatedContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// SignerInfo represents CMS signer information.
type SignerInfo struct {
	Version            int
	SID                asn1.RawValue // IssuerAndSerialNumber or [0] SubjectKeyIdentifier
	DigestAlgorithm    AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

// AlgorithmIdentifier represents an algorithm.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// Attribute represents a CMS attribute.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

var (
	oidSignedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}

	// id-ct-TSTInfo
	oidTSTInfo = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}

	// ESS signing-certificate-v2 (RFC 5035)
	oidSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}

	oidRSAEncryption   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
)
