package signatures

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// TimestampToken is an RFC 3161 time-stamp token stored in the container.
//
// A token either covers the data object directly (META-INF/timestamp.tst) or an
// ASiCArchiveManifest, in which case the manifest bytes travel with the token.
type TimestampToken struct {
	token    []byte
	subject  string
	manifest []byte

	once sync.Once
	info *TimestampInfo
	err  error
}

// NewTimestampToken wraps a raw token covering the data object named subject.
func NewTimestampToken(token []byte, subject string) *TimestampToken {
	return &TimestampToken{token: token, subject: subject}
}

// NewArchiveTimestampToken wraps a raw token covering the archive manifest stored under manifestName.
func NewArchiveTimestampToken(manifestName string, manifest, token []byte) *TimestampToken {
	return &TimestampToken{token: token, subject: manifestName, manifest: manifest}
}

// Profile implements Signature.
func (t *TimestampToken) Profile() Profile { return ProfileTimestampToken }

// Save implements Signature and returns the raw DER token.
func (t *TimestampToken) Save() []byte { return t.token }

func (t *TimestampToken) sealed() {}

// Subject is the name of the covered artifact.
func (t *TimestampToken) Subject() string { return t.subject }

// Renamed returns a copy of the token whose covered artifact is stored under subject.
func (t *TimestampToken) Renamed(subject string) *TimestampToken {
	return &TimestampToken{token: t.token, subject: subject, manifest: t.manifest}
}

// Manifest returns the covered ASiCArchiveManifest bytes, or nil when the token covers the data object.
func (t *TimestampToken) Manifest() []byte { return t.manifest }

// IsArchiveTimestamp reports whether the token covers an archive manifest.
func (t *TimestampToken) IsArchiveTimestamp() bool { return t.manifest != nil }

// Info parses the token on first use. The result is cached.
func (t *TimestampToken) Info() (*TimestampInfo, error) {
	t.once.Do(func() {
		t.info, t.err = ParseTimestampToken(t.token)
	})
	return t.info, t.err
}

// TimestampInfo is the decoded content of a time-stamp token.
type TimestampInfo struct {
	GenTime        time.Time
	SerialNumber   *big.Int
	Policy         asn1.ObjectIdentifier
	HashAlgorithm  DigestAlgorithm
	MessageImprint []byte
	Nonce          *big.Int

	// Certificate is the TSA signing certificate when the token embeds it.
	Certificate  *x509.Certificate
	Certificates []*x509.Certificate

	signedData SignedData
	tstInfo    []byte
}

// tstInfo is the RFC 3161 TSTInfo structure.
type tstInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint messageImprint
	SerialNumber   *big.Int
	GenTime        time.Time     `asn1:"generalized"`
	Accuracy       accuracy      `asn1:"optional"`
	Ordering       bool          `asn1:"optional,default:false"`
	Nonce          *big.Int      `asn1:"optional"`
	TSA            asn1.RawValue `asn1:"optional,tag:0"`
	Extensions     asn1.RawValue `asn1:"optional,tag:1"`
}

type messageImprint struct {
	HashAlgorithm AlgorithmIdentifier
	HashedMessage []byte
}

type accuracy struct {
	Seconds int `asn1:"optional"`
	Millis  int `asn1:"optional,tag:0"`
	Micros  int `asn1:"optional,tag:1"`
}

// ParseTimestampToken decodes a DER ContentInfo/SignedData/TSTInfo token.
func ParseTimestampToken(token []byte) (*TimestampInfo, error) {
	if len(token) == 0 {
		return nil, fmt.Errorf("timestamp token is empty")
	}

	var ci ContentInfo
	rest, err := asn1.Unmarshal(token, &ci)
	if err != nil {
		return nil, fmt.Errorf("unmarshal content info: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after content info")
	}
	if !ci.ContentType.Equal(oidSignedData) {
		return nil, fmt.Errorf("not a SignedData structure (got OID %v)", ci.ContentType)
	}

	var sd SignedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("unmarshal signed data: %w", err)
	}
	if !sd.ContentInfo.ContentType.Equal(oidTSTInfo) {
		return nil, fmt.Errorf("encapsulated content is not TSTInfo (got OID %v)", sd.ContentInfo.ContentType)
	}

	// eContent is [0] EXPLICIT OCTET STRING holding the DER TSTInfo
	var eContent []byte
	if _, err := asn1.Unmarshal(sd.ContentInfo.Content.Bytes, &eContent); err != nil {
		return nil, fmt.Errorf("unmarshal eContent: %w", err)
	}

	var tst tstInfo
	if _, err := asn1.Unmarshal(eContent, &tst); err != nil {
		return nil, fmt.Errorf("unmarshal TSTInfo: %w", err)
	}

	alg, ok := DigestAlgorithmFromOID(tst.MessageImprint.HashAlgorithm.Algorithm)
	if !ok {
		return nil, fmt.Errorf("unsupported message imprint algorithm %v", tst.MessageImprint.HashAlgorithm.Algorithm)
	}

	info := &TimestampInfo{
		GenTime:        tst.GenTime,
		SerialNumber:   tst.SerialNumber,
		Policy:         tst.Policy,
		HashAlgorithm:  alg,
		MessageImprint: tst.MessageImprint.HashedMessage,
		Nonce:          tst.Nonce,
		signedData:     sd,
		tstInfo:        eContent,
	}

	if len(sd.Certificates.Bytes) > 0 {
		certs, err := x509.ParseCertificates(sd.Certificates.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificates: %w", err)
		}
		info.Certificates = certs
		if len(sd.SignerInfos) > 0 {
			info.Certificate = findSignerCertificate(sd.SignerInfos[0], certs)
		}
	}

	return info, nil
}

type issuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// findSignerCertificate matches the signer identifier against the embedded certificates.
func findSignerCertificate(si SignerInfo, certs []*x509.Certificate) *x509.Certificate {
	if si.SID.Class == asn1.ClassContextSpecific && si.SID.Tag == 0 {
		for _, cert := range certs {
			if len(cert.SubjectKeyId) > 0 && string(cert.SubjectKeyId) == string(si.SID.Bytes) {
				return cert
			}
		}
		return nil
	}

	var ias issuerAndSerialNumber
	if _, err := asn1.Unmarshal(si.SID.FullBytes, &ias); err != nil {
		return nil
	}
	for _, cert := range certs {
		if cert.SerialNumber.Cmp(ias.SerialNumber) == 0 && string(cert.RawIssuer) == string(ias.Issuer.FullBytes) {
			return cert
		}
	}
	return nil
}
