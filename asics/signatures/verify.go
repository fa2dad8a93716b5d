package signatures

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
)

var (
	// ErrImprintMismatch means the token does not cover the given content.
	ErrImprintMismatch = errors.New("timestamp imprint does not match content")

	// ErrInvalidTokenSignature means the CMS signature over the token is broken.
	ErrInvalidTokenSignature = errors.New("timestamp token signature is invalid")

	// ErrNoSignerCertificate means the token does not embed the TSA certificate.
	ErrNoSignerCertificate = errors.New("timestamp token has no signer certificate")
)

// VerifyToken checks that token is a well-formed time-stamp token over content
// and that its CMS signature verifies with the embedded TSA certificate.
// Trust in the certificate itself is left to the caller.
func VerifyToken(token, content []byte) (*TimestampInfo, error) {
	info, err := ParseTimestampToken(token)
	if err != nil {
		return nil, err
	}

	digest, err := ComputeDigestBytes(info.HashAlgorithm, content)
	if err != nil {
		return info, err
	}
	if !bytes.Equal(digest.Value, info.MessageImprint) {
		return info, ErrImprintMismatch
	}

	if err := verifySignedData(info); err != nil {
		return info, err
	}
	return info, nil
}

// VerifySignature checks the CMS signature of the token.
func (t *TimestampToken) VerifySignature() error {
	info, err := t.Info()
	if err != nil {
		return err
	}
	return verifySignedData(info)
}

func verifySignedData(info *TimestampInfo) error {
	if len(info.signedData.SignerInfos) != 1 {
		return fmt.Errorf("%w: expected one signer, found %d", ErrInvalidTokenSignature, len(info.signedData.SignerInfos))
	}
	si := info.signedData.SignerInfos[0]

	if info.Certificate == nil {
		return ErrNoSignerCertificate
	}

	digestAlg, ok := DigestAlgorithmFromOID(si.DigestAlgorithm.Algorithm)
	if !ok {
		return fmt.Errorf("%w: unsupported digest algorithm %v", ErrInvalidTokenSignature, si.DigestAlgorithm.Algorithm)
	}

	if len(si.SignedAttrs.Bytes) == 0 {
		return fmt.Errorf("%w: signed attributes are missing", ErrInvalidTokenSignature)
	}

	var attrs []Attribute
	rest := si.SignedAttrs.Bytes
	for len(rest) > 0 {
		var a Attribute
		var err error
		rest, err = asn1.Unmarshal(rest, &a)
		if err != nil {
			return fmt.Errorf("%w: parse signed attributes: %v", ErrInvalidTokenSignature, err)
		}
		attrs = append(attrs, a)
	}

	var messageDigest, contentType []byte
	for _, a := range attrs {
		switch {
		case a.Type.Equal(oidMessageDigest):
			if _, err := asn1.Unmarshal(a.Values.Bytes, &messageDigest); err != nil {
				return fmt.Errorf("%w: parse message-digest: %v", ErrInvalidTokenSignature, err)
			}
		case a.Type.Equal(oidContentType):
			contentType = a.Values.Bytes
		}
	}
	if messageDigest == nil {
		return fmt.Errorf("%w: message-digest attribute is missing", ErrInvalidTokenSignature)
	}
	var ct asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(contentType, &ct); err != nil || !ct.Equal(oidTSTInfo) {
		return fmt.Errorf("%w: content-type attribute is not TSTInfo", ErrInvalidTokenSignature)
	}

	contentDigest, err := ComputeDigestBytes(digestAlg, info.tstInfo)
	if err != nil {
		return err
	}
	if !bytes.Equal(contentDigest.Value, messageDigest) {
		return fmt.Errorf("%w: message-digest does not match TSTInfo", ErrInvalidTokenSignature)
	}

	signed, err := signedAttrsForSignature(si.SignedAttrs.Bytes)
	if err != nil {
		return err
	}
	sigAlg, err := x509SignatureAlgorithm(info.Certificate, digestAlg)
	if err != nil {
		return err
	}
	if err := info.Certificate.CheckSignature(sigAlg, signed, si.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTokenSignature, err)
	}
	return nil
}

func x509SignatureAlgorithm(cert *x509.Certificate, alg DigestAlgorithm) (x509.SignatureAlgorithm, error) {
	switch cert.PublicKey.(type) {
	case *rsa.PublicKey:
		switch alg {
		case DigestSHA1:
			return x509.SHA1WithRSA, nil
		case DigestSHA256:
			return x509.SHA256WithRSA, nil
		case DigestSHA384:
			return x509.SHA384WithRSA, nil
		case DigestSHA512:
			return x509.SHA512WithRSA, nil
		}
	case *ecdsa.PublicKey:
		switch alg {
		case DigestSHA1:
			return x509.ECDSAWithSHA1, nil
		case DigestSHA256:
			return x509.ECDSAWithSHA256, nil
		case DigestSHA384:
			return x509.ECDSAWithSHA384, nil
		case DigestSHA512:
			return x509.ECDSAWithSHA512, nil
		}
	}
	return x509.UnknownSignatureAlgorithm, fmt.Errorf("%w: unsupported key %T with %s",
		ErrInvalidTokenSignature, cert.PublicKey, alg.ShortName())
}
