package signatures

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultTSAPolicy is the policy OID stamped into locally issued tokens.
var DefaultTSAPolicy = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 1}

// LocalTimestamper is an in-process RFC 3161 time-stamp authority.
//
// It signs tokens with its own key, so the tokens only carry evidentiary value for
// parties that trust its certificate. It is meant for offline signing and for tests.
// LocalTimestamper also serves the RFC 3161 HTTP protocol.
type LocalTimestamper struct {
	cert   *x509.Certificate
	key    crypto.Signer
	chain  []*x509.Certificate
	policy asn1.ObjectIdentifier
	hash   DigestAlgorithm
	now    func() time.Time
}

// LocalOption configures a LocalTimestamper.
type LocalOption func(*LocalTimestamper)

// WithLocalPolicy overrides DefaultTSAPolicy.
func WithLocalPolicy(oid asn1.ObjectIdentifier) LocalOption {
	return func(l *LocalTimestamper) { l.policy = oid }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LocalOption {
	return func(l *LocalTimestamper) { l.now = now }
}

// WithChain embeds intermediate certificates in issued tokens.
func WithChain(chain ...*x509.Certificate) LocalOption {
	return func(l *LocalTimestamper) { l.chain = chain }
}

// NewLocalTimestamper creates an authority signing with key on behalf of cert.
// RSA and ECDSA keys are supported.
func NewLocalTimestamper(cert *x509.Certificate, key crypto.Signer, opts ...LocalOption) (*LocalTimestamper, error) {
	if cert == nil || key == nil {
		return nil, fmt.Errorf("local timestamper requires a certificate and a key")
	}
	if err := matchKey(cert, key); err != nil {
		return nil, err
	}
	l := &LocalTimestamper{
		cert:   cert,
		key:    key,
		policy: DefaultTSAPolicy,
		hash:   DigestSHA256,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadLocalTimestamper reads a PEM certificate and private key from disk.
func LoadLocalTimestamper(certFile, keyFile string, opts ...LocalOption) (*LocalTimestamper, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load TSA key pair: %w", err)
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse TSA certificate: %w", err)
	}
	key, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("TSA private key of type %T cannot sign", pair.PrivateKey)
	}
	var chain []*x509.Certificate
	for _, der := range pair.Certificate[1:] {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse TSA chain: %w", err)
		}
		chain = append(chain, c)
	}
	if len(chain) > 0 {
		opts = append([]LocalOption{WithChain(chain...)}, opts...)
	}
	return NewLocalTimestamper(cert, key, opts...)
}

// GenerateLocalTimestamper creates an authority with a fresh self-signed RSA certificate.
func GenerateLocalTimestamper(commonName string, validity time.Duration, opts ...LocalOption) (*LocalTimestamper, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate TSA key: %w", err)
	}

	id := uuid.New()
	ski := sha256.Sum256(key.PublicKey.N.Bytes())
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          new(big.Int).SetBytes(id[:]),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
		SubjectKeyId:          ski[:20],
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create TSA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse TSA certificate: %w", err)
	}
	return NewLocalTimestamper(cert, key, opts...)
}

// Certificate returns the signing certificate.
func (l *LocalTimestamper) Certificate() *x509.Certificate { return l.cert }

// Profile implements Signer.
func (l *LocalTimestamper) Profile() Profile { return ProfileTimestampToken }

// Timestamp implements Timestamper.
func (l *LocalTimestamper) Timestamp(_ context.Context, digest Digest) ([]byte, error) {
	oid := digest.Algorithm.OID()
	if oid == nil {
		return nil, fmt.Errorf("unsupported digest algorithm %q", string(digest.Algorithm))
	}
	return l.issue(messageImprint{
		HashAlgorithm: AlgorithmIdentifier{Algorithm: oid, Parameters: asn1.NullRawValue},
		HashedMessage: digest.Value,
	}, nil, nil)
}

// ServeHTTP answers application/timestamp-query requests.
func (l *LocalTimestamper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "application/timestamp-query" {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "read request", http.StatusBadRequest)
		return
	}

	resp := timestampResponse{Status: pkiStatusInfo{Status: pkiStatusGranted}}

	var req timestampRequest
	if _, err := asn1.Unmarshal(body, &req); err != nil {
		resp.Status = pkiStatusInfo{Status: pkiStatusRejection, StatusString: []string{"malformed request"}}
	} else if _, ok := DigestAlgorithmFromOID(req.MessageImprint.HashAlgorithm.Algorithm); !ok {
		resp.Status = pkiStatusInfo{Status: pkiStatusRejection, StatusString: []string{"unsupported hash algorithm"}}
	} else {
		token, err := l.issue(req.MessageImprint, req.Nonce, req.ReqPolicy)
		if err != nil {
			resp.Status = pkiStatusInfo{Status: pkiStatusRejection, StatusString: []string{err.Error()}}
		} else {
			resp.TimeStampToken = asn1.RawValue{FullBytes: token}
		}
	}

	out, err := asn1.Marshal(resp)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/timestamp-reply")
	_, _ = w.Write(out)
}

const pkiStatusRejection = 2

type essCertIDv2 struct {
	CertHash []byte // hashAlgorithm defaults to SHA-256 and is omitted
}

type signingCertificateV2 struct {
	Certs []essCertIDv2
}

// issue builds a DER ContentInfo(SignedData(TSTInfo)).
func (l *LocalTimestamper) issue(imprint messageImprint, nonce *big.Int, policy asn1.ObjectIdentifier) ([]byte, error) {
	if len(policy) == 0 {
		policy = l.policy
	}

	id := uuid.New()
	tst := tstInfo{
		Version:        1,
		Policy:         policy,
		MessageImprint: imprint,
		SerialNumber:   new(big.Int).SetBytes(id[:]),
		GenTime:        l.now().UTC().Truncate(time.Second),
		Nonce:          nonce,
	}
	eContent, err := asn1.Marshal(tst)
	if err != nil {
		return nil, fmt.Errorf("marshal TSTInfo: %w", err)
	}

	hash, _ := l.hash.Hash()
	h := hash.New()
	h.Write(eContent)
	contentDigest := h.Sum(nil)

	certHash := sha256.Sum256(l.cert.Raw)
	attrs := []struct {
		oid   asn1.ObjectIdentifier
		value any
	}{
		{oidContentType, oidTSTInfo},
		{oidSigningTime, tst.GenTime},
		{oidMessageDigest, contentDigest},
		{oidSigningCertificateV2, signingCertificateV2{Certs: []essCertIDv2{{CertHash: certHash[:]}}}},
	}

	encoded := make([][]byte, 0, len(attrs))
	for _, a := range attrs {
		v, err := asn1.Marshal(a.value)
		if err != nil {
			return nil, fmt.Errorf("marshal attribute %v: %w", a.oid, err)
		}
		b, err := asn1.Marshal(Attribute{
			Type:   a.oid,
			Values: asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: v},
		})
		if err != nil {
			return nil, fmt.Errorf("marshal attribute %v: %w", a.oid, err)
		}
		encoded = append(encoded, b)
	}
	// DER SET OF is sorted by encoding
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })
	signedAttrs := bytes.Join(encoded, nil)

	toSign, err := signedAttrsForSignature(signedAttrs)
	if err != nil {
		return nil, err
	}
	h = hash.New()
	h.Write(toSign)
	signature, err := l.key.Sign(rand.Reader, h.Sum(nil), hash)
	if err != nil {
		return nil, fmt.Errorf("sign TSTInfo: %w", err)
	}

	sigAlg, err := signatureAlgorithmOID(l.key.Public(), l.hash)
	if err != nil {
		return nil, err
	}

	digestAlg := AlgorithmIdentifier{Algorithm: l.hash.OID(), Parameters: asn1.NullRawValue}
	si := SignerInfo{
		Version:            3,
		SID:                signerIdentifier(l.cert),
		DigestAlgorithm:    digestAlg,
		SignedAttrs:        asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: signedAttrs},
		SignatureAlgorithm: sigAlg,
		Signature:          signature,
	}
	if si.SID.Class != asn1.ClassContextSpecific {
		si.Version = 1
	}

	octets, err := asn1.Marshal(eContent)
	if err != nil {
		return nil, fmt.Errorf("marshal eContent: %w", err)
	}

	var certBytes []byte
	for _, c := range append([]*x509.Certificate{l.cert}, l.chain...) {
		certBytes = append(certBytes, c.Raw...)
	}

	sd := SignedData{
		Version:          3,
		DigestAlgorithms: []AlgorithmIdentifier{digestAlg},
		ContentInfo: EncapsulatedContentInfo{
			ContentType: oidTSTInfo,
			Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: octets},
		},
		Certificates: asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: certBytes},
		SignerInfos:  []SignerInfo{si},
	}
	sdBytes, err := asn1.Marshal(sd)
	if err != nil {
		return nil, fmt.Errorf("marshal SignedData: %w", err)
	}

	token, err := asn1.Marshal(ContentInfo{
		ContentType: oidSignedData,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: sdBytes},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ContentInfo: %w", err)
	}
	return token, nil
}

// signedAttrsForSignature re-tags the [0] IMPLICIT attributes as the SET OF they are signed as.
func signedAttrsForSignature(content []byte) ([]byte, error) {
	b, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: content})
	if err != nil {
		return nil, fmt.Errorf("encode signed attributes: %w", err)
	}
	return b, nil
}

func signerIdentifier(cert *x509.Certificate) asn1.RawValue {
	if len(cert.SubjectKeyId) > 0 {
		return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, Bytes: cert.SubjectKeyId}
	}
	b, err := asn1.Marshal(issuerAndSerialNumber{
		Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
		SerialNumber: cert.SerialNumber,
	})
	if err != nil {
		return asn1.RawValue{}
	}
	return asn1.RawValue{FullBytes: b, Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true}
}

func signatureAlgorithmOID(pub crypto.PublicKey, alg DigestAlgorithm) (AlgorithmIdentifier, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return AlgorithmIdentifier{Algorithm: oidRSAEncryption, Parameters: asn1.NullRawValue}, nil
	case *ecdsa.PublicKey:
		switch alg {
		case DigestSHA256:
			return AlgorithmIdentifier{Algorithm: oidECDSAWithSHA256}, nil
		case DigestSHA384:
			return AlgorithmIdentifier{Algorithm: oidECDSAWithSHA384}, nil
		case DigestSHA512:
			return AlgorithmIdentifier{Algorithm: oidECDSAWithSHA512}, nil
		}
	}
	return AlgorithmIdentifier{}, fmt.Errorf("unsupported TSA key %T with %s", pub, alg.ShortName())
}

func matchKey(cert *x509.Certificate, key crypto.Signer) error {
	type equaler interface{ Equal(crypto.PublicKey) bool }
	pub, ok := key.Public().(equaler)
	if !ok || !pub.Equal(cert.PublicKey) {
		return fmt.Errorf("private key does not match TSA certificate")
	}
	return nil
}
