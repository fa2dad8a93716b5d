package signatures

import (
	"bytes"
	"crypto"
	_ "crypto/sha1" // registers SHA-1 for legacy manifests
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// DigestAlgorithm is an XML-DSig digest method URI.
type DigestAlgorithm string

const (
	// DigestSHA1 is accepted when reading but should not be used for new manifests.
	DigestSHA1   DigestAlgorithm = "http://www.w3.org/2000/09/xmldsig#sha1"
	DigestSHA224 DigestAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#sha224"
	DigestSHA256 DigestAlgorithm = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 DigestAlgorithm = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 DigestAlgorithm = "http://www.w3.org/2001/04/xmlenc#sha512"

	// DefaultDigestAlgorithm is used when a container is not configured otherwise.
	DefaultDigestAlgorithm = DigestSHA256
)

type digestInfo struct {
	name string
	hash crypto.Hash
	oid  asn1.ObjectIdentifier
}

var digestAlgorithms = map[DigestAlgorithm]digestInfo{
	DigestSHA1:   {"sha1", crypto.SHA1, asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}},
	DigestSHA224: {"sha224", crypto.SHA224, asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}},
	DigestSHA256: {"sha256", crypto.SHA256, asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}},
	DigestSHA384: {"sha384", crypto.SHA384, asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}},
	DigestSHA512: {"sha512", crypto.SHA512, asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}},
}

// ParseDigestAlgorithm accepts either a digest URI or a short name such as "sha256".
func ParseDigestAlgorithm(s string) (DigestAlgorithm, error) {
	if _, ok := digestAlgorithms[DigestAlgorithm(s)]; ok {
		return DigestAlgorithm(s), nil
	}
	short := strings.ReplaceAll(strings.ToLower(s), "-", "")
	for alg, info := range digestAlgorithms {
		if info.name == short {
			return alg, nil
		}
	}
	return "", fmt.Errorf("unsupported digest algorithm %q", s)
}

// DigestAlgorithmFromOID maps an ASN.1 hash OID to its digest URI.
func DigestAlgorithmFromOID(oid asn1.ObjectIdentifier) (DigestAlgorithm, bool) {
	for alg, info := range digestAlgorithms {
		if info.oid.Equal(oid) {
			return alg, true
		}
	}
	return "", false
}

// Hash returns the crypto.Hash implementing the algorithm.
func (a DigestAlgorithm) Hash() (crypto.Hash, error) {
	info, ok := digestAlgorithms[a]
	if !ok {
		return 0, fmt.Errorf("unsupported digest algorithm %q", string(a))
	}
	return info.hash, nil
}

// OID returns the ASN.1 object identifier of the algorithm, or nil if unknown.
func (a DigestAlgorithm) OID() asn1.ObjectIdentifier {
	return digestAlgorithms[a].oid
}

// ShortName returns the lower-case short name ("sha256"), or the URI when unknown.
func (a DigestAlgorithm) ShortName() string {
	if info, ok := digestAlgorithms[a]; ok {
		return info.name
	}
	return string(a)
}

// Digest is a digest value together with the algorithm that produced it.
type Digest struct {
	Algorithm DigestAlgorithm
	Value     []byte
}

// ComputeDigest hashes everything read from r.
func ComputeDigest(alg DigestAlgorithm, r io.Reader) (Digest, error) {
	h, err := alg.Hash()
	if err != nil {
		return Digest{}, err
	}
	if !h.Available() {
		return Digest{}, fmt.Errorf("digest algorithm %s is not linked into the binary", alg.ShortName())
	}
	hasher := h.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Digest{}, fmt.Errorf("compute %s digest: %w", alg.ShortName(), err)
	}
	return Digest{Algorithm: alg, Value: hasher.Sum(nil)}, nil
}

// ComputeDigestBytes hashes data.
func ComputeDigestBytes(alg DigestAlgorithm, data []byte) (Digest, error) {
	return ComputeDigest(alg, bytes.NewReader(data))
}

// Base64 returns the value as used in ds:DigestValue.
func (d Digest) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Value)
}

// Equal reports whether both digests use the same algorithm and value.
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && bytes.Equal(d.Value, other.Value)
}

// String renders the digest as "sha256:<base64>".
func (d Digest) String() string {
	return d.Algorithm.ShortName() + ":" + d.Base64()
}

func decodeBase64(s string) ([]byte, error) {
	v, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 digest value: %w", err)
	}
	return v, nil
}

// ParseDigestValue decodes a ds:DigestValue, tolerating embedded whitespace.
func ParseDigestValue(s string) ([]byte, error) {
	return decodeBase64(s)
}
