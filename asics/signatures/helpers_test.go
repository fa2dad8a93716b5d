package signatures

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"
)

var (
	sharedTSAOnce sync.Once
	sharedTSA     *LocalTimestamper
	sharedTSAErr  error
)

// testTSA returns a package-wide RSA authority; key generation is slow.
func testTSA(t *testing.T) *LocalTimestamper {
	t.Helper()
	sharedTSAOnce.Do(func() {
		sharedTSA, sharedTSAErr = GenerateLocalTimestamper("goasics test TSA", time.Hour)
	})
	if sharedTSAErr != nil {
		t.Fatalf("GenerateLocalTimestamper failed: %v", sharedTSAErr)
	}
	return sharedTSA
}

// generateECDSACert creates a self-signed P-256 leaf without a subject key identifier.
func generateECDSACert(t *testing.T) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject:      pkix.Name{CommonName: "ecdsa tsa"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert, key
}
