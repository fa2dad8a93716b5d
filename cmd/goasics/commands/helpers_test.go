package commands

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/output"
)

// testEnv returns an environment writing to buffers with a config file path in a temp dir.
func testEnv(t *testing.T) (*cli.Env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	console := output.NewConsole(&out, &errOut, output.VerbosityNormal)
	console.SetColors(false)
	env := cli.NewEnv(console)
	env.ConfigPath = filepath.Join(t.TempDir(), "goasics.config")
	return env, &out, &errOut
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

// signedContainer creates dir/doc.asics around doc.txt and signs it rounds times with an
// ephemeral authority.
func signedContainer(t *testing.T, rounds int) string {
	t.Helper()
	dir := t.TempDir()
	data := writeFile(t, dir, "doc.txt", "the data object")
	path := filepath.Join(dir, "doc.asics")

	env, _, _ := testEnv(t)
	require.NoError(t, runSign(context.Background(), env, path, &signOptions{data: data, localTSA: true}))
	for i := 1; i < rounds; i++ {
		require.NoError(t, runSign(context.Background(), env, path, &signOptions{localTSA: true}))
	}
	return path
}

// writeTSAKeyPair writes a self-signed time-stamping certificate and its key as PEM files.
func writeTSAKeyPair(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "file TSA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "tsa.crt")
	keyFile = filepath.Join(dir, "tsa.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}), 0o600))
	return certFile, keyFile
}
