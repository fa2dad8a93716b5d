package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/goasics/asics"
	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/cmd/goasics/config"
	"github.com/willibrandon/goasics/cmd/goasics/output"
)

func TestSign_CreateThenChain(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "report.txt", "quarterly numbers")
	path := filepath.Join(dir, "report.asics")

	env, out, errOut := testEnv(t)
	require.NoError(t, runSign(context.Background(), env, path, &signOptions{data: data, localTSA: true}))
	assert.Contains(t, out.String(), "Added initial time-stamp over report.txt to "+path)
	assert.Contains(t, errOut.String(), "Warning: using an ephemeral local time-stamp authority")

	out.Reset()
	require.NoError(t, runSign(context.Background(), env, path, &signOptions{localTSA: true}))
	assert.Contains(t, out.String(), "Added archive time-stamp over META-INF/ASiCArchiveManifest.xml")

	c, err := asics.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, c.Signatures(), 2)
	assert.Equal(t, "report.txt", c.DataFile().Name())
	_, err = c.Verify()
	assert.NoError(t, err)
}

func TestSign_JSONAndOutputPath(t *testing.T) {
	src := signedContainer(t, 1)
	dest := filepath.Join(t.TempDir(), "copy.asics")

	env, out, _ := testEnv(t)
	env.JSON = true
	require.NoError(t, runSign(context.Background(), env, src, &signOptions{localTSA: true, output: dest, digest: "sha512"}))

	var doc output.SignOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "archive", doc.Kind)
	assert.Equal(t, dest, doc.Container)
	assert.Equal(t, []string{asics.EntryTimestamp, asics.EntryArchiveManifest, "META-INF/timestamp001.tst"}, doc.Entries)
	assert.WithinDuration(t, time.Now(), doc.GenTime, time.Minute)

	c, err := asics.Open(context.Background(), dest)
	require.NoError(t, err)
	info, err := c.Signatures()[1].(*signatures.TimestampToken).Info()
	require.NoError(t, err)
	assert.Equal(t, signatures.DigestSHA512, info.HashAlgorithm)

	original, err := asics.Open(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, original.Signatures(), 1, "source left untouched")
}

func TestSign_KeyPairFiles(t *testing.T) {
	certFile, keyFile := writeTSAKeyPair(t)
	dir := t.TempDir()
	data := writeFile(t, dir, "doc.txt", "x")
	path := filepath.Join(dir, "doc.scs")

	env, _, _ := testEnv(t)
	require.NoError(t, runSign(context.Background(), env, path, &signOptions{
		data: data, tsaCert: certFile, tsaKey: keyFile, policy: "1.3.6.1.4.1.99999.1",
	}))

	c, err := asics.Open(context.Background(), path)
	require.NoError(t, err)
	info, err := c.Signatures()[0].(*signatures.TimestampToken).Info()
	require.NoError(t, err)
	assert.Equal(t, "file TSA", info.Certificate.Subject.CommonName)
	assert.Equal(t, "1.3.6.1.4.1.99999.1", info.Policy.String())
}

func TestSign_RemoteAuthorityFromConfig(t *testing.T) {
	tsa, err := signatures.GenerateLocalTimestamper("remote TSA", time.Hour)
	require.NoError(t, err)

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("X-API-Key") != "k-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tsa.ServeHTTP(w, r)
	}))
	defer server.Close()

	env, _, _ := testEnv(t)
	env.Config.Set(config.KeyTSAURL, server.URL)
	env.Config.Set(config.KeyTSAAPIKey, "k-123")
	env.Config.Set(config.KeyTimeout, "5s")

	dir := t.TempDir()
	data := writeFile(t, dir, "doc.txt", "x")
	path := filepath.Join(dir, "doc.asics")
	require.NoError(t, runSign(context.Background(), env, path, &signOptions{data: data}))
	assert.Equal(t, int32(1), requests.Load())

	c, err := asics.Open(context.Background(), path)
	require.NoError(t, err)
	info, err := c.Signatures()[0].(*signatures.TimestampToken).Info()
	require.NoError(t, err)
	assert.Equal(t, "remote TSA", info.Certificate.Subject.CommonName)
}

func TestSign_Errors(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "doc.txt", "x")
	existing := signedContainer(t, 1)

	tests := []struct {
		name    string
		path    string
		opts    signOptions
		wantErr string
	}{
		{"no authority", filepath.Join(dir, "a.asics"), signOptions{data: data}, "no time-stamp authority configured"},
		{"container exists", existing, signOptions{data: data, localTSA: true}, "already exists"},
		{"bad digest", existing, signOptions{localTSA: true, digest: "md5"}, "unsupported digest algorithm"},
		{"bad policy", existing, signOptions{localTSA: true, policy: "not-an-oid"}, "invalid OID"},
		{"extended form", filepath.Join(dir, "a.asice"), signOptions{data: data, localTSA: true}, asics.ErrNotSimpleFormat.Error()},
		{"missing container", filepath.Join(dir, "missing.asics"), signOptions{localTSA: true}, "missing.asics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _, _ := testEnv(t)
			err := runSign(context.Background(), env, tt.path, &tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "a.asics"))
	assert.True(t, os.IsNotExist(err), "failed signing writes nothing")
}

func TestSign_InvalidSettings(t *testing.T) {
	env, _, _ := testEnv(t)
	env.Config.Set(config.KeyTimeout, "later")
	err := runSign(context.Background(), env, "x.asics", &signOptions{localTSA: true})
	assert.ErrorContains(t, err, config.KeyTimeout)
}

func TestParseOID(t *testing.T) {
	oid, err := parseOID("1.2.840.113549")
	require.NoError(t, err)
	assert.Equal(t, "1.2.840.113549", oid.String())

	for _, bad := range []string{"", "1", "1.x", "1.-2"} {
		_, err := parseOID(bad)
		assert.Error(t, err, bad)
	}
}
