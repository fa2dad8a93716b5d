package asics

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/willibrandon/goasics/asics/signatures"
)

var (
	tsaOnce sync.Once
	tsa     *signatures.LocalTimestamper
	tsaErr  error
)

// testSigner returns a shared in-process authority.
func testSigner(t *testing.T) *signatures.LocalTimestamper {
	t.Helper()
	tsaOnce.Do(func() {
		tsa, tsaErr = signatures.GenerateLocalTimestamper("asics test TSA", time.Hour)
	})
	require.NoError(t, tsaErr)
	return tsa
}

type failingSigner struct{ err error }

func (s failingSigner) Profile() signatures.Profile { return signatures.ProfileTimestampToken }

func (s failingSigner) Timestamp(context.Context, signatures.Digest) ([]byte, error) {
	return nil, s.err
}

type profileSigner struct{ profile signatures.Profile }

func (s profileSigner) Profile() signatures.Profile { return s.profile }

func (s profileSigner) Timestamp(context.Context, signatures.Digest) ([]byte, error) {
	return nil, errors.New("must not be called")
}

type zipEntry struct {
	name    string
	content []byte
}

// buildZip writes entries in order; names ending in "/" become directories.
func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Deflate
		if e.name == EntryMimetype {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		if len(e.content) > 0 {
			_, err = w.Write(e.content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func openBytes(data []byte) (*Container, error) {
	return OpenReaderAt(context.Background(), bytes.NewReader(data), int64(len(data)))
}

// zipNames lists entry names of a ZIP archive in order.
func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

// zipContent returns the content of one entry.
func zipContent(t *testing.T, data []byte, name string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			content, err := readEntry(f)
			require.NoError(t, err)
			return content
		}
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

// newSignedContainer creates a container holding doc.txt and signs it rounds times.
func newSignedContainer(t *testing.T, rounds int) *Container {
	t.Helper()
	c := New()
	require.NoError(t, c.AddDataFile("doc.txt", "", []byte("the data object")))
	for i := 0; i < rounds; i++ {
		_, err := c.Sign(context.Background(), testSigner(t))
		require.NoError(t, err)
	}
	return c
}

func saveBytes(t *testing.T, c *Container) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Save(context.Background(), &buf))
	return buf.Bytes()
}

func mustDigest(t *testing.T, data []byte) signatures.Digest {
	t.Helper()
	d, err := signatures.ComputeDigestBytes(signatures.DigestSHA256, data)
	require.NoError(t, err)
	return d
}

func mustTimestamp(t *testing.T, data []byte) []byte {
	t.Helper()
	token, err := testSigner(t).Timestamp(context.Background(), mustDigest(t, data))
	require.NoError(t, err)
	return token
}
