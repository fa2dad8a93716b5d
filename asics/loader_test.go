package asics

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/observability"
)

const xadesDocument = `<?xml version="1.0" encoding="UTF-8"?>
<asic:XAdESSignatures xmlns:asic="http://uri.etsi.org/02918/v1.2.1#" xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
  <ds:Signature Id="S0"><ds:SignedInfo/><ds:SignatureValue>AA==</ds:SignatureValue></ds:Signature>
  <ds:Signature Id="S1"><ds:SignedInfo/><ds:SignatureValue>AA==</ds:SignatureValue></ds:Signature>
</asic:XAdESSignatures>`

func TestOpen_SimpleTimestamp(t *testing.T) {
	data := []byte("hello")
	token := mustTimestamp(t, data)
	archive := buildZip(t,
		zipEntry{EntryMimetype, []byte(MimeTypeASiCS)},
		zipEntry{"hello.txt", data},
		zipEntry{"META-INF/", nil},
		zipEntry{EntryTimestamp, token},
		zipEntry{"META-INF/manifest.xml", []byte("<ignored/>")},
	)

	c, err := openBytes(archive)
	require.NoError(t, err)

	require.NotNil(t, c.DataFile())
	assert.Equal(t, "hello.txt", c.DataFile().Name())
	assert.Equal(t, "text/plain", c.DataFile().MediaType())

	sigs := c.Signatures()
	require.Len(t, sigs, 1)
	tok, ok := sigs[0].(*signatures.TimestampToken)
	require.True(t, ok)
	assert.Equal(t, "hello.txt", tok.Subject())
	assert.False(t, tok.IsArchiveTimestamp())

	require.Equal(t, 1, c.Metadata().Len())
	entry := c.Metadata().At(0)
	assert.Equal(t, EntryTimestamp, entry.Name)
	assert.Equal(t, MediaTypeTimestampToken, entry.MediaType)
	assert.Equal(t, token, entry.Content)
}

func TestOpen_DataFileAfterToken(t *testing.T) {
	data := []byte("late data")
	archive := buildZip(t,
		zipEntry{EntryTimestamp, mustTimestamp(t, data)},
		zipEntry{"late.bin", data},
	)
	c, err := openBytes(archive)
	require.NoError(t, err)
	assert.Equal(t, "late.bin", c.Signatures()[0].(*signatures.TimestampToken).Subject())
}

func TestOpen_XAdESSignatures(t *testing.T) {
	archive := buildZip(t,
		zipEntry{EntryMimetype, []byte(MimeTypeASiCS)},
		zipEntry{"doc.txt", []byte("x")},
		zipEntry{EntrySignatures, []byte(xadesDocument)},
	)
	c, err := openBytes(archive)
	require.NoError(t, err)

	sigs := c.Signatures()
	require.Len(t, sigs, 2)
	for _, s := range sigs {
		_, ok := s.(*signatures.XAdESLongTermArchive)
		assert.True(t, ok)
	}
	assert.Equal(t, 0, c.Metadata().Len())
}

func TestOpen_StructuralErrors(t *testing.T) {
	data := []byte("payload")
	token := mustTimestamp(t, data)
	mimetype := zipEntry{EntryMimetype, []byte(MimeTypeASiCS)}

	tests := []struct {
		name    string
		entries []zipEntry
		wantErr error
	}{
		{
			"timestamp and signatures.xml",
			[]zipEntry{mimetype, {"doc.txt", data}, {EntryTimestamp, token}, {EntrySignatures, []byte(xadesDocument)}},
			ErrDuplicateSignatureEntryPoint,
		},
		{
			"signatures.xml and timestamp",
			[]zipEntry{mimetype, {EntrySignatures, []byte(xadesDocument)}, {EntryTimestamp, token}, {"doc.txt", data}},
			ErrDuplicateSignatureEntryPoint,
		},
		{
			"two timestamp entries",
			[]zipEntry{mimetype, {"doc.txt", data}, {EntryTimestamp, token}, {EntryTimestamp, token}},
			ErrDuplicateSignatureEntryPoint,
		},
		{
			"two data objects",
			[]zipEntry{mimetype, {"a.txt", data}, {"b.txt", data}, {EntryTimestamp, token}},
			ErrDuplicateDataFile,
		},
		{
			"subfolder",
			[]zipEntry{mimetype, {"docs/readme.txt", data}, {EntryTimestamp, token}},
			ErrUnsupportedSubfolder,
		},
		{
			"no data object",
			[]zipEntry{mimetype, {EntryTimestamp, token}},
			ErrMissingDataObject,
		},
		{
			"no signature",
			[]zipEntry{mimetype, {"doc.txt", data}},
			ErrMissingSignature,
		},
		{
			"wrong mimetype",
			[]zipEntry{{EntryMimetype, []byte(MimeTypeASiCE)}, {"doc.txt", data}, {EntryTimestamp, token}},
			ErrInvalidMimetype,
		},
		{
			"timestamp alongside unrelated manifest chain",
			[]zipEntry{
				mimetype, {"doc.txt", data}, {EntryTimestamp, token},
				{EntryArchiveManifest, manifestOnly(t, "META-INF/timestamp001.tst", "doc.txt", data)},
				{"META-INF/timestamp001.tst", token},
			},
			ErrDuplicateSignatureEntryPoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := openBytes(buildZip(t, tt.entries...))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, c, "a failed load must not expose a container")
		})
	}
}

// manifestOnly builds a head manifest covering the data object alone.
func manifestOnly(t *testing.T, tokenName, dataName string, data []byte) []byte {
	t.Helper()
	m := NewArchiveManifest(tokenName)
	m.AddReference(dataName, "text/plain", false, mustDigest(t, data))
	raw, err := m.Marshal()
	require.NoError(t, err)
	return raw
}

func TestOpen_ManifestChainWithoutTimestampEntry(t *testing.T) {
	data := []byte("payload")
	manifest := manifestOnly(t, "META-INF/timestamp001.tst", "doc.txt", data)
	archive := buildZip(t,
		zipEntry{EntryMimetype, []byte(MimeTypeASiCS)},
		zipEntry{"doc.txt", data},
		zipEntry{EntryArchiveManifest, manifest},
		zipEntry{"META-INF/timestamp001.tst", mustTimestamp(t, manifest)},
	)

	c, err := openBytes(archive)
	require.NoError(t, err)
	require.Len(t, c.Signatures(), 1)
	tok := c.Signatures()[0].(*signatures.TimestampToken)
	assert.True(t, tok.IsArchiveTimestamp())
	assert.Equal(t, manifest, tok.Manifest())
	assert.Equal(t, []string{EntryArchiveManifest, "META-INF/timestamp001.tst"}, c.Metadata().Names())

	_, err = c.Verify()
	assert.NoError(t, err)
}

func TestOpen_MetadataKeepsArchiveOrder(t *testing.T) {
	data := []byte("payload")
	first := mustTimestamp(t, data)

	m := NewArchiveManifest("META-INF/timestamp001.tst")
	m.AddReference("doc.txt", "text/plain", false, mustDigest(t, data))
	m.AddReference(EntryTimestamp, MediaTypeTimestampToken, false, mustDigest(t, first))
	manifest, err := m.Marshal()
	require.NoError(t, err)

	archive := buildZip(t,
		zipEntry{EntryMimetype, []byte(MimeTypeASiCS)},
		zipEntry{"doc.txt", data},
		zipEntry{EntryArchiveManifest, manifest},
		zipEntry{"META-INF/timestamp001.tst", mustTimestamp(t, manifest)},
		zipEntry{EntryTimestamp, first},
	)

	c, err := openBytes(archive)
	require.NoError(t, err)
	assert.Equal(t, []string{EntryArchiveManifest, "META-INF/timestamp001.tst", EntryTimestamp}, c.Metadata().Names())

	require.Len(t, c.Signatures(), 2)
	assert.False(t, c.Signatures()[0].(*signatures.TimestampToken).IsArchiveTimestamp(), "chain order is kept")

	_, err = c.Verify()
	assert.NoError(t, err)
	assert.Equal(t, []string{EntryMimetype, "doc.txt", EntryArchiveManifest, "META-INF/timestamp001.tst", EntryTimestamp},
		zipNames(t, saveBytes(t, c)))
}

func TestOpen_ManifestResolutionErrors(t *testing.T) {
	data := []byte("payload")
	digest := mustDigest(t, data)
	mimetype := zipEntry{EntryMimetype, []byte(MimeTypeASiCS)}
	dataEntry := zipEntry{"doc.txt", data}

	manifest := func(token string, roots ...string) []byte {
		m := NewArchiveManifest(token)
		m.AddReference("doc.txt", "text/plain", false, digest)
		for _, r := range roots {
			m.AddReference(r, MediaTypeManifest, true, digest)
		}
		raw, err := m.Marshal()
		require.NoError(t, err)
		return raw
	}
	token := []byte("token bytes are not parsed on load")

	tests := []struct {
		name    string
		entries []zipEntry
		wantErr error
	}{
		{
			"unresolved Rootfile",
			[]zipEntry{mimetype, dataEntry,
				{EntryArchiveManifest, manifest("META-INF/timestamp002.tst", "META-INF/ASiCArchiveManifest001.xml")},
				{"META-INF/timestamp002.tst", token}},
			ErrSchemaValidation,
		},
		{
			"unresolved SigReference",
			[]zipEntry{mimetype, dataEntry, {EntryArchiveManifest, manifest("META-INF/timestamp001.tst")}},
			ErrSchemaValidation,
		},
		{
			"cycle",
			[]zipEntry{mimetype, dataEntry,
				{EntryArchiveManifest, manifest("META-INF/timestamp002.tst", "META-INF/ASiCArchiveManifest001.xml")},
				{"META-INF/ASiCArchiveManifest001.xml", manifest("META-INF/timestamp001.tst", EntryArchiveManifest)},
				{"META-INF/timestamp001.tst", token}, {"META-INF/timestamp002.tst", token}},
			ErrSchemaValidation,
		},
		{
			"shared token",
			[]zipEntry{mimetype, dataEntry,
				{EntryArchiveManifest, manifest("META-INF/timestamp001.tst", "META-INF/ASiCArchiveManifest001.xml")},
				{"META-INF/ASiCArchiveManifest001.xml", manifest("META-INF/timestamp001.tst")},
				{"META-INF/timestamp001.tst", token}},
			ErrSchemaValidation,
		},
		{
			"malformed head",
			[]zipEntry{mimetype, dataEntry, {EntryArchiveManifest, []byte("<nope/>")}},
			ErrSchemaValidation,
		},
		{
			"two head manifests",
			[]zipEntry{mimetype, dataEntry,
				{EntryArchiveManifest, manifest("META-INF/timestamp001.tst")},
				{EntryArchiveManifest, manifest("META-INF/timestamp001.tst")},
				{"META-INF/timestamp001.tst", token}},
			ErrDuplicateSignatureEntryPoint,
		},
		{
			"manifest and signatures.xml",
			[]zipEntry{mimetype, dataEntry,
				{EntryArchiveManifest, manifest("META-INF/timestamp001.tst")},
				{"META-INF/timestamp001.tst", token},
				{EntrySignatures, []byte(xadesDocument)}},
			ErrDuplicateSignatureEntryPoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := openBytes(buildZip(t, tt.entries...))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, c)
		})
	}
}

func TestOpen_ManifestDepthBound(t *testing.T) {
	data := []byte("payload")
	digest := mustDigest(t, data)
	name := func(i int) string {
		if i == 0 {
			return EntryArchiveManifest
		}
		return fmt.Sprintf("META-INF/ASiCArchiveManifest%03d.xml", i)
	}

	entries := []zipEntry{{EntryMimetype, []byte(MimeTypeASiCS)}, {"doc.txt", data}}
	const chain = MaxManifestDepth + 5
	for i := 0; i < chain; i++ {
		m := NewArchiveManifest(fmt.Sprintf("META-INF/timestamp%03d.tst", i+1))
		m.AddReference("doc.txt", "text/plain", false, digest)
		if i+1 < chain {
			m.AddReference(name(i+1), MediaTypeManifest, true, digest)
		}
		raw, err := m.Marshal()
		require.NoError(t, err)
		entries = append(entries,
			zipEntry{name(i), raw},
			zipEntry{fmt.Sprintf("META-INF/timestamp%03d.tst", i+1), []byte("t")})
	}

	_, err := openBytes(buildZip(t, entries...))
	assert.ErrorIs(t, err, ErrManifestDepth)
	assert.ErrorIs(t, err, ErrSchemaValidation)
}

func TestOpen_FromFile(t *testing.T) {
	c := newSignedContainer(t, 2)
	p := writeTempFile(t, "signed.asics", saveBytes(t, c))

	before, _ := observability.GetCounterValue(observability.ContainersOpenedTotal, "success")

	loaded, err := Open(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p, loaded.Path())
	assert.Len(t, loaded.Signatures(), 2)

	after, _ := observability.GetCounterValue(observability.ContainersOpenedTotal, "success")
	assert.Equal(t, before+1, after)

	renamed := writeTempFile(t, "signed.bin", saveBytes(t, c))
	loaded, err = OpenFile(context.Background(), renamed)
	require.NoError(t, err, "probing the mimetype accepts any extension")
	assert.Len(t, loaded.Signatures(), 2)

	_, err = OpenFile(context.Background(), writeTempFile(t, "signed.asice", saveBytes(t, c)))
	assert.ErrorIs(t, err, ErrNotSimpleFormat)

	_, err = Open(context.Background(), p+".missing")
	assert.Error(t, err)
}
