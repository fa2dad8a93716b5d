package asics

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/observability"
)

const (
	timestampPrefix = "META-INF/timestamp"
	timestampSuffix = ".tst"
	manifestPrefix  = "META-INF/ASiCArchiveManifest"
	manifestSuffix  = ".xml"
)

// Sign appends a time-stamp token to the signature chain and returns it.
//
// The first token covers the data object and is stored as META-INF/timestamp.tst. Every later
// token covers a new ASiCArchiveManifest that digests the data object and all metadata entries;
// the previous head manifest is frozen under a numbered name and flagged Rootfile. If the signer
// fails, the container is left as it was.
func (c *Container) Sign(ctx context.Context, signer signatures.Signer) (sig signatures.Signature, err error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", ErrUnsupportedProfile)
	}
	if p := signer.Profile(); p != signatures.ProfileTimestampToken {
		return nil, fmt.Errorf("%w: requested %s", ErrUnsupportedProfile, p)
	}
	if c.dataFile == nil {
		return nil, ErrMissingDataObject
	}

	ctx, span := observability.StartContainerSignSpan(ctx, c.dataFile.Name(), len(c.signatures))
	defer func() { observability.EndSpanWithError(span, err) }()

	if len(c.signatures) == 0 {
		return c.signDataFile(ctx, signer)
	}
	return c.signArchive(ctx, signer)
}

// signDataFile timestamps the data object directly.
func (c *Container) signDataFile(ctx context.Context, signer signatures.Signer) (signatures.Signature, error) {
	digest, err := c.dataFile.Digest(c.digestAlgorithm)
	if err != nil {
		return nil, err
	}
	token, err := timestamp(ctx, signer, digest)
	if err != nil {
		c.logger.WarnContext(ctx, "Timestamping {DataFile} failed: {Error}", c.dataFile.Name(), err)
		return nil, err
	}

	c.metadata.Append(MetadataEntry{Name: EntryTimestamp, MediaType: MediaTypeTimestampToken, Content: token})
	sig := signatures.NewTimestampToken(token, c.dataFile.Name())
	c.signatures = append(c.signatures, sig)

	observability.SignaturesCreatedTotal.WithLabelValues("initial").Inc()
	c.logger.InfoContext(ctx, "Signed {DataFile} as {Entry}", c.dataFile.Name(), EntryTimestamp)
	return sig, nil
}

// signArchive extends the chain with a new archive manifest and a token over it.
func (c *Container) signArchive(ctx context.Context, signer signatures.Signer) (signatures.Signature, error) {
	names := c.metadata.Names()
	tstName := NextUnusedName(names, timestampPrefix, timestampSuffix, 1)

	manifest := NewArchiveManifest(tstName)
	digest, err := c.dataFile.Digest(c.digestAlgorithm)
	if err != nil {
		return nil, err
	}
	manifest.AddReference(c.dataFile.Name(), c.dataFile.MediaType(), false, digest)

	mark := c.metadata.Len()
	renamed, headSig := -1, -1
	var oldName string
	var oldRoot bool
	var oldSig signatures.Signature
	rollback := func() {
		c.metadata.truncate(mark)
		if renamed >= 0 {
			c.metadata.rename(renamed, oldName, oldRoot)
		}
		if headSig >= 0 {
			c.signatures[headSig] = oldSig
		}
	}

	for i := 0; i < mark; i++ {
		entry := c.metadata.At(i)
		if entry.Name == EntryArchiveManifest {
			frozen := NextUnusedName(names, manifestPrefix, manifestSuffix, 1)
			oldName, oldRoot = c.metadata.rename(i, frozen, true)
			renamed = i
			if headSig = c.headToken(); headSig >= 0 {
				oldSig = c.signatures[headSig]
				c.signatures[headSig] = oldSig.(*signatures.TimestampToken).Renamed(frozen)
			}
			c.logger.DebugContext(ctx, "Froze {Manifest} as {FrozenManifest}", EntryArchiveManifest, frozen)
			entry = c.metadata.At(i)
		}
		d, err := c.metadata.Digest(i, c.digestAlgorithm)
		if err != nil {
			rollback()
			return nil, err
		}
		manifest.AddReference(entry.Name, entry.MediaType, entry.Root, d)
	}

	raw, err := manifest.Marshal()
	if err != nil {
		rollback()
		return nil, err
	}
	c.metadata.Append(MetadataEntry{Name: EntryArchiveManifest, MediaType: MediaTypeManifest, Content: raw})

	manifestDigest, err := signatures.ComputeDigestBytes(c.digestAlgorithm, raw)
	if err != nil {
		rollback()
		return nil, err
	}
	token, err := timestamp(ctx, signer, manifestDigest)
	if err != nil {
		rollback()
		c.logger.WarnContext(ctx, "Timestamping {Manifest} failed, chain left unchanged: {Error}", EntryArchiveManifest, err)
		return nil, err
	}

	c.metadata.Append(MetadataEntry{Name: tstName, MediaType: MediaTypeTimestampToken, Content: token})
	sig := signatures.NewArchiveTimestampToken(EntryArchiveManifest, raw, token)
	c.signatures = append(c.signatures, sig)

	observability.SignaturesCreatedTotal.WithLabelValues("archive").Inc()
	c.logger.InfoContext(ctx, "Extended chain of {DataFile} with {Manifest} signed by {Token}",
		c.dataFile.Name(), EntryArchiveManifest, tstName)
	return sig, nil
}

// headToken returns the index of the token covering the head archive manifest, or -1.
func (c *Container) headToken() int {
	for i := len(c.signatures) - 1; i >= 0; i-- {
		if t, ok := c.signatures[i].(*signatures.TimestampToken); ok && t.IsArchiveTimestamp() && t.Subject() == EntryArchiveManifest {
			return i
		}
	}
	return -1
}

// timestamp asks the signer for a token and checks that it covers digest.
func timestamp(ctx context.Context, signer signatures.Timestamper, digest signatures.Digest) ([]byte, error) {
	token, err := signer.Timestamp(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	if len(token) == 0 {
		return nil, errors.New("timestamp: signer returned an empty token")
	}
	info, err := signatures.ParseTimestampToken(token)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	if info.HashAlgorithm != digest.Algorithm || !bytes.Equal(info.MessageImprint, digest.Value) {
		return nil, fmt.Errorf("timestamp: %w", signatures.ErrImprintMismatch)
	}
	return token, nil
}
