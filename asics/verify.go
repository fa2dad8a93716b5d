package asics

import (
	"errors"
	"fmt"
	"time"

	"github.com/willibrandon/goasics/asics/signatures"
)

// ErrDigestMismatch indicates a manifest reference whose digest does not match the referenced content.
var ErrDigestMismatch = errors.New("digest mismatch")

// SignatureStatus is the verification outcome of one signature in the chain.
type SignatureStatus struct {
	Index   int
	Profile signatures.Profile
	Subject string
	Archive bool
	GenTime time.Time
	Err     error
}

// Valid reports whether the signature verified.
func (s SignatureStatus) Valid() bool { return s.Err == nil }

// Verify checks every signature in the chain.
//
// A time-stamp token must carry an imprint of the artifact it covers: the data object for
// timestamp.tst, the manifest bytes for archive tokens. Every DataObjectReference of an archive
// manifest must match the digest of the entry it names, and the CMS signature of each token must
// verify with the embedded TSA certificate. Trust in that certificate is not evaluated.
// XAdES signatures are reported with ErrNotImplemented.
//
// The returned error joins all failures.
func (c *Container) Verify() ([]SignatureStatus, error) {
	if c.dataFile == nil {
		return nil, ErrMissingDataObject
	}
	if len(c.signatures) == 0 {
		return nil, ErrMissingSignature
	}

	statuses := make([]SignatureStatus, len(c.signatures))
	var errs []error
	for i, s := range c.signatures {
		st := SignatureStatus{Index: i, Profile: s.Profile()}
		switch sig := s.(type) {
		case *signatures.TimestampToken:
			st.Subject = sig.Subject()
			st.Archive = sig.IsArchiveTimestamp()
			st.GenTime, st.Err = c.verifyToken(sig)
		case *signatures.XAdESLongTermArchive:
			st.Subject = sig.ID()
			st.Err = fmt.Errorf("%w: XAdES signature verification", ErrNotImplemented)
		}
		if st.Err != nil {
			errs = append(errs, fmt.Errorf("signature %d (%s): %w", i, st.Subject, st.Err))
		}
		statuses[i] = st
	}
	return statuses, errors.Join(errs...)
}

func (c *Container) verifyToken(t *signatures.TimestampToken) (time.Time, error) {
	var content []byte
	if t.IsArchiveTimestamp() {
		content = t.Manifest()
	} else {
		var err error
		if content, err = c.dataFileContent(); err != nil {
			return time.Time{}, err
		}
	}

	info, err := signatures.VerifyToken(t.Save(), content)
	if err != nil {
		var genTime time.Time
		if info != nil {
			genTime = info.GenTime
		}
		return genTime, err
	}

	if t.IsArchiveTimestamp() {
		if err := c.verifyManifestReferences(t.Manifest()); err != nil {
			return info.GenTime, err
		}
	}
	return info.GenTime, nil
}

func (c *Container) verifyManifestReferences(raw []byte) error {
	m, err := ParseArchiveManifest(raw)
	if err != nil {
		return err
	}
	for _, ref := range m.References {
		var actual signatures.Digest
		switch i, ok := c.metadata.Index(ref.URI); {
		case ref.URI == c.dataFile.Name():
			actual, err = c.dataFile.Digest(ref.Digest.Algorithm)
		case ok:
			actual, err = c.metadata.Digest(i, ref.Digest.Algorithm)
		default:
			return fmt.Errorf("%w: manifest references %s", ErrEntryNotFound, ref.URI)
		}
		if err != nil {
			return err
		}
		if !actual.Equal(ref.Digest) {
			return fmt.Errorf("%w: %s has %s, manifest expects %s", ErrDigestMismatch, ref.URI, actual, ref.Digest)
		}
	}
	return nil
}

func (c *Container) dataFileContent() ([]byte, error) {
	if c.dataFile == nil {
		return nil, ErrMissingDataObject
	}
	return c.dataFile.content, nil
}
