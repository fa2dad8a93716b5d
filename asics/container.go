// Package asics implements ASiC-S containers: a ZIP envelope holding one data object and a
// chain of time-stamp tokens over it.
//
// A container is loaded with Open, or created empty with New or Create and given a data
// object with AddDataFile. Sign appends a time-stamp token: the first over the data object
// (META-INF/timestamp.tst), later ones over an ASiCArchiveManifest that digests the data
// object and every earlier artifact. Save writes the container back.
//
// A Container is not safe for concurrent use.
package asics

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/observability"
)

// Container is an ASiC-S container.
type Container struct {
	path       string
	dataFile   *DataFile
	metadata   MetadataStore
	signatures []signatures.Signature

	digestAlgorithm signatures.DigestAlgorithm
	logger          observability.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger observability.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithDigestAlgorithm sets the algorithm used for manifest references and new tokens.
func WithDigestAlgorithm(alg signatures.DigestAlgorithm) Option {
	return func(c *Container) { c.digestAlgorithm = alg }
}

// New returns an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		digestAlgorithm: signatures.DefaultDigestAlgorithm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.NewNullLogger()
	}
	return c
}

// Create returns an empty container to be saved at path.
// Only the asics and scs extensions name ASiC-S containers; anything else yields ErrNotSimpleFormat.
func Create(filePath string, opts ...Option) (*Container, error) {
	if !hasExtension(filePath, "asics", "scs") {
		return nil, fmt.Errorf("%w: %s", ErrNotSimpleFormat, filePath)
	}
	c := New(opts...)
	c.path = filePath
	c.logger.Debug("Creating ASiC-S container {Path}", filePath)
	return c, nil
}

// Path returns the path the container was opened from or created for.
func (c *Container) Path() string { return c.path }

// MediaType returns the ASiC-S mimetype.
func (c *Container) MediaType() string { return MimeTypeASiCS }

// DigestAlgorithm returns the container's default digest algorithm.
func (c *Container) DigestAlgorithm() signatures.DigestAlgorithm { return c.digestAlgorithm }

// DataFile returns the data object, or nil.
func (c *Container) DataFile() *DataFile { return c.dataFile }

// Signatures returns the signature chain, oldest first.
func (c *Container) Signatures() []signatures.Signature {
	out := make([]signatures.Signature, len(c.signatures))
	copy(out, c.signatures)
	return out
}

// Metadata returns the metadata store.
func (c *Container) Metadata() *MetadataStore { return &c.metadata }

// AddDataFile sets the data object.
//
// The name must be a plain file name: no directories, no META-INF, not "mimetype".
// An empty mediaType is guessed from the extension.
func (c *Container) AddDataFile(name, mediaType string, content []byte) error {
	if err := validateDataFileName(name); err != nil {
		return err
	}
	if c.dataFile != nil {
		return fmt.Errorf("%w: cannot add %s next to %s", ErrDuplicateDataFile, name, c.dataFile.Name())
	}
	c.dataFile = newDataFile(name, mediaType, content)
	c.logger.Debug("Added data file {DataFile} ({MediaType}, {Size} bytes)", name, c.dataFile.MediaType(), len(content))
	return nil
}

// AddDataFileFrom reads the data object from r.
func (c *Container) AddDataFileFrom(name, mediaType string, r io.Reader) error {
	if err := validateDataFileName(name); err != nil {
		return err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read data file %s: %w", name, err)
	}
	return c.AddDataFile(name, mediaType, content)
}

// AddAdESSignature is not supported: ASiC-S containers are only signed through Sign.
func (c *Container) AddAdESSignature(io.Reader) error {
	return fmt.Errorf("%w: adding AdES signatures to ASiC-S containers", ErrNotImplemented)
}

// PrepareSignature is not supported: ASiC-S containers are only signed through Sign.
func (c *Container) PrepareSignature(signatures.Signer) (signatures.Signature, error) {
	return nil, fmt.Errorf("%w: preparing signatures for ASiC-S containers", ErrNotImplemented)
}

// FileDigest returns the digest of the metadata entry called name.
// An empty algorithm selects the container's default.
func (c *Container) FileDigest(name string, alg signatures.DigestAlgorithm) (signatures.Digest, error) {
	if alg == "" {
		alg = c.digestAlgorithm
	}
	i, ok := c.metadata.Index(name)
	if !ok {
		return signatures.Digest{}, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return c.metadata.Digest(i, alg)
}

// Extract writes the data object to w.
func (c *Container) Extract(w io.Writer) (int64, error) {
	if c.dataFile == nil {
		return 0, ErrMissingDataObject
	}
	n, err := io.Copy(w, c.dataFile.Open())
	if err != nil {
		return n, fmt.Errorf("extract %s: %w", c.dataFile.Name(), err)
	}
	return n, nil
}

func validateDataFileName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case name == EntryMimetype:
		return fmt.Errorf("%w: %s is reserved", ErrInvalidName, name)
	case strings.HasPrefix(name, metaInfPrefix):
		return fmt.Errorf("%w: %s is inside META-INF", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %s", ErrUnsupportedSubfolder, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	return nil
}

// hasExtension compares the file extension case-insensitively.
func hasExtension(filePath string, exts ...string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(strings.ReplaceAll(filePath, `\`, "/"))), ".")
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
