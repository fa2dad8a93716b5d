package asics

import (
	"bytes"
	"io"
	"sync"

	"github.com/willibrandon/goasics/asics/signatures"
)

// DataFile is the single data object of a container. It is immutable.
type DataFile struct {
	name      string
	mediaType string
	content   []byte

	mu      sync.Mutex
	digests map[signatures.DigestAlgorithm]signatures.Digest
}

func newDataFile(name, mediaType string, content []byte) *DataFile {
	if mediaType == "" {
		mediaType = MediaTypeForName(name)
	}
	return &DataFile{name: name, mediaType: mediaType, content: content}
}

// Name returns the entry name.
func (f *DataFile) Name() string { return f.name }

// MediaType returns the media type.
func (f *DataFile) MediaType() string { return f.mediaType }

// Size returns the content length in bytes.
func (f *DataFile) Size() int64 { return int64(len(f.content)) }

// Open returns a reader over the content.
func (f *DataFile) Open() io.Reader { return bytes.NewReader(f.content) }

// Digest computes the digest of the content with alg. Results are memoized.
func (f *DataFile) Digest(alg signatures.DigestAlgorithm) (signatures.Digest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if d, ok := f.digests[alg]; ok {
		return d, nil
	}
	d, err := signatures.ComputeDigestBytes(alg, f.content)
	if err != nil {
		return signatures.Digest{}, err
	}
	if f.digests == nil {
		f.digests = make(map[signatures.DigestAlgorithm]signatures.Digest)
	}
	f.digests[alg] = d
	return d, nil
}
