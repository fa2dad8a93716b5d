package asics

import (
	"fmt"
	"sync"

	"github.com/willibrandon/goasics/asics/signatures"
)

// MetadataEntry is an auxiliary artifact persisted under META-INF: a timestamp token or an archive manifest.
type MetadataEntry struct {
	Name      string
	MediaType string
	Content   []byte
	Root      bool
}

type storedEntry struct {
	MetadataEntry

	mu      sync.Mutex
	digests map[signatures.DigestAlgorithm]signatures.Digest
}

// digest memoizes per algorithm; content never changes after the entry is stored.
func (e *storedEntry) digest(alg signatures.DigestAlgorithm) (signatures.Digest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d, ok := e.digests[alg]; ok {
		return d, nil
	}
	d, err := signatures.ComputeDigestBytes(alg, e.Content)
	if err != nil {
		return signatures.Digest{}, err
	}
	if e.digests == nil {
		e.digests = make(map[signatures.DigestAlgorithm]signatures.Digest)
	}
	e.digests[alg] = d
	return d, nil
}

// MetadataStore is the ordered, append-only list of metadata entries.
//
// Insertion order is serialization order. Indices are stable: entries are never
// reordered, and the only mutation is renaming.
type MetadataStore struct {
	entries []*storedEntry
}

// Append adds an entry and returns its index.
func (s *MetadataStore) Append(e MetadataEntry) int {
	s.entries = append(s.entries, &storedEntry{MetadataEntry: e})
	return len(s.entries) - 1
}

// Len returns the number of entries.
func (s *MetadataStore) Len() int { return len(s.entries) }

// At returns a copy of the entry at index i.
func (s *MetadataStore) At(i int) MetadataEntry { return s.entries[i].MetadataEntry }

// Entries returns copies of all entries in order.
func (s *MetadataStore) Entries() []MetadataEntry {
	out := make([]MetadataEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.MetadataEntry
	}
	return out
}

// Names returns the entry names in order.
func (s *MetadataStore) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// Index returns the index of the first entry called name.
func (s *MetadataStore) Index(name string) (int, bool) {
	for i, e := range s.entries {
		if e.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Has reports whether an entry called name exists.
func (s *MetadataStore) Has(name string) bool {
	_, ok := s.Index(name)
	return ok
}

// Digest returns the memoized digest of the entry at index i.
func (s *MetadataStore) Digest(i int, alg signatures.DigestAlgorithm) (signatures.Digest, error) {
	if i < 0 || i >= len(s.entries) {
		return signatures.Digest{}, fmt.Errorf("%w: index %d", ErrEntryNotFound, i)
	}
	return s.entries[i].digest(alg)
}

// rename changes an entry's name and root flag and returns the previous values.
func (s *MetadataStore) rename(i int, name string, root bool) (string, bool) {
	e := s.entries[i]
	oldName, oldRoot := e.Name, e.Root
	e.Name, e.Root = name, root
	return oldName, oldRoot
}

// truncate drops entries appended after the store had n entries.
func (s *MetadataStore) truncate(n int) {
	for i := n; i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = s.entries[:n]
}
