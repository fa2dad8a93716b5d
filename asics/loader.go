package asics

import (
	"archive/zip"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/observability"
)

// Open loads the ASiC-S container at filePath.
//
// On failure no container is returned. Errors wrap the sentinels in this package and
// name the offending entry.
func Open(ctx context.Context, filePath string, opts ...Option) (c *Container, err error) {
	ctx, span := observability.StartContainerOpenSpan(ctx, filePath)
	defer func() {
		observability.EndSpanWithError(span, err)
		recordOpen(err)
	}()

	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer func() { _ = zr.Close() }()

	c = New(opts...)
	c.path = filePath
	if err := c.load(ctx, &zr.Reader); err != nil {
		c.logger.WarnContext(ctx, "Failed to open {Path}: {Error}", filePath, err)
		return nil, err
	}
	return c, nil
}

// OpenReaderAt loads a container from an in-memory or otherwise random-access archive.
func OpenReaderAt(ctx context.Context, r io.ReaderAt, size int64, opts ...Option) (c *Container, err error) {
	ctx, span := observability.StartContainerOpenSpan(ctx, "")
	defer func() {
		observability.EndSpanWithError(span, err)
		recordOpen(err)
	}()

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open container from reader: %w", err)
	}

	c = New(opts...)
	if err := c.load(ctx, zr); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenFile routes filePath through IsSimpleFormat before loading it.
// Containers that are not ASiC-S yield ErrNotSimpleFormat.
func OpenFile(ctx context.Context, filePath string, opts ...Option) (*Container, error) {
	if !IsSimpleFormat(filePath) {
		return nil, fmt.Errorf("%w: %s", ErrNotSimpleFormat, filePath)
	}
	return Open(ctx, filePath, opts...)
}

func recordOpen(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	observability.ContainersOpenedTotal.WithLabelValues(result).Inc()
}

// loader classifies archive entries. Signature entry points are collected during the scan
// and turned into the chain once the data object is known.
type loader struct {
	c        *Container
	entries  map[string]*zip.File
	position map[string]int

	timestamp *zip.File
	manifest  *zip.File
	xades     []*signatures.XAdESLongTermArchive
}

// resolvedManifest is one archive manifest of a chain with the token signing it.
type resolvedManifest struct {
	name      string
	mediaType string
	root      bool
	raw       []byte
	manifest  *ArchiveManifest

	tokenName      string
	tokenMediaType string
	token          []byte
}

func (c *Container) load(ctx context.Context, zr *zip.Reader) error {
	l := &loader{
		c:        c,
		entries:  make(map[string]*zip.File, len(zr.File)),
		position: make(map[string]int, len(zr.File)),
	}
	for i, f := range zr.File {
		if _, ok := l.entries[f.Name]; !ok {
			l.entries[f.Name] = f
			l.position[f.Name] = i
		}
	}

	for _, f := range zr.File {
		if err := l.classify(ctx, f); err != nil {
			return err
		}
	}

	var chain []resolvedManifest
	if l.manifest != nil {
		var err error
		if chain, err = l.resolveManifestChain(ctx); err != nil {
			return err
		}
		if l.timestamp != nil && !chainCovers(chain, EntryTimestamp) {
			return fmt.Errorf("%w: %s is not covered by the archive manifest chain",
				ErrDuplicateSignatureEntryPoint, EntryTimestamp)
		}
	}

	if c.dataFile == nil {
		return ErrMissingDataObject
	}

	var meta []MetadataEntry
	if l.timestamp != nil {
		token, err := readEntry(l.timestamp)
		if err != nil {
			return err
		}
		c.signatures = append(c.signatures, signatures.NewTimestampToken(token, c.dataFile.Name()))
		meta = append(meta, MetadataEntry{Name: EntryTimestamp, MediaType: MediaTypeTimestampToken, Content: token})
	}
	for _, m := range chain {
		c.signatures = append(c.signatures, signatures.NewArchiveTimestampToken(m.name, m.raw, m.token))
		meta = append(meta,
			MetadataEntry{Name: m.name, MediaType: m.mediaType, Content: m.raw, Root: m.root},
			MetadataEntry{Name: m.tokenName, MediaType: m.tokenMediaType, Content: m.token})
	}

	// The store keeps archive order; the signature list keeps chain order.
	slices.SortStableFunc(meta, func(a, b MetadataEntry) int {
		return cmp.Compare(l.position[a.Name], l.position[b.Name])
	})
	for _, e := range meta {
		c.metadata.Append(e)
	}
	for _, s := range l.xades {
		c.signatures = append(c.signatures, s)
	}

	if len(c.signatures) == 0 {
		return ErrMissingSignature
	}

	c.logger.DebugContext(ctx, "Loaded {DataFile} with {SignatureCount} signatures and {MetadataCount} metadata entries",
		c.dataFile.Name(), len(c.signatures), c.metadata.Len())
	return nil
}

func (l *loader) classify(ctx context.Context, f *zip.File) error {
	name := f.Name
	logger := l.c.logger

	switch {
	case strings.HasSuffix(name, "/"):
		logger.VerboseContext(ctx, "Classified {Entry} as {Kind}", name, "directory")
		return nil

	case name == EntryMimetype:
		content, err := readEntry(f)
		if err != nil {
			return err
		}
		if got := strings.TrimSpace(string(content)); got != MimeTypeASiCS {
			return fmt.Errorf("%w: expected %s, found %q", ErrInvalidMimetype, MimeTypeASiCS, got)
		}
		logger.DebugContext(ctx, "Classified {Entry} as {Kind}", name, "mimetype")

	case name == EntryTimestamp:
		if l.timestamp != nil || l.xades != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateSignatureEntryPoint, name)
		}
		l.timestamp = f
		logger.DebugContext(ctx, "Classified {Entry} as {Kind}", name, "timestamp token")

	case name == EntrySignatures:
		if l.timestamp != nil || l.manifest != nil || l.xades != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateSignatureEntryPoint, name)
		}
		content, err := readEntry(f)
		if err != nil {
			return err
		}
		sigs, err := signatures.ParseXAdESSignatures(content)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		l.xades = sigs
		logger.DebugContext(ctx, "Classified {Entry} as {Kind}", name, "XAdES signatures")

	case name == EntryArchiveManifest:
		if l.manifest != nil || l.xades != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateSignatureEntryPoint, name)
		}
		l.manifest = f
		logger.DebugContext(ctx, "Classified {Entry} as {Kind}", name, "archive manifest")

	case strings.HasPrefix(name, metaInfPrefix):
		logger.VerboseContext(ctx, "Ignoring {Entry}", name)

	case isInSubfolder(name):
		return fmt.Errorf("%w: %s", ErrUnsupportedSubfolder, path.Dir(name))

	default:
		if l.c.dataFile != nil {
			return fmt.Errorf("%w: found %s after %s", ErrDuplicateDataFile, name, l.c.dataFile.Name())
		}
		content, err := readEntry(f)
		if err != nil {
			return err
		}
		l.c.dataFile = newDataFile(name, "", content)
		logger.DebugContext(ctx, "Classified {Entry} as {Kind}", name, "data object")
	}
	return nil
}

// resolveManifestChain walks Rootfile references depth-first from the head manifest.
// Manifests are returned in post-order, nested ones before the manifests referencing them.
// Every frozen manifest stays a Rootfile of its successors, so a manifest is usually reached
// more than once; it is resolved on the first visit and skipped afterwards. A reference back to
// a manifest still being resolved is a cycle.
func (l *loader) resolveManifestChain(ctx context.Context) ([]resolvedManifest, error) {
	type frame struct {
		resolvedManifest
		roots []DataObjectReference
		next  int
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	tokens := make(map[string]string)

	open := func(name, mediaType string, root bool) (*frame, error) {
		if onStack[name] {
			return nil, fmt.Errorf("%w: manifest %s references itself through its Rootfile chain", ErrSchemaValidation, name)
		}
		if visited[name] {
			return nil, nil
		}
		visited[name] = true

		f, ok := l.entries[name]
		if !ok {
			return nil, fmt.Errorf("%w: Rootfile %s is not in the archive", ErrSchemaValidation, name)
		}
		raw, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		m, err := ParseArchiveManifest(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if mediaType == "" {
			mediaType = MediaTypeManifest
		}
		return &frame{
			resolvedManifest: resolvedManifest{name: name, mediaType: mediaType, root: root, raw: raw, manifest: m},
			roots:            m.RootReferences(),
		}, nil
	}

	head, err := open(EntryArchiveManifest, MediaTypeManifest, false)
	if err != nil {
		return nil, err
	}

	var out []resolvedManifest
	stack := []*frame{head}
	onStack[head.name] = true
	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.next < len(top.roots) {
			ref := top.roots[top.next]
			top.next++
			child, err := open(ref.URI, ref.MimeType, true)
			if err != nil {
				return nil, err
			}
			if child == nil {
				continue
			}
			if len(stack) >= MaxManifestDepth {
				return nil, fmt.Errorf("%w: %s nests more than %d manifests", ErrManifestDepth, EntryArchiveManifest, MaxManifestDepth)
			}
			stack = append(stack, child)
			onStack[child.name] = true
			continue
		}
		stack = stack[:len(stack)-1]
		onStack[top.name] = false

		sig := top.manifest.SigReference
		if other, ok := tokens[sig.URI]; ok {
			return nil, fmt.Errorf("%w: %s and %s share the token %s", ErrSchemaValidation, other, top.name, sig.URI)
		}
		tokens[sig.URI] = top.name

		f, ok := l.entries[sig.URI]
		if !ok {
			return nil, fmt.Errorf("%w: SigReference %s of %s is not in the archive", ErrSchemaValidation, sig.URI, top.name)
		}
		token, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		top.tokenName = sig.URI
		top.tokenMediaType = sig.MimeType
		if top.tokenMediaType == "" {
			top.tokenMediaType = MediaTypeTimestampToken
		}
		top.token = token

		l.c.logger.DebugContext(ctx, "Resolved archive manifest {Manifest} signed by {Token}", top.name, sig.URI)
		out = append(out, top.resolvedManifest)
	}
	return out, nil
}

func chainCovers(chain []resolvedManifest, name string) bool {
	for _, m := range chain {
		if m.manifest.Covers(name) {
			return true
		}
	}
	return false
}

// isInSubfolder reports whether a non-META-INF entry has a directory component.
func isInSubfolder(name string) bool {
	dir := path.Dir(name)
	return dir != "." && dir != "/"
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	if f.UncompressedSize64 > 0 && f.UncompressedSize64 < 1<<30 {
		buf.Grow(int(f.UncompressedSize64))
	}
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return buf.Bytes(), nil
}
