package asics

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/observability"
)

// Save writes the container as a ZIP archive.
//
// The mimetype entry is written first and uncompressed, followed by the data object and the
// metadata entries in store order. An unsigned container gets no signature artifacts. A chain
// that does not start with a time-stamp token cannot be saved.
func (c *Container) Save(ctx context.Context, w io.Writer) (err error) {
	ctx, span := observability.StartContainerSaveSpan(ctx, c.metadata.Len()+2)
	defer func() {
		observability.EndSpanWithError(span, err)
		result := "success"
		if err != nil {
			result = "error"
		}
		observability.ContainersSavedTotal.WithLabelValues(result).Inc()
	}()

	if c.dataFile == nil {
		return ErrMissingDataObject
	}
	if len(c.signatures) > 0 {
		if p := c.signatures[0].Profile(); p != signatures.ProfileTimestampToken {
			return fmt.Errorf("%w: first signature has profile %s", ErrUnsupportedProfile, p)
		}
	}

	modified := time.Now()
	zw := zip.NewWriter(w)
	defer func() { _ = zw.Close() }()

	if err := writeEntry(zw, EntryMimetype, zip.Store, modified, []byte(MimeTypeASiCS)); err != nil {
		return err
	}

	fw, err := zw.CreateHeader(&zip.FileHeader{Name: c.dataFile.Name(), Method: zip.Deflate, Modified: modified})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", c.dataFile.Name(), err)
	}
	if _, err := io.Copy(fw, c.dataFile.Open()); err != nil {
		return fmt.Errorf("write entry %s: %w", c.dataFile.Name(), err)
	}

	if len(c.signatures) > 0 {
		for _, e := range c.metadata.Entries() {
			if err := writeEntry(zw, e.Name, zip.Deflate, modified, e.Content); err != nil {
				return err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close ZIP: %w", err)
	}

	c.logger.DebugContext(ctx, "Saved {DataFile} with {SignatureCount} signatures", c.dataFile.Name(), len(c.signatures))
	return nil
}

// SaveFile writes the container to filePath, or to the path it was opened from or created for
// when filePath is empty. The archive is written to a temporary file next to the destination
// and renamed into place.
func (c *Container) SaveFile(ctx context.Context, filePath string) (err error) {
	if filePath == "" {
		filePath = c.path
	}
	if filePath == "" {
		return fmt.Errorf("save container: no destination path")
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".goasics-*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := c.Save(ctx, tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("replace %s: %w", filePath, err)
	}

	c.path = filePath
	c.logger.InfoContext(ctx, "Wrote {Path}", filePath)
	return nil
}

func writeEntry(zw *zip.Writer, name string, method uint16, modified time.Time, content []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: modified})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
