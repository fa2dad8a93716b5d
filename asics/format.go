package asics

import (
	"archive/zip"
	"fmt"
	"strings"
)

// IsSimpleFormat reports whether filePath names an ASiC-S container.
//
// The extension decides first: asice, sce and bdoc are extended containers, asics and scs are
// simple ones. Any other file is probed: its first ZIP entry must be "mimetype" holding the
// ASiC-S media type. A file that cannot be probed is not ASiC-S.
func IsSimpleFormat(filePath string) bool {
	if hasExtension(filePath, "asice", "sce", "bdoc") {
		return false
	}
	if hasExtension(filePath, "asics", "scs") {
		return true
	}
	ok, err := probeMimetype(filePath, MimeTypeASiCS)
	if err != nil {
		return false
	}
	return ok
}

// IsExtendedFormat reports whether filePath names an ASiC-E container, by the same rules.
func IsExtendedFormat(filePath string) bool {
	if hasExtension(filePath, "asice", "sce", "bdoc") {
		return true
	}
	if hasExtension(filePath, "asics", "scs") {
		return false
	}
	ok, err := probeMimetype(filePath, MimeTypeASiCE)
	if err != nil {
		return false
	}
	return ok
}

// probeMimetype reports whether the first entry of the archive is a mimetype holding want.
func probeMimetype(filePath, want string) (bool, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", filePath, err)
	}
	defer func() { _ = zr.Close() }()

	if len(zr.File) == 0 || zr.File[0].Name != EntryMimetype {
		return false, nil
	}
	content, err := readEntry(zr.File[0])
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(content)) == want, nil
}
