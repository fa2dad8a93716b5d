package asics

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSignatureEntryPoint indicates that more than one of timestamp.tst,
	// signatures.xml or an archive manifest chain populates the signature chain.
	ErrDuplicateSignatureEntryPoint = errors.New("container already contains a signature")

	// ErrDuplicateDataFile indicates a second data object.
	ErrDuplicateDataFile = errors.New("container already contains a data object")

	// ErrUnsupportedSubfolder indicates a data entry inside a directory.
	ErrUnsupportedSubfolder = errors.New("subfolders are not supported")

	// ErrMissingDataObject indicates a container without a data object.
	ErrMissingDataObject = errors.New("container does not contain any data objects")

	// ErrMissingSignature indicates a loaded container without signatures.
	ErrMissingSignature = errors.New("container does not contain any signatures")

	// ErrUnsupportedProfile indicates a signing profile other than TimeStampToken.
	ErrUnsupportedProfile = errors.New("container supports only TimeStampToken signing")

	// ErrSchemaValidation indicates a malformed or unresolvable archive manifest.
	ErrSchemaValidation = errors.New("archive manifest failed validation")

	// ErrEntryNotFound indicates a name absent from the metadata store.
	ErrEntryNotFound = errors.New("file not found")

	// ErrNotImplemented is returned by operations ASiC-S does not support.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidMimetype indicates a mimetype entry that does not name ASiC-S.
	ErrInvalidMimetype = errors.New("invalid mimetype")

	// ErrManifestDepth indicates a manifest chain nested deeper than MaxManifestDepth.
	ErrManifestDepth = fmt.Errorf("%w: manifest chain too deep", ErrSchemaValidation)

	// ErrNotSimpleFormat indicates a path that does not name an ASiC-S container.
	ErrNotSimpleFormat = errors.New("not an ASiC-S container")

	// ErrInvalidName indicates a data file name that cannot be stored.
	ErrInvalidName = errors.New("invalid file name")
)
