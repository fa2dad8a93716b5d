package asics

import (
	"path"
	"strings"
)

// Media types written into containers and manifests.
const (
	MimeTypeASiCS = "application/vnd.etsi.asic-s+zip"
	MimeTypeASiCE = "application/vnd.etsi.asic-e+zip"

	MediaTypeTimestampToken = "application/vnd.etsi.timestamp-token"
	MediaTypeManifest       = "text/xml"
	MediaTypeOctetStream    = "application/octet-stream"
)

var mediaTypesByExtension = map[string]string{
	".txt":  "text/plain",
	".xml":  "text/xml",
	".html": "text/html",
	".csv":  "text/csv",
	".json": "application/json",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
}

// MediaTypeForName guesses a media type from a file extension, defaulting to application/octet-stream.
func MediaTypeForName(name string) string {
	if mt, ok := mediaTypesByExtension[strings.ToLower(path.Ext(name))]; ok {
		return mt
	}
	return MediaTypeOctetStream
}
