package asics

import (
	"fmt"
	"net/url"
	"strings"
)

// toURIPath percent-encodes every segment of an entry name, keeping the separators.
func toURIPath(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// fromURIPath decodes a manifest URI attribute into an entry name.
func fromURIPath(uri string) (string, error) {
	name, err := url.PathUnescape(uri)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URI %q: %v", ErrSchemaValidation, uri, err)
	}
	return strings.TrimPrefix(name, "./"), nil
}
