package ecl

import (
	"net/url"
	"strings"

	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

// EncodeComponent percent-encodes s for use in a query string. Spaces become
// %20; the terminology server does not accept '+' as an encoded space. A
// literal '+' is encoded as %2B.
func EncodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// NormalizeInbound prepares an ECL fragment that may already have been
// encoded by an earlier hop. It percent-decodes the fragment and then turns
// every '+' into a space. If decoding fails the raw fragment is used; the
// returned decode error is informational and the string is always usable.
func NormalizeInbound(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	var decodeErr error
	if err != nil {
		decoded = raw
		decodeErr = apperrors.NewDecodeError("malformed percent-encoding in ecl parameter", err)
	}
	return strings.ReplaceAll(decoded, "+", " "), decodeErr
}
