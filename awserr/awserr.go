// Package awserr defines the error taxonomy of the client and normalizes
// the heterogeneous error payloads returned by AWS endpoints into a single
// Error type.
package awserr

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

var (
	// ErrConfigFile is returned when a shared config or credentials file
	// exists but cannot be parsed.
	ErrConfigFile = errors.New("unable to parse config file")

	// ErrNoCredentials is returned when no source yields usable credentials.
	ErrNoCredentials = errors.New("credentials not found")

	// ErrInstanceMetadata is returned when the instance metadata service is
	// reachable but returns an unusable response.
	ErrInstanceMetadata = errors.New("invalid instance metadata response")
)

// Error is the normalized form of an AWS error response. Code and Message
// are empty when the response body could not be parsed, in which case
// RawBody carries the original payload for diagnostics.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	RawBody    []byte
}

func (e *Error) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("aws: request failed with status %d", e.StatusCode)
	}
	if e.Message == "" {
		return fmt.Sprintf("aws: %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("aws: %s: %s (status %d)", e.Code, e.Message, e.StatusCode)
}

type contentFamily int

const (
	familyOther contentFamily = iota
	familyAmzJSON
	familyJSON
	familyXML
)

func familyOf(contentType string) contentFamily {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "application/x-amz-json-1.0", "application/x-amz-json-1.1":
		return familyAmzJSON
	case "application/json":
		return familyJSON
	case "application/xml", "text/xml":
		return familyXML
	}
	return familyOther
}

// refreshableCodes are the error codes that indicate the signing credentials
// are no longer accepted and instance metadata credentials should be
// invalidated and fetched again on the next call.
var refreshableCodes = map[string]struct{}{
	"AuthFailure":                         {},
	"AuthMissingFailure":                  {},
	"AWS.InvalidAccount":                  {},
	"ExpiredToken":                        {},
	"ExpiredTokenException":               {},
	"InvalidClientTokenId":                {},
	"InvalidSecurity":                     {},
	"InvalidSignatureException":           {},
	"MissingAuthenticationToken":          {},
	"MissingAuthenticationTokenException": {},
	"SignatureDoesNotMatch":               {},
	"UnrecognizedClientException":         {},
}

// RefreshableAuthFailure reports whether the given normalized error code
// signals an authentication failure that warrants refreshing dynamically
// sourced credentials.
func RefreshableAuthFailure(code string) bool {
	_, ok := refreshableCodes[code]
	return ok
}
