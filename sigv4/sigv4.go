// Package sigv4 computes AWS Signature Version 4 request signatures.
//
// Signing is deterministic: identical input, including the signing
// timestamp, always produces an identical Authorization header. The signer
// does not send anything, it only returns the headers the request must
// carry.
package sigv4

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/zalando/awsclient/credentials"
)

// SigningAlgorithm identifies the signature scheme in the Authorization
// header.
const SigningAlgorithm = "AWS4-HMAC-SHA256"

const (
	amzDateHeader          = "X-Amz-Date"
	amzSecurityTokenHeader = "X-Amz-Security-Token"
	authorizationHeader    = "Authorization"
	hostHeader             = "Host"

	requestSuffix = "aws4_request"
)

// Request describes a single request to sign. It is constructed per call
// and discarded after signing.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    []byte
	Host    string
	Region  string
	Service string

	// Time is the signing timestamp, defaulting to time.Now. It is
	// ignored when Header already carries an X-Amz-Date value, which is
	// trusted as is.
	Time time.Time
}

// Signer signs requests with AWS Signature Version 4. It is safe for
// concurrent use, the only shared state is the derived signing key cache.
type Signer struct {
	keys *signingKeyCache
}

func NewSigner() *Signer {
	return &Signer{keys: newSigningKeyCache()}
}

// Sign computes the signature of the request with the given credentials and
// returns the headers to inject into the outgoing request: Authorization,
// and X-Amz-Date, Host and X-Amz-Security-Token where not already present.
// An existing Host header is never overwritten.
func (s *Signer) Sign(r *Request, creds credentials.Credentials) (http.Header, error) {
	extra := make(http.Header)

	var st signingTime
	if v := r.Header.Get(amzDateHeader); v != "" {
		t, err := time.Parse(timeFormat, v)
		if err != nil {
			return nil, fmt.Errorf("sigv4: invalid %s value %q", amzDateHeader, v)
		}
		st = newSigningTime(t)
	} else {
		t := r.Time
		if t.IsZero() {
			t = time.Now()
		}
		st = newSigningTime(t.UTC())
		extra.Set(amzDateHeader, st.amzDate())
	}

	if r.Header.Get(hostHeader) == "" && r.Host != "" {
		extra.Set(hostHeader, r.Host)
	}

	if creds.SessionToken != "" && r.Header.Get(amzSecurityTokenHeader) == "" {
		extra.Set(amzSecurityTokenHeader, creds.SessionToken)
	}

	signedHeaders, canonicalHeaders := canonicalizeHeaders(r.Header, extra)
	payloadHash := hex.EncodeToString(hashSHA256(r.Body))

	canonicalRequest := strings.Join([]string{
		strings.ToUpper(r.Method),
		canonicalPath(r.Path),
		EncodeQuery(r.Query),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{st.dateStamp(), r.Region, r.Service, requestSuffix}, "/")

	stringToSign := strings.Join([]string{
		SigningAlgorithm,
		st.amzDate(),
		scope,
		hex.EncodeToString(hashSHA256([]byte(canonicalRequest))),
	}, "\n")

	key := s.keys.deriveKey(creds, r.Service, r.Region, st)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	extra.Set(authorizationHeader, SigningAlgorithm+
		" Credential="+creds.AccessKeyID+"/"+scope+
		", SignedHeaders="+signedHeaders+
		", Signature="+signature)
	return extra, nil
}

// canonicalizeHeaders returns the semicolon joined list of signed header
// names and the canonical headers string. Header names are lowercased and
// sorted, values trimmed with inner space runs collapsed, multiple values
// joined with a comma.
func canonicalizeHeaders(header, extra http.Header) (signedHeaders, canonicalHeaders string) {
	merged := make(map[string][]string, len(header)+len(extra))
	for _, h := range []http.Header{header, extra} {
		for name, values := range h {
			lower := strings.ToLower(name)
			merged[lower] = append(merged[lower], values...)
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		for i, v := range merged[name] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strings.TrimSpace(stripExcessSpaces(v)))
		}
		b.WriteByte('\n')
	}
	return strings.Join(names, ";"), b.String()
}

func canonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// EncodeQuery returns the canonical query string of the values: keys and
// each key's values sorted, spaces percent encoded. The outgoing request
// must use the same encoding as the signature input.
func EncodeQuery(query url.Values) string {
	for key := range query {
		sort.Strings(query[key])
	}
	return strings.ReplaceAll(query.Encode(), "+", "%20")
}
