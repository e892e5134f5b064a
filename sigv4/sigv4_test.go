package sigv4

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/awsclient/credentials"
)

// Reference request from the AWS Signature Version 4 documentation, see
// https://docs.aws.amazon.com/general/latest/gr/sigv4-signed-request-examples.html
func TestSignRequest(t *testing.T) {
	creds := credentials.Credentials{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	}
	r := &Request{
		Method: "GET",
		Path:   "/",
		Query: url.Values{
			"Action":  []string{"ListUsers"},
			"Version": []string{"2010-05-08"},
		},
		Header: http.Header{
			"Content-Type": []string{"application/x-www-form-urlencoded; charset=utf-8"},
			"Host":         []string{"iam.amazonaws.com"},
			"X-Amz-Date":   []string{"20150830T123600Z"},
		},
		Host:    "iam.amazonaws.com",
		Region:  "us-east-1",
		Service: "iam",
	}

	signed, err := NewSigner().Sign(r, creds)
	require.NoError(t, err)

	expected := "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20150830/us-east-1/iam/aws4_request, " +
		"SignedHeaders=content-type;host;x-amz-date, " +
		"Signature=5d672d79c15b13162d9279b0855cfba6789a8edb4c82c400e06b5924a6f2b5d7"
	if e, a := expected, signed.Get("Authorization"); e != a {
		t.Errorf("expect %v, got %v", e, a)
	}

	// X-Amz-Date and Host were set by the caller and must not be injected
	assert.Empty(t, signed.Get("X-Amz-Date"))
	assert.Empty(t, signed.Get("Host"))
}

func TestSignInjectsHeaders(t *testing.T) {
	creds := credentials.Credentials{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		SessionToken:    "SESSION",
	}
	r := &Request{
		Method:  "POST",
		Path:    "/",
		Header:  http.Header{"X-Amz-Target": []string{"DynamoDB_20120810.DescribeTable"}},
		Body:    []byte(`{"TableName":"t"}`),
		Host:    "dynamodb.us-east-1.amazonaws.com",
		Region:  "us-east-1",
		Service: "dynamodb",
		Time:    time.Unix(0, 0),
	}

	signed, err := NewSigner().Sign(r, creds)
	require.NoError(t, err)

	if e, a := "19700101T000000Z", signed.Get("X-Amz-Date"); e != a {
		t.Errorf("expect %v, got %v", e, a)
	}
	if e, a := "dynamodb.us-east-1.amazonaws.com", signed.Get("Host"); e != a {
		t.Errorf("expect %v, got %v", e, a)
	}
	if e, a := "SESSION", signed.Get("X-Amz-Security-Token"); e != a {
		t.Errorf("expect %v, got %v", e, a)
	}

	authorization := signed.Get("Authorization")
	assert.True(t, strings.HasPrefix(authorization, "AWS4-HMAC-SHA256 Credential=AKID/19700101/us-east-1/dynamodb/aws4_request, "))
	assert.Contains(t, authorization, "SignedHeaders=host;x-amz-date;x-amz-security-token;x-amz-target, ")
}

func TestSignDeterministic(t *testing.T) {
	creds := credentials.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}
	request := func() *Request {
		return &Request{
			Method:  "POST",
			Path:    "/",
			Query:   url.Values{"key": []string{"b", "a"}},
			Header:  http.Header{"X-Amz-Target": []string{"DynamoDB_20120810.DescribeTable"}},
			Body:    []byte(`{"TableName":"t"}`),
			Host:    "dynamodb.us-east-1.amazonaws.com",
			Region:  "us-east-1",
			Service: "dynamodb",
			Time:    time.Date(2016, 3, 15, 0, 0, 0, 0, time.UTC),
		}
	}

	signer := NewSigner()
	first, err := signer.Sign(request(), creds)
	require.NoError(t, err)
	second, err := signer.Sign(request(), creds)
	require.NoError(t, err)

	if d := cmp.Diff(first, second); d != "" {
		t.Errorf("repeated signing differs: %s", d)
	}

	// a fresh signer without a warm key cache agrees as well
	third, err := NewSigner().Sign(request(), creds)
	require.NoError(t, err)
	if d := cmp.Diff(first, third); d != "" {
		t.Errorf("fresh signer differs: %s", d)
	}
}

func TestSignPreservesHost(t *testing.T) {
	creds := credentials.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}
	r := &Request{
		Method:  "GET",
		Path:    "/",
		Header:  http.Header{"Host": []string{"myhost.example.org"}},
		Host:    "dynamodb.us-east-1.amazonaws.com",
		Region:  "us-east-1",
		Service: "dynamodb",
		Time:    time.Unix(0, 0),
	}

	signed, err := NewSigner().Sign(r, creds)
	require.NoError(t, err)

	assert.Empty(t, signed.Get("Host"))
	if e, a := "myhost.example.org", r.Header.Get("Host"); e != a {
		t.Errorf("expect %v, got %v", e, a)
	}
}

func TestSignRejectsInvalidAmzDate(t *testing.T) {
	creds := credentials.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}
	r := &Request{
		Method:  "GET",
		Path:    "/",
		Header:  http.Header{"X-Amz-Date": []string{"yesterday"}},
		Host:    "dynamodb.us-east-1.amazonaws.com",
		Region:  "us-east-1",
		Service: "dynamodb",
	}

	_, err := NewSigner().Sign(r, creds)
	assert.Error(t, err)
}

func TestEncodeQuery(t *testing.T) {
	query := url.Values{
		"Foo":    []string{"z", "o", "m", "a"},
		"Marker": []string{"a b"},
	}
	if e, a := "Foo=a&Foo=m&Foo=o&Foo=z&Marker=a%20b", EncodeQuery(query); e != a {
		t.Errorf("expect %v, got %v", e, a)
	}
	if e, a := "", EncodeQuery(nil); e != a {
		t.Errorf("expect %v, got %v", e, a)
	}
}

func TestCanonicalizeHeaders(t *testing.T) {
	header := http.Header{
		"Content-Type": []string{"application/json"},
		"X-Amz-Meta":   []string{"  spaced   out  ", "second"},
	}
	extra := http.Header{"Host": []string{"example.org"}}

	signedHeaders, canonical := canonicalizeHeaders(header, extra)

	if e, a := "content-type;host;x-amz-meta", signedHeaders; e != a {
		t.Errorf("expect %v, got %v", e, a)
	}
	expected := "content-type:application/json\nhost:example.org\nx-amz-meta:spaced out,second\n"
	if e, a := expected, canonical; e != a {
		t.Errorf("expect %q, got %q", e, a)
	}
}

func TestDeriveKeyCache(t *testing.T) {
	creds := credentials.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}
	cache := newSigningKeyCache()
	st := newSigningTime(time.Date(2016, 3, 15, 10, 0, 0, 0, time.UTC))

	first := cache.deriveKey(creds, "dynamodb", "us-east-1", st)
	second := cache.deriveKey(creds, "dynamodb", "us-east-1", newSigningTime(time.Date(2016, 3, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, first, second)

	// a rotated access key must not reuse the cached entry
	rotated := credentials.Credentials{AccessKeyID: "AKID2", SecretAccessKey: "SECRET2"}
	third := cache.deriveKey(rotated, "dynamodb", "us-east-1", st)
	assert.NotEqual(t, first, third)
}

func TestStripExcessSpaces(t *testing.T) {
	for _, tt := range []struct{ in, out string }{
		{"   leading", "leading"},
		{"trailing   ", "trailing"},
		{"double  space", "double space"},
		{"a   lot   of    space", "a lot of space"},
		{"none", "none"},
	} {
		if e, a := tt.out, stripExcessSpaces(tt.in); e != a {
			t.Errorf("expect %q, got %q", e, a)
		}
	}
}
