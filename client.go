package awsclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"

	"github.com/zalando/awsclient/awserr"
	"github.com/zalando/awsclient/config"
	"github.com/zalando/awsclient/credentials"
	"github.com/zalando/awsclient/metrics"
	"github.com/zalando/awsclient/net"
	"github.com/zalando/awsclient/sigv4"
)

const defaultTimeout = 30 * time.Second

// Options to create a Client.
type Options struct {
	// Service is the AWS service identifier used in the credential scope
	// and the endpoint host, e.g. "dynamodb". Required.
	Service string

	// Profile selects the shared configuration profile. Defaults to the
	// AWS_DEFAULT_PROFILE environment variable or "default".
	Profile string

	// Region overrides the resolved region.
	Region string

	// Endpoint overrides the https://<service>.<region>.amazonaws.com
	// base URL, primarily for testing.
	Endpoint string

	// ForceInstance mandates instance metadata credentials even when the
	// local configuration looks complete.
	ForceInstance bool

	// IMDSEndpoint overrides the instance metadata base URL, primarily
	// for testing.
	IMDSEndpoint string

	// Transport is the roundtripper used for API requests. When nil, the
	// client creates and owns a net.Transport, which Close releases.
	Transport http.RoundTripper

	// Timeout is the default timeout of the owned transport. Ignored when
	// Transport is set.
	Timeout time.Duration

	// Tracer used for client spans of outgoing requests, the noop tracer
	// when nil. Ignored when Transport is set.
	Tracer opentracing.Tracer

	// Metrics optionally measures fetch calls, nil disables measuring.
	Metrics *metrics.Prometheus
}

// Response is the result of a successful Fetch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a low-level client for a single AWS service in a single region.
// It is safe for concurrent use.
type Client struct {
	service  string
	region   string
	endpoint *url.URL

	provider *credentials.Provider
	signer   *sigv4.Signer

	transport http.RoundTripper
	owned     *net.Transport
	metrics   *metrics.Prometheus

	closeOnce sync.Once
}

// New resolves the profile configuration and region for the named service
// and creates a client for it. The region is taken from Options.Region, the
// resolved profile, the instance identity document, or falls back to
// us-east-1, in that order.
func New(o Options) (*Client, error) {
	if o.Service == "" {
		return nil, fmt.Errorf("awsclient: missing service")
	}

	imds := credentials.NewIMDSClient(o.IMDSEndpoint, nil)
	provider, err := credentials.NewProvider(o.Profile, o.ForceInstance, imds)
	if err != nil {
		return nil, err
	}

	region := o.Region
	if region == "" {
		region = provider.Profile().Region
	}
	if region == "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		region, err = imds.Region(ctx)
		cancel()
		if err != nil {
			log.Debugf("awsclient: no region from instance metadata: %v", err)
			region = config.DefaultRegion
		}
	}

	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.%s.amazonaws.com", o.Service, region)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("awsclient: invalid endpoint %q: %v", endpoint, err)
	}

	c := &Client{
		service:  o.Service,
		region:   region,
		endpoint: u,
		provider: provider,
		signer:   sigv4.NewSigner(),
		metrics:  o.Metrics,
	}

	if o.Transport != nil {
		c.transport = o.Transport
	} else {
		timeout := o.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		c.owned = net.NewTransport(net.Options{
			Timeout: timeout,
			Tracer:  o.Tracer,
		})
		c.transport = c.owned
	}
	return c, nil
}

// Fetch signs and executes a single request against the service endpoint.
// A non-2xx response fails with *awserr.Error carrying the normalized AWS
// error and the HTTP status. The client does not retry; when the error
// signals rejected credentials, the cached instance credentials are
// invalidated so the caller's retry picks up fresh ones.
func (c *Client) Fetch(ctx context.Context, method, path string, query url.Values, header http.Header, body []byte) (*Response, error) {
	start := time.Now()

	creds, err := c.provider.Get(ctx)
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = "/"
	}
	method = strings.ToUpper(method)

	signed, err := c.signer.Sign(&sigv4.Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Header:  header,
		Body:    body,
		Host:    c.endpoint.Host,
		Region:  c.region,
		Service: c.service,
	}, creds)
	if err != nil {
		return nil, err
	}

	req, err := c.buildRequest(ctx, method, path, query, header, signed, body)
	if err != nil {
		return nil, err
	}

	rsp, err := c.do(req)
	if err != nil {
		log.Errorf("awsclient: error making request: %v", err)
		return nil, err
	}
	defer rsp.Body.Close()

	rspBody, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, err
	}

	c.metrics.MeasureFetch(c.service, method, rsp.StatusCode, start)

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		aerr := awserr.Normalize(rsp.StatusCode, rsp.Header.Get("Content-Type"), rspBody)
		if awserr.RefreshableAuthFailure(aerr.Code) {
			c.provider.Invalidate()
			c.metrics.IncCredentialsInvalidate()
		}
		return nil, aerr
	}

	return &Response{
		StatusCode: rsp.StatusCode,
		Header:     rsp.Header,
		Body:       rspBody,
	}, nil
}

// Close releases the owned transport. Closing twice is a no-op.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.owned != nil {
			c.owned.Close()
		}
	})
}

func (c *Client) buildRequest(ctx context.Context, method, path string, query url.Values, header, signed http.Header, body []byte) (*http.Request, error) {
	u := *c.endpoint
	u.Path = path
	// the wire query string must match the signed canonical form
	u.RawQuery = sigv4.EncodeQuery(query)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for name, values := range header {
		req.Header[http.CanonicalHeaderKey(name)] = values
	}
	for name, values := range signed {
		if name == "Host" {
			continue
		}
		req.Header[name] = values
	}
	if host := firstValue(header, signed, "Host"); host != "" {
		req.Host = host
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.owned != nil {
		return c.owned.Do(req, "awsclient_fetch")
	}
	return c.transport.RoundTrip(req)
}

func firstValue(header, signed http.Header, name string) string {
	if v := header.Get(name); v != "" {
		return v
	}
	return signed.Get(name)
}
