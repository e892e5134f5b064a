package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zalando/awsclient/awserr"
)

const (
	// DefaultIMDSEndpoint is the base URL of the EC2 instance metadata
	// service.
	DefaultIMDSEndpoint = "http://169.254.169.254/latest"

	rolePath             = "/meta-data/iam/security-credentials/"
	identityDocumentPath = "/dynamic/instance-identity/document"

	// imdsTimeout bounds both connecting to and reading from the metadata
	// service, so that hosts without one fail fast.
	imdsTimeout = time.Second
)

// IMDSClient fetches temporary role credentials from the instance metadata
// service of the host.
type IMDSClient struct {
	endpoint string
	client   *http.Client
}

// NewIMDSClient creates a metadata client for the given base endpoint,
// DefaultIMDSEndpoint when empty. A nil transport falls back to
// http.DefaultTransport.
func NewIMDSClient(endpoint string, transport http.RoundTripper) *IMDSClient {
	if endpoint == "" {
		endpoint = DefaultIMDSEndpoint
	}
	return &IMDSClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   imdsTimeout,
		},
	}
}

// Role returns the name of the IAM role attached to the instance. A
// transport level failure is returned as is, so that callers can treat an
// absent metadata service as "no instance credentials" rather than as an
// error. A non-2xx status fails with awserr.ErrInstanceMetadata.
func (c *IMDSClient) Role(ctx context.Context) (string, error) {
	body, err := c.get(ctx, rolePath)
	if err != nil {
		return "", err
	}
	role := strings.TrimSpace(string(body))
	if role == "" {
		return "", fmt.Errorf("%w: no role attached", awserr.ErrInstanceMetadata)
	}
	// multiple roles are listed one per line, the first one applies
	if i := strings.IndexByte(role, '\n'); i >= 0 {
		role = role[:i]
	}
	return role, nil
}

// Credentials discovers the attached IAM role and fetches its temporary
// credentials.
func (c *IMDSClient) Credentials(ctx context.Context) (Credentials, error) {
	role, err := c.Role(ctx)
	if err != nil {
		return Credentials{}, err
	}

	body, err := c.get(ctx, rolePath+role)
	if err != nil {
		return Credentials{}, err
	}

	var doc struct {
		AccessKeyID     string `json:"AccessKeyId"`
		SecretAccessKey string `json:"SecretAccessKey"`
		Token           string `json:"Token"`
		Expiration      string `json:"Expiration"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Credentials{}, fmt.Errorf("%w: malformed credentials document: %v", awserr.ErrInstanceMetadata, err)
	}
	if doc.AccessKeyID == "" || doc.SecretAccessKey == "" || doc.Token == "" || doc.Expiration == "" {
		return Credentials{}, fmt.Errorf("%w: incomplete credentials document for role %s", awserr.ErrInstanceMetadata, role)
	}
	expires, err := time.Parse(time.RFC3339, doc.Expiration)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: invalid expiration %q", awserr.ErrInstanceMetadata, doc.Expiration)
	}

	return Credentials{
		AccessKeyID:     doc.AccessKeyID,
		SecretAccessKey: doc.SecretAccessKey,
		SessionToken:    doc.Token,
		Source:          "InstanceMetadata",
		CanExpire:       true,
		Expires:         expires,
	}, nil
}

// Region returns the region of the instance from its identity document.
func (c *IMDSClient) Region(ctx context.Context) (string, error) {
	body, err := c.get(ctx, identityDocumentPath)
	if err != nil {
		return "", err
	}
	var doc struct {
		Region string `json:"region"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.Region == "" {
		return "", fmt.Errorf("%w: malformed identity document", awserr.ErrInstanceMetadata)
	}
	return doc.Region, nil
}

func (c *IMDSClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	rsp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", awserr.ErrInstanceMetadata, err)
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", awserr.ErrInstanceMetadata, path, rsp.StatusCode)
	}
	return body, nil
}
