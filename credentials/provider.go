package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/awsclient/awserr"
	"github.com/zalando/awsclient/config"
)

// Provider resolves the credentials used to sign requests. Static profile
// configuration is preferred, the instance metadata service is consulted
// only when no usable static keys exist or when forced. Instance
// credentials are cached per provider and refreshed once expired, so Get is
// cheap to call on every request.
type Provider struct {
	profile config.Profile
	force   bool
	imds    *IMDSClient

	mu     sync.Mutex
	cached Credentials

	now func() time.Time
}

// NewProvider resolves the profile configuration and creates a provider for
// it. When force is set, the instance metadata service is consulted even if
// the profile carries static keys. A nil imds client uses the default
// metadata endpoint.
func NewProvider(profileName string, force bool, imds *IMDSClient) (*Provider, error) {
	profile, err := config.Resolve(config.ProfileName(profileName))
	if err != nil {
		return nil, err
	}
	if imds == nil {
		imds = NewIMDSClient("", nil)
	}
	return &Provider{
		profile: profile,
		force:   force,
		imds:    imds,
		now:     time.Now,
	}, nil
}

// Profile returns the resolved profile configuration.
func (p *Provider) Profile() config.Profile {
	return p.profile
}

// Get returns valid credentials, fetching or refreshing instance metadata
// credentials as needed. It fails with awserr.ErrNoCredentials when no
// source yields usable keys, and with awserr.ErrInstanceMetadata when the
// metadata service responds but its response is unusable.
func (p *Provider) Get(ctx context.Context) (Credentials, error) {
	if !p.force {
		if creds := p.static(); creds.HasKeys() && !creds.Expired(p.now()) {
			return creds, nil
		}
	}

	p.mu.Lock()
	cached := p.cached
	p.mu.Unlock()
	if cached.HasKeys() && !cached.Expired(p.now()) {
		return cached, nil
	}

	creds, err := p.imds.Credentials(ctx)
	if err != nil {
		if errors.Is(err, awserr.ErrInstanceMetadata) {
			return Credentials{}, err
		}
		// metadata service not reachable
		log.Errorf("awsclient: error fetching instance credentials: %v", err)
		return Credentials{}, fmt.Errorf("%w: %v", awserr.ErrNoCredentials, err)
	}

	// Concurrent refreshes may race here, the last write wins and every
	// returned set is valid.
	p.mu.Lock()
	p.cached = creds
	p.mu.Unlock()
	return creds, nil
}

// Invalidate drops cached instance credentials, forcing a fresh metadata
// fetch on the next Get. Called by the client when a response signals that
// the credentials are no longer accepted.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = Credentials{}
	p.mu.Unlock()
}

func (p *Provider) static() Credentials {
	creds := Credentials{
		AccessKeyID:     p.profile.AccessKeyID,
		SecretAccessKey: p.profile.SecretAccessKey,
		SessionToken:    p.profile.SessionToken,
		Source:          "SharedConfig",
	}
	if !p.profile.Expiration.IsZero() {
		creds.CanExpire = true
		creds.Expires = p.profile.Expiration
	}
	return creds
}
