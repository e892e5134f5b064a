// Package credentials provides the credential set used for request signing
// and resolves it from static configuration or the EC2 instance metadata
// service, transparently refreshing expired instance credentials.
package credentials

import "time"

// Credentials is a single immutable set of AWS credentials.
type Credentials struct {
	// AccessKeyID is the AWS access key ID.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	SecretAccessKey string

	// SessionToken is the AWS session token of temporary credentials.
	SessionToken string

	// Source names where the credentials were loaded from.
	Source string

	// CanExpire states if the credentials can expire.
	CanExpire bool

	// Expires is the time the credentials expire at. Ignored if CanExpire
	// is false.
	Expires time.Time
}

// HasKeys reports whether both keys of the credential pair are set.
func (c Credentials) HasKeys() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Expired reports whether the credentials are expired at the given time.
// Credentials that cannot expire are never expired.
func (c Credentials) Expired(now time.Time) bool {
	return c.CanExpire && !now.Before(c.Expires)
}
