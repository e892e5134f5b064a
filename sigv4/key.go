package sigv4

import (
	"sync"
	"time"

	"github.com/zalando/awsclient/credentials"
)

// signingKeyCache caches the derived signing key per region/service pair.
// Deriving a key takes four chained HMAC computations, and the result is
// valid for all requests signed with the same access key on the same day.
type signingKeyCache struct {
	mu     sync.RWMutex
	values map[string]derivedKey
}

type derivedKey struct {
	accessKey string
	date      time.Time
	key       []byte
}

func newSigningKeyCache() *signingKeyCache {
	return &signingKeyCache{values: make(map[string]derivedKey)}
}

func (c *signingKeyCache) deriveKey(creds credentials.Credentials, service, region string, t signingTime) []byte {
	lookup := region + "/" + service

	c.mu.RLock()
	key, ok := c.get(lookup, creds, t.Time)
	c.mu.RUnlock()
	if ok {
		return key
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.get(lookup, creds, t.Time); ok {
		return key
	}
	key = deriveKey(creds.SecretAccessKey, service, region, t)
	c.values[lookup] = derivedKey{
		accessKey: creds.AccessKeyID,
		date:      t.Time,
		key:       key,
	}
	return key
}

func (c *signingKeyCache) get(lookup string, creds credentials.Credentials, t time.Time) ([]byte, bool) {
	entry, ok := c.values[lookup]
	if ok && entry.accessKey == creds.AccessKeyID && isSameDay(t, entry.date) {
		return entry.key, true
	}
	return nil, false
}

// deriveKey runs the HMAC chain seeded with "AWS4" + secret, keyed
// successively on date, region, service and the request suffix.
func deriveKey(secret, service, region string, t signingTime) []byte {
	date := hmacSHA256([]byte("AWS4"+secret), []byte(t.dateStamp()))
	regionKey := hmacSHA256(date, []byte(region))
	serviceKey := hmacSHA256(regionKey, []byte(service))
	return hmacSHA256(serviceKey, []byte(requestSuffix))
}
