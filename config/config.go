// Package config resolves static AWS configuration for a named profile from
// environment variables and the shared credentials and config files, using
// the same precedence rules as the AWS CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	ini "gopkg.in/ini.v1"

	"github.com/zalando/awsclient/awserr"
)

const (
	// DefaultProfile is used when neither the caller nor the
	// AWS_DEFAULT_PROFILE environment variable names a profile.
	DefaultProfile = "default"

	// DefaultRegion is the fallback region when no source yields one.
	DefaultRegion = "us-east-1"

	defaultCredentialsFile = "~/.aws/credentials"
	defaultConfigFile      = "~/.aws/config"
)

// Profile is the merged static configuration of a named profile. Zero
// values mean the corresponding setting was not found in any source, which
// is a legal outcome: missing keys or region signal that instance metadata
// should be consulted instead.
type Profile struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string

	// Expiration is set only when the credentials file carries an
	// expiration value for the profile. The zero value means the
	// credentials do not expire.
	Expiration time.Time
}

// HasKeys reports whether the profile carries a complete static key pair.
func (p Profile) HasKeys() bool {
	return p.AccessKeyID != "" && p.SecretAccessKey != ""
}

// ProfileName returns name, or the AWS_DEFAULT_PROFILE environment variable,
// or "default", in that order.
func ProfileName(name string) string {
	if name != "" {
		return name
	}
	if env := os.Getenv("AWS_DEFAULT_PROFILE"); env != "" {
		return env
	}
	return DefaultProfile
}

// A source fills the profile fields it knows about, skipping fields already
// set by a higher precedence source.
type source func(name string, p *Profile) error

// Resolve produces the merged profile configuration for the named profile.
// Sources are tried in precedence order: explicit environment variables,
// the shared credentials file, then the shared config file for the region.
// A missing file yields an empty result, a malformed one fails with
// awserr.ErrConfigFile.
func Resolve(name string) (Profile, error) {
	var p Profile
	for _, s := range []source{fromEnv, fromCredentialsFile, fromConfigFile} {
		if err := s(name, &p); err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}

func fromEnv(_ string, p *Profile) error {
	p.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	p.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	p.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	if p.SessionToken == "" {
		// legacy alias
		p.SessionToken = os.Getenv("AWS_SECURITY_TOKEN")
	}
	p.Region = os.Getenv("AWS_DEFAULT_REGION")
	return nil
}

func fromCredentialsFile(name string, p *Profile) error {
	if p.HasKeys() {
		return nil
	}
	path := envPath("AWS_SHARED_CREDENTIALS_FILE", defaultCredentialsFile)
	section, err := loadSection(path, name)
	if err != nil || section == nil {
		return err
	}
	if p.AccessKeyID == "" {
		p.AccessKeyID = section.Key("aws_access_key_id").String()
	}
	if p.SecretAccessKey == "" {
		p.SecretAccessKey = section.Key("aws_secret_access_key").String()
	}
	if p.SessionToken == "" {
		p.SessionToken = section.Key("aws_session_token").String()
		if p.SessionToken == "" {
			p.SessionToken = section.Key("aws_security_token").String()
		}
	}
	if v := section.Key("expiration").String(); v != "" {
		expiration, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("%w: invalid expiration %q in %s", awserr.ErrConfigFile, v, path)
		}
		p.Expiration = expiration
	}
	return nil
}

func fromConfigFile(name string, p *Profile) error {
	if p.Region != "" {
		return nil
	}
	path := envPath("AWS_CONFIG_FILE", defaultConfigFile)
	for _, sectionName := range configSections(name) {
		section, err := loadSection(path, sectionName)
		if err != nil {
			return err
		}
		if section == nil {
			continue
		}
		if region := section.Key("region").String(); region != "" {
			p.Region = region
			return nil
		}
	}
	return nil
}

// configSections returns the config file section names to consult for the
// profile, most specific first. Named profiles live in "profile <name>"
// sections, with "default" as the shared fallback.
func configSections(name string) []string {
	if name == DefaultProfile {
		return []string{DefaultProfile}
	}
	return []string{"profile " + name, DefaultProfile}
}

// loadSection reads the named section from an INI file. A missing file or
// missing section is not an error, both return a nil section.
func loadSection(path, name string) (*ini.Section, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	log.Debugf("awsclient: loading %s", path)
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", awserr.ErrConfigFile, path, err)
	}
	section, err := file.GetSection(name)
	if err != nil {
		return nil, nil
	}
	return section, nil
}

func envPath(envVar, fallback string) string {
	path := os.Getenv(envVar)
	if path == "" {
		path = fallback
	}
	return expandHome(path)
}

func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[0] == '~' && os.IsPathSeparator(path[1]) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
