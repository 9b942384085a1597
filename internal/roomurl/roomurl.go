// Package roomurl validates room URLs supplied by the user or the query
// string against the expected hosting pattern.
package roomurl

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultHost is the real-time provider's domain.
const DefaultHost = "daily.co"

// Validator checks room URLs of the form
// http(s)://<subdomain>[.staging].<host>/<room-name>.
type Validator struct {
	host    string
	pattern *regexp.Regexp
}

// NewValidator builds a validator for host. An empty host uses DefaultHost.
func NewValidator(host string) *Validator {
	host = strings.Trim(strings.TrimSpace(host), ".")
	if host == "" {
		host = DefaultHost
	}
	return &Validator{
		host:    host,
		pattern: regexp.MustCompile(fmt.Sprintf(`^https?://[^.]+(\.staging)?\.%s/[^/]+$`, regexp.QuoteMeta(host))),
	}
}

// Host returns the host the validator matches.
func (v *Validator) Host() string {
	return v.host
}

// Valid reports whether url is a room URL for the validator's host.
// It does not check that the room exists.
func (v *Validator) Valid(url string) bool {
	if url == "" {
		return false
	}
	return v.pattern.MatchString(url)
}

var defaultValidator = NewValidator(DefaultHost)

// IsValid validates url against DefaultHost.
func IsValid(url string) bool {
	return defaultValidator.Valid(url)
}
