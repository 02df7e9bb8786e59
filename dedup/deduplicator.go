package dedup

import (
	"errors"
	"net/url"
	"strings"
	"sync"
)

var errMissingHost = errors.New("missing host")

type Deduplicator struct {
	seenIdentities map[string]struct{}
	seenDomains    map[string]struct{}
	mutex          sync.RWMutex
}

// NewDeduplicator creates an empty deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		seenIdentities: make(map[string]struct{}),
		seenDomains:    make(map[string]struct{}),
	}
}

// Normalize returns the identity form of a URL: lower-cased scheme, host and
// escaped path with www., query, fragment and trailing slashes removed. The
// path is lower-cased after escaping so raw and percent-encoded forms of the
// same URL share one identity.
func Normalize(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	u, err := parseLoose(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}

	host := stripWWW(strings.ToLower(u.Host))
	path := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")
	return strings.ToLower(u.Scheme) + "://" + host + path
}

// ExtractDomain returns the lower-cased host without a leading www.
func ExtractDomain(rawURL string) string {
	lowered := strings.ToLower(strings.TrimSpace(rawURL))
	u, err := parseLoose(lowered)
	if err != nil {
		return lowered
	}
	return stripWWW(u.Host)
}

// parseLoose parses scheme-less input such as "example.com/a" as http.
func parseLoose(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Host == "" && !strings.Contains(s, "://") {
		u, err = url.Parse("http://" + s)
		if err != nil {
			return nil, err
		}
	}
	if u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: s, Err: errMissingHost}
	}
	return u, nil
}

func stripWWW(host string) string {
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	return host
}

// Accept records identity and reports whether it was new
func (d *Deduplicator) Accept(identity string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.seenIdentities[identity]; ok {
		return false
	}
	d.seenIdentities[identity] = struct{}{}
	return true
}

// AcceptURL accepts the normalized form of rawURL
func (d *Deduplicator) AcceptURL(rawURL string) bool {
	return d.Accept(Normalize(rawURL))
}

// AcceptDomain records domain in the domain namespace and reports whether it was new
func (d *Deduplicator) AcceptDomain(domain string) bool {
	domain = strings.ToLower(domain)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.seenDomains[domain]; ok {
		return false
	}
	d.seenDomains[domain] = struct{}{}
	return true
}

func (d *Deduplicator) IsDuplicateDomain(domain string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	_, ok := d.seenDomains[strings.ToLower(domain)]
	return ok
}

// UniqueCount returns the number of accepted identities
func (d *Deduplicator) UniqueCount() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return len(d.seenIdentities)
}

// UniqueDomainCount returns the number of accepted domains
func (d *Deduplicator) UniqueDomainCount() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return len(d.seenDomains)
}
