package coretools

import (
	"fmt"
	"net/url"
	"strings"
)

// URLPolicy decides which URLs the web tools may fetch.
type URLPolicy struct {
	BlockedDomains []string
	AllowLocalhost bool
}

// Validate returns an error when rawURL is not an http(s) URL the policy allows.
func (p URLPolicy) Validate(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid URL format: %s", rawURL)
	}

	switch parsed.Scheme {
	case "http", "https":
	case "file":
		return fmt.Errorf("file:// URLs are not allowed, use file_read instead")
	default:
		return fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host: %s", rawURL)
	}
	if !p.AllowLocalhost && isLocalhost(host) {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	for _, blocked := range p.BlockedDomains {
		if matchDomain(host, strings.ToLower(strings.TrimSpace(blocked))) {
			return fmt.Errorf("domain is blocked: %s", host)
		}
	}
	return nil
}

func isLocalhost(host string) bool {
	return host == "localhost" ||
		host == "::1" ||
		host == "0.0.0.0" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasSuffix(host, ".localhost")
}

// matchDomain supports exact names, "*.example.com" and ".example.com".
func matchDomain(host, pattern string) bool {
	if pattern == "" {
		return false
	}
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[2:]
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	if strings.HasPrefix(pattern, ".") {
		return host == pattern[1:] || strings.HasSuffix(host, pattern)
	}
	return false
}
