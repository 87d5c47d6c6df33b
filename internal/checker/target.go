package checker

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// TargetInfo contains parsed URL target information
type TargetInfo struct {
	Original string // Original target string
	Scheme   string // http or https
	Host     string // Hostname, lowercased, without port or brackets
	Port     string // Port if specified
	Path     string // Path if specified
	UserInfo bool   // URL carried user:pass@ before the host
	FullURL  string // Full normalized URL (for HTTP requests)
}

// ParseTarget parses a target string into structured components.
// This handles various input formats:
//   - example.com
//   - http://example.com
//   - https://example.com:443/path
//   - example.com:8080
//
// ok is false when no host could be extracted.
func ParseTarget(target string) (info *TargetInfo, ok bool) {
	target = strings.TrimSpace(target)
	info = &TargetInfo{Original: target}
	if target == "" {
		return info, false
	}

	parsed, err := url.Parse(target)

	// A missing scheme, or a "scheme" that is really host:port (example.com:8080), means a bare host
	if err != nil || parsed.Scheme == "" || strings.Contains(parsed.Scheme, ".") || isPortNumber(parsed.Opaque) {
		parsed, err = url.Parse("http://" + target)
		if err != nil {
			return info, false
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return info, false
	}

	info.Scheme = scheme
	info.Host = strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))
	info.Port = parsed.Port()
	info.Path = parsed.Path
	info.UserInfo = parsed.User != nil
	if info.Host == "" {
		return info, false
	}

	parsed.Scheme = scheme
	info.FullURL = parsed.String()
	return info, true
}

// NormalizeHTTPTarget normalizes a target for HTTP/HTTPS requests.
// Returns a full URL with scheme, or "" when the target is not an HTTP URL.
func NormalizeHTTPTarget(target string) string {
	info, ok := ParseTarget(target)
	if !ok {
		return ""
	}
	return info.FullURL
}

// ExtractHost extracts just the hostname from a target, in ASCII form.
func ExtractHost(target string) string {
	info, ok := ParseTarget(target)
	if !ok {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(info.Host); err == nil {
		return ascii
	}
	return info.Host
}

func isPortNumber(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
