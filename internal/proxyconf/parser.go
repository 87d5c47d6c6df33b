package proxyconf

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
)

// ParseError describes input that could not be turned into any descriptor
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("proxy config: %s", e.Reason)
	}
	return fmt.Sprintf("proxy config %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const maxErrorInput = 32

func newParseError(raw, reason string, err error) *ParseError {
	input := raw
	if r := []rune(input); len(r) > maxErrorInput {
		input = string(r[:maxErrorInput]) + "…"
	}
	return &ParseError{Input: input, Reason: reason, Err: err}
}

var linkParsers = []struct {
	prefix string
	parse  func(body string) Descriptor
}{
	{"vmess://", parseVMess},
	{"vless://", func(body string) Descriptor { return parseURLForm(SchemeVLESS, body) }},
	{"trojan://", func(body string) Descriptor { return parseURLForm(SchemeTrojan, body) }},
	{"ss://", parseShadowsocks},
}

// Parse decodes a proxy link or JSON configuration and returns its first
// remote outbound. Undecodable payloads behind a known scheme produce a
// low-confidence descriptor instead of an error.
func Parse(raw string) (Descriptor, error) {
	descriptors, err := ParseAll(raw)
	if err != nil {
		return Descriptor{}, err
	}
	return descriptors[0], nil
}

// ParseAll returns every remote outbound found in raw: all outbounds of a JSON
// configuration, every link of a subscription, or the single descriptor of a link.
func ParseAll(raw string) ([]Descriptor, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if trimmed == "" {
		return nil, newParseError("", "empty input", sharedErrors.ErrEmptyInput)
	}
	return parseAny(trimmed)
}

func parseAny(trimmed string) ([]Descriptor, error) {
	if strings.Contains(trimmed, "\n") {
		if descriptors := parseSubscription(trimmed); len(descriptors) > 0 {
			return descriptors, nil
		}
	}
	if d, ok := parseLink(trimmed); ok {
		return []Descriptor{d}, nil
	}

	if isJSONObject(trimmed) {
		descriptors, err := parseJSONConfig(trimmed)
		if err != nil {
			return nil, newParseError(trimmed, "invalid JSON configuration", sharedErrors.ErrUnrecognizedFormat)
		}
		if len(descriptors) == 0 {
			return nil, newParseError(trimmed, "no remote outbound", sharedErrors.ErrNoOutbounds)
		}
		return descriptors, nil
	}

	if descriptors := parseSubscription(trimmed); len(descriptors) > 0 {
		return descriptors, nil
	}
	return nil, newParseError(trimmed, "unrecognized format", sharedErrors.ErrUnrecognizedFormat)
}

func parseLink(trimmed string) (Descriptor, bool) {
	lower := strings.ToLower(trimmed)
	for _, lp := range linkParsers {
		if strings.HasPrefix(lower, lp.prefix) {
			return lp.parse(trimmed[len(lp.prefix):]), true
		}
	}
	return Descriptor{}, false
}

// parseSubscription accepts a newline separated list of links, either as
// plain text or base64 encoded as served by subscription endpoints.
func parseSubscription(trimmed string) []Descriptor {
	text := trimmed
	if !strings.Contains(text, "://") {
		decoded, ok := decodeBase64(text)
		if !ok || !strings.Contains(decoded, "://") {
			return nil
		}
		text = decoded
	}

	var descriptors []Descriptor
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if d, ok := parseLink(line); ok {
			d.Format = FormatSubscription
			descriptors = append(descriptors, d)
		}
	}
	return descriptors
}
