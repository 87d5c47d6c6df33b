package proxyconf

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding.Strict(),
	base64.URLEncoding.Strict(),
	base64.RawStdEncoding.Strict(),
	base64.RawURLEncoding.Strict(),
}

// decodeBase64 tries the padded and unpadded standard and URL alphabets.
// It only reports success for output that is valid UTF-8 text.
func decodeBase64(s string) (string, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", false
	}
	for _, enc := range base64Encodings {
		out, err := enc.DecodeString(s)
		if err != nil || len(out) == 0 || !utf8.Valid(out) {
			continue
		}
		return string(out), true
	}
	return "", false
}

// parsePort accepts ints, numeric strings and JSON numbers.
// Anything else, or a value outside the TCP port range, yields nil.
func parsePort(v any) *int {
	var s string
	switch p := v.(type) {
	case nil:
		return nil
	case string:
		s = p
	case json.Number:
		s = p.String()
	case float64:
		s = strconv.FormatFloat(p, 'f', -1, 64)
	case int:
		s = strconv.Itoa(p)
	default:
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 65535 {
		return nil
	}
	return &n
}

// parseFlag reads the many spellings of a boolean found in proxy configs
func parseFlag(v any) bool {
	switch f := v.(type) {
	case bool:
		return f
	case string:
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "1", "true", "yes", "on":
			return true
		}
	case json.Number:
		n, err := f.Int64()
		return err == nil && n != 0
	case float64:
		return f != 0
	}
	return false
}

// parseTLS maps a security/tls field. present=false means the field was absent.
func parseTLS(value string, present bool) TLSMode {
	if !present {
		return TLSUnknown
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "tls", "reality", "xtls":
		return TLSEnabled
	case "", "none":
		return TLSNone
	}
	return TLSUnknown
}

// parseTLSValue maps a decoded tls field of any JSON type. Booleans and
// numbers are on/off switches; objects, arrays and null say nothing.
func parseTLSValue(v any) TLSMode {
	switch t := v.(type) {
	case string:
		return parseTLS(t, true)
	case bool:
		if t {
			return TLSEnabled
		}
		return TLSNone
	case json.Number, float64:
		if parseFlag(t) {
			return TLSEnabled
		}
		return TLSNone
	}
	return TLSUnknown
}

// scalarString renders a JSON scalar as text. Configs written by hand put
// numbers and booleans where strings belong; objects and arrays yield "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// normalizeHost lowercases, strips IPv6 brackets and converts IDNs to ASCII
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		return ascii
	}
	return strings.ToLower(host)
}
