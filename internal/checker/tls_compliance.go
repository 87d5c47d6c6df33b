package checker

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// versionSSL30 represents the legacy SSL 3.0 protocol version (0x0300).
// Defined locally so we can detect/report SSL 3.0 without referencing the
// deprecated tls.VersionSSL30 symbol.
const versionSSL30 uint16 = 0x0300

// Weak cipher suites that should not be used (PCI DSS 4.1)
var weakCipherSuites = map[uint16]string{
	tls.TLS_RSA_WITH_RC4_128_SHA:                "TLS_RSA_WITH_RC4_128_SHA",
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:           "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:            "TLS_RSA_WITH_AES_128_CBC_SHA",
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:            "TLS_RSA_WITH_AES_256_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:        "TLS_ECDHE_ECDSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:          "TLS_ECDHE_RSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA:     "TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256: "TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256",
}

// Name fragments of suites we treat as weak when only the name is known
var weakCipherMarkers = []string{"RC4", "3DES", "DES_CBC", "NULL", "EXPORT", "_ANON_", "_CBC_SHA"}

// tlsVersionRank orders protocol versions; TLS 1.2 is rank 3
var tlsVersionRank = map[string]int{
	"SSL 3.0": 0,
	"TLS 1.0": 1,
	"TLS 1.1": 2,
	"TLS 1.2": 3,
	"TLS 1.3": 4,
}

// TLSVersionName converts a TLS version constant to the name used in FetchedMeta
func TLSVersionName(version uint16) string {
	switch version {
	case versionSSL30:
		return "SSL 3.0"
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("Unknown (0x%04x)", version)
	}
}

// CipherSuiteName converts a cipher suite constant to its IANA name
func CipherSuiteName(suite uint16) string {
	if name, ok := weakCipherSuites[suite]; ok {
		return name
	}
	if name := tls.CipherSuiteName(suite); name != "" {
		return name
	}
	return fmt.Sprintf("Unknown (0x%04x)", suite)
}

// normalizeTLSVersion accepts "TLS 1.2", "TLSv1.2", "tls1.2", "1.2" and "SSLv3"
func normalizeTLSVersion(version string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(version))
	v = strings.NewReplacer("V", " ", "_", " ", "-", " ").Replace(v)
	v = strings.Join(strings.Fields(v), " ")

	switch {
	case strings.HasPrefix(v, "SSL"):
		return "SSL 3.0", true
	case strings.HasPrefix(v, "TLS"):
		v = strings.TrimSpace(strings.TrimPrefix(v, "TLS"))
	}
	switch v {
	case "1", "1.0", "10":
		return "TLS 1.0", true
	case "1.1", "11":
		return "TLS 1.1", true
	case "1.2", "12":
		return "TLS 1.2", true
	case "1.3", "13":
		return "TLS 1.3", true
	}
	return "", false
}

// isLegacyTLSVersion reports versions older than TLS 1.2.
// Unrecognised strings are not treated as legacy.
func isLegacyTLSVersion(version string) bool {
	name, ok := normalizeTLSVersion(version)
	if !ok {
		return false
	}
	return tlsVersionRank[name] < tlsVersionRank["TLS 1.2"]
}

// isWeakCipherSuite matches RC4, 3DES, NULL, EXPORT, anonymous and CBC-SHA suites
func isWeakCipherSuite(name string) bool {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return false
	}
	for _, known := range weakCipherSuites {
		if upper == known {
			return true
		}
	}
	for _, marker := range weakCipherMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
