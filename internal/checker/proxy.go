package checker

import (
	"errors"
	"net/netip"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/proxyconf"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
)

// Proxy issue slugs
const (
	IssueAllowInsecureTLS     = "allow_insecure_tls"
	IssueTrojanWithoutTLS     = "trojan_without_tls"
	IssueSSInsecureCipher     = "ss_insecure_cipher"
	IssuePrivateEndpoint      = "private_endpoint"
	IssueUnencryptedTransport = "unencrypted_transport"
	IssueSkipCertVerify       = "skip_cert_verify"
	IssueLowConfidenceParse   = "low_confidence_parse"
	IssueUnrecognizedFormat   = "unrecognized_format"
)

const (
	allowInsecureDelta        = 0.5
	trojanWithoutTLSDelta     = 0.6
	ssInsecureCipherDelta     = 0.35
	privateEndpointDelta      = 0.35
	unencryptedTransportDelta = 0.15
	skipCertVerifyDelta       = 0.25
	lowConfidenceParseDelta   = 0.05
	proxyResidualUncertainty  = 0.1
)

// Shadowsocks ciphers without authenticated encryption
var weakShadowsocksCiphers = map[string]struct{}{
	"aes-128-cfb": {},
	"aes-192-cfb": {},
	"aes-256-cfb": {},
	"aes-128-ctr": {},
	"aes-192-ctr": {},
	"aes-256-ctr": {},
	"rc4":         {},
	"rc4-md5":     {},
	"table":       {},
	"des-cfb":     {},
	"bf-cfb":      {},
	"salsa20":     {},
	"chacha20":    {},
	"none":        {},
	"plain":       {},
}

// EvaluateProxy scores a parsed proxy descriptor. Every rule adds its delta
// independently and the sum is clamped, so independent red flags compound.
// A descriptor with no findings keeps a small residual score.
func EvaluateProxy(d proxyconf.Descriptor) evidence.RiskReport {
	report := evidence.NewRiskReport(evidence.DomainProxy)
	report.SetField("scheme", string(d.Scheme))
	report.SetField("format", string(d.Format))
	report.SetField("serverAddress", d.ServerAddress)
	if d.Port != nil {
		report.SetField("port", strconv.Itoa(*d.Port))
	}
	report.SetField("tls", string(d.TLS))
	report.SetField("cipher", d.CipherName())
	report.SetField("network", d.NetworkName())
	report.SetField("serverName", d.ServerName)
	report.SetField("remark", d.Remark)

	if d.TLS == proxyconf.TLSNone && d.AllowInsecure {
		report.AddIssue(evidence.Issue{
			ID:          IssueAllowInsecureTLS,
			Severity:    evidence.SeverityHigh,
			Description: "Configuration disables TLS and explicitly allows insecure connections",
		}, allowInsecureDelta)
	}

	if d.Scheme == proxyconf.SchemeTrojan && d.TLS != proxyconf.TLSEnabled {
		report.AddIssue(evidence.Issue{
			ID:          IssueTrojanWithoutTLS,
			Severity:    evidence.SeverityHigh,
			Description: "Trojan relies entirely on TLS, which is not enabled for this server",
		}, trojanWithoutTLSDelta)
	}

	if d.Scheme == proxyconf.SchemeShadowsocks {
		if _, weak := weakShadowsocksCiphers[d.CipherName()]; weak {
			report.AddIssue(evidence.Issue{
				ID:          IssueSSInsecureCipher,
				Severity:    evidence.SeverityMedium,
				Description: "Shadowsocks cipher " + d.CipherName() + " is not an AEAD cipher and can be decrypted or tampered with",
			}, ssInsecureCipherDelta)
		}
	}

	if isPrivateHost(d.ServerAddress) {
		report.AddIssue(evidence.Issue{
			ID:          IssuePrivateEndpoint,
			Severity:    evidence.SeverityMedium,
			Description: "Server " + d.ServerAddress + " is a private, loopback or link-local address",
		}, privateEndpointDelta)
	}

	if d.TLS == proxyconf.TLSNone && d.Scheme != proxyconf.SchemeShadowsocks {
		report.AddIssue(evidence.Issue{
			ID:          IssueUnencryptedTransport,
			Severity:    evidence.SeverityMedium,
			Description: "Transport to the proxy server is not encrypted with TLS",
		}, unencryptedTransportDelta)
	}

	if d.TLS != proxyconf.TLSNone && d.AllowInsecure {
		report.AddIssue(evidence.Issue{
			ID:          IssueSkipCertVerify,
			Severity:    evidence.SeverityMedium,
			Description: "Certificate verification is disabled, allowing interception of the TLS session",
		}, skipCertVerifyDelta)
	}

	if d.LowConfidence {
		report.Partial = true
		report.AddIssue(evidence.Issue{
			ID:          IssueLowConfidenceParse,
			Severity:    evidence.SeverityLow,
			Description: "Configuration payload could not be fully decoded",
		}, lowConfidenceParseDelta)
	}

	report.ApplyFloor(proxyResidualUncertainty)
	return report
}

// EvaluateProxyConfig parses raw and returns the report of its riskiest
// outbound. Unparseable input becomes a zero-score partial report.
func EvaluateProxyConfig(raw string) evidence.RiskReport {
	descriptors, err := proxyconf.ParseAll(raw)
	if err != nil {
		return ProxyParseFailureReport(err)
	}

	worst := EvaluateProxy(descriptors[0])
	for _, d := range descriptors[1:] {
		if r := EvaluateProxy(d); r.RiskScore > worst.RiskScore {
			worst = r
		}
	}
	worst.SetField("outbounds", strconv.Itoa(len(descriptors)))
	return worst
}

// ProxyParseFailureReport turns a parse error into an informational report
// with zero risk, so an unparseable config never fails a scan.
func ProxyParseFailureReport(err error) evidence.RiskReport {
	report := evidence.NewRiskReport(evidence.DomainProxy)
	report.Partial = true

	description := "Input is not a recognized proxy link or configuration"
	switch {
	case errors.Is(err, sharedErrors.ErrNoOutbounds):
		description = "Configuration contains no remote proxy outbound"
	case errors.Is(err, sharedErrors.ErrEmptyInput):
		description = "Configuration is empty"
	}
	report.AddIssue(evidence.Issue{
		ID:          IssueUnrecognizedFormat,
		Severity:    evidence.SeverityLow,
		Description: description,
	}, 0)
	return report
}

// isPrivateHost is a lexical check only; names are never resolved.
func isPrivateHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return false
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified()
}
