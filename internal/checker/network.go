package checker

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/shared/constants"
)

// Network posture issue slugs (header slugs live next to the header specs)
const (
	IssueNoResponse         = "no_response"
	IssueInvalidCertificate = "invalid_certificate"
	IssueCertExpiringSoon   = "cert_expiring_soon"
	IssueLegacyTLSVersion   = "legacy_tls_version"
	IssueWeakCipherSuite    = "weak_cipher_suite"
	IssuePlaintextHTTP      = "plaintext_http"
	IssuePrivateResolution  = "private_resolution"
)

const (
	invalidCertificateDelta = 0.5
	certExpiringSoonDelta   = 0.05
	legacyTLSDelta          = 0.25
	weakCipherDelta         = 0.2
	plaintextHTTPDelta      = 0.2
	privateResolutionDelta  = 0.3
)

// FetchedMeta is the response metadata the network collaborator hands over.
// Pointer fields are nil when the value could not be determined; nil is never
// read as a negative finding.
type FetchedMeta struct {
	URL           string            `json:"url"`
	FinalURL      string            `json:"final_url,omitempty"`
	Responded     bool              `json:"responded"`
	StatusCode    int               `json:"status_code,omitempty"`
	TLSVersion    *string           `json:"tls_version,omitempty"`
	CipherSuite   *string           `json:"cipher_suite,omitempty"`
	CertValid     *bool             `json:"cert_valid,omitempty"`
	CertExpiry    *time.Time        `json:"cert_expiry,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	ResolvedAddrs []string          `json:"resolved_addrs,omitempty"`
	FetchedAt     time.Time         `json:"fetched_at"`
	// Body is a bounded prefix of the response body, handed to the ML collaborator
	Body string `json:"-"`
}

// Fetcher retrieves response metadata for a URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchedMeta, error)
}

// EvaluateNetworkPosture scores TLS parameters, certificate validity,
// security headers and, when a body was captured, the page content. A target
// that did not respond yields a partial report with no header penalties.
func EvaluateNetworkPosture(meta FetchedMeta) evidence.RiskReport {
	report := evidence.NewRiskReport(evidence.DomainNetwork)
	report.SetField("url", meta.URL)

	if !meta.Responded {
		report.Partial = true
		report.AddIssue(evidence.Issue{
			ID:          IssueNoResponse,
			Severity:    evidence.SeverityLow,
			Description: "Target did not respond; network posture could not be assessed",
		}, 0)
		return report
	}

	if meta.StatusCode > 0 {
		report.SetField("statusCode", strconv.Itoa(meta.StatusCode))
	}

	landed := meta.URL
	if meta.FinalURL != "" {
		landed = meta.FinalURL
		report.SetField("finalUrl", meta.FinalURL)
	}

	servedOverTLS := meta.TLSVersion != nil
	if !servedOverTLS && isPlainHTTP(landed) {
		report.AddIssue(evidence.Issue{
			ID:          IssuePlaintextHTTP,
			Severity:    evidence.SeverityMedium,
			Description: "Page is served over plain HTTP without TLS",
		}, plaintextHTTPDelta)
	}

	if meta.TLSVersion != nil {
		report.SetField("tlsVersion", *meta.TLSVersion)
		if isLegacyTLSVersion(*meta.TLSVersion) {
			report.AddIssue(evidence.Issue{
				ID:          IssueLegacyTLSVersion,
				Severity:    evidence.SeverityMedium,
				Description: *meta.TLSVersion + " is deprecated; TLS 1.2 or newer is required",
			}, legacyTLSDelta)
		}
	}

	if meta.CipherSuite != nil {
		report.SetField("cipherSuite", *meta.CipherSuite)
		if isWeakCipherSuite(*meta.CipherSuite) {
			report.AddIssue(evidence.Issue{
				ID:          IssueWeakCipherSuite,
				Severity:    evidence.SeverityMedium,
				Description: "Negotiated cipher suite " + *meta.CipherSuite + " is weak",
			}, weakCipherDelta)
		}
	}

	if meta.CertValid != nil {
		report.SetField("certValid", strconv.FormatBool(*meta.CertValid))
		if !*meta.CertValid {
			report.AddIssue(evidence.Issue{
				ID:          IssueInvalidCertificate,
				Severity:    evidence.SeverityHigh,
				Description: "TLS certificate is invalid or expired",
			}, invalidCertificateDelta)
		}
	}

	if meta.CertExpiry != nil {
		report.SetField("certExpiry", meta.CertExpiry.UTC().Format(time.RFC3339))
		remaining := meta.CertExpiry.Sub(meta.FetchedAt)
		if !meta.FetchedAt.IsZero() && remaining > 0 && remaining < constants.TLSSoonExpiryWindow {
			report.AddIssue(evidence.Issue{
				ID:          IssueCertExpiringSoon,
				Severity:    evidence.SeverityLow,
				Description: "TLS certificate expires within 14 days",
			}, certExpiringSoonDelta)
		}
	}

	if host := ExtractHost(meta.URL); host != "" && !isPrivateHost(host) {
		for _, addr := range meta.ResolvedAddrs {
			if isPrivateHost(addr) {
				report.AddIssue(evidence.Issue{
					ID:          IssuePrivateResolution,
					Severity:    evidence.SeverityHigh,
					Description: "Public name " + host + " resolves to internal address " + addr,
				}, privateResolutionDelta)
				break
			}
		}
	}

	headers := canonicalHeaders(meta.Headers)
	analyzeSecurityHeaders(&report, headers)
	analyzeCookies(&report, headers["Set-Cookie"], servedOverTLS)
	analyzeCORS(&report, headers)
	analyzeContent(&report, meta.Body, landed)

	return report
}

func isPlainHTTP(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	return err == nil && strings.EqualFold(u.Scheme, "http")
}
