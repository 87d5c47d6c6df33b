package checker

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"golang.org/x/net/idna"
)

// URL lexical issue slugs
const (
	IssueIPLiteralHost       = "ip_literal_host"
	IssuePunycodeHost        = "punycode_host"
	IssueUserinfoInURL       = "userinfo_in_url"
	IssueExcessiveSubdomains = "excessive_subdomains"
	IssueURLShortener        = "url_shortener"
	IssueNonStandardPort     = "non_standard_port"
	IssueUnparseableURL      = "unparseable_url"
)

const (
	ipLiteralDelta       = 0.2
	punycodeDelta        = 0.25
	userinfoDelta        = 0.4
	subdomainDelta       = 0.1
	shortenerDelta       = 0.1
	nonStandardPortDelta = 0.05

	maxHostLabels = 4
)

var urlShorteners = map[string]struct{}{
	"bit.ly":      {},
	"tinyurl.com": {},
	"t.co":        {},
	"goo.gl":      {},
	"is.gd":       {},
	"cutt.ly":     {},
	"rb.gy":       {},
	"ow.ly":       {},
	"t.ly":        {},
	"shorturl.at": {},
	"buff.ly":     {},
}

// EvaluateURL inspects the URL string itself, without any network access.
func EvaluateURL(raw string) evidence.RiskReport {
	report := evidence.NewRiskReport(evidence.DomainURL)

	info, ok := ParseTarget(raw)
	if !ok {
		report.Partial = true
		report.AddIssue(evidence.Issue{
			ID:          IssueUnparseableURL,
			Severity:    evidence.SeverityLow,
			Description: "Input is not an http(s) URL",
		}, 0)
		return report
	}

	asciiHost, err := idna.Lookup.ToASCII(info.Host)
	if err != nil {
		asciiHost = info.Host
	}
	report.SetField("url", info.FullURL)
	report.SetField("scheme", info.Scheme)
	report.SetField("host", info.Host)
	report.SetField("port", info.Port)
	if asciiHost != info.Host {
		report.SetField("asciiHost", asciiHost)
	}

	addr, ipErr := netip.ParseAddr(info.Host)
	isIP := ipErr == nil
	if isIP {
		report.AddIssue(evidence.Issue{
			ID:          IssueIPLiteralHost,
			Severity:    evidence.SeverityMedium,
			Description: "URL points at a raw IP address " + addr.String() + " instead of a domain name",
		}, ipLiteralDelta)
	}

	if !isIP && hasPunycodeLabel(asciiHost) {
		report.AddIssue(evidence.Issue{
			ID:          IssuePunycodeHost,
			Severity:    evidence.SeverityMedium,
			Description: "Host " + asciiHost + " uses internationalized labels that can imitate other domains",
		}, punycodeDelta)
	}

	if info.UserInfo {
		report.AddIssue(evidence.Issue{
			ID:          IssueUserinfoInURL,
			Severity:    evidence.SeverityHigh,
			Description: "URL embeds credentials before the host, a common way to disguise the real destination",
		}, userinfoDelta)
	}

	if labels := strings.Count(asciiHost, ".") + 1; !isIP && labels > maxHostLabels {
		report.AddIssue(evidence.Issue{
			ID:          IssueExcessiveSubdomains,
			Severity:    evidence.SeverityLow,
			Description: "Host has " + strconv.Itoa(labels) + " labels",
		}, subdomainDelta)
	}

	if _, short := urlShorteners[strings.TrimPrefix(asciiHost, "www.")]; short {
		report.AddIssue(evidence.Issue{
			ID:          IssueURLShortener,
			Severity:    evidence.SeverityLow,
			Description: "URL shortener hides the final destination",
		}, shortenerDelta)
	}

	if info.Port != "" && info.Port != "80" && info.Port != "443" {
		report.AddIssue(evidence.Issue{
			ID:          IssueNonStandardPort,
			Severity:    evidence.SeverityLow,
			Description: "URL uses non-standard port " + info.Port,
		}, nonStandardPortDelta)
	}

	return report
}

func hasPunycodeLabel(host string) bool {
	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, "xn--") {
			return true
		}
	}
	return false
}
