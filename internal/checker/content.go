package checker

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

// Page content issue slugs
const (
	IssueMixedActiveContent  = "mixed_active_content"
	IssueMixedPassiveContent = "mixed_passive_content"
	IssueInsecurePassword    = "password_form_insecure"
	IssueExternalFormAction  = "password_form_external_action"
)

const (
	mixedActiveDelta    = 0.15
	mixedPassiveDelta   = 0.05
	insecurePassDelta   = 0.2
	externalActionDelta = 0.25
)

var (
	// Scripts, iframes and stylesheets can rewrite the page
	activeResourcePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]+src=['"]?(http://[^'"\s>]+)`),
		regexp.MustCompile(`(?i)<iframe[^>]+src=['"]?(http://[^'"\s>]+)`),
		regexp.MustCompile(`(?i)<link[^>]+href=['"]?(http://[^'"\s>]+)['"]?[^>]*rel=['"]?stylesheet`),
		regexp.MustCompile(`(?i)<link[^>]+rel=['"]?stylesheet['"]?[^>]*href=['"]?(http://[^'"\s>]+)`),
		regexp.MustCompile(`(?i)@import\s+url\(['"]?(http://[^'"\s)]+)`),
	}
	passiveResourcePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<img[^>]+src=['"]?(http://[^'"\s>]+)`),
		regexp.MustCompile(`(?i)<(?:video|audio|source)[^>]+src=['"]?(http://[^'"\s>]+)`),
	}

	scriptSrcPattern     = regexp.MustCompile(`(?i)<script[^>]+src=["']([^"']+)["']`)
	formPattern          = regexp.MustCompile(`(?is)<form\b([^>]*)>(.*?)</form>`)
	formActionPattern    = regexp.MustCompile(`(?i)\baction\s*=\s*['"]?([^'"\s>]+)`)
	passwordInputPattern = regexp.MustCompile(`(?i)<input[^>]+type\s*=\s*['"]?password`)
)

// analyzeContent inspects a captured page body. HTTPS pages are checked for
// mixed content; password forms for insecure or foreign submission targets.
func analyzeContent(report *evidence.RiskReport, body, pageURL string) {
	if body == "" {
		return
	}
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return
	}

	if scripts := thirdPartyScripts(body, base); len(scripts) > 0 {
		report.SetField("thirdPartyScripts", strconv.Itoa(len(scripts)))
		report.SetField("thirdPartyScriptHosts", strings.Join(scriptHosts(scripts), ","))
	}

	if strings.EqualFold(base.Scheme, "https") {
		if active := matchResources(body, activeResourcePatterns); len(active) > 0 {
			report.AddIssue(evidence.Issue{
				ID:          IssueMixedActiveContent,
				Severity:    evidence.SeverityMedium,
				Description: "HTTPS page loads scripts or styles over HTTP: " + strings.Join(active, ", "),
			}, mixedActiveDelta)
		} else if passive := matchResources(body, passiveResourcePatterns); len(passive) > 0 {
			report.AddIssue(evidence.Issue{
				ID:          IssueMixedPassiveContent,
				Severity:    evidence.SeverityLow,
				Description: "HTTPS page loads media over HTTP: " + strings.Join(passive, ", "),
			}, mixedPassiveDelta)
		}
	}

	for _, form := range formPattern.FindAllStringSubmatch(body, -1) {
		if !passwordInputPattern.MatchString(form[2]) {
			continue
		}
		target := base
		if m := formActionPattern.FindStringSubmatch(form[1]); m != nil {
			if resolved, err := base.Parse(strings.TrimSpace(m[1])); err == nil {
				target = resolved
			}
		}

		if strings.EqualFold(target.Scheme, "http") {
			report.AddIssue(evidence.Issue{
				ID:          IssueInsecurePassword,
				Severity:    evidence.SeverityMedium,
				Description: "Password form is served or submitted without TLS",
			}, insecurePassDelta)
			return
		}
		if target.Hostname() != "" && !strings.EqualFold(target.Hostname(), base.Hostname()) {
			report.AddIssue(evidence.Issue{
				ID:          IssueExternalFormAction,
				Severity:    evidence.SeverityHigh,
				Description: "Password form submits to another host: " + target.Hostname(),
			}, externalActionDelta)
			return
		}
	}
}

// matchResources returns the unique HTTP resource URLs matched by patterns, sorted
func matchResources(body string, patterns []*regexp.Regexp) []string {
	seen := map[string]struct{}{}
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(body, -1) {
			seen[m[1]] = struct{}{}
		}
	}
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// thirdPartyScripts returns the absolute URLs of scripts served from other hosts
func thirdPartyScripts(body string, base *url.URL) []string {
	baseHost := strings.ToLower(base.Hostname())
	seen := make(map[string]struct{})
	var scripts []string

	for _, match := range scriptSrcPattern.FindAllStringSubmatch(body, -1) {
		src := strings.TrimSpace(match[1])
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			continue
		}
		u, err := base.Parse(src)
		if err != nil || u.Hostname() == "" || strings.EqualFold(u.Hostname(), baseHost) {
			continue
		}
		resolved := u.String()
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		scripts = append(scripts, resolved)
	}
	return scripts
}

func scriptHosts(scripts []string) []string {
	seen := map[string]struct{}{}
	var hosts []string
	for _, s := range scripts {
		u, err := url.Parse(s)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if _, ok := seen[host]; !ok {
			seen[host] = struct{}{}
			hosts = append(hosts, host)
		}
	}
	sort.Strings(hosts)
	return hosts
}
