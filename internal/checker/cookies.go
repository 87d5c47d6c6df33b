package checker

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

const (
	IssueInsecureCookie = "insecure_cookie"

	insecureCookieDelta = 0.03
)

// analyzeCookies inspects Set-Cookie values for missing Secure/HttpOnly flags.
// Multiple cookies arrive newline separated in a single header value.
// Secure is only required when the page itself was served over TLS.
func analyzeCookies(report *evidence.RiskReport, setCookie string, servedOverTLS bool) {
	if setCookie == "" {
		return
	}

	var flagged []string
	for _, line := range strings.Split(setCookie, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cookie, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		missingSecure := servedOverTLS && !cookie.Secure
		if missingSecure || !cookie.HttpOnly {
			flagged = append(flagged, cookie.Name)
		}
	}
	if len(flagged) == 0 {
		return
	}

	sort.Strings(flagged)
	report.AddIssue(evidence.Issue{
		ID:       IssueInsecureCookie,
		Severity: evidence.SeverityLow,
		Description: fmt.Sprintf("%d cookie(s) missing Secure or HttpOnly flag: %s",
			len(flagged), strings.Join(flagged, ", ")),
	}, insecureCookieDelta)
}
