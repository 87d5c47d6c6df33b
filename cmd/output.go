package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// renderResult prints a human readable scan result
func renderResult(w io.Writer, result *scan.Result) {
	v := result.Verdict
	fmt.Fprintf(w, "%s %s (%s)\n", colorBold("Target: "), displayTarget(result.Target), result.TargetType)
	fmt.Fprintf(w, "%s %s  score %.2f  confidence %s\n", colorBold("Verdict:"), formatStatusWithColor(string(v.Status())), v.Score(), v.Confidence())
	fmt.Fprintf(w, "%s %s  (%s)\n", colorBold("Session:"), result.SessionID, result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond))

	if result.ML != nil {
		used := "ignored"
		if result.Breakdown.MLUsed {
			used = fmt.Sprintf("raised score by %.2f", result.Breakdown.MLLift)
		}
		model := result.ML.Model
		if model == "" {
			model = "classifier"
		}
		fmt.Fprintf(w, "%s %s score %.2f confidence %.2f, %s\n", colorBold("ML:     "), model, result.ML.Score, result.ML.Confidence, used)
	}

	for _, report := range result.Reports {
		partial := ""
		if report.Partial {
			partial = colorWarn(" partial")
		}
		fmt.Fprintf(w, "\n%s %.2f%s\n", colorBold(report.Domain), report.RiskScore, partial)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, issue := range report.Issues {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", formatSeverityWithColor(issue.Severity), issue.ID, issue.Description)
		}
		_ = tw.Flush()

		if len(report.ExtractedFields) > 0 {
			keys := make([]string, 0, len(report.ExtractedFields))
			for k := range report.ExtractedFields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fields := make([]string, 0, len(keys))
			for _, k := range keys {
				fields = append(fields, k+"="+report.ExtractedFields[k])
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(fields, " "))
		}
	}
}

// displayTarget keeps long inputs like JSON configs on one short line
func displayTarget(target string) string {
	target = strings.Join(strings.Fields(target), " ")
	const max = 80
	if len(target) > max {
		return target[:max-3] + "..."
	}
	return target
}
