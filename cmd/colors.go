package cmd

import (
	"strings"

	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToUpper(status) {
	case string(evidence.StatusClean), "OK", "SUCCESS":
		return colorSuccess(status)
	case string(evidence.StatusSuspicious):
		return colorWarn(status)
	case string(evidence.StatusMalicious), "ERROR", "FAILED", "FAILURE":
		return colorError(status)
	default:
		return status
	}
}

func formatSeverityWithColor(severity evidence.Severity) string {
	label := string(severity)
	switch severity {
	case evidence.SeverityHigh:
		return colorError(label)
	case evidence.SeverityMedium:
		return colorWarn(label)
	default:
		return colorInfo(label)
	}
}
