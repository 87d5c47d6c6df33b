package cmd

import (
	"testing"

	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

func TestFormatStatusWithColor(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	tests := []struct {
		name   string
		status string
		want   string
	}{
		{name: "clean", status: "CLEAN", want: "CLEAN"},
		{name: "suspicious", status: "SUSPICIOUS", want: "SUSPICIOUS"},
		{name: "malicious", status: "MALICIOUS", want: "MALICIOUS"},
		{name: "failure", status: "failure", want: "failure"},
		{name: "unknown", status: "pending", want: "pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStatusWithColor(tt.status); got != tt.want {
				t.Fatalf("formatStatusWithColor(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}

	if got := formatSeverityWithColor(evidence.SeverityHigh); got != "HIGH" {
		t.Fatalf("formatSeverityWithColor(HIGH) = %q", got)
	}
}
