package cmd

import (
	"errors"
	"fmt"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

const (
	exitGeneric   = 1
	exitThreshold = 2
)

// VerdictThresholdError reports that a scan reached the --fail-on status.
type VerdictThresholdError struct {
	Target    string
	Status    evidence.Status
	Threshold evidence.Status
}

func (e *VerdictThresholdError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("verdict %s meets the --fail-on threshold %s", e.Status, e.Threshold)
	}
	return fmt.Sprintf("%s: verdict %s meets the --fail-on threshold %s", e.Target, e.Status, e.Threshold)
}

// UnknownStatusError signals a --fail-on value that is not a verdict status.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q (want CLEAN, SUSPICIOUS or MALICIOUS)", e.Value)
}

func exitCodeFor(err error) int {
	var threshold *VerdictThresholdError
	if errors.As(err, &threshold) {
		return exitThreshold
	}
	return exitGeneric
}
