package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	"github.com/khanhnv2901/seca-guard/internal/scoring"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// preserveCommandState restores globals that flags write into
func preserveCommandState(t *testing.T) {
	t.Helper()
	opts := scanOpts
	cfg := *cliConfig
	appCtx := globalAppContext
	t.Cleanup(func() {
		scanOpts = opts
		*cliConfig = cfg
		globalAppContext = appCtx
	})
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func sampleResult(status evidence.Status, score float64) *scan.Result {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report := evidence.NewRiskReport(evidence.DomainProxy)
	report.AddIssue(evidence.Issue{
		ID:          "trojan_without_tls",
		Severity:    evidence.SeverityHigh,
		Description: "Trojan without TLS",
	}, score)
	report.SetField("protocol", "trojan")
	return &scan.Result{
		SessionID:   "session-1",
		TargetType:  evidence.TargetProxyConfig,
		Target:      "trojan://secret@vpn.example.net:443",
		Verdict:     scoring.RestoreVerdict(status, score, evidence.ConfidenceMedium),
		Reports:     []evidence.RiskReport{report},
		StartedAt:   started,
		CompletedAt: started.Add(1500 * time.Microsecond),
	}
}

func TestParseFailOn(t *testing.T) {
	tests := []struct {
		in      string
		want    evidence.Status
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "clean", want: evidence.StatusClean},
		{in: " Suspicious ", want: evidence.StatusSuspicious},
		{in: "MALICIOUS", want: evidence.StatusMalicious},
		{in: "bad", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseFailOn(tt.in)
		if tt.wantErr {
			var unknown *UnknownStatusError
			assert.ErrorAs(t, err, &unknown, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCheckFailOn(t *testing.T) {
	preserveCommandState(t)

	scanOpts.FailOn = ""
	assert.NoError(t, checkFailOn(sampleResult(evidence.StatusMalicious, 0.9)))

	scanOpts.FailOn = "suspicious"
	assert.NoError(t, checkFailOn(sampleResult(evidence.StatusClean, 0.1)))
	assert.NoError(t, checkFailOn(nil))

	err := checkFailOn(sampleResult(evidence.StatusMalicious, 0.9))
	var threshold *VerdictThresholdError
	require.ErrorAs(t, err, &threshold)
	assert.Equal(t, evidence.StatusMalicious, threshold.Status)
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestResolveScanInput(t *testing.T) {
	preserveCommandState(t)
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("vless://id@edge.example.com:443\n"))

	scanOpts.InputFile = ""
	got, err := resolveScanInput(cmd, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = resolveScanInput(cmd, nil)
	assert.Error(t, err)

	scanOpts.InputFile = "-"
	got, err = resolveScanInput(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "vless://id@edge.example.com:443\n", got)

	_, err = resolveScanInput(cmd, []string{"both"})
	assert.Error(t, err)
}

func TestBuildScanRequest(t *testing.T) {
	preserveCommandState(t)
	scanOpts = scanOptions{}
	cmd := &cobra.Command{}

	req, err := buildScanRequest(cmd, evidence.TargetTextMessage, "  Your account is locked  ")
	require.NoError(t, err)
	assert.Equal(t, "Your account is locked", req.RawInput)
	assert.False(t, req.ObservedAt.IsZero())

	_, err = buildScanRequest(cmd, evidence.TargetURL, "   ")
	assert.ErrorIs(t, err, sharedErrors.ErrEmptyInput)
}

func TestBuildScanRequest_LoadsContextFiles(t *testing.T) {
	preserveCommandState(t)
	dir := t.TempDir()
	wifiPath := writeTempFile(t, dir, "wifi.json", `{"ssid":"CoffeeShop","encryption_type":"OPEN"}`)
	eventsPath := writeTempFile(t, dir, "events.json", `[{"package":"com.example.notes","type":"CLIPBOARD_READ","timestamp":"2026-03-01T10:00:00Z"}]`)
	scanOpts = scanOptions{WifiFile: wifiPath, PrivacyEventsFile: eventsPath}

	req, err := buildScanRequest(&cobra.Command{}, evidence.TargetURL, "https://example.com")

	require.NoError(t, err)
	require.NotNil(t, req.Wifi)
	assert.Equal(t, "CoffeeShop", req.Wifi.SSID)
	assert.Len(t, req.PrivacyEvents, 1)

	scanOpts.PrivacyEventsFile = writeTempFile(t, dir, "broken.json", `{not json`)
	_, err = buildScanRequest(&cobra.Command{}, evidence.TargetURL, "https://example.com")
	assert.ErrorContains(t, err, "privacy events")
}

func TestRenderResult(t *testing.T) {
	var out bytes.Buffer

	renderResult(&out, sampleResult(evidence.StatusMalicious, 0.6))

	text := out.String()
	assert.Contains(t, text, "trojan://secret@vpn.example.net:443")
	assert.Contains(t, text, "MALICIOUS")
	assert.Contains(t, text, "score 0.60")
	assert.Contains(t, text, "trojan_without_tls")
	assert.Contains(t, text, "protocol=trojan")
	assert.Contains(t, text, "(2ms)")
}

func TestWriteResultJSON(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, writeResult(&out, sampleResult(evidence.StatusSuspicious, 0.4), outputJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "session-1", decoded["session_id"])
	verdict, ok := decoded["verdict"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SUSPICIOUS", verdict["status"])
}

func TestDisplayTarget(t *testing.T) {
	assert.Equal(t, `{ "outbounds": [] }`, displayTarget("{\n  \"outbounds\": []\n}"))

	long := displayTarget(strings.Repeat("a", 200))
	assert.Len(t, long, 80)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestWriteBatch(t *testing.T) {
	entries := []batchEntry{
		{Input: "https://example.com", Status: "CLEAN", Score: 0.05},
		{Input: "ftp://nope", Status: "FAILED", Error: "unsupported target"},
	}

	var text bytes.Buffer
	require.NoError(t, writeBatch(&text, entries, outputText))
	lines := strings.Split(strings.TrimSpace(text.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "0.05")
	assert.Contains(t, lines[2], "(unsupported target)")

	var js bytes.Buffer
	require.NoError(t, writeBatch(&js, entries, outputJSON))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestScanProxyCommand_EndToEnd(t *testing.T) {
	preserveCommandState(t)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	t.Cleanup(func() { getAppContext(nil).Close() })

	rootCmd.SetArgs([]string{
		"scan", "proxy", "trojan://secret@vpn.example.net:443?security=none",
		"--history", "none",
		"--data-dir", t.TempDir(),
		"--output", "json",
		"--fail-on", "suspicious",
	})

	err := rootCmd.Execute()

	var threshold *VerdictThresholdError
	require.ErrorAs(t, err, &threshold)
	assert.Equal(t, evidence.StatusMalicious, threshold.Status)

	var result scan.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, evidence.TargetProxyConfig, result.TargetType)
	report, ok := result.Report(evidence.DomainProxy)
	require.True(t, ok)
	assert.True(t, report.HasIssue("trojan_without_tls"))
	assert.Empty(t, errOut.String(), "json output disables progress lines")
}

func TestScanCommand_RejectsUnknownOutput(t *testing.T) {
	preserveCommandState(t)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"scan", "text", "hello", "--history", "none", "--data-dir", t.TempDir(), "--output", "yaml"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
