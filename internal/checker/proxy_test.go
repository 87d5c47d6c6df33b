package checker

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/proxyconf"
	"github.com/khanhnv2901/seca-guard/internal/scoring"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v2rayInsecureConfig = `{"app":"v2ray","outbounds":[{"protocol":"vmess","settings":{"vnext":[{"address":"malicious.example.com","port":"80"}]},"streamSettings":{"security":"none","allowInsecure":true,"network":"ws"}}]}`

func verdictFor(t *testing.T, report evidence.RiskReport) scoring.Verdict {
	t.Helper()
	v, err := scoring.Aggregate([]evidence.RiskReport{report}, nil)
	require.NoError(t, err)
	return v
}

func TestEvaluateProxyConfig_InsecureV2rayJSON(t *testing.T) {
	report := EvaluateProxyConfig(v2rayInsecureConfig)

	assert.Equal(t, "malicious.example.com", report.ExtractedFields["serverAddress"])
	assert.True(t, report.HasIssue(IssueAllowInsecureTLS))
	assert.GreaterOrEqual(t, report.RiskScore, 0.6)
	assert.Equal(t, evidence.StatusMalicious, verdictFor(t, report).Status())
}

func TestEvaluateProxyConfig_SecureVMess(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"add":"secure.example.com","port":"443","tls":"tls","net":"ws","ps":"demo"}`))

	report := EvaluateProxyConfig("vmess://" + payload)

	assert.Equal(t, "secure.example.com", report.ExtractedFields["serverAddress"])
	assert.Less(t, report.RiskScore, 0.3)
	assert.Empty(t, report.Issues)
	assert.Equal(t, evidence.StatusClean, verdictFor(t, report).Status())
}

func TestEvaluateProxyConfig_VMessBooleanTLS(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"add":"vpn.example.com","port":443,"tls":true,"allowInsecure":true}`))

	report := EvaluateProxyConfig("vmess://" + payload)

	assert.Equal(t, string(proxyconf.TLSEnabled), report.ExtractedFields["tls"])
	assert.False(t, report.HasIssue(IssueAllowInsecureTLS))
	assert.False(t, report.HasIssue(IssueUnencryptedTransport))
	assert.True(t, report.HasIssue(IssueSkipCertVerify))
	assert.NotEqual(t, evidence.StatusMalicious, verdictFor(t, report).Status())
}

func TestEvaluateProxyConfig_NumericTagOnPrivateServer(t *testing.T) {
	cfg := `{"outbounds":[{"protocol":"vmess","tag":1,"settings":{"vnext":[{"address":"10.0.0.1","port":80}]},"streamSettings":{"security":"none"}}]}`

	report := EvaluateProxyConfig(cfg)

	assert.False(t, report.Partial)
	assert.False(t, report.HasIssue(IssueUnrecognizedFormat))
	assert.True(t, report.HasIssue(IssuePrivateEndpoint))
	assert.True(t, report.HasIssue(IssueUnencryptedTransport))
	assert.Equal(t, string(proxyconf.TLSNone), report.ExtractedFields["tls"])
	assert.Equal(t, "1", report.ExtractedFields["remark"])
}

func TestEvaluateProxyConfig_TrojanWithoutTLS(t *testing.T) {
	report := EvaluateProxyConfig("trojan://secret@vpn.example.net:443?security=none")

	assert.True(t, report.HasIssue(IssueTrojanWithoutTLS))
	assert.Equal(t, evidence.StatusMalicious, verdictFor(t, report).Status())
}

func TestEvaluateProxyConfig_WeakShadowsocksOnPrivateHost(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("aes-128-cfb:password@10.0.0.5:8388"))

	report := EvaluateProxyConfig("ss://" + payload)

	assert.True(t, report.HasIssue(IssueSSInsecureCipher))
	assert.True(t, report.HasIssue(IssuePrivateEndpoint))
	assert.GreaterOrEqual(t, report.RiskScore, 0.7)
	assert.Equal(t, evidence.StatusMalicious, verdictFor(t, report).Status())
}

func TestEvaluateProxy_AllowInsecureWithoutTLSAlwaysHigh(t *testing.T) {
	for _, scheme := range []proxyconf.Scheme{
		proxyconf.SchemeVMess, proxyconf.SchemeVLESS, proxyconf.SchemeTrojan,
		proxyconf.SchemeShadowsocks, proxyconf.SchemeJSONGeneric,
	} {
		d := proxyconf.Descriptor{
			Scheme:        scheme,
			ServerAddress: "proxy.example.org",
			TLS:           proxyconf.TLSNone,
			AllowInsecure: true,
		}
		report := EvaluateProxy(d)
		assert.GreaterOrEqual(t, report.RiskScore, 0.5, string(scheme))
		assert.True(t, report.HasIssue(IssueAllowInsecureTLS), string(scheme))
	}
}

func TestEvaluateProxy_Rules(t *testing.T) {
	port := 443
	tests := []struct {
		name  string
		d     proxyconf.Descriptor
		want  []string
		score float64
	}{
		{
			name:  "clean TLS endpoint keeps residual floor",
			d:     proxyconf.Descriptor{Scheme: proxyconf.SchemeVLESS, ServerAddress: "edge.example.com", Port: &port, TLS: proxyconf.TLSEnabled},
			want:  []string{},
			score: 0.1,
		},
		{
			name:  "unknown TLS is not treated as none",
			d:     proxyconf.Descriptor{Scheme: proxyconf.SchemeVMess, ServerAddress: "edge.example.com", TLS: proxyconf.TLSUnknown},
			want:  []string{},
			score: 0.1,
		},
		{
			name:  "plain vless",
			d:     proxyconf.Descriptor{Scheme: proxyconf.SchemeVLESS, ServerAddress: "edge.example.com", TLS: proxyconf.TLSNone},
			want:  []string{IssueUnencryptedTransport},
			score: 0.15,
		},
		{
			name:  "TLS with verification disabled",
			d:     proxyconf.Descriptor{Scheme: proxyconf.SchemeVMess, ServerAddress: "edge.example.com", TLS: proxyconf.TLSEnabled, AllowInsecure: true},
			want:  []string{IssueSkipCertVerify},
			score: 0.25,
		},
		{
			name:  "loopback",
			d:     proxyconf.Descriptor{Scheme: proxyconf.SchemeVLESS, ServerAddress: "127.0.0.1", TLS: proxyconf.TLSEnabled},
			want:  []string{IssuePrivateEndpoint},
			score: 0.35,
		},
		{
			name:  "low confidence",
			d:     proxyconf.Descriptor{Scheme: proxyconf.SchemeVMess, TLS: proxyconf.TLSUnknown, LowConfidence: true},
			want:  []string{IssueLowConfidenceParse},
			score: 0.1,
		},
		{
			name:  "AEAD shadowsocks cipher",
			d:     proxyconf.Descriptor{Scheme: proxyconf.SchemeShadowsocks, ServerAddress: "ss.example.com", Cipher: ptr("chacha20-ietf-poly1305"), TLS: proxyconf.TLSNone},
			want:  []string{},
			score: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := EvaluateProxy(tt.d)
			assert.Equal(t, tt.want, report.IssueIDs())
			assert.InDelta(t, tt.score, report.RiskScore, 1e-9)
		})
	}
}

func TestEvaluateProxy_LowConfidenceIsPartial(t *testing.T) {
	report := EvaluateProxyConfig("vmess://%%%not-base64%%%")

	assert.True(t, report.Partial)
	assert.True(t, report.HasIssue(IssueLowConfidenceParse))
}

func TestEvaluateProxyConfig_WorstOutboundWins(t *testing.T) {
	config := `{"outbounds":[
		{"protocol":"vless","settings":{"vnext":[{"address":"good.example.com","port":443}]},"streamSettings":{"security":"tls"}},
		{"protocol":"trojan","settings":{"servers":[{"address":"bad.example.com","port":443}]},"streamSettings":{"security":"none"}},
		{"protocol":"freedom"}
	]}`

	report := EvaluateProxyConfig(config)

	assert.Equal(t, "bad.example.com", report.ExtractedFields["serverAddress"])
	assert.Equal(t, "2", report.ExtractedFields["outbounds"])
	assert.True(t, report.HasIssue(IssueTrojanWithoutTLS))
}

func TestEvaluateProxyConfig_Unrecognized(t *testing.T) {
	tests := []struct {
		name  string
		input string
		desc  string
	}{
		{"garbage", "hello world", "not a recognized"},
		{"empty", "   ", "empty"},
		{"no outbounds", `{"outbounds":[{"protocol":"freedom"}]}`, "no remote proxy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := EvaluateProxyConfig(tt.input)
			require.Len(t, report.Issues, 1)
			assert.Equal(t, IssueUnrecognizedFormat, report.Issues[0].ID)
			assert.Contains(t, report.Issues[0].Description, tt.desc)
			assert.Zero(t, report.RiskScore)
			assert.True(t, report.Partial)
		})
	}
}

func TestProxyParseFailureReport(t *testing.T) {
	report := ProxyParseFailureReport(sharedErrors.ErrUnrecognizedFormat)

	assert.Equal(t, evidence.DomainProxy, report.Domain)
	assert.Equal(t, evidence.SeverityLow, report.MaxSeverity())
}

func TestEvaluateProxyConfig_Idempotent(t *testing.T) {
	first := EvaluateProxyConfig(v2rayInsecureConfig)
	second := EvaluateProxyConfig(v2rayInsecureConfig)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-evaluation differs (-first +second):\n%s", diff)
	}

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestIsPrivateHost(t *testing.T) {
	tests := []struct {
		host    string
		private bool
	}{
		{"10.0.0.5", true},
		{"172.16.3.4", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.10.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fe80::1%eth0", true},
		{"fd00::1", true},
		{"::ffff:10.1.2.3", true},
		{"localhost", true},
		{"printer.local", true},
		{"8.8.8.8", false},
		{"example.com", false},
		{"10.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isPrivateHost(tt.host); got != tt.private {
			t.Errorf("isPrivateHost(%q) = %v, want %v", tt.host, got, tt.private)
		}
	}
}
