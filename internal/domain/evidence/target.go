package evidence

import (
	"fmt"
	"strings"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
)

// ScanTargetType selects which evaluators run for a scan
type ScanTargetType string

const (
	TargetURL         ScanTargetType = "URL"
	TargetProxyConfig ScanTargetType = "PROXY_CONFIG"
	TargetWifiNetwork ScanTargetType = "WIFI_NETWORK"
	TargetTextMessage ScanTargetType = "TEXT_MESSAGE"
)

// ParseTargetType accepts the canonical names plus a few CLI-friendly aliases
func ParseTargetType(value string) (ScanTargetType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "URL":
		return TargetURL, nil
	case "PROXY_CONFIG", "PROXY":
		return TargetProxyConfig, nil
	case "WIFI_NETWORK", "WIFI":
		return TargetWifiNetwork, nil
	case "TEXT_MESSAGE", "TEXT":
		return TargetTextMessage, nil
	}
	return "", fmt.Errorf("%w: %q", sharedErrors.ErrUnsupportedTarget, value)
}

// ScanRequest is what a caller submits to start a scan session
type ScanRequest struct {
	TargetType ScanTargetType `json:"target_type"`
	RawInput   string         `json:"raw_input"`
	// Wifi is required for WIFI_NETWORK targets. For other targets it is an
	// optional snapshot of the network the scan was performed on.
	Wifi          *WifiNetworkSnapshot `json:"wifi,omitempty"`
	ObservedAt    time.Time            `json:"observed_at,omitempty"`
	PrivacyEvents []PrivacyEvent       `json:"privacy_events,omitempty"`
}

// Validate checks the request shape before a session is created
func (r ScanRequest) Validate() error {
	switch r.TargetType {
	case TargetURL, TargetProxyConfig, TargetTextMessage:
		if strings.TrimSpace(r.RawInput) == "" {
			return sharedErrors.ErrEmptyInput
		}
	case TargetWifiNetwork:
		if r.Wifi == nil && strings.TrimSpace(r.RawInput) == "" {
			return sharedErrors.ErrEmptyInput
		}
	default:
		return fmt.Errorf("%w: %q", sharedErrors.ErrUnsupportedTarget, r.TargetType)
	}
	return nil
}
