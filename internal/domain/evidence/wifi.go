package evidence

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
)

// EncryptionType is the link-layer security advertised by a wireless network
type EncryptionType string

const (
	EncryptionOpen EncryptionType = "OPEN"
	EncryptionWEP  EncryptionType = "WEP"
	EncryptionWPA  EncryptionType = "WPA"
	EncryptionWPA2 EncryptionType = "WPA2"
	EncryptionWPA3 EncryptionType = "WPA3"
)

// ParseEncryptionType accepts the canonical names case-insensitively, plus "NONE" for open networks
func ParseEncryptionType(value string) (EncryptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "OPEN", "NONE":
		return EncryptionOpen, nil
	case "WEP":
		return EncryptionWEP, nil
	case "WPA":
		return EncryptionWPA, nil
	case "WPA2":
		return EncryptionWPA2, nil
	case "WPA3":
		return EncryptionWPA3, nil
	}
	return "", fmt.Errorf("%w: unknown encryption type %q", sharedErrors.ErrInvalidSnapshot, value)
}

// UnmarshalText applies ParseEncryptionType so snapshots may use any accepted spelling
func (e *EncryptionType) UnmarshalText(text []byte) error {
	parsed, err := ParseEncryptionType(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// WifiNetworkSnapshot is a point-in-time observation of the network the device is joined to.
// It is produced by an external observer and treated as read-only.
type WifiNetworkSnapshot struct {
	SSID                   string         `json:"ssid"`
	BSSID                  string         `json:"bssid"`
	EncryptionType         EncryptionType `json:"encryption_type"`
	CaptivePortalSuspected bool           `json:"captive_portal_suspected"`
	SignalLevelDbm         int            `json:"signal_level_dbm"`
	LinkSpeedMbps          int            `json:"link_speed_mbps"`
	IsMetered              bool           `json:"is_metered"`
	ARPIndicators          []string       `json:"arp_indicators,omitempty"`
}
