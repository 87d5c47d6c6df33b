package proxyconf

import (
	"net"
	"strconv"
	"strings"
)

// Scheme identifies the proxy protocol of a descriptor
type Scheme string

const (
	SchemeVMess       Scheme = "VMESS"
	SchemeVLESS       Scheme = "VLESS"
	SchemeTrojan      Scheme = "TROJAN"
	SchemeShadowsocks Scheme = "SHADOWSOCKS"
	SchemeJSONGeneric Scheme = "JSON_GENERIC"
)

// TLSMode is the transport security stated by the configuration.
// Unknown means the configuration did not say; it is not evidence of plaintext.
type TLSMode string

const (
	TLSNone    TLSMode = "NONE"
	TLSEnabled TLSMode = "TLS"
	TLSUnknown TLSMode = "UNKNOWN"
)

// Format records which input shape a descriptor came from
type Format string

const (
	FormatLink         Format = "link"
	FormatJSON         Format = "json"
	FormatSubscription Format = "subscription"
)

// Descriptor is the normalized form of one proxy connection.
// Optional fields are pointers; nil means the input did not carry the value.
type Descriptor struct {
	Scheme        Scheme
	Format        Format
	ServerAddress string
	Port          *int
	TLS           TLSMode
	Cipher        *string
	Network       *string
	AllowInsecure bool
	ServerName    string
	Remark        string
	// LowConfidence is set when the payload could not be decoded and the
	// descriptor was filled from whatever was recognisable.
	LowConfidence bool
}

// Endpoint renders host:port, or just the host when the port is unknown
func (d Descriptor) Endpoint() string {
	if d.Port == nil {
		return d.ServerAddress
	}
	return net.JoinHostPort(d.ServerAddress, strconv.Itoa(*d.Port))
}

// String renders the descriptor without credentials, for logs and history
func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(d.Scheme)))
	b.WriteString("://")
	if d.ServerAddress == "" {
		b.WriteString("?")
	} else {
		b.WriteString(d.Endpoint())
	}
	return b.String()
}

// CipherName returns the cipher or an empty string
func (d Descriptor) CipherName() string {
	if d.Cipher == nil {
		return ""
	}
	return *d.Cipher
}

// NetworkName returns the transport network or an empty string
func (d Descriptor) NetworkName() string {
	if d.Network == nil {
		return ""
	}
	return *d.Network
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
