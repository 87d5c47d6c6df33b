package proxyconf

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// jsonAPI decodes numbers as json.Number so string and numeric ports are handled alike.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Outbound protocols that route traffic locally rather than to a remote proxy.
var localProtocols = map[string]struct{}{
	"freedom":   {},
	"blackhole": {},
	"dns":       {},
	"direct":    {},
	"block":     {},
}

type jsonServer struct {
	Address any `json:"address"`
	Port    any `json:"port"`
	Method  any `json:"method"`
}

type jsonTLSSettings struct {
	AllowInsecure any `json:"allowInsecure"`
	ServerName    any `json:"serverName"`
}

type jsonStreamSettings struct {
	Security      any              `json:"security"`
	AllowInsecure any              `json:"allowInsecure"`
	Network       any              `json:"network"`
	TLSSettings   *jsonTLSSettings `json:"tlsSettings"`
	XTLSSettings  *jsonTLSSettings `json:"xtlsSettings"`
	RealitySet    *jsonTLSSettings `json:"realitySettings"`
}

type jsonOutbound struct {
	Protocol any `json:"protocol"`
	Tag      any `json:"tag"`
	Settings struct {
		Vnext   []jsonServer `json:"vnext"`
		Servers []jsonServer `json:"servers"`
	} `json:"settings"`
	StreamSettings *jsonStreamSettings `json:"streamSettings"`
}

type jsonConfig struct {
	Outbounds []jsonOutbound `json:"outbounds"`
	Protocol  any            `json:"protocol"`
	Address   any            `json:"add"`
}

// isJSONObject reports whether raw is a syntactically valid JSON object
func isJSONObject(raw string) bool {
	return strings.HasPrefix(raw, "{") && jsonAPI.Valid([]byte(raw))
}

// parseJSONConfig extracts every remote outbound. A bare outbound object or a
// bare vmess share object is accepted as a one-element configuration.
func parseJSONConfig(raw string) ([]Descriptor, error) {
	var cfg jsonConfig
	if err := jsonAPI.UnmarshalFromString(raw, &cfg); err != nil {
		return nil, err
	}

	outbounds := cfg.Outbounds
	switch {
	case len(outbounds) > 0:
	case scalarString(cfg.Protocol) != "":
		var single jsonOutbound
		if err := jsonAPI.UnmarshalFromString(raw, &single); err != nil {
			return nil, err
		}
		outbounds = []jsonOutbound{single}
	case scalarString(cfg.Address) != "":
		if d, ok := vmessFromJSON(raw); ok {
			d.Format = FormatJSON
			return []Descriptor{d}, nil
		}
	}

	var descriptors []Descriptor
	for _, ob := range outbounds {
		protocol := strings.ToLower(scalarString(ob.Protocol))
		if _, local := localProtocols[protocol]; local {
			continue
		}
		descriptors = append(descriptors, outboundDescriptors(protocol, ob)...)
	}
	return descriptors, nil
}

func outboundDescriptors(protocol string, ob jsonOutbound) []Descriptor {
	servers := append(append([]jsonServer{}, ob.Settings.Vnext...), ob.Settings.Servers...)
	if len(servers) == 0 {
		return nil
	}

	base := Descriptor{
		Scheme: schemeForProtocol(protocol),
		Format: FormatJSON,
		TLS:    TLSUnknown,
		Remark: scalarString(ob.Tag),
	}
	if ss := ob.StreamSettings; ss != nil {
		base.TLS = parseTLSValue(ss.Security)
		base.Network = stringPtr(scalarString(ss.Network))
		base.AllowInsecure = parseFlag(ss.AllowInsecure)
		for _, ts := range []*jsonTLSSettings{ss.TLSSettings, ss.XTLSSettings, ss.RealitySet} {
			if ts == nil {
				continue
			}
			base.AllowInsecure = base.AllowInsecure || parseFlag(ts.AllowInsecure)
			base.ServerName = firstNonEmpty(base.ServerName, scalarString(ts.ServerName))
		}
	}

	descriptors := make([]Descriptor, 0, len(servers))
	for _, srv := range servers {
		d := base
		d.ServerAddress = normalizeHost(scalarString(srv.Address))
		d.Port = parsePort(srv.Port)
		d.Cipher = stringPtr(strings.ToLower(scalarString(srv.Method)))
		if d.ServerAddress == "" {
			d.LowConfidence = true
		}
		descriptors = append(descriptors, d)
	}
	return descriptors
}

func schemeForProtocol(protocol string) Scheme {
	switch protocol {
	case "vmess":
		return SchemeVMess
	case "vless":
		return SchemeVLESS
	case "trojan":
		return SchemeTrojan
	case "shadowsocks", "ss":
		return SchemeShadowsocks
	}
	return SchemeJSONGeneric
}
