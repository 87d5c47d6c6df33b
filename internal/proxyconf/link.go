package proxyconf

import (
	"net/url"
	"strings"
)

// authority is the loosely parsed user@host:port?query#fragment part of a link.
// It is split by hand because net/url rejects the non-numeric ports and
// unescaped characters that real-world links carry.
type authority struct {
	user     string
	host     string
	port     *int
	query    url.Values
	fragment string
}

func splitAuthority(body string) authority {
	var a authority

	if i := strings.Index(body, "#"); i >= 0 {
		frag := body[i+1:]
		if unescaped, err := url.PathUnescape(frag); err == nil {
			frag = unescaped
		}
		a.fragment = frag
		body = body[:i]
	}
	if i := strings.Index(body, "?"); i >= 0 {
		a.query, _ = url.ParseQuery(body[i+1:])
		body = body[:i]
	}
	if a.query == nil {
		a.query = url.Values{}
	}
	body = strings.TrimSuffix(body, "/")

	if i := strings.LastIndex(body, "@"); i >= 0 {
		a.user = body[:i]
		body = body[i+1:]
	}

	hostport := body
	if strings.HasPrefix(hostport, "[") {
		if end := strings.Index(hostport, "]"); end > 0 {
			a.host = hostport[1:end]
			if rest := hostport[end+1:]; strings.HasPrefix(rest, ":") {
				a.port = parsePort(rest[1:])
			}
			return a
		}
	}
	if i := strings.LastIndex(hostport, ":"); i >= 0 {
		a.host = hostport[:i]
		a.port = parsePort(hostport[i+1:])
	} else {
		a.host = hostport
	}
	return a
}

// queryTLS reads the security parameter of a vless/trojan style query
func queryTLS(q url.Values) TLSMode {
	for _, key := range []string{"security", "tls"} {
		if _, ok := q[key]; ok {
			return parseTLS(q.Get(key), true)
		}
	}
	return TLSUnknown
}

func queryInsecure(q url.Values) bool {
	for _, key := range []string{"allowInsecure", "allowinsecure", "insecure", "skip-cert-verify"} {
		if parseFlag(q.Get(key)) {
			return true
		}
	}
	return false
}

// parseURLForm handles vless:// and trojan:// links, and is the raw-text
// fallback for undecodable vmess payloads.
func parseURLForm(scheme Scheme, body string) Descriptor {
	a := splitAuthority(body)
	d := Descriptor{
		Scheme:        scheme,
		Format:        FormatLink,
		ServerAddress: normalizeHost(a.host),
		Port:          a.port,
		TLS:           queryTLS(a.query),
		Network:       stringPtr(a.query.Get("type")),
		AllowInsecure: queryInsecure(a.query),
		ServerName:    firstNonEmpty(a.query.Get("sni"), a.query.Get("peer")),
		Remark:        a.fragment,
	}
	if scheme == SchemeVLESS {
		d.Cipher = stringPtr(a.query.Get("encryption"))
	}
	if d.ServerAddress == "" {
		d.LowConfidence = true
	}
	return d
}

func parseVMess(body string) Descriptor {
	payload := body
	remark := ""
	if i := strings.Index(payload, "#"); i >= 0 {
		remark, _ = url.PathUnescape(payload[i+1:])
		payload = payload[:i]
	}

	decoded, ok := decodeBase64(payload)
	if ok {
		if d, ok := vmessFromJSON(decoded); ok {
			if d.Remark == "" {
				d.Remark = remark
			}
			return d
		}
		payload = decoded
	}

	// Raw-text interpretation: some clients emit vmess://uuid@host:port?query
	if strings.Contains(payload, "@") {
		d := parseURLForm(SchemeVMess, payload)
		d.LowConfidence = d.LowConfidence || !ok
		if d.Remark == "" {
			d.Remark = remark
		}
		return d
	}
	return lowConfidence(SchemeVMess)
}

// vmessFromJSON reads the v2rayN share format carried base64-encoded behind vmess://
func vmessFromJSON(text string) (Descriptor, bool) {
	var fields map[string]any
	if err := jsonAPI.UnmarshalFromString(text, &fields); err != nil || fields == nil {
		return Descriptor{}, false
	}

	d := Descriptor{
		Scheme:        SchemeVMess,
		Format:        FormatLink,
		ServerAddress: normalizeHost(stringField(fields, "add")),
		Port:          parsePort(fields["port"]),
		TLS:           parseTLSValue(fields["tls"]),
		Cipher:        stringPtr(stringField(fields, "scy")),
		Network:       stringPtr(stringField(fields, "net")),
		AllowInsecure: parseFlag(fields["allowInsecure"]) || parseFlag(fields["skip-cert-verify"]),
		ServerName:    firstNonEmpty(stringField(fields, "sni"), stringField(fields, "host")),
		Remark:        stringField(fields, "ps"),
	}
	if d.ServerAddress == "" {
		d.LowConfidence = true
	}
	return d, true
}

func stringField(fields map[string]any, key string) string {
	return scalarString(fields[key])
}

// parseShadowsocks handles both ss://base64(method:password@host:port)
// and the SIP002 form ss://base64(method:password)@host:port/?plugin=...
func parseShadowsocks(body string) Descriptor {
	a := splitAuthority(body)

	var method string
	switch {
	case a.user != "":
		creds := a.user
		if decoded, ok := decodeBase64(creds); ok && strings.Contains(decoded, ":") {
			creds = decoded
		} else if unescaped, err := url.PathUnescape(creds); err == nil {
			creds = unescaped
		}
		method, _, _ = strings.Cut(creds, ":")
	default:
		decoded, ok := decodeBase64(a.host)
		if !ok || !strings.Contains(decoded, "@") {
			d := lowConfidence(SchemeShadowsocks)
			d.Remark = a.fragment
			return d
		}
		inner := splitAuthority(decoded)
		method, _, _ = strings.Cut(inner.user, ":")
		a.host, a.port = inner.host, inner.port
	}

	d := Descriptor{
		Scheme:        SchemeShadowsocks,
		Format:        FormatLink,
		ServerAddress: normalizeHost(a.host),
		Port:          a.port,
		TLS:           TLSUnknown,
		Cipher:        stringPtr(strings.ToLower(strings.TrimSpace(method))),
		Remark:        a.fragment,
	}
	if plugin := a.query.Get("plugin"); plugin != "" {
		d.Network = stringPtr(strings.SplitN(plugin, ";", 2)[0])
		if strings.Contains(plugin, "tls") {
			d.TLS = TLSEnabled
		}
	}
	if d.ServerAddress == "" || d.Cipher == nil {
		d.LowConfidence = true
	}
	return d
}

func lowConfidence(scheme Scheme) Descriptor {
	return Descriptor{
		Scheme:        scheme,
		Format:        FormatLink,
		TLS:           TLSUnknown,
		LowConfidence: true,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
