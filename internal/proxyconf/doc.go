// Package proxyconf parses proxy and VPN configuration shared as links
// (vmess, vless, trojan, ss), v2ray style JSON configurations and base64
// subscriptions into a normalized Descriptor.
//
// Input is untrusted. Malformed payloads never panic; when a scheme is
// recognised but its payload is not, a low-confidence descriptor is returned
// so the caller can still produce a report. Fields the input does not state
// stay unset: a missing TLS setting is TLSUnknown, not TLSNone.
package proxyconf
