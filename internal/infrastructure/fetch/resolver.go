package fetch

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"
)

// Resolver looks up the addresses a target host resolves to
type Resolver struct {
	Timeout     time.Duration
	NameServers []string // Optional custom nameservers, host or host:port

	resolver *net.Resolver
}

// NewResolver creates a resolver. With no nameservers the system
// configuration is used.
func NewResolver(timeout time.Duration, nameServers []string) *Resolver {
	r := &Resolver{Timeout: timeout, NameServers: nameServers}
	r.resolver = &net.Resolver{PreferGo: true}

	if len(nameServers) > 0 {
		servers := make([]string, len(nameServers))
		for i, ns := range nameServers {
			if _, _, err := net.SplitHostPort(ns); err != nil {
				ns = net.JoinHostPort(ns, "53")
			}
			servers[i] = ns
		}
		dialer := &net.Dialer{Timeout: timeout}
		r.resolver.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			var lastErr error
			for _, server := range servers {
				conn, err := dialer.DialContext(ctx, network, server)
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		}
	}
	return r
}

// Lookup returns the sorted, de-duplicated A and AAAA addresses for host.
// IP literals are returned as is.
func (r *Resolver) Lookup(ctx context.Context, host string) ([]string, error) {
	if host == "" {
		return nil, fmt.Errorf("empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	lookupCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	resolver := r.resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupHost(lookupCtx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed: %w", err)
	}

	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}
