package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/checker"
	"github.com/khanhnv2901/seca-guard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "seca-guard/1.0 (+posture check)"

// Options configures an HTTPFetcher
type Options struct {
	Timeout     time.Duration // Per request timeout; defaults to constants.DefaultFetchTimeout
	RateLimit   int           // Requests per second across all targets; <= 0 means unlimited
	CaptureBody bool          // Keep a bounded prefix of the body for the ML collaborator
	UserAgent   string
	Resolver    *Resolver      // Optional; records the addresses the host resolves to
	RootCAs     *x509.CertPool // Overrides the system roots
	Logger      *zap.Logger
}

// HTTPFetcher collects network posture metadata with a HEAD request,
// falling back to GET when the server rejects HEAD.
type HTTPFetcher struct {
	opts     Options
	client   *http.Client
	insecure *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	now      func() time.Time
}

var _ checker.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds a fetcher from opts
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultFetchTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}

	return &HTTPFetcher{
		opts:     opts,
		client:   newClient(opts, false),
		insecure: newClient(opts, true),
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

func newClient(opts Options, skipVerify bool) *http.Client {
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				RootCAs: opts.RootCAs,
				// Legacy versions are accepted so they can be reported
				MinVersion: tls.VersionTLS10,
				// Only used after a verified handshake already failed, to read headers
				InsecureSkipVerify: skipVerify, //nolint:gosec
			},
			TLSHandshakeTimeout: opts.Timeout,
		},
	}
}

// Close releases idle connections held by the fetcher
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
	f.insecure.CloseIdleConnections()
}

// Fetch retrieves response metadata for rawURL. A certificate that fails
// verification does not end the fetch: headers are still read over an
// unverified connection and CertValid is reported false.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (checker.FetchedMeta, error) {
	target := checker.NormalizeHTTPTarget(rawURL)
	if target == "" {
		return checker.FetchedMeta{URL: rawURL}, fmt.Errorf("%w: %q is not an http(s) URL", sharedErrors.ErrUnsupportedTarget, rawURL)
	}

	meta := checker.FetchedMeta{URL: target}
	if err := f.limiter.Wait(ctx); err != nil {
		return meta, err
	}
	meta.FetchedAt = f.now().UTC()

	if f.opts.Resolver != nil {
		addrs, err := f.opts.Resolver.Lookup(ctx, checker.ExtractHost(target))
		if err != nil {
			f.logger.Debug("dns lookup failed", zap.String("url", target), zap.Error(err))
		}
		meta.ResolvedAddrs = addrs
	}

	client := f.client
	certValid := true
	resp, err := f.do(ctx, client, target)
	if err != nil && isCertificateError(err) {
		f.logger.Debug("certificate rejected, retrying without verification", zap.String("url", target), zap.Error(err))
		client = f.insecure
		certValid = false
		resp, err = f.do(ctx, client, target)
	}
	if err != nil {
		return meta, fmt.Errorf("%w: %v", sharedErrors.ErrNoResponse, err)
	}
	defer resp.Body.Close()

	meta.Responded = true
	meta.StatusCode = resp.StatusCode
	meta.Headers = flattenHeaders(resp.Header)
	if resp.Request != nil && resp.Request.URL != nil {
		if final := resp.Request.URL.String(); final != target {
			meta.FinalURL = final
		}
	}
	if resp.TLS != nil {
		applyTLS(&meta, resp.TLS, certValid)
	}

	if f.opts.CaptureBody {
		if resp.Request != nil && resp.Request.Method == http.MethodGet {
			meta.Body = readBody(resp.Body)
		} else {
			meta.Body = f.captureBody(ctx, client, target)
		}
	}

	// Discard remaining body - ignore errors as this is just cleanup
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, constants.BodyCaptureLimitBytes))

	f.logger.Debug("fetched",
		zap.String("url", target),
		zap.Int("status", meta.StatusCode),
		zap.Bool("tls", meta.TLSVersion != nil),
	)
	return meta, nil
}

// do tries HEAD first (safe, minimal side effects) and falls back to GET when
// HEAD fails or is not allowed.
func (f *HTTPFetcher) do(ctx context.Context, client *http.Client, target string) (*http.Response, error) {
	resp, err := f.request(ctx, client, http.MethodHead, target)
	if err == nil && resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotImplemented {
		return resp, nil
	}
	if err == nil {
		resp.Body.Close()
	} else if isCertificateError(err) {
		return nil, err
	}
	return f.request(ctx, client, http.MethodGet, target)
}

func (f *HTTPFetcher) request(ctx context.Context, client *http.Client, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	return client.Do(req)
}

func (f *HTTPFetcher) captureBody(ctx context.Context, client *http.Client, target string) string {
	resp, err := f.request(ctx, client, http.MethodGet, target)
	if err != nil {
		f.logger.Debug("body capture failed", zap.String("url", target), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()
	return readBody(resp.Body)
}

func readBody(body io.Reader) string {
	// A read error still leaves a usable prefix
	data, _ := io.ReadAll(io.LimitReader(body, constants.BodyCaptureLimitBytes))
	return string(data)
}

func applyTLS(meta *checker.FetchedMeta, state *tls.ConnectionState, verified bool) {
	version := checker.TLSVersionName(state.Version)
	cipher := checker.CipherSuiteName(state.CipherSuite)
	meta.TLSVersion = &version
	meta.CipherSuite = &cipher

	valid := verified
	if len(state.PeerCertificates) > 0 {
		leaf := state.PeerCertificates[0]
		expiry := leaf.NotAfter.UTC()
		meta.CertExpiry = &expiry
		if meta.FetchedAt.Before(leaf.NotBefore) || meta.FetchedAt.After(leaf.NotAfter) {
			valid = false
		}
	}
	meta.CertValid = &valid
}

// flattenHeaders joins repeated values; Set-Cookie lines stay newline separated
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		sep := ", "
		if name == "Set-Cookie" {
			sep = "\n"
		}
		out[name] = strings.Join(values, sep)
	}
	return out
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var invalid x509.CertificateInvalidError
	var hostname x509.HostnameError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname)
}
