package fetch

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/khanhnv2901/seca-guard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestFetcher(t *testing.T, opts Options) *HTTPFetcher {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	f := NewHTTPFetcher(opts)
	t.Cleanup(f.Close)
	return f
}

func TestHTTPFetcher_PlainHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Add("Set-Cookie", "a=1; Secure")
		w.Header().Add("Set-Cookie", "b=2; HttpOnly")
		w.Header().Add("Vary", "Accept")
		w.Header().Add("Vary", "Origin")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	meta, err := newTestFetcher(t, Options{}).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.True(t, meta.Responded)
	assert.Equal(t, http.StatusOK, meta.StatusCode)
	assert.Equal(t, server.URL, meta.URL)
	assert.Empty(t, meta.FinalURL)
	assert.Nil(t, meta.TLSVersion)
	assert.Nil(t, meta.CertValid)
	assert.Equal(t, "DENY", meta.Headers["X-Frame-Options"])
	assert.Equal(t, "a=1; Secure\nb=2; HttpOnly", meta.Headers["Set-Cookie"])
	assert.Equal(t, "Accept, Origin", meta.Headers["Vary"])
	assert.False(t, meta.FetchedAt.IsZero())
}

func TestHTTPFetcher_HeadNotAllowedFallsBackToGet(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer server.Close()

	meta, err := newTestFetcher(t, Options{CaptureBody: true}).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, meta.StatusCode)
	assert.Equal(t, []string{http.MethodHead, http.MethodGet}, methods)
	assert.Equal(t, "<html>hello</html>", meta.Body, "body of the fallback GET is reused")
}

func TestHTTPFetcher_CaptureBodyIsBounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(strings.Repeat("a", constants.BodyCaptureLimitBytes+100)))
		}
	}))
	defer server.Close()

	meta, err := newTestFetcher(t, Options{CaptureBody: true}).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Len(t, meta.Body, constants.BodyCaptureLimitBytes)
}

func TestHTTPFetcher_NoBodyWithoutCapture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content"))
	}))
	defer server.Close()

	meta, err := newTestFetcher(t, Options{}).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Empty(t, meta.Body)
}

func TestHTTPFetcher_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	meta, err := newTestFetcher(t, Options{}).Fetch(context.Background(), server.URL+"/old")

	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new", meta.FinalURL)
}

func TestHTTPFetcher_TrustedTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())

	meta, err := newTestFetcher(t, Options{RootCAs: pool}).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	require.NotNil(t, meta.TLSVersion)
	require.NotNil(t, meta.CipherSuite)
	require.NotNil(t, meta.CertValid)
	require.NotNil(t, meta.CertExpiry)
	assert.True(t, strings.HasPrefix(*meta.TLSVersion, "TLS 1."))
	assert.True(t, *meta.CertValid)
	assert.Equal(t, server.Certificate().NotAfter.UTC(), *meta.CertExpiry)
}

func TestHTTPFetcher_UntrustedCertificateStillReadsHeaders(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	meta, err := newTestFetcher(t, Options{}).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.True(t, meta.Responded)
	require.NotNil(t, meta.CertValid)
	assert.False(t, *meta.CertValid)
	assert.Equal(t, "max-age=31536000", meta.Headers["Strict-Transport-Security"])
}

func TestHTTPFetcher_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	meta, err := newTestFetcher(t, Options{}).Fetch(context.Background(), url)

	require.Error(t, err)
	assert.ErrorIs(t, err, sharedErrors.ErrNoResponse)
	assert.False(t, meta.Responded)
}

func TestHTTPFetcher_UnsupportedScheme(t *testing.T) {
	_, err := newTestFetcher(t, Options{}).Fetch(context.Background(), "ftp://files.example.com")

	assert.ErrorIs(t, err, sharedErrors.ErrUnsupportedTarget)
}

func TestHTTPFetcher_RateLimitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(t, Options{RateLimit: 1}).Fetch(ctx, "http://example.com")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolver_Lookup(t *testing.T) {
	r := NewResolver(0, nil)

	addrs, err := r.Lookup(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, addrs)

	addrs, err = r.Lookup(context.Background(), "::1")
	require.NoError(t, err)
	assert.Equal(t, []string{"::1"}, addrs)

	_, err = r.Lookup(context.Background(), "")
	assert.Error(t, err)
}

func TestHTTPFetcher_RecordsResolvedAddresses(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	f := newTestFetcher(t, Options{Resolver: NewResolver(0, nil)})
	meta, err := f.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, meta.ResolvedAddrs)
	assert.Equal(t, http.StatusNotFound, meta.StatusCode)
}
