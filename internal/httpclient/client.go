package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// acceptEncoding is sent on every request. Setting it disables the
// transport's transparent gzip handling, so bodies are decoded here.
const acceptEncoding = "gzip, br"

// RequestBuilder creates GET requests with a fixed header set.
type RequestBuilder struct {
	headers http.Header
}

// NewRequestBuilder validates headers and returns a builder. A non-empty
// userAgent overrides any User-Agent header.
func NewRequestBuilder(userAgent string, headers map[string]string) (*RequestBuilder, error) {
	h := http.Header{}
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(trimmedKey, "\r\n: ") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		h.Set(canonicalKey, value)
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		if strings.ContainsAny(ua, "\r\n") {
			return nil, errors.New("invalid user agent")
		}
		h.Set("User-Agent", ua)
	}
	h.Set("Accept-Encoding", acceptEncoding)
	return &RequestBuilder{headers: h}, nil
}

// Build returns a GET request for rawURL.
func (b *RequestBuilder) Build(ctx context.Context, rawURL string) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	return req, nil
}

func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
