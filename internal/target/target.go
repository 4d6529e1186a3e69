// Package target defines the URL value that flows between URL sources, the
// execution engine and the discovery components.
package target

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Origin records how a URL entered the run.
type Origin string

const (
	OriginSeed         Origin = "seed"
	OriginFile         Origin = "file"
	OriginSitemap      Origin = "sitemap"
	OriginAsset        Origin = "asset"
	OriginLink         Origin = "link"
	OriginJSDiscovered Origin = "js-discovered"
)

// ErrUnsupportedScheme is returned for anything other than http or https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// URL is an absolute http(s) URL plus the origin tag. It is a value type and is
// never mutated after construction.
type URL struct {
	Raw    string
	Origin Origin
}

// New parses raw, normalizes it and tags it with origin.
func New(raw string, origin Origin) (URL, error) {
	normalized, err := Normalize(raw)
	if err != nil {
		return URL{}, err
	}
	return URL{Raw: normalized, Origin: origin}, nil
}

func (u URL) String() string {
	return u.Raw
}

// Path returns the request path plus query, used for per-request console lines.
func (u URL) Path() string {
	parsed, err := url.Parse(u.Raw)
	if err != nil {
		return u.Raw
	}
	return parsed.RequestURI()
}

// Host returns the lower-cased host of the URL.
func (u URL) Host() string {
	parsed, err := url.Parse(u.Raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// IsAsset reports whether the URL was discovered as a static asset.
func (u URL) IsAsset() bool {
	return u.Origin == OriginAsset
}

// Normalize returns scheme://host[:port]/path?query with the fragment removed.
// Scheme and host are lower-cased, default ports are dropped and an empty path
// becomes "/".
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty URL")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	return NormalizeURL(parsed)
}

// NormalizeURL is Normalize for an already parsed URL.
func NormalizeURL(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errors.New("nil URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("URL %q has no host", parsed.String())
	}
	port := parsed.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	out := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     parsed.Path,
		RawPath:  parsed.RawPath,
		RawQuery: parsed.RawQuery,
	}
	if out.Path == "" {
		out.Path = "/"
		out.RawPath = ""
	}
	return out.String(), nil
}

// SameOrigin reports whether a and b share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

// OriginOf returns scheme://host[:port] for raw.
func OriginOf(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("URL %q is not absolute", raw)
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), nil
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	default:
		return "80"
	}
}
