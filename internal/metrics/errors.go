package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"unicode"
)

// knownErrorTypes maps error types seen often in load runs to fixed labels.
var knownErrorTypes = map[string]string{
	"runner.HTTPError":              "HTTP error response",
	"url.Error":                     "Request URL error",
	"context.deadlineExceededError": "Context deadline exceeded",
}

// ClassifyError returns the error-breakdown key for a failed outcome.
// Transport failures are grouped by cause; HTTP failures by status class.
func ClassifyError(o Outcome) string {
	if o.StatusCode < 400 {
		return classifyTransport(o.Err)
	}
	switch {
	case o.StatusCode >= 500:
		return fmt.Sprintf("HTTP %d (server error)", o.StatusCode)
	case o.StatusCode >= 400:
		return fmt.Sprintf("HTTP %d (client error)", o.StatusCode)
	}
	return fmt.Sprintf("HTTP %d", o.StatusCode)
}

func classifyTransport(err error) string {
	if err == nil {
		return "Transport error"
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.As(err, &dnsErr):
		return "DNS lookup failed"
	case errors.As(err, &certErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr):
		return "TLS error"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "Connection failed"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	cause := err
	if inner := errors.Unwrap(err); inner != nil {
		cause = inner
	}
	return FriendlyErrorName(fmt.Sprintf("%T", cause))
}

// FriendlyErrorName turns a %T type name such as "*net/http.fooError" into a
// readable label like "Foo Error (http)".
func FriendlyErrorName(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "Unknown error"
	}
	name = path.Base(name)
	if label, ok := knownErrorTypes[name]; ok {
		return label
	}
	pkg, typ, found := strings.Cut(name, ".")
	if !found {
		pkg, typ = "", name
	}
	label := strings.Join(splitWords(typ), " ")
	if pkg == "" || pkg == "main" {
		return label
	}
	return label + " (" + pkg + ")"
}

// splitWords breaks a camel-case identifier into title-cased words.
// Acronyms such as "HTTP" are kept whole.
func splitWords(ident string) []string {
	rs := []rune(ident)
	if len(rs) == 0 {
		return nil
	}
	var words []string
	start := 0
	for i := 1; i < len(rs); i++ {
		if wordBoundary(rs, i) {
			words = append(words, titleWord(string(rs[start:i])))
			start = i
		}
	}
	return append(words, titleWord(string(rs[start:])))
}

func wordBoundary(rs []rune, i int) bool {
	prev, cur := rs[i-1], rs[i]
	switch {
	case unicode.IsDigit(cur):
		return !unicode.IsDigit(prev)
	case !unicode.IsUpper(cur):
		return false
	case unicode.IsLower(prev):
		return true
	}
	return unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1])
}

func titleWord(w string) string {
	if strings.ToUpper(w) == w && strings.IndexFunc(w, unicode.IsLetter) >= 0 {
		return w
	}
	rs := []rune(strings.ToLower(w))
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
