package output

import (
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/sitesiege/sitesiege/internal/metrics"
)

// RequestLogger prints one line per completed request.
type RequestLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRequestLogger writes one line per outcome to w.
func NewRequestLogger(w io.Writer) *RequestLogger {
	if w == nil {
		w = io.Discard
	}
	return &RequestLogger{w: w}
}

// Log writes o as "HTTP/1.1 200   0.12 secs:   5120 bytes ==> GET  /path".
func (l *RequestLogger) Log(o metrics.Outcome) {
	proto := o.Proto
	if proto == "" {
		proto = "HTTP"
	}
	status := fmt.Sprintf("%d", o.StatusCode)
	if o.StatusCode == 0 {
		status = "ERR"
	}
	line := fmt.Sprintf("%s %-3s %7.2f secs: %9d bytes ==> %-4s %s", proto, status, o.Elapsed.Seconds(), o.Bytes, o.Method, requestPath(o.URL))
	if o.StatusCode == 0 && o.Err != nil {
		line += " (" + metrics.ClassifyError(o) + ")"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, line)
}

func requestPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.RequestURI()
}
