package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sitesiege/sitesiege/internal/target"
	"github.com/sitesiege/sitesiege/internal/tracing"
)

// DefaultMaxBody is the default cap on retained HTML bytes.
const DefaultMaxBody = 5 << 20

const maxErrorSnippet = 1024

// Response is the result of a completed request.
type Response struct {
	StatusCode  int
	Proto       string
	ContentType string
	// Bytes is the number of body bytes received on the wire.
	Bytes   int64
	Elapsed time.Duration
	// Body holds the decoded HTML body (capped at MaxBody) or, for error
	// statuses, the leading bytes of the body. It is nil otherwise.
	Body []byte
	// HTML reports whether Body is a decoded HTML document.
	HTML bool
	// FinalURL is the URL the response was served from after redirects.
	FinalURL string
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Client    *http.Client
	UserAgent string
	Headers   map[string]string
	MaxBody   int64
	Tracer    trace.Tracer
	Propagate bool
}

// Fetcher issues GET requests and measures them.
type Fetcher struct {
	client    *http.Client
	builder   *RequestBuilder
	maxBody   int64
	tracer    trace.Tracer
	propagate bool
}

// NewFetcher validates options and returns a Fetcher.
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	builder, err := NewRequestBuilder(opts.UserAgent, opts.Headers)
	if err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		client = NewClient(30 * time.Second)
	}
	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("sitesiege")
	}
	return &Fetcher{
		client:    client,
		builder:   builder,
		maxBody:   maxBody,
		tracer:    tracer,
		propagate: opts.Propagate,
	}, nil
}

// Client returns the underlying HTTP client.
func (f *Fetcher) Client() *http.Client { return f.client }

// Fetch requests u. A non-nil error means the request failed before a
// response status was received; the returned Response still carries the
// elapsed time.
func (f *Fetcher) Fetch(ctx context.Context, u target.URL) (*Response, error) {
	ctx, span := tracing.StartRequestSpan(ctx, f.tracer, u)

	start := time.Now()
	req, err := f.builder.Build(ctx, u.Raw)
	if err != nil {
		tracing.EndRequestSpan(span, 0, 0, err)
		return &Response{Elapsed: time.Since(start)}, err
	}
	if f.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		out := &Response{Elapsed: time.Since(start)}
		tracing.EndRequestSpan(span, 0, 0, err)
		return out, err
	}
	defer resp.Body.Close()

	out := &Response{
		StatusCode:  resp.StatusCode,
		Proto:       resp.Proto,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.FinalURL = resp.Request.URL.String()
	}
	wire := &countingReader{r: resp.Body}
	bodyErr := f.readBody(out, resp.Header.Get("Content-Encoding"), wire)
	out.Bytes = wire.n
	out.Elapsed = time.Since(start)

	tracing.EndRequestSpan(span, out.StatusCode, out.Bytes, nil)
	return out, bodyErr
}

func (f *Fetcher) readBody(out *Response, encoding string, wire io.Reader) error {
	switch {
	case out.StatusCode < 400 && IsHTML(out.ContentType):
		decoded, err := decodeBody(encoding, wire)
		if err == nil {
			out.Body, err = io.ReadAll(io.LimitReader(decoded, f.maxBody))
			out.HTML = err == nil
		}
		if err != nil {
			out.Body = nil
		}
	case out.StatusCode >= 400:
		if decoded, err := decodeBody(encoding, wire); err == nil {
			out.Body, _ = io.ReadAll(io.LimitReader(decoded, maxErrorSnippet))
		}
	}
	_, err := io.Copy(io.Discard, wire)
	if err != nil {
		return &BodyError{Err: err}
	}
	return nil
}

// BodyError reports a failure while reading a response body after the
// status line was received.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string { return "read body: " + e.Err.Error() }

func (e *BodyError) Unwrap() error { return e.Err }
