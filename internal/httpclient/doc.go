// Package httpclient builds and executes the GET requests issued by sitesiege
// workers.
//
// [NewClient] returns an *http.Client tuned for load generation: a large idle
// connection pool, keep-alives and HTTP/2 when the server offers it. The
// [Fetcher] wraps that client and turns one URL into one [Response]:
//
//	fetcher, err := httpclient.NewFetcher(httpclient.FetcherOptions{
//		Client:    httpclient.NewClient(30 * time.Second),
//		UserAgent: "sitesiege/1.0",
//		MaxBody:   5 << 20,
//	})
//	resp, err := fetcher.Fetch(ctx, u)
//
// # Bodies
//
// Requests advertise gzip and brotli. The response body is always read to
// the end so connections are reused and Response.Bytes reflects what came
// over the wire. HTML bodies are decoded and retained up to MaxBody bytes
// for link extraction; other bodies are discarded.
//
// # Tracing
//
// When a tracer is configured each fetch runs inside a client span, and W3C
// trace headers are injected when propagation is enabled.
package httpclient
