// Command samplesite serves a small synthetic website for trying sitesiege
// by hand: robots.txt, a sitemap index with child sitemaps, linked HTML
// pages with inline assets, and a few slow or failing paths.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	pages := flag.Int("pages", 50, "Number of generated pages")
	slow := flag.Duration("slow", 750*time.Millisecond, "Latency of /slow/ pages")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}
	if *pages < 1 {
		log.Fatalf("pages must be >= 1")
	}

	site := &site{pages: *pages, slow: *slow, perSitemap: 20}
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("sample site listening on %s with %d pages", addr, *pages)
	log.Fatal(http.ListenAndServe(addr, site.routes()))
}

type site struct {
	pages      int
	perSitemap int
	slow       time.Duration
}

func (s *site) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", s.handleRobots)
	mux.HandleFunc("/sitemap_index.xml", s.handleSitemapIndex)
	mux.HandleFunc("/sitemaps/", s.handleChildSitemap)
	mux.HandleFunc("/page/", s.handlePage)
	mux.HandleFunc("/slow/", s.handleSlow)
	mux.HandleFunc("/error/", s.handleError)
	mux.HandleFunc("/static/", s.handleAsset)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.writePage(w, 0)
	})
	return mux
}

func (s *site) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "User-agent: *\nDisallow:\nSitemap: http://%s/sitemap_index.xml\n", r.Host)
}

func (s *site) handleSitemapIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for i := 0; i*s.perSitemap < s.pages; i++ {
		fmt.Fprintf(&b, "  <sitemap><loc>http://%s/sitemaps/%d.xml</loc></sitemap>\n", r.Host, i)
	}
	// A broken child is skipped by the resolver.
	fmt.Fprintf(&b, "  <sitemap><loc>http://%s/sitemaps/missing.xml</loc></sitemap>\n", r.Host)
	b.WriteString("</sitemapindex>\n")
	_, _ = w.Write([]byte(b.String()))
}

func (s *site) handleChildSitemap(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/sitemaps/"), ".xml")
	idx, err := strconv.Atoi(name)
	if err != nil || idx < 0 || idx*s.perSitemap >= s.pages {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for p := idx * s.perSitemap; p < (idx+1)*s.perSitemap && p < s.pages; p++ {
		fmt.Fprintf(&b, "  <url><loc>http://%s/page/%d</loc></url>\n", r.Host, p)
	}
	b.WriteString("</urlset>\n")
	_, _ = w.Write([]byte(b.String()))
}

func (s *site) handlePage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/page/"))
	if err != nil || n < 0 || n >= s.pages {
		http.NotFound(w, r)
		return
	}
	s.writePage(w, n)
}

func (s *site) writePage(w http.ResponseWriter, n int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>Page %d</title>", n)
	b.WriteString(`<link rel="stylesheet" href="/static/site.css">`)
	b.WriteString(`<link rel="icon" href="/static/favicon.ico">`)
	b.WriteString(`<script src="/static/app.js"></script></head><body>`)
	fmt.Fprintf(&b, "<h1>Page %d</h1><img src=\"/static/img/%d.png\">", n, n%5)
	for _, next := range []int{(n + 1) % s.pages, (n * 7) % s.pages, (n + s.pages/2) % s.pages} {
		fmt.Fprintf(&b, `<a href="/page/%d">page %d</a> `, next, next)
	}
	if n%10 == 0 {
		fmt.Fprintf(&b, `<a href="/slow/%d">slow</a> <a href="/error/%d">broken</a>`, n, n)
	}
	b.WriteString(`<a href="https://example.org/elsewhere">external</a></body></html>`)
	_, _ = w.Write([]byte(b.String()))
}

func (s *site) handleSlow(w http.ResponseWriter, r *http.Request) {
	jitter := time.Duration(rand.Int63n(int64(s.slow)/4 + 1))
	select {
	case <-time.After(s.slow + jitter):
	case <-r.Context().Done():
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<html><body>slow page</body></html>"))
}

func (s *site) handleError(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "synthetic failure", http.StatusServiceUnavailable)
}

func (s *site) handleAsset(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, ".css"):
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body{font-family:sans-serif}"))
	case strings.HasSuffix(r.URL.Path, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte("console.log('sample');"))
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(make([]byte, 2048))
	}
}
