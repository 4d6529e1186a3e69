package extractor

import (
	"testing"

	"github.com/sitesiege/sitesiege/internal/target"
)

func raws(urls []target.URL) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.Raw
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const page = `<!doctype html>
<html>
<head>
  <link rel="stylesheet" href="/css/site.css">
  <link rel="shortcut icon" href="/favicon.ico">
  <link rel="preconnect" href="https://fonts.example.net">
  <script src="https://cdn.example.net/app.js"></script>
  <script>inline()</script>
</head>
<body>
  <a href="/about">About</a>
  <a href="about#team">About again</a>
  <a href="https://EXAMPLE.com:443/contact?x=1#top">Contact</a>
  <a href="https://other.example.org/">Elsewhere</a>
  <a href="http://example.com/insecure">Other scheme origin</a>
  <a href="mailto:hi@example.com">Mail</a>
  <a href="javascript:void(0)">JS</a>
  <a href="tel:123">Call</a>
  <a href="#only-fragment">Fragment</a>
  <img src="img/logo.png">
  <img src="/css/site.css">
</body>
</html>`

func TestExtract(t *testing.T) {
	res, err := Extract([]byte(page), "https://example.com/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	wantLinks := []string{
		"https://example.com/about",
		"https://example.com/contact?x=1",
	}
	if got := raws(res.Links); !sameStrings(got, wantLinks) {
		t.Errorf("links: expected %v, got %v", wantLinks, got)
	}
	for _, l := range res.Links {
		if l.Origin != target.OriginLink {
			t.Errorf("expected link origin, got %s", l.Origin)
		}
	}

	wantAssets := []string{
		"https://example.com/css/site.css",
		"https://example.com/favicon.ico",
		"https://cdn.example.net/app.js",
		"https://example.com/img/logo.png",
	}
	if got := raws(res.Assets); !sameStrings(got, wantAssets) {
		t.Errorf("assets: expected %v, got %v", wantAssets, got)
	}
}

func TestExtractHonoursBaseHref(t *testing.T) {
	html := `<html><head><base href="/docs/"></head><body><a href="intro">Intro</a><img src="pic.png"></body></html>`
	res, err := Extract([]byte(html), "https://example.com/index.html")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := raws(res.Links); !sameStrings(got, []string{"https://example.com/docs/intro"}) {
		t.Errorf("unexpected links %v", got)
	}
	if got := raws(res.Assets); !sameStrings(got, []string{"https://example.com/docs/pic.png"}) {
		t.Errorf("unexpected assets %v", got)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	a, _ := Extract([]byte(page), "https://example.com/")
	b, _ := Extract([]byte(page), "https://example.com/")
	if !sameStrings(raws(a.Links), raws(b.Links)) || !sameStrings(raws(a.Assets), raws(b.Assets)) {
		t.Error("expected identical results for identical input")
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	res, err := Extract(nil, "https://example.com/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Links) != 0 || len(res.Assets) != 0 {
		t.Errorf("expected nothing, got %+v", res)
	}
}

func TestResources(t *testing.T) {
	timing := []byte(`[
		{"name":"https://example.com/app.css","initiatorType":"link"},
		{"name":"https://example.com/api/data","initiatorType":"fetch"},
		{"name":"https://cdn.example.net/lib.js","initiatorType":"script"},
		{"name":"https://example.com/app.css","initiatorType":"css"},
		{"name":"data:image/png;base64,AAAA","initiatorType":"img"}
	]`)
	got := raws(Resources(timing))
	want := []string{"https://example.com/app.css", "https://cdn.example.net/lib.js"}
	if !sameStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if Resources([]byte("not json")) != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestMerge(t *testing.T) {
	base, _ := target.New("https://example.com/a.css", target.OriginAsset)
	extra, _ := target.New("https://example.com/b.js", target.OriginAsset)
	got := raws(Merge([]target.URL{base}, []target.URL{base, extra}))
	if !sameStrings(got, []string{base.Raw, extra.Raw}) {
		t.Errorf("unexpected merge %v", got)
	}
}
