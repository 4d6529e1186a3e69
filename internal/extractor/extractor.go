// Package extractor pulls follow-up URLs out of fetched or rendered pages.
//
// Extraction is pure: the same HTML and page URL always produce the same
// result, in document order.
package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesiege/sitesiege/internal/target"
)

// Result holds the URLs found in one page.
type Result struct {
	// Links are same-origin anchor targets, normalized and deduplicated.
	Links []target.URL
	// Assets are stylesheet, icon, script and image URLs on any origin.
	Assets []target.URL
}

var assetSelectors = []struct {
	selector string
	attr     string
}{
	{`link[rel~="stylesheet"][href]`, "href"},
	{`link[rel*="icon"][href]`, "href"},
	{"script[src]", "src"},
	{"img[src]", "src"},
}

// Extract parses html and returns links and assets resolved against pageURL.
// A <base href> in the document overrides pageURL for resolution; the
// same-origin check always uses pageURL.
func Extract(html []byte, pageURL string) (Result, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	return fromDocument(doc, page), nil
}

// fromDocument extracts from an already parsed document.
func fromDocument(doc *goquery.Document, page *url.URL) Result {
	base := page
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := page.Parse(strings.TrimSpace(href)); err == nil {
			base = resolved
		}
	}

	var res Result
	seenLinks := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := resolve(base, href)
		if !ok || !target.SameOrigin(page, u) {
			return
		}
		if tu, ok := add(seenLinks, u, target.OriginLink); ok {
			res.Links = append(res.Links, tu)
		}
	})

	seenAssets := make(map[string]struct{})
	doc.Find(`link, script, img`).Each(func(_ int, s *goquery.Selection) {
		for _, as := range assetSelectors {
			if !s.Is(as.selector) {
				continue
			}
			ref, _ := s.Attr(as.attr)
			u, ok := resolve(base, ref)
			if !ok {
				return
			}
			if tu, ok := add(seenAssets, u, target.OriginAsset); ok {
				res.Assets = append(res.Assets, tu)
			}
			return
		}
	})
	return res
}

func resolve(base *url.URL, ref string) (*url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil, false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u, true
	}
	return nil, false
}

func add(seen map[string]struct{}, u *url.URL, origin target.Origin) (target.URL, bool) {
	normalized, err := target.NormalizeURL(u)
	if err != nil {
		return target.URL{}, false
	}
	if _, dup := seen[normalized]; dup {
		return target.URL{}, false
	}
	seen[normalized] = struct{}{}
	return target.URL{Raw: normalized, Origin: origin}, true
}
