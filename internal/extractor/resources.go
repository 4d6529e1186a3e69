package extractor

import (
	"github.com/tidwall/gjson"

	"github.com/sitesiege/sitesiege/internal/target"
)

// assetInitiators are the resource-timing initiator types that correspond
// to static page assets. fetch and xmlhttprequest are application calls.
var assetInitiators = map[string]bool{
	"link":   true,
	"css":    true,
	"script": true,
	"img":    true,
	"image":  true,
}

// Resources reads a JSON array of browser resource-timing entries and
// returns the asset URLs they name, deduplicated in load order.
func Resources(timing []byte) []target.URL {
	if !gjson.ValidBytes(timing) {
		return nil
	}
	seen := make(map[string]struct{})
	var out []target.URL
	gjson.ParseBytes(timing).ForEach(func(_, entry gjson.Result) bool {
		if !assetInitiators[entry.Get("initiatorType").String()] {
			return true
		}
		u, err := target.New(entry.Get("name").String(), target.OriginAsset)
		if err != nil {
			return true
		}
		if _, dup := seen[u.Raw]; dup {
			return true
		}
		seen[u.Raw] = struct{}{}
		out = append(out, u)
		return true
	})
	return out
}

// Merge appends extra assets not already present in base.
func Merge(base, extra []target.URL) []target.URL {
	seen := make(map[string]struct{}, len(base))
	for _, u := range base {
		seen[u.Raw] = struct{}{}
	}
	for _, u := range extra {
		if _, dup := seen[u.Raw]; dup {
			continue
		}
		seen[u.Raw] = struct{}{}
		base = append(base, u)
	}
	return base
}
