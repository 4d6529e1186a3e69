package feeder

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// readJSON accepts an array of URL strings or an array of objects with a
// "url" field.
func readJSON(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode JSON: invalid document")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected an array, got %s", doc.Type)
	}

	var out []string
	var bad error
	doc.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.Type == gjson.String:
			out = append(out, value.String())
		case value.IsObject() && value.Get("url").Exists():
			out = append(out, value.Get("url").String())
		default:
			bad = fmt.Errorf("record %d: expected a string or an object with url", key.Int())
			return false
		}
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}
