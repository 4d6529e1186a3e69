// Package feeder loads target URL lists from files.
package feeder

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sitesiege/sitesiege/internal/target"
)

// Record represents a single row of data with named fields.
type Record map[string]string

// ErrEmpty is returned when a file yields no usable URL.
var ErrEmpty = errors.New("URL list is empty")

// Load reads the URL list at path. The format is chosen by extension:
// .csv and .json are structured, anything else is read as plain text with
// one URL per line. Every URL is normalized and tagged as a file origin;
// duplicates are kept so that weighting by repetition works.
func Load(path string) ([]target.URL, error) {
	var (
		raws []string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		raws, err = readCSV(path)
	case ".json":
		raws, err = readJSON(path)
	default:
		raws, err = readText(path)
	}
	if err != nil {
		return nil, err
	}

	urls := make([]target.URL, 0, len(raws))
	for i, raw := range raws {
		u, err := target.New(raw, target.OriginFile)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", filepath.Base(path), i+1, err)
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmpty)
	}
	return urls, nil
}
