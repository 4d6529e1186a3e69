package feeder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// readCSV returns the "url" column of a CSV file. When the header has no
// such column the first column is used.
func readCSV(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("CSV file has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := 0
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "url") {
			col = i
			break
		}
	}

	var out []string
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		if col < len(row) {
			if v := strings.TrimSpace(row[col]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out, nil
}
