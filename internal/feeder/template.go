package feeder

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	assignment  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)
	placeholder = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_]*)\)|\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// readText reads a siege-style URL file: one URL per line, '#' comments,
// NAME=value assignments and $(NAME) or ${NAME} expansion. Only the first
// field of a line is used, so trailing request data is ignored.
func readText(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open URL file: %w", err)
	}
	defer file.Close()

	vars := Record{}
	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		if m := assignment.FindStringSubmatch(line); m != nil {
			vars[m[1]] = SubstitutePlaceholders(strings.TrimSpace(m[2]), vars)
			continue
		}
		if fields := strings.Fields(SubstitutePlaceholders(line, vars)); len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read URL file: %w", err)
	}
	return out, nil
}

// SubstitutePlaceholders replaces $(NAME) and ${NAME} with values from the
// record, falling back to the environment. Unknown names are left unchanged.
func SubstitutePlaceholders(template string, record Record) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if v, ok := record[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}
