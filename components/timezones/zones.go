package timezones

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

//go:embed data/zones.txt
var dataFS embed.FS

const defaultListPath = "data/zones.txt"

var (
	defaultOnce  sync.Once
	defaultZones []string
	defaultErr   error
)

// Choice is one selectable zone.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DefaultZones returns a copy of the embedded zone list.
func DefaultZones() ([]string, error) {
	defaultOnce.Do(func() {
		f, err := dataFS.Open(defaultListPath)
		if err != nil {
			defaultErr = err
			return
		}
		defer func() { _ = f.Close() }()

		zones, err := LoadZones(f)
		if err != nil {
			defaultErr = err
			return
		}
		defaultZones = zones
	})

	if defaultErr != nil {
		return nil, defaultErr
	}
	return append([]string{}, defaultZones...), nil
}

// LoadZones reads one zone per line, skipping blanks, comments and
// duplicates. The result is sorted.
func LoadZones(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("timezones: missing reader")
	}

	scanner := bufio.NewScanner(r)
	zones := make([]string, 0, 64)
	seen := map[string]struct{}{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		zones = append(zones, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Strings(zones)
	return zones, nil
}

// Search returns zones containing query, case-insensitively. Prefix matches
// sort first, then by name.
func Search(zones []string, query string, limit int, opts Options) []string {
	limit = clampLimit(limit, opts)
	if limit == 0 {
		return nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		if opts.EmptySearchMode != EmptySearchTop {
			return nil
		}
		if len(zones) <= limit {
			return append([]string{}, zones...)
		}
		return append([]string{}, zones[:limit]...)
	}

	q := strings.ToLower(query)
	matches := make([]matchedZone, 0, 16)
	for _, zone := range zones {
		lower := strings.ToLower(zone)
		if !strings.Contains(lower, q) {
			continue
		}
		matches = append(matches, matchedZone{name: zone, isPrefix: strings.HasPrefix(lower, q)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].isPrefix != matches[j].isPrefix {
			return matches[i].isPrefix
		}
		return matches[i].name < matches[j].name
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.name)
	}
	return out
}

// SearchChoices is Search mapped to value/label pairs.
func SearchChoices(zones []string, query string, limit int, opts Options) []Choice {
	results := Search(zones, query, limit, opts)
	if len(results) == 0 {
		return nil
	}
	out := make([]Choice, 0, len(results))
	for _, zone := range results {
		out = append(out, Choice{Value: zone, Label: zone})
	}
	return out
}

type matchedZone struct {
	name     string
	isPrefix bool
}
