// Package threat implements signature-based detection of SQL-injection and
// XSS payloads in request input.
package threat

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
)

// Pattern is a compiled detection rule
type Pattern struct {
	Category Category
	Expr     string
	re       *regexp.Regexp
}

// Finding describes the first matched signature. Path locates the offending
// value: a query/form parameter name, or a dotted/bracketed JSON path such
// as "a.b[1]".
type Finding struct {
	Category Category `json:"category"`
	Pattern  string   `json:"pattern"`
	Path     string   `json:"path,omitempty"`
	Value    string   `json:"value,omitempty"`
}

// Scanner matches request input against the signature lists
type Scanner struct {
	patterns []Pattern
}

// NewScanner compiles the built-in SQLi and XSS signatures
func NewScanner() *Scanner {
	s := &Scanner{}
	for _, expr := range sqliPatterns {
		s.patterns = append(s.patterns, Pattern{
			Category: CategorySQLi,
			Expr:     expr,
			re:       regexp.MustCompile(expr),
		})
	}
	for _, expr := range xssPatterns {
		s.patterns = append(s.patterns, Pattern{
			Category: CategoryXSS,
			Expr:     expr,
			re:       regexp.MustCompile(expr),
		})
	}
	return s
}

// PatternCount returns the number of loaded signatures
func (s *Scanner) PatternCount() int {
	return len(s.patterns)
}

// Scan checks a single value. It returns safe=true when no signature
// matches; otherwise the first matching pattern.
func (s *Scanner) Scan(value string) (bool, *Finding) {
	if value == "" {
		return true, nil
	}
	for i := range s.patterns {
		p := &s.patterns[i]
		if p.re.MatchString(value) {
			return false, &Finding{
				Category: p.Category,
				Pattern:  p.Expr,
				Value:    value,
			}
		}
	}
	return true, nil
}

// ScanValues checks every value of query or form parameters. Parameter
// names are sorted so the first finding is deterministic.
func (s *Scanner) ScanValues(values url.Values) *Finding {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range values[k] {
			if safe, finding := s.Scan(v); !safe {
				finding.Path = k
				return finding
			}
		}
	}
	return nil
}

// ScanJSON parses body and checks every string leaf, recursing through
// objects and arrays. A body that is not valid JSON is not scanned here;
// the handler's own decoding deals with it.
func (s *Scanner) ScanJSON(body []byte) *Finding {
	if len(body) == 0 {
		return nil
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}
	return s.walk(data, "")
}

func (s *Scanner) walk(data any, path string) *Finding {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			if finding := s.walk(v[k], childPath); finding != nil {
				return finding
			}
		}
	case []any:
		for i, item := range v {
			if finding := s.walk(item, fmt.Sprintf("%s[%d]", path, i)); finding != nil {
				return finding
			}
		}
	case string:
		if safe, finding := s.Scan(v); !safe {
			finding.Path = path
			return finding
		}
	}
	return nil
}
