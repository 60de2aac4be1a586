package threat

import (
	"net/url"
	"testing"
)

func TestScan(t *testing.T) {
	s := NewScanner()

	t.Run("sql injection", func(t *testing.T) {
		cases := []string{
			"1 OR 1=1",
			"'; DROP TABLE users",
			"x' UNION SELECT password FROM users",
			"admin'--'",
		}
		for _, input := range cases {
			safe, finding := s.Scan(input)
			if safe {
				t.Fatalf("expected %q to be flagged", input)
			}
			if finding.Category != CategorySQLi {
				t.Fatalf("expected sqli category for %q, got %s", input, finding.Category)
			}
		}
	})

	t.Run("xss", func(t *testing.T) {
		cases := []string{
			"<script>alert(1)</script>",
			`<img src=x onerror=alert(1)>`,
			"<iframe src='evil'></iframe>",
			"javascript:alert(1)",
			"<body onload=steal()>",
		}
		for _, input := range cases {
			safe, finding := s.Scan(input)
			if safe {
				t.Fatalf("expected %q to be flagged", input)
			}
			if finding.Category != CategoryXSS {
				t.Fatalf("expected xss category for %q, got %s", input, finding.Category)
			}
		}
	})

	t.Run("benign input", func(t *testing.T) {
		cases := []string{
			"normal user text",
			"",
			"order 42, blue tent, 3 nights",
			"jane.doe@example.com",
		}
		for _, input := range cases {
			if safe, finding := s.Scan(input); !safe {
				t.Fatalf("expected %q to be safe, matched %s", input, finding.Pattern)
			}
		}
	})
}

func TestScanValues(t *testing.T) {
	s := NewScanner()

	t.Run("flags offending parameter", func(t *testing.T) {
		values := url.Values{
			"name": []string{"alice"},
			"q":    []string{"1 OR 1=1"},
		}
		finding := s.ScanValues(values)
		if finding == nil {
			t.Fatal("expected a finding")
		}
		if finding.Path != "q" {
			t.Fatalf("expected path q, got %s", finding.Path)
		}
	})

	t.Run("clean values pass", func(t *testing.T) {
		values := url.Values{"name": []string{"alice"}, "page": []string{"2"}}
		if finding := s.ScanValues(values); finding != nil {
			t.Fatalf("expected no finding, got %+v", finding)
		}
	})
}

func TestScanJSON(t *testing.T) {
	s := NewScanner()

	t.Run("nested path", func(t *testing.T) {
		body := []byte(`{"a":{"b":["x","DROP TABLE users"]}}`)
		finding := s.ScanJSON(body)
		if finding == nil {
			t.Fatal("expected a finding")
		}
		if finding.Path != "a.b[1]" {
			t.Fatalf("expected path a.b[1], got %s", finding.Path)
		}
		if finding.Category != CategorySQLi {
			t.Fatalf("expected sqli, got %s", finding.Category)
		}
	})

	t.Run("clean body", func(t *testing.T) {
		body := []byte(`{"name":"alice","items":[{"qty":2,"note":"gift wrap"}]}`)
		if finding := s.ScanJSON(body); finding != nil {
			t.Fatalf("expected no finding, got %+v", finding)
		}
	})

	t.Run("invalid json is skipped", func(t *testing.T) {
		if finding := s.ScanJSON([]byte("not json at all")); finding != nil {
			t.Fatalf("expected no finding for invalid JSON, got %+v", finding)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		if finding := s.ScanJSON(nil); finding != nil {
			t.Fatal("expected no finding for empty body")
		}
	})

	t.Run("xss in json leaf", func(t *testing.T) {
		body := []byte(`{"comment":"<script>document.location='evil'</script>"}`)
		finding := s.ScanJSON(body)
		if finding == nil {
			t.Fatal("expected a finding")
		}
		if finding.Path != "comment" || finding.Category != CategoryXSS {
			t.Fatalf("unexpected finding: %+v", finding)
		}
	})
}

func TestSanitize(t *testing.T) {
	got := Sanitize(`<a href="/x" onclick='y'>`)
	want := "&lt;a href=&quot;&#x2F;x&quot; onclick=&#x27;y&#x27;&gt;"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if Sanitize("plain text") != "plain text" {
		t.Fatal("expected plain text to pass through")
	}
}

func TestSanitizeJSON(t *testing.T) {
	data := map[string]any{
		"name":  "<b>bold</b>",
		"count": float64(3),
		"tags":  []any{"a/b", "c"},
	}

	out := SanitizeJSON(data).(map[string]any)
	if out["name"] != "&lt;b&gt;bold&lt;&#x2F;b&gt;" {
		t.Fatalf("unexpected name: %v", out["name"])
	}
	if out["count"] != float64(3) {
		t.Fatal("expected non-string leaves unchanged")
	}
	tags := out["tags"].([]any)
	if tags[0] != "a&#x2F;b" {
		t.Fatalf("unexpected tag: %v", tags[0])
	}
}
