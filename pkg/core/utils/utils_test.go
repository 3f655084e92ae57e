package utils

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Score float64  `json:"score"`
	Notes []string `json:"notes"`
}

func TestSmartParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		score float64
	}{
		{"standard", `{"score": 0.9, "notes": ["ok"]}`, 0.9},
		{"fenced", "```json\n{\"score\": 0.8, \"notes\": []}\n```", 0.8},
		{"trailing comma", `{"score": 0.7, "notes": ["a",],}`, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s sample
			if _, err := SmartParse(tt.input, &s); err != nil {
				t.Fatalf("SmartParse failed: %v", err)
			}
			if s.Score != tt.score {
				t.Errorf("score = %v, want %v", s.Score, tt.score)
			}
		})
	}
}

func TestParseHJSON(t *testing.T) {
	out, err := ParseHJSON("{\n  # model comment\n  score: 0.6\n  notes: []\n}")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"score":0.6`) {
		t.Errorf("ParseHJSON = %s", out)
	}
}

func TestSmartParseEmpty(t *testing.T) {
	var s sample
	if _, err := SmartParse("   ", &s); !errors.Is(err, ErrUnparseable) {
		t.Errorf("err = %v, want ErrUnparseable", err)
	}
}

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  plain text  ", "plain text"},
		{"```markdown\n# Title\n```", "# Title"},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := CleanMarkdown(tt.input); got != tt.expected {
			t.Errorf("CleanMarkdown(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("- revisar **tesoreria**\n- conciliar balance")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<li>") || !strings.Contains(html, "<strong>tesoreria</strong>") {
		t.Errorf("unexpected html: %s", html)
	}
}
