package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRegistryHasValidator(t *testing.T) {
	r := Default()
	pt, err := r.Get(FinancialValidatorID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(pt.SystemPrompt, "overall_score") {
		t.Error("system prompt does not describe the report schema")
	}

	out, err := Render(pt, Vars{}.
		Set("Unit", "thousands").
		Set("Fields", map[string]float64{"ventas": 1200, "activo_total": 1000}).
		Set("Issues", nil))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Unit: thousands", "- activo_total: 1000.00", "- ventas: 1200.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRenderMissingVariable(t *testing.T) {
	pt := &Template{ID: "x", UserPromptTmpl: "{{.Missing}}"}
	if _, err := Render(pt, Vars{}); err == nil {
		t.Error("expected error for missing variable")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "validation")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	body := `{"system_prompt": "override", "user_prompt_template": "{{.Unit}}"}`
	if err := os.WriteFile(filepath.Join(sub, "financial_validator.json"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	r := Default()
	n, err := r.LoadFromDirectory(dir)
	if err != nil || n != 1 {
		t.Fatalf("loaded %d, err %v", n, err)
	}
	pt, _ := r.Get(FinancialValidatorID)
	if pt.SystemPrompt != "override" || pt.Category != "validation" {
		t.Errorf("override not applied: %+v", pt)
	}

	if n, err := NewRegistry().LoadFromDirectory(filepath.Join(dir, "absent")); err != nil || n != 0 {
		t.Errorf("missing dir: n=%d err=%v", n, err)
	}
}
