package synonym

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"financial_dashboard/pkg/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Total Activo", "total_activo"},
		{"Gastos de Personal (€)", "gastos_de_personal"},
		{"Amortización", "amortizacion"},
		{"  --Ventas--  ", "ventas"},
		{"TESORERÍA", "tesoreria"},
		{"D&A", "d_a"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveLayers(t *testing.T) {
	r := NewResolver(nil)
	overrides := map[string]models.CanonicalField{"facturacion_bruta": models.ActivoTotal}

	tests := []struct {
		name       string
		field      string
		canonical  models.CanonicalField
		confidence float64
		source     string
	}{
		{"canonical exact", "ventas", models.Ventas, 1.0, SourceExact},
		{"alias", "Importe neto de la cifra de negocios", models.Ventas, 0.9, SourceAlias},
		{"alias accented", "Total Activo", models.ActivoTotal, 0.9, SourceAlias},
		{"client override", "Facturación Bruta", models.ActivoTotal, 1.0, SourceClientOverride},
		{"fuzzy", "ventass", models.Ventas, 6.0 / 7.0, SourceFuzzy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := r.Resolve(tt.field, overrides)
			if !ok {
				t.Fatalf("Resolve(%q) found nothing", tt.field)
			}
			if m.Canonical != tt.canonical {
				t.Errorf("canonical = %s, want %s", m.Canonical, tt.canonical)
			}
			if math.Abs(m.Confidence-tt.confidence) > 1e-9 {
				t.Errorf("confidence = %v, want %v", m.Confidence, tt.confidence)
			}
			if m.Source != tt.source {
				t.Errorf("source = %s, want %s", m.Source, tt.source)
			}
		})
	}

	if _, ok := r.Resolve("zzzzqqq", nil); ok {
		t.Error("expected no match for gibberish")
	}
}

func TestFuzzyConfidenceIsScoreTimesSimilarity(t *testing.T) {
	// alias score 0.9 (entry 1.0 x 0.9); 3 edits over 20 chars -> similarity 0.85
	dict := NewDictionary([]Entry{{models.ActivoTotal, []string{"abcdefghijklmnopqrst"}, 1.0}})
	r := NewResolver(dict)

	m, ok := r.Resolve("abcdefghijklmnopqXYZ", nil)
	if !ok {
		t.Fatal("expected fuzzy match")
	}
	if m.Canonical != models.ActivoTotal || m.Source != SourceFuzzy {
		t.Fatalf("got %+v", m)
	}
	if math.Abs(m.Similarity-0.85) > 1e-9 {
		t.Errorf("similarity = %v, want 0.85", m.Similarity)
	}
	if math.Abs(m.Confidence-0.765) > 1e-9 {
		t.Errorf("confidence = %v, want 0.765", m.Confidence)
	}
}

func TestFuzzyThresholdIsStrict(t *testing.T) {
	t.Run("0.70 rejected", func(t *testing.T) {
		r := NewResolver(NewDictionary([]Entry{{models.Ventas, []string{"abcdefghij"}, 1.0}}))
		if Similarity("abcdefgxyz", "abcdefghij") != 0.7 {
			t.Fatalf("similarity = %v", Similarity("abcdefgxyz", "abcdefghij"))
		}
		if m, ok := r.Resolve("abcdefgxyz", nil); ok {
			t.Errorf("similarity 0.70 must not match, got %+v", m)
		}
	})

	t.Run("0.71 accepted", func(t *testing.T) {
		alias := strings.Repeat("a", 100)
		query := strings.Repeat("b", 29) + strings.Repeat("a", 71)
		r := NewResolver(NewDictionary([]Entry{{models.Ventas, []string{alias}, 1.0}}))
		m, ok := r.Resolve(query, nil)
		if !ok {
			t.Fatal("similarity 0.71 must match")
		}
		if math.Abs(m.Confidence-0.9*0.71) > 1e-9 {
			t.Errorf("confidence = %v, want %v", m.Confidence, 0.9*0.71)
		}
	})
}

func TestResolveAllLastWriterWins(t *testing.T) {
	r := NewResolver(nil)
	raw := models.RawFieldSet{
		"Ventas":            100.0,
		"Cifra de negocios": 200.0,
		"foo bar baz":       1.0,
	}

	res := r.ResolveAll(raw, nil)

	if len(res.Fields) != 1 {
		t.Fatalf("fields = %d, want 1", len(res.Fields))
	}
	if res.Fields[0].RawName != "Ventas" || res.Fields[0].Value != 100.0 {
		t.Errorf("winner = %+v, want Ventas=100", res.Fields[0])
	}
	if len(res.Mapping) != 2 || res.Mapping[0].Overwrote || !res.Mapping[1].Overwrote {
		t.Errorf("mapping decisions = %+v", res.Mapping)
	}
	if len(res.Unmapped) != 1 || res.Unmapped[0] != "foo bar baz" {
		t.Errorf("unmapped = %v", res.Unmapped)
	}
}

func TestOverrideRegistryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")

	reg, err := NewOverrideRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Set("acme", "Facturación Bruta", models.Ventas); err != nil {
		t.Fatal(err)
	}
	if err := reg.Set("acme", "x", "not_a_field"); err == nil {
		t.Error("expected error for unknown canonical field")
	}
	if err := reg.SaveToFile(""); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewOverrideRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	got := reloaded.For("acme")
	if got["facturacion_bruta"] != models.Ventas {
		t.Errorf("reloaded mapping = %v", got)
	}
	if reloaded.For("other") != nil {
		t.Error("unknown client should have no overrides")
	}
}

type fakeSource struct {
	entries []Entry
	err     error
}

func (f fakeSource) LoadEntries(context.Context) ([]Entry, error) { return f.entries, f.err }

func TestReloadSwapsDictionary(t *testing.T) {
	r := NewResolver(NewDictionary(nil))
	if _, ok := r.Resolve("widget revenue", nil); ok {
		t.Fatal("empty dictionary should not match")
	}

	src := fakeSource{entries: []Entry{{models.Ventas, []string{"widget revenue"}, 1.0}}}
	if err := Reload(context.Background(), r, src); err != nil {
		t.Fatal(err)
	}
	if m, ok := r.Resolve("widget revenue", nil); !ok || m.Canonical != models.Ventas {
		t.Errorf("after reload got %+v, %v", m, ok)
	}

	before := r.Dictionary()
	if err := Reload(context.Background(), r, fakeSource{err: errors.New("db down")}); err == nil {
		t.Error("expected error from failing source")
	}
	if r.Dictionary() != before {
		t.Error("failed reload must keep the current dictionary")
	}
}
