package units

import (
	"math"
	"testing"

	"financial_dashboard/pkg/models"
)

func TestDetectUnit(t *testing.T) {
	mostlySmall := []float64{15_000}
	for i := 0; i < 20; i++ {
		mostlySmall = append(mostlySmall, 5)
	}

	tests := []struct {
		name   string
		values []float64
		unit   models.Unit
		mixed  bool
	}{
		{"empty", nil, models.UnitEuros, false},
		{"only zeros", []float64{0, 0}, models.UnitEuros, false},
		{"small values are millions", []float64{1500, 900}, models.UnitMillions, false},
		{"thousands", []float64{50_000, 20_000, 3_000}, models.UnitThousands, false},
		{"raw euros", []float64{25_000_000, 12_000_000}, models.UnitEuros, false},
		{"negative magnitudes count", []float64{-30_000_000, 1_000_000}, models.UnitEuros, false},
		{"spread over six orders", []float64{20_000_000, 5}, models.UnitEuros, true},
		{"euro statement with small fee", []float64{50_000_000, 30_000_000, 12_000_000, 4_000_000, 50}, models.UnitEuros, false},
		{"euro statement with several small items", []float64{48_000_000, 31_000_000, 9_500_000, 2_100_000, 900_000, 120, 45}, models.UnitEuros, false},
		{"block of values in millions", []float64{25_000_000, 14_000_000, 12, 8, 3}, models.UnitEuros, true},
		{"max and mean disagree", mostlySmall, models.UnitEuros, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DetectUnit(tt.values)
			if d.Unit != tt.unit || d.Mixed != tt.mixed {
				t.Errorf("DetectUnit(%v) = %s mixed=%v, want %s mixed=%v",
					tt.values, d.Unit, d.Mixed, tt.unit, tt.mixed)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		src, dst models.Unit
		expected float64
	}{
		{"millions to euros", 1500, models.UnitMillions, models.UnitEuros, 1.5e9},
		{"euros to thousands", 2500, models.UnitEuros, models.UnitThousands, 2.5},
		{"thousands to millions", 1234.5, models.UnitThousands, models.UnitMillions, 1.2345},
		{"negative", -750, models.UnitThousands, models.UnitEuros, -750_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.value, tt.src, tt.dst)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Normalize = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNormalizeSameUnitIsIdentity(t *testing.T) {
	v := 0.1 + 0.2
	if got := Normalize(v, models.UnitThousands, models.UnitThousands); math.Float64bits(got) != math.Float64bits(v) {
		t.Errorf("same-unit normalize changed bits: %v -> %v", v, got)
	}
}

func TestNormalizeSetIdempotent(t *testing.T) {
	set := models.NewFieldSet(models.UnitThousands)
	set.Set(models.Ventas, 1234.567, models.ProvenanceReported)
	set.Set(models.CosteVentas, 0.1+0.2, models.ProvenanceReported)
	set.Set(models.NumEmpleados, 42, models.ProvenanceReported)

	same := NormalizeSet(set, models.UnitThousands)
	for f, v := range set.Values {
		if math.Float64bits(same.Values[f]) != math.Float64bits(v) {
			t.Errorf("%s changed on no-op normalize: %v -> %v", f, v, same.Values[f])
		}
	}

	once := NormalizeSet(set, models.UnitEuros)
	twice := NormalizeSet(once, models.UnitEuros)
	for f, v := range once.Values {
		if math.Float64bits(twice.Values[f]) != math.Float64bits(v) {
			t.Errorf("%s not idempotent: %v -> %v", f, v, twice.Values[f])
		}
	}
	if once.Values[models.NumEmpleados] != 42 {
		t.Errorf("headcount rescaled to %v", once.Values[models.NumEmpleados])
	}
	if math.Abs(once.Values[models.Ventas]-1_234_567) > 1e-6 {
		t.Errorf("ventas = %v, want 1234567", once.Values[models.Ventas])
	}
	if set.Unit != models.UnitThousands {
		t.Error("input set mutated")
	}
}

func TestDetectFromLabel(t *testing.T) {
	tests := []struct {
		label string
		unit  models.Unit
		ok    bool
	}{
		{"Ventas (miles €)", models.UnitThousands, true},
		{"Importe en millones de euros", models.UnitMillions, true},
		{"Cifra en k€", models.UnitThousands, true},
		{"Total (€)", models.UnitEuros, true},
		{"Revenue, in thousands", models.UnitThousands, true},
		{"Ventas", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			u, ok := DetectFromLabel(tt.label)
			if u != tt.unit || ok != tt.ok {
				t.Errorf("DetectFromLabel(%q) = %q,%v want %q,%v", tt.label, u, ok, tt.unit, tt.ok)
			}
		})
	}

	if _, ok := DetectFromLabels([]string{"Ventas (miles)", "Activo (millones)"}); ok {
		t.Error("conflicting labels should not decide a unit")
	}
	if u, ok := DetectFromLabels([]string{"Ventas", "Activo (miles de euros)"}); !ok || u != models.UnitThousands {
		t.Errorf("DetectFromLabels = %q,%v", u, ok)
	}
}
