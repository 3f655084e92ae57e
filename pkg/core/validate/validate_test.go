package validate

import (
	"math"
	"testing"
)

// =============================================================================
// GROWTH TESTS
// =============================================================================

func TestCalculateYoY(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		prior    float64
		expected float64
	}{
		{"Positive growth", 110, 100, 10.0},
		{"Negative growth", 90, 100, -10.0},
		{"Zero growth", 100, 100, 0.0},
		{"Double", 200, 100, 100.0},
		{"Both zero", 0, 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateYoY(tt.current, tt.prior)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("CalculateYoY(%v, %v) = %v, want %v", tt.current, tt.prior, result, tt.expected)
			}
		})
	}

	if !math.IsInf(CalculateYoY(10, 0), 1) {
		t.Error("growth from zero should be +Inf")
	}
}

func TestCalculateCAGR(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		years      int
		expected   float64
	}{
		{"10% over 2 years", 100, 121, 2, 10.0},
		{"12.5% over 5 years", 1200, 1200 * math.Pow(1.125, 5), 5, 12.5},
		{"zero start", 0, 100, 3, 0},
		{"zero years", 100, 200, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCAGR(tt.start, tt.end, tt.years)
			if math.Abs(got-tt.expected) > 0.01 {
				t.Errorf("CAGR = %.4f%%, expected %.4f%%", got, tt.expected)
			}
		})
	}
}

// =============================================================================
// IDENTITY TESTS
// =============================================================================

func TestCheckBalanceEquation(t *testing.T) {
	balanced := CheckBalanceEquation(1000, 600, 400, 20)
	if !balanced.IsBalanced {
		t.Error("exact balance not detected")
	}

	within := CheckBalanceEquation(1000, 600, 390, 20)
	if !within.IsBalanced {
		t.Error("balance within tolerance not detected")
	}

	off := CheckBalanceEquation(1000, 900, 50, 20)
	if off.IsBalanced {
		t.Error("imbalance of 50 accepted with tolerance 20")
	}
	if math.Abs(off.Difference-50) > 0.001 {
		t.Errorf("difference = %v, want 50", off.Difference)
	}
}

func TestCheckCashFlowEquation(t *testing.T) {
	check := CheckCashFlowEquation(120, -40, -30, 50, 0.5)
	if !check.IsBalanced {
		t.Errorf("CFO+CFI+CFF = %.2f should match 50", check.ComputedTotal)
	}
	if CheckCashFlowEquation(120, -40, -30, 80, 0.5).IsBalanced {
		t.Error("mismatch of 30 accepted")
	}
}

func TestCalculateFCF(t *testing.T) {
	if got := CalculateFCF(850, -120); math.Abs(got-730) > 0.001 {
		t.Errorf("FCF = %v, want 730", got)
	}
}

func TestSafeDiv(t *testing.T) {
	if SafeDiv(1, 0) != 0 {
		t.Error("division by zero must return 0")
	}
	if SafeDiv(3, 4) != 0.75 {
		t.Error("SafeDiv(3,4) != 0.75")
	}
}
