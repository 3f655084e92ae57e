// Package units detects the magnitude a set of financial values is expressed in
// and rescales values between euros, thousands and millions.
package units

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"financial_dashboard/pkg/models"
)

// Magnitude thresholds used by DetectUnit.
const (
	EurosThreshold      = 10_000_000.0
	ThousandsThreshold  = 10_000.0
	ThousandsMeanFloor  = 1_000.0
	MixedSpreadMaxRatio = 1e6
)

// Detection is the outcome of DetectUnit.
type Detection struct {
	Unit     models.Unit `json:"unit"`
	Mixed    bool        `json:"mixed"`
	MaxValue float64     `json:"max_value"`
	Mean     float64     `json:"mean"`
	// FromLabel is set when a header keyword decided the unit.
	FromLabel bool `json:"from_label,omitempty"`
}

// DetectUnit infers the unit from value magnitudes. Zero, NaN and infinite
// values are ignored; negative values count by magnitude. Ambiguous sets are
// flagged Mixed and default to euros.
//
// The spread test compares the largest magnitude with the lower median, so a
// few small line items next to large totals do not make a set mixed; a block
// of values in another scale does.
func DetectUnit(values []float64) Detection {
	mags := make([]float64, 0, len(values))
	var sum float64
	for _, v := range values {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		a := math.Abs(v)
		mags = append(mags, a)
		sum += a
	}
	if len(mags) == 0 {
		return Detection{Unit: models.UnitEuros}
	}
	sort.Float64s(mags)
	maxV := mags[len(mags)-1]
	median := mags[(len(mags)-1)/2]

	d := Detection{MaxValue: maxV, Mean: sum / float64(len(mags))}
	switch {
	case maxV > EurosThreshold:
		d.Unit = models.UnitEuros
	case maxV > ThousandsThreshold && d.Mean > ThousandsMeanFloor:
		d.Unit = models.UnitThousands
	default:
		d.Unit = models.UnitMillions
	}

	if maxV/median > MixedSpreadMaxRatio || (maxV > ThousandsThreshold && d.Mean <= ThousandsMeanFloor) {
		d.Mixed = true
		d.Unit = models.UnitEuros
	}
	return d
}

// Normalize rescales value from source to target. Equal units return value
// untouched.
func Normalize(value float64, source, target models.Unit) float64 {
	if source == target || !source.Valid() || !target.Valid() {
		return value
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	d := decimal.NewFromFloat(value).
		Mul(decimal.NewFromFloat(source.Factor())).
		Div(decimal.NewFromFloat(target.Factor()))
	return d.InexactFloat64()
}

// NormalizeSet returns a copy of set expressed in target. Non-monetary fields
// (counts, ratios) are left as they are. A set already in target is copied
// unchanged.
func NormalizeSet(set *models.CanonicalFieldSet, target models.Unit) *models.CanonicalFieldSet {
	if set == nil {
		return nil
	}
	out := set.Clone()
	if set.Unit == target || !target.Valid() {
		return out
	}
	for f, v := range out.Values {
		if f.Monetary() {
			out.Values[f] = Normalize(v, set.Unit, target)
		}
	}
	out.Unit = target
	return out
}

// =============================================================================
// HEADER KEYWORDS
// =============================================================================

var labelKeywords = []struct {
	unit     models.Unit
	keywords []string
}{
	{models.UnitMillions, []string{"millones", "millions", "million", "mill.", "mm€", "m€", "meur"}},
	{models.UnitThousands, []string{"en miles", "miles de", "(miles", "thousands", "thousand", "000s", "k€", "keur", "teur"}},
	{models.UnitEuros, []string{"euros", "en €", "(€)", "eur)"}},
}

// DetectFromLabel looks for unit keywords in a header or field label.
func DetectFromLabel(text string) (models.Unit, bool) {
	text = strings.ToLower(text)
	for _, group := range labelKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(text, kw) {
				return group.unit, true
			}
		}
	}
	return "", false
}

// DetectFromLabels returns the unit named by the labels when every label
// that names one agrees.
func DetectFromLabels(labels []string) (models.Unit, bool) {
	var found models.Unit
	for _, l := range labels {
		u, ok := DetectFromLabel(l)
		if !ok {
			continue
		}
		if found != "" && found != u {
			return "", false
		}
		found = u
	}
	return found, found != ""
}
