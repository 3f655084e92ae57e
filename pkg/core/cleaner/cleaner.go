// Package cleaner turns raw extracted cell values into numbers, recording data
// quality issues instead of failing.
package cleaner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"financial_dashboard/pkg/core/units"
	"financial_dashboard/pkg/models"
)

// MaxMagnitude is the absolute value above which a figure is flagged.
const MaxMagnitude = 1e12

var (
	// ErrBlank marks an empty or placeholder value.
	ErrBlank = errors.New("blank value")
	// ErrUnparsable marks a value that is not a number.
	ErrUnparsable = errors.New("unparsable value")
)

var (
	nonNumeric  = regexp.MustCompile(`[^0-9.,\-]`)
	blankMarker = map[string]bool{"": true, "-": true, "—": true, "–": true, "n/a": true, "na": true, "n.d.": true, "nd": true, "s/d": true}
)

// Cleaner parses raw values for one field set and accumulates issues. It is
// not safe for concurrent use; create one per run.
type Cleaner struct {
	source models.Unit
	target models.Unit
	issues []models.ValidationIssue
	log    zerolog.Logger
}

// New returns a cleaner converting from source to target unit.
func New(source, target models.Unit, log zerolog.Logger) *Cleaner {
	return &Cleaner{source: source, target: target, log: log}
}

// Issues returns the issues collected so far.
func (c *Cleaner) Issues() []models.ValidationIssue {
	return c.issues
}

// Clean parses raw for field and returns the unit-normalized value, or nil when
// the value is blank or unparsable. Blank values are never coerced to zero.
func (c *Cleaner) Clean(field models.CanonicalField, raw interface{}) *float64 {
	v, err := ToNumber(raw)
	switch {
	case errors.Is(err, ErrBlank):
		c.add(models.SeverityWarning, field, "empty value, field skipped", raw)
		return nil
	case err != nil:
		c.add(models.SeverityError, field, fmt.Sprintf("cannot parse value: %v", err), raw)
		c.log.Debug().Str("field", string(field)).Interface("raw", raw).Msg("unparsable value")
		return nil
	}

	if math.Abs(v) > MaxMagnitude {
		c.add(models.SeverityWarning, field, fmt.Sprintf("value %.0f exceeds plausible magnitude", v), raw)
	}
	if v < 0 && field.UsuallyPositive() {
		c.add(models.SeverityWarning, field, "negative value on a field that is usually positive", raw)
	}

	out := v
	if field.Monetary() {
		out = units.Normalize(v, c.source, c.target)
	}
	return &out
}

func (c *Cleaner) add(sev models.Severity, field models.CanonicalField, msg string, raw interface{}) {
	c.issues = append(c.issues, models.ValidationIssue{
		Severity:      sev,
		Field:         string(field),
		Message:       msg,
		OriginalValue: raw,
	})
}

// ToNumber converts any supported raw value to float64 without side effects.
func ToNumber(raw interface{}) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case nil:
		return 0, ErrBlank
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case json.Number:
		return ParseNumber(x.String())
	case decimal.Decimal:
		v = x.InexactFloat64()
	case string:
		return ParseNumber(x)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrUnparsable, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrUnparsable)
	}
	return v, nil
}

// ParseNumber parses a formatted number such as "1.500,00", "(1,234)" or
// "€ 1.234.567". When both separators appear the later one is the decimal point;
// a separator repeated several times is a thousands separator; a single one
// is a decimal point.
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if blankMarker[strings.ToLower(s)] {
		return 0, ErrBlank
	}

	negative := strings.Contains(s, "(") && strings.Contains(s, ")")
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "." || s == "," || s == "-" {
		return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
	}

	s = resolveSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
	}
	if negative && d.IsPositive() {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

func resolveSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
