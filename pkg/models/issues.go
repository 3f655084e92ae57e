package models

// Severity of a ValidationIssue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationIssue is a data-quality finding. Issues are values, never errors.
type ValidationIssue struct {
	Severity       Severity    `json:"severity"`
	Field          string      `json:"field"`
	Message        string      `json:"message"`
	OriginalValue  interface{} `json:"original_value,omitempty"`
	SuggestedValue *float64    `json:"suggested_value,omitempty"`
}

// SuggestionType classifies a ValidationSuggestion.
type SuggestionType string

const (
	SuggestUnitConversion SuggestionType = "unit_conversion"
	SuggestDataCleanup    SuggestionType = "data_cleanup"
	SuggestMissingData    SuggestionType = "missing_data"
	SuggestCalculation    SuggestionType = "calculation"
)

// ValidationSuggestion is a remediation hint for the user.
type ValidationSuggestion struct {
	Type    SuggestionType `json:"type"`
	Message string         `json:"message"`
	Action  string         `json:"action"`
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CountBySeverity tallies issues per severity.
func CountBySeverity(issues []ValidationIssue) map[Severity]int {
	out := make(map[Severity]int, 3)
	for _, is := range issues {
		out[is.Severity]++
	}
	return out
}

// ChartAssignment is the outcome of fitting a field set to one chart.
type ChartAssignment struct {
	ChartID       string                     `json:"chart_id"`
	Title         string                     `json:"title,omitempty"`
	DataMapping   map[CanonicalField]string  `json:"data_mapping"` // field -> chart slot
	Confidence    float64                    `json:"confidence"`
	RequiredFound int                        `json:"required_found"`
	RequiredTotal int                        `json:"required_total"`
	OptionalFound int                        `json:"optional_found"`
	OptionalTotal int                        `json:"optional_total"`
	MissingFields []CanonicalField           `json:"missing_fields,omitempty"`
	SyntheticData map[CanonicalField]float64 `json:"synthetic_data,omitempty"`
}
