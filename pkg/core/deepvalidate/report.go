// Package deepvalidate asks an external model for a second opinion on a
// normalized field set. Failures never surface to callers: the guarded
// wrapper degrades to a neutral fallback report.
package deepvalidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"financial_dashboard/pkg/core/utils"
	"financial_dashboard/pkg/models"
)

// Validator produces a deep validation report for a field set.
type Validator interface {
	DeepValidate(ctx context.Context, set *models.CanonicalFieldSet) (*Report, error)
}

var (
	// ErrNotConfigured means no provider, credentials or endpoint is available.
	ErrNotConfigured = errors.New("deep validation not configured")
	// ErrInvalidReport means the model reply does not match the report schema.
	ErrInvalidReport = errors.New("invalid deep validation report")
)

// FallbackMessage is the single warning carried by DefaultReport.
const FallbackMessage = "automated validation incomplete"

// Finding is one error or warning raised by the reviewer. Models sometimes
// answer with bare strings; those become the message.
type Finding struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (f *Finding) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Message = s
		return nil
	}
	type plain Finding
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = Finding(p)
	return nil
}

// Report is the reviewer's verdict.
type Report struct {
	OverallScore     float64                `json:"overall_score"`
	CriticalErrors   []Finding              `json:"critical_errors"`
	Warnings         []Finding              `json:"warnings"`
	FinancialChecks  map[string]interface{} `json:"financial_checks"`
	ConfidenceScores map[string]float64     `json:"confidence_scores"`
	Recommendations  []string               `json:"recommendations"`

	Fallback bool   `json:"fallback"`
	Cached   bool   `json:"cached,omitempty"`
	Provider string `json:"provider,omitempty"`
}

var requiredKeys = []string{
	"overall_score", "critical_errors", "warnings",
	"financial_checks", "confidence_scores", "recommendations",
}

// ParseReport decodes a model reply leniently, then checks that every report
// key is present and overall_score lies in [0, 1].
func ParseReport(text string) (*Report, error) {
	var raw map[string]json.RawMessage
	normalized, err := utils.SmartParse(text, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	var missing []string
	for _, k := range requiredKeys {
		v, ok := raw[k]
		if !ok || string(v) == "null" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidReport, strings.Join(missing, ", "))
	}

	var rep Report
	if err := json.Unmarshal([]byte(normalized), &rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if rep.OverallScore < 0 || rep.OverallScore > 1 {
		return nil, fmt.Errorf("%w: overall_score %.3f outside [0,1]", ErrInvalidReport, rep.OverallScore)
	}
	rep.Fallback = false
	rep.Cached = false
	return &rep, nil
}

// DefaultReport is the neutral report returned when the reviewer is
// unavailable.
func DefaultReport() *Report {
	return &Report{
		OverallScore:    0.6,
		CriticalErrors:  []Finding{},
		Warnings:        []Finding{{Message: FallbackMessage}},
		FinancialChecks: map[string]interface{}{},
		ConfidenceScores: map[string]float64{
			"data_quality": 0.6,
			"completeness": 0.6,
			"coherence":    0.6,
		},
		Recommendations: []string{},
		Fallback:        true,
	}
}

// Issues converts the report into validation issues. The reviewer's critical
// errors are advisory and map to warnings; a fallback report yields a single
// info issue.
func (r *Report) Issues() []models.ValidationIssue {
	if r == nil {
		return nil
	}
	if r.Fallback {
		return []models.ValidationIssue{{
			Severity: models.SeverityInfo,
			Message:  "deep validation: " + FallbackMessage,
		}}
	}
	out := make([]models.ValidationIssue, 0, len(r.CriticalErrors)+len(r.Warnings))
	for _, f := range r.CriticalErrors {
		out = append(out, models.ValidationIssue{Severity: models.SeverityWarning, Field: f.Field, Message: "deep validation: " + f.Message})
	}
	for _, f := range r.Warnings {
		out = append(out, models.ValidationIssue{Severity: models.SeverityInfo, Field: f.Field, Message: "deep validation: " + f.Message})
	}
	return out
}

// RecommendationsHTML renders the recommendations as an HTML list.
func (r *Report) RecommendationsHTML() (string, error) {
	if r == nil || len(r.Recommendations) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, rec := range r.Recommendations {
		sb.WriteString("- ")
		sb.WriteString(strings.TrimSpace(rec))
		sb.WriteString("\n")
	}
	return utils.RenderMarkdown(sb.String())
}

func (r *Report) clone() *Report {
	c := *r
	c.CriticalErrors = append([]Finding(nil), r.CriticalErrors...)
	c.Warnings = append([]Finding(nil), r.Warnings...)
	c.Recommendations = append([]string(nil), r.Recommendations...)
	c.FinancialChecks = make(map[string]interface{}, len(r.FinancialChecks))
	for k, v := range r.FinancialChecks {
		c.FinancialChecks[k] = v
	}
	c.ConfidenceScores = make(map[string]float64, len(r.ConfidenceScores))
	for k, v := range r.ConfidenceScores {
		c.ConfidenceScores[k] = v
	}
	return &c
}
