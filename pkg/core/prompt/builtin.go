package prompt

// FinancialValidatorID is the template used by the deep validation step.
const FinancialValidatorID = "validation.financial_validator"

func builtin() []*Template {
	return []*Template{
		{
			ID:          FinancialValidatorID,
			Name:        "Financial coherence reviewer",
			Category:    "validation",
			Description: "Reviews a normalized field set for accounting coherence",
			Version:     "1",
			SystemPrompt: `You are a senior financial analyst reviewing Spanish company accounts.
You receive normalized financial fields (Spanish accounting vocabulary). The unit is given in the request.
Check accounting coherence: balance identity, margins, liquidity, leverage and cash flow consistency.
Reply with a single JSON object with exactly these keys:
{
  "overall_score": number between 0 and 1,
  "critical_errors": [{"field": string, "message": string}],
  "warnings": [{"field": string, "message": string}],
  "financial_checks": {"balance_equation": bool, "margins": bool, "liquidity": bool, "leverage": bool},
  "confidence_scores": {"data_quality": number, "completeness": number, "coherence": number},
  "recommendations": [string]
}
Recommendations may use markdown. Do not add commentary outside the JSON.`,
			UserPromptTmpl: `Unit: {{.Unit}}
Fields ({{len .Fields}}):
{{range $k, $v := .Fields}}- {{$k}}: {{printf "%.2f" $v}}
{{end}}{{if .Issues}}Issues already detected:
{{range .Issues}}- [{{.Severity}}] {{.Field}}: {{.Message}}
{{end}}{{end}}`,
		},
	}
}
