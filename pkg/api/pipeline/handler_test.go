package pipeline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"financial_dashboard/pkg/core/charts"
	core "financial_dashboard/pkg/core/pipeline"
	"financial_dashboard/pkg/core/synonym"
	"financial_dashboard/pkg/models"
)

func newServer(t *testing.T) (*httptest.Server, *synonym.OverrideRegistry) {
	t.Helper()
	reg, err := synonym.NewOverrideRegistry(filepath.Join(t.TempDir(), "overrides.json"))
	if err != nil {
		t.Fatal(err)
	}
	p := core.New(core.WithOverrides(reg))
	srv := httptest.NewServer(NewRouter(NewHandler(p, zerolog.Nop())))
	t.Cleanup(srv.Close)
	return srv, reg
}

func do(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestRunEndpoint(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/pipeline/run", `{"fields": {"Ventas": "1.500,00", "Coste Ventas": 900}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		IsValid bool `json:"is_valid"`
		Fields  struct {
			Values map[string]float64 `json:"values"`
		} `json:"fields"`
		Issues []models.ValidationIssue `json:"issues"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Fields.Values["ventas"] != 1500 || out.Fields.Values["margen_bruto"] != 600 {
		t.Errorf("values = %v", out.Fields.Values)
	}
	if !out.IsValid || models.HasErrors(out.Issues) {
		t.Errorf("valid=%v issues=%+v", out.IsValid, out.Issues)
	}
}

func TestRunEndpointRejectsBadInput(t *testing.T) {
	srv, _ := newServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"fields": `},
		{"empty fields", `{"fields": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/api/pipeline/run", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d", resp.StatusCode)
			}
		})
	}
}

func TestProjectionEndpoint(t *testing.T) {
	srv, _ := newServer(t)
	body := map[string]interface{}{
		"fields":        map[string]float64{"ventas": 1200, "ebitda": 180},
		"unit":          "thousands",
		"years":         3,
		"all_scenarios": true,
	}
	resp := do(t, http.MethodPost, srv.URL+"/api/projection", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out ProjectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Projection == nil || len(out.Projection.Series) != 3 {
		t.Fatalf("projection = %+v", out.Projection)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/projection", map[string]interface{}{"fields": map[string]float64{"tesoreria": 10}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("no revenue: status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodPost, srv.URL+"/api/projection", map[string]interface{}{"fields": map[string]float64{"revenue_total": 10}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d", resp.StatusCode)
	}
}

func TestChartsEndpoint(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/charts", nil)
	var defs []charts.Definition
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil {
		t.Fatal(err)
	}
	if len(defs) != len(charts.DefaultRegistry().IDs()) || defs[0].ID != "profit_loss" {
		t.Errorf("charts = %+v", defs)
	}
}

func TestOverridesEndpoint(t *testing.T) {
	srv, reg := newServer(t)
	resp := do(t, http.MethodPut, srv.URL+"/api/overrides/acme", map[string]string{"Partida 7": "tesoreria"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := reg.For("acme")["partida_7"]; got != models.Tesoreria {
		t.Errorf("override = %q", got)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/pipeline/run", `{"client_id": "acme", "fields": {"Partida 7": 42}}`)
	var out struct {
		Fields struct {
			Values map[string]float64 `json:"values"`
		} `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Fields.Values["tesoreria"] != 42 {
		t.Errorf("values = %v", out.Fields.Values)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/overrides/acme", map[string]string{"x": "not_a_field"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid canonical: status = %d", resp.StatusCode)
	}
}
