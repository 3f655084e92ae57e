package ingest

import (
	"encoding/json"
	"fmt"
	"io"

	"financial_dashboard/pkg/models"
)

// ReadJSON accepts either a flat object of label/value pairs or
// {"fields": {...}, "labels": [...]}. Numbers are kept as json.Number so no
// precision is lost before cleaning.
func ReadJSON(r io.Reader) (*Source, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	src := newSource("", "json")
	fields := raw
	if nested, ok := raw["fields"].(map[string]interface{}); ok {
		fields = nested
		if labels, ok := raw["labels"].([]interface{}); ok {
			for _, l := range labels {
				if s, ok := l.(string); ok {
					src.addLabel(s)
				}
			}
		}
	}
	src.Fields = make(models.RawFieldSet, len(fields))
	for k, v := range fields {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			continue
		}
		src.add(k, v)
	}
	return src, nil
}
