package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// LoadFromDirectory registers every .json template under dir. Files without
// an id get one from their relative path, e.g.
// "validation/financial_validator.json" -> "validation.financial_validator".
// A missing directory is not an error.
func (r *Registry) LoadFromDirectory(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	loaded := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		var pt Template
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		rel, _ := filepath.Rel(dir, path)
		rel = strings.TrimSuffix(rel, ".json")
		parts := strings.Split(rel, string(filepath.Separator))
		if pt.ID == "" {
			pt.ID = strings.Join(parts, ".")
		}
		if pt.Category == "" {
			pt.Category = "default"
			if len(parts) > 1 {
				pt.Category = parts[0]
			}
		}
		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", path, err)
		}
		loaded++
		return nil
	})
	return loaded, err
}

// Render executes the user prompt template with vars.
func Render(pt *Template, vars Vars) (string, error) {
	if pt.UserPromptTmpl == "" {
		return "", nil
	}
	tmpl, err := template.New(pt.ID).Option("missingkey=error").Parse(pt.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", pt.ID, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]interface{}(vars)); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", pt.ID, err)
	}
	return buf.String(), nil
}
