// Package ingest turns spreadsheet, HTML and JSON exports into raw field sets
// for the normalization pipeline.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"financial_dashboard/pkg/models"
)

// ErrUnsupportedFormat is returned for file types with no reader.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Source is the raw content extracted from one file.
type Source struct {
	Name       string             `json:"name"`
	Format     string             `json:"format"`
	Fields     models.RawFieldSet `json:"fields"`
	Labels     []string           `json:"labels,omitempty"`     // headings and captions, used for unit hints
	Duplicates []string           `json:"duplicates,omitempty"` // repeated labels; the first value is kept
}

func newSource(name, format string) *Source {
	return &Source{Name: name, Format: format, Fields: models.RawFieldSet{}}
}

// add records label=value, keeping the first occurrence of a label.
func (s *Source) add(label string, value interface{}) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	if _, ok := s.Fields[label]; ok {
		s.Duplicates = append(s.Duplicates, label)
		return
	}
	s.Fields[label] = value
}

func (s *Source) addLabel(text string) {
	text = strings.Join(strings.Fields(text), " ")
	if text != "" {
		s.Labels = append(s.Labels, text)
	}
}

// ReadFile dispatches on the file extension: .xlsx/.xlsm, .html/.htm, .json.
func ReadFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := filepath.Base(path)
	var src *Source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		src, err = ReadWorkbook(f, WorkbookOptions{})
	case ".html", ".htm":
		src, err = ReadHTMLTable(f)
	case ".json":
		src, err = ReadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	src.Name = name
	return src, nil
}
