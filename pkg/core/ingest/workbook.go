package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookOptions selects where labels and values live.
type WorkbookOptions struct {
	Sheet       string // defaults to the first sheet
	LabelColumn int    // 0-based, default 0 (A)
	ValueColumn int    // 0-based, default 1 (B)
}

// ReadWorkbook reads label/value rows from an xlsx workbook. Rows with a
// label but no value are kept as headings in Labels.
func ReadWorkbook(r io.Reader, opts WorkbookOptions) (*Source, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer xl.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = xl.GetSheetName(0)
	}
	if opts.ValueColumn <= 0 {
		opts.ValueColumn = 1
	}
	if opts.LabelColumn < 0 || opts.LabelColumn == opts.ValueColumn {
		return nil, fmt.Errorf("invalid label column %d", opts.LabelColumn)
	}

	rows, err := xl.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	src := newSource("", "xlsx")
	for i, row := range rows {
		label := cell(row, opts.LabelColumn)
		value := cell(row, opts.ValueColumn)
		switch {
		case label == "" && value == "":
			continue
		case value == "":
			src.addLabel(label)
		case label == "":
			// value without a label; header rows such as "2023 (miles €)"
			if i == 0 {
				src.addLabel(strings.Join(row, " "))
			}
		default:
			src.add(label, value)
		}
	}
	return src, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
