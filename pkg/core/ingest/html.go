package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ReadHTMLTable reads label/value pairs from every table in an HTML export.
// The first cell of a row is the label and the next non-empty cell the value.
// Captions, header cells and headings go to Labels.
func ReadHTMLTable(r io.Reader) (*Source, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	src := newSource("", "html")
	doc.Find("h1, h2, h3, h4, caption").Each(func(_ int, s *goquery.Selection) {
		src.addLabel(s.Text())
	})

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, fmt.Errorf("no table found")
	}
	tables.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("td").Length() == 0 {
			src.addLabel(row.Text())
			return
		}
		var cells []string
		row.Find("td, th").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(c.Text()))
		})
		if len(cells) == 0 || cells[0] == "" {
			return
		}
		for _, v := range cells[1:] {
			if v != "" {
				src.add(cells[0], v)
				return
			}
		}
		src.addLabel(cells[0])
	})
	return src, nil
}
