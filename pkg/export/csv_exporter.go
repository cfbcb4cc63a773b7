package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Dataset is a table keyed by header name. Footer, when set, is written as
// the last row.
type Dataset struct {
	Headers        []string
	Rows           []map[string]string
	NumericColumns []string
	Footer         map[string]string
}

// records flattens the dataset in header order, footer last.
func (d Dataset) records() [][]string {
	out := make([][]string, 0, len(d.Rows)+1)
	project := func(row map[string]string) []string {
		record := make([]string, len(d.Headers))
		for i, h := range d.Headers {
			record[i] = row[h]
		}
		return record
	}
	for _, row := range d.Rows {
		out = append(out, project(row))
	}
	if len(d.Footer) > 0 {
		out = append(out, project(d.Footer))
	}
	return out
}

var errNoHeaders = errors.New("export: dataset has no headers")

// CSVExporter writes datasets as RFC 4180 CSV.
type CSVExporter struct {
	Comma rune
}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Comma: ','}
}

// Render returns the dataset as CSV bytes.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return errNoHeaders
	}
	cw := csv.NewWriter(w)
	if e.Comma != 0 {
		cw.Comma = e.Comma
	}
	if err := cw.Write(data.Headers); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	if err := cw.WriteAll(data.records()); err != nil {
		return fmt.Errorf("csv rows: %w", err)
	}
	return nil
}
