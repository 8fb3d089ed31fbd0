package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is a flat timetable listing. Every row must have one value per header.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// CSVExporter writes datasets as RFC 4180 CSV.
type CSVExporter struct {
	// CRLF switches line endings for spreadsheet imports on Windows.
	CRLF bool
}

// NewCSVExporter builds a CSV exporter with "\n" line endings.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the header line followed by the rows in order.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.UseCRLF = e.CRLF
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return nil, fmt.Errorf("csv row %d has %d fields, want %d", i, len(row), len(data.Headers))
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
