package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"day", "start", "course"},
		Rows: [][]string{
			{"Monday", "09:00", "Algebra, Part 1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "day,start,course\nMonday,09:00,\"Algebra, Part 1\"\n", string(out))
}

func TestCSVExporterCRLFAndRowWidth(t *testing.T) {
	exporter := &CSVExporter{CRLF: true}
	out, err := exporter.Render(Dataset{Headers: []string{"day"}, Rows: [][]string{{"Friday"}}})
	require.NoError(t, err)
	assert.Equal(t, "day\r\nFriday\r\n", string(out))

	_, err = exporter.Render(Dataset{Headers: []string{"day", "start"}, Rows: [][]string{{"Friday"}}})
	assert.ErrorContains(t, err, "row 0 has 1 fields")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Grid{
		Title:   "Group A",
		Columns: []string{"Monday", "Tuesday"},
		Rows:    []string{"09:00-10:00"},
		Cells: map[string]map[string]string{
			"09:00-10:00": {"Monday": "MATH101\nRoom 1"},
		},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresColumns(t *testing.T) {
	_, err := NewPDFExporter().Render(Grid{})
	assert.Error(t, err)
}
