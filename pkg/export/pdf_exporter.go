package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfLineHeight = 5.0
	pdfMargin     = 10.0
)

// Grid is a weekly timetable laid out as time slot rows by day columns.
// Cells are keyed by row label then column label; multi-line values use "\n".
type Grid struct {
	Title    string
	Subtitle string
	Columns  []string
	Rows     []string
	Cells    map[string]map[string]string
}

// PDFExporter renders timetable grids into landscape PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the grid with a leading time column.
func (e *PDFExporter) Render(grid Grid) ([]byte, error) {
	if len(grid.Columns) == 0 {
		return nil, fmt.Errorf("pdf requires at least one column")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 8, grid.Title, "", 1, "C", false, 0, "")
	}
	if grid.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, grid.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	pageWidth, _ := pdf.GetPageSize()
	usable := pageWidth - 2*pdfMargin
	timeWidth := 22.0
	colWidth := (usable - timeWidth) / float64(len(grid.Columns))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(timeWidth, 7, "Time", "1", 0, "C", true, 0, "")
	for _, col := range grid.Columns {
		pdf.CellFormat(colWidth, 7, col, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range grid.Rows {
		lines := 1
		for _, col := range grid.Columns {
			n := len(pdf.SplitLines([]byte(cell(grid, row, col)), colWidth-2))
			if n > lines {
				lines = n
			}
		}
		height := float64(lines) * pdfLineHeight
		x, y := pdf.GetXY()
		pdf.Rect(x, y, timeWidth, height, "D")
		pdf.CellFormat(timeWidth, height, row, "", 0, "C", false, 0, "")
		for i, col := range grid.Columns {
			cx := x + timeWidth + float64(i)*colWidth
			pdf.Rect(cx, y, colWidth, height, "D")
			pdf.SetXY(cx+1, y)
			pdf.MultiCell(colWidth-2, pdfLineHeight, cell(grid, row, col), "", "L", false)
		}
		pdf.SetXY(x, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(grid Grid, row, col string) string {
	if grid.Cells == nil {
		return ""
	}
	return strings.TrimSpace(grid.Cells[row][col])
}
