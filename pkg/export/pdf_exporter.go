package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field is a label/value line of the certificate body.
type Field struct {
	Label string
	Value string
}

// Certificate is the content of a single request PDF.
type Certificate struct {
	Title     string
	Fields    []Field
	Photo     []byte
	PhotoType string // "JPG" or "PNG"
	Approvals Table
	Footer    string
}

// PDFExporter renders NDC certificates.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

const (
	pageWidth  = 190.0
	photoWidth = 35.0
	photoHigh  = 45.0
)

// Render lays out the title, the photo in the top right corner, the field table and the approvals table.
func (e *PDFExporter) Render(cert Certificate) ([]byte, error) {
	if len(cert.Fields) == 0 {
		return nil, fmt.Errorf("certificate requires at least one field")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if cert.Title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, cert.Title, "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	top := pdf.GetY()
	fieldWidth := pageWidth
	if len(cert.Photo) > 0 {
		imageType := strings.ToUpper(cert.PhotoType)
		opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
		pdf.RegisterImageOptionsReader("photo", opts, bytes.NewReader(cert.Photo))
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("register photo: %w", err)
		}
		pdf.ImageOptions("photo", 10+pageWidth-photoWidth, top, photoWidth, photoHigh, false, opts, 0, "")
		fieldWidth = pageWidth - photoWidth - 5
	}

	labelWidth := fieldWidth * 0.4
	for _, f := range cert.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, 8, f.Label, "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(fieldWidth-labelWidth, 8, f.Value, "1", 1, "", false, 0, "")
	}
	if len(cert.Photo) > 0 && pdf.GetY() < top+photoHigh {
		pdf.SetY(top + photoHigh)
	}
	pdf.Ln(6)

	if len(cert.Approvals.Headers) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Approvals", "", 1, "", false, 0, "")
		colWidth := pageWidth / float64(len(cert.Approvals.Headers))
		pdf.SetFont("Arial", "B", 10)
		for _, header := range cert.Approvals.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, row := range cert.Approvals.Rows {
			for i := range cert.Approvals.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if cert.Footer != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, cert.Footer, "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
