package export

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter lays text out on A4 pages with Helvetica.
// Wrapping and pagination come from Layout, not from gofpdf's flowing text.
type PDFExporter struct {
	Heading  string
	Geometry Geometry
}

// Extension returns ".pdf"
func (e *PDFExporter) Extension() string {
	return ".pdf"
}

// Save writes a PDF with a bold heading on the first page followed by the story
func (e *PDFExporter) Save(text, path string) error {
	g := e.Geometry
	if g.PageWidth == 0 {
		g = A4
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: g.PageWidth, Ht: g.PageHeight},
	})
	pdf.SetMargins(g.Margin, g.Margin, g.Margin)
	pdf.SetAutoPageBreak(false, g.Margin)
	pdf.SetTitle(e.Heading, true)
	pdf.SetCreator("storyteller", true)

	// Core fonts are cp1252; translate so accented text survives
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "", 12)
	width := func(s string) float64 { return pdf.GetStringWidth(tr(s)) }
	pages := Layout(text, width, g)

	for i, page := range pages {
		pdf.AddPage()
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 24)
			pdf.Text(g.Margin, g.HeadingBaseline, tr(e.Heading))
			pdf.SetFont("Helvetica", "", 12)
		}
		for _, line := range page.Lines {
			if line.Text != "" {
				pdf.Text(g.Margin, line.Y, tr(line.Text))
			}
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
