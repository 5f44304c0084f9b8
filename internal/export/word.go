package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// WordExporter writes a .docx with one heading followed by the story as a single
// paragraph. Runs do not render newlines, so lines are joined with explicit breaks.
type WordExporter struct {
	Heading string
}

// Extension returns ".docx"
func (e *WordExporter) Extension() string {
	return ".docx"
}

// Save writes the document to path
func (e *WordExporter) Save(text, path string) error {
	doc := docx.New().WithDefaultTheme()

	heading := doc.AddParagraph()
	heading.AddText(e.Heading).Size("48").Bold()

	body := doc.AddParagraph()
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n"), "\n")
	for i, line := range lines {
		run := body.AddText(strings.TrimRight(line, " \t")).Size("24")
		if i < len(lines)-1 {
			run.Children = append(run.Children, &docx.BarterRabbet{})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := doc.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write docx: %w", err)
	}
	return f.Close()
}
