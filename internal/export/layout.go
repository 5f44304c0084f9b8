package export

import "strings"

// Geometry describes a page and where text baselines go on it, in points
type Geometry struct {
	PageWidth            float64
	PageHeight           float64
	Margin               float64
	HeadingBaseline      float64 // distance from the top edge
	FirstBaseline        float64 // first body line on the first page
	ContinuationBaseline float64 // first body line on later pages
	Leading              float64
}

// A4 is the fixed page geometry of exported PDFs
var A4 = Geometry{
	PageWidth:            595.28,
	PageHeight:           841.89,
	Margin:               50,
	HeadingBaseline:      50,
	FirstBaseline:        100,
	ContinuationBaseline: 50,
	Leading:              14,
}

// TextWidth returns the printed width of a string in points
type TextWidth func(s string) float64

// Line is one body line with its baseline measured from the top edge
type Line struct {
	Text string
	Y    float64
}

// Page holds the body lines of one page
type Page struct {
	Lines []Line
}

// LineWidth is the usable text width
func (g Geometry) LineWidth() float64 {
	return g.PageWidth - 2*g.Margin
}

// Layout wraps text to the line width and distributes the lines over pages.
// Each source line is wrapped on word boundaries; a word wider than the line
// gets a line of its own. Blank source lines become one empty line between
// paragraphs. A new page starts when the next baseline would enter the bottom margin.
func Layout(text string, width TextWidth, g Geometry) []Page {
	var wrapped []string
	for _, src := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(src)
		if len(words) == 0 {
			if len(wrapped) > 0 && wrapped[len(wrapped)-1] != "" {
				wrapped = append(wrapped, "")
			}
			continue
		}
		wrapped = append(wrapped, wrapWords(words, width, g.LineWidth())...)
	}
	for len(wrapped) > 0 && wrapped[len(wrapped)-1] == "" {
		wrapped = wrapped[:len(wrapped)-1]
	}

	pages := []Page{{}}
	y := g.FirstBaseline
	bottom := g.PageHeight - g.Margin

	for _, line := range wrapped {
		if y > bottom {
			pages = append(pages, Page{})
			y = g.ContinuationBaseline
		}
		cur := &pages[len(pages)-1]
		// a paragraph gap is not carried to the top of a page
		if line == "" && len(cur.Lines) == 0 {
			continue
		}
		cur.Lines = append(cur.Lines, Line{Text: line, Y: y})
		y += g.Leading
	}

	return pages
}

func wrapWords(words []string, width TextWidth, maxWidth float64) []string {
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		candidate := current + " " + w
		if width(candidate) > maxWidth {
			lines = append(lines, current)
			current = w
			continue
		}
		current = candidate
	}
	return append(lines, current)
}
