package export

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// FlattenMarkdown renders the markdown that models sprinkle over stories
// ("**Title:**", "### Chapter 1") as plain text, keeping paragraph breaks.
func FlattenMarkdown(md string) string {
	parser := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := parser.Parse([]byte(strings.ReplaceAll(md, "\r\n", "\n")))

	var out []byte
	endBlock := func(sep string) {
		out = bytes.TrimRight(out, " \n")
		out = append(out, sep...)
	}

	root.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch n.Type {
		case blackfriday.Text, blackfriday.Code:
			if entering {
				out = append(out, html.UnescapeString(string(n.Literal))...)
			}
		case blackfriday.CodeBlock:
			if entering {
				out = append(out, n.Literal...)
				endBlock("\n\n")
			}
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			out = append(out, '\n')
		case blackfriday.Item:
			if entering {
				out = append(out, "- "...)
			} else {
				endBlock("\n")
			}
		case blackfriday.Paragraph:
			if !entering {
				if n.Parent != nil && n.Parent.Type == blackfriday.Item {
					endBlock("\n")
				} else {
					endBlock("\n\n")
				}
			}
		case blackfriday.Heading, blackfriday.List, blackfriday.BlockQuote, blackfriday.HorizontalRule:
			if !entering {
				endBlock("\n\n")
			}
		case blackfriday.TableRow:
			if !entering {
				endBlock("\n")
			}
		case blackfriday.TableCell:
			if !entering && n.Next != nil {
				out = append(out, " | "...)
			}
		}
		return blackfriday.GoToNext
	})

	return strings.TrimSpace(excessBlankLines.ReplaceAllString(string(out), "\n\n"))
}
