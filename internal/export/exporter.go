// Package export writes finished stories to Word and PDF documents.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format names a document type offered at the save prompt
type Format string

const (
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps the user's answer to a format; anything else means "don't save"
func ParseFormat(answer string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(answer))) {
	case FormatWord:
		return FormatWord, true
	case FormatPDF:
		return FormatPDF, true
	}
	return "", false
}

// Exporter writes story text to a file
type Exporter interface {
	Save(text, path string) error
	Extension() string
}

// Options configure document content and placement
type Options struct {
	Heading      string
	OutputDir    string
	KeepMarkdown bool
}

// New returns the exporter for format
func New(format Format, heading string) (Exporter, error) {
	switch format {
	case FormatWord:
		return &WordExporter{Heading: heading}, nil
	case FormatPDF:
		return &PDFExporter{Heading: heading, Geometry: A4}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}

// Export saves text as basename plus the format's extension under opts.OutputDir
// and returns the written path.
func Export(format Format, text, basename string, opts Options) (string, error) {
	exp, err := New(format, opts.Heading)
	if err != nil {
		return "", err
	}

	path, err := OutputPath(basename, exp.Extension(), opts.OutputDir)
	if err != nil {
		return "", err
	}

	if !opts.KeepMarkdown {
		text = FlattenMarkdown(text)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := exp.Save(text, path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", format, err)
	}
	return path, nil
}

// OutputPath builds the target file name. The extension is appended unless the
// user already typed it; relative names are placed under dir.
func OutputPath(basename, ext, dir string) (string, error) {
	name := strings.TrimSpace(basename)
	if name == "" {
		return "", fmt.Errorf("file name must not be empty")
	}
	if strings.ContainsAny(name, "\x00") {
		return "", fmt.Errorf("file name contains invalid characters")
	}

	if !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	if filepath.Base(name) == ext {
		return "", fmt.Errorf("file name must not be empty")
	}

	if !filepath.IsAbs(name) && dir != "" {
		name = filepath.Join(dir, name)
	}
	return name, nil
}
