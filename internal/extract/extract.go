package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cortexa-labs/ragserve/internal/model"
)

// ErrUnsupported marks file types the pipeline cannot parse. Callers skip
// such files instead of failing the whole sync run.
var ErrUnsupported = errors.New("unsupported file extension")

// Supported reports whether Pages can parse the file, judged by its
// extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// Pages parses raw file bytes into text pages based on the file extension
// and tags every page with the source filename and content fingerprint.
func Pages(filename, fingerprint string, data []byte) ([]model.Page, error) {
	var (
		pages []model.Page
		err   error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		pages, err = pdfPages(data)
	case ".docx":
		pages, err = docxPages(data)
	case ".md", ".markdown":
		pages, err = markdownPages(data)
	case ".txt":
		pages = []model.Page{{Content: string(data), Page: 1}}
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	out := pages[:0]
	for _, page := range pages {
		page.Content = strings.TrimSpace(page.Content)
		if page.Content == "" {
			continue
		}
		page.Source = filename
		page.Fingerprint = fingerprint
		out = append(out, page)
	}
	return out, nil
}
