package rag

import (
	"fmt"
	"strings"

	pdfx "github.com/ledongthuc/pdf"
)

const pdfMaxPages = 200

// extractPDF reads a PDF schedule and returns one document per page plus
// the concatenated text used as the overview.
func extractPDF(path string) ([]Document, string, error) {
	f, r, err := pdfx.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	if total > pdfMaxPages {
		total = pdfMaxPages
	}
	var docs []Document
	var overview strings.Builder
	for page := 1; page <= total; page++ {
		p := r.Page(page)
		txt, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		txt = strings.TrimSpace(txt)
		if txt == "" {
			continue
		}
		docs = append(docs, Document{
			ID:       fmt.Sprintf("page_%d", page),
			Content:  txt,
			Metadata: map[string]string{"title": fmt.Sprintf("Page %d", page)},
		})
		fmt.Fprintf(&overview, "--- Page %d ---\n%s\n\n", page, txt)
	}
	if len(docs) == 0 {
		return nil, "", fmt.Errorf("no extractable text in pdf")
	}
	return docs, strings.TrimSpace(overview.String()), nil
}
