package chunker

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// Extraction is the plain text of a document with its page count.
type Extraction struct {
	Text  string
	Pages int
}

// ExtractPDF reads the text of every page, prefixing each with a [Page N] marker.
// Non-PDF content is ErrUnsupportedFormat.
func ExtractPDF(content []byte) (result *Extraction, err error) {
	if !bytes.HasPrefix(content, pdfMagic) {
		return nil, fmt.Errorf("%w: file is not a PDF", apperr.ErrUnsupportedFormat)
	}

	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: unreadable PDF: %v", apperr.ErrUnsupportedFormat, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create PDF reader: %v", apperr.ErrUnsupportedFormat, err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		fmt.Fprintf(&textBuilder, "\n[Page %d]\n", i)
		textBuilder.WriteString(text)
	}

	return &Extraction{Text: textBuilder.String(), Pages: pages}, nil
}
