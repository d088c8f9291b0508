package content

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText extracts the plain text of a document, with PDF support.
func ExtractText(log *slog.Logger, filename string, raw []byte) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := extractPDF(raw)
		if err != nil {
			log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(raw)
		}
		return text
	}
	// Treat other files as plain text
	return string(raw)
}

func extractPDF(raw []byte) (string, error) {
	reader := bytes.NewReader(raw)
	pdfReader, err := pdf.NewReader(reader, int64(len(raw)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
