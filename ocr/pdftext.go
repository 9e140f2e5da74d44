package ocr

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// printableRatioThreshold is the minimum fraction of printable characters
// a PDF's extracted text layer must have to be accepted as direct_pdf.
const printableRatioThreshold = 0.5

// ExtractPDFText reads a PDF's embedded text layer directly, without
// rasterization. It returns ok=false when the PDF carries no usable text
// layer (e.g. a scanned-image-only PDF) — callers must NOT fall back to
// rasterize-then-OCR, per policy.
func ExtractPDFText(fileBytes []byte) (string, bool) {
	reader := bytes.NewReader(fileBytes)
	r, err := pdf.NewReader(reader, int64(len(fileBytes)))
	if err != nil {
		return "", false
	}

	var buf bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}

	text := buf.String()
	if text == "" {
		return "", false
	}
	if printableRatio(text) <= printableRatioThreshold {
		return "", false
	}
	return strings.TrimSpace(text), true
}

func printableRatio(s string) float64 {
	if s == "" {
		return 0
	}
	printable := 0
	total := 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}
