package extract

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte) *Result {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return failure("parse pdf: " + err.Error())
	}
	pages := reader.NumPage()
	if text, ok := readPlainText(reader); ok {
		result := success(text, pages)
		result.Metadata["page_count"] = pages
		return result
	}
	// Some PDFs carry text the plain-text walker cannot decode; salvage
	// whatever printable runes the raw stream holds.
	salvaged := printableText(data)
	if !hasExtractableText(salvaged) {
		return failure("pdf contains no extractable text")
	}
	result := success(salvaged, pages)
	result.Metadata["page_count"] = pages
	return result
}

func readPlainText(reader *pdf.Reader) (string, bool) {
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", false
	}
	out, err := io.ReadAll(plain)
	if err != nil || !hasExtractableText(string(out)) {
		return "", false
	}
	return string(out), true
}

// printableText keeps printable runes and whitespace from an arbitrary byte
// stream, dropping everything else.
func printableText(in []byte) string {
	var out bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			b := in[0]
			if b == '\n' || b == '\r' || b == '\t' || (b >= 32 && b < 127) {
				out.WriteByte(b)
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if isPrintableRune(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func isPrintableRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 32 && r != 127
}
