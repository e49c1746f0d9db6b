package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

func extractDOCX(data []byte) *Result {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return failure("parse docx: " + err.Error())
	}
	var docFile *zip.File
	for _, f := range reader.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return failure("docx is missing word/document.xml")
	}
	rc, err := docFile.Open()
	if err != nil {
		return failure("open docx document: " + err.Error())
	}
	defer rc.Close()
	text, paragraphs := docxText(rc)
	if !hasExtractableText(text) {
		return failure("docx contains no extractable text")
	}
	result := success(text, 0)
	result.Metadata["paragraph_count"] = paragraphs
	return result
}

// docxText walks word/document.xml, concatenating text runs. Paragraph and
// table-row ends become newlines, table cells become tabs, matching how the
// document reads.
func docxText(r io.Reader) (string, int) {
	dec := xml.NewDecoder(r)
	var buf bytes.Buffer
	paragraphs := 0
	lastWasNewline := true
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t", "instrText":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					buf.WriteString(text)
					lastWasNewline = false
				}
			case "tab":
				buf.WriteByte('\t')
				lastWasNewline = false
			case "br", "cr":
				buf.WriteByte('\n')
				lastWasNewline = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				paragraphs++
				if !lastWasNewline {
					buf.WriteByte('\n')
					lastWasNewline = true
				}
			case "tr":
				if !lastWasNewline {
					buf.WriteByte('\n')
					lastWasNewline = true
				}
			case "tc":
				if !lastWasNewline {
					buf.WriteByte('\t')
				}
			}
		}
	}
	return buf.String(), paragraphs
}
