package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

var ErrUnsupportedType = errors.New("unsupported file type")

var supported = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
}

// IsSupported reports whether text can be extracted from files with this name.
func IsSupported(filename string) bool {
	return supported[strings.ToLower(filepath.Ext(filename))]
}

// File returns the text of the file at path, or "" when it is missing, unsupported or unreadable.
func File(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to read file for extraction")
		return ""
	}
	return Bytes(filepath.Base(path), raw)
}

// Bytes extracts text from raw file contents, choosing the parser by the filename extension.
// Failures are logged and yield "".
func Bytes(filename string, raw []byte) string {
	text, err := Parse(filename, raw)
	if err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("Text extraction failed")
		return ""
	}
	log.Debug().
		Str("filename", filename).
		Int("chars", utf8.RuneCountInString(text)).
		Msg("Extracted text")
	return text
}

// Parse is Bytes with the error returned instead of logged.
func Parse(filename string, raw []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return strings.ToValidUTF8(string(raw), ""), nil
	case ".pdf":
		return parsePDF(raw)
	case ".docx":
		return parseDOCX(raw)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

func parsePDF(raw []byte) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("failed to parse pdf: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			log.Debug().Err(pageErr).Int("page", i).Msg("Skipping unreadable pdf page")
			continue
		}
		b.WriteString(content)
	}
	return b.String(), nil
}

func parseDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}

	var xmlData []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, openErr := f.Open()
		if openErr != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", openErr)
		}
		xmlData, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read document.xml: %w", err)
		}
		break
	}
	if len(xmlData) == 0 {
		return "", errors.New("word/document.xml not found")
	}

	decoder := xml.NewDecoder(bytes.NewReader(xmlData))
	var b strings.Builder
	inText := false
	for {
		tok, tokenErr := decoder.Token()
		if tokenErr == io.EOF {
			break
		}
		if tokenErr != nil {
			return "", fmt.Errorf("failed to decode document.xml: %w", tokenErr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "p":
				if b.Len() > 0 {
					b.WriteString("\n")
				}
			case "tab":
				b.WriteString("\t")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
