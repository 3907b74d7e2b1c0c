package templates

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

// placeholderPattern matches {fieldName} tokens inside document XML.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_.-]+)\}`)

// Fill rewrites a DOCX archive, replacing {placeholder} tokens in the main
// document and any headers/footers with the supplied field values. Entries
// that carry no text are copied verbatim. Fields missing from the map
// replace with the empty string.
func Fill(docx []byte, fields map[string]string) ([]byte, error) {
	if len(docx) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "empty template document")
	}

	reader, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "template is not a valid docx archive")
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)

	for _, entry := range reader.File {
		src, err := entry.Open()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("open docx entry %s", entry.Name))
		}
		content, err := io.ReadAll(src)
		closeErr := src.Close()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("read docx entry %s", entry.Name))
		}
		if closeErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, closeErr, fmt.Sprintf("close docx entry %s", entry.Name))
		}

		if isTextEntry(entry.Name) {
			content = replacePlaceholders(content, fields)
		}

		header := entry.FileHeader
		dst, err := writer.CreateHeader(&header)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("write docx entry %s", entry.Name))
		}
		if _, err := dst.Write(content); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("write docx entry %s", entry.Name))
		}
	}

	if err := writer.Close(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize filled docx")
	}
	return out.Bytes(), nil
}

// Placeholders lists the distinct field names referenced by the template.
func Placeholders(docx []byte) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "template is not a valid docx archive")
	}

	seen := map[string]bool{}
	var out []string
	for _, entry := range reader.File {
		if !isTextEntry(entry.Name) {
			continue
		}
		src, err := entry.Open()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("open docx entry %s", entry.Name))
		}
		content, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("read docx entry %s", entry.Name))
		}
		for _, match := range placeholderPattern.FindAllStringSubmatch(string(content), -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				out = append(out, match[1])
			}
		}
	}
	return out, nil
}

func isTextEntry(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	if strings.HasPrefix(name, "word/header") && strings.HasSuffix(name, ".xml") {
		return true
	}
	if strings.HasPrefix(name, "word/footer") && strings.HasSuffix(name, ".xml") {
		return true
	}
	return false
}

func replacePlaceholders(content []byte, fields map[string]string) []byte {
	return placeholderPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		name := string(match[1 : len(match)-1])
		value, ok := fields[name]
		if !ok {
			return []byte{}
		}
		return []byte(xmlEscape(value))
	})
}

func xmlEscape(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(value)
}
