package invoices

import (
	"bytes"
	"fmt"
	"strings"
)

// renderPDF produces a single page, Helvetica-only PDF carrying the given
// lines. It writes the small subset of PDF 1.4 that every viewer accepts;
// no library in use here because the document is a fixed receipt layout.
func renderPDF(title string, lines []string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 16 Tf\n50 790 Td\n")
	content.WriteString(fmt.Sprintf("(%s) Tj\n", escapePDFText(title)))
	content.WriteString("/F1 11 Tf\n0 -30 Td\n")
	for _, line := range lines {
		content.WriteString(fmt.Sprintf("(%s) Tj\n0 -18 Td\n", escapePDFText(line)))
	}
	content.WriteString("ET\n")
	stream := content.String()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)
	return buf.Bytes()
}

func escapePDFText(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return replacer.Replace(s)
}
