package testutil

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

// WritePDF writes a minimal valid PDF with the given number of empty pages
// to path. Cross-reference offsets are computed from the assembled output,
// so strict parsers accept the file.
func WritePDF(t *testing.T, path string, pages int) {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	var offsets []int
	addObject := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i)
	}

	addObject("<< /Type /Catalog /Pages 2 0 R >>")
	addObject(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	addObject("<< /Length 0 >>\nstream\n\nendstream")
	for range pages {
		addObject("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents 3 0 R >>")
	}

	finishPDF(t, path, &buf, offsets)
}

// WritePDFWithImage writes a single-page PDF that embeds jpegData as an
// image XObject painted onto the page.
func WritePDFWithImage(t *testing.T, path string, jpegData []byte, width, height int) {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	var offsets []int
	addObject := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	paint := fmt.Sprintf("q %d 0 0 %d 50 500 cm /Im1 Do Q", width, height)

	addObject("<< /Type /Catalog /Pages 2 0 R >>")
	addObject("<< /Type /Pages /Kids [4 0 R] /Count 1 >>")
	addObject(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(paint), paint))
	addObject("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 5 0 R >> >> /Contents 3 0 R >>")
	addObject(fmt.Sprintf(
		"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n%s\nendstream",
		width, height, len(jpegData), jpegData))

	finishPDF(t, path, &buf, offsets)
}

// finishPDF appends the cross-reference table and trailer and writes the
// assembled file
func finishPDF(t *testing.T, path string, buf *bytes.Buffer, offsets []int) {
	t.Helper()

	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefOffset)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write test PDF %s: %v", path, err)
	}
}
