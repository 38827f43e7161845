// Package pdf renders validated reports as minimal PDF 1.4 documents:
// a title line followed by wrapped body text in a built-in Helvetica
// font, paginated as needed. The output is plain, uncompressed PDF that
// any viewer accepts.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	pageWidth  = 595 // A4 portrait, points
	pageHeight = 842

	marginLeft = 56
	marginTop  = 56

	titleSize = 18
	bodySize  = 11
	leading   = 15

	// maxLineChars approximates the character count that fits a body
	// line at bodySize within the margins.
	maxLineChars = 88

	linesPerPage = (pageHeight - 2*marginTop) / leading
)

// Generate renders a report title and body into a PDF document.
func Generate(title, content string) []byte {
	pages := paginate(title, content)

	var (
		buf     bytes.Buffer
		offsets []int
	)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// Object numbering: 1 catalog, 2 pages, 3 font, then per page a
	// page object followed by its content stream.
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, page := range pages {
		writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>",
			pageWidth, pageHeight, 5+2*i))

		stream := renderPage(page, i == 0)
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)

	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefAt)

	return buf.Bytes()
}

// paginate wraps the title and body into per-page line slices. The title
// occupies the first two slots of the first page.
func paginate(title, content string) [][]string {
	lines := []string{title, ""}
	for _, para := range strings.Split(content, "\n") {
		lines = append(lines, wrap(para, maxLineChars)...)
	}

	var pages [][]string
	for len(lines) > 0 {
		n := linesPerPage
		if n > len(lines) {
			n = len(lines)
		}

		pages = append(pages, lines[:n])
		lines = lines[n:]
	}

	if len(pages) == 0 {
		pages = [][]string{{title}}
	}

	return pages
}

// wrap splits a paragraph on word boundaries. Words longer than the
// limit are broken mid-word.
func wrap(text string, limit int) []string {
	if text == "" {
		return []string{""}
	}

	var (
		lines []string
		line  strings.Builder
	)

	for _, word := range strings.Fields(text) {
		for len(word) > limit {
			if line.Len() > 0 {
				lines = append(lines, line.String())
				line.Reset()
			}

			lines = append(lines, word[:limit])
			word = word[limit:]
		}

		switch {
		case line.Len() == 0:
			line.WriteString(word)
		case line.Len()+1+len(word) <= limit:
			line.WriteByte(' ')
			line.WriteString(word)
		default:
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(word)
		}
	}

	if line.Len() > 0 {
		lines = append(lines, line.String())
	}

	if len(lines) == 0 {
		lines = []string{""}
	}

	return lines
}

// renderPage emits the content stream for one page. The first page draws
// its first line in the title size.
func renderPage(lines []string, first bool) string {
	var b strings.Builder

	b.WriteString("BT\n")

	y := pageHeight - marginTop

	for i, line := range lines {
		size := bodySize
		if first && i == 0 {
			size = titleSize
		}

		if line != "" {
			fmt.Fprintf(&b, "/F1 %d Tf\n1 0 0 1 %d %d Tm\n(%s) Tj\n",
				size, marginLeft, y, escape(line))
		}

		y -= leading
	}

	b.WriteString("ET\n")

	return b.String()
}

// escape protects PDF string delimiters.
func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
