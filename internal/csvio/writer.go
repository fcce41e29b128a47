package csvio

import "strings"

// utf8BOM prefixes exports so Excel opens accented text correctly.
const utf8BOM = "\xEF\xBB\xBF"

// Encode serializes headers plus rows into a BOM-prefixed, CRLF-terminated
// CSV. Cells containing commas, quotes or line breaks are quoted, with inner
// quotes doubled, so Parse reads the output back cell for cell.
func Encode(headers []string, rows [][]string) []byte {
	var b strings.Builder
	b.WriteString(utf8BOM)
	writeLine(&b, headers)
	for _, row := range rows {
		writeLine(&b, row)
	}
	return []byte(b.String())
}

func writeLine(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeCell(cell))
	}
	b.WriteString("\r\n")
}

func encodeCell(cell string) string {
	if !strings.ContainsAny(cell, ",\"\r\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}
