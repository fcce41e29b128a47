// Package csvio reads and writes the delimited files the console exchanges
// with checkout platforms and carriers. Parsing is a hand-rolled character
// scanner: platform exports carry commas and line breaks inside quoted cells,
// which a split-on-comma approach corrupts silently.
package csvio

import "strings"

// Row keys cell values by header name. Cells are trimmed; a row shorter than
// the header line reads as empty strings for the missing columns.
type Row map[string]string

// Document is one parsed spreadsheet: the header line plus every data row in
// file order.
type Document struct {
	Headers []string
	Rows    []Row
}

// Parse scans raw CSV text into a Document. The first line is the header.
// Quoted cells may contain commas, CR/LF and doubled quotes (decoded to one
// literal quote). Blank lines are skipped. Empty input yields an empty
// Document, not an error.
func Parse(text string) Document {
	text = strings.TrimPrefix(text, "\uFEFF")
	return fromCells(scan(text))
}

func fromCells(raw [][]string) Document {
	if len(raw) == 0 {
		return Document{}
	}
	headers := raw[0]
	rows := make([]Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := make(Row, len(headers))
		for j, h := range headers {
			if j < len(cells) {
				row[h] = cells[j]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return Document{Headers: headers, Rows: rows}
}

// scan walks the text one byte at a time, tracking quote state. Cell and row
// boundaries only count outside quotes; inside quotes a doubled quote decodes
// to a literal one and everything else (commas and newlines included) is cell
// content.
func scan(text string) [][]string {
	var (
		rows     [][]string
		cells    []string
		cell     strings.Builder
		inQuotes bool
	)

	flushCell := func() {
		cells = append(cells, strings.TrimSpace(cell.String()))
		cell.Reset()
	}
	flushRow := func() {
		flushCell()
		// a line that produced a single empty cell is a blank line
		if len(cells) == 1 && cells[0] == "" {
			cells = nil
			return
		}
		rows = append(rows, cells)
		cells = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					cell.WriteByte('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			cell.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inQuotes = true
		case ',':
			flushCell()
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			flushRow()
		case '\n':
			flushRow()
		default:
			cell.WriteByte(c)
		}
	}
	if cell.Len() > 0 || len(cells) > 0 {
		flushRow()
	}
	return rows
}
