package csvio

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first sheet of an Excel workbook into the same Document
// shape CSV parsing produces, so the import pipeline does not care which
// format the operator uploaded.
func ParseXLSX(file io.Reader) (Document, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return Document{}, errors.New("planilha sem abas")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return Document{}, err
	}

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		trimmed := make([]string, len(row))
		blank := true
		for i, cell := range row {
			trimmed[i] = strings.TrimSpace(cell)
			if trimmed[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		cells = append(cells, trimmed)
	}
	return fromCells(cells), nil
}

// ParseUpload picks the parser by file extension: .xlsx goes through
// excelize, everything else is treated as CSV text.
func ParseUpload(filename string, data []byte) (Document, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return ParseXLSX(bytes.NewReader(data))
	}
	return Parse(string(data)), nil
}
