package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var errEmptySheet = errors.New("no data found in XLSX file")

// readProductsFromXLSX turns the first sheet into raw product rows keyed by
// the lower-cased header. Blank cells are left out so the importer applies
// its defaults; a missing stock cell means unlimited.
func readProductsFromXLSX(filePath string) ([]map[string]any, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, errEmptySheet
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var products []map[string]any
	for _, row := range rows[1:] {
		raw := make(map[string]any)
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				raw[header[i]] = cell
			}
		}
		if len(raw) == 0 {
			continue
		}
		products = append(products, raw)
	}
	return products, nil
}
