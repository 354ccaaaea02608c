// Package roster reads team registrations from an Excel workbook.
package roster

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/certmailer/internal/model"
)

var ErrNoSheets = errors.New("roster: workbook has no sheets")

// Load opens the workbook at path and returns one Registration per data row
// of its first sheet, in sheet order. The first row holds the column headers.
// Columns are not validated here; a missing column reads as an empty value.
func Load(path string) ([]model.Registration, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	records := parseRows(rows)
	slog.Debug("roster loaded", "path", path, "sheet", sheets[0], "records", len(records))
	return records, nil
}

// parseRows maps data rows onto the header row. Empty cells are left out of
// the record and rows without any value are dropped.
func parseRows(rows [][]string) []model.Registration {
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	var records []model.Registration

	for i, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		for col, cell := range row {
			if col >= len(header) {
				break
			}
			// Headers are matched exactly as written, surrounding spaces included.
			name := header[col]
			if name == "" || cell == "" {
				continue
			}
			if _, seen := fields[name]; seen {
				continue
			}
			fields[name] = cell
		}
		if len(fields) == 0 {
			continue
		}
		// Sheet rows are 1-based and the header occupies row 1.
		records = append(records, model.Registration{Row: i + 2, Fields: fields})
	}

	return records
}
