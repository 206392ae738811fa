// Package report writes extracted client records to a spreadsheet.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"invoicescan/models"
)

// SheetName is the single sheet written to every report.
const SheetName = "clients"

// WriteError is returned when the report cannot be saved. It is fatal to a
// run: the spreadsheet is the point of the run.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Columns returns the header row in its fixed order.
func Columns(includeSource bool) []string {
	cols := []string{"client_name", "client_address", "tax_id"}
	if includeSource {
		cols = append(cols, "source_file")
	}
	return cols
}

func row(r models.ExtractedRecord, includeSource bool) []interface{} {
	out := []interface{}{r.ClientName, r.ClientAddress, r.TaxID}
	if includeSource {
		out = append(out, r.SourceFile)
	}
	return out
}

// Write saves one header row plus one row per record, in order, to path.
// An empty slice produces a header-only sheet.
func Write(path string, records []models.ExtractedRecord, includeSource bool) error {
	if fi, err := os.Stat(filepath.Dir(path)); err != nil {
		return &WriteError{Path: path, Err: err}
	} else if !fi.IsDir() {
		return &WriteError{Path: path, Err: fmt.Errorf("%s is not a directory", filepath.Dir(path))}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	cols := Columns(includeSource)
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("header style: %w", err)}
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", style); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("header style: %w", err)}
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 32); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("column width: %w", err)}
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return &WriteError{Path: path, Err: err}
		}
		values := row(r, includeSource)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return &WriteError{Path: path, Err: fmt.Errorf("row %d: %w", i+2, err)}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Read loads the rows of a report written by Write, header included. Every
// row is padded to the header width and trailing blank rows are kept, so the
// row count matches the number of records written.
func Read(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	rows, err := f.Rows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read report row %d: %w", len(out)+1, err)
		}
		out = append(out, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	width := len(out[0])
	for i, r := range out {
		for len(r) < width {
			r = append(r, "")
		}
		out[i] = r
	}
	return out, nil
}
