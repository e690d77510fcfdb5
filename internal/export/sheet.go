package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

// addSheet starts a new sheet. The first call renames the default sheet.
func (w *sheetWriter) addSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) header(columns ...string) error {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := w.writeRow(values...); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, w.row-1)
	last, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
	return w.file.SetCellStyle(w.sheet, first, last, style)
}

func (w *sheetWriter) writeRow(values ...any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d of %s: %w", w.row, w.sheet, err)
	}
	w.row++
	return nil
}

func (w *sheetWriter) widths(widths ...float64) error {
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(w.sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (w *sheetWriter) save(out io.Writer) error {
	if idx, err := w.file.GetSheetIndex(w.file.GetSheetName(0)); err == nil {
		w.file.SetActiveSheet(idx)
	}
	_, err := w.file.WriteTo(out)
	return err
}

func (w *sheetWriter) close() error {
	return w.file.Close()
}
