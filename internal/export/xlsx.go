package export

import (
	"fmt"
	"io"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet that holds exported records.
const SheetName = "logs"

// XLSXWriter streams rows into a single-sheet workbook and writes the
// workbook to the destination on Close.
type XLSXWriter struct {
	dst  io.Writer
	file *excelize.File
	sw   *excelize.StreamWriter
	row  int
}

func NewXLSXWriter(w io.Writer) (*XLSXWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stream writer: %w", err)
	}
	x := &XLSXWriter{dst: w, file: f, sw: sw}
	if err := x.writeRow(Columns); err != nil {
		f.Close()
		return nil, err
	}
	return x, nil
}

func (x *XLSXWriter) writeRow(values []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return x.sw.SetRow(cell, cells)
}

func (x *XLSXWriter) Write(r *model.LogRecord) error {
	return x.writeRow(row(r))
}

func (x *XLSXWriter) Close() error {
	defer x.file.Close()
	if err := x.sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := x.file.Write(x.dst); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
