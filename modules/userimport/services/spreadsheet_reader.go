package services

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// DefaultMaxFileSize is the upload cap for one spreadsheet (100 MB).
const DefaultMaxFileSize int64 = 100 << 20

// RawRow is one spreadsheet row, positionally aligned with the header row.
type RawRow []string

// IsBlank reports whether every cell is empty after trimming.
func (r RawRow) IsBlank() bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Cell returns the cell at i, or "" when the row is shorter.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

type spreadsheetKind int

const (
	kindXLSX spreadsheetKind = iota + 1
	kindXLS
)

var spreadsheetExtensions = map[string]spreadsheetKind{
	".xlsx": kindXLSX,
	".xls":  kindXLS,
}

// SpreadsheetReader decodes the first sheet of an uploaded workbook.
type SpreadsheetReader struct {
	maxFileSize int64
}

func NewSpreadsheetReader(maxFileSize int64) *SpreadsheetReader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &SpreadsheetReader{maxFileSize: maxFileSize}
}

// Read decodes r into non-blank rows; the first returned row is the header.
func (s *SpreadsheetReader) Read(name string, size int64, r io.Reader) ([]RawRow, error) {
	kind, ok := spreadsheetExtensions[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return nil, newImportError(ErrUnsupportedFormat, fmt.Sprintf("unsupported file type %q (expected .xlsx or .xls)", filepath.Ext(name)), nil)
	}
	if size > s.maxFileSize {
		return nil, oversized(size, s.maxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, newImportError(ErrParseFailure, "", fmt.Errorf("read %s: %w", name, err))
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, oversized(int64(len(data)), s.maxFileSize)
	}

	if err := sniff(kind, data); err != nil {
		return nil, err
	}

	var grid [][]string
	switch kind {
	case kindXLSX:
		grid, err = decodeXLSX(data)
	case kindXLS:
		grid, err = decodeXLS(data)
	}
	if err != nil {
		return nil, newImportError(ErrParseFailure, "", err)
	}

	rows := make([]RawRow, 0, len(grid))
	for _, cells := range grid {
		row := RawRow(cells)
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyDataset
	}
	return rows, nil
}

func oversized(size, limit int64) error {
	return newImportError(ErrOversizedFile, fmt.Sprintf("file is too large (%d bytes, limit %d bytes)", size, limit), nil)
}

// sniff rejects payloads whose content does not match the container the
// extension promises: OOXML is a zip archive, legacy .xls is an OLE2 file.
func sniff(kind spreadsheetKind, data []byte) error {
	mt := mimetype.Detect(data)
	var want []string
	switch kind {
	case kindXLSX:
		want = []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"}
	case kindXLS:
		want = []string{"application/vnd.ms-excel", "application/x-ole-storage"}
	}
	for m := mt; m != nil; m = m.Parent() {
		for _, w := range want {
			if m.Is(w) {
				return nil
			}
		}
	}
	return newImportError(ErrParseFailure, fmt.Sprintf("spreadsheet could not be decoded (content is %s)", mt.String()), nil)
}

func decodeXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	// Raw values keep dates as serial numbers instead of the cell's display format.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func decodeXLS(data []byte) (grid [][]string, err error) {
	// the BIFF decoder panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			grid = nil
			err = fmt.Errorf("decode xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	grid = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol()+1)
		for c := row.FirstCol(); c <= row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
