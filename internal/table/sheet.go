package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/linksync/internal/domain"
	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "Sheet1"

// Sheet is a raw spreadsheet: a header row plus data rows. Rows may be ragged.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// Shape tells how a loaded sheet should be interpreted.
type Shape int

const (
	ShapeLong Shape = iota
	ShapeWide
)

// DetectShape treats a two-column sheet as long and anything wider as wide.
func DetectShape(s Sheet) Shape {
	if len(s.Header) > 2 {
		return ShapeWide
	}
	return ShapeLong
}

// ReadSheet loads a .csv or .xlsx file. For .xlsx only the first sheet is read.
func ReadSheet(path string) (Sheet, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return Sheet{}, domain.Errorf(domain.KindUnsupportedFormat, "read sheet",
			"unsupported file format %q, use .xlsx or .csv", ext)
	}
}

// WriteSheet saves s as .csv or .xlsx depending on path's extension.
func WriteSheet(path string, s Sheet) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		out, err := os.Create(path)
		if err != nil {
			return domain.NewError(domain.KindIO, "write sheet", "failed to create "+path, err)
		}
		defer out.Close()
		return WriteCSV(out, s)
	case ".xlsx":
		out, err := os.Create(path)
		if err != nil {
			return domain.NewError(domain.KindIO, "write sheet", "failed to create "+path, err)
		}
		defer out.Close()
		return WriteXLSX(out, s)
	default:
		return domain.Errorf(domain.KindUnsupportedFormat, "write sheet",
			"unsupported file format %q, use .xlsx or .csv", ext)
	}
}

// WriteCSV writes s as CSV to w.
func WriteCSV(w io.Writer, s Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return domain.NewError(domain.KindIO, "write csv", "failed to write header", err)
	}
	for _, row := range s.Rows {
		if err := cw.Write(row); err != nil {
			return domain.NewError(domain.KindIO, "write csv", "failed to write row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return domain.NewError(domain.KindIO, "write csv", "failed to flush", err)
	}
	return nil
}

// WriteXLSX writes s as a single-sheet workbook to w.
func WriteXLSX(w io.Writer, s Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	rows := append([][]string{s.Header}, s.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to resolve cell for row %d: %w", i+1, err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(defaultSheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return domain.NewError(domain.KindIO, "write xlsx", "failed to write workbook", err)
	}
	return nil
}

func readCSV(path string) (Sheet, error) {
	in, err := os.Open(path)
	if err != nil {
		return Sheet{}, domain.NewError(domain.KindIO, "read csv", "failed to open "+path, err)
	}
	defer in.Close()

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return Sheet{}, domain.NewError(domain.KindMalformedTable, "read csv", "failed to parse "+path, err)
	}
	return sheetFromRecords(records), nil
}

func readXLSX(path string) (Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Sheet{}, domain.NewError(domain.KindIO, "read xlsx", "failed to open "+path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Sheet{}, domain.Errorf(domain.KindMalformedTable, "read xlsx", "xlsx file %s has no sheets", path)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Sheet{}, domain.NewError(domain.KindMalformedTable, "read xlsx",
			fmt.Sprintf("failed to read rows from sheet %s", sheets[0]), err)
	}
	return sheetFromRecords(records), nil
}

func sheetFromRecords(records [][]string) Sheet {
	if len(records) == 0 {
		return Sheet{}
	}
	return Sheet{Header: records[0], Rows: records[1:]}
}

// Sheet renders the wide table with its header; rows are padded to the header width.
func (w WideTable) Sheet() Sheet {
	s := Sheet{Header: append([]string(nil), w.Header...)}
	for _, row := range w.Rows {
		record := make([]string, len(w.Header))
		if len(record) > 0 {
			record[0] = row.Name
		}
		for i, u := range row.URLs {
			if i+1 < len(record) {
				record[i+1] = u
			}
		}
		s.Rows = append(s.Rows, record)
	}
	return s
}

// Sheet renders the long table under a name,url header.
func (l LongTable) Sheet() Sheet {
	s := Sheet{Header: []string{NameColumn, URLColumn}}
	for _, row := range l {
		s.Rows = append(s.Rows, []string{row.Name, row.URL})
	}
	return s
}

// WideFromSheet reads s as a wide table without validating its width.
func WideFromSheet(s Sheet) WideTable {
	w := WideTable{Header: append([]string(nil), s.Header...)}
	for _, record := range s.Rows {
		if len(record) == 0 {
			continue
		}
		row := WideRow{Name: record[0]}
		if len(s.Header) > 1 {
			row.URLs = make([]string, len(s.Header)-1)
			copy(row.URLs, record[1:])
		}
		w.Rows = append(w.Rows, row)
	}
	return w
}

// LongFromSheet reads the first two columns of s as (name, url) pairs and
// drops rows without a link.
func LongFromSheet(s Sheet) (LongTable, error) {
	if len(s.Header) < 2 {
		return nil, domain.Errorf(domain.KindMalformedTable, "long from sheet",
			"table must have at least two columns, got %d", len(s.Header))
	}

	var long LongTable
	for _, record := range s.Rows {
		if len(record) < 2 {
			continue
		}
		link := strings.TrimSpace(record[1])
		if isAbsent(link) {
			continue
		}
		long = append(long, LongRow{Name: strings.TrimSpace(record[0]), URL: link})
	}
	return long, nil
}

// LoadLong reads a spreadsheet of links and returns it in long form,
// unpivoting it first when it arrived wide.
func LoadLong(path string) (LongTable, error) {
	s, err := ReadSheet(path)
	if err != nil {
		return nil, err
	}
	if DetectShape(s) == ShapeWide {
		return ToLong(WideFromSheet(s))
	}
	return LongFromSheet(s)
}

// SplitColumn splits each cell of column on sep into column_1..column_N,
// N being the largest number of parts in any row. The source column is
// dropped and the new columns are appended.
func SplitColumn(s Sheet, column, sep string) (Sheet, error) {
	if sep == "" {
		sep = "\n"
	}

	idx := -1
	for i, h := range s.Header {
		if h == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Sheet{}, domain.Errorf(domain.KindMalformedTable, "split column", "column %q not found", column)
	}

	parts := make([][]string, len(s.Rows))
	width := 0
	for i, record := range s.Rows {
		cell := ""
		if idx < len(record) {
			cell = record[idx]
		}
		parts[i] = strings.Split(cell, sep)
		if len(parts[i]) > width {
			width = len(parts[i])
		}
	}

	out := Sheet{Header: dropIndex(s.Header, idx)}
	for n := 1; n <= width; n++ {
		out.Header = append(out.Header, fmt.Sprintf("%s_%d", column, n))
	}

	base := len(s.Header) - 1
	for i, record := range s.Rows {
		row := make([]string, base, base+width)
		copy(row, dropIndex(record, idx))
		for n := 0; n < width; n++ {
			v := ""
			if n < len(parts[i]) {
				v = parts[i][n]
			}
			row = append(row, v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func dropIndex(values []string, idx int) []string {
	out := make([]string, 0, len(values))
	for i, v := range values {
		if i != idx {
			out = append(out, v)
		}
	}
	return out
}
