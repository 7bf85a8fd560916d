package result

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

var (
	// xlsx
	zipMagic = []byte("PK\x03\x04")
	// legacy xls & encrypted workbooks
	oleMagic = []byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1")
	utf8BOM  = []byte("\xEF\xBB\xBF")

	errEmptyFile   = errors.New("empty file")
	errUnsupported = errors.New("unsupported spreadsheet format: expected .xlsx or .csv")
	errTooLarge    = errors.New("file too large")
)

// Read decodes the first sheet of a spreadsheet into raw rows.
// The first row gives the column names, blank rows are skipped and empty cells are left out.
// name is only used to recognise CSV files and in error messages.
func Read(content []byte, name string) ([]RawRow, error) {
	if len(content) == 0 {
		return nil, &DecodeError{Name: name, Err: errEmptyFile}
	}

	var (
		rows [][]string
		err  error
	)
	switch {
	case bytes.HasPrefix(content, zipMagic):
		rows, err = readXLSX(content)
	case bytes.HasPrefix(content, oleMagic):
		err = errUnsupported
	case strings.EqualFold(filepath.Ext(name), ".csv"):
		rows, err = readCSV(content)
	default:
		err = errUnsupported
	}
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	return toRawRows(rows), nil
}

// ReadFrom reads at most limit bytes from r and decodes them (see Read). limit <= 0 means no limit.
func ReadFrom(r io.Reader, name string, limit int64) ([]RawRow, error) {
	var content []byte
	var err error
	if limit > 0 {
		content, err = io.ReadAll(io.LimitReader(r, limit+1))
		if err == nil && int64(len(content)) > limit {
			err = errTooLarge
		}
	} else {
		content, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	return Read(content, name)
}

func readXLSX(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheet")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheets[0])
	}
	return rows, nil
}

func readCSV(content []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	return rows, nil
}

func toRawRows(rows [][]string) []RawRow {
	if len(rows) == 0 {
		return []RawRow{}
	}

	// header; duplicated or empty column names are ignored
	header := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		header[i] = name
	}

	out := make([]RawRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := make(RawRow, len(header))
		for i, cell := range cells {
			if i >= len(header) || header[i] == "" || cell == "" {
				continue
			}
			row[header[i]] = cell
		}
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}
