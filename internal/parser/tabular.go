package parser

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
)

// RowReader streams raw rows from a tabular input in bounded chunks so large
// files never load whole. An empty chunk signals exhaustion.
type RowReader interface {
	// ReadChunk returns up to n rows, or an empty slice once the input is
	// exhausted.
	ReadChunk(n int) ([][]string, error)
	Close() error
}

// OpenRowReader opens path with the reader matching its extension. Excel
// workbooks stream through the sheet iterator, everything else goes through
// the CSV reader with the encoding fallback chain. skipRows leading rows are
// discarded.
func OpenRowReader(path string, skipRows int) (RowReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls", ".xlsm", ".xlsb":
		return newExcelReader(path, skipRows)
	case ".tsv":
		return newCSVReader(path, skipRows, '\t')
	default:
		return newCSVReader(path, skipRows, ',')
	}
}

type csvRowReader struct {
	r *csv.Reader
}

func newCSVReader(path string, skipRows int, comma rune) (*csvRowReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFormat, err, "cannot read %s", path)
	}
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFormat, err, "cannot decode %s", path)
	}
	text = strings.TrimPrefix(text, "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	for i := 0; i < skipRows; i++ {
		if _, err := r.Read(); err == io.EOF {
			break
		} else if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeFormat, err,
				"cannot skip row %d of %s", i, path)
		}
	}
	return &csvRowReader{r: r}, nil
}

func (c *csvRowReader) ReadChunk(n int) ([][]string, error) {
	rows := make([][]string, 0, n)
	for len(rows) < n {
		record, err := c.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, apperrors.Wrap(apperrors.CodeFormat, err, "malformed row")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func (c *csvRowReader) Close() error { return nil }

type excelRowReader struct {
	f    *excelize.File
	rows *excelize.Rows
}

func newExcelReader(path string, skipRows int) (*excelRowReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFormat, err, "cannot open workbook %s", path)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, apperrors.New(apperrors.CodeFormat, "workbook %s has no sheets", path)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, apperrors.Wrap(apperrors.CodeFormat, err,
			"cannot iterate sheet %q of %s", sheets[0], path)
	}

	for i := 0; i < skipRows && rows.Next(); i++ {
	}

	return &excelRowReader{f: f, rows: rows}, nil
}

func (e *excelRowReader) ReadChunk(n int) ([][]string, error) {
	out := make([][]string, 0, n)
	for len(out) < n && e.rows.Next() {
		cells, err := e.rows.Columns()
		if err != nil {
			return out, apperrors.Wrap(apperrors.CodeFormat, err, "malformed row")
		}
		out = append(out, cells)
	}
	return out, nil
}

func (e *excelRowReader) Close() error {
	if err := e.rows.Close(); err != nil {
		e.f.Close()
		return err
	}
	return e.f.Close()
}
