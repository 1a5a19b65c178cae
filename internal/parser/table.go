// Package parser reads the two supported input shapes: delimited tabular
// files (CSV and Excel) and the heuristic multi-block text format produced by
// wind-tunnel post-processing tools.
package parser

// Table is a parsed block of rows with named columns. Cells stay as raw
// strings; numeric conversion happens downstream where the non-numeric policy
// is known.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// Append adds one row. The caller guarantees the cell count matches Columns.
func (t *Table) Append(row []string) { t.Rows = append(t.Rows, row) }
