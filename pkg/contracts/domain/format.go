package domain

// NonNumericPolicy controls how rows with non-numeric force/moment cells are
// handled by the batch pipeline.
type NonNumericPolicy string

const (
	// NonNumericZero replaces unparseable cells with 0.
	NonNumericZero NonNumericPolicy = "zero"
	// NonNumericKeep carries unparseable cells through as NaN.
	NonNumericKeep NonNumericPolicy = "keep"
	// NonNumericDrop removes affected rows from the output.
	NonNumericDrop NonNumericPolicy = "drop"
)

// ColumnMap maps named fields to zero-based column indices in a delimited
// input table. Nil means the column is absent. Alpha is optional; the six
// force/moment columns are required for tabular processing.
type ColumnMap struct {
	Alpha *int `json:"alpha,omitempty"`
	Fx    *int `json:"fx"`
	Fy    *int `json:"fy"`
	Fz    *int `json:"fz"`
	Mx    *int `json:"mx"`
	My    *int `json:"my"`
	Mz    *int `json:"mz"`
}

// Required returns the mandatory field-name → index pairs in column order.
func (m ColumnMap) Required() map[string]*int {
	return map[string]*int{
		"fx": m.Fx, "fy": m.Fy, "fz": m.Fz,
		"mx": m.Mx, "my": m.My, "mz": m.Mz,
	}
}

// TableFormat describes how a delimited tabular input file is read and how
// its results are written. It is the Go shape of the format descriptor JSON.
type TableFormat struct {
	SkipRows    int       `json:"skip_rows"`
	Columns     ColumnMap `json:"columns"`
	Passthrough []int     `json:"passthrough,omitempty"`

	// RowSelection, when non-empty, restricts processing to the given
	// zero-based row indices and bypasses header auto-detection so the
	// indices stay aligned with the raw file.
	RowSelection []int `json:"rows,omitempty"`

	ChunkSize       int              `json:"chunksize,omitempty" validate:"gte=0"`
	NameTemplate    string           `json:"name_template,omitempty"`
	TimestampFormat string           `json:"timestamp_format,omitempty"`
	Overwrite       bool             `json:"overwrite,omitempty"`
	NonNumeric      NonNumericPolicy `json:"treat_non_numeric,omitempty" validate:"omitempty,oneof=zero keep drop"`
	SampleRows      int              `json:"sample_rows,omitempty" validate:"gte=0"`

	// PartLinks maps block names in multi-block inputs to configured parts.
	PartLinks map[string]PartLink `json:"parts,omitempty" validate:"dive"`
}

// Default values applied by the format loader.
const (
	DefaultNameTemplate    = "{stem}_result_{timestamp}.csv"
	DefaultTimestampFormat = "20060102_150405"
	DefaultSampleRows      = 5
)
