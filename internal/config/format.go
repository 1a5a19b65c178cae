package config

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

// LoadFormat reads a tabular format descriptor and applies defaults.
func LoadFormat(path string) (*domain.TableFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
			"cannot read format descriptor %s", path)
	}
	return ParseFormat(data)
}

// ParseFormat parses a format descriptor from raw JSON.
func ParseFormat(data []byte) (*domain.TableFormat, error) {
	var f domain.TableFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
			"format descriptor is not valid JSON")
	}

	if f.SkipRows < 0 {
		return nil, apperrors.New(apperrors.CodeConfiguration,
			"skip_rows must be non-negative, got %d", f.SkipRows)
	}
	for _, idx := range f.RowSelection {
		if idx < 0 {
			return nil, apperrors.New(apperrors.CodeConfiguration,
				"row selection indices must be non-negative, got %d", idx)
		}
	}
	for name, idx := range f.Columns.Required() {
		if idx != nil && *idx < 0 {
			return nil, apperrors.New(apperrors.CodeConfiguration,
				"column index for %s must be non-negative, got %d", name, *idx)
		}
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
			"format descriptor failed validation")
	}

	applyFormatDefaults(&f)
	return &f, nil
}

func applyFormatDefaults(f *domain.TableFormat) {
	if f.NameTemplate == "" {
		f.NameTemplate = domain.DefaultNameTemplate
	}
	if f.TimestampFormat == "" {
		f.TimestampFormat = domain.DefaultTimestampFormat
	}
	if f.NonNumeric == "" {
		f.NonNumeric = domain.NonNumericZero
	}
	if f.SampleRows <= 0 {
		f.SampleRows = domain.DefaultSampleRows
	}
}
