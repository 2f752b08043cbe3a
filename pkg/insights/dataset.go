package insights

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Dataset is a labelled table. Columns fixes the column order; each row maps
// column names to values and may omit any of them except the target.
type Dataset struct {
	Columns []string
	Rows    []PatientRecord
}

// NewDataset validates decoded JSON rows against the declared column order.
func NewDataset(columns []string, rows []map[string]interface{}) (Dataset, error) {
	if len(columns) == 0 {
		return Dataset{}, ValidationError{reason: errors.New("columns required to fix feature order")}
	}
	seen := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		if strings.TrimSpace(column) == "" {
			return Dataset{}, ValidationError{reason: errors.New("column names must not be empty")}
		}
		if _, dup := seen[column]; dup {
			return Dataset{}, ValidationError{reason: fmt.Errorf("duplicate column %q", column)}
		}
		seen[column] = struct{}{}
	}

	ds := Dataset{Columns: append([]string(nil), columns...), Rows: make([]PatientRecord, 0, len(rows))}
	for i, raw := range rows {
		record, err := ParsePatientRecord(raw)
		if err != nil {
			return Dataset{}, fmt.Errorf("row %d: %w", i, err)
		}
		ds.Rows = append(ds.Rows, record)
	}
	return ds, nil
}

// ReadCSV loads a dataset whose first line is the header. Empty cells are
// treated as missing values.
func ReadCSV(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Dataset{}, ValidationError{reason: fmt.Errorf("reading csv header: %w", err)}
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	ds := Dataset{Columns: columns}
	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Dataset{}, ValidationError{reason: fmt.Errorf("csv line %d: %w", line, err)}
		}
		record := make(PatientRecord, len(columns))
		for i, field := range fields {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Dataset{}, ValidationError{reason: fmt.Errorf("csv line %d column %q: %w", line, columns[i], err)}
			}
			record[columns[i]] = value
		}
		ds.Rows = append(ds.Rows, record)
	}
	return ds, nil
}

// matrix aligns every row to the feature set and extracts target labels.
func (d Dataset) matrix(features FeatureSet, target string) ([][]float64, []float64, error) {
	samples := make([][]float64, len(d.Rows))
	labels := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		label, ok := row[target]
		if !ok || math.IsNaN(label) || math.IsInf(label, 0) {
			return nil, nil, ConfigurationError{reason: fmt.Errorf("row %d has no value for target %q", i, target)}
		}
		samples[i] = features.Align(row)
		labels[i] = label
	}
	return samples, labels, nil
}
