package insights

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestDeriveFeatureSetPreservesOrder(t *testing.T) {
	fs, err := DeriveFeatureSet([]string{"pressure", "temperature", "glucose", "age", "outcome"}, "outcome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := FeatureSet{"pressure", "temperature", "glucose", "age"}
	if !reflect.DeepEqual(fs, want) {
		t.Fatalf("expected %v, got %v", want, fs)
	}
}

func TestDeriveFeatureSetRejectsBadColumns(t *testing.T) {
	cases := map[string][]string{
		"target missing": {"pressure", "age"},
		"only target":    {"outcome"},
	}
	for name, columns := range cases {
		if _, err := DeriveFeatureSet(columns, "outcome"); !IsConfigurationError(err) {
			t.Fatalf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
}

func TestAlignFillsMissingAndDropsExtra(t *testing.T) {
	fs := FeatureSet{"pressure", "temperature", "glucose", "age"}
	row := fs.Align(PatientRecord{"age": 65, "pressure": 130, "heart_rate": 90})

	if len(row) != 4 {
		t.Fatalf("expected 4 values, got %d", len(row))
	}
	if row[0] != 130 || row[3] != 65 {
		t.Fatalf("values out of order: %v", row)
	}
	if !math.IsNaN(row[1]) || !math.IsNaN(row[2]) {
		t.Fatalf("expected NaN for missing features, got %v", row)
	}
	if missing := fs.Missing(PatientRecord{"age": 65, "pressure": 130}); !reflect.DeepEqual(missing, []string{"temperature", "glucose"}) {
		t.Fatalf("unexpected missing list %v", missing)
	}
}

func TestParsePatientRecord(t *testing.T) {
	record, err := ParsePatientRecord(map[string]interface{}{
		"pressure":    130.0,
		"temperature": "38.5",
		"glucose":     nil,
		"smoker":      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record["temperature"] != 38.5 || record["smoker"] != 1 {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["glucose"]; ok {
		t.Fatal("null value must be treated as absent")
	}

	_, err = ParsePatientRecord(map[string]interface{}{"pressure": []int{1}})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	_, err = ParsePatientRecord(map[string]interface{}{"pressure": "high"})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError for non-numeric string, got %v", err)
	}
}

func TestReadCSV(t *testing.T) {
	input := "pressure,temperature,glucose,age,outcome\n120,36.8,95,40,0\n150,,180,70,1\n"
	ds, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Columns) != 5 || len(ds.Rows) != 2 {
		t.Fatalf("unexpected dataset shape: %d columns, %d rows", len(ds.Columns), len(ds.Rows))
	}
	if _, ok := ds.Rows[1]["temperature"]; ok {
		t.Fatal("empty cell must be missing")
	}

	if _, err := ReadCSV(strings.NewReader("a,b\n1,x\n")); !IsValidationError(err) {
		t.Fatalf("expected ValidationError for bad cell, got %v", err)
	}
}

func TestNewDatasetRejectsDuplicateColumns(t *testing.T) {
	if _, err := NewDataset([]string{"age", "age"}, nil); !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := NewDataset(nil, nil); !IsValidationError(err) {
		t.Fatalf("expected ValidationError for empty columns, got %v", err)
	}
}

func TestParsePatientRecordRejectsNamesEqualAfterTrimming(t *testing.T) {
	_, err := ParsePatientRecord(map[string]interface{}{"age": 50.0, " age": 70.0})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError for duplicate trimmed name, got %v", err)
	}
	record, err := ParsePatientRecord(map[string]interface{}{" age ": 70.0})
	if err != nil || record["age"] != 70 {
		t.Fatalf("expected trimmed key, got %v %v", record, err)
	}
}
