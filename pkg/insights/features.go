package insights

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FeatureSet is the ordered list of classifier inputs. The classifier is
// order-sensitive, so training and inference both go through Align.
type FeatureSet []string

// PatientRecord maps feature names to values; absent keys are missing.
type PatientRecord map[string]float64

// DeriveFeatureSet keeps every column except the target, in column order.
func DeriveFeatureSet(columns []string, target string) (FeatureSet, error) {
	found := false
	features := make(FeatureSet, 0, len(columns))
	for _, column := range columns {
		if column == target {
			found = true
			continue
		}
		features = append(features, column)
	}
	if !found {
		return nil, ConfigurationError{reason: fmt.Errorf("target column %q not present in dataset", target)}
	}
	if len(features) == 0 {
		return nil, ConfigurationError{reason: fmt.Errorf("no feature columns besides target %q", target)}
	}
	return features, nil
}

// Align returns one value per feature in set order, NaN where the record has
// no value. Keys outside the set are ignored.
func (fs FeatureSet) Align(record PatientRecord) []float64 {
	row := make([]float64, len(fs))
	for i, name := range fs {
		value, ok := record[name]
		if !ok {
			row[i] = math.NaN()
			continue
		}
		row[i] = value
	}
	return row
}

// Clone returns a copy callers may mutate.
func (fs FeatureSet) Clone() FeatureSet {
	return append(FeatureSet(nil), fs...)
}

// Missing lists the features the record does not provide.
func (fs FeatureSet) Missing(record PatientRecord) []string {
	var missing []string
	for _, name := range fs {
		if _, ok := record[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// ParsePatientRecord validates a decoded JSON object into a PatientRecord.
// Nulls are treated as absent; anything non-numeric or non-finite is rejected.
func ParsePatientRecord(raw map[string]interface{}) (PatientRecord, error) {
	record := make(PatientRecord, len(raw))
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		name := strings.TrimSpace(key)
		if name == "" {
			return nil, ValidationError{reason: fmt.Errorf("feature name must not be empty")}
		}
		if _, dup := seen[name]; dup {
			return nil, ValidationError{reason: fmt.Errorf("feature %q given more than once", name)}
		}
		seen[name] = struct{}{}
		value := raw[key]
		if value == nil {
			continue
		}
		f, err := toFloat(value)
		if err != nil {
			return nil, ValidationError{reason: fmt.Errorf("feature %q: %w", name, err)}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ValidationError{reason: fmt.Errorf("feature %q must be finite", name)}
		}
		record[name] = f
	}
	return record, nil
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}
