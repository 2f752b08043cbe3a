package records

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/synaptica-ai/clinical-insights/pkg/insights"
)

var (
	errMissingName    = errors.New("name required")
	errEmptyReading   = errors.New("at least one measurement required")
	errMissingContent = errors.New("content required")
)

type bounds struct {
	min, max float64
}

// Physiologically plausible ranges; values outside are data-entry errors.
var measurementBounds = map[string]bounds{
	FeatureSystolic:         {40, 300},
	FeatureDiastolic:        {20, 200},
	FeatureHeartRate:        {20, 300},
	FeatureTemperature:      {25, 45},
	FeatureOxygenSaturation: {0, 100},
	FeatureRespiratoryRate:  {1, 80},
	FeatureGlucose:          {10, 2000},
	FeatureHemoglobin:       {1, 30},
	FeatureWhiteBloodCells:  {0, 500},
	FeatureCreatinine:       {0, 30},
	FeatureSodium:           {80, 200},
	FeaturePotassium:        {1, 10},
}

type Validator struct {
	genders   map[string]struct{}
	noteTypes map[string]struct{}
}

// NewValidator restricts gender and note type to the given values; empty
// lists accept anything.
func NewValidator(genders, noteTypes []string) *Validator {
	return &Validator{genders: toSet(genders), noteTypes: toSet(noteTypes)}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, v := range values {
		if trimmed := strings.TrimSpace(strings.ToLower(v)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func (v *Validator) Patient(in CreatePatientInput) (*Patient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, insights.NewValidationError(errMissingName)
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 150) {
		return nil, insights.NewValidationError(fmt.Errorf("age %d out of range", *in.Age))
	}
	gender := strings.TrimSpace(in.Gender)
	if gender != "" && len(v.genders) > 0 {
		if _, ok := v.genders[strings.ToLower(gender)]; !ok {
			return nil, insights.NewValidationError(fmt.Errorf("gender '%s' not allowed", gender))
		}
	}

	p := &Patient{
		Name:         name,
		Age:          in.Age,
		Gender:       gender,
		SurgeryType:  strings.TrimSpace(in.SurgeryType),
		Complication: in.Complication,
	}
	if in.SurgeryDate != nil && strings.TrimSpace(*in.SurgeryDate) != "" {
		date, err := parseDate(*in.SurgeryDate)
		if err != nil {
			return nil, insights.NewValidationError(err)
		}
		p.SurgeryDate = &date
	}
	return p, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("surgery_date %q is not an ISO-8601 date", value)
}

func (v *Validator) VitalSigns(in VitalSignsInput) error {
	return checkMeasurements(map[string]*float64{
		FeatureSystolic:         in.BloodPressureSystolic,
		FeatureDiastolic:        in.BloodPressureDiastolic,
		FeatureHeartRate:        in.HeartRate,
		FeatureTemperature:      in.Temperature,
		FeatureOxygenSaturation: in.OxygenSaturation,
		FeatureRespiratoryRate:  in.RespiratoryRate,
	})
}

func (v *Validator) LabResults(in LabResultsInput) error {
	return checkMeasurements(map[string]*float64{
		FeatureGlucose:         in.Glucose,
		FeatureHemoglobin:      in.Hemoglobin,
		FeatureWhiteBloodCells: in.WhiteBloodCells,
		FeatureCreatinine:      in.Creatinine,
		FeatureSodium:          in.Sodium,
		FeaturePotassium:       in.Potassium,
	})
}

func checkMeasurements(values map[string]*float64) error {
	present := 0
	for _, name := range FeatureColumns {
		value, ok := values[name]
		if !ok || value == nil {
			continue
		}
		present++
		if math.IsNaN(*value) || math.IsInf(*value, 0) {
			return insights.NewValidationError(fmt.Errorf("%s must be finite", name))
		}
		if b, ok := measurementBounds[name]; ok && (*value < b.min || *value > b.max) {
			return insights.NewValidationError(fmt.Errorf("%s %g outside [%g, %g]", name, *value, b.min, b.max))
		}
	}
	if present == 0 {
		return insights.NewValidationError(errEmptyReading)
	}
	return nil
}

func (v *Validator) ClinicalNote(in ClinicalNoteInput) error {
	if strings.TrimSpace(in.Content) == "" {
		return insights.NewValidationError(errMissingContent)
	}
	noteType := strings.TrimSpace(strings.ToLower(in.NoteType))
	if noteType != "" && len(v.noteTypes) > 0 {
		if _, ok := v.noteTypes[noteType]; !ok {
			return insights.NewValidationError(fmt.Errorf("note_type '%s' not supported", in.NoteType))
		}
	}
	return nil
}
