package records

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
)

// ErrInsufficientData is wrapped in a ValidationError when a patient lacks
// the vitals or labs a prediction needs.
var ErrInsufficientData = errors.New("insufficient data for prediction: vital signs and lab results required")

// FeatureCache is satisfied by storage.FeatureStore.
type FeatureCache interface {
	GetFeatures(ctx context.Context, patientID string) (map[string]float64, bool, error)
	PutFeatures(ctx context.Context, patientID string, features map[string]float64) error
	Invalidate(ctx context.Context, patientID string) error
}

// Latest holds the most recent row of each kind; any may be nil.
type Latest struct {
	VitalSigns   *VitalSigns
	LabResults   *LabResults
	ClinicalNote *ClinicalNote
}

type Service struct {
	store     Store
	cache     FeatureCache
	validator *Validator
}

func NewService(store Store, cache FeatureCache, validator *Validator) *Service {
	if validator == nil {
		validator = NewValidator(nil, nil)
	}
	return &Service{store: store, cache: cache, validator: validator}
}

func (s *Service) CreatePatient(ctx context.Context, in CreatePatientInput) (*Patient, error) {
	patient, err := s.validator.Patient(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePatient(ctx, patient); err != nil {
		return nil, err
	}
	logger.Log.WithField("patient_id", patient.ID).Info("Patient created")
	return patient, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.store.ListPatients(ctx)
}

func (s *Service) GetPatient(ctx context.Context, id uint) (*Patient, error) {
	return s.store.GetPatient(ctx, id, true)
}

func (s *Service) AddVitalSigns(ctx context.Context, patientID uint, in VitalSignsInput) (*VitalSigns, error) {
	if _, err := s.store.GetPatient(ctx, patientID, false); err != nil {
		return nil, err
	}
	if err := s.validator.VitalSigns(in); err != nil {
		return nil, err
	}
	vitals := &VitalSigns{
		PatientID:              patientID,
		Timestamp:              time.Now().UTC(),
		BloodPressureSystolic:  in.BloodPressureSystolic,
		BloodPressureDiastolic: in.BloodPressureDiastolic,
		HeartRate:              in.HeartRate,
		Temperature:            in.Temperature,
		OxygenSaturation:       in.OxygenSaturation,
		RespiratoryRate:        in.RespiratoryRate,
	}
	if err := s.store.AddVitalSigns(ctx, vitals); err != nil {
		return nil, err
	}
	s.invalidate(ctx, patientID)
	return vitals, nil
}

func (s *Service) AddLabResults(ctx context.Context, patientID uint, in LabResultsInput) (*LabResults, error) {
	if _, err := s.store.GetPatient(ctx, patientID, false); err != nil {
		return nil, err
	}
	if err := s.validator.LabResults(in); err != nil {
		return nil, err
	}
	labs := &LabResults{
		PatientID:       patientID,
		Timestamp:       time.Now().UTC(),
		Glucose:         in.Glucose,
		Hemoglobin:      in.Hemoglobin,
		WhiteBloodCells: in.WhiteBloodCells,
		Creatinine:      in.Creatinine,
		Sodium:          in.Sodium,
		Potassium:       in.Potassium,
	}
	if err := s.store.AddLabResults(ctx, labs); err != nil {
		return nil, err
	}
	s.invalidate(ctx, patientID)
	return labs, nil
}

func (s *Service) AddClinicalNote(ctx context.Context, patientID uint, in ClinicalNoteInput) (*ClinicalNote, error) {
	if _, err := s.store.GetPatient(ctx, patientID, false); err != nil {
		return nil, err
	}
	if err := s.validator.ClinicalNote(in); err != nil {
		return nil, err
	}
	note := &ClinicalNote{
		PatientID: patientID,
		Timestamp: time.Now().UTC(),
		NoteType:  in.NoteType,
		Content:   in.Content,
		Author:    in.Author,
	}
	if err := s.store.AddClinicalNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) Latest(ctx context.Context, patientID uint) (Latest, error) {
	var latest Latest
	var err error
	if latest.VitalSigns, err = s.store.LatestVitalSigns(ctx, patientID); err != nil {
		return Latest{}, err
	}
	if latest.LabResults, err = s.store.LatestLabResults(ctx, patientID); err != nil {
		return Latest{}, err
	}
	if latest.ClinicalNote, err = s.store.LatestClinicalNote(ctx, patientID); err != nil {
		return Latest{}, err
	}
	return latest, nil
}

// FeatureSnapshot builds the prediction input from the patient's latest
// vitals, labs and age. Both a vitals and a labs row are required.
func (s *Service) FeatureSnapshot(ctx context.Context, patientID uint) (insights.PatientRecord, error) {
	key := strconv.FormatUint(uint64(patientID), 10)
	if s.cache != nil {
		cached, ok, err := s.cache.GetFeatures(ctx, key)
		if err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("Feature cache read failed")
		} else if ok {
			return insights.PatientRecord(cached), nil
		}
	}

	patient, err := s.store.GetPatient(ctx, patientID, false)
	if err != nil {
		return nil, err
	}
	latest, err := s.Latest(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if latest.VitalSigns == nil || latest.LabResults == nil {
		return nil, insights.NewValidationError(ErrInsufficientData)
	}
	record := buildRecord(patient, latest.VitalSigns, latest.LabResults)

	if s.cache != nil {
		if err := s.cache.PutFeatures(ctx, key, record); err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("Feature cache write failed")
		}
	}
	return record, nil
}

// TrainingDataset assembles one labelled row per patient with a recorded
// outcome, using the latest vitals and labs. Patients with neither are skipped.
func (s *Service) TrainingDataset(ctx context.Context, target string) (insights.Dataset, error) {
	patients, err := s.store.LabelledPatients(ctx)
	if err != nil {
		return insights.Dataset{}, err
	}

	columns := append(append([]string(nil), FeatureColumns...), target)
	ds := insights.Dataset{Columns: columns}
	skipped := 0
	for i := range patients {
		p := &patients[i]
		if p.Complication == nil {
			continue
		}
		var vitals *VitalSigns
		var labs *LabResults
		if n := len(p.VitalSigns); n > 0 {
			vitals = &p.VitalSigns[n-1]
		}
		if n := len(p.LabResults); n > 0 {
			labs = &p.LabResults[n-1]
		}
		if vitals == nil && labs == nil {
			skipped++
			continue
		}
		row := buildRecord(p, vitals, labs)
		row[target] = 0
		if *p.Complication {
			row[target] = 1
		}
		ds.Rows = append(ds.Rows, row)
	}

	logger.Log.WithFields(map[string]interface{}{
		"rows":    len(ds.Rows),
		"skipped": skipped,
	}).Info("Training dataset assembled from records")
	return ds, nil
}

func (s *Service) invalidate(ctx context.Context, patientID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, strconv.FormatUint(uint64(patientID), 10)); err != nil {
		logger.Log.WithError(err).WithField("patient_id", patientID).Warn("Feature cache invalidation failed")
	}
}

func buildRecord(p *Patient, vitals *VitalSigns, labs *LabResults) insights.PatientRecord {
	record := insights.PatientRecord{}
	set := func(name string, value *float64) {
		if value != nil {
			record[name] = *value
		}
	}
	if vitals != nil {
		set(FeatureSystolic, vitals.BloodPressureSystolic)
		set(FeatureDiastolic, vitals.BloodPressureDiastolic)
		set(FeatureHeartRate, vitals.HeartRate)
		set(FeatureTemperature, vitals.Temperature)
		set(FeatureOxygenSaturation, vitals.OxygenSaturation)
		set(FeatureRespiratoryRate, vitals.RespiratoryRate)
	}
	if labs != nil {
		set(FeatureGlucose, labs.Glucose)
		set(FeatureHemoglobin, labs.Hemoglobin)
		set(FeatureWhiteBloodCells, labs.WhiteBloodCells)
		set(FeatureCreatinine, labs.Creatinine)
		set(FeatureSodium, labs.Sodium)
		set(FeaturePotassium, labs.Potassium)
	}
	if p != nil && p.Age != nil {
		record[FeatureAge] = float64(*p.Age)
	}
	return record
}
