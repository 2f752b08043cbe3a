package records

import (
	"time"
)

// Feature names produced by FeatureSnapshot and TrainingDataset.
const (
	FeatureSystolic         = "blood_pressure_systolic"
	FeatureDiastolic        = "blood_pressure_diastolic"
	FeatureHeartRate        = "heart_rate"
	FeatureTemperature      = "temperature"
	FeatureOxygenSaturation = "oxygen_saturation"
	FeatureRespiratoryRate  = "respiratory_rate"
	FeatureGlucose          = "glucose"
	FeatureHemoglobin       = "hemoglobin"
	FeatureWhiteBloodCells  = "white_blood_cells"
	FeatureCreatinine       = "creatinine"
	FeatureSodium           = "sodium"
	FeaturePotassium        = "potassium"
	FeatureAge              = "age"
)

// FeatureColumns fixes the column order of datasets built from records.
var FeatureColumns = []string{
	FeatureSystolic,
	FeatureDiastolic,
	FeatureHeartRate,
	FeatureTemperature,
	FeatureOxygenSaturation,
	FeatureRespiratoryRate,
	FeatureGlucose,
	FeatureHemoglobin,
	FeatureWhiteBloodCells,
	FeatureCreatinine,
	FeatureSodium,
	FeaturePotassium,
	FeatureAge,
}

type Patient struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	Name        string     `gorm:"column:name;size:100;not null" json:"name"`
	Age         *int       `gorm:"column:age" json:"age"`
	Gender      string     `gorm:"column:gender;size:10" json:"gender"`
	SurgeryType string     `gorm:"column:surgery_type;size:100" json:"surgery_type"`
	SurgeryDate *time.Time `gorm:"column:surgery_date" json:"surgery_date"`
	// Complication is the recorded outcome; nil until known.
	Complication *bool     `gorm:"column:complication" json:"complication,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`

	VitalSigns    []VitalSigns   `gorm:"foreignKey:PatientID" json:"vital_signs,omitempty"`
	LabResults    []LabResults   `gorm:"foreignKey:PatientID" json:"lab_results,omitempty"`
	ClinicalNotes []ClinicalNote `gorm:"foreignKey:PatientID" json:"clinical_notes,omitempty"`
}

func (Patient) TableName() string {
	return "patients"
}

type VitalSigns struct {
	ID                     uint      `gorm:"primaryKey;column:id" json:"id"`
	PatientID              uint      `gorm:"column:patient_id;index;not null" json:"patient_id"`
	Timestamp              time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	BloodPressureSystolic  *float64  `gorm:"column:blood_pressure_systolic" json:"blood_pressure_systolic"`
	BloodPressureDiastolic *float64  `gorm:"column:blood_pressure_diastolic" json:"blood_pressure_diastolic"`
	HeartRate              *float64  `gorm:"column:heart_rate" json:"heart_rate"`
	Temperature            *float64  `gorm:"column:temperature" json:"temperature"`
	OxygenSaturation       *float64  `gorm:"column:oxygen_saturation" json:"oxygen_saturation"`
	RespiratoryRate        *float64  `gorm:"column:respiratory_rate" json:"respiratory_rate"`
}

func (VitalSigns) TableName() string {
	return "vital_signs"
}

type LabResults struct {
	ID              uint      `gorm:"primaryKey;column:id" json:"id"`
	PatientID       uint      `gorm:"column:patient_id;index;not null" json:"patient_id"`
	Timestamp       time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Glucose         *float64  `gorm:"column:glucose" json:"glucose"`
	Hemoglobin      *float64  `gorm:"column:hemoglobin" json:"hemoglobin"`
	WhiteBloodCells *float64  `gorm:"column:white_blood_cells" json:"white_blood_cells"`
	Creatinine      *float64  `gorm:"column:creatinine" json:"creatinine"`
	Sodium          *float64  `gorm:"column:sodium" json:"sodium"`
	Potassium       *float64  `gorm:"column:potassium" json:"potassium"`
}

func (LabResults) TableName() string {
	return "lab_results"
}

type ClinicalNote struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	PatientID uint      `gorm:"column:patient_id;index;not null" json:"patient_id"`
	Timestamp time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	NoteType  string    `gorm:"column:note_type;size:50" json:"note_type"`
	Content   string    `gorm:"column:content;type:text" json:"content"`
	Author    string    `gorm:"column:author;size:100" json:"author"`
}

func (ClinicalNote) TableName() string {
	return "clinical_notes"
}

type CreatePatientInput struct {
	Name         string  `json:"name"`
	Age          *int    `json:"age"`
	Gender       string  `json:"gender"`
	SurgeryType  string  `json:"surgery_type"`
	SurgeryDate  *string `json:"surgery_date"`
	Complication *bool   `json:"complication"`
}

type VitalSignsInput struct {
	BloodPressureSystolic  *float64 `json:"blood_pressure_systolic"`
	BloodPressureDiastolic *float64 `json:"blood_pressure_diastolic"`
	HeartRate              *float64 `json:"heart_rate"`
	Temperature            *float64 `json:"temperature"`
	OxygenSaturation       *float64 `json:"oxygen_saturation"`
	RespiratoryRate        *float64 `json:"respiratory_rate"`
}

type LabResultsInput struct {
	Glucose         *float64 `json:"glucose"`
	Hemoglobin      *float64 `json:"hemoglobin"`
	WhiteBloodCells *float64 `json:"white_blood_cells"`
	Creatinine      *float64 `json:"creatinine"`
	Sodium          *float64 `json:"sodium"`
	Potassium       *float64 `json:"potassium"`
}

type ClinicalNoteInput struct {
	NoteType string `json:"note_type"`
	Content  string `json:"content"`
	Author   string `json:"author"`
}
