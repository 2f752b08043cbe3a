package records

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrPatientNotFound = errors.New("patient not found")

// Store is the persistence surface the service depends on.
type Store interface {
	CreatePatient(ctx context.Context, p *Patient) error
	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatient(ctx context.Context, id uint, withHistory bool) (*Patient, error)
	AddVitalSigns(ctx context.Context, v *VitalSigns) error
	AddLabResults(ctx context.Context, l *LabResults) error
	AddClinicalNote(ctx context.Context, n *ClinicalNote) error
	LatestVitalSigns(ctx context.Context, patientID uint) (*VitalSigns, error)
	LatestLabResults(ctx context.Context, patientID uint) (*LabResults, error)
	LatestClinicalNote(ctx context.Context, patientID uint) (*ClinicalNote, error)
	LabelledPatients(ctx context.Context) ([]Patient, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Patient{}, &VitalSigns{}, &LabResults{}, &ClinicalNote{})
}

func (r *Repository) CreatePatient(ctx context.Context, p *Patient) error {
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) ListPatients(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	err := r.db.WithContext(ctx).Order("id").Find(&patients).Error
	return patients, err
}

func (r *Repository) GetPatient(ctx context.Context, id uint, withHistory bool) (*Patient, error) {
	query := r.db.WithContext(ctx)
	if withHistory {
		query = query.
			Preload("VitalSigns", oldestFirst).
			Preload("LabResults", oldestFirst).
			Preload("ClinicalNotes", oldestFirst)
	}
	var patient Patient
	result := query.First(&patient, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrPatientNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &patient, nil
}

func (r *Repository) AddVitalSigns(ctx context.Context, v *VitalSigns) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *Repository) AddLabResults(ctx context.Context, l *LabResults) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *Repository) AddClinicalNote(ctx context.Context, n *ClinicalNote) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// LatestVitalSigns returns nil without error when the patient has none.
func (r *Repository) LatestVitalSigns(ctx context.Context, patientID uint) (*VitalSigns, error) {
	var v VitalSigns
	return latest(r.db.WithContext(ctx), patientID, &v)
}

func (r *Repository) LatestLabResults(ctx context.Context, patientID uint) (*LabResults, error) {
	var l LabResults
	return latest(r.db.WithContext(ctx), patientID, &l)
}

func (r *Repository) LatestClinicalNote(ctx context.Context, patientID uint) (*ClinicalNote, error) {
	var n ClinicalNote
	return latest(r.db.WithContext(ctx), patientID, &n)
}

func latest[T any](db *gorm.DB, patientID uint, dest *T) (*T, error) {
	result := db.Where("patient_id = ?", patientID).Scopes(newestFirst).Limit(1).Find(dest)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return dest, nil
}

// newestFirst and oldestFirst break timestamp ties by id, so the last row of
// an oldestFirst history is the row latest returns.
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp DESC").Order("id DESC")
}

func oldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp").Order("id")
}

// LabelledPatients returns patients with a recorded outcome and their history.
func (r *Repository) LabelledPatients(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	err := r.db.WithContext(ctx).
		Preload("VitalSigns", oldestFirst).
		Preload("LabResults", oldestFirst).
		Where("complication IS NOT NULL").
		Order("id").
		Find(&patients).Error
	return patients, err
}
