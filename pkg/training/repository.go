package training

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("training run not found")

// RunStore records training runs. Service treats a nil store as disabled.
type RunStore interface {
	Create(ctx context.Context, run *RunModel) error
	Complete(ctx context.Context, id uuid.UUID, features datatypes.JSON, metrics map[string]interface{}, artifactPath string) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
	List(ctx context.Context, limit int) ([]RunModel, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RunModel{})
}

func (r *Repository) Create(ctx context.Context, run *RunModel) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repository) Complete(ctx context.Context, id uuid.UUID, features datatypes.JSON, metrics map[string]interface{}, artifactPath string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&RunModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        StatusCompleted,
		"features":      features,
		"metrics":       datatypes.JSONMap(metrics),
		"artifact_path": artifactPath,
		"updated_at":    now,
		"completed_at":  now,
	}).Error
}

func (r *Repository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&RunModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        StatusFailed,
		"error_message": errorMessage,
		"updated_at":    now,
		"completed_at":  now,
	}).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*RunModel, error) {
	var run RunModel
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &run, result.Error
}

func (r *Repository) List(ctx context.Context, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []RunModel
	result := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs)
	return runs, result.Error
}
