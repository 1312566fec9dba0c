package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
)

type MetadataRepository struct {
	db *gorm.DB
}

var _ patient.MetadataRepository = (*MetadataRepository)(nil)

func NewMetadataRepository(db *gorm.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

func (r *MetadataRepository) GetIdentifierType(ctx context.Context, id uuid.UUID) (*patient.IdentifierType, error) {
	var t patient.IdentifierType
	if err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, patient.ErrIdentifierTypeNotFound
		}
		return nil, fmt.Errorf("loading identifier type %s: %w", id, err)
	}
	return &t, nil
}

func (r *MetadataRepository) ListIdentifierTypes(ctx context.Context) ([]*patient.IdentifierType, error) {
	var types []*patient.IdentifierType
	if err := r.db.WithContext(ctx).Order("name").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("listing identifier types: %w", err)
	}
	return types, nil
}

func (r *MetadataRepository) CreateIdentifierType(ctx context.Context, t *patient.IdentifierType) error {
	return createType(ctx, r.db, t)
}

func (r *MetadataRepository) GetAttributeType(ctx context.Context, id uuid.UUID) (*patient.PersonAttributeType, error) {
	var t patient.PersonAttributeType
	if err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, patient.ErrAttributeTypeNotFound
		}
		return nil, fmt.Errorf("loading attribute type %s: %w", id, err)
	}
	return &t, nil
}

func (r *MetadataRepository) ListAttributeTypes(ctx context.Context) ([]*patient.PersonAttributeType, error) {
	var types []*patient.PersonAttributeType
	if err := r.db.WithContext(ctx).Order("name").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("listing attribute types: %w", err)
	}
	return types, nil
}

func (r *MetadataRepository) CreateAttributeType(ctx context.Context, t *patient.PersonAttributeType) error {
	return createType(ctx, r.db, t)
}

func createType(ctx context.Context, db *gorm.DB, t any) error {
	err := db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return patient.ErrMetadataExists
	}
	return err
}
