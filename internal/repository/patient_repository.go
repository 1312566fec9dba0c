package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
)

// PatientRepository persists the patient aggregate. The patient row and the
// rows it owns are always written in one transaction.
type PatientRepository struct {
	db *gorm.DB
}

var _ patient.Repository = (*PatientRepository)(nil)

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return fmt.Errorf("inserting patient: %w", err)
		}
		return saveMembers(tx, p)
	})
	return translateIdentifierErr(err)
}

func (r *PatientRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := preloadAggregate(r.db.WithContext(ctx)).
		Where("uuid = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, patient.ErrPatientNotFound
		}
		return nil, fmt.Errorf("loading patient %s: %w", id, err)
	}
	return &p, nil
}

func (r *PatientRepository) Update(ctx context.Context, p *patient.Patient) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return fmt.Errorf("updating patient: %w", err)
		}
		return saveMembers(tx, p)
	})
	return translateIdentifierErr(err)
}

func (r *PatientRepository) Purge(ctx context.Context, p *patient.Patient) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := []any{
			&patient.PersonAttribute{},
			&patient.Identifier{},
			&patient.PersonAddress{},
			&patient.PersonName{},
		}
		for _, model := range owned {
			if err := tx.Where("patient_id = ?", p.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("purging patient members: %w", err)
			}
		}
		if err := tx.Delete(&patient.Patient{}, p.ID).Error; err != nil {
			return fmt.Errorf("purging patient: %w", err)
		}
		return nil
	})
}

// PurgeIdentifier deletes id and saves p, which no longer holds it, in the
// same transaction so a moved preferred mark is never lost.
func (r *PatientRepository) PurgeIdentifier(ctx context.Context, p *patient.Patient, id *patient.Identifier) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&patient.Identifier{}, id.ID).Error; err != nil {
			return fmt.Errorf("purging identifier %s: %w", id.UUID, err)
		}
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return fmt.Errorf("updating patient: %w", err)
		}
		return saveMembers(tx, p)
	})
	return translateIdentifierErr(err)
}

// Search matches q against active identifiers and active names. One extra
// row is fetched to tell whether another page exists.
func (r *PatientRepository) Search(ctx context.Context, q patient.SearchQuery) (*patient.SearchResult, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&patient.Patient{}).Where("voided = ?", false)

	if term := strings.TrimSpace(q.Query); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		byIdentifier := db.Model(&patient.Identifier{}).
			Select("patient_id").
			Where("voided = ? AND identifier ILIKE ?", false, pattern)
		byName := db.Model(&patient.PersonName{}).
			Select("patient_id").
			Where("voided = ? AND search_name ILIKE ?", false, pattern)
		query = query.Where("(id IN (?) OR id IN (?))", byIdentifier, byName)
	}

	var found []*patient.Patient
	err := preloadAggregate(query).
		Order("id").
		Offset(q.StartIndex).
		Limit(q.Limit + 1).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("searching patients: %w", err)
	}

	res := &patient.SearchResult{StartIndex: q.StartIndex, Limit: q.Limit}
	if len(found) > q.Limit {
		res.HasMore = true
		found = found[:q.Limit]
	}
	res.Patients = found
	return res, nil
}

func (r *PatientRepository) IdentifierInUse(ctx context.Context, typeID uint64, value string, excludePatientID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table("clinical.patient_identifiers AS i").
		Joins("JOIN clinical.patients AS p ON p.id = i.patient_id").
		Where("i.identifier_type_id = ? AND i.identifier = ?", typeID, value).
		Where("i.voided = ? AND p.voided = ? AND i.patient_id <> ?", false, false, excludePatientID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking identifier uniqueness: %w", err)
	}
	return n > 0, nil
}

func preloadAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Names", orderByID).
		Preload("Addresses", orderByID).
		Preload("Identifiers", orderByID).
		Preload("Identifiers.IdentifierType").
		Preload("Attributes", orderByID).
		Preload("Attributes.AttributeType")
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

// saveMembers inserts new members in batches and rewrites existing ones.
func saveMembers(tx *gorm.DB, p *patient.Patient) error {
	if err := saveAll(tx, p.ID, p.Names, func(n *patient.PersonName) *uint64 { return &n.PatientID }, (*patient.PersonName).IsNew); err != nil {
		return fmt.Errorf("saving names: %w", err)
	}
	if err := saveAll(tx, p.ID, p.Addresses, func(a *patient.PersonAddress) *uint64 { return &a.PatientID }, (*patient.PersonAddress).IsNew); err != nil {
		return fmt.Errorf("saving addresses: %w", err)
	}
	if err := saveAll(tx, p.ID, p.Identifiers, func(i *patient.Identifier) *uint64 { return &i.PatientID }, (*patient.Identifier).IsNew); err != nil {
		return fmt.Errorf("saving identifiers: %w", err)
	}
	if err := saveAll(tx, p.ID, p.Attributes, func(a *patient.PersonAttribute) *uint64 { return &a.PatientID }, (*patient.PersonAttribute).IsNew); err != nil {
		return fmt.Errorf("saving attributes: %w", err)
	}
	return nil
}

func saveAll[T any](tx *gorm.DB, patientID uint64, items []*T, owner func(*T) *uint64, isNew func(*T) bool) error {
	var fresh []*T
	for _, it := range items {
		*owner(it) = patientID
		if isNew(it) {
			fresh = append(fresh, it)
			continue
		}
		if err := tx.Omit(clause.Associations).Save(it).Error; err != nil {
			return err
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&fresh).Error
}

// translateIdentifierErr maps the partial unique index on active identifiers
// to the domain error.
func translateIdentifierErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", patient.ErrIdentifierInUse, err)
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
