package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
)

const maxTypeNameLength = 50

// MetadataService manages identifier types and person attribute types.
type MetadataService struct {
	repo     patient.MetadataRepository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewMetadataService(repo patient.MetadataRepository, auditSvc *AuditService, log *zap.Logger) *MetadataService {
	return &MetadataService{repo: repo, auditSvc: auditSvc, log: log}
}

func (s *MetadataService) ListIdentifierTypes(ctx context.Context) ([]*patient.IdentifierType, error) {
	return s.repo.ListIdentifierTypes(ctx)
}

func (s *MetadataService) GetIdentifierType(ctx context.Context, id uuid.UUID) (*patient.IdentifierType, error) {
	return s.repo.GetIdentifierType(ctx, id)
}

func (s *MetadataService) CreateIdentifierType(ctx context.Context, cmd patient.CreateIdentifierTypeCommand, caller Caller) (t *patient.IdentifierType, err error) {
	ctx, span := tracer.Start(ctx, "MetadataService.CreateIdentifierType")
	defer func() { endSpan(span, err) }()

	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	var errs errsx.Map
	validateTypeName(&errs, cmd.Name)
	validateFormat(&errs, cmd.Format)
	if err := validationError(errs); err != nil {
		return nil, err
	}

	t = &patient.IdentifierType{
		UUID:        uuid.New(),
		Name:        strings.TrimSpace(cmd.Name),
		Description: strings.TrimSpace(cmd.Description),
		Format:      strings.TrimSpace(cmd.Format),
		Required:    cmd.Required,
		AuditInfo:   patient.AuditInfo{CreatedBy: caller.UserID},
	}
	if err := s.repo.CreateIdentifierType(ctx, t); err != nil {
		if errors.Is(err, patient.ErrMetadataExists) {
			return nil, err
		}
		s.log.Error("failed to create identifier type", zap.Error(err))
		return nil, fmt.Errorf("creating identifier type: %w", err)
	}

	s.audit(ctx, caller, "patient_identifier_type", t.UUID.String())
	s.log.Info("identifier type created", zap.String("name", t.Name), zap.Bool("required", t.Required))
	return t, nil
}

func (s *MetadataService) ListAttributeTypes(ctx context.Context) ([]*patient.PersonAttributeType, error) {
	return s.repo.ListAttributeTypes(ctx)
}

func (s *MetadataService) GetAttributeType(ctx context.Context, id uuid.UUID) (*patient.PersonAttributeType, error) {
	return s.repo.GetAttributeType(ctx, id)
}

func (s *MetadataService) CreateAttributeType(ctx context.Context, cmd patient.CreateAttributeTypeCommand, caller Caller) (t *patient.PersonAttributeType, err error) {
	ctx, span := tracer.Start(ctx, "MetadataService.CreateAttributeType")
	defer func() { endSpan(span, err) }()

	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	var errs errsx.Map
	validateTypeName(&errs, cmd.Name)
	if err := validationError(errs); err != nil {
		return nil, err
	}

	t = &patient.PersonAttributeType{
		UUID:        uuid.New(),
		Name:        strings.TrimSpace(cmd.Name),
		Description: strings.TrimSpace(cmd.Description),
		Format:      strings.TrimSpace(cmd.Format),
		Searchable:  cmd.Searchable,
		AuditInfo:   patient.AuditInfo{CreatedBy: caller.UserID},
	}
	if err := s.repo.CreateAttributeType(ctx, t); err != nil {
		if errors.Is(err, patient.ErrMetadataExists) {
			return nil, err
		}
		s.log.Error("failed to create attribute type", zap.Error(err))
		return nil, fmt.Errorf("creating attribute type: %w", err)
	}

	s.audit(ctx, caller, "person_attribute_type", t.UUID.String())
	return t, nil
}

func (s *MetadataService) audit(ctx context.Context, caller Caller, resourceType, resourceID string) {
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    caller.IP,
		RequestID:    caller.RequestID,
	})
}

func validateTypeName(errs *errsx.Map, name string) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		errs.Set("name", errors.New("name is required"))
	case len(name) > maxTypeNameLength:
		errs.Set("name", fmt.Errorf("name must be at most %d characters", maxTypeNameLength))
	}
}

func validateFormat(errs *errsx.Map, format string) {
	if strings.TrimSpace(format) == "" {
		return
	}
	if _, err := patient.CompileFormat(strings.TrimSpace(format)); err != nil {
		errs.Set("format", fmt.Errorf("format is not a valid regular expression: %w", err))
	}
}
