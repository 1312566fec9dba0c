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
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/events"
)

const identifierResource = "patient_identifier"

// ListIdentifiers returns the patient with its active identifiers.
func (s *PatientService) ListIdentifiers(ctx context.Context, patientID uuid.UUID, caller Caller) (p *patient.Patient, ids []*patient.Identifier, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.ListIdentifiers")
	defer func() { endSpan(span, err) }()

	if !caller.canRead(patientID) {
		return nil, nil, ErrForbidden
	}
	p, err = s.load(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}

	s.audit(ctx, caller, domain.ActionRead, identifierResource, patientID.String(), nil)
	return p, p.ActiveIdentifiers(), nil
}

func (s *PatientService) GetIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, caller Caller) (p *patient.Patient, id *patient.Identifier, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.GetIdentifier")
	defer func() { endSpan(span, err) }()

	if !caller.canRead(patientID) {
		return nil, nil, ErrForbidden
	}
	p, err = s.load(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	id = p.IdentifierByUUID(identifierID)
	if id == nil {
		return nil, nil, patient.ErrIdentifierNotFound
	}

	s.audit(ctx, caller, domain.ActionRead, identifierResource, identifierID.String(), nil)
	return p, id, nil
}

// AddIdentifier attaches a new identifier. A preferred one takes the mark
// from the current preferred identifier.
func (s *PatientService) AddIdentifier(ctx context.Context, patientID uuid.UUID, in patient.IdentifierInput, caller Caller) (p *patient.Patient, id *patient.Identifier, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.AddIdentifier")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanEditPatients() {
		return nil, nil, ErrForbidden
	}

	p, err = s.editable(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}

	var errs errsx.Map
	var t *patient.IdentifierType
	if in.IdentifierType == uuid.Nil {
		errs.Set("identifierType", errors.New("identifierType is required"))
	} else {
		t, err = s.meta.GetIdentifierType(ctx, in.IdentifierType)
		if errors.Is(err, patient.ErrIdentifierTypeNotFound) {
			errs.Set("identifierType", err)
		} else if err != nil {
			return nil, nil, err
		}
	}
	if t != nil {
		id, err = patient.NewIdentifier(in.Identifier, t, in.Preferred, caller.UserID)
		if err != nil {
			errs.Set("identifier", err)
		}
	}
	if err := validationError(errs); err != nil {
		return nil, nil, err
	}

	if err := s.ensureIdentifierFree(ctx, p, id); err != nil {
		return nil, nil, err
	}

	id.PatientID = p.ID
	if id.Preferred {
		if err := p.SetPreferredIdentifier(id); err != nil {
			return nil, nil, err
		}
	} else {
		p.Identifiers = append(p.Identifiers, id)
	}

	if err := s.saveIdentifierChange(ctx, p, id, caller, "create"); err != nil {
		return nil, nil, err
	}
	s.audit(ctx, caller, domain.ActionCreate, identifierResource, id.UUID.String(), map[string]any{"patient": patientID.String()})
	return p, id, nil
}

// UpdateIdentifier edits value, type or the preferred mark of one identifier.
func (s *PatientService) UpdateIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, cmd patient.UpdateIdentifierCommand, caller Caller) (p *patient.Patient, id *patient.Identifier, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.UpdateIdentifier")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanEditPatients() {
		return nil, nil, ErrForbidden
	}

	p, err = s.editable(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	id = p.IdentifierByUUID(identifierID)
	if id == nil {
		return nil, nil, patient.ErrIdentifierNotFound
	}
	if id.Voided {
		return nil, nil, patient.ErrIdentifierVoided
	}

	var errs errsx.Map
	var changed []string
	if cmd.Identifier != nil || cmd.IdentifierType != nil {
		t := id.IdentifierType
		if cmd.IdentifierType != nil {
			t, err = s.meta.GetIdentifierType(ctx, *cmd.IdentifierType)
			if errors.Is(err, patient.ErrIdentifierTypeNotFound) {
				errs.Set("identifierType", err)
			} else if err != nil {
				return nil, nil, err
			}
			changed = append(changed, "identifierType")
		}
		value := id.Identifier
		if cmd.Identifier != nil {
			value = *cmd.Identifier
			changed = append(changed, "identifier")
		}
		if t == nil && len(errs) == 0 {
			return nil, nil, fmt.Errorf("identifier %s has no type loaded", id.UUID)
		}
		if t != nil {
			if err := id.Assign(value, t); err != nil {
				errs.Set("identifier", err)
			}
		}
	}
	if err := validationError(errs); err != nil {
		return nil, nil, err
	}
	if err := s.ensureIdentifierFree(ctx, p, id); err != nil {
		return nil, nil, err
	}

	if cmd.Preferred != nil {
		if *cmd.Preferred {
			if err := p.SetPreferredIdentifier(id); err != nil {
				return nil, nil, err
			}
		} else {
			id.SetPreferred(false)
		}
		changed = append(changed, "preferred")
	}
	if len(changed) == 0 {
		return p, id, nil
	}

	id.Touch(caller.UserID, s.now())
	if err := s.saveIdentifierChange(ctx, p, id, caller, "update"); err != nil {
		return nil, nil, err
	}
	s.audit(ctx, caller, domain.ActionUpdate, identifierResource, id.UUID.String(), map[string]any{"fields": changed})
	return p, id, nil
}

// VoidIdentifier soft-deletes one identifier. It is idempotent and refuses to
// void the last active identifier.
func (s *PatientService) VoidIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, reason string, caller Caller) (err error) {
	ctx, span := tracer.Start(ctx, "PatientService.VoidIdentifier")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanEditPatients() {
		return ErrForbidden
	}

	p, err := s.repo.GetByUUID(ctx, patientID)
	if err != nil {
		return err
	}
	id := p.IdentifierByUUID(identifierID)
	if id == nil {
		return patient.ErrIdentifierNotFound
	}
	if id.Voided {
		return nil
	}

	if strings.TrimSpace(reason) == "" {
		reason = DefaultVoidReason
	}
	if err := p.VoidIdentifier(id, caller.UserID, reason, s.now()); err != nil {
		return err
	}

	if err := s.saveIdentifierChange(ctx, p, id, caller, "void"); err != nil {
		return err
	}
	s.audit(ctx, caller, domain.ActionVoid, identifierResource, identifierID.String(), map[string]any{"reason": reason})
	return nil
}

// PurgeIdentifier deletes one identifier row. A missing identifier counts as
// purged.
func (s *PatientService) PurgeIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, caller Caller) (err error) {
	ctx, span := tracer.Start(ctx, "PatientService.PurgeIdentifier")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanPurge() {
		return ErrForbidden
	}

	p, err := s.repo.GetByUUID(ctx, patientID)
	if err != nil {
		return err
	}
	id := p.IdentifierByUUID(identifierID)
	if id == nil {
		return nil
	}
	if err := p.RemoveIdentifier(id); err != nil {
		return err
	}

	// The preferred mark may have moved to another identifier.
	p.Touch(caller.UserID, s.now())
	if err := s.repo.PurgeIdentifier(ctx, p, id); err != nil {
		s.log.Error("failed to purge identifier", zap.String("identifier_uuid", identifierID.String()), zap.Error(err))
		return fmt.Errorf("purging identifier: %w", err)
	}
	s.identifierChanged(ctx, p, id, caller, "purge")
	s.audit(ctx, caller, domain.ActionPurge, identifierResource, identifierID.String(), nil)
	return nil
}

// editable loads the aggregate for a write, bypassing the cache.
func (s *PatientService) editable(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Voided {
		return nil, patient.ErrPatientVoided
	}
	return p, nil
}

func (s *PatientService) saveIdentifierChange(ctx context.Context, p *patient.Patient, id *patient.Identifier, caller Caller, op string) error {
	p.Touch(caller.UserID, s.now())
	if err := s.repo.Update(ctx, p); err != nil {
		s.log.Error("failed to save identifier change",
			zap.String("op", op),
			zap.String("identifier_uuid", id.UUID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("saving identifier: %w", err)
	}
	s.identifierChanged(ctx, p, id, caller, op)
	return nil
}

func (s *PatientService) identifierChanged(ctx context.Context, p *patient.Patient, id *patient.Identifier, caller Caller, op string) {
	s.invalidate(ctx, p.UUID)

	s.metrics.IdentifierOps.WithLabelValues(op).Inc()
	s.publish(ctx, events.IdentifierChanged, p.UUID, caller, map[string]string{
		"identifier": id.UUID.String(),
		"op":         op,
	})
}
