package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hengadev/errsx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/cache"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/events"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/metrics"
)

// DefaultVoidReason is recorded when a void request carries no reason.
const DefaultVoidReason = "web service call"

type PatientCache interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	Set(ctx context.Context, p *patient.Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type PatientService struct {
	repo     patient.Repository
	meta     patient.MetadataRepository
	cache    PatientCache
	events   EventPublisher
	auditSvc *AuditService
	metrics  *metrics.Collector
	paging   config.RESTConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewPatientService(
	repo patient.Repository,
	meta patient.MetadataRepository,
	patientCache PatientCache,
	publisher EventPublisher,
	auditSvc *AuditService,
	m *metrics.Collector,
	paging config.RESTConfig,
	log *zap.Logger,
) *PatientService {
	return &PatientService{
		repo:     repo,
		meta:     meta,
		cache:    patientCache,
		events:   publisher,
		auditSvc: auditSvc,
		metrics:  m,
		paging:   paging,
		log:      log,
		now:      time.Now,
	}
}

func (s *PatientService) CreatePatient(ctx context.Context, cmd *patient.CreatePatientCommand, caller Caller) (p *patient.Patient, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.CreatePatient")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanEditPatients() {
		return nil, ErrForbidden
	}
	if err := validateCreateCommand(cmd, s.now()); err != nil {
		return nil, err
	}

	p = patient.New(caller.UserID)
	p.Gender = cmd.Gender
	p.Birthdate = cmd.Birthdate
	p.BirthdateEstimated = cmd.BirthdateEstimated
	p.Dead = cmd.Dead
	p.DeathDate = cmd.DeathDate
	if cmd.CauseOfDeath != nil {
		p.CauseOfDeath = *cmd.CauseOfDeath
	}
	for _, in := range cmd.Names {
		p.Names = append(p.Names, patient.NewName(in, caller.UserID))
	}
	for _, in := range cmd.Addresses {
		p.Addresses = append(p.Addresses, patient.NewAddress(in, caller.UserID))
	}

	var errs errsx.Map
	types := make(map[uuid.UUID]*patient.IdentifierType)
	seen := make(map[string]bool)
	for i, in := range cmd.Identifiers {
		field := fmt.Sprintf("identifiers[%d]", i)
		t, err := s.identifierType(ctx, types, in.IdentifierType)
		if errors.Is(err, patient.ErrIdentifierTypeNotFound) {
			errs.Set(field, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		id, err := patient.NewIdentifier(in.Identifier, t, in.Preferred, caller.UserID)
		if err != nil {
			errs.Set(field, err)
			continue
		}
		key := fmt.Sprintf("%d/%s", t.ID, id.Identifier)
		if seen[key] {
			errs.Set(field, fmt.Errorf("duplicate identifier %s", id.Display()))
			continue
		}
		seen[key] = true
		p.Identifiers = append(p.Identifiers, id)
	}

	required, err := s.meta.ListIdentifierTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identifier types: %w", err)
	}
	for _, t := range required {
		if t.Required && !hasIdentifierOfType(p.Identifiers, t.ID) {
			errs.Set("identifiers."+t.Name, fmt.Errorf("an identifier of type %s is required", t.Name))
		}
	}

	for i, in := range cmd.Attributes {
		field := fmt.Sprintf("attributes[%d]", i)
		at, err := s.meta.GetAttributeType(ctx, in.AttributeType)
		if errors.Is(err, patient.ErrAttributeTypeNotFound) {
			errs.Set(field, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		attr := patient.NewAttribute(at, in.Value, caller.UserID)
		if attr.Value == "" {
			errs.Set(field, errors.New("value is required"))
			continue
		}
		p.Attributes = append(p.Attributes, attr)
	}

	if err := validationError(errs); err != nil {
		return nil, err
	}

	for _, id := range p.Identifiers {
		if err := s.ensureIdentifierFree(ctx, p, id); err != nil {
			return nil, err
		}
	}

	p.EnsurePreferred()

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	s.metrics.PatientOps.WithLabelValues("create").Inc()
	s.publish(ctx, events.PatientCreated, p.UUID, caller, nil)
	s.audit(ctx, caller, domain.ActionCreate, "patient", p.UUID.String(), nil)

	s.log.Info("patient created",
		zap.String("patient_uuid", p.UUID.String()),
		zap.String("created_by", caller.UserID.String()),
	)

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id uuid.UUID, caller Caller) (p *patient.Patient, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.GetPatient")
	defer func() { endSpan(span, err) }()

	// RBAC: patients can only read their own record
	if !caller.canRead(id) {
		return nil, ErrForbidden
	}

	p, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, domain.ActionRead, "patient", id.String(), nil)
	return p, nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand, caller Caller) (p *patient.Patient, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.UpdatePatient")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanEditPatients() {
		return nil, ErrForbidden
	}

	p, err = s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Voided {
		return nil, patient.ErrPatientVoided
	}

	now := s.now()
	var errs errsx.Map
	var changed []string

	if cmd.Gender != nil {
		if cmd.Gender.IsValid() {
			p.Gender = *cmd.Gender
			changed = append(changed, "gender")
		} else {
			errs.Set("gender", patient.ErrInvalidGender)
		}
	}
	if cmd.Birthdate != nil {
		p.Birthdate = cmd.Birthdate
		changed = append(changed, "birthdate")
	}
	if cmd.BirthdateEstimated != nil {
		p.BirthdateEstimated = *cmd.BirthdateEstimated
		changed = append(changed, "birthdateEstimated")
	}
	if cmd.Dead != nil {
		p.Dead = *cmd.Dead
		if !p.Dead {
			p.DeathDate = nil
			p.CauseOfDeath = patient.ConceptRef{}
		}
		changed = append(changed, "dead")
	}
	if cmd.DeathDate != nil {
		p.DeathDate = cmd.DeathDate
		changed = append(changed, "deathDate")
	}
	if cmd.CauseOfDeath != nil {
		p.CauseOfDeath = *cmd.CauseOfDeath
		changed = append(changed, "causeOfDeath")
	}

	if p.Birthdate != nil && p.Birthdate.After(now) {
		errs.Set("birthdate", errors.New("birthdate cannot be in the future"))
	}
	validateDeath(&errs, p.Dead, p.Birthdate, p.DeathDate, now)
	if !p.Dead && !p.CauseOfDeath.IsZero() {
		errs.Set("causeOfDeath", errors.New("causeOfDeath requires dead to be true"))
	}

	if cmd.PreferredName != nil {
		if err := applyPreferredName(p, *cmd.PreferredName, caller.UserID); err != nil {
			errs.Set("preferredName", err)
		} else {
			changed = append(changed, "preferredName")
		}
	}
	if cmd.PreferredAddress != nil {
		if err := applyPreferredAddress(p, *cmd.PreferredAddress, caller.UserID); err != nil {
			errs.Set("preferredAddress", err)
		} else {
			changed = append(changed, "preferredAddress")
		}
	}
	if cmd.PreferredIdentifier != nil {
		err := s.applyPreferredIdentifier(ctx, p, *cmd.PreferredIdentifier, caller.UserID)
		switch {
		case err == nil:
			changed = append(changed, "preferredIdentifier")
		case isInputError(err):
			errs.Set("preferredIdentifier", err)
		default:
			return nil, err
		}
	}

	if err := validationError(errs); err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return p, nil
	}

	p.Touch(caller.UserID, now)
	if err := s.repo.Update(ctx, p); err != nil {
		s.log.Error("failed to update patient", zap.String("patient_uuid", id.String()), zap.Error(err))
		return nil, fmt.Errorf("updating patient: %w", err)
	}
	s.invalidate(ctx, p.UUID)

	s.metrics.PatientOps.WithLabelValues("update").Inc()
	s.publish(ctx, events.PatientUpdated, p.UUID, caller, map[string]string{"fields": strings.Join(changed, ",")})
	s.audit(ctx, caller, domain.ActionUpdate, "patient", p.UUID.String(), map[string]any{"fields": changed})

	return p, nil
}

// VoidPatient soft-deletes the patient. Voiding an already voided patient
// succeeds without touching it.
func (s *PatientService) VoidPatient(ctx context.Context, id uuid.UUID, reason string, caller Caller) (err error) {
	ctx, span := tracer.Start(ctx, "PatientService.VoidPatient")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanEditPatients() {
		return ErrForbidden
	}

	p, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return err
	}
	if p.Voided {
		return nil
	}

	if strings.TrimSpace(reason) == "" {
		reason = DefaultVoidReason
	}
	if err := p.Void(caller.UserID, reason, s.now()); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		s.log.Error("failed to void patient", zap.String("patient_uuid", id.String()), zap.Error(err))
		return fmt.Errorf("voiding patient: %w", err)
	}
	s.invalidate(ctx, id)

	s.metrics.PatientOps.WithLabelValues("void").Inc()
	s.publish(ctx, events.PatientVoided, id, caller, map[string]string{"reason": reason})
	s.audit(ctx, caller, domain.ActionVoid, "patient", id.String(), map[string]any{"reason": reason})

	s.log.Info("patient voided",
		zap.String("patient_uuid", id.String()),
		zap.String("voided_by", caller.UserID.String()),
	)
	return nil
}

// PurgePatient removes the patient for good. A patient that does not exist
// counts as purged.
func (s *PatientService) PurgePatient(ctx context.Context, id uuid.UUID, caller Caller) (err error) {
	ctx, span := tracer.Start(ctx, "PatientService.PurgePatient")
	defer func() { endSpan(span, err) }()

	if !caller.Role.CanPurge() {
		return ErrForbidden
	}

	p, err := s.repo.GetByUUID(ctx, id)
	if errors.Is(err, patient.ErrPatientNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.repo.Purge(ctx, p); err != nil {
		s.log.Error("failed to purge patient", zap.String("patient_uuid", id.String()), zap.Error(err))
		return fmt.Errorf("purging patient: %w", err)
	}
	s.invalidate(ctx, id)

	s.metrics.PatientOps.WithLabelValues("purge").Inc()
	s.publish(ctx, events.PatientPurged, id, caller, nil)
	s.audit(ctx, caller, domain.ActionPurge, "patient", id.String(), nil)

	s.log.Warn("patient purged",
		zap.String("patient_uuid", id.String()),
		zap.String("purged_by", caller.UserID.String()),
	)
	return nil
}

// SearchPatients matches active identifiers and names. Paging values outside
// the configured bounds are clamped.
func (s *PatientService) SearchPatients(ctx context.Context, q patient.SearchQuery, caller Caller) (res *patient.SearchResult, err error) {
	ctx, span := tracer.Start(ctx, "PatientService.SearchPatients")
	defer func() { endSpan(span, err) }()

	if !caller.Role.IsStaff() {
		return nil, ErrForbidden
	}

	q.Query = strings.TrimSpace(q.Query)
	if q.StartIndex < 0 {
		q.StartIndex = 0
	}
	if q.Limit <= 0 {
		q.Limit = s.paging.DefaultLimit
	}
	if q.Limit > s.paging.MaxLimit {
		q.Limit = s.paging.MaxLimit
	}

	res, err = s.repo.Search(ctx, q)
	if err != nil {
		s.log.Error("patient search failed", zap.Error(err))
		return nil, fmt.Errorf("searching patients: %w", err)
	}

	span.SetAttributes(
		attribute.Int("patient.search.start_index", q.StartIndex),
		attribute.Int("patient.search.results", len(res.Patients)),
	)
	s.audit(ctx, caller, domain.ActionSearch, "patient", "", map[string]any{
		"startIndex": q.StartIndex,
		"results":    len(res.Patients),
	})
	return res, nil
}

// load serves reads through the cache. Writes always go to the repository.
func (s *PatientService) load(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.cache.Get(ctx, id)
	switch {
	case err == nil:
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return p, nil
	case errors.Is(err, cache.ErrMiss):
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		s.metrics.CacheLookups.WithLabelValues("error").Inc()
		s.log.Warn("patient cache read failed", zap.String("patient_uuid", id.String()), zap.Error(err))
	}

	p, err = s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warn("patient cache write failed", zap.String("patient_uuid", id.String()), zap.Error(err))
	}
	return p, nil
}

func (s *PatientService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("patient cache invalidation failed", zap.String("patient_uuid", id.String()), zap.Error(err))
	}
}

func (s *PatientService) identifierType(ctx context.Context, seen map[uuid.UUID]*patient.IdentifierType, id uuid.UUID) (*patient.IdentifierType, error) {
	if t, ok := seen[id]; ok {
		return t, nil
	}
	t, err := s.meta.GetIdentifierType(ctx, id)
	if err != nil {
		return nil, err
	}
	seen[id] = t
	return t, nil
}

// ensureIdentifierFree rejects a value already carried by another active
// identifier of the same type, on this patient or any other.
func (s *PatientService) ensureIdentifierFree(ctx context.Context, p *patient.Patient, id *patient.Identifier) error {
	for _, other := range p.ActiveIdentifiers() {
		if other != id && other.IdentifierTypeID == id.IdentifierTypeID && other.Identifier == id.Identifier {
			return fmt.Errorf("%w: %s", patient.ErrIdentifierInUse, id.Display())
		}
	}
	inUse, err := s.repo.IdentifierInUse(ctx, id.IdentifierTypeID, id.Identifier, p.ID)
	if err != nil {
		return fmt.Errorf("checking identifier uniqueness: %w", err)
	}
	if inUse {
		return fmt.Errorf("%w: %s", patient.ErrIdentifierInUse, id.Display())
	}
	return nil
}

func (s *PatientService) applyPreferredIdentifier(ctx context.Context, p *patient.Patient, in patient.IdentifierInput, by uuid.UUID) error {
	if in.UUID != nil {
		id := p.IdentifierByUUID(*in.UUID)
		if id == nil {
			return patient.ErrIdentifierNotFound
		}
		return p.SetPreferredIdentifier(id)
	}

	t, err := s.meta.GetIdentifierType(ctx, in.IdentifierType)
	if err != nil {
		return err
	}
	id, err := patient.NewIdentifier(in.Identifier, t, true, by)
	if err != nil {
		return err
	}
	if err := s.ensureIdentifierFree(ctx, p, id); err != nil {
		return err
	}
	return p.SetPreferredIdentifier(id)
}

func applyPreferredName(p *patient.Patient, in patient.NameInput, by uuid.UUID) error {
	if in.UUID != nil {
		n := p.NameByUUID(*in.UUID)
		if n == nil {
			return patient.ErrNameNotFound
		}
		return p.SetPreferredName(n)
	}
	if strings.TrimSpace(in.GivenName) == "" && strings.TrimSpace(in.FamilyName) == "" {
		return errors.New("givenName or familyName is required")
	}
	return p.SetPreferredName(patient.NewName(in, by))
}

func applyPreferredAddress(p *patient.Patient, in patient.AddressInput, by uuid.UUID) error {
	if in.UUID != nil {
		a := p.AddressByUUID(*in.UUID)
		if a == nil {
			return patient.ErrAddressNotFound
		}
		return p.SetPreferredAddress(a)
	}
	a := patient.NewAddress(in, by)
	if a.Display() == "" && a.Address2 == "" && a.PostalCode == "" {
		return errors.New("address is empty")
	}
	return p.SetPreferredAddress(a)
}

func (s *PatientService) publish(ctx context.Context, t events.Type, patientUUID uuid.UUID, caller Caller, details map[string]string) {
	ev := events.New(t, patientUUID, caller.UserID, s.now())
	ev.RequestID = caller.RequestID
	ev.Details = details

	if err := s.events.Publish(ctx, ev); err != nil {
		s.metrics.EventsTotal.WithLabelValues(string(t), "failed").Inc()
		s.log.Warn("failed to publish event",
			zap.String("type", string(t)),
			zap.String("patient_uuid", patientUUID.String()),
			zap.Error(err),
		)
		return
	}
	s.metrics.EventsTotal.WithLabelValues(string(t), "published").Inc()
}

func (s *PatientService) audit(ctx context.Context, caller Caller, action domain.AuditAction, resourceType, resourceID string, changes any) {
	entry := AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    caller.IP,
		RequestID:    caller.RequestID,
	}
	if changes != nil {
		if raw, err := json.Marshal(changes); err == nil {
			entry.Changes = string(raw)
		}
	}
	s.auditSvc.LogAsync(ctx, entry)
}

func hasIdentifierOfType(ids []*patient.Identifier, typeID uint64) bool {
	for _, id := range ids {
		if !id.Voided && id.IdentifierTypeID == typeID {
			return true
		}
	}
	return false
}

// isInputError reports whether err describes a bad reference or value in the
// request body rather than a failure of the service.
func isInputError(err error) bool {
	for _, target := range []error{
		patient.ErrIdentifierNotFound,
		patient.ErrIdentifierTypeNotFound,
		patient.ErrIdentifierFormat,
		patient.ErrNameNotFound,
		patient.ErrAddressNotFound,
		patient.ErrPreferredVoided,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validateCreateCommand(cmd *patient.CreatePatientCommand, now time.Time) error {
	var errs errsx.Map

	if !cmd.Gender.IsValid() {
		errs.Set("gender", patient.ErrInvalidGender)
	}
	if cmd.Birthdate != nil && cmd.Birthdate.After(now) {
		errs.Set("birthdate", errors.New("birthdate cannot be in the future"))
	}
	validateDeath(&errs, cmd.Dead, cmd.Birthdate, cmd.DeathDate, now)
	if cmd.CauseOfDeath != nil && !cmd.CauseOfDeath.IsZero() && !cmd.Dead {
		errs.Set("causeOfDeath", errors.New("causeOfDeath requires dead to be true"))
	}

	if len(cmd.Names) == 0 {
		errs.Set("names", errors.New("at least one name is required"))
	}
	for i, n := range cmd.Names {
		if strings.TrimSpace(n.GivenName) == "" && strings.TrimSpace(n.FamilyName) == "" {
			errs.Set(fmt.Sprintf("names[%d]", i), errors.New("givenName or familyName is required"))
		}
	}

	if len(cmd.Identifiers) == 0 {
		errs.Set("identifiers", errors.New("at least one identifier is required"))
	}
	for i, id := range cmd.Identifiers {
		if id.IdentifierType == uuid.Nil {
			errs.Set(fmt.Sprintf("identifiers[%d].identifierType", i), errors.New("identifierType is required"))
		}
	}

	for i, a := range cmd.Attributes {
		if a.AttributeType == uuid.Nil {
			errs.Set(fmt.Sprintf("attributes[%d].attributeType", i), errors.New("attributeType is required"))
		}
	}

	return validationError(errs)
}

func validateDeath(errs *errsx.Map, dead bool, birthdate, deathDate *time.Time, now time.Time) {
	if deathDate == nil {
		return
	}
	switch {
	case !dead:
		errs.Set("deathDate", errors.New("deathDate requires dead to be true"))
	case deathDate.After(now):
		errs.Set("deathDate", errors.New("deathDate cannot be in the future"))
	case birthdate != nil && deathDate.Before(*birthdate):
		errs.Set("deathDate", errors.New("deathDate cannot precede birthdate"))
	}
}
