package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/cache"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/events"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/metrics"
)

type fakePatientRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*patient.Patient
	nextID   uint64
	purged   []uuid.UUID
	updates  int
	inUse    map[string]bool
	purgeErr error
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: map[uuid.UUID]*patient.Patient{}, inUse: map[string]bool{}}
}

func (r *fakePatientRepo) assignIDs(p *patient.Patient) {
	next := func() uint64 {
		r.nextID++
		return r.nextID
	}
	if p.ID == 0 {
		p.ID = next()
	}
	for _, n := range p.Names {
		if n.ID == 0 {
			n.ID = next()
		}
		n.PatientID = p.ID
	}
	for _, a := range p.Addresses {
		if a.ID == 0 {
			a.ID = next()
		}
		a.PatientID = p.ID
	}
	for _, id := range p.Identifiers {
		if id.ID == 0 {
			id.ID = next()
		}
		id.PatientID = p.ID
	}
	for _, at := range p.Attributes {
		if at.ID == 0 {
			at.ID = next()
		}
		at.PatientID = p.ID
	}
}

func (r *fakePatientRepo) Create(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignIDs(p)
	r.patients[p.UUID] = p
	return nil
}

func (r *fakePatientRepo) GetByUUID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

func (r *fakePatientRepo) Update(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignIDs(p)
	r.patients[p.UUID] = p
	r.updates++
	return nil
}

func (r *fakePatientRepo) Purge(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patients, p.UUID)
	r.purged = append(r.purged, p.UUID)
	return nil
}

func (r *fakePatientRepo) PurgeIdentifier(_ context.Context, p *patient.Patient, id *patient.Identifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.purgeErr != nil {
		return r.purgeErr
	}
	r.assignIDs(p)
	r.patients[p.UUID] = p
	r.purged = append(r.purged, id.UUID)
	return nil
}

func (r *fakePatientRepo) Search(_ context.Context, q patient.SearchQuery) (*patient.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*patient.Patient
	for _, p := range r.patients {
		if p.Voided {
			continue
		}
		if q.Query == "" || strings.Contains(strings.ToLower(p.DisplayString()), strings.ToLower(q.Query)) {
			matched = append(matched, p)
		}
	}
	res := &patient.SearchResult{StartIndex: q.StartIndex, Limit: q.Limit}
	if q.StartIndex < len(matched) {
		end := min(q.StartIndex+q.Limit, len(matched))
		res.Patients = matched[q.StartIndex:end]
		res.HasMore = end < len(matched)
	}
	return res, nil
}

func (r *fakePatientRepo) IdentifierInUse(_ context.Context, typeID uint64, value string, exclude uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inUse[value] {
		return true, nil
	}
	for _, p := range r.patients {
		if p.ID == exclude || p.Voided {
			continue
		}
		for _, id := range p.ActiveIdentifiers() {
			if id.IdentifierTypeID == typeID && id.Identifier == value {
				return true, nil
			}
		}
	}
	return false, nil
}

type fakeMetaRepo struct {
	idTypes   map[uuid.UUID]*patient.IdentifierType
	attrTypes map[uuid.UUID]*patient.PersonAttributeType
}

func newFakeMetaRepo(types ...*patient.IdentifierType) *fakeMetaRepo {
	m := &fakeMetaRepo{
		idTypes:   map[uuid.UUID]*patient.IdentifierType{},
		attrTypes: map[uuid.UUID]*patient.PersonAttributeType{},
	}
	for _, t := range types {
		m.idTypes[t.UUID] = t
	}
	return m
}

func (m *fakeMetaRepo) GetIdentifierType(_ context.Context, id uuid.UUID) (*patient.IdentifierType, error) {
	if t, ok := m.idTypes[id]; ok {
		return t, nil
	}
	return nil, patient.ErrIdentifierTypeNotFound
}

func (m *fakeMetaRepo) ListIdentifierTypes(context.Context) ([]*patient.IdentifierType, error) {
	out := make([]*patient.IdentifierType, 0, len(m.idTypes))
	for _, t := range m.idTypes {
		out = append(out, t)
	}
	return out, nil
}

func (m *fakeMetaRepo) CreateIdentifierType(_ context.Context, t *patient.IdentifierType) error {
	for _, existing := range m.idTypes {
		if existing.Name == t.Name {
			return patient.ErrMetadataExists
		}
	}
	t.ID = uint64(len(m.idTypes) + 1)
	m.idTypes[t.UUID] = t
	return nil
}

func (m *fakeMetaRepo) GetAttributeType(_ context.Context, id uuid.UUID) (*patient.PersonAttributeType, error) {
	if t, ok := m.attrTypes[id]; ok {
		return t, nil
	}
	return nil, patient.ErrAttributeTypeNotFound
}

func (m *fakeMetaRepo) ListAttributeTypes(context.Context) ([]*patient.PersonAttributeType, error) {
	out := make([]*patient.PersonAttributeType, 0, len(m.attrTypes))
	for _, t := range m.attrTypes {
		out = append(out, t)
	}
	return out, nil
}

func (m *fakeMetaRepo) CreateAttributeType(_ context.Context, t *patient.PersonAttributeType) error {
	for _, existing := range m.attrTypes {
		if existing.Name == t.Name {
			return patient.ErrMetadataExists
		}
	}
	t.ID = uint64(len(m.attrTypes) + 1)
	m.attrTypes[t.UUID] = t
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*patient.Patient
	deletes int
}

func newFakeCache() *fakeCache { return &fakeCache{items: map[uuid.UUID]*patient.Patient{}} }

func (c *fakeCache) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.items[id]; ok {
		return p, nil
	}
	return nil, cache.ErrMiss
}

func (c *fakeCache) Set(_ context.Context, p *patient.Patient) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.UUID] = p
	return nil
}

func (c *fakeCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.deletes++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	block   chan struct{}
}

func (r *fakeAuditRepo) Create(_ context.Context, e *domain.AuditLog) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type patientFixture struct {
	svc       *PatientService
	repo      *fakePatientRepo
	meta      *fakeMetaRepo
	cache     *fakeCache
	publisher *fakePublisher
	audit     *fakeAuditRepo
	auditSvc  *AuditService
	metrics   *metrics.Collector
	mrn       *patient.IdentifierType
	oldID     *patient.IdentifierType
}

var testNow = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func newPatientFixture(t *testing.T) *patientFixture {
	t.Helper()
	f := &patientFixture{
		repo:      newFakePatientRepo(),
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		audit:     &fakeAuditRepo{},
		metrics:   metrics.NewCollector(prometheus.NewRegistry(), "test"),
		mrn:       &patient.IdentifierType{ID: 1, UUID: uuid.New(), Name: "MRN", Format: `\d{4}-\d`, Required: true},
		oldID:     &patient.IdentifierType{ID: 2, UUID: uuid.New(), Name: "Old ID"},
	}
	f.meta = newFakeMetaRepo(f.mrn, f.oldID)
	f.auditSvc = NewAuditService(f.audit, zap.NewNop(), f.metrics)
	f.svc = NewPatientService(f.repo, f.meta, f.cache, f.publisher, f.auditSvc, f.metrics,
		config.RESTConfig{BaseURL: "http://test/api/v1", DefaultLimit: 50, MaxLimit: 100}, zap.NewNop())
	f.svc.now = func() time.Time { return testNow }
	return f
}

// drainAudit stops the audit worker so every queued entry is visible.
func (f *patientFixture) drainAudit() {
	f.auditSvc.Shutdown(time.Second)
}

var (
	clerk   = Caller{UserID: uuid.New(), Role: domain.RoleReceptionist, IP: "10.0.0.1", RequestID: "req-1"}
	admin   = Caller{UserID: uuid.New(), Role: domain.RoleAdmin}
	doctor  = Caller{UserID: uuid.New(), Role: domain.RoleDoctor}
	visitor = Caller{UserID: uuid.New(), Role: domain.RolePatient}
)

func (f *patientFixture) createCommand() *patient.CreatePatientCommand {
	birth := time.Date(1985, time.March, 3, 0, 0, 0, 0, time.UTC)
	return &patient.CreatePatientCommand{
		Gender:    patient.GenderFemale,
		Birthdate: &birth,
		Names: []patient.NameInput{
			{GivenName: "Grace", FamilyName: "Hopper"},
		},
		Addresses: []patient.AddressInput{
			{Address1: "1 Navy Way", CityVillage: "Arlington"},
		},
		Identifiers: []patient.IdentifierInput{
			{Identifier: "1000-1", IdentifierType: f.mrn.UUID},
		},
	}
}

func (f *patientFixture) mustCreate(t *testing.T) *patient.Patient {
	t.Helper()
	p, err := f.svc.CreatePatient(context.Background(), f.createCommand(), clerk)
	if err != nil {
		t.Fatalf("creating patient: %v", err)
	}
	return p
}
