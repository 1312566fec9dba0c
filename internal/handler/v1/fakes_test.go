package v1

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/representation"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/service"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testBaseURL = "http://localhost:8080/api/v1"

var (
	doctorID = uuid.MustParse("9a1f2c7e-0d55-4e43-8d8a-0f6a1d2b3c4d")
	adminID  = uuid.MustParse("5b8e1d2a-7c3f-4a9e-b1d0-6e2f3a4b5c6d")
)

// fakeTokens accepts a fixed set of bearer tokens.
type fakeTokens map[string]*domain.Claims

func (f fakeTokens) ValidateAccessToken(token string) (*domain.Claims, error) {
	if c, ok := f[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

var testTokens = fakeTokens{
	"doctor": {UserID: doctorID, Email: "doc@clinic.test", Role: domain.RoleDoctor},
	"nurse":  {UserID: uuid.New(), Email: "nurse@clinic.test", Role: domain.RoleNurse},
	"admin":  {UserID: adminID, Email: "admin@clinic.test", Role: domain.RoleAdmin},
}

type fakePatientService struct {
	err     error
	patient *patient.Patient
	result  *patient.SearchResult

	caller     service.Caller
	createCmd  *patient.CreatePatientCommand
	updateCmd  *patient.UpdatePatientCommand
	searchQ    patient.SearchQuery
	identInput patient.IdentifierInput
	identCmd   patient.UpdateIdentifierCommand
	reason     string
	voided     bool
	purged     bool
}

func (f *fakePatientService) CreatePatient(_ context.Context, cmd *patient.CreatePatientCommand, caller service.Caller) (*patient.Patient, error) {
	f.caller, f.createCmd = caller, cmd
	return f.patient, f.err
}

func (f *fakePatientService) GetPatient(_ context.Context, _ uuid.UUID, caller service.Caller) (*patient.Patient, error) {
	f.caller = caller
	if f.err != nil {
		return nil, f.err
	}
	return f.patient, nil
}

func (f *fakePatientService) UpdatePatient(_ context.Context, _ uuid.UUID, cmd *patient.UpdatePatientCommand, caller service.Caller) (*patient.Patient, error) {
	f.caller, f.updateCmd = caller, cmd
	return f.patient, f.err
}

func (f *fakePatientService) VoidPatient(_ context.Context, _ uuid.UUID, reason string, caller service.Caller) error {
	f.caller, f.reason, f.voided = caller, reason, true
	return f.err
}

func (f *fakePatientService) PurgePatient(_ context.Context, _ uuid.UUID, caller service.Caller) error {
	f.caller, f.purged = caller, true
	return f.err
}

func (f *fakePatientService) SearchPatients(_ context.Context, q patient.SearchQuery, caller service.Caller) (*patient.SearchResult, error) {
	f.caller, f.searchQ = caller, q
	return f.result, f.err
}

func (f *fakePatientService) ListIdentifiers(_ context.Context, _ uuid.UUID, caller service.Caller) (*patient.Patient, []*patient.Identifier, error) {
	f.caller = caller
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.patient, f.patient.ActiveIdentifiers(), nil
}

func (f *fakePatientService) GetIdentifier(_ context.Context, _, identifierID uuid.UUID, caller service.Caller) (*patient.Patient, *patient.Identifier, error) {
	f.caller = caller
	if f.err != nil {
		return nil, nil, f.err
	}
	id := f.patient.IdentifierByUUID(identifierID)
	if id == nil {
		return nil, nil, patient.ErrIdentifierNotFound
	}
	return f.patient, id, nil
}

func (f *fakePatientService) AddIdentifier(_ context.Context, _ uuid.UUID, in patient.IdentifierInput, caller service.Caller) (*patient.Patient, *patient.Identifier, error) {
	f.caller, f.identInput = caller, in
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.patient, f.patient.Identifiers[0], nil
}

func (f *fakePatientService) UpdateIdentifier(_ context.Context, _, _ uuid.UUID, cmd patient.UpdateIdentifierCommand, caller service.Caller) (*patient.Patient, *patient.Identifier, error) {
	f.caller, f.identCmd = caller, cmd
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.patient, f.patient.Identifiers[0], nil
}

func (f *fakePatientService) VoidIdentifier(_ context.Context, _, _ uuid.UUID, reason string, caller service.Caller) error {
	f.caller, f.reason, f.voided = caller, reason, true
	return f.err
}

func (f *fakePatientService) PurgeIdentifier(_ context.Context, _, _ uuid.UUID, caller service.Caller) error {
	f.caller, f.purged = caller, true
	return f.err
}

type fakeMetadataService struct {
	err             error
	identifierTypes []*patient.IdentifierType
	attributeTypes  []*patient.PersonAttributeType

	createdIdentifierType patient.CreateIdentifierTypeCommand
	createdAttributeType  patient.CreateAttributeTypeCommand
}

func (f *fakeMetadataService) ListIdentifierTypes(context.Context) ([]*patient.IdentifierType, error) {
	return f.identifierTypes, f.err
}

func (f *fakeMetadataService) GetIdentifierType(_ context.Context, id uuid.UUID) (*patient.IdentifierType, error) {
	for _, t := range f.identifierTypes {
		if t.UUID == id {
			return t, nil
		}
	}
	return nil, patient.ErrIdentifierTypeNotFound
}

func (f *fakeMetadataService) CreateIdentifierType(_ context.Context, cmd patient.CreateIdentifierTypeCommand, _ service.Caller) (*patient.IdentifierType, error) {
	f.createdIdentifierType = cmd
	if f.err != nil {
		return nil, f.err
	}
	return &patient.IdentifierType{UUID: uuid.New(), Name: cmd.Name, Format: cmd.Format, Required: cmd.Required}, nil
}

func (f *fakeMetadataService) ListAttributeTypes(context.Context) ([]*patient.PersonAttributeType, error) {
	return f.attributeTypes, f.err
}

func (f *fakeMetadataService) GetAttributeType(_ context.Context, id uuid.UUID) (*patient.PersonAttributeType, error) {
	for _, t := range f.attributeTypes {
		if t.UUID == id {
			return t, nil
		}
	}
	return nil, patient.ErrAttributeTypeNotFound
}

func (f *fakeMetadataService) CreateAttributeType(_ context.Context, cmd patient.CreateAttributeTypeCommand, _ service.Caller) (*patient.PersonAttributeType, error) {
	f.createdAttributeType = cmd
	if f.err != nil {
		return nil, f.err
	}
	return &patient.PersonAttributeType{UUID: uuid.New(), Name: cmd.Name, Searchable: cmd.Searchable}, nil
}

type fakeAuthService struct {
	err  error
	pair *domain.TokenPair

	loginEmail     string
	loginIP        string
	refreshToken   string
	passwordUserID uuid.UUID
	createCmd      service.CreateUserCommand
}

func (f *fakeAuthService) Login(_ context.Context, email, _, ip string) (*domain.TokenPair, error) {
	f.loginEmail, f.loginIP = email, ip
	return f.pair, f.err
}

func (f *fakeAuthService) RefreshToken(_ context.Context, token string) (*domain.TokenPair, error) {
	f.refreshToken = token
	return f.pair, f.err
}

func (f *fakeAuthService) ChangePassword(_ context.Context, userID uuid.UUID, _, _ string) error {
	f.passwordUserID = userID
	return f.err
}

func (f *fakeAuthService) CreateUser(_ context.Context, cmd service.CreateUserCommand, _ service.Caller) (*domain.User, error) {
	f.createCmd = cmd
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: uuid.New(), Email: cmd.Email, FirstName: cmd.FirstName, LastName: cmd.LastName, Role: cmd.Role, IsActive: true}, nil
}

type testServer struct {
	router   *gin.Engine
	patients *fakePatientService
	metadata *fakeMetadataService
	auth     *fakeAuthService
	metrics  *metrics.Collector
}

type serverOption func(*RouterDeps)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	ts := &testServer{
		patients: &fakePatientService{patient: samplePatient()},
		metadata: &fakeMetadataService{},
		auth:     &fakeAuthService{},
		metrics:  metrics.NewCollector(prometheus.NewRegistry(), "patientrest"),
	}
	deps := RouterDeps{
		Config: &config.Config{
			App: config.AppConfig{Environment: "test"},
			CORS: config.CORSConfig{
				AllowedOrigins: []string{"https://chart.example.org"},
				AllowedMethods: []string{"GET", "POST", "DELETE"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         time.Hour,
			},
		},
		Log:      zap.NewNop(),
		Metrics:  ts.metrics,
		Tokens:   testTokens,
		Patients: ts.patients,
		Metadata: ts.metadata,
		Auth:     ts.auth,
		Builder:  representation.NewBuilder(testBaseURL),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	ts.router = NewRouter(deps)
	return ts
}

// do sends a request as the given token holder; an empty token sends none.
func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var mrnType = &patient.IdentifierType{
	ID:   1,
	UUID: uuid.MustParse("c1d2e3f4-a5b6-4c7d-8e9f-0a1b2c3d4e5f"),
	Name: "MRN",
}

func samplePatient() *patient.Patient {
	birth := time.Date(1980, time.May, 20, 0, 0, 0, 0, time.UTC)
	return &patient.Patient{
		ID:        7,
		UUID:      uuid.MustParse("0b9c5c2a-6a39-4c35-9b4e-3f7e9d8d1a11"),
		Gender:    patient.GenderFemale,
		Birthdate: &birth,
		Names: []*patient.PersonName{
			{ID: 1, UUID: uuid.New(), GivenName: "Ada", FamilyName: "Lovelace", Preferred: true},
		},
		Identifiers: []*patient.Identifier{
			{ID: 1, UUID: uuid.MustParse("d4c3b2a1-0f9e-4d8c-b7a6-5e4d3c2b1a00"), Identifier: "1001-1", IdentifierTypeID: 1, IdentifierType: mrnType, Preferred: true},
		},
	}
}
