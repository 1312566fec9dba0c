package v1

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/service"
)

const patientPath = "/api/v1/patient/0b9c5c2a-6a39-4c35-9b4e-3f7e9d8d1a11"

func TestPatientHandler_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, patientPath, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, patientPath, "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid or expired token", decode(t, rec)["error"])
}

func TestPatientHandler_Create(t *testing.T) {
	ts := newTestServer(t)

	body := fmt.Sprintf(`{
		"gender": "f",
		"birthdate": "1980-05-20",
		"names": [{"givenName": "Ada", "familyName": "Lovelace", "preferred": true}],
		"identifiers": [{"identifier": "1001-1", "identifierType": %q, "preferred": true}],
		"attributes": [{"attributeType": "6f1e2d3c-4b5a-4968-8776-a5b4c3d2e1f0", "value": "Engineer"}]
	}`, mrnType.UUID)
	rec := ts.do(http.MethodPost, "/api/v1/patient", "doctor", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, testBaseURL+"/patient/0b9c5c2a-6a39-4c35-9b4e-3f7e9d8d1a11", rec.Header().Get("Location"))

	cmd := ts.patients.createCmd
	require.NotNil(t, cmd)
	assert.Equal(t, patient.GenderFemale, cmd.Gender)
	require.NotNil(t, cmd.Birthdate)
	assert.True(t, cmd.Birthdate.Equal(time.Date(1980, time.May, 20, 0, 0, 0, 0, time.UTC)))
	require.Len(t, cmd.Identifiers, 1)
	assert.Equal(t, mrnType.UUID, cmd.Identifiers[0].IdentifierType)
	require.Len(t, cmd.Attributes, 1)
	assert.Equal(t, "Engineer", cmd.Attributes[0].Value)

	assert.Equal(t, doctorID, ts.patients.caller.UserID)
	assert.Equal(t, domain.RoleDoctor, ts.patients.caller.Role)
	assert.NotEmpty(t, ts.patients.caller.RequestID)

	out := decode(t, rec)
	assert.Equal(t, "0b9c5c2a-6a39-4c35-9b4e-3f7e9d8d1a11", out["uuid"])
	assert.Equal(t, "F", out["gender"])
}

func TestPatientHandler_Create_BadBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/patient", "doctor", `{"birthdate": "20th of May"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, ts.patients.createCmd)
}

func TestPatientHandler_Get(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, patientPath+"?v=ref", "doctor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "1001-1 - Ada Lovelace", out["display"])
	assert.NotContains(t, out, "gender")

	rec = ts.do(http.MethodGet, patientPath+"?v=custom:(uuid)", "doctor", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/patient/not-a-uuid", "doctor", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid uuid: must be a valid UUID", decode(t, rec)["error"])
}

func TestPatientHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: patient.ErrPatientNotFound, status: http.StatusNotFound},
		{name: "wrapped not found", err: fmt.Errorf("loading patient: %w", patient.ErrPatientNotFound), status: http.StatusNotFound},
		{name: "identifier in use", err: patient.ErrIdentifierInUse, status: http.StatusConflict},
		{name: "voided", err: patient.ErrPatientVoided, status: http.StatusBadRequest},
		{name: "forbidden", err: service.ErrForbidden, status: http.StatusForbidden},
		{name: "locked", err: service.ErrAccountLocked, status: http.StatusTooManyRequests, code: "ACCOUNT_LOCKED"},
		{name: "unexpected", err: errors.New("connection reset"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.patients.err = tt.err

			rec := ts.do(http.MethodGet, patientPath, "doctor", "")
			assert.Equal(t, tt.status, rec.Code)
			out := decode(t, rec)
			assert.NotEmpty(t, out["error"])
			if tt.code != "" {
				assert.Equal(t, tt.code, out["code"])
			}
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", out["error"])
			}
		})
	}
}

func TestPatientHandler_ValidationFields(t *testing.T) {
	ts := newTestServer(t)
	ts.patients.err = &service.ValidationError{Fields: []string{"identifiers: at least one identifier is required", "names: at least one name is required"}}

	rec := ts.do(http.MethodPost, "/api/v1/patient", "doctor", `{"gender": "M"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "validation failed", out["error"])
	assert.Len(t, out["fields"], 2)
}

func TestPatientHandler_Update(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPatch, patientPath, "doctor", `{"gender": "m", "dead": true, "preferredName": {"givenName": "Augusta", "familyName": "King"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cmd := ts.patients.updateCmd
	require.NotNil(t, cmd)
	require.NotNil(t, cmd.Gender)
	assert.Equal(t, patient.GenderMale, *cmd.Gender)
	require.NotNil(t, cmd.Dead)
	assert.True(t, *cmd.Dead)
	assert.Nil(t, cmd.BirthdateEstimated)
	require.NotNil(t, cmd.PreferredName)
	assert.Equal(t, "Augusta", cmd.PreferredName.GivenName)
	assert.Nil(t, cmd.PreferredIdentifier)

	ts.patients.updateCmd = nil
	rec = ts.do(http.MethodPost, patientPath, "doctor", `{"birthdateEstimated": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.patients.updateCmd.BirthdateEstimated)
	assert.False(t, *ts.patients.updateCmd.BirthdateEstimated)
}

func TestPatientHandler_Delete(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodDelete, patientPath+"?reason=duplicate+record", "doctor", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ts.patients.voided)
	assert.False(t, ts.patients.purged)
	assert.Equal(t, "duplicate record", ts.patients.reason)

	ts = newTestServer(t)
	rec = ts.do(http.MethodDelete, patientPath+"?purge=true", "admin", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ts.patients.purged)
	assert.False(t, ts.patients.voided)
}

func TestPatientHandler_Search(t *testing.T) {
	ts := newTestServer(t)
	ts.patients.result = &patient.SearchResult{
		Patients:   []*patient.Patient{samplePatient()},
		StartIndex: 2,
		Limit:      2,
		HasMore:    true,
	}

	rec := ts.do(http.MethodGet, "/api/v1/patient?q=love&startIndex=2&limit=2", "doctor", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, patient.SearchQuery{Query: "love", StartIndex: 2, Limit: 2}, ts.patients.searchQ)

	out := decode(t, rec)
	assert.Len(t, out["results"], 1)

	links, ok := out["links"].([]any)
	require.True(t, ok)
	require.Len(t, links, 2)
	prev := links[0].(map[string]any)
	next := links[1].(map[string]any)
	assert.Equal(t, "prev", prev["rel"])
	assert.Equal(t, testBaseURL+"/patient?limit=2&q=love&startIndex=0&v=default", prev["uri"])
	assert.Equal(t, "next", next["rel"])
	assert.Equal(t, testBaseURL+"/patient?limit=2&q=love&startIndex=4&v=default", next["uri"])
}

func TestPatientHandler_Search_LastPage(t *testing.T) {
	ts := newTestServer(t)
	ts.patients.result = &patient.SearchResult{StartIndex: 0, Limit: 50}

	rec := ts.do(http.MethodGet, "/api/v1/patient", "doctor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Empty(t, out["results"])
	assert.NotContains(t, out, "links")
}

func TestPatientHandler_Search_BadPaging(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/patient?limit=ten", "doctor", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid limit: must be an integer", decode(t, rec)["error"])
}

func TestPatientHandler_Identifiers(t *testing.T) {
	ts := newTestServer(t)
	identPath := patientPath + "/identifier"

	rec := ts.do(http.MethodGet, identPath, "doctor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["results"], 1)

	rec = ts.do(http.MethodGet, identPath+"/d4c3b2a1-0f9e-4d8c-b7a6-5e4d3c2b1a00", "doctor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1001-1", decode(t, rec)["identifier"])

	rec = ts.do(http.MethodGet, identPath+"/5e4d3c2b-1a00-4d8c-b7a6-d4c3b2a10f9e", "doctor", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, identPath, "doctor", fmt.Sprintf(`{"identifier": "2002-2", "identifierType": %q, "preferred": true}`, mrnType.UUID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2002-2", ts.patients.identInput.Identifier)
	assert.True(t, ts.patients.identInput.Preferred)
	assert.Contains(t, rec.Header().Get("Location"), "/identifier/d4c3b2a1-0f9e-4d8c-b7a6-5e4d3c2b1a00")

	rec = ts.do(http.MethodPost, identPath+"/d4c3b2a1-0f9e-4d8c-b7a6-5e4d3c2b1a00", "doctor", `{"preferred": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.patients.identCmd.Preferred)
	assert.Nil(t, ts.patients.identCmd.Identifier)

	rec = ts.do(http.MethodDelete, identPath+"/d4c3b2a1-0f9e-4d8c-b7a6-5e4d3c2b1a00?reason=typo", "doctor", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "typo", ts.patients.reason)
}

func TestPatientHandler_DeleteLastIdentifier(t *testing.T) {
	ts := newTestServer(t)
	ts.patients.err = patient.ErrLastIdentifier

	rec := ts.do(http.MethodDelete, patientPath+"/identifier/d4c3b2a1-0f9e-4d8c-b7a6-5e4d3c2b1a00", "doctor", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
