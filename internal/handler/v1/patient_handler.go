package v1

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/representation"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/service"
)

// PatientService is the slice of *service.PatientService the HTTP layer uses.
type PatientService interface {
	CreatePatient(ctx context.Context, cmd *patient.CreatePatientCommand, caller service.Caller) (*patient.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID, caller service.Caller) (*patient.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand, caller service.Caller) (*patient.Patient, error)
	VoidPatient(ctx context.Context, id uuid.UUID, reason string, caller service.Caller) error
	PurgePatient(ctx context.Context, id uuid.UUID, caller service.Caller) error
	SearchPatients(ctx context.Context, q patient.SearchQuery, caller service.Caller) (*patient.SearchResult, error)

	ListIdentifiers(ctx context.Context, patientID uuid.UUID, caller service.Caller) (*patient.Patient, []*patient.Identifier, error)
	GetIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, caller service.Caller) (*patient.Patient, *patient.Identifier, error)
	AddIdentifier(ctx context.Context, patientID uuid.UUID, in patient.IdentifierInput, caller service.Caller) (*patient.Patient, *patient.Identifier, error)
	UpdateIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, cmd patient.UpdateIdentifierCommand, caller service.Caller) (*patient.Patient, *patient.Identifier, error)
	VoidIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, reason string, caller service.Caller) error
	PurgeIdentifier(ctx context.Context, patientID, identifierID uuid.UUID, caller service.Caller) error
}

type PatientHandler struct {
	svc     PatientService
	builder *representation.Builder
	log     *zap.Logger
}

func NewPatientHandler(svc PatientService, builder *representation.Builder, log *zap.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, builder: builder, log: log}
}

func (h *PatientHandler) Register(rg *gin.RouterGroup) {
	p := rg.Group("/patient")
	p.GET("", h.Search)
	p.POST("", h.Create)
	p.GET("/:uuid", h.Get)
	p.POST("/:uuid", h.Update)
	p.PATCH("/:uuid", h.Update)
	p.DELETE("/:uuid", h.Delete)

	p.GET("/:uuid/identifier", h.ListIdentifiers)
	p.POST("/:uuid/identifier", h.AddIdentifier)
	p.GET("/:uuid/identifier/:iuuid", h.GetIdentifier)
	p.POST("/:uuid/identifier/:iuuid", h.UpdateIdentifier)
	p.DELETE("/:uuid/identifier/:iuuid", h.DeleteIdentifier)
}

func (h *PatientHandler) Create(c *gin.Context) {
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.CreatePatient(c.Request.Context(), req.toCommand(), callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Header("Location", h.builder.PatientURI(p))
	c.JSON(http.StatusCreated, h.builder.Patient(p, rep))
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}

	p, err := h.svc.GetPatient(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.builder.Patient(p, rep))
}

func (h *PatientHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.UpdatePatient(c.Request.Context(), id, req.toCommand(), callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.builder.Patient(p, rep))
}

// Delete voids by default; purge=true removes the record.
func (h *PatientHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}

	var err error
	if parseQueryBool(c, "purge") {
		err = h.svc.PurgePatient(c.Request.Context(), id, callerFrom(c))
	} else {
		err = h.svc.VoidPatient(c.Request.Context(), id, c.Query("reason"), callerFrom(c))
	}
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PatientHandler) Search(c *gin.Context) {
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	startIndex, ok := parseQueryInt(c, "startIndex", 0)
	if !ok {
		return
	}
	limit, ok := parseQueryInt(c, "limit", 0)
	if !ok {
		return
	}

	res, err := h.svc.SearchPatients(c.Request.Context(), patient.SearchQuery{
		Query:      c.Query("q"),
		StartIndex: startIndex,
		Limit:      limit,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.builder.Patients(res.Patients, rep, h.pageLinks(c.Query("q"), rep, res)...))
}

func (h *PatientHandler) pageLinks(q string, rep representation.Representation, res *patient.SearchResult) []representation.Link {
	link := func(rel string, start int) representation.Link {
		v := url.Values{}
		if q != "" {
			v.Set("q", q)
		}
		v.Set("startIndex", strconv.Itoa(start))
		v.Set("limit", strconv.Itoa(res.Limit))
		v.Set("v", string(rep))
		return representation.Link{Rel: rel, URI: h.builder.BaseURL + "/patient?" + v.Encode()}
	}

	var links []representation.Link
	if res.StartIndex > 0 {
		links = append(links, link("prev", max(res.StartIndex-res.Limit, 0)))
	}
	if res.HasMore {
		links = append(links, link("next", res.StartIndex+res.Limit))
	}
	return links
}

func (h *PatientHandler) ListIdentifiers(c *gin.Context) {
	id, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}

	p, ids, err := h.svc.ListIdentifiers(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.builder.Identifiers(p, ids, rep))
}

func (h *PatientHandler) GetIdentifier(c *gin.Context) {
	pid, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	iid, ok := parseUUID(c, "iuuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}

	p, ident, err := h.svc.GetIdentifier(c.Request.Context(), pid, iid, callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.builder.Identifier(p, ident, rep))
}

func (h *PatientHandler) AddIdentifier(c *gin.Context) {
	pid, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	var req identifierRequest
	if !bindJSON(c, &req) {
		return
	}

	p, ident, err := h.svc.AddIdentifier(c.Request.Context(), pid, req.toDomain(), callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Header("Location", h.builder.IdentifierURI(p, ident))
	c.JSON(http.StatusCreated, h.builder.Identifier(p, ident, rep))
}

func (h *PatientHandler) UpdateIdentifier(c *gin.Context) {
	pid, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	iid, ok := parseUUID(c, "iuuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	var req updateIdentifierRequest
	if !bindJSON(c, &req) {
		return
	}

	p, ident, err := h.svc.UpdateIdentifier(c.Request.Context(), pid, iid, patient.UpdateIdentifierCommand{
		Identifier:     req.Identifier,
		IdentifierType: req.IdentifierType,
		Preferred:      req.Preferred,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.builder.Identifier(p, ident, rep))
}

func (h *PatientHandler) DeleteIdentifier(c *gin.Context) {
	pid, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	iid, ok := parseUUID(c, "iuuid")
	if !ok {
		return
	}

	var err error
	if parseQueryBool(c, "purge") {
		err = h.svc.PurgeIdentifier(c.Request.Context(), pid, iid, callerFrom(c))
	} else {
		err = h.svc.VoidIdentifier(c.Request.Context(), pid, iid, c.Query("reason"), callerFrom(c))
	}
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
