package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/representation"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/service"
)

type MetadataService interface {
	ListIdentifierTypes(ctx context.Context) ([]*patient.IdentifierType, error)
	GetIdentifierType(ctx context.Context, id uuid.UUID) (*patient.IdentifierType, error)
	CreateIdentifierType(ctx context.Context, cmd patient.CreateIdentifierTypeCommand, caller service.Caller) (*patient.IdentifierType, error)
	ListAttributeTypes(ctx context.Context) ([]*patient.PersonAttributeType, error)
	GetAttributeType(ctx context.Context, id uuid.UUID) (*patient.PersonAttributeType, error)
	CreateAttributeType(ctx context.Context, cmd patient.CreateAttributeTypeCommand, caller service.Caller) (*patient.PersonAttributeType, error)
}

type MetadataHandler struct {
	svc     MetadataService
	builder *representation.Builder
	log     *zap.Logger
}

func NewMetadataHandler(svc MetadataService, builder *representation.Builder, log *zap.Logger) *MetadataHandler {
	return &MetadataHandler{svc: svc, builder: builder, log: log}
}

func (h *MetadataHandler) Register(rg *gin.RouterGroup) {
	it := rg.Group("/patientidentifiertype")
	it.GET("", h.ListIdentifierTypes)
	it.POST("", h.CreateIdentifierType)
	it.GET("/:uuid", h.GetIdentifierType)

	at := rg.Group("/personattributetype")
	at.GET("", h.ListAttributeTypes)
	at.POST("", h.CreateAttributeType)
	at.GET("/:uuid", h.GetAttributeType)
}

func (h *MetadataHandler) ListIdentifierTypes(c *gin.Context) {
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	types, err := h.svc.ListIdentifierTypes(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	out := make([]any, 0, len(types))
	for _, t := range types {
		out = append(out, h.builder.IdentifierType(t, rep))
	}
	c.JSON(http.StatusOK, representation.NewList(out))
}

func (h *MetadataHandler) GetIdentifierType(c *gin.Context) {
	id, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	t, err := h.svc.GetIdentifierType(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.builder.IdentifierType(t, rep))
}

func (h *MetadataHandler) CreateIdentifierType(c *gin.Context) {
	var req identifierTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.svc.CreateIdentifierType(c.Request.Context(), patient.CreateIdentifierTypeCommand{
		Name:        req.Name,
		Description: req.Description,
		Format:      req.Format,
		Required:    req.Required,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, h.builder.IdentifierType(t, representation.Full))
}

func (h *MetadataHandler) ListAttributeTypes(c *gin.Context) {
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	types, err := h.svc.ListAttributeTypes(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	out := make([]any, 0, len(types))
	for _, t := range types {
		out = append(out, representation.AttributeType(t, rep))
	}
	c.JSON(http.StatusOK, representation.NewList(out))
}

func (h *MetadataHandler) GetAttributeType(c *gin.Context) {
	id, ok := parseUUID(c, "uuid")
	if !ok {
		return
	}
	rep, ok := parseRepresentation(c, representation.Default)
	if !ok {
		return
	}
	t, err := h.svc.GetAttributeType(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, representation.AttributeType(t, rep))
}

func (h *MetadataHandler) CreateAttributeType(c *gin.Context) {
	var req attributeTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.svc.CreateAttributeType(c.Request.Context(), patient.CreateAttributeTypeCommand{
		Name:        req.Name,
		Description: req.Description,
		Format:      req.Format,
		Searchable:  req.Searchable,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, representation.AttributeType(t, representation.Full))
}
