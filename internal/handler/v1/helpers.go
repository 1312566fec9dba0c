package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/representation"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/service"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/auth"
)

type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

const callerKey = "caller"

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, patient.ErrIdentifierNotFound),
		errors.Is(err, patient.ErrIdentifierTypeNotFound),
		errors.Is(err, patient.ErrAttributeTypeNotFound):
		respondError(c, http.StatusNotFound, err.Error())

	case errors.Is(err, patient.ErrIdentifierInUse),
		errors.Is(err, patient.ErrMetadataExists),
		errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, err.Error())

	case errors.Is(err, patient.ErrLastIdentifier),
		errors.Is(err, patient.ErrPatientVoided),
		errors.Is(err, patient.ErrIdentifierVoided),
		errors.Is(err, patient.ErrPreferredVoided),
		errors.Is(err, patient.ErrInvalidGender),
		errors.Is(err, patient.ErrIdentifierFormat),
		errors.Is(err, representation.ErrUnknownRepresentation):
		respondError(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, "access denied")

	case errors.Is(err, service.ErrAccountInactive):
		respondError(c, http.StatusForbidden, "account is inactive")

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid):
		respondError(c, http.StatusUnauthorized, "invalid credentials")

	case errors.Is(err, service.ErrAccountLocked):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "account temporarily locked",
			Code:  "ACCOUNT_LOCKED",
		})

	default:
		log.Error("request failed",
			zap.Error(err),
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid "+param+": must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseQueryInt returns defaultVal when key is absent; a malformed value is
// reported as a 400.
func parseQueryInt(c *gin.Context, key string, defaultVal int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return defaultVal, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid "+key+": must be an integer")
		return 0, false
	}
	return v, true
}

func parseQueryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

func parseRepresentation(c *gin.Context, fallback representation.Representation) (representation.Representation, bool) {
	rep, err := representation.Parse(c.Query("v"), fallback)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return rep, true
}

func callerFrom(c *gin.Context) service.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(service.Caller)
	return caller
}

func setCaller(c *gin.Context, claims *domain.Claims) {
	c.Set(callerKey, service.Caller{
		UserID:      claims.UserID,
		Role:        claims.Role,
		PatientUUID: claims.PatientUUID,
		IP:          c.ClientIP(),
		RequestID:   c.GetString(requestIDKey),
	})
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
