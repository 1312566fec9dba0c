package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

// ValidationError lists every field problem found in one request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

// validationError turns accumulated field errors into a *ValidationError,
// or nil when there are none. Fields are sorted for stable responses.
func validationError(errs errsx.Map) error {
	if len(errs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(errs))
	for key, err := range errs {
		fields = append(fields, fmt.Sprintf("%s: %v", key, err))
	}
	sort.Strings(fields)
	return &ValidationError{Fields: fields}
}

// Caller identifies who is acting, taken from the verified access token.
type Caller struct {
	UserID      uuid.UUID
	Role        domain.Role
	PatientUUID *uuid.UUID
	IP          string
	RequestID   string
}

// canRead reports whether the caller may see the chart of patient id.
// Staff see every chart; a patient account only its own.
func (c Caller) canRead(id uuid.UUID) bool {
	if c.Role.IsStaff() {
		return true
	}
	return c.Role == domain.RolePatient && c.PatientUUID != nil && *c.PatientUUID == id
}

type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     domain.Role
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Changes      string
}
