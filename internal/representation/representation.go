// Package representation holds the fixed projections of each resource.
//
// Every resource has three representations selected by the v query
// parameter. ref identifies a resource and links to it, default carries the
// fields most clients need with related resources as refs, and full expands
// related resources one level and adds the audit trail.
package representation

import (
	"errors"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
)

type Representation string

const (
	Ref     Representation = "ref"
	Default Representation = "default"
	Full    Representation = "full"
)

var ErrUnknownRepresentation = errors.New("unknown representation: use ref, default or full")

// Parse reads the v parameter. An empty value selects fallback.
func Parse(v string, fallback Representation) (Representation, error) {
	switch Representation(strings.ToLower(strings.TrimSpace(v))) {
	case "":
		return fallback, nil
	case Ref:
		return Ref, nil
	case Default:
		return Default, nil
	case Full:
		return Full, nil
	}
	return "", ErrUnknownRepresentation
}

const dateLayout = "2006-01-02"

// Builder renders domain objects. BaseURL is the API root used for uri links.
type Builder struct {
	BaseURL string
	Now     func() time.Time
}

func NewBuilder(baseURL string) *Builder {
	return &Builder{BaseURL: strings.TrimRight(baseURL, "/"), Now: time.Now}
}

type AuditInfo struct {
	Creator     string     `json:"creator"`
	DateCreated time.Time  `json:"dateCreated"`
	ChangedBy   *string    `json:"changedBy"`
	DateChanged *time.Time `json:"dateChanged"`
	Voided      bool       `json:"voided"`
	VoidedBy    *string    `json:"voidedBy,omitempty"`
	DateVoided  *time.Time `json:"dateVoided,omitempty"`
	VoidReason  string     `json:"voidReason,omitempty"`
}

func auditInfo(a patient.AuditInfo, v *patient.VoidInfo) AuditInfo {
	out := AuditInfo{
		Creator:     a.CreatedBy.String(),
		DateCreated: a.DateCreated,
		DateChanged: a.DateChanged,
	}
	if a.ChangedBy != nil {
		s := a.ChangedBy.String()
		out.ChangedBy = &s
	}
	if v != nil && v.Voided {
		out.Voided = true
		out.DateVoided = v.DateVoided
		out.VoidReason = v.VoidReason
		if v.VoidedBy != nil {
			s := v.VoidedBy.String()
			out.VoidedBy = &s
		}
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// Link is a navigation link in list responses.
type Link struct {
	Rel string `json:"rel"`
	URI string `json:"uri"`
}

// List wraps search and sub-resource collections.
type List struct {
	Results []any  `json:"results"`
	Links   []Link `json:"links,omitempty"`
}

// NewList converts typed results into a list body.
func NewList[T any](items []T, links ...Link) List {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return List{Results: out, Links: links}
}
