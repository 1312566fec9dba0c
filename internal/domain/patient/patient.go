package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderOther   Gender = "O"
	GenderUnknown Gender = "U"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// ConceptRef points at a concept owned by an external dictionary.
type ConceptRef struct {
	UUID    string `gorm:"column:uuid;type:varchar(38)"`
	Display string `gorm:"column:display;type:varchar(255)"`
}

func (c ConceptRef) IsZero() bool {
	return c.UUID == ""
}

// AuditInfo records who created and last changed a row.
type AuditInfo struct {
	CreatedBy   uuid.UUID  `gorm:"column:created_by;type:uuid;not null"`
	DateCreated time.Time  `gorm:"column:date_created;autoCreateTime"`
	ChangedBy   *uuid.UUID `gorm:"column:changed_by;type:uuid"`
	DateChanged *time.Time `gorm:"column:date_changed"`
}

// Touch stamps the change trail.
func (a *AuditInfo) Touch(by uuid.UUID, at time.Time) {
	a.ChangedBy = &by
	a.DateChanged = &at
}

// VoidInfo is the soft-delete trail shared by every patient-owned row.
type VoidInfo struct {
	Voided     bool       `gorm:"column:voided;not null;default:false;index"`
	VoidedBy   *uuid.UUID `gorm:"column:voided_by;type:uuid"`
	DateVoided *time.Time `gorm:"column:date_voided"`
	VoidReason string     `gorm:"column:void_reason;type:varchar(255)"`
}

func (v *VoidInfo) IsVoided() bool { return v.Voided }

func (v *VoidInfo) void(by uuid.UUID, reason string, at time.Time) {
	v.Voided = true
	v.VoidedBy = &by
	v.DateVoided = &at
	v.VoidReason = reason
}

type Patient struct {
	ID   uint64    `gorm:"primaryKey;autoIncrement"`
	UUID uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`

	Gender             Gender     `gorm:"column:gender;type:varchar(1);not null"`
	Birthdate          *time.Time `gorm:"column:birthdate;type:date"`
	BirthdateEstimated bool       `gorm:"column:birthdate_estimated;not null;default:false"`
	Dead               bool       `gorm:"column:dead;not null;default:false"`
	DeathDate          *time.Time `gorm:"column:death_date"`
	CauseOfDeath       ConceptRef `gorm:"embedded;embeddedPrefix:cause_of_death_"`

	Names       []*PersonName      `gorm:"foreignKey:PatientID"`
	Addresses   []*PersonAddress   `gorm:"foreignKey:PatientID"`
	Identifiers []*Identifier      `gorm:"foreignKey:PatientID"`
	Attributes  []*PersonAttribute `gorm:"foreignKey:PatientID"`

	AuditInfo `gorm:"embedded"`
	VoidInfo  `gorm:"embedded"`
}

func (Patient) TableName() string {
	return "clinical.patients"
}

// New returns an empty patient with a fresh public UUID.
func New(createdBy uuid.UUID) *Patient {
	return &Patient{
		UUID:      uuid.New(),
		Gender:    GenderUnknown,
		AuditInfo: AuditInfo{CreatedBy: createdBy},
	}
}

func (p *Patient) IsNew() bool { return p.ID == 0 }

// Age is the number of whole years between the birthdate and now, or the
// death date for a deceased patient whose death date is known.
func (p *Patient) Age(now time.Time) *int {
	if p.Birthdate == nil {
		return nil
	}
	end := now
	if p.Dead && p.DeathDate != nil {
		end = *p.DeathDate
	}
	dob := *p.Birthdate
	years := end.Year() - dob.Year()
	if end.Month() < dob.Month() ||
		(end.Month() == dob.Month() && end.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return &years
}

func (p *Patient) PreferredName() *PersonName {
	n, _ := preferredOf(p.Names)
	return n
}

func (p *Patient) PreferredAddress() *PersonAddress {
	a, _ := preferredOf(p.Addresses)
	return a
}

func (p *Patient) PreferredIdentifier() *Identifier {
	id, _ := preferredOf(p.Identifiers)
	return id
}

func (p *Patient) ActiveIdentifiers() []*Identifier {
	out := make([]*Identifier, 0, len(p.Identifiers))
	for _, id := range p.Identifiers {
		if !id.IsVoided() {
			out = append(out, id)
		}
	}
	return out
}

func (p *Patient) ActiveAttributes() []*PersonAttribute {
	out := make([]*PersonAttribute, 0, len(p.Attributes))
	for _, a := range p.Attributes {
		if !a.IsVoided() {
			out = append(out, a)
		}
	}
	return out
}

// DisplayString is "<preferred identifier> - <preferred full name>".
func (p *Patient) DisplayString() string {
	var parts []string
	if id := p.PreferredIdentifier(); id != nil {
		parts = append(parts, id.Identifier)
	}
	if n := p.PreferredName(); n != nil {
		parts = append(parts, n.FullName())
	}
	return strings.Join(parts, " - ")
}

func (p *Patient) IdentifierByUUID(id uuid.UUID) *Identifier {
	for _, it := range p.Identifiers {
		if it.UUID == id {
			return it
		}
	}
	return nil
}

func (p *Patient) NameByUUID(id uuid.UUID) *PersonName {
	for _, it := range p.Names {
		if it.UUID == id {
			return it
		}
	}
	return nil
}

func (p *Patient) AddressByUUID(id uuid.UUID) *PersonAddress {
	for _, it := range p.Addresses {
		if it.UUID == id {
			return it
		}
	}
	return nil
}

// EnsurePreferred settles the preferred flags of freshly assembled
// collections: the last flagged member wins, or the first active one when
// nothing is flagged.
func (p *Patient) EnsurePreferred() {
	p.Names = ensurePreferred(p.Names)
	p.Addresses = ensurePreferred(p.Addresses)
	p.Identifiers = ensurePreferred(p.Identifiers)
}

// Void soft-deletes the patient together with every active row it owns.
func (p *Patient) Void(by uuid.UUID, reason string, at time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return ErrVoidReasonRequired
	}
	if p.Voided {
		return nil
	}
	p.void(by, reason, at)
	for _, n := range p.Names {
		if !n.Voided {
			n.void(by, reason, at)
		}
	}
	for _, a := range p.Addresses {
		if !a.Voided {
			a.void(by, reason, at)
		}
	}
	for _, id := range p.Identifiers {
		if !id.Voided {
			id.void(by, reason, at)
		}
	}
	for _, attr := range p.Attributes {
		if !attr.Voided {
			attr.void(by, reason, at)
		}
	}
	return nil
}

// VoidIdentifier voids one identifier. The last active identifier cannot go;
// when the preferred one is voided the first remaining active identifier
// takes over the mark.
func (p *Patient) VoidIdentifier(id *Identifier, by uuid.UUID, reason string, at time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return ErrVoidReasonRequired
	}
	if id.Voided {
		return nil
	}
	if len(p.ActiveIdentifiers()) <= 1 {
		return ErrLastIdentifier
	}
	wasPreferred := id.Preferred
	id.void(by, reason, at)
	id.Preferred = false
	if wasPreferred {
		if next, ok := preferredOf(p.Identifiers); ok {
			p.Identifiers = SelectPreferred(p.Identifiers, next)
		}
	}
	return nil
}

// RemoveIdentifier drops an identifier from the collection before a purge.
func (p *Patient) RemoveIdentifier(id *Identifier) error {
	if !id.Voided && len(p.ActiveIdentifiers()) <= 1 {
		return ErrLastIdentifier
	}
	out := p.Identifiers[:0]
	for _, it := range p.Identifiers {
		if it != id {
			out = append(out, it)
		}
	}
	p.Identifiers = out
	if id.Preferred && !id.Voided {
		if next, ok := preferredOf(p.Identifiers); ok {
			p.Identifiers = SelectPreferred(p.Identifiers, next)
		}
	}
	return nil
}

type CreatePatientCommand struct {
	Gender             Gender
	Birthdate          *time.Time
	BirthdateEstimated bool
	Dead               bool
	DeathDate          *time.Time
	CauseOfDeath       *ConceptRef
	Names              []NameInput
	Addresses          []AddressInput
	Identifiers        []IdentifierInput
	Attributes         []AttributeInput
}

// UpdatePatientCommand carries partial updates. Nil fields are left alone.
type UpdatePatientCommand struct {
	Gender              *Gender
	Birthdate           *time.Time
	BirthdateEstimated  *bool
	Dead                *bool
	DeathDate           *time.Time
	CauseOfDeath        *ConceptRef
	PreferredName       *NameInput
	PreferredAddress    *AddressInput
	PreferredIdentifier *IdentifierInput
}

type NameInput struct {
	UUID        *uuid.UUID
	Prefix      string
	GivenName   string
	MiddleName  string
	FamilyName  string
	FamilyName2 string
	Degree      string
	Preferred   bool
}

type AddressInput struct {
	UUID           *uuid.UUID
	Address1       string
	Address2       string
	CityVillage    string
	CountyDistrict string
	StateProvince  string
	Country        string
	PostalCode     string
	Latitude       string
	Longitude      string
	Preferred      bool
}

type IdentifierInput struct {
	UUID           *uuid.UUID
	Identifier     string
	IdentifierType uuid.UUID
	Preferred      bool
}

// UpdateIdentifierCommand edits one identifier in place. Nil fields are left alone.
type UpdateIdentifierCommand struct {
	Identifier     *string
	IdentifierType *uuid.UUID
	Preferred      *bool
}

type AttributeInput struct {
	AttributeType uuid.UUID
	Value         string
}

// SearchQuery mirrors the resource paging parameters.
type SearchQuery struct {
	Query      string
	StartIndex int
	Limit      int
}

type SearchResult struct {
	Patients   []*Patient
	StartIndex int
	Limit      int
	HasMore    bool
}
