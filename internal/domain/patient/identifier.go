package patient

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type IdentifierType struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UUID        uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	Name        string    `gorm:"column:name;type:varchar(50);uniqueIndex;not null"`
	Description string    `gorm:"column:description;type:text"`
	// Format is a regular expression the whole identifier must match.
	Format      string    `gorm:"column:format;type:varchar(255)"`
	Required    bool      `gorm:"column:required;not null;default:false"`

	AuditInfo `gorm:"embedded"`
}

func (IdentifierType) TableName() string {
	return "clinical.patient_identifier_types"
}

// CompileFormat compiles an identifier type format anchored at both ends, the
// way Validate applies it.
func CompileFormat(format string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + format + ")$")
}

// Validate checks value against the type's format, anchored at both ends.
func (t *IdentifierType) Validate(value string) error {
	if t.Format == "" {
		return nil
	}
	re, err := CompileFormat(t.Format)
	if err != nil {
		return fmt.Errorf("identifier type %q has an invalid format: %w", t.Name, err)
	}
	if !re.MatchString(value) {
		return fmt.Errorf("%w: %q does not match %s", ErrIdentifierFormat, value, t.Format)
	}
	return nil
}

type Identifier struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UUID      uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	PatientID uint64    `gorm:"column:patient_id;not null;index"`

	Identifier       string          `gorm:"column:identifier;type:varchar(50);not null;index"`
	IdentifierTypeID uint64          `gorm:"column:identifier_type_id;not null;index"`
	IdentifierType   *IdentifierType `gorm:"foreignKey:IdentifierTypeID"`
	Preferred        bool            `gorm:"column:preferred;not null;default:false"`

	AuditInfo `gorm:"embedded"`
	VoidInfo  `gorm:"embedded"`
}

func (Identifier) TableName() string {
	return "clinical.patient_identifiers"
}

func (i *Identifier) Key() uuid.UUID      { return i.UUID }
func (i *Identifier) IsNew() bool         { return i.ID == 0 }
func (i *Identifier) IsPreferred() bool   { return i.Preferred }
func (i *Identifier) SetPreferred(v bool) { i.Preferred = v }

// Display is "<type name> = <identifier>".
func (i *Identifier) Display() string {
	if i.IdentifierType == nil {
		return i.Identifier
	}
	return i.IdentifierType.Name + " = " + i.Identifier
}

// NewIdentifier builds an identifier of type t and validates its value.
func NewIdentifier(value string, t *IdentifierType, preferred bool, createdBy uuid.UUID) (*Identifier, error) {
	id := &Identifier{
		UUID:      uuid.New(),
		Preferred: preferred,
		AuditInfo: AuditInfo{CreatedBy: createdBy},
	}
	if err := id.Assign(value, t); err != nil {
		return nil, err
	}
	return id, nil
}

// Assign sets value and type after checking the value against the type.
func (i *Identifier) Assign(value string, t *IdentifierType) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%w: identifier is empty", ErrIdentifierFormat)
	}
	if err := t.Validate(value); err != nil {
		return err
	}
	i.Identifier = value
	i.IdentifierType = t
	i.IdentifierTypeID = t.ID
	return nil
}
