package patient

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PersonName struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UUID      uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	PatientID uint64    `gorm:"column:patient_id;not null;index"`

	Prefix      string `gorm:"column:prefix;type:varchar(50)"`
	GivenName   string `gorm:"column:given_name;type:varchar(50)"`
	MiddleName  string `gorm:"column:middle_name;type:varchar(50)"`
	FamilyName  string `gorm:"column:family_name;type:varchar(50)"`
	FamilyName2 string `gorm:"column:family_name2;type:varchar(50)"`
	Degree      string `gorm:"column:degree;type:varchar(50)"`
	Preferred   bool   `gorm:"column:preferred;not null;default:false"`

	// SearchName backs the trigram index used by patient search.
	SearchName string `gorm:"column:search_name;type:varchar(255);not null;default:''"`

	AuditInfo `gorm:"embedded"`
	VoidInfo  `gorm:"embedded"`
}

func (PersonName) TableName() string {
	return "clinical.person_names"
}

func (n *PersonName) BeforeSave(*gorm.DB) error {
	n.SearchName = n.searchKey()
	return nil
}

func (n *PersonName) searchKey() string {
	return joinNonEmpty(" ", n.GivenName, n.MiddleName, n.FamilyName, n.FamilyName2)
}

func (n *PersonName) Key() uuid.UUID      { return n.UUID }
func (n *PersonName) IsNew() bool         { return n.ID == 0 }
func (n *PersonName) IsPreferred() bool   { return n.Preferred }
func (n *PersonName) SetPreferred(v bool) { n.Preferred = v }

// FullName joins the non-empty name parts with single spaces.
func (n *PersonName) FullName() string {
	return joinNonEmpty(" ", n.Prefix, n.GivenName, n.MiddleName, n.FamilyName, n.FamilyName2, n.Degree)
}

func NewName(in NameInput, createdBy uuid.UUID) *PersonName {
	return &PersonName{
		UUID:        uuid.New(),
		Prefix:      strings.TrimSpace(in.Prefix),
		GivenName:   strings.TrimSpace(in.GivenName),
		MiddleName:  strings.TrimSpace(in.MiddleName),
		FamilyName:  strings.TrimSpace(in.FamilyName),
		FamilyName2: strings.TrimSpace(in.FamilyName2),
		Degree:      strings.TrimSpace(in.Degree),
		Preferred:   in.Preferred,
		AuditInfo:   AuditInfo{CreatedBy: createdBy},
	}
}

type PersonAddress struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UUID      uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	PatientID uint64    `gorm:"column:patient_id;not null;index"`

	Address1       string `gorm:"column:address1;type:varchar(255)"`
	Address2       string `gorm:"column:address2;type:varchar(255)"`
	CityVillage    string `gorm:"column:city_village;type:varchar(255)"`
	CountyDistrict string `gorm:"column:county_district;type:varchar(255)"`
	StateProvince  string `gorm:"column:state_province;type:varchar(255)"`
	Country        string `gorm:"column:country;type:varchar(50)"`
	PostalCode     string `gorm:"column:postal_code;type:varchar(50)"`
	Latitude       string `gorm:"column:latitude;type:varchar(50)"`
	Longitude      string `gorm:"column:longitude;type:varchar(50)"`
	Preferred      bool   `gorm:"column:preferred;not null;default:false"`

	AuditInfo `gorm:"embedded"`
	VoidInfo  `gorm:"embedded"`
}

func (PersonAddress) TableName() string {
	return "clinical.person_addresses"
}

func (a *PersonAddress) Key() uuid.UUID      { return a.UUID }
func (a *PersonAddress) IsNew() bool         { return a.ID == 0 }
func (a *PersonAddress) IsPreferred() bool   { return a.Preferred }
func (a *PersonAddress) SetPreferred(v bool) { a.Preferred = v }

func (a *PersonAddress) Display() string {
	return joinNonEmpty(", ", a.Address1, a.CityVillage, a.StateProvince, a.Country)
}

func NewAddress(in AddressInput, createdBy uuid.UUID) *PersonAddress {
	return &PersonAddress{
		UUID:           uuid.New(),
		Address1:       strings.TrimSpace(in.Address1),
		Address2:       strings.TrimSpace(in.Address2),
		CityVillage:    strings.TrimSpace(in.CityVillage),
		CountyDistrict: strings.TrimSpace(in.CountyDistrict),
		StateProvince:  strings.TrimSpace(in.StateProvince),
		Country:        strings.TrimSpace(in.Country),
		PostalCode:     strings.TrimSpace(in.PostalCode),
		Latitude:       strings.TrimSpace(in.Latitude),
		Longitude:      strings.TrimSpace(in.Longitude),
		Preferred:      in.Preferred,
		AuditInfo:      AuditInfo{CreatedBy: createdBy},
	}
}

type PersonAttributeType struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UUID        uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	Name        string    `gorm:"column:name;type:varchar(50);uniqueIndex;not null"`
	Description string    `gorm:"column:description;type:text"`
	Format      string    `gorm:"column:format;type:varchar(50)"`
	Searchable  bool      `gorm:"column:searchable;not null;default:false"`

	AuditInfo `gorm:"embedded"`
}

func (PersonAttributeType) TableName() string {
	return "clinical.person_attribute_types"
}

type PersonAttribute struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UUID      uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	PatientID uint64    `gorm:"column:patient_id;not null;index"`

	AttributeTypeID uint64               `gorm:"column:attribute_type_id;not null;index"`
	AttributeType   *PersonAttributeType `gorm:"foreignKey:AttributeTypeID"`
	Value           string               `gorm:"column:value;type:varchar(255);not null"`

	AuditInfo `gorm:"embedded"`
	VoidInfo  `gorm:"embedded"`
}

func (PersonAttribute) TableName() string {
	return "clinical.person_attributes"
}

func (a *PersonAttribute) IsNew() bool { return a.ID == 0 }

func (a *PersonAttribute) Display() string {
	if a.AttributeType == nil {
		return a.Value
	}
	return a.AttributeType.Name + " = " + a.Value
}

func NewAttribute(t *PersonAttributeType, value string, createdBy uuid.UUID) *PersonAttribute {
	return &PersonAttribute{
		UUID:            uuid.New(),
		AttributeTypeID: t.ID,
		AttributeType:   t,
		Value:           strings.TrimSpace(value),
		AuditInfo:       AuditInfo{CreatedBy: createdBy},
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
