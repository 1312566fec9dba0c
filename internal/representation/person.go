package representation

import "github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"

type ConceptRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
}

// ConceptFull carries everything this service knows about an external concept.
type ConceptFull struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
	Name    string `json:"name"`
}

func conceptRef(c patient.ConceptRef) ConceptRef {
	return ConceptRef{UUID: c.UUID, Display: c.Display}
}

func conceptFull(c patient.ConceptRef) ConceptFull {
	return ConceptFull{UUID: c.UUID, Display: c.Display, Name: c.Display}
}

type NameRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
}

type NameDefault struct {
	UUID        string `json:"uuid"`
	Display     string `json:"display"`
	Prefix      string `json:"prefix,omitempty"`
	GivenName   string `json:"givenName"`
	MiddleName  string `json:"middleName"`
	FamilyName  string `json:"familyName"`
	FamilyName2 string `json:"familyName2"`
	Degree      string `json:"degree,omitempty"`
	Preferred   bool   `json:"preferred"`
	Voided      bool   `json:"voided"`
}

type NameFull struct {
	NameDefault
	AuditInfo AuditInfo `json:"auditInfo"`
}

func nameRef(n *patient.PersonName) NameRef {
	return NameRef{UUID: n.UUID.String(), Display: n.FullName()}
}

func nameDefault(n *patient.PersonName) NameDefault {
	return NameDefault{
		UUID:        n.UUID.String(),
		Display:     n.FullName(),
		Prefix:      n.Prefix,
		GivenName:   n.GivenName,
		MiddleName:  n.MiddleName,
		FamilyName:  n.FamilyName,
		FamilyName2: n.FamilyName2,
		Degree:      n.Degree,
		Preferred:   n.Preferred,
		Voided:      n.Voided,
	}
}

// Name renders a person name in the requested representation.
func Name(n *patient.PersonName, rep Representation) any {
	switch rep {
	case Ref:
		return nameRef(n)
	case Full:
		return NameFull{NameDefault: nameDefault(n), AuditInfo: auditInfo(n.AuditInfo, &n.VoidInfo)}
	default:
		return nameDefault(n)
	}
}

type AddressRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
}

type AddressDefault struct {
	UUID           string `json:"uuid"`
	Display        string `json:"display"`
	Preferred      bool   `json:"preferred"`
	Address1       string `json:"address1"`
	Address2       string `json:"address2"`
	CityVillage    string `json:"cityVillage"`
	CountyDistrict string `json:"countyDistrict"`
	StateProvince  string `json:"stateProvince"`
	Country        string `json:"country"`
	PostalCode     string `json:"postalCode"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
	Voided         bool   `json:"voided"`
}

type AddressFull struct {
	AddressDefault
	AuditInfo AuditInfo `json:"auditInfo"`
}

func addressRef(a *patient.PersonAddress) AddressRef {
	return AddressRef{UUID: a.UUID.String(), Display: a.Display()}
}

func addressDefault(a *patient.PersonAddress) AddressDefault {
	return AddressDefault{
		UUID:           a.UUID.String(),
		Display:        a.Display(),
		Preferred:      a.Preferred,
		Address1:       a.Address1,
		Address2:       a.Address2,
		CityVillage:    a.CityVillage,
		CountyDistrict: a.CountyDistrict,
		StateProvince:  a.StateProvince,
		Country:        a.Country,
		PostalCode:     a.PostalCode,
		Latitude:       a.Latitude,
		Longitude:      a.Longitude,
		Voided:         a.Voided,
	}
}

// Address renders a person address in the requested representation.
func Address(a *patient.PersonAddress, rep Representation) any {
	switch rep {
	case Ref:
		return addressRef(a)
	case Full:
		return AddressFull{AddressDefault: addressDefault(a), AuditInfo: auditInfo(a.AuditInfo, &a.VoidInfo)}
	default:
		return addressDefault(a)
	}
}

type AttributeRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
}

type AttributeDefault struct {
	UUID          string            `json:"uuid"`
	Display       string            `json:"display"`
	Value         string            `json:"value"`
	AttributeType *AttributeTypeRef `json:"attributeType"`
	Voided        bool              `json:"voided"`
}

func attributeRef(a *patient.PersonAttribute) AttributeRef {
	return AttributeRef{UUID: a.UUID.String(), Display: a.Display()}
}

func attributeDefault(a *patient.PersonAttribute) AttributeDefault {
	out := AttributeDefault{
		UUID:    a.UUID.String(),
		Display: a.Display(),
		Value:   a.Value,
		Voided:  a.Voided,
	}
	if a.AttributeType != nil {
		r := attributeTypeRef(a.AttributeType)
		out.AttributeType = &r
	}
	return out
}

type AttributeTypeRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
}

type AttributeTypeDefault struct {
	UUID        string `json:"uuid"`
	Display     string `json:"display"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Format      string `json:"format"`
	Searchable  bool   `json:"searchable"`
}

type AttributeTypeFull struct {
	AttributeTypeDefault
	AuditInfo AuditInfo `json:"auditInfo"`
}

func attributeTypeRef(t *patient.PersonAttributeType) AttributeTypeRef {
	return AttributeTypeRef{UUID: t.UUID.String(), Display: t.Name}
}

// AttributeType renders a person attribute type in the requested representation.
func AttributeType(t *patient.PersonAttributeType, rep Representation) any {
	def := AttributeTypeDefault{
		UUID:        t.UUID.String(),
		Display:     t.Name,
		Name:        t.Name,
		Description: t.Description,
		Format:      t.Format,
		Searchable:  t.Searchable,
	}
	switch rep {
	case Ref:
		return attributeTypeRef(t)
	case Full:
		return AttributeTypeFull{AttributeTypeDefault: def, AuditInfo: auditInfo(t.AuditInfo, nil)}
	default:
		return def
	}
}
