package representation

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
)

type PatientRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
	URI     string `json:"uri"`
}

type PatientDefault struct {
	UUID               string          `json:"uuid"`
	Gender             string          `json:"gender"`
	Age                *int            `json:"age"`
	Birthdate          *string         `json:"birthdate"`
	BirthdateEstimated bool            `json:"birthdateEstimated"`
	Dead               bool            `json:"dead"`
	DeathDate          *time.Time      `json:"deathDate"`
	CauseOfDeath       *ConceptRef     `json:"causeOfDeath"`
	PreferredName      *NameRef        `json:"preferredName"`
	PreferredAddress   *AddressRef     `json:"preferredAddress"`
	ActiveIdentifiers  []IdentifierRef `json:"activeIdentifiers"`
	ActiveAttributes   []AttributeRef  `json:"activeAttributes"`
	URI                string          `json:"uri"`
}

type PatientFull struct {
	UUID               string              `json:"uuid"`
	Gender             string              `json:"gender"`
	Age                *int                `json:"age"`
	Birthdate          *string             `json:"birthdate"`
	BirthdateEstimated bool                `json:"birthdateEstimated"`
	Dead               bool                `json:"dead"`
	DeathDate          *time.Time          `json:"deathDate"`
	CauseOfDeath       *ConceptFull        `json:"causeOfDeath"`
	PreferredName      *NameDefault        `json:"preferredName"`
	PreferredAddress   *AddressDefault     `json:"preferredAddress"`
	Names              []NameDefault       `json:"names"`
	Addresses          []AddressDefault    `json:"addresses"`
	Identifiers        []IdentifierDefault `json:"identifiers"`
	Attributes         []AttributeDefault  `json:"attributes"`
	AuditInfo          AuditInfo           `json:"auditInfo"`
	URI                string              `json:"uri"`
}

func (b *Builder) PatientURI(p *patient.Patient) string {
	return b.BaseURL + "/patient/" + p.UUID.String()
}

// Patient renders p in the requested representation.
func (b *Builder) Patient(p *patient.Patient, rep Representation) any {
	switch rep {
	case Ref:
		return b.PatientRef(p)
	case Full:
		return b.PatientFull(p)
	default:
		return b.PatientDefault(p)
	}
}

func (b *Builder) PatientRef(p *patient.Patient) PatientRef {
	return PatientRef{
		UUID:    p.UUID.String(),
		Display: p.DisplayString(),
		URI:     b.PatientURI(p),
	}
}

func (b *Builder) PatientDefault(p *patient.Patient) PatientDefault {
	out := PatientDefault{
		UUID:               p.UUID.String(),
		Gender:             string(p.Gender),
		Age:                p.Age(b.Now()),
		Birthdate:          formatDate(p.Birthdate),
		BirthdateEstimated: p.BirthdateEstimated,
		Dead:               p.Dead,
		DeathDate:          p.DeathDate,
		ActiveIdentifiers:  make([]IdentifierRef, 0, len(p.Identifiers)),
		ActiveAttributes:   make([]AttributeRef, 0, len(p.Attributes)),
		URI:                b.PatientURI(p),
	}
	if !p.CauseOfDeath.IsZero() {
		c := conceptRef(p.CauseOfDeath)
		out.CauseOfDeath = &c
	}
	if n := p.PreferredName(); n != nil {
		r := nameRef(n)
		out.PreferredName = &r
	}
	if a := p.PreferredAddress(); a != nil {
		r := addressRef(a)
		out.PreferredAddress = &r
	}
	for _, id := range p.ActiveIdentifiers() {
		out.ActiveIdentifiers = append(out.ActiveIdentifiers, b.IdentifierRef(p, id))
	}
	for _, attr := range p.ActiveAttributes() {
		out.ActiveAttributes = append(out.ActiveAttributes, attributeRef(attr))
	}
	return out
}

func (b *Builder) PatientFull(p *patient.Patient) PatientFull {
	out := PatientFull{
		UUID:               p.UUID.String(),
		Gender:             string(p.Gender),
		Age:                p.Age(b.Now()),
		Birthdate:          formatDate(p.Birthdate),
		BirthdateEstimated: p.BirthdateEstimated,
		Dead:               p.Dead,
		DeathDate:          p.DeathDate,
		Names:              make([]NameDefault, 0, len(p.Names)),
		Addresses:          make([]AddressDefault, 0, len(p.Addresses)),
		Identifiers:        make([]IdentifierDefault, 0, len(p.Identifiers)),
		Attributes:         make([]AttributeDefault, 0, len(p.Attributes)),
		AuditInfo:          auditInfo(p.AuditInfo, &p.VoidInfo),
		URI:                b.PatientURI(p),
	}
	if !p.CauseOfDeath.IsZero() {
		c := conceptFull(p.CauseOfDeath)
		out.CauseOfDeath = &c
	}
	if n := p.PreferredName(); n != nil {
		d := nameDefault(n)
		out.PreferredName = &d
	}
	if a := p.PreferredAddress(); a != nil {
		d := addressDefault(a)
		out.PreferredAddress = &d
	}
	for _, n := range p.Names {
		out.Names = append(out.Names, nameDefault(n))
	}
	for _, a := range p.Addresses {
		out.Addresses = append(out.Addresses, addressDefault(a))
	}
	for _, id := range p.Identifiers {
		out.Identifiers = append(out.Identifiers, b.IdentifierDefault(p, id))
	}
	for _, attr := range p.Attributes {
		out.Attributes = append(out.Attributes, attributeDefault(attr))
	}
	return out
}

// Patients renders a page of search results.
func (b *Builder) Patients(ps []*patient.Patient, rep Representation, links ...Link) List {
	out := make([]any, 0, len(ps))
	for _, p := range ps {
		out = append(out, b.Patient(p, rep))
	}
	return List{Results: out, Links: links}
}
