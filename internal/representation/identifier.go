package representation

import "github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"

type IdentifierRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
	URI     string `json:"uri"`
}

type IdentifierDefault struct {
	UUID           string             `json:"uuid"`
	Display        string             `json:"display"`
	Identifier     string             `json:"identifier"`
	IdentifierType *IdentifierTypeRef `json:"identifierType"`
	Preferred      bool               `json:"preferred"`
	Voided         bool               `json:"voided"`
	URI            string             `json:"uri"`
}

type IdentifierFull struct {
	IdentifierDefault
	AuditInfo AuditInfo `json:"auditInfo"`
}

func (b *Builder) IdentifierURI(p *patient.Patient, id *patient.Identifier) string {
	return b.PatientURI(p) + "/identifier/" + id.UUID.String()
}

func (b *Builder) IdentifierRef(p *patient.Patient, id *patient.Identifier) IdentifierRef {
	return IdentifierRef{
		UUID:    id.UUID.String(),
		Display: id.Display(),
		URI:     b.IdentifierURI(p, id),
	}
}

func (b *Builder) IdentifierDefault(p *patient.Patient, id *patient.Identifier) IdentifierDefault {
	out := IdentifierDefault{
		UUID:       id.UUID.String(),
		Display:    id.Display(),
		Identifier: id.Identifier,
		Preferred:  id.Preferred,
		Voided:     id.Voided,
		URI:        b.IdentifierURI(p, id),
	}
	if id.IdentifierType != nil {
		r := b.IdentifierTypeRef(id.IdentifierType)
		out.IdentifierType = &r
	}
	return out
}

// Identifier renders a patient identifier in the requested representation.
func (b *Builder) Identifier(p *patient.Patient, id *patient.Identifier, rep Representation) any {
	switch rep {
	case Ref:
		return b.IdentifierRef(p, id)
	case Full:
		return IdentifierFull{
			IdentifierDefault: b.IdentifierDefault(p, id),
			AuditInfo:         auditInfo(id.AuditInfo, &id.VoidInfo),
		}
	default:
		return b.IdentifierDefault(p, id)
	}
}

// Identifiers renders the identifier sub-resource collection.
func (b *Builder) Identifiers(p *patient.Patient, ids []*patient.Identifier, rep Representation) List {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.Identifier(p, id, rep))
	}
	return List{Results: out}
}

type IdentifierTypeRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
	URI     string `json:"uri"`
}

type IdentifierTypeDefault struct {
	UUID        string `json:"uuid"`
	Display     string `json:"display"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Format      string `json:"format"`
	Required    bool   `json:"required"`
	URI         string `json:"uri"`
}

type IdentifierTypeFull struct {
	IdentifierTypeDefault
	AuditInfo AuditInfo `json:"auditInfo"`
}

func (b *Builder) identifierTypeURI(t *patient.IdentifierType) string {
	return b.BaseURL + "/patientidentifiertype/" + t.UUID.String()
}

func (b *Builder) IdentifierTypeRef(t *patient.IdentifierType) IdentifierTypeRef {
	return IdentifierTypeRef{UUID: t.UUID.String(), Display: t.Name, URI: b.identifierTypeURI(t)}
}

// IdentifierType renders an identifier type in the requested representation.
func (b *Builder) IdentifierType(t *patient.IdentifierType, rep Representation) any {
	def := IdentifierTypeDefault{
		UUID:        t.UUID.String(),
		Display:     t.Name,
		Name:        t.Name,
		Description: t.Description,
		Format:      t.Format,
		Required:    t.Required,
		URI:         b.identifierTypeURI(t),
	}
	switch rep {
	case Ref:
		return b.IdentifierTypeRef(t)
	case Full:
		return IdentifierTypeFull{IdentifierTypeDefault: def, AuditInfo: auditInfo(t.AuditInfo, nil)}
	default:
		return def
	}
}
