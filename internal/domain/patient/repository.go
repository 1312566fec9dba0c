package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient together with the rows it owns.
	Create(ctx context.Context, p *Patient) error

	// GetByUUID loads the full aggregate, voided rows included.
	// Returns ErrPatientNotFound if not found.
	GetByUUID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Update persists the aggregate: changed fields and new or changed members.
	Update(ctx context.Context, p *Patient) error

	// Purge removes the patient and everything it owns.
	Purge(ctx context.Context, p *Patient) error

	// PurgeIdentifier deletes id and saves the rest of p atomically. p must
	// already have had id removed.
	PurgeIdentifier(ctx context.Context, p *Patient, id *Identifier) error

	// Search returns non-voided patients matching an identifier or name fragment.
	Search(ctx context.Context, q SearchQuery) (*SearchResult, error)

	// IdentifierInUse checks uniqueness of an identifier value within its type
	// among active identifiers of other patients.
	IdentifierInUse(ctx context.Context, typeID uint64, value string, excludePatientID uint64) (bool, error)
}

type MetadataRepository interface {
	GetIdentifierType(ctx context.Context, id uuid.UUID) (*IdentifierType, error)
	ListIdentifierTypes(ctx context.Context) ([]*IdentifierType, error)
	CreateIdentifierType(ctx context.Context, t *IdentifierType) error

	GetAttributeType(ctx context.Context, id uuid.UUID) (*PersonAttributeType, error)
	ListAttributeTypes(ctx context.Context) ([]*PersonAttributeType, error)
	CreateAttributeType(ctx context.Context, t *PersonAttributeType) error
}
