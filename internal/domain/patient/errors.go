package patient

import "errors"

var (
	ErrPatientNotFound        = errors.New("patient not found")
	ErrIdentifierNotFound     = errors.New("patient identifier not found")
	ErrIdentifierTypeNotFound = errors.New("patient identifier type not found")
	ErrAttributeTypeNotFound  = errors.New("person attribute type not found")
	ErrNameNotFound           = errors.New("person name not found")
	ErrAddressNotFound        = errors.New("person address not found")
	ErrIdentifierInUse        = errors.New("identifier is already assigned to another patient")
	ErrIdentifierFormat       = errors.New("identifier does not match the format of its type")
	ErrLastIdentifier         = errors.New("cannot void the only active identifier of a patient")
	ErrPreferredVoided        = errors.New("a voided item cannot be marked preferred")
	ErrPatientVoided          = errors.New("operation not permitted: patient is voided")
	ErrIdentifierVoided       = errors.New("operation not permitted: identifier is voided")
	ErrVoidReasonRequired     = errors.New("a reason is required to void")
	ErrInvalidGender          = errors.New("invalid gender value")
	ErrMetadataExists         = errors.New("a type with this name already exists")
)
