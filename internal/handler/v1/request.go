package v1

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/service"
)

// Date accepts either a calendar date or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

type conceptRequest struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
}

func (r *conceptRequest) toDomain() *patient.ConceptRef {
	if r == nil {
		return nil
	}
	return &patient.ConceptRef{UUID: r.UUID, Display: r.Display}
}

type nameRequest struct {
	UUID        *uuid.UUID `json:"uuid"`
	Prefix      string     `json:"prefix"`
	GivenName   string     `json:"givenName"`
	MiddleName  string     `json:"middleName"`
	FamilyName  string     `json:"familyName"`
	FamilyName2 string     `json:"familyName2"`
	Degree      string     `json:"degree"`
	Preferred   bool       `json:"preferred"`
}

func (r nameRequest) toDomain() patient.NameInput {
	return patient.NameInput{
		UUID:        r.UUID,
		Prefix:      r.Prefix,
		GivenName:   r.GivenName,
		MiddleName:  r.MiddleName,
		FamilyName:  r.FamilyName,
		FamilyName2: r.FamilyName2,
		Degree:      r.Degree,
		Preferred:   r.Preferred,
	}
}

type addressRequest struct {
	UUID           *uuid.UUID `json:"uuid"`
	Address1       string     `json:"address1"`
	Address2       string     `json:"address2"`
	CityVillage    string     `json:"cityVillage"`
	CountyDistrict string     `json:"countyDistrict"`
	StateProvince  string     `json:"stateProvince"`
	Country        string     `json:"country"`
	PostalCode     string     `json:"postalCode"`
	Latitude       string     `json:"latitude"`
	Longitude      string     `json:"longitude"`
	Preferred      bool       `json:"preferred"`
}

func (r addressRequest) toDomain() patient.AddressInput {
	return patient.AddressInput{
		UUID:           r.UUID,
		Address1:       r.Address1,
		Address2:       r.Address2,
		CityVillage:    r.CityVillage,
		CountyDistrict: r.CountyDistrict,
		StateProvince:  r.StateProvince,
		Country:        r.Country,
		PostalCode:     r.PostalCode,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		Preferred:      r.Preferred,
	}
}

type identifierRequest struct {
	UUID           *uuid.UUID `json:"uuid"`
	Identifier     string     `json:"identifier"`
	IdentifierType uuid.UUID  `json:"identifierType"`
	Preferred      bool       `json:"preferred"`
}

func (r identifierRequest) toDomain() patient.IdentifierInput {
	return patient.IdentifierInput{
		UUID:           r.UUID,
		Identifier:     r.Identifier,
		IdentifierType: r.IdentifierType,
		Preferred:      r.Preferred,
	}
}

type attributeRequest struct {
	AttributeType uuid.UUID `json:"attributeType"`
	Value         string    `json:"value"`
}

type createPatientRequest struct {
	Gender             string              `json:"gender"`
	Birthdate          *Date               `json:"birthdate"`
	BirthdateEstimated bool                `json:"birthdateEstimated"`
	Dead               bool                `json:"dead"`
	DeathDate          *Date               `json:"deathDate"`
	CauseOfDeath       *conceptRequest     `json:"causeOfDeath"`
	Names              []nameRequest       `json:"names"`
	Addresses          []addressRequest    `json:"addresses"`
	Identifiers        []identifierRequest `json:"identifiers"`
	Attributes         []attributeRequest  `json:"attributes"`
}

func (r *createPatientRequest) toCommand() *patient.CreatePatientCommand {
	cmd := &patient.CreatePatientCommand{
		Gender:             patient.Gender(strings.ToUpper(strings.TrimSpace(r.Gender))),
		Birthdate:          r.Birthdate.ptr(),
		BirthdateEstimated: r.BirthdateEstimated,
		Dead:               r.Dead,
		DeathDate:          r.DeathDate.ptr(),
		CauseOfDeath:       r.CauseOfDeath.toDomain(),
	}
	for _, n := range r.Names {
		cmd.Names = append(cmd.Names, n.toDomain())
	}
	for _, a := range r.Addresses {
		cmd.Addresses = append(cmd.Addresses, a.toDomain())
	}
	for _, id := range r.Identifiers {
		cmd.Identifiers = append(cmd.Identifiers, id.toDomain())
	}
	for _, at := range r.Attributes {
		cmd.Attributes = append(cmd.Attributes, patient.AttributeInput{AttributeType: at.AttributeType, Value: at.Value})
	}
	return cmd
}

type updatePatientRequest struct {
	Gender              *string            `json:"gender"`
	Birthdate           *Date              `json:"birthdate"`
	BirthdateEstimated  *bool              `json:"birthdateEstimated"`
	Dead                *bool              `json:"dead"`
	DeathDate           *Date              `json:"deathDate"`
	CauseOfDeath        *conceptRequest    `json:"causeOfDeath"`
	PreferredName       *nameRequest       `json:"preferredName"`
	PreferredAddress    *addressRequest    `json:"preferredAddress"`
	PreferredIdentifier *identifierRequest `json:"preferredIdentifier"`
}

func (r *updatePatientRequest) toCommand() *patient.UpdatePatientCommand {
	cmd := &patient.UpdatePatientCommand{
		Birthdate:          r.Birthdate.ptr(),
		BirthdateEstimated: r.BirthdateEstimated,
		Dead:               r.Dead,
		DeathDate:          r.DeathDate.ptr(),
		CauseOfDeath:       r.CauseOfDeath.toDomain(),
	}
	if r.Gender != nil {
		g := patient.Gender(strings.ToUpper(strings.TrimSpace(*r.Gender)))
		cmd.Gender = &g
	}
	if r.PreferredName != nil {
		in := r.PreferredName.toDomain()
		cmd.PreferredName = &in
	}
	if r.PreferredAddress != nil {
		in := r.PreferredAddress.toDomain()
		cmd.PreferredAddress = &in
	}
	if r.PreferredIdentifier != nil {
		in := r.PreferredIdentifier.toDomain()
		cmd.PreferredIdentifier = &in
	}
	return cmd
}

type updateIdentifierRequest struct {
	Identifier     *string    `json:"identifier"`
	IdentifierType *uuid.UUID `json:"identifierType"`
	Preferred      *bool      `json:"preferred"`
}

type identifierTypeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Format      string `json:"format"`
	Required    bool   `json:"required"`
}

type attributeTypeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Format      string `json:"format"`
	Searchable  bool   `json:"searchable"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type createUserRequest struct {
	Email       string     `json:"email" binding:"required,email"`
	Password    string     `json:"password" binding:"required"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        string     `json:"role" binding:"required"`
	PatientUUID *uuid.UUID `json:"patient_uuid"`
}

func (r *createUserRequest) toCommand() service.CreateUserCommand {
	return service.CreateUserCommand{
		Email:       r.Email,
		Password:    r.Password,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Role:        domain.Role(r.Role),
		PatientUUID: r.PatientUUID,
	}
}
