package patient

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPatient_Age(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		patient Patient
		want    *int
	}{
		{name: "no birthdate", patient: Patient{}, want: nil},
		{name: "birthday passed", patient: Patient{Birthdate: date(1990, time.January, 1)}, want: intPtr(34)},
		{name: "birthday not yet", patient: Patient{Birthdate: date(1990, time.December, 1)}, want: intPtr(33)},
		{name: "birthday today", patient: Patient{Birthdate: date(2000, time.June, 15)}, want: intPtr(24)},
		{
			name:    "dead uses death date",
			patient: Patient{Birthdate: date(1950, time.March, 10), Dead: true, DeathDate: date(2000, time.March, 9)},
			want:    intPtr(49),
		},
		{
			name:    "dead without death date uses now",
			patient: Patient{Birthdate: date(1950, time.March, 10), Dead: true},
			want:    intPtr(74),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.patient.Age(now))
		})
	}
}

func intPtr(v int) *int { return &v }

func TestPatient_DisplayString(t *testing.T) {
	p := &Patient{
		Identifiers: []*Identifier{
			{UUID: uuid.New(), Identifier: "OLD-1"},
			{UUID: uuid.New(), Identifier: "MRN-42", Preferred: true},
		},
		Names: []*PersonName{
			{UUID: uuid.New(), GivenName: "Jane", MiddleName: "Q", FamilyName: "Doe", Preferred: true},
		},
	}

	assert.Equal(t, "MRN-42 - Jane Q Doe", p.DisplayString())

	p.Identifiers = nil
	assert.Equal(t, "Jane Q Doe", p.DisplayString())
}

func TestPatient_PreferredFallsBackToFirstActive(t *testing.T) {
	voided := &PersonName{UUID: uuid.New(), GivenName: "Old", Preferred: true}
	voided.Voided = true
	active := &PersonName{UUID: uuid.New(), GivenName: "Current"}
	p := &Patient{Names: []*PersonName{voided, active}}

	assert.Same(t, active, p.PreferredName())
	assert.Nil(t, (&Patient{}).PreferredAddress())
}

func TestPatient_VoidCascades(t *testing.T) {
	by := uuid.New()
	at := time.Now()
	p := &Patient{
		Names:       []*PersonName{{UUID: uuid.New()}},
		Addresses:   []*PersonAddress{{UUID: uuid.New()}},
		Identifiers: []*Identifier{{UUID: uuid.New()}},
		Attributes:  []*PersonAttribute{{UUID: uuid.New()}},
	}

	assert.ErrorIs(t, p.Void(by, "", at), ErrVoidReasonRequired)
	require.NoError(t, p.Void(by, "duplicate record", at))

	assert.True(t, p.Voided)
	assert.Equal(t, "duplicate record", p.VoidReason)
	assert.True(t, p.Names[0].Voided)
	assert.True(t, p.Addresses[0].Voided)
	assert.True(t, p.Identifiers[0].Voided)
	assert.True(t, p.Attributes[0].Voided)
	assert.Empty(t, p.ActiveIdentifiers())
	assert.Empty(t, p.ActiveAttributes())

	// Voiding again keeps the original trail.
	require.NoError(t, p.Void(uuid.New(), "other", at.Add(time.Hour)))
	assert.Equal(t, "duplicate record", p.VoidReason)
}

func TestIdentifierType_Validate(t *testing.T) {
	mrn := &IdentifierType{Name: "MRN", Format: `\d{4}-\d`}

	assert.NoError(t, mrn.Validate("1234-5"))
	assert.ErrorIs(t, mrn.Validate("1234-56"), ErrIdentifierFormat)
	assert.ErrorIs(t, mrn.Validate("x1234-5"), ErrIdentifierFormat)
	assert.NoError(t, (&IdentifierType{Name: "Free"}).Validate("anything"))

	_, err := NewIdentifier("  ", mrn, false, uuid.New())
	assert.ErrorIs(t, err, ErrIdentifierFormat)

	id, err := NewIdentifier(" 1234-5 ", &IdentifierType{ID: 4, Name: "MRN", Format: `\d{4}-\d`}, true, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "1234-5", id.Identifier)
	assert.Equal(t, uint64(4), id.IdentifierTypeID)
	assert.Equal(t, "MRN = 1234-5", id.Display())
}

func TestGender_IsValid(t *testing.T) {
	for _, g := range []Gender{GenderMale, GenderFemale, GenderOther, GenderUnknown} {
		assert.True(t, g.IsValid(), g)
	}
	assert.False(t, Gender("male").IsValid())
}

func TestPersonName_BeforeSave(t *testing.T) {
	n := NewName(NameInput{Prefix: "Dr", GivenName: "Ada", FamilyName: "Lovelace", FamilyName2: "Byron", Degree: "PhD"}, uuid.New())
	require.NoError(t, n.BeforeSave(nil))
	assert.Equal(t, "Ada Lovelace Byron", n.SearchName)

	n.MiddleName = "Augusta"
	require.NoError(t, n.BeforeSave(nil))
	assert.Equal(t, "Ada Augusta Lovelace Byron", n.SearchName)
}
