package patient

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/schemedesk/schemedesk/internal/domain/scheme"
)

var ErrNotFound = errors.New("patient not found")

// RecommendedScheme is the snapshot of a matched scheme taken at
// registration. It is never re-evaluated against later catalog changes.
type RecommendedScheme struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

type Patient struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	Age                int                 `json:"age"`
	Gender             scheme.Gender       `json:"gender"`
	Address            string              `json:"address"`
	Contact            string              `json:"contact"`
	MedicalHistory     string              `json:"medicalHistory"`
	Income             float64             `json:"income"`
	Category           scheme.Category     `json:"category"`
	InsuranceStatus    bool                `json:"insuranceStatus"`
	Disease            string              `json:"disease"`
	AdditionalNotes    string              `json:"additionalNotes,omitempty"`
	RecommendedSchemes []RecommendedScheme `json:"recommendedSchemes"`
	RegisteredBy       string              `json:"registeredBy,omitempty"`
	FacilityName       string              `json:"facilityName"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// Attributes returns the fields the eligibility matcher reads.
func (p *Patient) Attributes() scheme.Attributes {
	return scheme.Attributes{Age: p.Age, Income: p.Income, Category: p.Category, Gender: p.Gender}
}

// ValidationError lists every field that failed registration checks.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid patient fields: " + strings.Join(e.Fields, ", ")
}

func (p *Patient) trim() {
	p.Name = strings.TrimSpace(p.Name)
	p.Address = strings.TrimSpace(p.Address)
	p.Contact = strings.TrimSpace(p.Contact)
	p.Disease = strings.TrimSpace(p.Disease)
	p.MedicalHistory = strings.TrimSpace(p.MedicalHistory)
	p.AdditionalNotes = strings.TrimSpace(p.AdditionalNotes)
}

// Validate applies the registration form rules.
func (p *Patient) Validate() error {
	var bad []string
	if utf8.RuneCountInString(p.Name) < 2 {
		bad = append(bad, "name")
	}
	if p.Age < 0 {
		bad = append(bad, "age")
	}
	if !p.Gender.Valid() {
		bad = append(bad, "gender")
	}
	if utf8.RuneCountInString(p.Contact) < 5 {
		bad = append(bad, "contact")
	}
	if utf8.RuneCountInString(p.Address) < 5 {
		bad = append(bad, "address")
	}
	if p.Disease == "" {
		bad = append(bad, "disease")
	}
	if p.Income < 0 {
		bad = append(bad, "income")
	}
	if !p.Category.Valid() {
		bad = append(bad, "category")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

func (p *Patient) normalize() {
	if p.RecommendedSchemes == nil {
		p.RecommendedSchemes = []RecommendedScheme{}
	}
}
