package scheme

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryGeneral Category = "general"
	CategoryOBC     Category = "obc"
	CategorySC      Category = "sc"
	CategoryST      Category = "st"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryOBC, CategorySC, CategoryST:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// AgeRange bounds are inclusive. A nil bound is open.
type AgeRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// IncomeCeiling rejects incomes above Max. There is no floor.
type IncomeCeiling struct {
	Max float64 `json:"max"`
}

// CategorySet and GenderSet list the admitted values. A present but empty
// set admits nobody.
type CategorySet []Category

type GenderSet []Gender

// Criteria holds the four optional predicate groups. A nil group imposes no
// constraint.
type Criteria struct {
	Age      *AgeRange      `json:"age,omitempty"`
	Income   *IncomeCeiling `json:"income,omitempty"`
	Category *CategorySet   `json:"category,omitempty"`
	Gender   *GenderSet     `json:"gender,omitempty"`
}

type Scheme struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	EligibilityCriteria Criteria  `json:"eligibilityCriteria"`
	Benefits            []string  `json:"benefits"`
	Documents           []string  `json:"documents"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Attributes are the patient fields eligibility looks at.
type Attributes struct {
	Age      int      `json:"age"`
	Income   float64  `json:"income"`
	Category Category `json:"category"`
	Gender   Gender   `json:"gender"`
}

// ValidationError lists every offending field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid " + strings.Join(e.Fields, ", ")
}

// Validate checks a scheme before it enters the catalog.
func (s *Scheme) Validate() error {
	var bad []string
	if strings.TrimSpace(s.Name) == "" {
		bad = append(bad, "name")
	}
	c := s.EligibilityCriteria
	if c.Age != nil {
		if (c.Age.Min != nil && *c.Age.Min < 0) || (c.Age.Max != nil && *c.Age.Max < 0) ||
			(c.Age.Min != nil && c.Age.Max != nil && *c.Age.Min > *c.Age.Max) {
			bad = append(bad, "eligibilityCriteria.age")
		}
	}
	if c.Income != nil && c.Income.Max < 0 {
		bad = append(bad, "eligibilityCriteria.income")
	}
	if c.Category != nil {
		for _, v := range *c.Category {
			if !v.Valid() {
				bad = append(bad, fmt.Sprintf("eligibilityCriteria.category (%q)", v))
				break
			}
		}
	}
	if c.Gender != nil {
		for _, v := range *c.Gender {
			if !v.Valid() {
				bad = append(bad, fmt.Sprintf("eligibilityCriteria.gender (%q)", v))
				break
			}
		}
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// Validate checks ad-hoc attributes sent to the eligibility preview.
func (a Attributes) Validate() error {
	var bad []string
	if a.Age < 0 {
		bad = append(bad, "age")
	}
	if a.Income < 0 {
		bad = append(bad, "income")
	}
	if !a.Category.Valid() {
		bad = append(bad, "category")
	}
	if !a.Gender.Valid() {
		bad = append(bad, "gender")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// normalize replaces nil lists so JSON always carries arrays.
func (s *Scheme) normalize() {
	if s.Benefits == nil {
		s.Benefits = []string{}
	}
	if s.Documents == nil {
		s.Documents = []string{}
	}
}
