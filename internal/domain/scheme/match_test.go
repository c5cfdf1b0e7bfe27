package scheme

import (
	"encoding/json"
	"testing"
)

func cats(v ...Category) *CategorySet {
	s := CategorySet(v)
	return &s
}

func genders(v ...Gender) *GenderSet {
	s := GenderSet(v)
	return &s
}

func TestCriteria_Admits(t *testing.T) {
	adult := Attributes{Age: 45, Income: 30000, Category: CategorySC, Gender: GenderMale}

	tests := []struct {
		name     string
		criteria Criteria
		attrs    Attributes
		want     bool
	}{
		{"no criteria", Criteria{}, adult, true},
		{
			"all groups satisfied",
			Criteria{
				Age:      &AgeRange{Min: intPtr(18), Max: intPtr(60)},
				Income:   &IncomeCeiling{Max: 50000},
				Category: cats(CategorySC, CategoryST),
			},
			adult, true,
		},
		{"gender excluded", Criteria{Gender: genders(GenderFemale)}, adult, false},
		{"below min age", Criteria{Age: &AgeRange{Min: intPtr(60)}}, adult, false},
		{"above max age", Criteria{Age: &AgeRange{Max: intPtr(14)}}, adult, false},
		{"min age inclusive", Criteria{Age: &AgeRange{Min: intPtr(45)}}, adult, true},
		{"max age inclusive", Criteria{Age: &AgeRange{Max: intPtr(45)}}, adult, true},
		{"only max on age", Criteria{Age: &AgeRange{Max: intPtr(100)}}, Attributes{Age: 0, Category: CategoryGeneral, Gender: GenderOther}, true},
		{"zero min is a constraint", Criteria{Age: &AgeRange{Min: intPtr(0)}}, Attributes{Age: 0}, true},
		{"zero max is a constraint", Criteria{Age: &AgeRange{Max: intPtr(0)}}, Attributes{Age: 1}, false},
		{"income over ceiling", Criteria{Income: &IncomeCeiling{Max: 29999}}, adult, false},
		{"income at ceiling", Criteria{Income: &IncomeCeiling{Max: 30000}}, adult, true},
		{"zero ceiling admits zero income", Criteria{Income: &IncomeCeiling{Max: 0}}, Attributes{Income: 0}, true},
		{"category not listed", Criteria{Category: cats(CategoryGeneral)}, adult, false},
		{"empty category set admits nobody", Criteria{Category: cats()}, adult, false},
		{"empty gender set admits nobody", Criteria{Gender: genders()}, adult, false},
		{"one failing group rejects", Criteria{Income: &IncomeCeiling{Max: 50000}, Gender: genders(GenderFemale)}, adult, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.criteria.Admits(tt.attrs); got != tt.want {
				t.Errorf("Admits() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_PreservesCatalogOrder(t *testing.T) {
	catalog := DemoCatalog()
	a := Attributes{Age: 30, Income: 100000, Category: CategoryOBC, Gender: GenderFemale}

	got := Match(a, catalog)
	want := []string{"Health For All", "Maternal Welfare Scheme", "Universal Health Coverage"}
	if len(got) != len(want) {
		t.Fatalf("expected %d schemes, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("match[%d]: expected %q, got %q", i, name, got[i].Name)
		}
	}
}

func TestMatch_EmptyCatalog(t *testing.T) {
	got := Match(Attributes{Age: 10}, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestMatch_UnconstrainedSchemeAlwaysIncluded(t *testing.T) {
	open := &Scheme{Name: "open"}
	for _, a := range []Attributes{
		{Age: 0, Income: 0, Category: CategoryGeneral, Gender: GenderMale},
		{Age: 120, Income: 1e9, Category: CategoryST, Gender: GenderOther},
	} {
		if got := Match(a, []*Scheme{open}); len(got) != 1 {
			t.Errorf("expected unconstrained scheme for %+v", a)
		}
	}
}

func TestCriteria_JSONAbsentVersusEmpty(t *testing.T) {
	var c Criteria
	if err := json.Unmarshal([]byte(`{"age":{"max":14},"category":[]}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Age == nil || c.Age.Min != nil || c.Age.Max == nil || *c.Age.Max != 14 {
		t.Errorf("unexpected age group: %+v", c.Age)
	}
	if c.Category == nil || len(*c.Category) != 0 {
		t.Errorf("expected present empty category set, got %v", c.Category)
	}
	if c.Gender != nil || c.Income != nil {
		t.Errorf("expected absent gender and income groups")
	}

	raw, err := json.Marshal(Criteria{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("expected empty object, got %s", raw)
	}
}

func TestScheme_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scheme  Scheme
		wantErr bool
	}{
		{"valid", Scheme{Name: "x"}, false},
		{"missing name", Scheme{}, true},
		{"inverted age", Scheme{Name: "x", EligibilityCriteria: Criteria{Age: &AgeRange{Min: intPtr(10), Max: intPtr(5)}}}, true},
		{"negative ceiling", Scheme{Name: "x", EligibilityCriteria: Criteria{Income: &IncomeCeiling{Max: -1}}}, true},
		{"unknown category", Scheme{Name: "x", EligibilityCriteria: Criteria{Category: cats("ews")}}, true},
		{"unknown gender", Scheme{Name: "x", EligibilityCriteria: Criteria{Gender: genders("m")}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scheme.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
