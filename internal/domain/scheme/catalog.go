package scheme

func intPtr(v int) *int { return &v }

// DemoCatalog returns the schemes seeded into a fresh installation, in
// display order.
func DemoCatalog() []*Scheme {
	female := GenderSet{GenderFemale}
	return []*Scheme{
		{
			Name:        "Health For All",
			Description: "Cashless secondary and tertiary care for low-income households.",
			EligibilityCriteria: Criteria{
				Income: &IncomeCeiling{Max: 250000},
			},
			Benefits:  []string{"Hospitalization cover up to 5,00,000 per family per year", "Cashless treatment at empanelled hospitals"},
			Documents: []string{"Income certificate", "Aadhaar card", "Ration card"},
		},
		{
			Name:        "Senior Care Plus",
			Description: "Geriatric care and chronic disease management for senior citizens.",
			EligibilityCriteria: Criteria{
				Age: &AgeRange{Min: intPtr(60)},
			},
			Benefits:  []string{"Free annual health check-up", "Subsidized medicines for chronic conditions"},
			Documents: []string{"Age proof", "Aadhaar card"},
		},
		{
			Name:        "Maternal Welfare Scheme",
			Description: "Antenatal, delivery, and postnatal support for mothers.",
			EligibilityCriteria: Criteria{
				Age:    &AgeRange{Min: intPtr(18), Max: intPtr(45)},
				Gender: &female,
			},
			Benefits:  []string{"Free institutional delivery", "Nutrition support for six months"},
			Documents: []string{"Aadhaar card", "Antenatal care card", "Bank passbook"},
		},
		{
			Name:        "Child Health Initiative",
			Description: "Screening, immunization, and treatment for children.",
			EligibilityCriteria: Criteria{
				Age: &AgeRange{Max: intPtr(14)},
			},
			Benefits:  []string{"Free immunization", "Treatment for identified childhood conditions"},
			Documents: []string{"Birth certificate", "Parent's Aadhaar card"},
		},
		{
			Name:        "Universal Health Coverage",
			Description: "Primary care and essential diagnostics for every resident.",
			Benefits:    []string{"Free OPD consultation", "Essential diagnostics at government facilities"},
			Documents:   []string{"Any government photo ID"},
		},
	}
}
