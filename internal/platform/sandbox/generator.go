package sandbox

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/schemedesk/schemedesk/internal/domain/patient"
	"github.com/schemedesk/schemedesk/internal/domain/scheme"
)

var (
	firstNamesMale   = []string{"Arjun", "Ravi", "Suresh", "Imran", "Vikram", "Harpreet", "Anil", "Joseph", "Mohan", "Rahul"}
	firstNamesFemale = []string{"Lakshmi", "Priya", "Asha", "Fatima", "Meena", "Sunita", "Kavya", "Mary", "Gurpreet", "Anjali"}
	lastNames        = []string{"Sharma", "Iyer", "Khan", "Patel", "Reddy", "Singh", "Das", "Nair", "Yadav", "Kulkarni"}
	streets          = []string{"Station Road", "Temple Street", "Gandhi Nagar", "Market Lane", "Canal Road", "School Street"}
	towns            = []string{"Nagpur", "Madurai", "Varanasi", "Kochi", "Bhopal", "Guwahati", "Mysuru", "Ajmer"}
	diseases         = []string{"Hypertension", "Type 2 diabetes", "Tuberculosis", "Anemia", "Cataract", "Asthma", "Malaria", "Chronic kidney disease"}
	histories        = []string{"", "No prior admissions", "Previous surgery in 2019", "Family history of diabetes", "Smoker"}
	categories       = []scheme.Category{scheme.CategoryGeneral, scheme.CategoryOBC, scheme.CategorySC, scheme.CategoryST}
)

// DataGenerator produces deterministic synthetic patient registrations.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("9%09d", g.rng.Intn(1000000000))
}

// GeneratePatient returns a registration that passes patient validation.
// Ages and incomes are spread so every demo scheme gets some matches.
func (g *DataGenerator) GeneratePatient() *patient.Patient {
	p := &patient.Patient{
		Age:             g.rng.Intn(90),
		Address:         fmt.Sprintf("%d %s, %s", 1+g.rng.Intn(200), g.pick(streets), g.pick(towns)),
		Contact:         g.randomPhone(),
		MedicalHistory:  g.pick(histories),
		Income:          float64(10000 * g.rng.Intn(60)),
		Category:        categories[g.rng.Intn(len(categories))],
		InsuranceStatus: g.rng.Intn(4) == 0,
		Disease:         g.pick(diseases),
	}
	first := ""
	switch g.rng.Intn(10) {
	case 0:
		p.Gender = scheme.GenderOther
		first = g.pick(append(append([]string{}, firstNamesMale...), firstNamesFemale...))
	case 1, 2, 3, 4:
		p.Gender = scheme.GenderMale
		first = g.pick(firstNamesMale)
	default:
		p.Gender = scheme.GenderFemale
		first = g.pick(firstNamesFemale)
	}
	p.Name = first + " " + g.pick(lastNames)
	return p
}
