package scheme

// Admits reports whether a satisfies every present predicate group.
func (c Criteria) Admits(a Attributes) bool {
	if c.Age != nil {
		if c.Age.Min != nil && a.Age < *c.Age.Min {
			return false
		}
		if c.Age.Max != nil && a.Age > *c.Age.Max {
			return false
		}
	}
	if c.Income != nil && a.Income > c.Income.Max {
		return false
	}
	if c.Category != nil && !contains(*c.Category, a.Category) {
		return false
	}
	if c.Gender != nil && !contains(*c.Gender, a.Gender) {
		return false
	}
	return true
}

// Match returns the schemes in catalog whose criteria admit a, in catalog
// order.
func Match(a Attributes, catalog []*Scheme) []*Scheme {
	matched := make([]*Scheme, 0, len(catalog))
	for _, s := range catalog {
		if s == nil {
			continue
		}
		if s.EligibilityCriteria.Admits(a) {
			matched = append(matched, s)
		}
	}
	return matched
}

func contains[T comparable](set []T, v T) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}
