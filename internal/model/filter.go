package model

import "strings"

// AllCountries disables the country filter.
const AllCountries = "All Countries"

// Filter describes the subset of candidates a caller wants. The zero value
// matches everything.
type Filter struct {
	country   string
	protocols []string
	anonymity []string
}

// NewFilter copies its inputs so the returned Filter cannot be changed
// through the caller's slices. An empty country or AllCountries means no
// country filter; empty protocol or anonymity sets mean no filter.
func NewFilter(country string, protocols, anonymity []string) Filter {
	return Filter{
		country:   strings.TrimSpace(country),
		protocols: append([]string(nil), protocols...),
		anonymity: append([]string(nil), anonymity...),
	}
}

func (f Filter) Country() string     { return f.country }
func (f Filter) Protocols() []string { return append([]string(nil), f.protocols...) }
func (f Filter) Anonymity() []string { return append([]string(nil), f.anonymity...) }

// Match reports whether c satisfies every active predicate of the filter.
func (f Filter) Match(c Candidate) bool {
	if f.country != "" && !strings.EqualFold(f.country, AllCountries) {
		if !strings.EqualFold(c.Country, f.country) {
			return false
		}
	}
	if len(f.protocols) > 0 && !containsFold(f.protocols, string(c.Protocol)) {
		return false
	}
	if len(f.anonymity) > 0 && !containsFold(f.anonymity, c.Anonymity) {
		return false
	}
	return true
}

// Apply returns the candidates that match f, preserving order.
func (f Filter) Apply(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

// Dedup drops every candidate whose address was already seen. The first
// occurrence wins and relative order is preserved.
func Dedup(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.Address()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

// View selects candidates by validation state.
type View string

const (
	ViewAll     View = "all"
	ViewValid   View = "valid"
	ViewInvalid View = "invalid"
)

// ParseView maps user input to a View, defaulting to ViewAll.
func ParseView(s string) View {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case ViewValid:
		return ViewValid
	case ViewInvalid:
		return ViewInvalid
	default:
		return ViewAll
	}
}

// Select returns the candidates visible under v.
func (v View) Select(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		switch v {
		case ViewValid:
			if c.State != StateValid {
				continue
			}
		case ViewInvalid:
			if c.State != StateInvalid {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
