package scraper

import (
	"context"

	"proxyfinder/internal/model"
)

// Source defines the interface that all proxy sources must implement.
type Source interface {
	// Name returns the unique name of the source.
	Name() string

	// Fetch retrieves and normalizes candidates from the source.
	// Malformed records are dropped by the source; an error means the
	// whole source is unusable for this fetch.
	Fetch(ctx context.Context) ([]model.Candidate, error)
}

// CountryResolver resolves the country of an IP address.
type CountryResolver interface {
	Country(ip string) (string, bool)
}
