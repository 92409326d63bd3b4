package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"proxyfinder/internal/logger"
	"proxyfinder/internal/metrics"
	"proxyfinder/internal/model"
)

// ErrNoSources is returned when an Aggregator has nothing to fetch from.
var ErrNoSources = errors.New("no sources configured")

// SourceResult describes the contribution of one source to a fetch.
type SourceResult struct {
	Name  string
	Count int
	Err   error
}

// Report lists per-source outcomes in source declaration order.
type Report []SourceResult

// Err combines the failures of all sources, or returns nil.
func (r Report) Err() error {
	var err error
	for _, s := range r {
		if s.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return err
}

// Failed returns the number of sources that failed.
func (r Report) Failed() int {
	n := 0
	for _, s := range r {
		if s.Err != nil {
			n++
		}
	}
	return n
}

type Option func(*Aggregator)

// WithResolver enables country resolution for candidates whose source
// did not report a country.
func WithResolver(r CountryResolver) Option {
	return func(a *Aggregator) { a.resolver = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithSourceTimeout bounds each individual source fetch.
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.sourceTimeout = d }
}

// Aggregator fetches from all sources concurrently, then merges,
// deduplicates and filters the results.
type Aggregator struct {
	sources       []Source
	resolver      CountryResolver
	metrics       *metrics.Metrics
	sourceTimeout time.Duration
}

func NewAggregator(sources []Source, opts ...Option) *Aggregator {
	a := &Aggregator{sources: sources}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch returns the deduplicated, filtered candidates of all sources.
// A failing source contributes nothing; if every source fails the result
// is an empty list, not an error.
func (a *Aggregator) Fetch(ctx context.Context, filter model.Filter) ([]model.Candidate, error) {
	candidates, _, err := a.FetchWithReport(ctx, filter)
	return candidates, err
}

// FetchWithReport is Fetch plus the per-source outcomes.
func (a *Aggregator) FetchWithReport(ctx context.Context, filter model.Filter) ([]model.Candidate, Report, error) {
	l := logger.WithComponent("Scraper")

	if len(a.sources) == 0 {
		return nil, nil, ErrNoSources
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("fetch not started: %w", err)
	}

	// Each goroutine owns one slot; nothing is shared until Wait returns.
	lists := make([][]model.Candidate, len(a.sources))
	report := make(Report, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			proxies, err := a.fetchOne(ctx, src)
			report[i] = SourceResult{Name: src.Name(), Count: len(proxies), Err: err}
			a.metrics.ObserveSource(src.Name(), len(proxies), err)
			if err != nil {
				l.Warn().Err(err).Str("source", src.Name()).Msg("Source failed, skipping.")
				return nil
			}
			l.Debug().Str("source", src.Name()).Int("count", len(proxies)).Msg("Source fetched.")
			lists[i] = proxies
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("fetch aborted: %w", err)
	}

	var merged []model.Candidate
	for _, list := range lists {
		merged = append(merged, list...)
	}

	unique := model.Dedup(merged)
	a.resolveCountries(unique)
	result := filter.Apply(unique)

	l.Info().
		Int("sources", len(a.sources)).
		Int("failed", report.Failed()).
		Int("merged", len(merged)).
		Int("unique", len(unique)).
		Int("matched", len(result)).
		Msg("Fetch finished.")

	return result, report, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, src Source) (proxies []model.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			proxies, err = nil, fmt.Errorf("source panicked: %v", r)
		}
	}()

	if a.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
	}
	return src.Fetch(ctx)
}

func (a *Aggregator) resolveCountries(candidates []model.Candidate) {
	if a.resolver == nil {
		return
	}
	for i := range candidates {
		if candidates[i].Country != model.Unknown && candidates[i].Country != "" {
			continue
		}
		if country, ok := a.resolver.Country(candidates[i].IP); ok {
			candidates[i].Country = country
		}
	}
}
