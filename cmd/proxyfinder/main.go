package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"

	"proxyfinder/configs"
	"proxyfinder/internal/checker"
	"proxyfinder/internal/engine"
	"proxyfinder/internal/geoip"
	"proxyfinder/internal/logger"
	"proxyfinder/internal/metrics"
	"proxyfinder/internal/model"
	"proxyfinder/internal/scraper"
	"proxyfinder/internal/scraper/sources"
	"proxyfinder/internal/storage"
)

func main() {
	configPath := flag.String("config", "proxyfinder.ini", "path to the ini config file")
	country := flag.String("country", model.AllCountries, "only keep proxies from this country")
	protocols := flag.String("protocols", "", "comma-separated protocols to keep, e.g. HTTP,SOCKS5")
	anonymity := flag.String("anonymity", "", "comma-separated anonymity levels to keep")
	validate := flag.Bool("validate", true, "probe every fetched proxy")
	importPath := flag.String("import", "", "read ip:port lines from this file instead of the online sources")
	importProto := flag.String("import-protocol", "HTTP", "protocol assumed for imported proxies")
	view := flag.String("view", "valid", "which results to print: all, valid or invalid")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address")
	flag.Parse()

	// 1. Load Config
	cfg, err := configs.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	// 2. Setup Logger
	logger.Init(cfg.Log.Level, os.Stderr)
	l := logger.WithComponent("Main")

	// 3. Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Metrics
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer srv.Shutdown(context.Background())
	}

	// 5. Optional components
	var geo *geoip.Service
	if cfg.GeoIP.DBPath != "" {
		geo, err = geoip.New(cfg.GeoIP.DBPath, cfg.GeoIP.CacheSize)
		if err != nil {
			l.Warn().Err(err).Msg("GeoIP disabled (DB not found or invalid).")
		} else {
			defer geo.Close()
			l.Info().Str("path", cfg.GeoIP.DBPath).Msg("GeoIP enabled.")
		}
	}

	var repo *storage.PostgresRepository
	if cfg.Storage.DatabaseURL != "" {
		repo, err = storage.NewPostgresRepository(ctx, cfg.Storage.DatabaseURL)
		if err == nil {
			err = repo.Migrate(ctx)
		}
		if err != nil {
			l.Error().Err(err).Msg("Failed to set up database.")
			os.Exit(1)
		}
		defer repo.Close()
	}

	filter := model.NewFilter(*country, splitList(*protocols), splitList(*anonymity))

	// 6. Collect candidates
	var candidates []model.Candidate
	if *importPath != "" {
		candidates, err = importFile(*importPath, model.ParseProtocol(*importProto), filter)
	} else {
		candidates, err = fetch(ctx, cfg, filter, geo, m)
	}
	if err != nil {
		l.Error().Err(err).Msg("Failed to collect proxies.")
		os.Exit(1)
	}
	l.Info().Int("count", len(candidates)).Msg("Collected proxies.")

	if repo != nil && len(candidates) > 0 {
		if err := repo.SaveBatch(ctx, candidates); err != nil {
			l.Error().Err(err).Msg("Failed to save proxies.")
		}
	}

	if !*validate {
		for _, c := range candidates {
			printCandidate(c)
		}
		return
	}

	// 7. Validate
	chk := checker.NewChecker(cfg.Checker.TargetURL, cfg.CheckTimeout())
	var writer engine.ResultWriter
	if repo != nil {
		writer = repo
	}
	eng := engine.New(chk, writer, m, engine.Config{BatchSize: cfg.Storage.BatchSize})
	eng.SetView(model.ParseView(*view))

	// Handle SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go handleSignals(sigChan, eng.Stop, func() {
		cancel()
		os.Exit(130)
	})

	run, _ := eng.Start(ctx, candidates)
	bar := progressbar.NewOptions(len(candidates),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("checking"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	for range run.Events() {
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	summary := run.Wait()
	l.Info().
		Str("status", summary.Status.String()).
		Int("checked", summary.Checked).
		Int("total", summary.Total).
		Int("valid", summary.Valid).
		Int("invalid", summary.Invalid).
		Dur("duration", summary.Duration).
		Msg("Validation finished.")

	for _, c := range eng.Visible() {
		printCandidate(c)
	}

	if writer != nil {
		l.Info().Msg("Waiting for results to be saved...")
		<-run.Persisted()
	}
}

// handleSignals stops the run on the first signal and calls quit on the
// second, for when an in-flight probe or the result writer hangs.
func handleSignals(sigChan <-chan os.Signal, stop, quit func()) {
	l := logger.WithComponent("Main")

	if _, ok := <-sigChan; !ok {
		return
	}
	l.Info().Msg("Stopping validation, interrupt again to quit...")
	stop()

	if _, ok := <-sigChan; !ok {
		return
	}
	l.Warn().Msg("Forced shutdown.")
	quit()
}

func fetch(ctx context.Context, cfg *configs.Config, filter model.Filter, geo *geoip.Service, m *metrics.Metrics) ([]model.Candidate, error) {
	client := &http.Client{Timeout: cfg.SourceTimeout()}
	opts := []scraper.Option{
		scraper.WithMetrics(m),
		scraper.WithSourceTimeout(cfg.SourceTimeout()),
	}
	if geo != nil {
		opts = append(opts, scraper.WithResolver(geo))
	}

	agg := scraper.NewAggregator(buildSources(cfg, client), opts...)
	candidates, report, err := agg.FetchWithReport(ctx, filter)
	if err != nil {
		return nil, err
	}
	if failed := report.Err(); failed != nil {
		l := logger.WithComponent("Main")
		l.Warn().Err(failed).Int("failed", report.Failed()).Msg("Some sources failed.")
	}
	return candidates, nil
}

func buildSources(cfg *configs.Config, client *http.Client) []scraper.Source {
	s := cfg.Sources
	var list []scraper.Source
	if s.GeonodeURL != "" {
		list = append(list, sources.NewGeonodeSource(s.GeonodeURL, s.GeonodeLimit, client))
	}
	if s.ProxyScanURL != "" {
		list = append(list, sources.NewProxyScanSource(s.ProxyScanURL, s.ProxyScanLimit, s.ProxyScanType, client))
	}
	feeds := []struct {
		name  string
		url   string
		proto model.Protocol
	}{
		{"speedx-http", s.HTTPFeedURL, model.ProtocolHTTP},
		{"speedx-socks4", s.Socks4FeedURL, model.ProtocolSOCKS4},
		{"speedx-socks5", s.Socks5FeedURL, model.ProtocolSOCKS5},
	}
	for _, f := range feeds {
		if f.url != "" {
			list = append(list, sources.NewTextFeedSource(f.name, f.url, f.proto, client))
		}
	}
	return list
}

func importFile(path string, proto model.Protocol, filter model.Filter) ([]model.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	candidates, err := scraper.ParseLines(f, proto)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	return filter.Apply(model.Dedup(candidates)), nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l := logger.WithComponent("Metrics")
			l.Error().Err(err).Msg("Metrics server stopped.")
		}
	}()
	return srv
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printCandidate(c model.Candidate) {
	latency := "-"
	if ms, ok := c.LatencyMillis(); ok {
		latency = fmt.Sprintf("%dms", ms)
	}
	fmt.Printf("%-21s %-6s %-14s %-12s %-7s %s\n", c.Address(), c.Protocol, c.Country, c.Anonymity, c.State, latency)
}
