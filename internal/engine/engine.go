package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"proxyfinder/internal/logger"
	"proxyfinder/internal/metrics"
	"proxyfinder/internal/model"
)

// Prober checks a single candidate and returns the updated copy.
type Prober interface {
	Check(ctx context.Context, p model.Candidate) model.Candidate
}

// ResultWriter persists validation results.
type ResultWriter interface {
	UpdateBatch(ctx context.Context, runID string, proxies []model.Candidate) error
}

// State is the lifecycle state of the engine's current run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// ProgressEvent reports one completed probe. Index is 1-based and equals
// the position of Candidate in the run's input.
type ProgressEvent struct {
	RunID     string
	Index     int
	Total     int
	Candidate model.Candidate
}

// Summary is the terminal status of a run.
type Summary struct {
	RunID    string
	Status   State
	Total    int
	Checked  int
	Valid    int
	Invalid  int
	Duration time.Duration
}

// Run is a handle on one validation run.
type Run struct {
	ID string

	events    chan ProgressEvent
	done      chan struct{}
	persisted chan struct{}
	cancel    context.CancelFunc
	summary   Summary
}

// Events streams progress in input order. The channel is closed when the
// run ends, whether completed or cancelled.
func (r *Run) Events() <-chan ProgressEvent { return r.events }

// Done is closed once the run has ended. Persistence may still be in
// progress; see Persisted.
func (r *Run) Done() <-chan struct{} { return r.done }

// Persisted is closed once the result writer has flushed every result of
// the run. Without a writer it is closed together with Done.
func (r *Run) Persisted() <-chan struct{} { return r.persisted }

// Wait blocks until the run has ended and returns its summary.
func (r *Run) Wait() Summary {
	<-r.done
	return r.summary
}

type Config struct {
	// BatchSize is how many results the writer buffers before flushing.
	BatchSize int
	// FlushInterval forces a flush of a partial batch.
	FlushInterval time.Duration
}

// Engine validates candidates one at a time. At most one run is active;
// the candidate list of that run is owned by the engine and exposed only
// as copies.
type Engine struct {
	chk     Prober
	writer  ResultWriter
	metrics *metrics.Metrics
	cfg     Config

	mu      sync.RWMutex
	state   State
	run     *Run
	results []model.Candidate
	checked int
	view    model.View
}

// New creates an engine. writer and m may be nil.
func New(chk Prober, writer ResultWriter, m *metrics.Metrics, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Engine{
		chk:     chk,
		writer:  writer,
		metrics: m,
		cfg:     cfg,
		view:    model.ViewAll,
	}
}

// Start begins validating candidates. If a run is already in progress it
// is returned unchanged with started == false.
func (e *Engine) Start(ctx context.Context, candidates []model.Candidate) (run *Run, started bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return e.run, false
	}

	runCtx, cancel := context.WithCancel(ctx)
	run = &Run{
		ID:     uuid.NewString(),
		events:    make(chan ProgressEvent, len(candidates)),
		done:      make(chan struct{}),
		persisted: make(chan struct{}),
		cancel:    cancel,
	}

	input := make([]model.Candidate, len(candidates))
	for i, c := range candidates {
		input[i] = c.Reset()
	}
	e.results = append([]model.Candidate(nil), input...)
	e.checked = 0
	e.state = StateRunning
	e.run = run

	go e.loop(runCtx, run, input)
	return run, true
}

// Stop requests cancellation of the current run. The probe in flight is
// not interrupted; the run ends before the next candidate.
func (e *Engine) Stop() {
	e.mu.RLock()
	run, running := e.run, e.state == StateRunning
	e.mu.RUnlock()

	if running {
		run.cancel()
	}
}

func (e *Engine) loop(ctx context.Context, run *Run, candidates []model.Candidate) {
	l := logger.WithComponent("Engine")
	total := len(candidates)
	start := time.Now()

	l.Info().Str("run_id", run.ID).Int("count", total).Msg("Validation run started.")

	var writerWg sync.WaitGroup
	var resultChan chan model.Candidate
	if e.writer != nil {
		// Sized to the input so a slow writer never holds up probing.
		resultChan = make(chan model.Candidate, total)
		writerWg.Add(1)
		go func() {
			defer writerWg.Done()
			e.runWriter(context.WithoutCancel(ctx), run.ID, resultChan)
		}()
	}

	// Probes run detached from cancellation so a stop request never
	// interrupts one mid-flight.
	probeCtx := context.WithoutCancel(ctx)

	status := StateCompleted
	for i, p := range candidates {
		if ctx.Err() != nil {
			status = StateCancelled
			break
		}

		updated := e.chk.Check(probeCtx, p)
		e.metrics.ObserveProbe(updated.State == model.StateValid, updated.Latency)

		e.mu.Lock()
		e.results[i] = updated
		e.checked = i + 1
		e.mu.Unlock()

		run.events <- ProgressEvent{RunID: run.ID, Index: i + 1, Total: total, Candidate: updated}
		if resultChan != nil {
			resultChan <- updated
		}
	}
	close(run.events)
	if resultChan != nil {
		close(resultChan)
	}

	e.mu.Lock()
	e.state = status
	summary := Summary{
		RunID:    run.ID,
		Status:   status,
		Total:    total,
		Checked:  e.checked,
		Valid:    countState(e.results, model.StateValid),
		Invalid:  countState(e.results, model.StateInvalid),
		Duration: time.Since(start),
	}
	e.mu.Unlock()

	run.summary = summary
	run.cancel()
	close(run.done)

	l.Info().
		Str("run_id", run.ID).
		Str("status", status.String()).
		Int("checked", summary.Checked).
		Int("valid", summary.Valid).
		Int("invalid", summary.Invalid).
		Dur("duration", summary.Duration).
		Msg("Validation run finished.")

	writerWg.Wait()
	close(run.persisted)
}

// runWriter collects results and periodically batch updates storage.
func (e *Engine) runWriter(ctx context.Context, runID string, resultChan <-chan model.Candidate) {
	l := logger.WithComponent("Engine")
	batch := make([]model.Candidate, 0, e.cfg.BatchSize)
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := e.writer.UpdateBatch(ctx, runID, batch); err != nil {
			l.Error().Err(err).Int("count", len(batch)).Msg("Writer batch update failed.")
		} else {
			l.Debug().Int("count", len(batch)).Msg("Updated batch.")
		}
		batch = make([]model.Candidate, 0, e.cfg.BatchSize)
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case p, ok := <-resultChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, p)
			if len(batch) >= e.cfg.BatchSize {
				flush()
			}
		}
	}
}

// State returns the lifecycle state of the latest run.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Progress returns how many candidates of the latest run have been probed.
func (e *Engine) Progress() (checked, total int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checked, len(e.results)
}

// Results returns a snapshot of the latest run's candidates in input
// order. Candidates not probed yet are StateUnknown.
func (e *Engine) Results() []model.Candidate {
	return e.Filtered(model.ViewAll)
}

func (e *Engine) Valid() []model.Candidate {
	return e.Filtered(model.ViewValid)
}

func (e *Engine) Invalid() []model.Candidate {
	return e.Filtered(model.ViewInvalid)
}

// Filtered returns a snapshot of the latest run's candidates under v.
func (e *Engine) Filtered(v model.View) []model.Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return v.Select(e.results)
}

// SetView changes the view used by Visible.
func (e *Engine) SetView(v model.View) {
	e.mu.Lock()
	e.view = v
	e.mu.Unlock()
}

// Visible returns the candidates under the current view.
func (e *Engine) Visible() []model.Candidate {
	e.mu.RLock()
	v := e.view
	e.mu.RUnlock()
	return e.Filtered(v)
}

// Clear drops the results of the latest run. It does nothing while a run
// is in progress.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		return
	}
	e.results = nil
	e.checked = 0
	e.state = StateIdle
}

func countState(candidates []model.Candidate, s model.ValidationState) int {
	n := 0
	for _, c := range candidates {
		if c.State == s {
			n++
		}
	}
	return n
}
