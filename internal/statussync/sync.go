// Package statussync copies events from the per-area logs into the canonical
// status log exactly once, keyed by (job, timestamp, area, status).
package statussync

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"lens-tracker/internal/config"
	"lens-tracker/internal/engine"
	"lens-tracker/internal/logger"
	"lens-tracker/internal/sheets"
)

// SystemActor is recorded for scheduled runs.
const SystemActor = "system"

// State is the synchronizer's externally visible state.
type State string

const (
	Idle           State = "Idle"
	SyncInProgress State = "SyncInProgress"
)

// Result is returned by every run, scheduled or manual.
type Result struct {
	Success     bool       `json:"success"`
	SyncedCount int        `json:"syncedCount"`
	Message     string     `json:"message"`
	LastSync    *time.Time `json:"lastSync"`
}

// Synchronizer reconciles area logs into the canonical log. Runs may overlap;
// the composite-key check keeps overlapping runs from duplicating rows.
type Synchronizer struct {
	store    sheets.Store
	cfg      *config.Config
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
	onSynced func()

	inFlight atomic.Int32
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithMetrics replaces the noop metrics.
func WithMetrics(m *Metrics) Option { return func(s *Synchronizer) { s.metrics = m } }

// WithTracerProvider replaces the noop tracer.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Synchronizer) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Synchronizer) { s.now = now } }

// OnSynced registers a callback run after every successful run.
func OnSynced(fn func()) Option { return func(s *Synchronizer) { s.onSynced = fn } }

// New creates a synchronizer over store using cfg's sheets and sources.
func New(store sheets.Store, cfg *config.Config, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   store,
		cfg:     cfg,
		metrics: NewNoopMetrics(),
		tracer:  tracenoop.NewTracerProvider().Tracer(""),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports SyncInProgress while at least one run is executing.
func (s *Synchronizer) State() State {
	if s.inFlight.Load() > 0 {
		return SyncInProgress
	}
	return Idle
}

// Sync runs one reconciliation, ungated. actor is recorded in the checkpoint.
func (s *Synchronizer) Sync(ctx context.Context, actor string) Result {
	return s.sync(ctx, actor, "manual")
}

func (s *Synchronizer) sync(ctx context.Context, actor, trigger string) Result {
	// A started run finishes even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = SystemActor
	}
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	ctx, span := s.tracer.Start(ctx, "statussync.sync", trace.WithAttributes(
		attribute.String("actor", actor),
		attribute.String("trigger", trigger),
	))
	defer span.End()

	start := s.now()
	logger.Info("SYNC", fmt.Sprintf("Sync started by %s (%s)", actor, trigger))

	out, err := s.run(ctx, actor, start)
	elapsed := float64(s.now().Sub(start).Microseconds()) / 1000
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.record(ctx, trigger, out.synced, elapsed, true)
		logger.Error("SYNC", fmt.Sprintf("Sync failed: %v", err))
		return Result{
			Success:     false,
			SyncedCount: out.synced,
			Message:     fmt.Sprintf("sync failed: %v", err),
			LastSync:    out.checkpoint,
		}
	}

	span.SetAttributes(attribute.Int("synced", out.synced))
	s.metrics.record(ctx, trigger, out.synced, elapsed, false)
	logger.Success("SYNC", fmt.Sprintf("Synced %d rows (%d candidates, %d already present)",
		out.synced, out.candidates, out.candidates-out.synced))
	if s.onSynced != nil {
		s.onSynced()
	}
	last := start.UTC().Truncate(time.Second)
	return Result{
		Success:     true,
		SyncedCount: out.synced,
		Message:     fmt.Sprintf("%d new events synced", out.synced),
		LastSync:    &last,
	}
}

type runOutcome struct {
	synced     int
	candidates int
	checkpoint *time.Time
}

func (s *Synchronizer) run(ctx context.Context, actor string, now time.Time) (runOutcome, error) {
	var out runOutcome

	canonicalRange, err := sheets.ParseRange(s.cfg.CanonicalRange)
	if err != nil {
		return out, fmt.Errorf("canonical range: %w", err)
	}
	txRange, err := sheets.ParseRange(s.cfg.TransactionRange)
	if err != nil {
		return out, fmt.Errorf("transaction range: %w", err)
	}

	checkpoint, err := s.readCheckpoint(ctx, txRange)
	if err != nil {
		return out, err
	}
	out.checkpoint = checkpoint
	var since time.Time
	if checkpoint != nil {
		since = checkpoint.Add(-time.Duration(s.cfg.SyncOverlapMinutes) * time.Minute)
		logger.Info("SYNC", fmt.Sprintf("Checkpoint %s, scanning from %s",
			checkpoint.Format(time.RFC3339), since.Format(time.RFC3339)))
	} else {
		logger.Info("SYNC", "No checkpoint, scanning everything")
	}

	canonical, err := s.store.GetRows(ctx, s.cfg.CanonicalSheet, canonicalRange)
	if err != nil {
		return out, err
	}
	existing := make(map[uint64]struct{}, len(canonical))
	for i, row := range canonical {
		existing[eventKey(engine.EventFromRow(row, i))] = struct{}{}
	}

	sources := s.cfg.EnabledSources()
	perSource, err := s.readSources(ctx, sources)
	if err != nil {
		return out, err
	}

	var batch []sheets.Row
	for i, src := range sources {
		transforms := foldTransforms(src.StatusTransforms)
		for _, row := range perSource[i] {
			ev, ok := candidate(src, transforms, row)
			if !ok {
				continue
			}
			if !since.IsZero() && (!ev.HasTime() || !ev.At.After(since)) {
				continue
			}
			out.candidates++
			key := eventKey(ev)
			if _, dup := existing[key]; dup {
				continue
			}
			existing[key] = struct{}{}
			batch = append(batch, ev.Row())
		}
	}

	if len(batch) > 0 {
		if err := s.store.AppendRows(ctx, s.cfg.CanonicalSheet, canonicalRange, batch); err != nil {
			return out, err
		}
	}
	out.synced = len(batch)

	mark := sheets.Row{
		uuid.NewString(),
		now.UTC().Format(time.RFC3339),
		sheets.OpSyncProduction,
		actor,
	}
	if err := s.store.AppendRows(ctx, s.cfg.TransactionSheet, txRange, []sheets.Row{mark}); err != nil {
		return out, fmt.Errorf("write checkpoint after %d rows: %w", out.synced, err)
	}
	return out, nil
}

// readCheckpoint returns the latest SYNC_PRODUCTION timestamp, or nil when none parses.
func (s *Synchronizer) readCheckpoint(ctx context.Context, rng sheets.Range) (*time.Time, error) {
	rows, err := s.store.GetRows(ctx, s.cfg.TransactionSheet, rng)
	if err != nil {
		return nil, err
	}
	var latest time.Time
	for _, row := range rows {
		if strings.TrimSpace(row.Cell(sheets.TxColOperation)) != sheets.OpSyncProduction {
			continue
		}
		d, ok := engine.ParseEventDate(row.Cell(sheets.TxColTimestamp))
		if ok && d.UTC.After(latest) {
			latest = d.UTC
		}
	}
	if latest.IsZero() {
		return nil, nil
	}
	return &latest, nil
}

// readSources fetches every source log concurrently; results keep source order.
func (s *Synchronizer) readSources(ctx context.Context, sources []config.SyncSource) ([][]sheets.Row, error) {
	ranges := make([]sheets.Range, len(sources))
	for i, src := range sources {
		rng, err := sheets.ParseRange(src.Range)
		if err != nil {
			return nil, fmt.Errorf("source %s range: %w", src.Sheet, err)
		}
		ranges[i] = rng
	}

	out := make([][]sheets.Row, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			rows, err := s.store.GetRows(gctx, src.Sheet, ranges[i])
			if err != nil {
				return err
			}
			out[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// candidate turns an area-log row into a canonical event.
func candidate(src config.SyncSource, transforms map[string]string, row sheets.Row) (engine.StatusEvent, bool) {
	job := strings.TrimSpace(row.Cell(sheets.AreaColJob))
	if job == "" {
		return engine.StatusEvent{}, false
	}
	status := strings.TrimSpace(row.Cell(sheets.AreaColStatus))
	if to, ok := transforms[engine.FoldStatus(status)]; ok {
		status = to
	}
	ev := engine.EventFromRow(sheets.Row{
		job,
		row.Cell(sheets.AreaColTimestamp),
		src.Area,
		status,
		row.Cell(sheets.AreaColUser),
		row.Cell(sheets.AreaColDueDate),
	}, 0)
	return ev, true
}

func foldTransforms(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for from, to := range m {
		out[engine.FoldStatus(from)] = to
	}
	return out
}

// eventKey hashes (job, timestamp, area, status). Timestamps that parse are
// compared in normalized form so "2024-01-02 10:00" and "2024-01-02T10:00:00Z" match.
func eventKey(ev engine.StatusEvent) uint64 {
	ts := ev.Timestamp
	if ev.HasTime() {
		ts = ev.At.Format(time.RFC3339)
	}
	h := xxhash.New()
	for i, part := range []string{ev.JobNumber, ts, ev.Area, ev.Status} {
		if i > 0 {
			h.WriteString("\x1f")
		}
		h.WriteString(part)
	}
	return h.Sum64()
}
