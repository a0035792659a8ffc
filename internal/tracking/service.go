// Package tracking is the read side of the status log: every dashboard call
// reads the canonical log once and hands the rows to the engine. It also
// records worker events into the area logs.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"lens-tracker/internal/auth"
	"lens-tracker/internal/config"
	"lens-tracker/internal/engine"
	"lens-tracker/internal/jobcache"
	"lens-tracker/internal/logger"
	"lens-tracker/internal/sheets"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrInvalidEvent = errors.New("invalid event")
)

// Service serves dashboards and job lookups.
type Service struct {
	store     sheets.Store
	cfg       *config.Config
	loc       *time.Location
	histories *jobcache.Cache[JobHistory]
	now       func() time.Time

	canonicalRange sheets.Range
	txRange        sheets.Range
}

// New validates cfg's ranges and display zone.
func New(store sheets.Store, cfg *config.Config) (*Service, error) {
	canonical, err := sheets.ParseRange(cfg.CanonicalRange)
	if err != nil {
		return nil, fmt.Errorf("canonical range: %w", err)
	}
	tx, err := sheets.ParseRange(cfg.TransactionRange)
	if err != nil {
		return nil, fmt.Errorf("transaction range: %w", err)
	}
	loc := time.UTC
	if cfg.DisplayTimezone != "" {
		if loc, err = time.LoadLocation(cfg.DisplayTimezone); err != nil {
			logger.Warn("API", fmt.Sprintf("Unknown display timezone %q, using UTC", cfg.DisplayTimezone))
			loc = time.UTC
		}
	}
	return &Service{
		store:          store,
		cfg:            cfg,
		loc:            loc,
		histories:      jobcache.New[JobHistory](time.Duration(cfg.StatusCacheTTLSeconds) * time.Second),
		now:            time.Now,
		canonicalRange: canonical,
		txRange:        tx,
	}, nil
}

// Invalidate drops memoised job histories. Wired to the synchronizer.
func (s *Service) Invalidate() {
	s.histories.Clear()
}

// Location is the display zone.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) readEvents(ctx context.Context) ([]engine.StatusEvent, error) {
	defer startTiming(ctx, "store", "canonical log read").Stop()
	rows, err := s.store.GetRows(ctx, s.cfg.CanonicalSheet, s.canonicalRange)
	if err != nil {
		return nil, err
	}
	return engine.EventsFromRows(rows), nil
}

// ProductionMatrix builds the aging × status matrix.
func (s *Service) ProductionMatrix(ctx context.Context) (engine.ProductionMatrix, error) {
	events, err := s.readEvents(ctx)
	if err != nil {
		return engine.ProductionMatrix{}, err
	}
	defer startTiming(ctx, "engine", "matrix").Stop()
	return engine.BuildMatrix(events, s.now()), nil
}

// DelayedJobs builds the delayed-jobs dashboard.
func (s *Service) DelayedJobs(ctx context.Context) (engine.DelayedDashboard, error) {
	events, err := s.readEvents(ctx)
	if err != nil {
		return engine.DelayedDashboard{}, err
	}
	defer startTiming(ctx, "engine", "delayed").Stop()
	return engine.GroupForDelayedDashboard(events, s.now()), nil
}

// DueQueues builds the due-date work queues.
func (s *Service) DueQueues(ctx context.Context) (engine.DueQueues, error) {
	events, err := s.readEvents(ctx)
	if err != nil {
		return engine.DueQueues{}, err
	}
	defer startTiming(ctx, "engine", "queues").Stop()
	return engine.BuildDueQueues(events, s.now()), nil
}

// JobHistory is one job's lookup payload.
type JobHistory struct {
	JobNumber string                    `json:"jobNumber"`
	Current   engine.StatusEvent        `json:"current"`
	Events    []engine.StatusEvent      `json:"events"` // oldest first
	InProcess bool                      `json:"inProcess"`
	Due       *engine.DueClassification `json:"due,omitempty"`
}

// JobHistory returns job's events, memoised for the cache TTL.
func (s *Service) JobHistory(ctx context.Context, job string) (JobHistory, error) {
	job = strings.TrimSpace(job)
	if job == "" {
		return JobHistory{}, ErrJobNotFound
	}
	return s.histories.Fetch(ctx, job, func(ctx context.Context) (JobHistory, error) {
		events, err := s.readEvents(ctx)
		if err != nil {
			return JobHistory{}, err
		}
		var mine []engine.StatusEvent
		for _, ev := range events {
			if ev.JobNumber == job {
				mine = append(mine, ev)
			}
		}
		if len(mine) == 0 {
			return JobHistory{}, ErrJobNotFound
		}
		current, _ := engine.LatestEvent(mine)
		out := JobHistory{
			JobNumber: job,
			Current:   s.localize(current),
			Events:    engine.SortChronological(mine),
			InProcess: engine.InProcess(mine),
		}
		for i := range out.Events {
			out.Events[i] = s.localize(out.Events[i])
		}
		if cls, ok := engine.ClassifyDelay(mine, s.now()); ok {
			out.Due = &cls
		}
		return out, nil
	})
}

func (s *Service) localize(ev engine.StatusEvent) engine.StatusEvent {
	if ev.HasTime() {
		ev.Display = engine.DisplayIn(ev.At, s.loc)
	}
	return ev
}

// EventInput is what a worker submits.
type EventInput struct {
	JobNumber string `json:"jobNumber"`
	Area      string `json:"area"`
	Status    string `json:"status"`
	DueDate   string `json:"dueDate,omitempty"`
}

// RecordEvent appends a worker event to its area log. The synchronizer later
// copies it into the canonical log.
func (s *Service) RecordEvent(ctx context.Context, p auth.Principal, in EventInput) (engine.StatusEvent, error) {
	in.JobNumber = strings.TrimSpace(in.JobNumber)
	in.Status = strings.TrimSpace(in.Status)
	in.Area = strings.TrimSpace(in.Area)
	if in.Area == "" {
		if a, ok := p.Role.Area(); ok {
			in.Area = a
		}
	}
	if in.JobNumber == "" || in.Status == "" || in.Area == "" {
		return engine.StatusEvent{}, fmt.Errorf("%w: jobNumber, status and area are required", ErrInvalidEvent)
	}
	src, ok := s.cfg.SourceForArea(in.Area)
	if !ok {
		return engine.StatusEvent{}, fmt.Errorf("%w: unknown area %q", ErrInvalidEvent, in.Area)
	}
	if !auth.CanWriteArea(p.Role, src.Area) {
		return engine.StatusEvent{}, fmt.Errorf("%w: role %s cannot write %s", auth.ErrForbidden, p.Role, src.Area)
	}
	if in.DueDate != "" {
		if _, ok := engine.ParseDueDate(in.DueDate); !ok {
			return engine.StatusEvent{}, fmt.Errorf("%w: unparseable due date %q", ErrInvalidEvent, in.DueDate)
		}
	}
	rng, err := sheets.ParseRange(src.Range)
	if err != nil {
		return engine.StatusEvent{}, fmt.Errorf("source %s range: %w", src.Sheet, err)
	}

	ts := s.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	row := sheets.Row{in.JobNumber, ts, in.Status, p.Email}
	if in.DueDate != "" {
		row = append(row, in.DueDate)
	}
	if err := s.store.AppendRows(ctx, src.Sheet, rng, []sheets.Row{row}); err != nil {
		return engine.StatusEvent{}, err
	}
	logger.Info("API", fmt.Sprintf("%s recorded %s/%s for job %s", p.Email, src.Area, in.Status, in.JobNumber))

	ev := engine.EventFromRow(sheets.Row{in.JobNumber, ts, src.Area, in.Status, p.Email, in.DueDate}, 0)
	return s.localize(ev), nil
}

// Status is the /api/status payload.
type Status struct {
	Events         int        `json:"events"`
	Jobs           int        `json:"jobs"`
	LastCheckpoint *time.Time `json:"lastCheckpoint"`
	Sources        []string   `json:"sources"`
	Timezone       string     `json:"timezone"`
}

// Status reads the canonical and transaction logs in parallel.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var events []engine.StatusEvent
	var txRows []sheets.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = s.readEvents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txRows, err = s.store.GetRows(gctx, s.cfg.TransactionSheet, s.txRange)
		return err
	})
	if err := g.Wait(); err != nil {
		return Status{}, err
	}

	out := Status{
		Events:   len(events),
		Jobs:     len(engine.BuildHistories(events).Jobs),
		Sources:  []string{},
		Timezone: s.loc.String(),
	}
	for _, src := range s.cfg.EnabledSources() {
		out.Sources = append(out.Sources, src.Sheet)
	}
	var latest time.Time
	for _, row := range txRows {
		if strings.TrimSpace(row.Cell(sheets.TxColOperation)) != sheets.OpSyncProduction {
			continue
		}
		if d, ok := engine.ParseEventDate(row.Cell(sheets.TxColTimestamp)); ok && d.UTC.After(latest) {
			latest = d.UTC
		}
	}
	if !latest.IsZero() {
		out.LastCheckpoint = &latest
	}
	return out, nil
}
