package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
	"github.com/codeGROOVE-dev/morningglow/pkg/record"
	"github.com/codeGROOVE-dev/morningglow/pkg/store"
)

// Analyzer scores a bed photo. Implementations absorb their own failures and
// always return a displayable result.
type Analyzer interface {
	Analyze(ctx context.Context, base64Image string) analysis.Result
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the clock used to derive today's date.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithCatalog replaces the default routine catalog.
func WithCatalog(c record.Catalog) Option {
	return func(m *Machine) { m.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// Machine runs Step against a live State and commits completed phases to a
// store.Repository. It is meant to be driven from a single goroutine.
type Machine struct {
	repo     store.Repository
	analyzer Analyzer
	now      func() time.Time
	logger   *slog.Logger
	catalog  record.Catalog
	state    State
}

// NewMachine creates a Machine in the Home phase with empty state. Call Load
// to read persisted state.
func NewMachine(repo store.Repository, analyzer Analyzer, opts ...Option) *Machine {
	m := &Machine{
		repo:     repo,
		analyzer: analyzer,
		now:      time.Now,
		logger:   slog.Default(),
		catalog:  record.DefaultRoutines(),
		state:    State{Phase: Home, History: record.History{}},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the state with what the repository holds and returns to Home.
func (m *Machine) Load(ctx context.Context) error {
	h, err := m.repo.LoadHistory(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	streak, err := m.repo.LoadStreak(ctx)
	if err != nil {
		return fmt.Errorf("load streak: %w", err)
	}
	cached, err := m.repo.LoadLastResult(ctx)
	if err != nil {
		return fmt.Errorf("load cached result: %w", err)
	}
	m.state = State{Phase: Home, History: h, Streak: streak, Result: cached}
	m.logger.Debug("Session loaded", "records", len(h), "streak", streak, "cached_result", cached != nil)
	return nil
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Catalog returns the routine catalog.
func (m *Machine) Catalog() record.Catalog { return m.catalog }

// Now reads the machine's clock.
func (m *Machine) Now() time.Time { return m.now() }

// Today is the local calendar date.
func (m *Machine) Today() string { return record.Today(m.now()) }

// Dispatch applies e and commits the resulting phase change. When the commit
// fails the new state is kept in memory, Notice is set and the error returned.
func (m *Machine) Dispatch(ctx context.Context, e Event) error {
	prev := m.state
	next, err := Step(prev, e)
	if err != nil {
		m.logger.Debug("Event rejected", "event", nameOf(e), "phase", prev.Phase.String(), "error", err)
		return err
	}
	m.state = next
	if err := m.commit(ctx, prev, next, e); err != nil {
		m.logger.Error("Failed to save session state", "event", e.Name(), "error", err)
		m.state.Notice = "저장에 실패했습니다: " + err.Error()
		return fmt.Errorf("commit %s: %w", e.Name(), err)
	}
	if prev.Phase != next.Phase {
		m.logger.Debug("Phase changed", "event", e.Name(), "from", prev.Phase.String(), "to", next.Phase.String())
	}
	return nil
}

func (m *Machine) commit(ctx context.Context, prev, next State, e Event) error {
	switch e.(type) {
	case AnalysisSucceeded:
		if next.Phase == RoutineCheck {
			return m.repo.SaveLastResult(ctx, next.Result)
		}
	case Finish:
		if err := m.repo.SaveHistory(ctx, next.History); err != nil {
			return err
		}
		if err := m.repo.SaveStreak(ctx, next.Streak); err != nil {
			return err
		}
		return m.repo.ClearLastResult(ctx)
	case ReturnHome:
		if prev.Phase == Capturing || prev.Phase == RoutineCheck {
			return m.repo.ClearLastResult(ctx)
		}
	case ResetToday:
		if err := m.repo.SaveHistory(ctx, next.History); err != nil {
			return err
		}
		return m.repo.ClearLastResult(ctx)
	case ResetAll:
		return m.repo.Clear(ctx)
	}
	return nil
}

// Start opens today's flow.
func (m *Machine) Start(ctx context.Context) error {
	return m.Dispatch(ctx, StartDay{Today: m.Today()})
}

// SelectImage captures a photo given as base64 or a data URI.
func (m *Machine) SelectImage(ctx context.Context, image string) error {
	return m.Dispatch(ctx, SelectImage{Image: image})
}

// ClearImage drops the captured photo.
func (m *Machine) ClearImage(ctx context.Context) error {
	return m.Dispatch(ctx, ClearImage{})
}

// Submit moves to Analyzing and returns the image to analyze. The caller
// runs the analysis and reports back with Complete.
func (m *Machine) Submit(ctx context.Context) (string, error) {
	if err := m.Dispatch(ctx, Submit{}); err != nil {
		return "", err
	}
	return m.state.Image, nil
}

// Complete reports the outcome of the analysis started by Submit.
func (m *Machine) Complete(ctx context.Context, result analysis.Result, err error) error {
	if err != nil || result == nil {
		if err == nil {
			err = errors.New("no result")
		}
		m.logger.Warn("Analysis failed", "error", err)
		return m.Dispatch(ctx, AnalysisFailed{Err: err})
	}
	return m.Dispatch(ctx, AnalysisSucceeded{Result: result})
}

// Analyze submits the captured photo and waits for the result.
func (m *Machine) Analyze(ctx context.Context) error {
	image, err := m.Submit(ctx)
	if err != nil {
		return err
	}
	result := m.analyzer.Analyze(ctx, image)
	return m.Complete(ctx, result, ctx.Err())
}

// Toggle flips routine id.
func (m *Machine) Toggle(ctx context.Context, id string) error {
	return m.Dispatch(ctx, Toggle{ID: id, Catalog: m.catalog})
}

// Finish records today.
func (m *Machine) Finish(ctx context.Context) error {
	return m.Dispatch(ctx, Finish{Today: m.Today(), Catalog: m.catalog})
}

// ReturnHome leaves the current flow.
func (m *Machine) ReturnHome(ctx context.Context) error {
	return m.Dispatch(ctx, ReturnHome{})
}

// ResetToday deletes today's record.
func (m *Machine) ResetToday(ctx context.Context) error {
	return m.Dispatch(ctx, ResetToday{Today: m.Today()})
}

// ResetAll deletes everything if confirmed.
func (m *Machine) ResetAll(ctx context.Context, confirmed bool) error {
	return m.Dispatch(ctx, ResetAll{Confirmed: confirmed})
}

// ShareCard summarizes today for the community board.
func (m *Machine) ShareCard(nickname string) record.ShareCard {
	s := m.state
	completed := len(s.Completed)
	if s.Result == nil {
		if rec, ok := s.History.Find(m.Today()); ok {
			return record.NewShareCard(nickname, rec.Result(), len(rec.CompletedRoutines), m.catalog.Len(), rec.Date)
		}
	}
	return record.NewShareCard(nickname, s.Result, completed, m.catalog.Len(), m.Today())
}

func nameOf(e Event) string {
	if e == nil {
		return "<nil>"
	}
	return e.Name()
}
