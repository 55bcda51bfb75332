package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
	"github.com/codeGROOVE-dev/morningglow/pkg/record"
)

// Keys under which client state is stored.
const (
	HistoryKey    = "morning_glow_history"
	StreakKey     = "morning_glow_streak"
	LastResultKey = "morning_glow_bedResult"
)

// Repository loads and saves the client's daily state.
//
// Load methods treat an absent or unparseable entry as its empty default:
// an empty History, a zero streak, no cached result. They return an error
// only when the backend itself fails.
type Repository interface {
	LoadHistory(ctx context.Context) (record.History, error)
	SaveHistory(ctx context.Context, h record.History) error
	LoadStreak(ctx context.Context) (int, error)
	SaveStreak(ctx context.Context, streak int) error
	LoadLastResult(ctx context.Context) (analysis.Result, error)
	SaveLastResult(ctx context.Context, r analysis.Result) error
	ClearLastResult(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Store is a Repository over a KV backend with JSON-encoded values.
type Store struct {
	kv     KV
	logger *slog.Logger
}

// New creates a Store.
func New(kv KV, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// LoadHistory implements Repository. Stored records are re-sorted and
// deduplicated by date.
func (s *Store) LoadHistory(ctx context.Context) (record.History, error) {
	raw, ok, err := s.kv.Get(ctx, HistoryKey)
	if err != nil || !ok {
		return record.History{}, err
	}
	var stored []record.DailyRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("Discarding corrupt history", "key", HistoryKey, "error", err)
		return record.History{}, nil
	}
	h := record.History{}
	for _, r := range stored {
		h = h.Upsert(r)
	}
	return h, nil
}

// SaveHistory implements Repository.
func (s *Store) SaveHistory(ctx context.Context, h record.History) error {
	if h == nil {
		h = record.History{}
	}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.kv.Set(ctx, HistoryKey, string(data))
}

// LoadStreak implements Repository.
func (s *Store) LoadStreak(ctx context.Context) (int, error) {
	raw, ok, err := s.kv.Get(ctx, StreakKey)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		s.logger.Warn("Discarding corrupt streak", "key", StreakKey, "value", raw)
		return 0, nil
	}
	return n, nil
}

// SaveStreak implements Repository.
func (s *Store) SaveStreak(ctx context.Context, streak int) error {
	return s.kv.Set(ctx, StreakKey, strconv.Itoa(streak))
}

// LoadLastResult implements Repository. A nil result means none is cached.
func (s *Store) LoadLastResult(ctx context.Context) (analysis.Result, error) {
	raw, ok, err := s.kv.Get(ctx, LastResultKey)
	if err != nil || !ok {
		return nil, err
	}
	var p *analysis.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Warn("Discarding corrupt cached result", "key", LastResultKey, "error", err)
		return nil, nil
	}
	if p == nil {
		return nil, nil
	}
	return p.Result(), nil
}

// SaveLastResult implements Repository.
func (s *Store) SaveLastResult(ctx context.Context, r analysis.Result) error {
	if r == nil {
		return s.ClearLastResult(ctx)
	}
	data, err := json.Marshal(r.Payload())
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.kv.Set(ctx, LastResultKey, string(data))
}

// ClearLastResult implements Repository.
func (s *Store) ClearLastResult(ctx context.Context) error {
	return s.kv.Delete(ctx, LastResultKey)
}

// Clear implements Repository.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, HistoryKey, StreakKey, LastResultKey)
}
