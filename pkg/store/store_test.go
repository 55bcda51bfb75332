package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
	"github.com/codeGROOVE-dev/morningglow/pkg/record"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup
	return s
}

// backends runs fn against every KV implementation.
func backends(t *testing.T, fn func(t *testing.T, kv KV)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLite(t)) })
}

func newTestRepo(kv KV) *Store {
	return New(kv, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestKVSetGetDelete(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		if _, ok, err := kv.Get(ctx, "k"); err != nil || ok {
			t.Fatalf("Get(absent) = ok %v, err %v", ok, err)
		}
		if err := kv.Set(ctx, "k", "v1"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := kv.Set(ctx, "k", "v2"); err != nil {
			t.Fatalf("Set overwrite: %v", err)
		}
		got, ok, err := kv.Get(ctx, "k")
		if err != nil || !ok || got != "v2" {
			t.Fatalf("Get = %q, %v, %v; want v2", got, ok, err)
		}
		if err := kv.Delete(ctx, "k", "missing"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok, _ := kv.Get(ctx, "k"); ok {
			t.Error("key still present after Delete")
		}
	})
}

func TestEmptyDefaults(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		repo := newTestRepo(kv)

		h, err := repo.LoadHistory(ctx)
		if err != nil || h == nil || len(h) != 0 {
			t.Errorf("LoadHistory() = %v, %v; want empty non-nil", h, err)
		}
		if n, err := repo.LoadStreak(ctx); err != nil || n != 0 {
			t.Errorf("LoadStreak() = %d, %v", n, err)
		}
		if r, err := repo.LoadLastResult(ctx); err != nil || r != nil {
			t.Errorf("LoadLastResult() = %v, %v", r, err)
		}
	})
}

func TestCorruptEntriesLoadAsDefaults(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		for key, value := range map[string]string{
			HistoryKey:    "{not json",
			StreakKey:     "many",
			LastResultKey: "[1,2,3]",
		} {
			if err := kv.Set(ctx, key, value); err != nil {
				t.Fatal(err)
			}
		}
		repo := newTestRepo(kv)

		if h, err := repo.LoadHistory(ctx); err != nil || len(h) != 0 {
			t.Errorf("LoadHistory() = %v, %v", h, err)
		}
		if n, err := repo.LoadStreak(ctx); err != nil || n != 0 {
			t.Errorf("LoadStreak() = %d, %v", n, err)
		}
		if r, err := repo.LoadLastResult(ctx); err != nil || r != nil {
			t.Errorf("LoadLastResult() = %v, %v", r, err)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		repo := newTestRepo(kv)

		detailed := analysis.Detailed{
			Scored:     analysis.Scored{Score: 83, Feedback: "좋아요"},
			Neatness:   90,
			Corners:    80,
			Pillows:    70,
			Confidence: 0.9,
		}
		h := record.History{}.
			Upsert(record.NewDailyRecord("2026-10-16", analysis.Scored{Score: 40, Feedback: "음"}, nil, 5)).
			Upsert(record.NewDailyRecord("2026-10-17", detailed, []string{"water", "read"}, 5))

		if err := repo.SaveHistory(ctx, h); err != nil {
			t.Fatalf("SaveHistory: %v", err)
		}
		if err := repo.SaveStreak(ctx, 6); err != nil {
			t.Fatalf("SaveStreak: %v", err)
		}
		if err := repo.SaveLastResult(ctx, detailed); err != nil {
			t.Fatalf("SaveLastResult: %v", err)
		}

		gotH, err := repo.LoadHistory(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(h, gotH); diff != "" {
			t.Errorf("history mismatch (-want +got):\n%s", diff)
		}
		if n, _ := repo.LoadStreak(ctx); n != 6 {
			t.Errorf("LoadStreak() = %d, want 6", n)
		}
		if raw, _, _ := kv.Get(ctx, StreakKey); raw != "6" {
			t.Errorf("streak stored as %q, want stringified integer", raw)
		}
		gotR, err := repo.LoadLastResult(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(analysis.Result(detailed), gotR); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}

		if err := repo.SaveLastResult(ctx, analysis.ClientFallback()); err != nil {
			t.Fatal(err)
		}
		if r, _ := repo.LoadLastResult(ctx); r != analysis.Result(analysis.ClientFallback()) {
			t.Errorf("LoadLastResult() = %#v, want scored fallback", r)
		}
	})
}

func TestLoadHistoryNormalizesOrder(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	stored := `[{"date":"2026-10-17","bedScore":1},{"date":"2026-10-15","bedScore":2},{"date":"2026-10-17","bedScore":3}]`
	if err := kv.Set(ctx, HistoryKey, stored); err != nil {
		t.Fatal(err)
	}
	h, err := newTestRepo(kv).LoadHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 2 || h[0].Date != "2026-10-15" || h[1].BedScore != 3 {
		t.Errorf("LoadHistory() = %+v", h)
	}
}

func TestClear(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		repo := newTestRepo(kv)
		if err := repo.SaveStreak(ctx, 3); err != nil {
			t.Fatal(err)
		}
		if err := repo.SaveHistory(ctx, record.History{{Date: "2026-10-17"}}); err != nil {
			t.Fatal(err)
		}
		if err := repo.SaveLastResult(ctx, analysis.ServerFallback()); err != nil {
			t.Fatal(err)
		}

		if err := repo.ClearLastResult(ctx); err != nil {
			t.Fatal(err)
		}
		if r, _ := repo.LoadLastResult(ctx); r != nil {
			t.Errorf("cached result survived ClearLastResult: %v", r)
		}

		if err := repo.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{HistoryKey, StreakKey, LastResultKey} {
			if _, ok, _ := kv.Get(ctx, key); ok {
				t.Errorf("%s present after Clear", key)
			}
		}
	})
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glow.db")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(first, slog.Default()).SaveStreak(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close() //nolint:errcheck // test cleanup
	if n, _ := New(second, slog.Default()).LoadStreak(ctx); n != 4 {
		t.Errorf("LoadStreak() after reopen = %d, want 4", n)
	}
}
