package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]Record
	updates int
	failOn  string
}

func newFakeStore(recs ...Record) *fakeStore {
	s := &fakeStore{records: map[string]Record{}}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) FindAllAccounts(context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) InsertAccount(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "insert" {
		return errors.New("insert failed")
	}
	s.records[r.ID] = r
	return nil
}

func (s *fakeStore) UpdateAccount(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	s.records[r.ID] = r
	return nil
}

func (s *fakeStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPool(t *testing.T, strategy Strategy, n int) (*Pool, *fakeStore, *clock, []Record) {
	t.Helper()
	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	p := New(store, Options{Strategy: strategy, Now: clk.now})
	var recs []Record
	for i := 0; i < n; i++ {
		rec, err := p.Add(context.Background(), "acct", `{"refreshToken":"r"}`, "social")
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		recs = append(recs, rec)
		clk.advance(time.Second)
	}
	return p, store, clk, recs
}

func TestRoundRobinVisitsEveryAccount(t *testing.T) {
	p, _, _, recs := newTestPool(t, RoundRobin, 4)

	seen := map[string]int{}
	for i := 0; i < len(recs); i++ {
		rec, err := p.SelectNext()
		if err != nil {
			t.Fatalf("SelectNext() error = %v", err)
		}
		seen[rec.ID]++
	}
	for _, r := range recs {
		if seen[r.ID] == 0 {
			t.Errorf("account %s was never selected", r.ID)
		}
	}
}

func TestSelectNextNoAvailable(t *testing.T) {
	p, _, _, recs := newTestPool(t, RoundRobin, 2)
	ctx := context.Background()

	if err := p.SetStatus(ctx, recs[0].ID, StatusDisabled); err != nil {
		t.Fatal(err)
	}
	p.ReportFailure(ctx, recs[1].ID, true)

	if _, err := p.SelectNext(); !errors.Is(err, ErrNoAvailable) {
		t.Fatalf("SelectNext() error = %v, want ErrNoAvailable", err)
	}

	empty := New(newFakeStore(), Options{})
	if _, err := empty.SelectNext(); !errors.Is(err, ErrNoAvailable) {
		t.Fatalf("empty pool SelectNext() error = %v, want ErrNoAvailable", err)
	}
}

func TestReportFailureCooldown(t *testing.T) {
	tests := []struct {
		name         string
		rateLimited  bool
		failures     int
		wantCooldown time.Duration
	}{
		{"rate limit always cools down", true, 1, 60 * time.Minute},
		{"below threshold", false, 2, 0},
		{"at threshold", false, 3, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, clk, recs := newTestPool(t, RoundRobin, 1)
			id := recs[0].ID
			for i := 0; i < tt.failures; i++ {
				p.ReportFailure(context.Background(), id, tt.rateLimited)
			}
			got, _ := p.Get(id)
			if tt.wantCooldown == 0 {
				if !got.CooldownUntil.IsZero() {
					t.Errorf("CooldownUntil = %v, want none", got.CooldownUntil)
				}
				return
			}
			if want := clk.now().Add(tt.wantCooldown); !got.CooldownUntil.Equal(want) {
				t.Errorf("CooldownUntil = %v, want %v", got.CooldownUntil, want)
			}
			if got.Requests != int64(tt.failures) || got.Errors != int64(tt.failures) {
				t.Errorf("counters = %d/%d, want %d", got.Requests, got.Errors, tt.failures)
			}
		})
	}
}

func TestCooldownExpiryResetsConsecutiveErrors(t *testing.T) {
	p, _, clk, recs := newTestPool(t, RoundRobin, 1)
	id := recs[0].ID
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p.ReportFailure(ctx, id, false)
	}
	if _, err := p.SelectNext(); !errors.Is(err, ErrNoAvailable) {
		t.Fatalf("expected account to be cooling down, err = %v", err)
	}

	clk.advance(time.Minute + time.Second)
	rec, err := p.SelectNext()
	if err != nil {
		t.Fatalf("SelectNext() after cooldown error = %v", err)
	}
	if rec.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", rec.ConsecutiveErrors)
	}
	if !rec.CooldownUntil.IsZero() {
		t.Errorf("CooldownUntil = %v, want cleared", rec.CooldownUntil)
	}
}

func TestReportSuccess(t *testing.T) {
	p, store, clk, recs := newTestPool(t, RoundRobin, 1)
	id := recs[0].ID
	ctx := context.Background()

	p.ReportFailure(ctx, id, true)
	p.ReportSuccess(ctx, id, 100, 20, 0.1)
	p.ReportSuccess(ctx, id, 5, 5, 0.2)

	got, _ := p.Get(id)
	if got.Successes != 2 || got.Requests != 3 || got.ConsecutiveErrors != 0 {
		t.Errorf("counters: successes=%d requests=%d consecutive=%d", got.Successes, got.Requests, got.ConsecutiveErrors)
	}
	if got.InputTokens != 105 || got.OutputTokens != 25 {
		t.Errorf("tokens = %d/%d, want 105/25", got.InputTokens, got.OutputTokens)
	}
	if !got.Credits.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("Credits = %s, want 0.3", got.Credits)
	}
	if !got.CooldownUntil.IsZero() {
		t.Error("success should clear cooldown")
	}
	if !got.LastUsedAt.Equal(clk.now()) {
		t.Errorf("LastUsedAt = %v, want %v", got.LastUsedAt, clk.now())
	}
	if store.updates != 3 {
		t.Errorf("store updates = %d, want 3", store.updates)
	}
	if persisted := store.records[id]; persisted.Successes != 2 {
		t.Errorf("persisted successes = %d, want 2", persisted.Successes)
	}
}

func TestLeastUsed(t *testing.T) {
	p, _, _, recs := newTestPool(t, LeastUsed, 3)
	ctx := context.Background()
	p.ReportSuccess(ctx, recs[0].ID, 0, 0, 0)
	p.ReportSuccess(ctx, recs[2].ID, 0, 0, 0)

	rec, err := p.SelectNext()
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != recs[1].ID {
		t.Errorf("selected %s, want least used %s", rec.ID, recs[1].ID)
	}
}

func TestSmartScorePrefersHealthyAccount(t *testing.T) {
	p, _, _, recs := newTestPool(t, SmartScore, 2)
	ctx := context.Background()
	p.ReportSuccess(ctx, recs[0].ID, 0, 0, 0)
	p.ReportFailure(ctx, recs[1].ID, false)
	p.ReportSuccess(ctx, recs[1].ID, 0, 0, 0)

	rec, err := p.SelectNext()
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != recs[0].ID {
		t.Errorf("selected %s, want %s", rec.ID, recs[0].ID)
	}
}

func TestRandomSelectsUsable(t *testing.T) {
	p, _, _, recs := newTestPool(t, Random, 3)
	p.SetStatus(context.Background(), recs[0].ID, StatusInvalid)
	for i := 0; i < 50; i++ {
		rec, err := p.SelectNext()
		if err != nil {
			t.Fatal(err)
		}
		if rec.ID == recs[0].ID {
			t.Fatal("random strategy selected an invalid account")
		}
	}
}

func TestScore(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rec  Record
		want float64
	}{
		{"fresh account", Record{}, 100},
		{"used recently", Record{Successes: 1, LastUsedAt: now.Add(-30 * time.Minute)}, 60 + 20 + 19.99},
		{"used today", Record{Successes: 1, Errors: 1, LastUsedAt: now.Add(-2 * time.Hour)}, 30 + 15 + 19.98},
		{"used long ago", Record{Successes: 200, LastUsedAt: now.Add(-240 * time.Hour)}, 60 + 10 + 18},
		{"very old and busy", Record{Successes: 5000, LastUsedAt: now.Add(-24 * 30 * time.Hour)}, 60 + 5 + 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.Score(now)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	p, _, _, recs := newTestPool(t, RoundRobin, 4)
	ctx := context.Background()
	p.SetStatus(ctx, recs[0].ID, StatusInvalid)
	p.SetStatus(ctx, recs[1].ID, StatusDisabled)
	p.ReportFailure(ctx, recs[2].ID, true)
	p.ReportSuccess(ctx, recs[3].ID, 10, 20, 1.5)

	st := p.Stats()
	want := Stats{Total: 4, Active: 1, Cooldown: 1, Invalid: 1, Disabled: 1, TotalRequests: 2, TotalErrors: 1}
	if st.Total != want.Total || st.Active != want.Active || st.Cooldown != want.Cooldown ||
		st.Invalid != want.Invalid || st.Disabled != want.Disabled ||
		st.TotalRequests != want.TotalRequests || st.TotalErrors != want.TotalErrors {
		t.Errorf("Stats() = %+v, want %+v", st, want)
	}
	if !st.TotalCredits.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("TotalCredits = %s, want 1.5", st.TotalCredits)
	}
}

func TestAddRemoveLoad(t *testing.T) {
	p, store, _, recs := newTestPool(t, RoundRobin, 2)
	ctx := context.Background()

	ok, err := p.Remove(ctx, recs[0].ID)
	if err != nil || !ok {
		t.Fatalf("Remove() = %v, %v", ok, err)
	}
	if ok, _ := p.Remove(ctx, "missing"); ok {
		t.Error("Remove(missing) reported true")
	}
	if p.Size() != 1 {
		t.Errorf("Size() = %d, want 1", p.Size())
	}

	reloaded := New(store, Options{})
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	list := reloaded.List()
	if len(list) != 1 || list[0].ID != recs[1].ID {
		t.Errorf("reloaded accounts = %+v", list)
	}
}

func TestAddStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failOn = "insert"
	p := New(store, Options{})
	if _, err := p.Add(context.Background(), "a", "{}", "social"); err == nil {
		t.Fatal("expected error")
	}
	if p.Size() != 0 {
		t.Errorf("Size() = %d after failed insert, want 0", p.Size())
	}
}

func TestUpdateCredentials(t *testing.T) {
	p, store, _, recs := newTestPool(t, RoundRobin, 1)
	if err := p.UpdateCredentials(context.Background(), recs[0].ID, `{"refreshToken":"new"}`); err != nil {
		t.Fatal(err)
	}
	if got := store.records[recs[0].ID].Credentials; got != `{"refreshToken":"new"}` {
		t.Errorf("persisted credentials = %s", got)
	}
	if err := p.UpdateCredentials(context.Background(), "missing", "{}"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentSelectAndReport(t *testing.T) {
	p, _, _, _ := newTestPool(t, RoundRobin, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec, err := p.SelectNext()
				if err != nil {
					continue
				}
				if j%7 == 0 {
					p.ReportFailure(ctx, rec.ID, false)
				} else {
					p.ReportSuccess(ctx, rec.ID, 1, 1, 0)
				}
			}
		}(i)
	}
	wg.Wait()

	if st := p.Stats(); st.TotalRequests == 0 {
		t.Error("expected requests to be recorded")
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"round-robin", "random", "least-used", "smart-score", "Smart-Score"} {
		if _, err := ParseStrategy(name); err != nil {
			t.Errorf("ParseStrategy(%q) error = %v", name, err)
		}
	}
	if _, err := ParseStrategy("weighted"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
