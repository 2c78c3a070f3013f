package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

type fakeStore struct {
	mu     sync.Mutex
	traces []*Trace
	block  chan struct{}
	err    error

	prunedLogs, prunedBodies int
}

func (s *fakeStore) InsertTrace(ctx context.Context, t *Trace) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *t
	s.traces = append(s.traces, &cp)
	return nil
}

func (s *fakeStore) QueryTraces(ctx context.Context, q Query) ([]*Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Trace(nil), s.traces...), nil
}

func (s *fakeStore) CountTraces(ctx context.Context, q Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.traces)), nil
}

func (s *fakeStore) PruneRequestLogs(ctx context.Context, keep int) (int64, error) {
	s.prunedLogs = keep
	return 2, nil
}

func (s *fakeStore) PruneTraceBodies(ctx context.Context, keep int) (int64, error) {
	s.prunedBodies = keep
	return 3, nil
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.traces)
}

func TestRecorderWritesAndPublishes(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, DefaultConfig())

	feed, cancel := rec.Subscribe(4)
	defer cancel()

	if err := rec.Record(&Trace{ID: "t1", Status: 200, APIKey: "sk-kiro-0123456789"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	select {
	case got := <-feed:
		if got.ID != "t1" {
			t.Errorf("published id = %q", got.ID)
		}
		if got.APIKey != "sk-k***6789" {
			t.Errorf("published api key = %q, want redacted", got.APIKey)
		}
		if got.Time.IsZero() {
			t.Error("time not stamped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no trace published")
	}

	rec.Close()
	if store.len() != 1 {
		t.Errorf("stored = %d, want 1", store.len())
	}
	written, dropped, failed := rec.Stats()
	if written != 1 || dropped != 0 || failed != 0 {
		t.Errorf("Stats() = %d/%d/%d", written, dropped, failed)
	}
	if _, ok := <-feed; ok {
		t.Error("subscriber channel not closed by Close")
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	rec := NewRecorder(store, &Config{Enabled: true, AsyncBuffer: 1, WriteTimeout: time.Second})

	// The worker takes the first trace and blocks in the store, the second
	// fills the queue, the rest are dropped.
	var full int
	for i := 0; i < 10; i++ {
		err := rec.Record(&Trace{ID: "t"})
		if errors.Is(err, ErrBufferFull) {
			full++
		}
		if i == 0 {
			time.Sleep(50 * time.Millisecond)
		}
	}
	close(store.block)
	rec.Close()

	if full == 0 {
		t.Fatal("expected dropped traces")
	}
	_, dropped, _ := rec.Stats()
	if int(dropped) != full {
		t.Errorf("dropped = %d, want %d", dropped, full)
	}
	if store.len()+full != 10 {
		t.Errorf("stored %d + dropped %d != 10", store.len(), full)
	}
}

func TestRecorderClosed(t *testing.T) {
	rec := NewRecorder(&fakeStore{}, DefaultConfig())
	rec.Close()
	rec.Close()
	if err := rec.Record(&Trace{ID: "late"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Record() after Close = %v, want ErrClosed", err)
	}
}

func TestRecorderDisabled(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, &Config{Enabled: false})
	if err := rec.Record(&Trace{ID: "x"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	rec.Close()
	if store.len() != 0 {
		t.Errorf("stored = %d, want 0", store.len())
	}
}

func TestRecorderStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	rec := NewRecorder(store, DefaultConfig())
	rec.Record(&Trace{ID: "x"})
	rec.Close()
	if _, _, failed := rec.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestRecorderTruncatesBodies(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, &Config{Enabled: true, AsyncBuffer: 4, MaxFieldLength: 200})
	long := `{"model":"m","messages":[` +
		strings.Repeat(`{"role":"user","content":"`+strings.Repeat("a", 50)+`"},`, 10) +
		`{"role":"user","content":"last"}]}`
	rec.Record(&Trace{ID: "x", RequestBody: long, Error: strings.Repeat("e", 500)})
	rec.Close()

	got := store.traces[0]
	if len(got.RequestBody) > 200 {
		t.Errorf("request body length = %d, want <= 200", len(got.RequestBody))
	}
	if !gjson.Valid(got.RequestBody) {
		t.Fatalf("request body no longer JSON: %s", got.RequestBody)
	}
	if gjson.Get(got.RequestBody, "messages.#").Int() < 1 || !gjson.Get(got.RequestBody, `messages.#(content=="last")`).Exists() {
		t.Errorf("newest message not kept: %s", got.RequestBody)
	}
	if gjson.Get(got.RequestBody, "_truncated").Int() == 0 {
		t.Errorf("truncation marker missing: %s", got.RequestBody)
	}
	if len(got.Error) != 200 || !strings.HasSuffix(got.Error, "...") {
		t.Errorf("error length = %d", len(got.Error))
	}
}

func TestPruner(t *testing.T) {
	store := &fakeStore{}
	n, err := NewPruner(store, RetentionConfig{MaxRequestLogs: 10, MaxTraces: 5}).Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 5 || store.prunedLogs != 10 || store.prunedBodies != 5 {
		t.Errorf("Prune() = %d, logs keep %d, bodies keep %d", n, store.prunedLogs, store.prunedBodies)
	}

	store = &fakeStore{}
	n, _ = NewPruner(store, RetentionConfig{}).Prune(context.Background())
	if n != 0 || store.prunedLogs != 0 || store.prunedBodies != 0 {
		t.Errorf("zero config should not prune, got %d", n)
	}
}
