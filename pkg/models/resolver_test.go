package models

import (
	"context"
	"errors"
	"testing"
)

type memStore struct {
	models   []ModelInfo
	mappings []MappingRule
	err      error
	loads    int
}

func (s *memStore) FindAllModels(context.Context) ([]ModelInfo, error) {
	s.loads++
	return s.models, s.err
}

func (s *memStore) FindEnabledMappings(context.Context) ([]MappingRule, error) {
	return s.mappings, s.err
}

func newSeeded(t *testing.T, opts Options) (*Resolver, *memStore) {
	t.Helper()
	store := &memStore{models: DefaultModels(), mappings: DefaultMappings()}
	r := NewResolver(store, opts)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return r, store
}

func TestResolveSeededRules(t *testing.T) {
	r, _ := newSeeded(t, Options{})

	tests := []struct {
		requested    string
		wantModel    string
		wantThinking bool
		wantMatched  bool
	}{
		{"claude-sonnet-4.5", "claude-sonnet-4.5", false, true},
		{"sonnet", "claude-sonnet-4.5", false, true},
		{"auto", "auto-kiro", false, true},
		{"AUTO", "auto-kiro", false, true},
		{"claude-sonnet-4-5-20250929", "claude-sonnet-4.5", false, true},
		{"claude-opus-4-6", "claude-opus-4.5", false, true},
		{"claude-opus-4.6", "claude-opus-4.6", false, true},
		{"anthropic/opus-4.6-latest", "claude-opus-4.6", false, true},
		{"claude-3-7-sonnet-20250219", "claude-3.7-sonnet", false, true},
		{"claude-3-5-haiku-latest", "claude-haiku-4.5", false, true},
		{"gpt-4o-mini", "claude-sonnet-4.5", false, true},
		{"GPT-3.5-turbo", "claude-haiku-4.5", false, true},
		{"claude-sonnet-4-thinking", "claude-sonnet-4", true, true},
		{"claude-sonnet-4.5-thinking", "claude-sonnet-4.5", true, true},
		{"mystery-model", "auto-kiro", false, false},
		{"", "auto-kiro", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			got := r.Resolve(tt.requested)
			if got.ModelID != tt.wantModel {
				t.Errorf("ModelID = %q, want %q", got.ModelID, tt.wantModel)
			}
			if got.Thinking != tt.wantThinking {
				t.Errorf("Thinking = %v, want %v", got.Thinking, tt.wantThinking)
			}
			if got.Matched != tt.wantMatched {
				t.Errorf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if got.Requested != tt.requested {
				t.Errorf("Requested = %q, want %q", got.Requested, tt.requested)
			}
		})
	}
}

func TestResolveMatchKinds(t *testing.T) {
	store := &memStore{
		models: []ModelInfo{{ID: "m1", Enabled: true}, {ID: "m2", Enabled: true}},
		mappings: []MappingRule{
			{Pattern: "pre-", Kind: MatchPrefix, TargetID: "m1", Priority: 10, Enabled: true},
			{Pattern: `x-\d+`, Kind: MatchRegex, TargetID: "m2", Priority: 20, Enabled: true},
			{Pattern: "([", Kind: MatchRegex, TargetID: "m2", Priority: 30, Enabled: true},
			{Pattern: "off", Kind: MatchContains, TargetID: "m2", Priority: 99, Enabled: false},
		},
	}
	r := NewResolver(store, Options{})
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"PRE-thing", "m1"},
		{"x-42", "m2"},
		{"X-42", "m2"},
		{"M1", "m1"},
		{"ax-42", "m1"}, // regex must match the whole name; falls back
		{"x-42-pre-", "m1"},
		{"turned-off", "m1"},
	}
	for _, tt := range tests {
		if got := r.Resolve(tt.name).ModelID; got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolvePriorityOrder(t *testing.T) {
	store := &memStore{
		models: []ModelInfo{{ID: "low", Enabled: true}, {ID: "high", Enabled: true}},
		mappings: []MappingRule{
			{Pattern: "abc", Kind: MatchContains, TargetID: "low", Priority: 1, Enabled: true},
			{Pattern: "ab", Kind: MatchContains, TargetID: "high", Priority: 50, Enabled: true},
		},
	}
	r := NewResolver(store, Options{})
	r.Load(context.Background())
	if got := r.Resolve("xabcx").ModelID; got != "high" {
		t.Errorf("Resolve = %q, want high", got)
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Run("lowest display order", func(t *testing.T) {
		store := &memStore{models: []ModelInfo{
			{ID: "b", Enabled: true, DisplayOrder: 2},
			{ID: "a", Enabled: true, DisplayOrder: 1},
			{ID: "z", Enabled: false, DisplayOrder: 0},
		}}
		r := NewResolver(store, Options{})
		r.Load(context.Background())
		if got := r.Resolve("nope").ModelID; got != "a" {
			t.Errorf("default = %q, want a", got)
		}
	})

	t.Run("configured default", func(t *testing.T) {
		r, _ := newSeeded(t, Options{DefaultModel: "claude-haiku-4.5"})
		if got := r.Resolve("nope").ModelID; got != "claude-haiku-4.5" {
			t.Errorf("default = %q, want claude-haiku-4.5", got)
		}
	})

	t.Run("empty catalogue", func(t *testing.T) {
		r := NewResolver(&memStore{}, Options{})
		r.Load(context.Background())
		if got := r.Resolve("nope").ModelID; got != FallbackModelID {
			t.Errorf("default = %q, want %q", got, FallbackModelID)
		}
	})
}

func TestResolveIgnoresCase(t *testing.T) {
	r, _ := newSeeded(t, Options{})

	// Same name in different cases, in both orders, so a cached entry from
	// one spelling cannot leak into the other.
	orders := [][]string{
		{"claude-sonnet-4-thinking", "Claude-Sonnet-4-THINKING"},
		{"CLAUDE-HAIKU-4.5-Thinking", "claude-haiku-4.5-thinking"},
	}
	for _, names := range orders {
		for _, name := range names {
			got := r.Resolve(name)
			if !got.Thinking || !got.Matched {
				t.Errorf("Resolve(%q) = %+v, want a matched thinking result", name, got)
			}
			if got.Requested != name {
				t.Errorf("Resolve(%q).Requested = %q", name, got.Requested)
			}
		}
	}

	fresh, _ := newSeeded(t, Options{})
	if got := fresh.Resolve("Claude-Sonnet-4-THINKING"); got.ModelID != "claude-sonnet-4" || !got.Thinking {
		t.Errorf("uncached Resolve = %+v, want claude-sonnet-4 with thinking", got)
	}
}

func TestResolveCacheAndRefresh(t *testing.T) {
	r, store := newSeeded(t, Options{})

	if got := r.Resolve("Sonnet").ModelID; got != "claude-sonnet-4.5" {
		t.Fatalf("Resolve = %q", got)
	}

	// Change the rules underneath; the cached result must survive until Refresh.
	store.mappings = []MappingRule{{Pattern: "sonnet", Kind: MatchContains, TargetID: "claude-sonnet-4", Priority: 1, Enabled: true}}
	if got := r.Resolve("sonnet").ModelID; got != "claude-sonnet-4.5" {
		t.Errorf("cached Resolve = %q, want claude-sonnet-4.5", got)
	}

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := r.Resolve("sonnet").ModelID; got != "claude-sonnet-4" {
		t.Errorf("Resolve after Refresh = %q, want claude-sonnet-4", got)
	}
	if store.loads != 2 {
		t.Errorf("store loads = %d, want 2", store.loads)
	}
}

func TestLoadError(t *testing.T) {
	r := NewResolver(&memStore{err: errors.New("db down")}, Options{})
	if err := r.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestListModelsAndMaxTokens(t *testing.T) {
	r, _ := newSeeded(t, Options{DefaultMaxTokens: 1234})

	list := r.ListModels()
	if len(list) != len(DefaultModels()) {
		t.Fatalf("ListModels returned %d models, want %d", len(list), len(DefaultModels()))
	}
	if list[0].ID != "auto-kiro" {
		t.Errorf("first model = %q, want auto-kiro", list[0].ID)
	}
	if got := r.MaxTokens("claude-sonnet-4.5"); got != 32000 {
		t.Errorf("MaxTokens(known) = %d, want 32000", got)
	}
	if got := r.MaxTokens("unknown"); got != 1234 {
		t.Errorf("MaxTokens(unknown) = %d, want 1234", got)
	}
}
