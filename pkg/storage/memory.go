package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/pool"
)

// Memory is an in-process Store. Data is lost when the process exits.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]pool.Record
	models   []models.ModelInfo
	rules    []models.MappingRule
	keys     map[string]APIKey
	logs     []*audit.Trace
	bodies   map[string]bool
	seq      int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]pool.Record),
		keys:     make(map[string]APIKey),
		bodies:   make(map[string]bool),
	}
}

// FindAllAccounts implements pool.Store.
func (m *Memory) FindAllAccounts(ctx context.Context) ([]pool.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pool.Record, 0, len(m.accounts))
	for _, r := range m.accounts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// InsertAccount implements pool.Store.
func (m *Memory) InsertAccount(ctx context.Context, rec pool.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[rec.ID]; ok {
		return NewStorageError("memory", "insert_account", fmt.Errorf("duplicate account id %s", rec.ID))
	}
	m.accounts[rec.ID] = rec
	return nil
}

// UpdateAccount implements pool.Store.
func (m *Memory) UpdateAccount(ctx context.Context, rec pool.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.accounts[rec.ID]
	if !ok {
		return NewStorageError("memory", "update_account", fmt.Errorf("account %s: %w", rec.ID, ErrNotFound))
	}
	rec.CreatedAt = old.CreatedAt
	m.accounts[rec.ID] = rec
	return nil
}

// DeleteAccount implements pool.Store.
func (m *Memory) DeleteAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

// FindAllModels implements models.Store.
func (m *Memory) FindAllModels(ctx context.Context) ([]models.ModelInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ModelInfo(nil), m.models...), nil
}

// FindEnabledMappings implements models.Store.
func (m *Memory) FindEnabledMappings(ctx context.Context) ([]models.MappingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.MappingRule
	for _, r := range m.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// SeedCatalog implements Store.
func (m *Memory) SeedCatalog(ctx context.Context, all []models.ModelInfo, rules []models.MappingRule) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.models) > 0 {
		return false, nil
	}
	m.models = append([]models.ModelInfo(nil), all...)
	m.rules = make([]models.MappingRule, len(rules))
	for i, r := range rules {
		r.ID = int64(i + 1)
		m.rules[i] = r
	}
	return true, nil
}

// InsertAPIKey implements KeyStore.
func (m *Memory) InsertAPIKey(ctx context.Context, key APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key.Key]; ok {
		return NewStorageError("memory", "insert_api_key", fmt.Errorf("duplicate api key"))
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	m.keys[key.Key] = key
	return nil
}

// DeleteAPIKey implements KeyStore.
func (m *Memory) DeleteAPIKey(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; !ok {
		return NewStorageError("memory", "delete_api_key", fmt.Errorf("api key: %w", ErrNotFound))
	}
	delete(m.keys, key)
	return nil
}

// ListAPIKeys implements KeyStore.
func (m *Memory) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]APIKey, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LookupAPIKey implements KeyStore.
func (m *Memory) LookupAPIKey(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[key]
	return ok && k.Enabled, nil
}

// InsertTrace implements audit.Store.
func (m *Memory) InsertTrace(ctx context.Context, t *audit.Trace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.logs = append(m.logs, &cp)
	if t.RequestBody != "" || t.UpstreamPayload != "" || t.ResponseBody != "" {
		m.bodies[t.ID] = true
	}
	return nil
}

// QueryTraces implements audit.Store. Results are newest first.
func (m *Memory) QueryTraces(ctx context.Context, q audit.Query) ([]*audit.Trace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := []*audit.Trace{}
	for i := len(m.logs) - 1; i >= 0; i-- {
		t := m.logs[i]
		if !matches(t, q) {
			continue
		}
		cp := *t
		if !q.WithBodies || !m.bodies[t.ID] {
			cp.RequestBody, cp.UpstreamPayload, cp.ResponseBody = "", "", ""
		}
		matched = append(matched, &cp)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset >= len(matched) {
		return []*audit.Trace{}, nil
	}
	end := min(q.Offset+limit, len(matched))
	return matched[q.Offset:end], nil
}

// CountTraces implements audit.Store.
func (m *Memory) CountTraces(ctx context.Context, q audit.Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, t := range m.logs {
		if matches(t, q) {
			n++
		}
	}
	return n, nil
}

// PruneRequestLogs implements audit.Store.
func (m *Memory) PruneRequestLogs(ctx context.Context, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.logs) <= keep {
		return 0, nil
	}
	drop := len(m.logs) - keep
	for _, t := range m.logs[:drop] {
		delete(m.bodies, t.ID)
	}
	m.logs = append([]*audit.Trace(nil), m.logs[drop:]...)
	return int64(drop), nil
}

// PruneTraceBodies implements audit.Store.
func (m *Memory) PruneTraceBodies(ctx context.Context, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	seen := 0
	for i := len(m.logs) - 1; i >= 0; i-- {
		id := m.logs[i].ID
		if !m.bodies[id] {
			continue
		}
		seen++
		if seen > keep {
			delete(m.bodies, id)
			n++
		}
	}
	return n, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

func matches(t *audit.Trace, q audit.Query) bool {
	if q.Since != nil && t.Time.Before(*q.Since) {
		return false
	}
	if q.Until != nil && t.Time.After(*q.Until) {
		return false
	}
	if q.AccountID != "" && t.AccountID != q.AccountID {
		return false
	}
	if q.Model != "" && t.RequestedModel != q.Model && t.ResolvedModel != q.Model {
		return false
	}
	if q.Protocol != "" && t.Protocol != q.Protocol {
		return false
	}
	switch q.Status {
	case "success":
		return !t.Failed()
	case "error":
		return t.Failed()
	}
	return true
}
