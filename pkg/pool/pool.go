package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store persists account records.
type Store interface {
	FindAllAccounts(ctx context.Context) ([]Record, error)
	InsertAccount(ctx context.Context, rec Record) error
	UpdateAccount(ctx context.Context, rec Record) error
	DeleteAccount(ctx context.Context, id string) error
}

// Options configures a Pool.
type Options struct {
	Strategy Strategy
	Cooldown CooldownPolicy

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats summarizes the pool.
type Stats struct {
	Total             int             `json:"total"`
	Active            int             `json:"active"`
	Cooldown          int             `json:"cooldown"`
	Invalid           int             `json:"invalid"`
	Disabled          int             `json:"disabled"`
	TotalRequests     int64           `json:"total_requests"`
	TotalErrors       int64           `json:"total_errors"`
	TotalInputTokens  int64           `json:"total_input_tokens"`
	TotalOutputTokens int64           `json:"total_output_tokens"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	Strategy          string          `json:"strategy"`
}

// Pool is the credential pool. It is safe for concurrent use.
type Pool struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger

	mu       sync.RWMutex
	accounts map[string]*Account
	order    []*Account

	strategy atomic.Int32
	cooldown atomic.Pointer[CooldownPolicy]
	rr       atomic.Uint64
}

// New creates an empty pool. Call Load to populate it from the store.
func New(store Store, opts Options) *Pool {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cooldown == (CooldownPolicy{}) {
		opts.Cooldown = DefaultCooldownPolicy()
	}
	p := &Pool{
		store:    store,
		now:      opts.Now,
		logger:   slog.Default().With("component", "pool"),
		accounts: make(map[string]*Account),
	}
	p.SetStrategy(opts.Strategy)
	p.SetCooldownPolicy(opts.Cooldown)
	return p
}

// Load replaces the in-memory accounts with the store contents.
func (p *Pool) Load(ctx context.Context) error {
	recs, err := p.store.FindAllAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })

	accounts := make(map[string]*Account, len(recs))
	order := make([]*Account, 0, len(recs))
	for _, rec := range recs {
		a := newAccount(rec)
		accounts[rec.ID] = a
		order = append(order, a)
	}

	p.mu.Lock()
	p.accounts = accounts
	p.order = order
	p.mu.Unlock()

	p.logger.Info("account pool loaded",
		"accounts", len(order),
		"strategy", p.Strategy().String(),
	)
	return nil
}

// SetStrategy switches the selection strategy.
func (p *Pool) SetStrategy(s Strategy) {
	p.strategy.Store(int32(s))
}

// Strategy returns the current selection strategy.
func (p *Pool) Strategy() Strategy {
	return Strategy(p.strategy.Load())
}

// SetCooldownPolicy replaces the cooldown policy used for later failures.
func (p *Pool) SetCooldownPolicy(c CooldownPolicy) {
	p.cooldown.Store(&c)
}

// CooldownPolicy returns the policy in effect.
func (p *Pool) CooldownPolicy() CooldownPolicy {
	return *p.cooldown.Load()
}

func (p *Pool) snapshotOrder() []*Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Account, len(p.order))
	copy(out, p.order)
	return out
}

func (p *Pool) lookup(id string) (*Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.accounts[id]
	return a, ok
}

// SelectNext returns a usable account chosen by the current strategy. It
// never waits: ErrNoAvailable is returned immediately when the usable set
// is empty.
func (p *Pool) SelectNext() (Record, error) {
	now := p.now()

	var usable []Record
	for _, a := range p.snapshotOrder() {
		if rec, ok := a.checkUsable(now); ok {
			usable = append(usable, rec)
		}
	}
	if len(usable) == 0 {
		return Record{}, ErrNoAvailable
	}

	return p.Strategy().pick(usable, &p.rr, now), nil
}

// ReportSuccess records a successful request against account id.
func (p *Pool) ReportSuccess(ctx context.Context, id string, inputTokens, outputTokens int, credits float64) {
	a, ok := p.lookup(id)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordSuccessLocked(inputTokens, outputTokens, decimal.NewFromFloat(credits), p.now())
	p.persistLocked(ctx, a)
}

// ReportFailure records a failed request against account id and applies the
// cooldown policy.
func (p *Pool) ReportFailure(ctx context.Context, id string, rateLimited bool) {
	a, ok := p.lookup(id)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordErrorLocked(rateLimited, p.CooldownPolicy(), p.now())
	if !a.rec.CooldownUntil.IsZero() {
		p.logger.Warn("account cooling down",
			"account_id", id,
			"rate_limited", rateLimited,
			"consecutive_errors", a.rec.ConsecutiveErrors,
			"until", a.rec.CooldownUntil,
		)
	}
	p.persistLocked(ctx, a)
}

// persistLocked writes the account to the store. The caller holds a.mu, so
// writes for a single account are applied in mutation order. Store failures
// are logged and do not fail the caller.
func (p *Pool) persistLocked(ctx context.Context, a *Account) {
	if p.store == nil {
		return
	}
	if err := p.store.UpdateAccount(context.WithoutCancel(ctx), a.rec); err != nil {
		p.logger.Error("failed to persist account", "account_id", a.rec.ID, "error", err)
	}
}

// Add creates a new active account and persists it.
func (p *Pool) Add(ctx context.Context, name, credentials, authMethod string) (Record, error) {
	rec := Record{
		ID:          uuid.NewString(),
		Name:        name,
		Credentials: credentials,
		AuthMethod:  authMethod,
		Status:      StatusActive,
		Credits:     decimal.Zero,
		CreatedAt:   p.now(),
	}
	if p.store != nil {
		if err := p.store.InsertAccount(ctx, rec); err != nil {
			return Record{}, fmt.Errorf("insert account: %w", err)
		}
	}

	a := newAccount(rec)
	p.mu.Lock()
	p.accounts[rec.ID] = a
	p.order = append(p.order, a)
	p.mu.Unlock()

	p.logger.Info("account added", "account_id", rec.ID, "name", name, "auth_method", authMethod)
	return rec, nil
}

// Remove deletes an account. It reports false when id is unknown.
func (p *Pool) Remove(ctx context.Context, id string) (bool, error) {
	p.mu.Lock()
	a, ok := p.accounts[id]
	if ok {
		delete(p.accounts, id)
		for i, o := range p.order {
			if o == a {
				p.order = append(p.order[:i:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	if !ok {
		return false, nil
	}
	if p.store != nil {
		if err := p.store.DeleteAccount(ctx, id); err != nil {
			return true, fmt.Errorf("delete account: %w", err)
		}
	}
	p.logger.Info("account removed", "account_id", id)
	return true, nil
}

// List returns snapshots of all accounts in creation order.
func (p *Pool) List() []Record {
	order := p.snapshotOrder()
	out := make([]Record, 0, len(order))
	for _, a := range order {
		out = append(out, a.Snapshot())
	}
	return out
}

// Get returns a snapshot of one account.
func (p *Pool) Get(id string) (Record, bool) {
	a, ok := p.lookup(id)
	if !ok {
		return Record{}, false
	}
	return a.Snapshot(), true
}

// SetStatus changes the lifecycle status of an account. Setting active also
// clears any cooldown.
func (p *Pool) SetStatus(ctx context.Context, id string, status Status) error {
	a, ok := p.lookup(id)
	if !ok {
		return ErrNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.Status = status
	if status == StatusActive {
		a.rec.CooldownUntil = time.Time{}
		a.rec.ConsecutiveErrors = 0
	}
	p.persistLocked(ctx, a)
	return nil
}

// UpdateCredentials replaces the stored auth material, e.g. after the token
// manager observed a rotated refresh token.
func (p *Pool) UpdateCredentials(ctx context.Context, id, credentials string) error {
	a, ok := p.lookup(id)
	if !ok {
		return ErrNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.Credentials = credentials
	p.persistLocked(ctx, a)
	return nil
}

// Size returns the number of accounts.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// AvailableCount returns the number of currently usable accounts.
func (p *Pool) AvailableCount() int {
	now := p.now()
	n := 0
	for _, a := range p.snapshotOrder() {
		if _, ok := a.checkUsable(now); ok {
			n++
		}
	}
	return n
}

// Stats summarizes account states and totals.
func (p *Pool) Stats() Stats {
	now := p.now()
	st := Stats{TotalCredits: decimal.Zero, Strategy: p.Strategy().String()}
	for _, a := range p.snapshotOrder() {
		rec := a.Snapshot()
		st.Total++
		switch rec.Status {
		case StatusActive:
			if rec.CoolingDown(now) {
				st.Cooldown++
			} else {
				st.Active++
			}
		case StatusInvalid:
			st.Invalid++
		case StatusDisabled:
			st.Disabled++
		}
		st.TotalRequests += rec.Requests
		st.TotalErrors += rec.Errors
		st.TotalInputTokens += rec.InputTokens
		st.TotalOutputTokens += rec.OutputTokens
		st.TotalCredits = st.TotalCredits.Add(rec.Credits)
	}
	return st
}
