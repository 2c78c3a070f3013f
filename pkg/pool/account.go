package pool

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the administrative lifecycle state of an account. Cooldown is not
// a status; it is derived from CooldownUntil.
type Status string

const (
	StatusActive   Status = "active"
	StatusInvalid  Status = "invalid"
	StatusDisabled Status = "disabled"
)

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusInvalid, StatusDisabled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown account status %q", s)
	}
}

// Record is a point-in-time copy of an account, used for persistence and for
// handing account data to callers without sharing mutable state.
type Record struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Credentials is the serialized auth material. The pool never parses it.
	Credentials string `json:"-"`

	// AuthMethod names the refresh strategy ("social", "idc", "builderid").
	AuthMethod string `json:"auth_method"`

	Status Status `json:"status"`

	Requests          int64 `json:"request_count"`
	Successes         int64 `json:"success_count"`
	Errors            int64 `json:"error_count"`
	ConsecutiveErrors int64 `json:"consecutive_errors"`
	InputTokens       int64 `json:"input_tokens_total"`
	OutputTokens      int64 `json:"output_tokens_total"`

	// Credits is the cumulative cost in upstream credit units.
	Credits decimal.Decimal `json:"credits_total"`

	CooldownUntil time.Time `json:"cooldown_until,omitzero"`
	LastUsedAt    time.Time `json:"last_used_at,omitzero"`
	CreatedAt     time.Time `json:"created_at"`
}

// Usable reports whether the record is active and not cooling down at now.
func (r Record) Usable(now time.Time) bool {
	return r.Status == StatusActive && !r.CoolingDown(now)
}

// CoolingDown reports whether a cooldown is in effect at now.
func (r Record) CoolingDown(now time.Time) bool {
	return !r.CooldownUntil.IsZero() && now.Before(r.CooldownUntil)
}

// Score is the smart-score weight: 60 points of success rate, up to 20 for
// recency and up to 20 for low total usage.
func (r Record) Score(now time.Time) float64 {
	total := r.Successes + r.Errors

	successRate := 1.0
	if total > 0 {
		successRate = float64(r.Successes) / float64(total)
	}

	recency := 20.0
	if !r.LastUsedAt.IsZero() {
		hours := now.Sub(r.LastUsedAt).Hours()
		switch {
		case hours < 1:
			recency = 20
		case hours < 24:
			recency = 15
		default:
			recency = math.Max(5, 20-hours/24)
		}
	}

	load := math.Max(0, 20-float64(total)/100)

	return successRate*60 + recency + load
}

// CooldownPolicy controls how failures translate into cooldowns.
type CooldownPolicy struct {
	// Quota is applied on every rate-limit failure.
	Quota time.Duration

	// Error is applied once consecutive non-rate-limit failures reach ErrorThreshold.
	Error time.Duration

	// ErrorThreshold is the consecutive failure count that triggers Error.
	ErrorThreshold int
}

// DefaultCooldownPolicy matches the gateway defaults.
func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{Quota: 60 * time.Minute, Error: time.Minute, ErrorThreshold: 3}
}

// Account is the live, mutable state for one credential.
type Account struct {
	mu  sync.Mutex
	rec Record
}

func newAccount(rec Record) *Account {
	return &Account{rec: rec}
}

// Snapshot returns a copy of the current state.
func (a *Account) Snapshot() Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rec
}

// checkUsable applies the usability rule and returns the resulting snapshot.
// An expired cooldown is cleared and the consecutive error count reset.
func (a *Account) checkUsable(now time.Time) (Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expireCooldownLocked(now)
	return a.rec, a.rec.Usable(now)
}

func (a *Account) expireCooldownLocked(now time.Time) bool {
	if a.rec.CooldownUntil.IsZero() || now.Before(a.rec.CooldownUntil) {
		return false
	}
	a.rec.CooldownUntil = time.Time{}
	a.rec.ConsecutiveErrors = 0
	return true
}

func (a *Account) recordSuccessLocked(input, output int, credits decimal.Decimal, now time.Time) {
	a.rec.Requests++
	a.rec.Successes++
	a.rec.ConsecutiveErrors = 0
	a.rec.InputTokens += int64(input)
	a.rec.OutputTokens += int64(output)
	a.rec.Credits = a.rec.Credits.Add(credits)
	a.rec.LastUsedAt = now
	a.rec.CooldownUntil = time.Time{}
}

func (a *Account) recordErrorLocked(rateLimited bool, policy CooldownPolicy, now time.Time) {
	a.rec.Requests++
	a.rec.Errors++
	a.rec.ConsecutiveErrors++
	a.rec.LastUsedAt = now

	switch {
	case rateLimited:
		a.rec.CooldownUntil = now.Add(policy.Quota)
	case a.rec.ConsecutiveErrors >= int64(policy.ErrorThreshold):
		a.rec.CooldownUntil = now.Add(policy.Error)
	}
}
