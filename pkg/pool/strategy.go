package pool

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// Strategy selects one account from the usable set.
type Strategy int

const (
	// RoundRobin cycles through usable accounts with a shared counter.
	// Concurrent callers may observe index drift; fairness is approximate.
	RoundRobin Strategy = iota
	// Random picks uniformly.
	Random
	// LeastUsed picks the account with the fewest total requests.
	LeastUsed
	// SmartScore picks the account with the highest Record.Score.
	SmartScore
)

var strategyNames = map[Strategy]string{
	RoundRobin: "round-robin",
	Random:     "random",
	LeastUsed:  "least-used",
	SmartScore: "smart-score",
}

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy parses a configuration name such as "least-used".
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return RoundRobin, fmt.Errorf("unknown pool strategy %q (want round-robin, random, least-used or smart-score)", name)
}

// pick chooses an index into usable, which must be non-empty.
func (s Strategy) pick(usable []Record, counter *atomic.Uint64, now time.Time) Record {
	switch s {
	case Random:
		return usable[rand.IntN(len(usable))]
	case LeastUsed:
		return lo.MinBy(usable, func(a, b Record) bool { return a.Requests < b.Requests })
	case SmartScore:
		return lo.MaxBy(usable, func(a, b Record) bool { return a.Score(now) > b.Score(now) })
	default:
		idx := (counter.Add(1) - 1) % uint64(len(usable))
		return usable[idx]
	}
}
