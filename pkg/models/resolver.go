package models

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Options configures a Resolver.
type Options struct {
	// ThinkingSuffix marks a request for thinking mode. Default: "-thinking".
	ThinkingSuffix string

	// DefaultModel overrides the lowest-display-order fallback when set and
	// present in the enabled catalogue.
	DefaultModel string

	// DefaultMaxTokens is returned by MaxTokens for unknown models.
	DefaultMaxTokens int
}

type compiledRule struct {
	MappingRule
	pattern string
	re      *regexp.Regexp
}

// Resolver resolves requested model names. It is safe for concurrent use.
type Resolver struct {
	store  Store
	opts   Options
	logger *slog.Logger

	mu      sync.RWMutex
	models  map[string]ModelInfo
	byLower map[string]string // lower-cased id -> id
	rules   []compiledRule

	cache sync.Map // lower-cased requested name -> ResolveResult
}

// NewResolver creates a Resolver. Call Load (or Refresh) before use.
func NewResolver(store Store, opts Options) *Resolver {
	if opts.ThinkingSuffix == "" {
		opts.ThinkingSuffix = "-thinking"
	}
	if opts.DefaultMaxTokens <= 0 {
		opts.DefaultMaxTokens = DefaultMaxTokens
	}
	return &Resolver{
		store:  store,
		opts:   opts,
		logger: slog.Default().With("component", "models.resolver"),
		models: map[string]ModelInfo{},
	}
}

// Load reads the catalogue and rules from the store.
func (r *Resolver) Load(ctx context.Context) error {
	all, err := r.store.FindAllModels(ctx)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	mappings, err := r.store.FindEnabledMappings(ctx)
	if err != nil {
		return fmt.Errorf("load model mappings: %w", err)
	}

	models := make(map[string]ModelInfo, len(all))
	byLower := make(map[string]string, len(all))
	for _, m := range all {
		models[m.ID] = m
		byLower[strings.ToLower(m.ID)] = m.ID
	}

	rules := make([]compiledRule, 0, len(mappings))
	for _, m := range mappings {
		if !m.Enabled {
			continue
		}
		cr := compiledRule{MappingRule: m, pattern: strings.ToLower(m.Pattern)}
		if m.Kind == MatchRegex {
			re, err := regexp.Compile("(?i)^(?:" + m.Pattern + ")$")
			if err != nil {
				r.logger.Warn("skipping mapping rule with invalid regex",
					"pattern", m.Pattern,
					"error", err,
				)
				continue
			}
			cr.re = re
		}
		rules = append(rules, cr)
	}
	// Stable so equal priorities keep store order.
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	r.mu.Lock()
	r.models = models
	r.byLower = byLower
	r.rules = rules
	r.mu.Unlock()

	r.logger.Info("model catalogue loaded", "models", len(models), "rules", len(rules))
	return nil
}

// Refresh drops every cached resolution and reloads from the store.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.cache.Clear()
	return r.Load(ctx)
}

// Resolve maps a requested name to an upstream model id. Matching ignores
// case, including the thinking suffix.
func (r *Resolver) Resolve(requested string) ResolveResult {
	key := strings.ToLower(requested)
	if v, ok := r.cache.Load(key); ok {
		res := v.(ResolveResult)
		res.Requested = requested
		return res
	}

	res := r.resolve(requested)
	r.cache.Store(key, res)
	return res
}

func (r *Resolver) resolve(requested string) ResolveResult {
	name := requested
	thinking := false
	suffix := r.opts.ThinkingSuffix
	if len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		thinking = true
		name = name[:len(name)-len(suffix)]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		lowered := strings.ToLower(name)
		if m, ok := r.models[r.byLower[lowered]]; ok && m.Enabled {
			return ResolveResult{ModelID: m.ID, Requested: requested, Thinking: thinking, Matched: true}
		}

		for _, rule := range r.rules {
			if rule.matches(name, lowered) {
				return ResolveResult{ModelID: rule.TargetID, Requested: requested, Thinking: thinking, Matched: true}
			}
		}
	}

	r.logger.Debug("no model mapping matched, using default", "requested", requested)
	return ResolveResult{ModelID: r.defaultIDLocked(), Requested: requested, Thinking: thinking}
}

func (c compiledRule) matches(name, lowered string) bool {
	switch c.Kind {
	case MatchExact:
		return lowered == c.pattern
	case MatchPrefix:
		return strings.HasPrefix(lowered, c.pattern)
	case MatchContains:
		return strings.Contains(lowered, c.pattern)
	case MatchRegex:
		return c.re != nil && c.re.MatchString(name)
	default:
		return false
	}
}

func (r *Resolver) defaultIDLocked() string {
	if m, ok := r.models[r.opts.DefaultModel]; ok && m.Enabled {
		return m.ID
	}
	enabled := lo.Filter(lo.Values(r.models), func(m ModelInfo, _ int) bool { return m.Enabled })
	if len(enabled) == 0 {
		return FallbackModelID
	}
	return lo.MinBy(enabled, func(a, b ModelInfo) bool {
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.ID < b.ID
	}).ID
}

// ListModels returns enabled models ordered by display order.
func (r *Resolver) ListModels() []ModelInfo {
	r.mu.RLock()
	out := lo.Filter(lo.Values(r.models), func(m ModelInfo, _ int) bool { return m.Enabled })
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Model returns catalogue information for an upstream model id.
func (r *Resolver) Model(id string) (ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// MaxTokens returns the context window for id, or the configured default.
func (r *Resolver) MaxTokens(id string) int {
	if m, ok := r.Model(id); ok && m.MaxTokens > 0 {
		return m.MaxTokens
	}
	return r.opts.DefaultMaxTokens
}
