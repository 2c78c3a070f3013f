package models

import (
	"context"
	"fmt"
)

// MatchKind selects how a MappingRule pattern is compared with a model name.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchPrefix   MatchKind = "prefix"
	MatchContains MatchKind = "contains"
	MatchRegex    MatchKind = "regex"
)

// ParseMatchKind validates s as a MatchKind.
func ParseMatchKind(s string) (MatchKind, error) {
	switch k := MatchKind(s); k {
	case MatchExact, MatchPrefix, MatchContains, MatchRegex:
		return k, nil
	default:
		return "", fmt.Errorf("unknown match kind %q", s)
	}
}

// ModelInfo describes one upstream model offered to callers.
type ModelInfo struct {
	// ID is the upstream model id sent in the payload.
	ID string `json:"id"`

	// DisplayName is a human-readable label.
	DisplayName string `json:"display_name"`

	// MaxTokens is the context window used for token estimation.
	MaxTokens int `json:"max_tokens"`

	// OwnedBy is reported in model listings.
	OwnedBy string `json:"owned_by"`

	// Enabled excludes the model from resolution and listings when false.
	Enabled bool `json:"enabled"`

	// DisplayOrder sorts listings and picks the fallback model (lowest wins).
	DisplayOrder int `json:"display_order"`
}

// MappingRule rewrites a caller-facing model name to an upstream id.
type MappingRule struct {
	ID       int64     `json:"id,omitempty"`
	Pattern  string    `json:"pattern"`
	Kind     MatchKind `json:"match_type"`
	TargetID string    `json:"target_id"`
	Priority int       `json:"priority"`
	Enabled  bool      `json:"enabled"`
}

// ResolveResult is the outcome of resolving a requested model name.
type ResolveResult struct {
	// ModelID is the upstream model id to use.
	ModelID string

	// Requested is the name exactly as the caller sent it.
	Requested string

	// Thinking is true when the caller asked for synthetic thinking mode.
	Thinking bool

	// Matched is false when resolution fell through to the default model.
	Matched bool
}

// Store provides the model catalogue and mapping rules.
type Store interface {
	FindAllModels(ctx context.Context) ([]ModelInfo, error)
	FindEnabledMappings(ctx context.Context) ([]MappingRule, error)
}
