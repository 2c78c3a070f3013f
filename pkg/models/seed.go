package models

// FallbackModelID is used when the catalogue has no enabled model at all.
const FallbackModelID = "claude-sonnet-4-5-20250929"

// DefaultMaxTokens bounds token estimation for models missing from the catalogue.
const DefaultMaxTokens = 200000

// DefaultModels is the catalogue installed into an empty store.
func DefaultModels() []ModelInfo {
	seed := []struct{ id, name string }{
		{"auto-kiro", "Auto (Kiro)"},
		{"claude-sonnet-4.5", "Claude Sonnet 4.5"},
		{"claude-sonnet-4", "Claude Sonnet 4"},
		{"claude-haiku-4.5", "Claude Haiku 4.5"},
		{"claude-opus-4.5", "Claude Opus 4.5"},
		{"claude-opus-4.6", "Claude Opus 4.6"},
		{"claude-3.7-sonnet", "Claude 3.7 Sonnet"},
	}
	out := make([]ModelInfo, 0, len(seed))
	for i, s := range seed {
		out = append(out, ModelInfo{
			ID:           s.id,
			DisplayName:  s.name,
			MaxTokens:    32000,
			OwnedBy:      "kiro",
			Enabled:      true,
			DisplayOrder: i,
		})
	}
	return out
}

// DefaultMappings is the rule set installed into an empty store.
func DefaultMappings() []MappingRule {
	rule := func(pattern, target string, kind MatchKind, priority int) MappingRule {
		return MappingRule{Pattern: pattern, TargetID: target, Kind: kind, Priority: priority, Enabled: true}
	}
	return []MappingRule{
		rule("auto", "auto-kiro", MatchExact, 100),
		rule("claude-sonnet-4-5-20250929", "claude-sonnet-4.5", MatchExact, 100),
		rule("claude-haiku-4-5-20251001", "claude-haiku-4.5", MatchExact, 100),

		rule("opus-4.6", "claude-opus-4.6", MatchContains, 15),
		rule("opus-4.5", "claude-opus-4.5", MatchContains, 15),
		rule("sonnet-4.5", "claude-sonnet-4.5", MatchContains, 12),
		rule("sonnet-4", "claude-sonnet-4", MatchContains, 11),
		rule("haiku", "claude-haiku-4.5", MatchContains, 10),
		rule("opus", "claude-opus-4.5", MatchContains, 5),
		rule("sonnet", "claude-sonnet-4.5", MatchContains, 5),
		rule("3.7-sonnet", "claude-3.7-sonnet", MatchContains, 15),
		rule("3-7-sonnet", "claude-3.7-sonnet", MatchContains, 15),
		rule("claude-3-5-sonnet", "claude-sonnet-4.5", MatchContains, 8),
		rule("claude-3-5-haiku", "claude-haiku-4.5", MatchContains, 8),

		// OpenAI model names land on the closest Claude tier.
		rule("gpt-4o", "claude-sonnet-4.5", MatchContains, 3),
		rule("gpt-4", "claude-sonnet-4.5", MatchContains, 2),
		rule("gpt-3.5", "claude-haiku-4.5", MatchContains, 2),
	}
}
