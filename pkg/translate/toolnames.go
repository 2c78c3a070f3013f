package translate

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// ToolNames maps caller tool names to upstream-safe names and back.
// Upstream names match [A-Za-z0-9_]+ and never start with a digit.
type ToolNames struct {
	forward map[string]string
	used    map[string]bool
}

// NewToolNames returns an empty mapping.
func NewToolNames() *ToolNames {
	return &ToolNames{forward: make(map[string]string), used: make(map[string]bool)}
}

// Register returns the upstream name for original, allocating one on first use.
// Colliding sanitized names get a _2, _3, ... suffix.
func (t *ToolNames) Register(original string) string {
	if name, ok := t.forward[original]; ok {
		return name
	}
	base := SanitizeToolName(original)
	name := base
	for i := 2; t.used[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	t.used[name] = true
	t.forward[original] = name
	return name
}

// Upstream returns the registered upstream name for original.
func (t *ToolNames) Upstream(original string) (string, bool) {
	name, ok := t.forward[original]
	return name, ok
}

// Reverse returns the upstream-to-original lookup table.
func (t *ToolNames) Reverse() map[string]string {
	return lo.Invert(t.forward)
}

// Len returns the number of registered names.
func (t *ToolNames) Len() int {
	return len(t.forward)
}

// SanitizeToolName rewrites name into the upstream alphabet.
func SanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok || r == '_' {
			if !lastUnderscore {
				b.WriteByte('_')
			}
			lastUnderscore = true
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "tool"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "t_" + out
	}
	return out
}

// restoreName maps an upstream tool name back to what the caller sent.
func restoreName(reverse map[string]string, name string) string {
	if orig, ok := reverse[name]; ok {
		return orig
	}
	return name
}
