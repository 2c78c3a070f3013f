package translate

import (
	"math"
	"unicode/utf8"

	"kiro-hq/gateway/pkg/eventstream"
)

// UsageTracker accumulates token and credit reports for one response.
//
// The first explicit Usage event wins and later ones are ignored. When none
// arrives, the counts are estimated at Totals time from the last
// ContextUsage percentage:
// output = max(1, chars/4), total = round(percent/100 * maxTokens),
// input = max(0, total - output).
type UsageTracker struct {
	maxTokens   int
	outputChars int

	reported     bool
	inputTokens  int
	outputTokens int

	contextPercent float64
	credits        float64
}

// NewUsageTracker creates a tracker bounded by the model's context size.
func NewUsageTracker(maxTokens int) *UsageTracker {
	return &UsageTracker{maxTokens: maxTokens}
}

// Observe records usage, context and credit events. Other kinds are ignored.
func (u *UsageTracker) Observe(ev eventstream.Event) {
	switch ev.Kind {
	case eventstream.KindUsage:
		if u.reported {
			return
		}
		u.reported = true
		u.inputTokens = ev.InputTokens
		u.outputTokens = ev.OutputTokens
	case eventstream.KindContextUsage:
		u.contextPercent = ev.Percent
	case eventstream.KindCredits:
		u.credits += ev.Credits
	}
}

// AddOutput counts generated text (visible or reasoning) for estimation.
func (u *UsageTracker) AddOutput(s string) {
	u.outputChars += utf8.RuneCountInString(s)
}

// Totals returns input and output token counts.
func (u *UsageTracker) Totals() (input, output int) {
	if u.reported {
		return u.inputTokens, u.outputTokens
	}
	if u.contextPercent <= 0 {
		return 0, 0
	}
	output = max(1, u.outputChars/4)
	total := int(math.Round(u.contextPercent / 100 * float64(u.maxTokens)))
	input = max(0, total-output)
	return input, output
}

// Credits returns the summed credit charges.
func (u *UsageTracker) Credits() float64 {
	return u.credits
}

// Estimated reports whether Totals is derived from the context percentage.
func (u *UsageTracker) Estimated() bool {
	return !u.reported && u.contextPercent > 0
}
