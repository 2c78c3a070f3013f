package thinking

import "strings"

const (
	// OpenTag starts a reasoning block. Matching is ASCII case-insensitive.
	OpenTag = "<thinking>"

	// CloseTag ends a reasoning block. Matching is ASCII case-insensitive.
	CloseTag = "</thinking>"
)

// Result holds the text released by a single Feed or Finish call.
// Either field may be empty.
type Result struct {
	// Reasoning is text that appeared inside a thinking block.
	Reasoning string

	// Visible is text that appeared outside any thinking block.
	Visible string
}

// Empty reports whether the result carries no text at all.
func (r Result) Empty() bool {
	return r.Reasoning == "" && r.Visible == ""
}

func (r *Result) add(inThinking bool, text string) {
	if text == "" {
		return
	}
	if inThinking {
		r.Reasoning += text
	} else {
		r.Visible += text
	}
}

// Extractor is an incremental scanner for thinking tags. It is not safe for
// concurrent use; each response stream owns its own Extractor.
type Extractor struct {
	inThinking bool
	pending    string

	reasoning strings.Builder
	visible   strings.Builder
}

// NewExtractor returns an Extractor positioned outside any thinking block.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Feed consumes the next fragment and returns whatever text can be safely
// attributed. A trailing fragment that could still turn into a tag is held
// back until the next call.
func (e *Extractor) Feed(fragment string) Result {
	var res Result
	if fragment == "" {
		return res
	}

	buf := e.pending + fragment
	e.pending = ""

	for buf != "" {
		tag := OpenTag
		if e.inThinking {
			tag = CloseTag
		}

		if idx := indexFold(buf, tag); idx >= 0 {
			res.add(e.inThinking, buf[:idx])
			e.inThinking = !e.inThinking
			buf = buf[idx+len(tag):]
			continue
		}

		safe := safeEnd(buf, tag)
		res.add(e.inThinking, buf[:safe])
		e.pending = buf[safe:]
		break
	}

	e.reasoning.WriteString(res.Reasoning)
	e.visible.WriteString(res.Visible)
	return res
}

// Finish flushes any withheld text under the current mode.
func (e *Extractor) Finish() Result {
	var res Result
	res.add(e.inThinking, e.pending)
	e.pending = ""

	e.reasoning.WriteString(res.Reasoning)
	e.visible.WriteString(res.Visible)
	return res
}

// InThinking reports whether the scanner is currently inside a thinking block.
func (e *Extractor) InThinking() bool {
	return e.inThinking
}

// Reasoning returns all reasoning text released so far.
func (e *Extractor) Reasoning() string {
	return e.reasoning.String()
}

// Visible returns all visible text released so far.
func (e *Extractor) Visible() string {
	return e.visible.String()
}

// Reset returns the extractor to its initial state.
func (e *Extractor) Reset() {
	e.inThinking = false
	e.pending = ""
	e.reasoning.Reset()
	e.visible.Reset()
}

// safeEnd returns the length of the prefix of s that cannot be the start of
// tag. The remaining suffix is a (case-insensitive) proper prefix of tag.
func safeEnd(s, tag string) int {
	n := min(len(s), len(tag)-1)
	for l := n; l >= 1; l-- {
		if equalFold(s[len(s)-l:], tag[:l]) {
			return len(s) - l
		}
	}
	return len(s)
}

// indexFold is strings.Index with ASCII case folding. Byte offsets in s are
// preserved, which strings.ToLower does not guarantee for non-ASCII input.
func indexFold(s, tag string) int {
	for i := 0; i+len(tag) <= len(s); i++ {
		if equalFold(s[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
