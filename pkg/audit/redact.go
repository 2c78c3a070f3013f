package audit

import (
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RedactAPIKey shows only the first and last 4 characters of a key.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) < 12 {
		return "****"
	}
	return apiKey[:4] + "***" + apiKey[len(apiKey)-4:]
}

// TruncateString cuts s to at most maxLen bytes on a rune boundary and
// appends "..." when anything was removed.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:runeBoundary(s, maxLen)]
	}
	return s[:runeBoundary(s, maxLen-3)] + "..."
}

func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// truncatedPaths are the conversation arrays trimmed from the front, oldest
// entry first, when a JSON body is too long.
var truncatedPaths = []struct {
	array string
	keep  int64
}{
	{"messages", 1},
	{"conversationState.history", 0},
}

// TruncateJSON shortens a JSON body to at most maxLen bytes. Whole
// conversation entries are removed from the front, keeping the newest, and a
// "_truncated" field counts what was removed. Bodies that are still too long,
// or that are not JSON, fall back to TruncateString.
func TruncateJSON(body string, maxLen int) string {
	if maxLen <= 0 || len(body) <= maxLen {
		return body
	}
	if !gjson.Valid(body) || !gjson.Parse(body).IsObject() {
		return TruncateString(body, maxLen)
	}

	out := body
	dropped := 0
	for _, p := range truncatedPaths {
		for len(out) > maxLen && gjson.Get(out, p.array+".#").Int() > p.keep {
			next, err := sjson.Delete(out, p.array+".0")
			if err != nil {
				break
			}
			out = next
			dropped++
		}
	}
	if dropped > 0 {
		if marked, err := sjson.Set(out, "_truncated", dropped); err == nil {
			out = marked
		}
	}
	return TruncateString(out, maxLen)
}
