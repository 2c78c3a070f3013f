// Package translate converts between the public chat protocols and the
// upstream conversation payload.
//
// Requests flow one way: TranslateOpenAI and TranslateAnthropic split the
// caller's message list into history turns and a current turn, flatten the
// system prompt into a leading user/assistant exchange, sanitize tool names
// and return a Translation holding the payload and the ToolNames map needed
// to restore names on the way back.
//
// Responses flow the other way. A Responder consumes eventstream.Events in
// order: the streaming responders write Server-Sent Events as they go, the
// collectors buffer everything and build a single response on Complete.
// When thinking mode is on, Text events pass through a thinking.Extractor
// and reasoning is surfaced as a separate block or field. Usage is taken
// from the upstream when reported and otherwise estimated from the context
// usage percentage.
package translate
