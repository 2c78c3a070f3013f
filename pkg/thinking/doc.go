// Package thinking splits a streamed text response into reasoning and
// visible parts based on embedded <thinking>...</thinking> tags.
//
// The upstream has no native reasoning channel for every model, so when a
// caller asks for thinking mode the gateway prompts the model to wrap its
// reasoning in tags and then separates it again on the way out. The
// Extractor is incremental: tags may be split across arbitrary chunk
// boundaries and are still recognized.
//
// Example:
//
//	ex := thinking.NewExtractor()
//	for _, chunk := range chunks {
//		r := ex.Feed(chunk)
//		emit(r.Reasoning, r.Visible)
//	}
//	r := ex.Finish()
//	emit(r.Reasoning, r.Visible)
package thinking
