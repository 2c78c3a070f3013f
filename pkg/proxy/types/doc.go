// Package types defines the public wire types the gateway serves that are
// not covered by the go-openai package: Anthropic Messages responses, model
// listings, and the error envelopes of both protocols.
//
// OpenAI chat requests and responses use github.com/sashabaranov/go-openai
// directly; ValidateChatRequest checks the fields the gateway relies on.
//
// Error envelopes:
//
//	OpenAI:    {"error":{"message":"...","type":"...","code":"..."}}
//	Anthropic: {"type":"error","error":{"type":"...","message":"..."}}
//
// Both are chosen from the HTTP status the gateway answers with, so a given
// failure maps onto the native error type of whichever protocol the caller
// used.
package types
