// Package handlers provides the HTTP handlers of the gateway.
//
// Public endpoints:
//   - POST /v1/chat/completions: OpenAI chat completions, streamed or buffered
//   - POST /v1/messages: Anthropic messages, streamed or buffered
//   - GET /v1/models: the enabled model catalogue in the OpenAI list format
//
// Each chat request follows the same path:
//
//  1. Read the body under the configured size limit
//  2. Parse and validate it for the endpoint's protocol
//  3. Attach request metadata (request ID, client IP, API key)
//  4. Prepare the upstream call: resolve the model, pick an account
//  5. Stream events to the client as SSE, or collect them into one body
//
// Errors raised before the first SSE byte is written use the endpoint's
// JSON error envelope. Later errors are reported inside the stream by the
// translator.
//
// The admin surface (AdminHandler.Routes) manages accounts, API keys and the
// model catalogue, reports pool statistics, queries the request log and
// serves a websocket feed of live traces at /admin/live.
package handlers
