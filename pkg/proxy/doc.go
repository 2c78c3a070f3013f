// Package proxy holds the HTTP plumbing shared by the public handlers and
// middleware: body reading with a size cap, gateway key extraction, and
// error envelopes in the caller's protocol.
//
// A failure is always answered in the envelope of the endpoint that was
// called. /v1/messages answers Anthropic errors and every other path answers
// OpenAI errors:
//
//	proxy.HandleError(w, r, proxy.ProtocolForPath(r.URL.Path), err)
//
// Streaming responses are written through a FlushWriter, which sends the
// SSE headers with the first frame. Until then a handler may still answer
// with an error status.
package proxy
