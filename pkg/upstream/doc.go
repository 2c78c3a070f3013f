// Package upstream calls the Kiro streaming chat endpoint and its REST helpers.
//
// Client.CallStream posts a translated payload to each configured endpoint in
// order. Authentication failures abort at once. A 429 moves to the next
// endpoint without waiting, and only the last endpoint retries it with
// exponential backoff. Server errors and transport failures are retried with
// the same backoff. A 200 response body is fed to an eventstream.Decoder in
// fixed-size reads and every decoded event is passed to the caller in order.
package upstream
