// Package gateway drives a single public chat request through the upstream.
//
// A request goes through these steps in order:
//
//  1. Resolve the model.
//  2. Translate the request.
//  3. Select an account and obtain its bearer token.
//  4. Call the upstream and feed the decoded events to a translate.Responder.
//  5. Report the outcome to the account pool and the audit recorder.
//
// Prepare performs steps 1 to 3. Complete and Stream perform steps 4 and 5,
// buffering or streaming respectively. Every path ends in a single outcome
// report, including requests whose client disconnected mid-stream.
//
// Errors from every layer are mapped onto a small set of kinds by Classify so
// handlers can render them in the caller's protocol envelope:
//
//	err := gw.Stream(ctx, call, stream)
//	if e := gateway.Classify(err); e != nil && !e.Delivered {
//		writeError(w, e)
//	}
package gateway
