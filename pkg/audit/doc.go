// Package audit records the outcome of every gateway request.
//
// A Trace captures what was asked (protocol, requested and resolved model,
// truncated request bodies), who served it (account, upstream endpoint and
// status) and what it cost (tokens, credits, latency). Traces are handed to
// a Recorder, which queues them and writes them to a Store on a background
// goroutine so the request path never waits on the database.
//
// # Basic Usage
//
//	rec := audit.NewRecorder(store, audit.DefaultConfig())
//	defer rec.Close()
//
//	rec.Record(&audit.Trace{ID: traceID, Protocol: "openai", Status: 200})
//
// Subscribers receive every written trace, which backs the admin live feed:
//
//	ch, cancel := rec.Subscribe(64)
//	defer cancel()
//	for t := range ch {
//	    fmt.Println(t.ID, t.Status)
//	}
//
// # Retention
//
// Pruner keeps the request log and the trace bodies under configured row
// counts. It is run from the scheduler package.
package audit
