// Package logging builds the process slog handler.
//
// # Overview
//
// The gateway logs through log/slog everywhere. This package turns the
// telemetry.logging configuration into a handler:
//   - json and text use the standard slog handlers
//   - console uses github.com/charmbracelet/log for colored terminal output
//
// Every format is wrapped in a handler that
//   - masks attribute values whose key names a secret (tokens, client
//     secrets, authorization headers, API keys)
//   - masks "Bearer <token>" substrings in any string value
//   - adds request_id, trace_id and span_id from the context
//
// The level is held in a slog.LevelVar so it can change at runtime when the
// configuration file is reloaded.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	if err != nil {
//		return err
//	}
//	slog.SetDefault(logger.Logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "request completed", "access_token", tok) // request_id added, token masked
package logging
