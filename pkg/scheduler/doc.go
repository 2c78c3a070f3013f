// Package scheduler runs the gateway's housekeeping on cron schedules:
// audit retention, model catalogue refresh and rate limiter cleanup.
//
//	s := scheduler.New(logger)
//	_ = s.Add(scheduler.RetentionJob(pruner, cfg.Audit.Retention.Schedule, logger))
//	s.Start(ctx)
//	defer s.Stop()
package scheduler
