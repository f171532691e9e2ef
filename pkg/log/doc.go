/*
Package log provides Meridian's structured logging: a single global
zerolog.Logger, initialized once via Init, with helpers for the
component, node, shard, and allocation-id fields every write-path and
recovery log line tags itself with.

Config.JSONOutput = true selects JSON output (the shape a log aggregator
expects in production); false, the zero value, gives zerolog's console
writer for local development. Log level is a single global knob, matching
how the rest of the ambient stack treats cross-cutting configuration —
there is no per-package level override.

Call patterns:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("replication").With().Logger()
	logger = log.WithShard("docs", 3)
	logger.Warn().Err(err).Msg("replica failed to apply operation")
*/
package log
