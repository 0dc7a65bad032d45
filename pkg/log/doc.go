/*
Package log provides structured logging for NyaruDB2 using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init() (optional)    │          │
	│  │  - Usable default if Init is never called   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("shard")                   │          │
	│  │  - WithComponent("compaction")               │          │
	│  │  - WithCollection("Users")                  │          │
	│  │  - WithShard("Users", "30")                 │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	shardLog := log.WithShard("Users", "30")
	shardLog.Info().Int("documents", 42).Msg("shard compacted")

	compactionLog := log.WithComponent("compaction")
	compactionLog.Warn().Err(err).Msg("shard merge skipped")

# Integration Points

  - pkg/shard: per-shard and compaction-cycle logging
  - pkg/engine: collection lifecycle and stats-poller logging

pkg/index and pkg/query do not log.

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
