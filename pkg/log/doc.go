/*
Package log provides structured logging for moldb using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
collection- and operation-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and support
filtering by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("query")                   │          │
	│  │  - WithCollection("users")                  │          │
	│  │  - WithOp("insert_one")                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"info","collection":"users",      │          │
	│  │   "op":"insert_one","message":"inserted"}   │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	import "github.com/cuemby/moldb/pkg/log"

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	log.Info("database opened")

	collLog := log.WithCollection("users")
	collLog.Info().Msg("collection created")

	opLog := log.WithOp("update_one")
	opLog.Error().Err(err).Msg("update failed")

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create collection- or op-scoped loggers for CLI and server commands
  - Log errors with .Err() for stack traces

Don't:
  - Log document contents (may contain user data)
  - Use Debug level in production
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
