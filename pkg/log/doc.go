/*
Package log provides structured logging for dtnd using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

dtnd's logging system provides structured JSON logging with minimal overhead:

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
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("router")                  │          │
	│  │  - WithNodeID("dtn://node1")                │          │
	│  │  - WithBundleID("dtn://node1-1-0")           │          │
	│  │  - WithLinkName("link-ltp-gw1")              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "router",                   │          │
	│  │    "time": "2026-07-31T10:30:00Z",         │          │
	│  │    "message": "bundle forwarded"            │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-31T10:30:00Z INF bundle forwarded  │          │
	│  │    component=router                          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all dtnd packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs (router, daemon, cla.ltp, cla.tcp)
  - WithNodeID: Add this node's EID to every log line
  - WithBundleID: Add a bundle's source+creation-timestamp identity
  - WithLinkName: Add a link's configured name

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "checking route table: dest=dtn://b/demux candidates=2"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "bundle forwarded: dest=dtn://b/demux link=link-ltp-gw1"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "link contact down, retrying in 4s"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "segment handling failed: unknown segment class 0x7"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "failed to open bundle store: %v"

# Usage

Initializing the Logger:

	import "github.com/cuemby/dtnd/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/dtnd.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("daemon started")
	log.Debug("checking link state")
	log.Warn("report segment retransmit limit approaching")
	log.Error("failed to open LTP listener")
	log.Fatal("cannot start without a bundle store") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("bundle_id", "dtn://a/demux-1-0").
		Str("link", "link-ltp-gw1").
		Msg("bundle queued for transmission")

	log.Logger.Error().
		Err(err).
		Str("link", "link-tcp-gw2").
		Msg("contact failed")

Component Loggers:

	// Create component-specific logger
	routerLog := log.WithComponent("router")
	routerLog.Info().Msg("route table reloaded")
	routerLog.Debug().Str("dest", "dtn://b/demux").Msg("selecting route")

	// Multiple context fields
	claLog := log.WithComponent("cla.ltp").
		With().Str("link", "link-ltp-gw1").
		Logger()
	claLog.Info().Msg("session opened")
	claLog.Error().Err(err).Msg("segment send failed")

Context Logger Helpers:

	// Node-specific logs
	nodeLog := log.WithNodeID("dtn://node1")
	nodeLog.Info().Msg("daemon ready")

	// Bundle-specific logs
	bLog := log.WithBundleID("dtn://a/demux-1-0")
	bLog.Info().Msg("bundle delivered to registration")

	// Link-specific logs
	linkLog := log.WithLinkName("link-ltp-gw1")
	linkLog.Warn().Msg("contact down, entering backoff")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/dtnd/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("dtnd starting")

		// Component-specific logging
		routerLog := log.WithComponent("router")
		routerLog.Info().
			Str("dest", "dtn://b/demux").
			Int("candidates", 2).
			Msg("resolved route")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "cla.tcp").
			Msg("dial failed")

		log.Info("dtnd stopped")
	}

# Integration Points

This package integrates with:

  - pkg/daemon: Logs dispatch decisions and per-bundle lifecycle events
  - pkg/router: Logs route resolution
  - pkg/link: Logs contact state transitions
  - pkg/ltp: Logs session open/close, retransmits, and security trailer failures
  - pkg/cla: Logs TCP connection lifecycle
  - pkg/adminapi: Logs admin RPC requests

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"daemon","time":"2026-07-31T10:30:00Z","message":"daemon ready"}
	{"level":"info","component":"router","bundle_id":"dtn://a/demux-1-0","time":"2026-07-31T10:30:01Z","message":"bundle forwarded"}
	{"level":"error","component":"cla.ltp","link":"link-ltp-gw1","error":"segment decode failed","time":"2026-07-31T10:30:02Z","message":"inbound datagram dropped"}

Console Format (Development):

	2026-07-31T10:30:00Z INF daemon ready component=daemon
	2026-07-31T10:30:01Z INF bundle forwarded bundle_id=dtn://a/demux-1-0 component=router
	2026-07-31T10:30:02Z ERR inbound datagram dropped error="segment decode failed" component=cla.ltp link=link-ltp-gw1

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Records the error text in its own "error" field
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Security

Log Content:
  - Never log LTP trailer keys or session authentication material
  - Redact tokens and admin-channel credentials
  - Review logs before sharing externally

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate EIDs or bundle payload bytes into log messages
  - Use typed fields (.Str, .Int) for values parsed from the wire

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() so the error text gets its own field
  - Include context (node EID, bundle ID, link name)

Don't:
  - Log payload bytes or security keys
  - Use Debug level in production
  - Log in tight loops (one log line per segment would swamp output)
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
