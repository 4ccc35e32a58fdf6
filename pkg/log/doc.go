// Package log provides structured protocol capture for the device link.
//
// This package defines the Logger interface and Event types for recording
// what crossed the link at each layer (codec, envelope, link, clock sync).
// It is separate from operational logging (slog): protocol capture is a
// machine-readable trace for debugging lag, corruption and sync problems
// after the fact.
//
// # Basic Usage
//
//	// Development: events on the console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Bench runs: binary capture file
//	logger, _ := log.NewFileLogger("/var/log/devlink/host.dlog")
//
//	// Both
//	logger := log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Codec: raw frame bytes (FrameEvent)
//   - Envelope: decoded headers (EnvelopeEvent)
//   - Link: version negotiation and connection state (StateChangeEvent)
//   - Sync: clock sync samples and state (ClockSyncEvent)
//
// Frame-level errors at any layer are captured as ErrorEventData.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys,
// conventionally named *.dlog. The devlink-log command views, filters and
// summarizes them.
package log
