// Package device is the device side of a link.
//
// A Runtime runs three tasks over one link.Link:
//
//   - receive: parses incoming envelopes and hands commands off without
//     waiting for anyone (latched channels, gesture queue), answers
//     TIME_SYNC_REQUEST immediately and handles version switches.
//   - tick: at a fixed rate, polls every latched channel and drains the
//     gesture queue into the Consumer, recording what was applied.
//   - telemetry: at a lower rate, sends HEARTBEAT with the last applied
//     sequence, claimed touch and button samples, the TelemetrySource's
//     status payloads and periodically LINK_STATS.
//
// Frame errors never stop the runtime; only a transport failure or context
// cancellation does.
package device
