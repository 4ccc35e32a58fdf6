// Package handoff moves data between the link's receive path, the
// fixed-rate real-time consumer and the telemetry task without making
// either side wait for the other.
//
// Three primitives cover the three traffic shapes:
//
//   - Latched: continuous commands (state, mode, talking, flags, motion).
//     Only the latest value matters; intermediate values are disposable.
//     Last write wins, and a consumer never sees fields from two writes.
//   - Queue: one-shot events (gestures). Bounded FIFO; every accepted
//     event is delivered once, in order. When full the newest push is
//     rejected with ErrQueueFull and counted.
//   - Mailbox: device-to-host samples (touch, buttons). One slot the
//     producer always overwrites; the consumer claims a sample exactly once.
//
// Latched and Mailbox assume one producer and one consumer. Queue tolerates
// any number of either but is designed for one of each running at
// different rates.
package handoff
