// Package host is the host side of a link.
//
// A Client sends commands with monotonically increasing sequence numbers,
// negotiates the V2 envelope, runs the clock sync round trips that feed a
// clocksync.Estimator and dispatches telemetry to a Handler. Heartbeats are
// correlated with sent commands to break end-to-end latency down into
// send-to-apply and apply-to-report.
package host
