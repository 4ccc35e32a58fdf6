// Package failsafe implements the device's link-loss watchdog.
//
// The motion controller must not keep driving the base on stale velocity
// targets when the host stops talking. The watchdog tracks how long the
// link has been silent and trips once the silence exceeds the timeout.
//
// # States
//
//   - IDLE: no host traffic seen yet; the watchdog cannot trip
//   - NORMAL: host traffic within the timeout
//   - FAILSAFE: the host went silent; motion is stopped
//
// Any host traffic returns the watchdog to NORMAL. Time is the device
// clock in microseconds, so the watchdog can be driven from the tick task
// without timers of its own.
package failsafe
