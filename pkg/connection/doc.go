// Package connection keeps the host's link open.
//
// The device cannot dial out over a serial line, so the host owns
// reconnection. A Manager opens the port, runs a session over it until the
// session ends, then reopens with exponential backoff:
//
//  1. Initial delay: 250 ms
//  2. Exponential increase: 500 ms, 1 s, 2 s, 4 s
//  3. Maximum delay: 5 seconds, repeated until the port opens
//  4. Reset to the initial delay once a session has run
//
// Each delay gets up to 25% random jitter so a host restarting several
// links does not hammer a USB hub in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
