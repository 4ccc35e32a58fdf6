// Package clocksync estimates a device clock's offset and drift relative
// to the host clock from timestamped round trips.
//
// The host sends TIME_SYNC_REQUEST with a ping id; the device echoes it in a
// V2 envelope whose source_time_us carries the device clock. For each
// round trip:
//
//	rtt    = host_receive - host_send
//	offset = device_time - (host_send + rtt/2)
//
// The midpoint assumption is tightest for the fastest round trip, so only
// the minimum-RTT sample of a rolling window sets the published offset.
// Ties go to the newest sample. Drift is the least-squares slope of successive minimum-RTT offsets.
//
// # States
//
//	UNSYNCED ──first sample──▶ CONVERGING ──offsets agree──▶ SYNCED
//	                               ▲                           │
//	                               └──next sample── DEGRADED ◀─┘ stale
//
// DEGRADED keeps the last offset; timestamps stay convertible but the
// host should treat them as approximate. All thresholds come from Config.
package clocksync
