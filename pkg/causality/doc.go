// Package causality ties host commands to their application on the device.
//
// On the device, Tracker records the sequence number of the last applied
// continuous command and the local time it was applied; HEARTBEAT carries
// both. On the host, Correlator remembers when each command was sent and,
// given a heartbeat and the clock estimate, splits end-to-end latency into
// the part before application (link, receive queue, tick wait) and the part
// after (telemetry period, return link).
package causality
