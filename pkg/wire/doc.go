// Package wire defines the envelope format and packet types of the device link.
//
// An envelope is the structured content of one codec frame. Two layouts
// exist and exactly one is active per link at any time:
//
//	V1: type u8 | sequence u8                         | data | crc16 LE
//	V2: type u8 | sequence u32 LE | source_time_us u64 LE | data | crc16 LE
//
// Links start in V1. Either side may ask for a switch with VERSION_SWITCH;
// the requester keeps its old layout until the peer's VERSION_ACK arrives
// (see Negotiator).
//
// # Packet Types
//
// The type byte space is partitioned by direction and subsystem:
//
//	0x00-0x0F  shared control     (host -> device)
//	0x80-0x8F  shared telemetry   (device -> host)
//	0x20-0x2F  display commands   0x90-0x9F display telemetry
//	0x30-0x3F  motion commands    0xA0-0xAF motion telemetry
//
// A subsystem's telemetry range is its command range plus 0x70.
//
// Sequence numbers are per sender and only serve freshness, ordering and
// causality. Wraparound (u8 in V1, u32 in V2) is not detected.
package wire
