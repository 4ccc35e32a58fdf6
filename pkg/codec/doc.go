// Package codec implements the byte-level framing of the device link.
//
// Every frame on the wire is a payload run through Consistent Overhead Byte
// Stuffing (COBS) followed by a single zero delimiter. After stuffing, the
// delimiter never occurs inside a frame, so a receiver that loses sync simply
// discards bytes until the next zero and starts over.
//
//	┌──────────────────────────────────────────────┐
//	│ envelope header │ data │ CRC-16 (LE)          │  payload
//	├──────────────────────────────────────────────┤
//	│ COBS(payload)                         │ 0x00 │  frame
//	└──────────────────────────────────────────────┘
//
// Integrity is a CRC-16/CCITT (polynomial 0x1021, initial value 0xFFFF)
// appended little-endian to the payload before stuffing.
//
// The codec never retries. Structurally invalid stuffing yields ErrFrame,
// a mismatching checksum yields ErrChecksum; callers count and discard.
package codec
