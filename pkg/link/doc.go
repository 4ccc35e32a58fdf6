// Package link runs envelopes over a byte stream.
//
// A Link owns the delimiter-scanning frame reader, the mutex-guarded frame
// writer, the envelope builder and parser and the version negotiator for
// one open port. Malformed input never surfaces as an error from Receive:
// every discarded frame is classified, counted in Counters and captured
// to the protocol logger, and the reader resynchronizes at the next
// delimiter.
package link
