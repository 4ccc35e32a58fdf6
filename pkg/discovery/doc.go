// Package discovery advertises and finds TCP bench bridges over mDNS.
//
// A bench bridge exposes a device link on a TCP port (the device
// simulator, or a serial-to-TCP bridge on a bench rig). Bridges register
// as _devlink._tcp with TXT records describing the device; the host can
// browse for them instead of being given a tcp:// address.
//
// TXT records:
//
//	id=<device id>      required
//	sub=<subsystems>    display,motion
//	ver=<max version>   highest envelope version supported
//	name=<label>        optional
package discovery
