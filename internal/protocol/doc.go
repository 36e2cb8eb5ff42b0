// Package protocol owns the wire primitives shared by every covert channel layer.
//
// Ownership boundary:
// - payload terminator
// - batch checksum
// - derived hash byte and padding search
// - handshake signal values
package protocol
