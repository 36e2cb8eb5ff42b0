// Package session runs the handshake protocol over a virtual channel.
//
// A session joins the medium with Connect (active side) or WaitForConnection
// (passive side), which agree on one position and therefore on one channel.
// Afterwards the two endpoints alternate Write and Read calls. Each batch goes
// through CLEAR -> DONE -> ACK|NACK on the channel's sync object, and a NACK
// is answered with a byte-identical resend.
//
// A Conn is not safe for concurrent Read and Write calls; the protocol is
// half-duplex.
package session
