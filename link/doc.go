// Package link implements a point-to-point, HDLC-derived data link protocol
// with stop-and-wait ARQ over a character-oriented byte stream such as a
// serial line.
//
// # Protocol Overview
//
// Exactly two peers take part: a Transmitter, which sends information
// frames, and a Receiver, which acknowledges them. Every frame is delimited
// by FLAG (0x7E):
//
//	Supervisory: FLAG | A | C | A^C | FLAG
//	Information: FLAG | A | I(Ns) | A^C | stuff(data ++ BCC2) | FLAG
//
// A is 0x03 for commands from the Transmitter and replies from the Receiver,
// 0x01 for commands from the Receiver and replies from the Transmitter.
// BCC2 is the XOR of all data bytes. Inside the stuffed region 0x7E is sent
// as 0x7D 0x5E and 0x7D as 0x7D 0x5D.
//
// Control bytes:
//
//   - SET (0x03), UA (0x07), DISC (0x0B)
//   - I(0) (0x00), I(1) (0x40)
//   - RR(0) (0x05), RR(1) (0x85): frame accepted, the number is the next expected
//   - REJ(0) (0x01), REJ(1) (0x81): frame damaged, resend
//
// # Session Lifecycle
//
//	Transmitter                 Receiver
//	SET            ------->
//	               <-------     UA
//	I(0) "AB"      ------->
//	               <-------     RR(1)
//	I(1) "CD"      ------->
//	               <-------     RR(0)
//	DISC           ------->
//	               <-------     DISC
//	UA             ------->
//
// [Open] runs the open handshake, [Session.Send] and [Session.Receive]
// exchange payloads, and [Session.Close] runs the close handshake.
//
// # Timeouts
//
// The Transmitter arms one timeout per transmission and resends the frame
// when it expires, or immediately on REJ, up to MaxRetransmissions resends.
// Timeouts are deadline checks against the configured [Clock] made on every
// read iteration, so a fake clock makes them deterministic in tests. The
// Receiver has no timer of its own outside the close handshake.
package link
