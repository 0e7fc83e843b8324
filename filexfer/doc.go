// Package filexfer transfers a single file over a link session.
//
// A transfer is a start packet, any number of data packets and an end packet:
//
//	start/end: C(0x02|0x03) | T=0 L size | T=1 L name
//	data:      C(0x01) | N | L2 | L1 | data   (len = 256*L2 + L1, N mod 256)
//
// The end packet repeats the start TLVs. The receiver checks the data
// sequence numbers, that the end packet matches the start packet and that
// the announced size was received exactly.
package filexfer
