// Package tcpip decodes captured IPv4/TCP frames into normalized Unit
// records. It understands the link layers a packet-capture library typically
// hands back (Null/Loopback, Ethernet with optional 802.1Q tags, Linux SLL),
// validates IP and TCP checksums, and parses the TCP options this tool
// cares about: MSS, window scale, and SACK blocks.
package tcpip

import "errors"

// Decode errors are all recoverable at the driver level: the caller should
// skip the packet and continue.
var (
	ErrTruncated         = errors.New("tcpip: truncated frame")
	ErrNotIPv4           = errors.New("tcpip: not an IPv4 packet")
	ErrNotTCP            = errors.New("tcpip: not a TCP segment")
	ErrBadIPChecksum     = errors.New("tcpip: bad IP header checksum")
	ErrBadTCPChecksum    = errors.New("tcpip: bad TCP checksum")
	ErrBadOptionLength   = errors.New("tcpip: bad TCP option length")
	ErrTooManySackBlocks = errors.New("tcpip: too many SACK blocks")
)
