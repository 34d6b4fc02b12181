package tcpip

import "encoding/binary"

// checksum16 computes the 16-bit ones'-complement sum (RFC 1071) of data,
// folded but not complemented. The checksum field on the wire carries the
// complement of this value, so data that includes a correct checksum field
// sums to 0xffff.
//
// Grounded on original_source/eva/checksum.cc's checksum().
func checksum16(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for n >= 2 {
		sum += uint32(data[0])<<8 | uint32(data[1])
		data = data[2:]
		n -= 2
	}
	if n == 1 {
		sum += uint32(data[0]) << 8
	}
	sum = (sum >> 16) + (sum & 0xffff)
	sum += sum >> 16
	return uint16(sum)
}

// ipChecksumValid accepts both 0 and 0xFFFF as valid — a non-standard but
// historically preserved rule for trace compatibility (spec.md §9(b)).
func ipChecksumValid(header []byte) bool {
	sum := checksum16(header)
	return sum == 0 || sum == 0xffff
}

// tcpChecksumValid validates the TCP checksum over the pseudo-header plus
// the TCP segment. Fragmented segments bypass validation and are treated as
// valid, since the full segment (and therefore its checksum) is only
// available after reassembly, which this tool does not perform.
func tcpChecksumValid(srcIP, dstIP [4]byte, fragmented bool, tcpSegment []byte) bool {
	if fragmented {
		return true
	}

	pseudo := make([]byte, 12+len(tcpSegment))
	copy(pseudo[0:4], srcIP[:])
	copy(pseudo[4:8], dstIP[:])
	pseudo[8] = 0
	pseudo[9] = protocolTCP
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(tcpSegment)))
	copy(pseudo[12:], tcpSegment)

	return checksum16(pseudo) == 0xffff
}
