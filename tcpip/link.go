package tcpip

import (
	"encoding/binary"
	"log"
	"os"

	"github.com/google/gopacket/layers"
)

var linkLog = log.New(os.Stderr, "tcpip: ", log.LstdFlags)

const (
	etherTypeOffset = 12
	etherHeaderLen  = 14
	vlanTPID        = 0x8100
	etherTypeIPv4   = 0x0800

	loopbackHeaderLen = 4
	ipv4Family1       = 0x02000000
	ipv4Family2       = 0x00000002

	linuxSLLProtoOffset = 14
	linuxSLLHeaderLen   = 16
)

// stripLinkLayer returns the offset into data at which the IPv4 header
// begins, given the capture's link type. Unknown link types fall back to
// Ethernet, matching the historical behavior this tool preserves for trace
// compatibility (see original_source/eva/Unit.cc's unpack()).
func stripLinkLayer(linkType layers.LinkType, data []byte) (int, error) {
	switch linkType {
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		return stripLoopback(data)
	case layers.LinkTypeEthernet, layers.LinkTypeIEEE802:
		return stripEthernet(data)
	case layers.LinkTypeLinuxSLL:
		return stripLinuxSLL(data)
	default:
		linkLog.Printf("unknown link type %v, interpreting as Ethernet", linkType)
		return stripEthernet(data)
	}
}

func stripLoopback(data []byte) (int, error) {
	if len(data) < loopbackHeaderLen {
		return 0, ErrTruncated
	}
	family := binary.BigEndian.Uint32(data[:4])
	if family == ipv4Family1 || family == ipv4Family2 {
		return loopbackHeaderLen, nil
	}
	// Also accept native byte order, since loopback frames on some
	// platforms are not big-endian tagged.
	familyLE := binary.LittleEndian.Uint32(data[:4])
	if familyLE == ipv4Family1 || familyLE == ipv4Family2 {
		return loopbackHeaderLen, nil
	}
	return 0, ErrNotIPv4
}

func stripEthernet(data []byte) (int, error) {
	hdrOffset := etherHeaderLen
	typeOffset := etherTypeOffset
	if len(data) < hdrOffset {
		return 0, ErrTruncated
	}
	for binary.BigEndian.Uint16(data[typeOffset:typeOffset+2]) == vlanTPID {
		typeOffset += 4
		hdrOffset += 4
		if len(data) < hdrOffset {
			return 0, ErrTruncated
		}
		// hdrOffset now covers bytes up to typeOffset+2, so the next loop
		// condition's read is in bounds.
	}
	if binary.BigEndian.Uint16(data[typeOffset:typeOffset+2]) == etherTypeIPv4 {
		return hdrOffset, nil
	}
	return 0, ErrNotIPv4
}

func stripLinuxSLL(data []byte) (int, error) {
	if len(data) < linuxSLLHeaderLen {
		return 0, ErrTruncated
	}
	if binary.BigEndian.Uint16(data[linuxSLLProtoOffset:linuxSLLProtoOffset+2]) == etherTypeIPv4 {
		return linuxSLLHeaderLen, nil
	}
	return 0, ErrNotIPv4
}
