package tcpip

import (
	"encoding/binary"
	"net"
	"unsafe"
)

// ipv4Header overlays the fixed 20-byte portion of an IPv4 header. Options,
// if present, follow it and are skipped — this tool never inspects IP
// options.
//
// Grounded on m-lab/etl/tcpip.IPv4Header's unsafe-pointer-overlay technique.
type ipv4Header struct {
	versionIHL      uint8
	tos             uint8
	totalLength     [2]byte
	id              [2]byte
	flagsFragOffset [2]byte
	ttl             uint8
	protocol        uint8
	checksum        [2]byte
	srcIP           [4]byte
	dstIP           [4]byte
}

const ipv4HeaderSize = int(unsafe.Sizeof(ipv4Header{}))
const protocolTCP = 6

func (h *ipv4Header) version() uint8 { return h.versionIHL >> 4 }
func (h *ipv4Header) ihl() int       { return int(h.versionIHL&0x0f) * 4 }

// fragmented reports whether the MF flag or a nonzero 13-bit fragment
// offset is set, ignoring the DF and reserved bits.
func (h *ipv4Header) fragmented() bool {
	raw := binary.BigEndian.Uint16(h.flagsFragOffset[:])
	return raw&0x3fff != 0
}

// parsedIPv4 holds the output of parsing the IPv4 layer.
type parsedIPv4 struct {
	srcIP     net.IP
	dstIP     net.IP
	headerLen int
	tcpLen    int // total_length - headerLen, the declared TCP span

	isFragmented bool
}

// fragmented reports whether the parsed header had MF or a fragment offset set.
func (p parsedIPv4) fragmented() bool { return p.isFragmented }

// parseIPv4 validates and parses an IPv4 header at the start of data,
// returning the declared TCP span length (not however much of data remains,
// since Ethernet padding can extend past the IP total length).
func parseIPv4(data []byte) (parsedIPv4, error) {
	if len(data) < ipv4HeaderSize {
		return parsedIPv4{}, ErrTruncated
	}
	h := (*ipv4Header)(unsafe.Pointer(&data[0]))

	if h.version() != 4 {
		return parsedIPv4{}, ErrNotIPv4
	}

	hdrLen := h.ihl()
	if hdrLen < 20 || len(data) < hdrLen {
		return parsedIPv4{}, ErrTruncated
	}

	totalLength := int(binary.BigEndian.Uint16(h.totalLength[:]))
	if totalLength > len(data) || totalLength < hdrLen {
		return parsedIPv4{}, ErrTruncated
	}

	if h.protocol != protocolTCP {
		return parsedIPv4{}, ErrNotTCP
	}

	if !ipChecksumValid(data[:hdrLen]) {
		return parsedIPv4{}, ErrBadIPChecksum
	}

	srcIP := make(net.IP, 4)
	dstIP := make(net.IP, 4)
	copy(srcIP, h.srcIP[:])
	copy(dstIP, h.dstIP[:])

	return parsedIPv4{
		srcIP:     srcIP,
		dstIP:     dstIP,
		headerLen: hdrLen,
		tcpLen:    totalLength - hdrLen,

		isFragmented: h.fragmented(),
	}, nil
}
