package tcpip

import (
	"net"
	"time"

	"github.com/google/gopacket/layers"
)

// Unit is a normalized record of one captured TCP segment: everything the
// flow tracker needs, with the link layer stripped and the IP/TCP checksums
// already validated.
//
// Grounded on original_source/eva/Unit.h.
type Unit struct {
	When time.Time

	SrcIP, DstIP     net.IP
	SrcPort, DstPort layers.TCPPort

	DataSeq, AckSeq SeqNum
	RecvWindow      uint16
	Flags           Flags

	DataLength   uint32
	OptionLength uint32

	SeeMSS bool
	MSS    uint16

	SeeWSC bool
	WSC    uint8

	Sack []SackBlock
}

// SackBlock is a single SACK edge pair, as reported in the TCP SACK option.
type SackBlock struct {
	LeftEdge, RightEdge SeqNum
}

func (u Unit) FIN() bool { return u.Flags.FIN() }
func (u Unit) SYN() bool { return u.Flags.SYN() }
func (u Unit) RST() bool { return u.Flags.RST() }
func (u Unit) PSH() bool { return u.Flags.PSH() }
func (u Unit) ACK() bool { return u.Flags.ACK() }
func (u Unit) URG() bool { return u.Flags.URG() }

// Decode parses a captured frame into a Unit. linkType identifies the
// capture's link layer (as reported by the pcap handle); ts is the capture
// timestamp attached by the capture library.
//
// Grounded on original_source/eva/Unit.cc's unpack().
func Decode(frame []byte, linkType layers.LinkType, ts time.Time) (Unit, error) {
	ipOffset, err := stripLinkLayer(linkType, frame)
	if err != nil {
		return Unit{}, err
	}

	ip, err := parseIPv4(frame[ipOffset:])
	if err != nil {
		return Unit{}, err
	}

	tcpStart := ipOffset + ip.headerLen
	if len(frame) < tcpStart {
		return Unit{}, ErrTruncated
	}
	// ip.tcpLen is the IP-declared span of the TCP segment; the capture may
	// hold link-layer padding beyond it, so bound TCP parsing to it rather
	// than to the rest of the captured frame.
	tcpEnd := tcpStart + ip.tcpLen
	if tcpEnd > len(frame) {
		return Unit{}, ErrTruncated
	}
	tcpSegment := frame[tcpStart:tcpEnd]

	tcp, err := parseTCP(tcpSegment)
	if err != nil {
		return Unit{}, err
	}

	var srcIP, dstIP [4]byte
	copy(srcIP[:], ip.srcIP.To4())
	copy(dstIP[:], ip.dstIP.To4())
	if !tcpChecksumValid(srcIP, dstIP, ip.fragmented(), tcpSegment) {
		return Unit{}, ErrBadTCPChecksum
	}

	sack := make([]SackBlock, len(tcp.options.Sack))
	for i, b := range tcp.options.Sack {
		sack[i] = SackBlock{LeftEdge: b.LeftEdge, RightEdge: b.RightEdge}
	}

	return Unit{
		When:         ts,
		SrcIP:        ip.srcIP,
		DstIP:        ip.dstIP,
		SrcPort:      layers.TCPPort(tcp.srcPort),
		DstPort:      layers.TCPPort(tcp.dstPort),
		DataSeq:      tcp.dataSeq,
		AckSeq:       tcp.ackSeq,
		RecvWindow:   tcp.recvWindow,
		Flags:        tcp.flags,
		DataLength:   uint32(len(tcpSegment) - tcp.headerLen),
		OptionLength: tcp.optionLength,
		SeeMSS:       tcp.options.SeeMSS,
		MSS:          tcp.options.MSS,
		SeeWSC:       tcp.options.SeeWSC,
		WSC:          tcp.options.WSC,
		Sack:         sack,
	}, nil
}
