package tcpip

import (
	"encoding/binary"
	"unsafe"
)

// tcpHeader overlays the fixed 20-byte TCP header.
//
// Grounded on m-lab/etl/tcp.TCPHeader's unsafe-pointer-overlay technique.
type tcpHeader struct {
	srcPort    [2]byte
	dstPort    [2]byte
	seqNum     [4]byte
	ackNum     [4]byte
	dataOffset uint8 // upper 4 bits
	flags      Flags
	window     [2]byte
	checksum   [2]byte
	urgent     [2]byte
}

const tcpHeaderSize = int(unsafe.Sizeof(tcpHeader{}))

func (h *tcpHeader) headerLen() int { return 4 * int(h.dataOffset>>4) }

// Flags is the 8-bit TCP control-bit field.
//
// Grounded on m-lab/etl/tcp.Flags.
type Flags uint8

const (
	flagFIN Flags = 0x01
	flagSYN Flags = 0x02
	flagRST Flags = 0x04
	flagPSH Flags = 0x08
	flagACK Flags = 0x10
	flagURG Flags = 0x20
)

func (f Flags) FIN() bool { return f&flagFIN != 0 }
func (f Flags) SYN() bool { return f&flagSYN != 0 }
func (f Flags) RST() bool { return f&flagRST != 0 }
func (f Flags) PSH() bool { return f&flagPSH != 0 }
func (f Flags) ACK() bool { return f&flagACK != 0 }
func (f Flags) URG() bool { return f&flagURG != 0 }

// parsedTCP holds the output of parsing the TCP layer, before checksum
// validation (which needs the IP pseudo-header, computed by the caller).
type parsedTCP struct {
	srcPort, dstPort   uint16
	dataSeq, ackSeq    SeqNum
	recvWindow         uint16
	flags              Flags
	headerLen          int
	options            tcpOptions
	optionLength       uint32
}

func parseTCP(data []byte) (parsedTCP, error) {
	if len(data) < tcpHeaderSize {
		return parsedTCP{}, ErrTruncated
	}
	h := (*tcpHeader)(unsafe.Pointer(&data[0]))

	hdrLen := h.headerLen()
	if hdrLen < tcpHeaderSize || len(data) < hdrLen {
		return parsedTCP{}, ErrTruncated
	}

	opts, err := parseTCPOptions(data[tcpHeaderSize:hdrLen])
	if err != nil {
		return parsedTCP{}, err
	}

	return parsedTCP{
		srcPort:      binary.BigEndian.Uint16(h.srcPort[:]),
		dstPort:      binary.BigEndian.Uint16(h.dstPort[:]),
		dataSeq:      SeqNum(binary.BigEndian.Uint32(h.seqNum[:])),
		ackSeq:       SeqNum(binary.BigEndian.Uint32(h.ackNum[:])),
		recvWindow:   binary.BigEndian.Uint16(h.window[:]),
		flags:        h.flags,
		headerLen:    hdrLen,
		options:      opts,
		optionLength: uint32(hdrLen - tcpHeaderSize),
	}, nil
}
