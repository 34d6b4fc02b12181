package tcpip

import (
	"encoding/binary"
	"log"
	"os"
)

const (
	optKindEOL       = 0
	optKindNOP       = 1
	optKindMSS       = 2
	optKindWindow    = 3
	optKindSACK      = 5
	optLenMSS        = 4
	optLenWindowScal = 3

	maxSackBlocks = 4
	maxWindowScale = 7
)

var optLog = log.New(os.Stderr, "tcpip: ", log.LstdFlags)

// sackBlock is a single SACK edge pair relative to the connection's ISN in
// the acked direction, per RFC 2018.
type sackBlock struct {
	LeftEdge  SeqNum
	RightEdge SeqNum
}

// tcpOptions is the subset of TCP options this tool understands.
type tcpOptions struct {
	SeeMSS bool
	MSS    uint16

	SeeWSC bool
	WSC    uint8

	Sack []sackBlock
}

// parseTCPOptions walks a TCP option span, recognizing EOL, NOP, MSS,
// Window-Scale, and SACK; all other options are skipped by their length
// byte. Truncation at any stage is reported as ErrBadOptionLength.
//
// Grounded on m-lab/etl/tcp.ParseTCPOptions/NextOption, cross-checked
// against original_source/eva/Unit.cc's parseTcpOptions for exact option
// byte layouts and the SACK-block-count limit.
func parseTCPOptions(data []byte) (tcpOptions, error) {
	var opts tcpOptions

	for len(data) > 0 {
		switch data[0] {
		case optKindEOL:
			return opts, nil
		case optKindNOP:
			data = data[1:]
		case optKindMSS:
			if len(data) < optLenMSS {
				return opts, ErrBadOptionLength
			}
			opts.SeeMSS = true
			opts.MSS = binary.BigEndian.Uint16(data[2:4])
			data = data[optLenMSS:]
		case optKindWindow:
			if len(data) < optLenWindowScal {
				return opts, ErrBadOptionLength
			}
			wsc := data[2]
			if wsc > maxWindowScale {
				optLog.Printf("window scale %d exceeds max, clamping to %d", wsc, maxWindowScale)
				wsc = maxWindowScale
			}
			opts.SeeWSC = true
			opts.WSC = wsc
			data = data[optLenWindowScal:]
		case optKindSACK:
			if len(data) < 2 {
				return opts, ErrBadOptionLength
			}
			length := int(data[1])
			if len(data) < length || length < 2 || (length-2)%8 != 0 {
				return opts, ErrBadOptionLength
			}
			count := (length - 2) / 8
			if count > maxSackBlocks {
				return opts, ErrTooManySackBlocks
			}
			opts.Sack = make([]sackBlock, count)
			for i := 0; i < count; i++ {
				base := 2 + 8*i
				opts.Sack[i] = sackBlock{
					LeftEdge:  SeqNum(binary.BigEndian.Uint32(data[base : base+4])),
					RightEdge: SeqNum(binary.BigEndian.Uint32(data[base+4 : base+8])),
				}
			}
			data = data[length:]
		default:
			if len(data) < 2 {
				return opts, ErrBadOptionLength
			}
			length := int(data[1])
			if length < 2 || len(data) < length {
				return opts, ErrBadOptionLength
			}
			data = data[length:]
		}
	}
	return opts, nil
}
