package flow

import (
	"time"

	"github.com/m-lab/tcpclass/tcpip"
)

// packetRecord is one in-flight sent segment, queued until it is
// cumulatively or selectively acked. deliveredTime.IsZero() marks a record
// that has already been credited (SACKed) and must not be credited again
// when the cumulative ack later reaches it.
//
// Grounded on original_source/eva/TcpFlow.h's private struct P.
type packetRecord struct {
	sequence     tcpip.SeqNum
	length       uint32
	delivered    uint32
	ackUnitCount uint32

	sentTime      time.Time
	deliveredTime time.Time
	firstSentTime time.Time

	isSlowStart       bool
	isSenderLimited   bool
	isReceiverLimited bool
	isSmallUnit       bool
	isRexmit          bool
}

// roundtrip tracks the sequence span of the flight currently in progress.
//
// Grounded on original_source/eva/TcpFlow.h's private struct Roundtrip.
type roundtrip struct {
	started       bool
	startSequence tcpip.SeqNum
	endSequence   tcpip.SeqNum
	seeSmallUnit  bool
}

func (r roundtrip) flightSize() int32 {
	return r.endSequence.Diff(r.startSequence)
}
