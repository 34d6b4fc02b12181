package flow

import (
	"time"

	"github.com/google/gopacket/layers"
)

// RateSample is one RFC 8985-style delivery rate sample, produced whenever
// an ack advances the in-flight queue.
//
// Grounded on original_source/eva/RateSample.h. Timestamps use the zero
// time.Time as "invalid" and durations use -1 as "unset", matching the
// sentinels the original uses for its Timestamp/int64 fields.
type RateSample struct {
	RTT time.Duration // -1 if unset

	AckReceivedTime time.Time
	DataSentTime    time.Time

	DeliveryRateKBps int64
	Interval         time.Duration // -1 if unset
	Delivered        uint32
	PriorDelivered   uint32
	PriorTime        time.Time

	SendElapsed time.Duration // -1 if unset
	AckElapsed  time.Duration // -1 if unset

	IsSenderLimited   bool
	IsReceiverLimited bool
	SeeSmallUnit      bool
	SeeRexmit         bool
	IsSACK            bool // the ack that produced this sample carried a SACK block

	// RoundtripIndex is the round trip this sample belongs to, the same
	// counter value a following OnNewRoundtrip(RoundtripInfo{Index: ...})
	// call would report for the round this sample falls in.
	RoundtripIndex uint32
}

func newRateSample() RateSample {
	return RateSample{
		RTT:         -1,
		Interval:    -1,
		SendElapsed: -1,
		AckElapsed:  -1,
	}
}

// RoundtripInfo describes the round trip that just completed, everything an
// Observer needs to label it without reaching back into the Tracker.
type RoundtripInfo struct {
	When       time.Time
	Index      uint32
	MSS        uint32
	DstPort    layers.TCPPort
	FlightSize int32
}

// Observer receives the events a Tracker produces as it processes a flow.
// It plays the role the original's CRTP (TcpFlow<Analyzer>) static
// polymorphism served: letting the tracker report events without knowing
// what a consumer does with them. BDP lets the tracker ask its observer for
// the bandwidth-delay product estimate it needs to judge whether the pipe
// is close to full.
type Observer interface {
	OnRateSample(rs RateSample)
	OnNewRoundtrip(info RoundtripInfo)
	OnTimeoutRxmit(first, rexmit time.Time)
	OnQuitSlowStart(when time.Time)
	BDP() uint32

	// OnClose fires once, when the Registry tears the flow down (FIN/RST)
	// or, for flows still alive, at end-of-trace. It plays the role the
	// original's tracker destructor served: the point at which a consumer
	// emits whatever summary it has been accumulating.
	OnClose()
}
