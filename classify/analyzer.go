package classify

import (
	"fmt"
	"io"
	"time"

	"github.com/m-lab/tcpclass/bwfilter"
	"github.com/m-lab/tcpclass/flow"
	"github.com/m-lab/tcpclass/metrics"
)

// rtpropExpiration bounds how long a round-trip-propagation-delay estimate
// is trusted before a fresh (possibly larger) sample is allowed to replace
// it outright.
//
// Grounded on original_source/eva/Analyzer.cc's kRtpropExpration.
const rtpropExpiration = 30 * time.Second

// Analyzer accumulates rate samples into round-trip verdicts. It implements
// flow.Observer, playing the role the original's CRTP
// (TcpFlow<Analyzer>) gave the concrete classifier: a callback target
// supplied to the tracker by composition rather than static inheritance.
//
// Grounded on original_source/eva/Analyzer.h and Analyzer.cc.
type Analyzer struct {
	out  io.Writer
	key  fmt.Stringer
	accm Accumulator

	bandwidthFilter *bwfilter.Filter

	rtprop          time.Duration
	rtpropTimestamp time.Time

	votes [nResults]uint32

	ackCount           uint32
	rttTooLongCount    uint32
	rttHugeCount       uint32
	smallUnitCount     uint32
	prevSmallUnitCount uint32
	maxDeliveryRate    int64
	seeRexmit          bool

	firstAckTime time.Time

	isSlowStart       bool
	slowStartQuitTime time.Time

	prevFlightSize1, prevFlightSize2, prevFlightSize3 int32

	lastRoundtripIndex uint32
}

// NewAnalyzer returns an Analyzer writing its per-round-trip lines to out,
// labeled by key in its closing summary row. The bandwidth filter window is
// 10 round trips, matching the original's MaxBandwidthFilter construction.
func NewAnalyzer(out io.Writer, key fmt.Stringer) *Analyzer {
	return &Analyzer{
		out:             out,
		key:             key,
		bandwidthFilter: bwfilter.New(10),
		rtprop:          -1,
		isSlowStart:     true,
	}
}

// OnClose emits the flow's aggregate summary row, the one point at which
// the per-category accumulator is printed. Grounded on
// original_source/eva/TcpFlow.cc's destructor, which prints the same
// counters when a flow is torn down or the capture ends.
func (a *Analyzer) OnClose() {
	a.accm.WriteSummary(a.out, a.key)
	metrics.ActiveFlows.Dec()
}

// OnRateSample folds one delivery-rate sample into the running round-trip
// vote and bottleneck-bandwidth estimate.
func (a *Analyzer) OnRateSample(rs flow.RateSample) {
	rttIsValid := (!rs.SeeRexmit && !rs.IsSACK) || rs.RTT > a.rtprop

	if rttIsValid {
		a.ackCount++
	}

	if a.rtprop < 0 ||
		(rttIsValid && a.rtprop > rs.RTT) ||
		rs.AckReceivedTime.Sub(a.rtpropTimestamp) >= rtpropExpiration {
		a.rtprop = rs.RTT
		a.rtpropTimestamp = rs.AckReceivedTime
	}

	if a.firstAckTime.IsZero() {
		a.firstAckTime = rs.AckReceivedTime
	}

	btlbw := a.bandwidthFilter.Best()

	if rs.SeeSmallUnit {
		a.smallUnitCount++
	}
	if rs.DeliveryRateKBps > a.maxDeliveryRate {
		a.maxDeliveryRate = rs.DeliveryRateKBps
	}
	if rs.SeeRexmit || rs.IsSACK {
		a.seeRexmit = true
	}

	rttTooLong := rttIsValid && rs.RTT > a.rtprop*7/5
	if rttTooLong {
		a.rttTooLongCount++
	}
	if rttIsValid && rs.RTT > a.rtprop*5/2 {
		a.rttHugeCount++
	}

	if rs.DeliveryRateKBps >= btlbw || rttTooLong ||
		(!rs.IsSenderLimited && !rs.IsReceiverLimited) {
		a.bandwidthFilter.Update(rs.DeliveryRateKBps, rs.RoundtripIndex)
	}

	switch {
	case rs.IsReceiverLimited:
		a.votes[Receiver]++
	case rs.IsSenderLimited:
		a.votes[Sender]++
	case a.isSlowStart || !a.slowStartQuitTime.Before(rs.DataSentTime):
		a.votes[SlowStart]++
	case rs.DeliveryRateKBps >= btlbw*4/5:
		a.votes[Bandwidth]++
	case rttTooLong:
		a.votes[Congestion]++
	default:
		a.votes[Unknown]++
	}

	a.lastRoundtripIndex = rs.RoundtripIndex
	metrics.RateSamples.Inc()
}

// countVotes picks the majority-vote Result, ties broken by enum
// declaration order, forcing SlowStart while the flow is still in it and
// falling back to Unknown on an empty ballot.
func (a *Analyzer) countVotes() Result {
	best := SlowStart
	for r := Bandwidth; r <= Congestion; r++ {
		if a.votes[r] > a.votes[best] {
			best = r
		}
	}
	if a.isSlowStart {
		return SlowStart
	}
	if a.votes[best] == 0 {
		return Unknown
	}
	return best
}

// congestionEvidence reports whether this round trip's too-long RTTs point
// at congestion rather than plain sender pacing.
func (a *Analyzer) congestionEvidence() bool {
	return (a.rttTooLongCount > 0 && a.seeRexmit) || a.rttTooLongCount == a.ackCount
}

// OnNewRoundtrip closes out the round trip that info describes: it prints
// the verdict line, charges the round to an accumulator category, and
// resets the per-round-trip counters.
func (a *Analyzer) OnNewRoundtrip(info flow.RoundtripInfo) {
	if a.firstAckTime.IsZero() {
		// No ack has completed a round yet; nothing to report.
		return
	}

	total := a.votes[SlowStart] + a.votes[Bandwidth] + a.votes[Sender] +
		a.votes[Receiver] + a.votes[Congestion] + a.votes[Unknown]

	fmt.Fprintf(a.out, "[%d] [%d] %dkB/s %dus %s -> %s ",
		info.Index, info.DstPort, a.bandwidthFilter.Best(), a.rtprop.Microseconds(),
		formatClock(a.firstAckTime), formatClock(info.When))

	if a.rttHugeCount == a.ackCount {
		fmt.Fprintln(a.out, "[buffer bloat]")
		a.accm.Add(CatBufferBloat, info.When.Sub(a.firstAckTime), int64(info.FlightSize))
		metrics.Verdicts.WithLabelValues("buffer bloat").Inc()
		a.resetRound(info.FlightSize)
		return
	}

	result := a.countVotes()

	switch {
	case a.votes[Receiver] > 0:
		result = Receiver
	case result == Bandwidth || result == Unknown:
		if a.congestionEvidence() {
			result = Congestion
		} else {
			result = Sender
		}
	case result == Sender:
		if a.congestionEvidence() {
			result = Congestion
		}
	case result == SlowStart && a.smallUnitCount > 0:
		result = Sender
	}

	wins := a.votes[result]
	label, cat, hasCat := a.label(result, info.FlightSize, info.MSS)
	fmt.Fprintf(a.out, "%s (%d/%d)\n", label, wins, total)
	metrics.Verdicts.WithLabelValues(result.String()).Inc()
	if hasCat {
		a.accm.Add(cat, info.When.Sub(a.firstAckTime), int64(info.FlightSize))
	}

	a.resetRound(info.FlightSize)
}

// label turns a voted Result into the printed verdict tag and, where the
// summary row tracks it, the accumulator category it is charged to.
func (a *Analyzer) label(result Result, currFlightSize int32, mss uint32) (string, Category, bool) {
	switch result {
	case SlowStart:
		if a.smallUnitCount > 0 {
			return "[application limited (slow start)]", CatApplication, true
		}
		return "[slow start]", CatSlowStart, true
	case Bandwidth:
		return "[bandwidth limited]", CatBandwidth, true
	case Sender:
		diff1 := abs32(currFlightSize - a.prevFlightSize1)
		diff2 := abs32(currFlightSize - a.prevFlightSize2)
		diff3 := abs32(currFlightSize - a.prevFlightSize3)
		allZero := diff1 == 0 && diff2 == 0 && diff3 == 0

		if currFlightSize > int32(mss) &&
			(a.prevSmallUnitCount == 0 || a.smallUnitCount == 0 || allZero) {
			if allZero {
				return "(buffer)[kernel limited]", CatSendBuffer, true
			}
			return "(cc)[kernel limited]", CatCC, true
		}
		return "[application limited]", CatApplication, true
	case Receiver:
		return "[receiver limited]", CatReceiveWindow, true
	case Congestion:
		return "[congestion limited]", CatCongestion, true
	default:
		return "[unknown limited]", 0, false
	}
}

func (a *Analyzer) resetRound(currFlightSize int32) {
	for i := range a.votes {
		a.votes[i] = 0
	}
	a.prevSmallUnitCount = a.smallUnitCount
	a.smallUnitCount = 0
	a.maxDeliveryRate = 0
	a.prevFlightSize1 = a.prevFlightSize2
	a.prevFlightSize2 = a.prevFlightSize3
	a.prevFlightSize3 = currFlightSize
	a.rttTooLongCount = 0
	a.rttHugeCount = 0
	a.ackCount = 0
	a.seeRexmit = false
	a.firstAckTime = time.Time{}
}

// OnTimeoutRxmit reports a retransmit the tracker attributed to a timeout
// rather than fast recovery, and re-arms slow start (the tracker already
// flips its own isSlowStart bit; this only affects Analyzer's vote bias).
func (a *Analyzer) OnTimeoutRxmit(first, rexmit time.Time) {
	a.isSlowStart = true
	metrics.TimeoutRxmits.Inc()
	fmt.Fprintf(a.out, "[%d] %dkB/s %dus %s -> %s [timeout rexmit]\n",
		a.lastRoundtripIndex, a.bandwidthFilter.Best(), a.rtprop.Microseconds(),
		formatClock(first), formatClock(rexmit))
}

// OnQuitSlowStart records the flow leaving slow start.
func (a *Analyzer) OnQuitSlowStart(when time.Time) {
	a.isSlowStart = false
	a.slowStartQuitTime = when
	fmt.Fprintf(a.out, "[%d] %dkB/s %dus %s [quit slow start]\n",
		a.lastRoundtripIndex, a.bandwidthFilter.Best(), a.rtprop.Microseconds(), formatClock(when))
}

// BDP returns the bandwidth-delay product estimate: rtprop (ms) times the
// windowed-max bottleneck bandwidth (kB/s).
func (a *Analyzer) BDP() uint32 {
	if a.rtprop <= 0 {
		return 0
	}
	return uint32(a.rtprop.Milliseconds()) * uint32(a.bandwidthFilter.Best())
}

func formatClock(t time.Time) string {
	return t.Format("15:04:05.000000")
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
