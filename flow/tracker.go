package flow

import (
	"log"
	"net"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/m-lab/go/logx"
	"github.com/m-lab/tcpclass/tcpip"
)

const (
	minRTT       = time.Millisecond
	minMSS       = 536
	minWSC       = 0
	maxWSC       = 7
	maxReordered = 2000
)

var (
	trackerLogger = log.New(os.Stderr, "flow: ", log.LstdFlags)
	trackerLog    = logx.NewLogEvery(trackerLogger, 200*time.Millisecond)
)

// Tracker reconstructs one TCP connection's sender delivery dynamics from
// the data units it sends and the ack units it receives. It owns the
// in-flight packet queue and round-trip bookkeeping described in
// original_source/eva/TcpFlow.h/.cc; everything it learns is reported to
// its Observer rather than interpreted here.
type Tracker struct {
	srcIP, dstIP     net.IP
	srcPort, dstPort layers.TCPPort

	seeMSS, seeWSC bool
	mss, wsc       uint32

	nextSendSeq  tcpip.SeqNum
	ackUnitCount uint32

	roundTripCount uint32
	prevFlightSize int32

	delivered     uint32
	deliveredTime time.Time
	firstSentTime time.Time

	pipeSize   uint32
	recvWindow uint32

	isSlowStart       bool
	isSenderLimited   bool
	isReceiverLimited bool

	flow          []packetRecord
	currRoundtrip roundtrip

	obs Observer
}

// NewFromData starts tracking a flow whose first observed unit was data
// traveling sender -> receiver.
func NewFromData(u tcpip.Unit, obs Observer) *Tracker {
	return &Tracker{
		srcIP:         u.SrcIP,
		dstIP:         u.DstIP,
		srcPort:       u.SrcPort,
		dstPort:       u.DstPort,
		mss:           minMSS,
		wsc:           minWSC,
		nextSendSeq:   u.DataSeq,
		deliveredTime: u.When,
		firstSentTime: u.When,
		isSlowStart:   true,
		obs:           obs,
	}
}

// NewFromAck starts tracking a flow whose first observed unit was the
// receiver's SYN-ACK; the sender's own SYN was missed. Sender/receiver
// addresses are reversed relative to the ack's own source and destination.
func NewFromAck(u tcpip.Unit, obs Observer) *Tracker {
	return &Tracker{
		srcIP:         u.DstIP,
		dstIP:         u.SrcIP,
		srcPort:       u.DstPort,
		dstPort:       u.SrcPort,
		mss:           minMSS,
		wsc:           minWSC,
		deliveredTime: u.When,
		firstSentTime: u.When,
		isSlowStart:   true,
		obs:           obs,
	}
}

func (t *Tracker) RoundtripCount() uint32      { return t.roundTripCount }
func (t *Tracker) PipeSize() uint32            { return t.pipeSize }
func (t *Tracker) RecvWindow() uint32          { return t.recvWindow }
func (t *Tracker) MSS() uint32                 { return t.mss }
func (t *Tracker) SrcIP() net.IP               { return t.srcIP }
func (t *Tracker) DstIP() net.IP               { return t.dstIP }
func (t *Tracker) SrcPort() layers.TCPPort     { return t.srcPort }
func (t *Tracker) DstPort() layers.TCPPort     { return t.dstPort }

// OnDataUnit processes one unit traveling sender -> receiver.
func (t *Tracker) OnDataUnit(u tcpip.Unit) {
	t.preHandleDataUnit(u)
	if t.handleDataUnit(u) {
		t.postHandleDataUnit(u)
	}
}

func (t *Tracker) preHandleDataUnit(u tcpip.Unit) {
	smallUnit := !u.SYN() && !u.FIN() && u.OptionLength+u.DataLength < t.mss
	pipeNotFull := t.pipeSize < t.obs.BDP()*9/10

	t.isReceiverLimited = t.pipeSize > t.recvWindow*9/10 || t.recvWindow < t.mss
	t.isSenderLimited = !t.isReceiverLimited && (smallUnit || pipeNotFull)

	dataAndOptionLen := u.DataLength + u.OptionLength
	if !t.seeMSS && dataAndOptionLen > t.mss {
		// Continuously estimate the peer's advertised MSS when its SYN was
		// never observed.
		t.mss = dataAndOptionLen
	}
}

func (t *Tracker) handleDataUnit(u tcpip.Unit) bool {
	if t.pipeSize == 0 {
		t.firstSentTime = u.When
		t.deliveredTime = u.When
	}

	p := packetRecord{
		sequence:          u.DataSeq,
		length:            u.DataLength,
		delivered:         t.delivered,
		ackUnitCount:      t.ackUnitCount,
		sentTime:          u.When,
		deliveredTime:     t.deliveredTime,
		firstSentTime:     t.firstSentTime,
		isSlowStart:       t.isSlowStart,
		isSenderLimited:   t.isSenderLimited,
		isReceiverLimited: t.isReceiverLimited,
		isSmallUnit:       !u.SYN() && !u.FIN() && u.OptionLength+u.DataLength < t.mss,
	}

	switch {
	case t.nextSendSeq.Greater(u.DataSeq):
		trackerLog.Println("sender retransmit")
		p.isRexmit = true
		exhausted := true
		step := 0
		for i := len(t.flow) - 1; i >= 0; i-- {
			r := &t.flow[i]
			if r.sequence == u.DataSeq {
				exhausted = false
				if r.ackUnitCount == t.ackUnitCount {
					t.obs.OnTimeoutRxmit(r.sentTime, u.When)
					t.isSlowStart = true
				}
				*r = p
				break
			}
			if r.sequence.Less(u.DataSeq) {
				exhausted = false
				trackerLog.Println("no matching data unit for rexmit; likely reordered, run at sender side")
				break
			}
			step++
			if step >= maxReordered {
				exhausted = false
				trackerLog.Println("sender backed up too many steps, giving up")
				break
			}
		}
		if exhausted {
			trackerLog.Println("spurious retransmit")
		}
		return false

	case t.nextSendSeq.Less(u.DataSeq):
		trackerLog.Println("found reordered unit; run at sender side")
		return false

	default:
		t.flow = append(t.flow, p)
		return true
	}
}

func (t *Tracker) postHandleDataUnit(u tcpip.Unit) {
	t.pipeSize += u.DataLength

	extra := uint32(0)
	if u.SYN() {
		extra++
	}
	if u.FIN() {
		extra++
	}
	t.nextSendSeq = u.DataSeq.Add(u.DataLength + extra)

	if !t.currRoundtrip.started {
		t.currRoundtrip.started = true
		t.currRoundtrip.startSequence = u.DataSeq
		t.currRoundtrip.seeSmallUnit = false
	}

	smallUnit := !u.SYN() && !u.FIN() && u.OptionLength+u.DataLength < t.mss
	if smallUnit {
		t.currRoundtrip.seeSmallUnit = true
	}
}

// OnAckUnit processes one unit traveling receiver -> sender.
func (t *Tracker) OnAckUnit(u tcpip.Unit) {
	t.preHandleAckUnit(u)
	if t.handleAckUnit(u) {
		t.postHandleAckUnit(u)
	}
}

func (t *Tracker) preHandleAckUnit(u tcpip.Unit) {
	if u.SYN() {
		// The receiver's own SYN carries its MSS/window-scale options.
		t.seeMSS = u.SeeMSS
		t.seeWSC = u.SeeWSC
		if t.seeMSS {
			t.mss = uint32(u.MSS)
		} else {
			t.mss = minMSS
		}
		if t.seeWSC {
			t.wsc = uint32(u.WSC)
		} else {
			t.wsc = minWSC
		}
	}

	if !t.seeWSC {
		// Continuously estimate the window-scale option when the SYN was
		// missed: the true scale is the smallest one that keeps the
		// advertised window from looking smaller than the pipe it's
		// actually accepting.
		for t.pipeSize > uint32(u.RecvWindow)<<t.wsc {
			t.wsc++
		}
		if t.wsc > maxWSC {
			trackerLog.Printf("bad inferred window scale %d, clamping", t.wsc)
			t.wsc = maxWSC
		}
	}

	t.ackUnitCount++
	t.recvWindow = uint32(u.RecvWindow) << t.wsc
}

func (t *Tracker) handleAckUnit(u tcpip.Unit) bool {
	var bytesAcked uint32

	idx := 0
	for ; idx < len(t.flow); idx++ {
		if t.flow[idx].sequence.Less(u.AckSeq) {
			if !t.flow[idx].deliveredTime.IsZero() {
				bytesAcked += t.flow[idx].length
			}
		} else {
			break
		}
	}

	var sacked []*packetRecord
	for _, block := range u.Sack {
		if block.RightEdge.LessEqual(u.AckSeq) {
			trackerLog.Println("SACK block below cumulative ack, ignoring")
			continue
		}
		start := idx
		for ; start < len(t.flow); start++ {
			if !t.flow[start].sequence.GreaterEqual(block.LeftEdge) {
				continue
			}
			if !t.flow[start].sequence.Less(block.RightEdge) {
				break
			}
			if !t.flow[start].deliveredTime.IsZero() {
				sacked = append(sacked, &t.flow[start])
				bytesAcked += t.flow[start].length
			}
		}
		if start == len(t.flow) {
			trackerLog.Println("SACK block not found in flow")
		}
	}

	if idx == 0 && len(sacked) == 0 {
		return false
	}

	t.pipeSize -= bytesAcked

	if t.updateRoundtripCount(u) {
		// Units left in the pipe after this ack start the next flight.
		if t.roundTripCount > 0 {
			t.obs.OnNewRoundtrip(RoundtripInfo{
				When:       u.When,
				Index:      t.roundTripCount,
				MSS:        t.mss,
				DstPort:    t.dstPort,
				FlightSize: t.prevFlightSize,
			})
		}
		t.roundTripCount++
		t.currRoundtrip.started = false
	}

	rs := newRateSample()

	for i := 0; i < idx; i++ {
		t.updateRateSample(&t.flow[i], u, &rs)
	}
	t.flow = t.flow[idx:]

	for _, p := range sacked {
		t.updateRateSample(p, u, &rs)
	}

	if rs.PriorTime.IsZero() {
		// Nothing was actually delivered by this ack.
		return false
	}

	rs.Interval = rs.SendElapsed
	if rs.AckElapsed > rs.Interval {
		rs.Interval = rs.AckElapsed
	}
	rs.Delivered = t.delivered - rs.PriorDelivered
	rs.IsSACK = len(u.Sack) > 0
	rs.RoundtripIndex = t.roundTripCount

	if rs.Interval < minRTT {
		trackerLog.Println("interval too small, dropping rate sample")
	} else {
		rs.DeliveryRateKBps = int64(rs.Delivered) / rs.Interval.Milliseconds()
		t.obs.OnRateSample(rs)
	}
	return true
}

func (t *Tracker) postHandleAckUnit(u tcpip.Unit) {}

func (t *Tracker) updateRoundtripCount(u tcpip.Unit) bool {
	if !t.currRoundtrip.started || !u.AckSeq.Greater(t.currRoundtrip.startSequence) {
		return false
	}

	t.currRoundtrip.endSequence = t.nextSendSeq
	currFlightSize := t.currRoundtrip.flightSize()
	if !t.currRoundtrip.seeSmallUnit && t.isSlowStart {
		if currFlightSize < t.prevFlightSize*3/2 {
			t.isSlowStart = false
			t.obs.OnQuitSlowStart(t.firstSentTime)
		}
	}
	t.prevFlightSize = currFlightSize
	return true
}

func (t *Tracker) updateRateSample(p *packetRecord, ack tcpip.Unit, rs *RateSample) {
	if p.deliveredTime.IsZero() {
		// Already credited via an earlier SACK.
		return
	}

	t.delivered += p.length
	t.deliveredTime = ack.When

	if p.delivered >= rs.PriorDelivered {
		rs.RTT = ack.When.Sub(p.sentTime)
		if rs.DataSentTime.IsZero() {
			rs.DataSentTime = p.sentTime
		}
		rs.AckReceivedTime = ack.When
		rs.PriorDelivered = p.delivered
		rs.PriorTime = p.deliveredTime
		rs.SendElapsed = p.sentTime.Sub(p.firstSentTime)
		rs.AckElapsed = t.deliveredTime.Sub(p.deliveredTime)
		rs.IsSenderLimited = p.isSenderLimited
		rs.IsReceiverLimited = p.isReceiverLimited
		if p.isSmallUnit {
			rs.SeeSmallUnit = true
		}
		if p.isRexmit {
			rs.SeeRexmit = true
		}
		t.firstSentTime = p.sentTime
	}

	p.deliveredTime = time.Time{}
}
