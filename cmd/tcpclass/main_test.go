package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/m-lab/tcpclass/tcpip"
)

func TestDecodeErrorReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{tcpip.ErrTruncated, "truncated"},
		{tcpip.ErrNotIPv4, "not_ipv4"},
		{tcpip.ErrNotTCP, "not_tcp"},
		{tcpip.ErrBadIPChecksum, "bad_ip_checksum"},
		{tcpip.ErrBadTCPChecksum, "bad_tcp_checksum"},
		{tcpip.ErrBadOptionLength, "bad_option_length"},
		{tcpip.ErrTooManySackBlocks, "too_many_sack_blocks"},
		{errors.New("boom"), "other"},
	}
	for _, c := range cases {
		if got := decodeErrorReason(c.err); got != c.want {
			t.Errorf("decodeErrorReason(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

// fakeSource replays a fixed slice of frames, then returns io.EOF.
type fakeSource struct {
	frames [][]byte
	when   []time.Time
	i      int
}

func (f *fakeSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if f.i >= len(f.frames) {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	data := f.frames[f.i]
	ci := gopacket.CaptureInfo{Timestamp: f.when[f.i], Length: len(data), CaptureLength: len(data)}
	f.i++
	return data, ci, nil
}

func (f *fakeSource) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func TestRunWithNoPacketsProducesNoOutput(t *testing.T) {
	var out bytes.Buffer
	run(&out, &fakeSource{}, mustParseIP("10.0.0.1"), nil)
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty for an empty trace", out.String())
	}
}

func TestRunHandshakeProducesSummaryRow(t *testing.T) {
	src := mustParseIP("10.0.0.1")
	dst := mustParseIP("10.0.0.2")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	syn := buildTestFrame(t, src, dst, 50000, 443, 1000, 0, flagSYN, 0)
	synAck := buildTestFrame(t, dst, src, 443, 50000, 5000, 1001, flagSYN|flagACK, 0)
	fin := buildTestFrame(t, src, dst, 50000, 443, 1001, 5001, flagFIN|flagACK, 0)

	fs := &fakeSource{
		frames: [][]byte{syn, synAck, fin},
		when:   []time.Time{t0, t0.Add(50 * time.Millisecond), t0.Add(60 * time.Millisecond)},
	}

	var out bytes.Buffer
	run(&out, fs, src, dst)

	if !strings.Contains(out.String(), "10.0.0.1") {
		t.Errorf("output = %q, want a summary row keyed by the flow", out.String())
	}
}

func mustParseIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		panic("bad test IP " + s)
	}
	return ip
}

const (
	flagFIN = 0x01
	flagSYN = 0x02
	flagACK = 0x10
)

// buildTestFrame assembles a minimal Ethernet+IPv4+TCP frame with valid
// checksums, enough to exercise the driver's decode-and-dispatch loop.
func buildTestFrame(t *testing.T, srcIP, dstIP net.IP, srcPort, dstPort uint16, seq, ack uint32, flags byte, payloadLen int) []byte {
	t.Helper()

	const ipHdrLen = 20
	const tcpHdrLen = 20
	totalLen := ipHdrLen + tcpHdrLen + payloadLen
	frame := make([]byte, 14+totalLen)

	frame[12] = 0x08
	frame[13] = 0x00

	ip := frame[14:]
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(totalLen))
	ip[8] = 64
	ip[9] = 6 // TCP
	copy(ip[12:16], srcIP.To4())
	copy(ip[16:20], dstIP.To4())
	sum := checksum16(ip[:ipHdrLen])
	binary.BigEndian.PutUint16(ip[10:12], ^sum)

	tcpSeg := ip[ipHdrLen:]
	binary.BigEndian.PutUint16(tcpSeg[0:2], srcPort)
	binary.BigEndian.PutUint16(tcpSeg[2:4], dstPort)
	binary.BigEndian.PutUint32(tcpSeg[4:8], seq)
	binary.BigEndian.PutUint32(tcpSeg[8:12], ack)
	tcpSeg[12] = byte(tcpHdrLen/4) << 4
	tcpSeg[13] = flags
	binary.BigEndian.PutUint16(tcpSeg[14:16], 65535)

	var src4, dst4 [4]byte
	copy(src4[:], srcIP.To4())
	copy(dst4[:], dstIP.To4())
	pseudo := make([]byte, 12+len(tcpSeg))
	copy(pseudo[0:4], src4[:])
	copy(pseudo[4:8], dst4[:])
	pseudo[9] = 6
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(tcpSeg)))
	copy(pseudo[12:], tcpSeg)
	tcpSum := checksum16(pseudo)
	binary.BigEndian.PutUint16(tcpSeg[16:18], ^tcpSum)

	return frame
}

func checksum16(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint16(sum)
}
