// Command tcpclass reads a captured TCP trace, live or offline, and prints
// a per-round-trip throughput-limit verdict for the flows it tracks. With
// both addresses given, only flows between them are tracked; with only
// srcAddress, units from srcAddress are data and every other unit is taken
// as an ack, so flows between other hosts are tracked as well.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/tcpclass/classify"
	"github.com/m-lab/tcpclass/flow"
	"github.com/m-lab/tcpclass/metrics"
	"github.com/m-lab/tcpclass/tcpip"
)

var debug = flag.Bool("debug", false, "enable verbose per-packet logging")

var logger = log.New(os.Stderr, "tcpclass: ", log.LstdFlags)

// packetSource is the minimal surface cmd/tcpclass needs from either a live
// pcap handle or an offline pcapgo reader.
type packetSource interface {
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)
	LinkType() layers.LinkType
}

// openSource tries a live interface first, falling back to an offline file,
// mirroring eva/run2.cc's pcap_open_live-then-pcap_open_offline fallback.
func openSource(interfaceOrFile string) (packetSource, error) {
	live, liveErr := pcap.OpenLive(interfaceOrFile, 65560, true, pcap.BlockForever)
	if liveErr == nil {
		return live, nil
	}
	logger.Printf("open live %q: %v, trying as a capture file", interfaceOrFile, liveErr)

	f, err := os.Open(interfaceOrFile)
	if err != nil {
		return nil, fmt.Errorf("open %q: live capture failed (%v), and it is not a readable file: %w", interfaceOrFile, liveErr, err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %q as a capture file: %w", interfaceOrFile, err)
	}
	return &fileSource{f, r}, nil
}

type fileSource struct {
	f *os.File
	r *pcapgo.Reader
}

func (s *fileSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return s.r.ReadPacketData()
}
func (s *fileSource) LinkType() layers.LinkType { return s.r.LinkType() }

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "could not get args from environment variables")

	args := flag.Args()
	var srcAddress, dstAddress, target string
	switch len(args) {
	case 2:
		srcAddress, target = args[0], args[1]
	case 3:
		srcAddress, dstAddress, target = args[0], args[1], args[2]
	default:
		fmt.Fprintln(os.Stderr, "usage: tcpclass <srcAddress> [dstAddress] <interface-or-file>")
		os.Exit(1)
	}

	src := net.ParseIP(srcAddress)
	if src == nil {
		logger.Fatalf("invalid srcAddress %q", srcAddress)
	}
	var dst net.IP
	if dstAddress != "" {
		dst = net.ParseIP(dstAddress)
		if dst == nil {
			logger.Fatalf("invalid dstAddress %q", dstAddress)
		}
	}

	source, err := openSource(target)
	rtx.Must(err, "could not open capture source")

	run(os.Stdout, source, src, dst)
}

// run drives the packet-read loop: decode, dispatch to the flow registry,
// and at end-of-trace tear down every flow still live so each one prints
// its summary row. A flow torn down earlier by FIN/RST has already printed
// its own row by then.
func run(out io.Writer, source packetSource, src, dst net.IP) {
	registry := flow.NewRegistry(src, dst, func(key flow.Key) flow.Observer {
		// The factory is not told which unit started the flow, so every flow
		// is counted under started_by="data", including ack-started ones.
		metrics.FlowsTotal.WithLabelValues("data").Inc()
		metrics.ActiveFlows.Inc()
		return classify.NewAnalyzer(out, key)
	})

	linkType := source.LinkType()
	totalPackets, invalidPackets := 0, 0

	for {
		data, ci, err := source.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Printf("read packet: %v", err)
			break
		}
		totalPackets++

		unit, err := tcpip.Decode(data, linkType, ci.Timestamp)
		if err != nil {
			invalidPackets++
			metrics.DecodeErrors.WithLabelValues(decodeErrorReason(err)).Inc()
			if *debug {
				logger.Printf("decode: %v", err)
			}
			continue
		}
		metrics.UnitsDecoded.Inc()
		registry.Process(unit)
	}

	registry.CloseAll()

	logger.Printf("%d packets read, %d invalid", totalPackets, invalidPackets)
}

func decodeErrorReason(err error) string {
	switch err {
	case tcpip.ErrTruncated:
		return "truncated"
	case tcpip.ErrNotIPv4:
		return "not_ipv4"
	case tcpip.ErrNotTCP:
		return "not_tcp"
	case tcpip.ErrBadIPChecksum:
		return "bad_ip_checksum"
	case tcpip.ErrBadTCPChecksum:
		return "bad_tcp_checksum"
	case tcpip.ErrBadOptionLength:
		return "bad_option_length"
	case tcpip.ErrTooManySackBlocks:
		return "too_many_sack_blocks"
	default:
		return "other"
	}
}
