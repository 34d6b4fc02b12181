// Package flow reconstructs per-connection sender delivery dynamics from a
// stream of decoded TCP units: an in-flight packet queue, round-trip
// boundaries, and RFC 8985-style rate samples. It has no notion of what the
// samples mean — that judgment belongs to an Observer.
package flow

import (
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
)

// Key identifies a TCP connection independent of which direction a given
// packet travels in. Two units exchanged by the same pair of endpoints,
// regardless of which one is the source, produce the same Key.
//
// Grounded on original_source/eva/Unit.h's direction-insensitive
// operator==; a plain comparable struct stands in for that hash table's
// custom hash function.
type Key struct {
	lowIP, highIP     string
	lowPort, highPort layers.TCPPort
}

// NewKey builds the direction-insensitive key for a packet traveling from
// (srcIP, srcPort) to (dstIP, dstPort).
func NewKey(srcIP, dstIP net.IP, srcPort, dstPort layers.TCPPort) Key {
	a := endpoint{srcIP.String(), srcPort}
	b := endpoint{dstIP.String(), dstPort}
	if b.less(a) {
		a, b = b, a
	}
	return Key{a.ip, b.ip, a.port, b.port}
}

type endpoint struct {
	ip   string
	port layers.TCPPort
}

func (e endpoint) less(o endpoint) bool {
	if e.ip != o.ip {
		return e.ip < o.ip
	}
	return e.port < o.port
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d<->%s:%d", k.lowIP, k.lowPort, k.highIP, k.highPort)
}
