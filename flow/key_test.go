package flow

import (
	"net"
	"testing"

	"github.com/google/gopacket/layers"
)

func TestNewKeyDirectionInsensitive(t *testing.T) {
	a := net.ParseIP("10.0.0.1")
	b := net.ParseIP("10.0.0.2")

	forward := NewKey(a, b, layers.TCPPort(50000), layers.TCPPort(443))
	reverse := NewKey(b, a, layers.TCPPort(443), layers.TCPPort(50000))

	if forward != reverse {
		t.Errorf("forward key %v != reverse key %v", forward, reverse)
	}
}

func TestNewKeyDistinguishesDifferentFlows(t *testing.T) {
	a := net.ParseIP("10.0.0.1")
	b := net.ParseIP("10.0.0.2")
	c := net.ParseIP("10.0.0.3")

	k1 := NewKey(a, b, layers.TCPPort(1000), layers.TCPPort(443))
	k2 := NewKey(a, c, layers.TCPPort(1000), layers.TCPPort(443))
	k3 := NewKey(a, b, layers.TCPPort(1001), layers.TCPPort(443))

	if k1 == k2 {
		t.Error("expected different peer IPs to produce different keys")
	}
	if k1 == k3 {
		t.Error("expected different ports to produce different keys")
	}
}
