package tcpip

import (
	"testing"

	"github.com/google/gopacket/layers"
)

func TestStripLinkLayerEthernet(t *testing.T) {
	data := make([]byte, 14)
	data[12] = 0x08
	data[13] = 0x00
	off, err := stripLinkLayer(layers.LinkTypeEthernet, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off != 14 {
		t.Errorf("offset = %d, want 14", off)
	}
}

func TestStripLinkLayerEthernetVLAN(t *testing.T) {
	data := make([]byte, 18)
	data[12] = 0x81
	data[13] = 0x00
	data[16] = 0x08
	data[17] = 0x00
	off, err := stripLinkLayer(layers.LinkTypeEthernet, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off != 18 {
		t.Errorf("offset = %d, want 18", off)
	}
}

func TestStripLinkLayerEthernetNotIPv4(t *testing.T) {
	data := make([]byte, 14)
	data[12] = 0x86
	data[13] = 0xdd // IPv6
	_, err := stripLinkLayer(layers.LinkTypeEthernet, data)
	if err != ErrNotIPv4 {
		t.Errorf("err = %v, want %v", err, ErrNotIPv4)
	}
}

func TestStripLinkLayerLoopback(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x02}
	off, err := stripLinkLayer(layers.LinkTypeNull, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off != 4 {
		t.Errorf("offset = %d, want 4", off)
	}
}

func TestStripLinkLayerLinuxSLL(t *testing.T) {
	data := make([]byte, 16)
	data[14] = 0x08
	data[15] = 0x00
	off, err := stripLinkLayer(layers.LinkTypeLinuxSLL, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off != 16 {
		t.Errorf("offset = %d, want 16", off)
	}
}

func TestStripLinkLayerTruncated(t *testing.T) {
	_, err := stripLinkLayer(layers.LinkTypeEthernet, make([]byte, 4))
	if err != ErrTruncated {
		t.Errorf("err = %v, want %v", err, ErrTruncated)
	}
}
