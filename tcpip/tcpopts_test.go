package tcpip

import (
	"encoding/binary"
	"testing"

	"github.com/go-test/deep"
)

func TestParseTCPOptionsEmpty(t *testing.T) {
	opts, err := parseTCPOptions(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := deep.Equal(opts, tcpOptions{}); diff != nil {
		t.Error(diff)
	}
}

func TestParseTCPOptionsMSSAndWindowScale(t *testing.T) {
	data := []byte{
		optKindMSS, optLenMSS, 0x05, 0xb4, // MSS 1460
		optKindNOP,
		optKindWindow, optLenWindowScal, 7,
		optKindEOL,
	}
	opts, err := parseTCPOptions(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.SeeMSS || opts.MSS != 1460 {
		t.Errorf("MSS = (%v, %d), want (true, 1460)", opts.SeeMSS, opts.MSS)
	}
	if !opts.SeeWSC || opts.WSC != 7 {
		t.Errorf("WSC = (%v, %d), want (true, 7)", opts.SeeWSC, opts.WSC)
	}
}

func TestParseTCPOptionsWindowScaleClampedToMax(t *testing.T) {
	data := []byte{optKindWindow, optLenWindowScal, 14}
	opts, err := parseTCPOptions(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.WSC != maxWindowScale {
		t.Errorf("WSC = %d, want clamped to %d", opts.WSC, maxWindowScale)
	}
}

func TestParseTCPOptionsSack(t *testing.T) {
	data := make([]byte, 2+16)
	data[0] = optKindSACK
	data[1] = byte(len(data))
	binary.BigEndian.PutUint32(data[2:6], 1000)
	binary.BigEndian.PutUint32(data[6:10], 2000)
	binary.BigEndian.PutUint32(data[10:14], 3000)
	binary.BigEndian.PutUint32(data[14:18], 4000)

	opts, err := parseTCPOptions(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []sackBlock{
		{LeftEdge: 1000, RightEdge: 2000},
		{LeftEdge: 3000, RightEdge: 4000},
	}
	if diff := deep.Equal(opts.Sack, want); diff != nil {
		t.Error(diff)
	}
}

func TestParseTCPOptionsTooManySackBlocks(t *testing.T) {
	length := 2 + 8*5 // 5 blocks, exceeds maxSackBlocks
	data := make([]byte, length)
	data[0] = optKindSACK
	data[1] = byte(length)

	_, err := parseTCPOptions(data)
	if err != ErrTooManySackBlocks {
		t.Errorf("err = %v, want %v", err, ErrTooManySackBlocks)
	}
}

func TestParseTCPOptionsTruncatedMSS(t *testing.T) {
	data := []byte{optKindMSS, optLenMSS, 0x05}
	_, err := parseTCPOptions(data)
	if err != ErrBadOptionLength {
		t.Errorf("err = %v, want %v", err, ErrBadOptionLength)
	}
}

func TestParseTCPOptionsSkipsUnknown(t *testing.T) {
	data := []byte{
		8, 10, 0, 1, 2, 3, 4, 5, 6, 7, // timestamp option, unrecognized here
		optKindMSS, optLenMSS, 0x05, 0xb4,
	}
	opts, err := parseTCPOptions(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.SeeMSS || opts.MSS != 1460 {
		t.Errorf("expected MSS to be parsed after skipping unknown option, got %+v", opts)
	}
}
