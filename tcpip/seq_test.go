package tcpip

import "testing"

func TestSeqNumDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b SeqNum
		want int32
	}{
		{"equal", 100, 100, 0},
		{"simple forward", 200, 100, 100},
		{"simple backward", 100, 200, -100},
		{"wraps forward", 10, 0xfffffff0, 26},
		{"wraps backward", 0xfffffff0, 10, -26},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Diff(tt.b); got != tt.want {
				t.Errorf("Diff() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSeqNumOrdering(t *testing.T) {
	base := SeqNum(0xfffffff0)
	wrapped := base.Add(32) // wraps past zero

	if !base.Less(wrapped) {
		t.Error("expected base < wrapped across the wraparound")
	}
	if !wrapped.Greater(base) {
		t.Error("expected wrapped > base across the wraparound")
	}
	if !base.LessEqual(base) {
		t.Error("expected LessEqual to be reflexive")
	}
	if !base.GreaterEqual(base) {
		t.Error("expected GreaterEqual to be reflexive")
	}
}
