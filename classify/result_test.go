package classify

import "testing"

func TestResultString(t *testing.T) {
	cases := map[Result]string{
		SlowStart:  "slow start",
		Bandwidth:  "bandwidth limited",
		Sender:     "sender limited",
		Receiver:   "receiver limited",
		Congestion: "congestion limited",
		Unknown:    "unknown limited",
	}
	for r, want := range cases {
		if got := r.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(r), got, want)
		}
	}
}

func TestResultStringUnrecognizedValueFallsBackToUnknown(t *testing.T) {
	if got := Result(99).String(); got != "unknown limited" {
		t.Errorf("String() = %q, want the unknown fallback", got)
	}
}
