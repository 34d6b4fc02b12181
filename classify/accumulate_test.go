package classify

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type stringKey string

func (s stringKey) String() string { return string(s) }

func TestAccumulatorAddAndSummary(t *testing.T) {
	var a Accumulator
	a.Add(CatBandwidth, 50*time.Millisecond, 14600)
	a.Add(CatBandwidth, 25*time.Millisecond, 7300)
	a.Add(CatSlowStart, 10*time.Millisecond, 1460)

	var buf bytes.Buffer
	a.WriteSummary(&buf, stringKey("10.0.0.1:1234<->10.0.0.2:443"))

	line := buf.String()
	if !strings.HasPrefix(line, "10.0.0.1:1234<->10.0.0.2:443 ") {
		t.Fatalf("summary line = %q, missing key prefix", line)
	}
	fields := strings.Fields(line)
	// key + 8 durations + 8 bytes totals + 8 counts.
	if len(fields) != 1+int(nCategories)*3 {
		t.Fatalf("summary has %d fields, want %d", len(fields), 1+int(nCategories)*3)
	}
}

func TestAccumulatorZeroFlowIsAllZero(t *testing.T) {
	var a Accumulator
	var buf bytes.Buffer
	a.WriteSummary(&buf, stringKey("empty"))

	fields := strings.Fields(buf.String())[1:]
	for _, f := range fields {
		if f != "0" {
			t.Errorf("summary field = %q, want 0 for a flow with no round trips", f)
		}
	}
}
