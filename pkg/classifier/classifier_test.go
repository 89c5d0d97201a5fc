package classifier

import (
	"testing"
	"time"

	"dcf77clock/pkg/dcftime"
	"dcf77clock/pkg/port"
)

func edge(typ port.EventType, mono time.Duration) port.Event {
	return port.Event{Mono: mono, Type: typ}
}

func TestNewClampsTolerance(t *testing.T) {
	if got := New(1 * time.Millisecond).Tolerance; got != minTolerance {
		t.Fatalf("Tolerance = %v, want clamp to %v", got, minTolerance)
	}
	if got := New(time.Second).Tolerance; got != maxTolerance {
		t.Fatalf("Tolerance = %v, want clamp to %v", got, maxTolerance)
	}
}

func TestSearchAcquiresOnMinuteGap(t *testing.T) {
	c := New(DefaultTolerance)
	c.Feed(edge(port.RisingEdge, 0))
	r := c.Feed(edge(port.RisingEdge, 1900*time.Millisecond))
	if r.Kind != Acquired || !r.Minute {
		t.Fatalf("Feed() = %+v, want Acquired+Minute", r)
	}
	if !c.Tracking() {
		t.Fatalf("Tracking() = false after acquisition")
	}
}

func TestSearchAcquiresOnFallingEdgePulse(t *testing.T) {
	c := New(DefaultTolerance)
	c.Feed(edge(port.FallingEdge, 0))
	r := c.Feed(edge(port.FallingEdge, 100*time.Millisecond))
	if r.Kind != Acquired {
		t.Fatalf("Feed() = %+v, want Acquired", r)
	}
}

// track seeds a Classifier already holding a reference at mono 0.
func track(tolerance time.Duration) *Classifier {
	c := New(tolerance)
	c.haveRef = true
	c.ref.Mono = 0
	return c
}

func TestTrackBit0ThenSecond(t *testing.T) {
	c := track(DefaultTolerance)

	r := c.Feed(edge(port.FallingEdge, 100*time.Millisecond))
	if r.Kind != None {
		t.Fatalf("bit edge Feed() = %+v, want None (accumulate)", r)
	}

	r = c.Feed(edge(port.RisingEdge, time.Second))
	if r.Kind != Second {
		t.Fatalf("second edge Feed() = %+v, want Second", r)
	}
	if r.Bit != dcftime.Bit0 {
		t.Fatalf("Bit = %v, want Bit0", r.Bit)
	}
	if r.Elapsed != 1 {
		t.Fatalf("Elapsed = %v, want 1", r.Elapsed)
	}
}

func TestTrackBit1ThenSecond(t *testing.T) {
	c := track(DefaultTolerance)

	c.Feed(edge(port.FallingEdge, 200*time.Millisecond))
	r := c.Feed(edge(port.RisingEdge, time.Second))
	if r.Bit != dcftime.Bit1 {
		t.Fatalf("Bit = %v, want Bit1", r.Bit)
	}
}

func TestTrackUnknownBitOnNoPulse(t *testing.T) {
	c := track(DefaultTolerance)
	r := c.Feed(edge(port.RisingEdge, time.Second))
	if r.Kind != Second || r.Bit != dcftime.BitUnknown {
		t.Fatalf("Feed() = %+v, want Second/BitUnknown", r)
	}
}

func TestTrackMinuteGapReportsMinDev(t *testing.T) {
	c := track(DefaultTolerance)
	r := c.Feed(edge(port.RisingEdge, 2*time.Second))
	if r.Kind != Second || !r.Minute {
		t.Fatalf("Feed() = %+v, want Second+Minute", r)
	}
}

func TestNoiseAccumulatesAndResyncs(t *testing.T) {
	c := track(DefaultTolerance)
	var last Result
	for i := 0; i < 10; i++ {
		// an interval that matches no expected band: 150..159ms lies
		// between the short and long pulse bands and far from a second
		last = c.Feed(edge(port.RisingEdge, 150*time.Millisecond+time.Duration(i)*time.Millisecond))
	}
	if last.Kind != Resync {
		t.Fatalf("after repeated noise, Feed() = %+v, want Resync eventually", last)
	}
	if c.Tracking() {
		t.Fatalf("Tracking() = true after resync, want false")
	}
}

func TestNoiseSettlesOnValidClassification(t *testing.T) {
	c := track(DefaultTolerance)
	c.noise = 5
	c.Feed(edge(port.RisingEdge, time.Second))
	if c.NoiseCount() != 4 {
		t.Fatalf("NoiseCount() = %v, want 4 after a valid second", c.NoiseCount())
	}
}
