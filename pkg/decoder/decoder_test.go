package decoder

import (
	"testing"
	"time"

	"dcf77clock/pkg/classifier"
	"dcf77clock/pkg/dcftime"
	"dcf77clock/pkg/port"
)

// minuteEdges synthesizes the edge stream a two-pin receiver produces
// for one full minute: a rising edge at the nominal pulse width for
// every known bit in bv[0:59], and a rising edge at every second
// boundary, ending in the 2-second gap that marks the omitted 59th
// second. ref is the classifier's current second reference (the mono
// timestamp of the edge that started this minute's second 0); wall is
// attached to the final, minute-marking edge. It returns the edges and
// the mono timestamp of that final edge (the next minute's ref).
func minuteEdges(bv dcftime.BitVector, ref time.Duration, wall time.Time) ([]port.Event, time.Duration) {
	var events []port.Event
	mono := ref

	for i := 0; i < 59; i++ {
		switch bv[i] {
		case dcftime.Bit0:
			events = append(events, port.Event{Mono: mono + 100*time.Millisecond, Type: port.RisingEdge})
		case dcftime.Bit1:
			events = append(events, port.Event{Mono: mono + 200*time.Millisecond, Type: port.RisingEdge})
		}
		mono += time.Second
		events = append(events, port.Event{Mono: mono, Type: port.RisingEdge})
	}

	// Second 59 carries no pulse; the next boundary (the following
	// minute's second 0) arrives 2s after the last one instead of 1s.
	mono += 2 * time.Second
	events = append(events, port.Event{Mono: mono, Type: port.RisingEdge, Wall: wall})
	return events, mono
}

func fields(min, hour, day, wday, mon, year, tz int) dcftime.DcfTime {
	d := dcftime.New()
	d.Min, d.Hour, d.Day, d.WDay, d.Mon, d.Year, d.TZ = min, hour, day, wday, mon, year, tz
	return d
}

func TestDecoderLocksAfterThreeAgreeingMinutes(t *testing.T) {
	d := New(classifier.DefaultTolerance, nil)

	if d.State() != Search {
		t.Fatalf("initial State() = %v, want Search", d.State())
	}

	// Acquire a second reference via the search state's minute-gap
	// pattern before any bits are sent.
	d.Feed(port.Event{Mono: 0, Type: port.RisingEdge})
	d.Feed(port.Event{Mono: 1900 * time.Millisecond, Type: port.RisingEdge})
	if d.State() != Track {
		t.Fatalf("State() after acquisition = %v, want Track", d.State())
	}

	ref := 1900 * time.Millisecond
	base := time.Date(2024, time.March, 15, 11, 34, 0, 0, time.UTC)

	minutes := []dcftime.DcfTime{
		fields(34, 12, 15, 5, 3, 24, 1),
		fields(35, 12, 15, 5, 3, 24, 1),
		fields(36, 12, 15, 5, 3, 24, 1),
	}

	var last Minute
	for i, m := range minutes {
		wall := base.Add(time.Duration(i) * time.Minute)
		events, next := minuteEdges(dcftime.Encode(m), ref, wall)
		ref = next
		for _, ev := range events {
			d.Feed(ev)
		}
		got, err := d.Next()
		if err != nil {
			t.Fatalf("minute %d: Next() err = %v", i, err)
		}
		last = got
	}

	if d.State() != Locked {
		t.Fatalf("State() after three agreeing minutes = %v, want Locked", d.State())
	}
	if last.Frame.Stamp == 0 {
		t.Fatalf("final minute Frame.Stamp = 0, want a locked stamp")
	}
	if last.Frame.Min != 36 {
		t.Fatalf("final minute Frame.Min = %v, want 36", last.Frame.Min)
	}
}

func TestDecoderResyncsOnNoiseBurst(t *testing.T) {
	d := New(classifier.DefaultTolerance, nil)
	d.Feed(port.Event{Mono: 0, Type: port.RisingEdge})
	d.Feed(port.Event{Mono: 1900 * time.Millisecond, Type: port.RisingEdge})
	if d.State() != Track {
		t.Fatalf("State() after acquisition = %v, want Track", d.State())
	}

	// 150..160ms sits strictly between the short-pulse band (75-125ms)
	// and the long-pulse band (175-225ms), and nowhere near a whole
	// second, so every one of these edges classifies as noise.
	ref := 1900 * time.Millisecond
	for i := 0; i < 11; i++ {
		mono := ref + 150*time.Millisecond + time.Duration(i)*time.Millisecond
		d.Feed(port.Event{Mono: mono, Type: port.RisingEdge})
	}

	if d.State() != Search {
		t.Fatalf("State() after noise burst = %v, want Search", d.State())
	}
}
