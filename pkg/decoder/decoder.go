// Package decoder wires the classifier, frame assembler, field decoder
// and consistency voter into the top-level state machine spec.md §4.8
// describes, and exposes the one per-minute result the rest of the
// application (shared-memory publisher, block exporter, MQTT, status
// API) consumes — the same split the teacher draws between its pure
// per-frame decode packages and the service loop that drives them.
package decoder

import (
	"io"
	"time"

	"dcf77clock/pkg/classifier"
	"dcf77clock/pkg/dcftime"
	"dcf77clock/pkg/frame"
	"dcf77clock/pkg/port"
	"dcf77clock/pkg/precision"
	"dcf77clock/pkg/voter"
)

// Phase is the top-level decoder state (spec.md §4.8).
type Phase int

const (
	// Search means the classifier has no second reference yet.
	Search Phase = iota
	// Track means a second reference is locked but no stamp has been
	// established (or has been lost) yet.
	Track
	// Locked means the voter has an established, advancing stamp.
	Locked
)

// String renders the phase the way status/debug output names it.
func (p Phase) String() string {
	switch p {
	case Search:
		return "search"
	case Track:
		return "track"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// Minute is the outcome of one completed, decoded, voted-on minute.
type Minute struct {
	Frame            dcftime.DcfTime
	BitVector        dcftime.BitVector
	Wall             time.Time
	PrecisionSeconds int
}

// Decoder drives classifier -> frame -> dcftime -> voter -> precision
// for a single receiver and tracks the resulting top-level phase.
type Decoder struct {
	classifier *classifier.Classifier
	frame      *frame.Assembler
	resolver   voter.ZoneResolver
	precision  *precision.Exponent

	phase Phase
	last  dcftime.DcfTime

	ready *Minute
}

// New returns a Decoder with the given classification tolerance. zr
// resolves the real Europe/Berlin DST state the voter cross-checks
// against once a stamp is first synthesized (spec.md's zone cross-check
// addition); it may be nil, in which case the locked-mode tz prediction
// simply trusts the last accepted tz value.
func New(tolerance time.Duration, zr voter.ZoneResolver) *Decoder {
	if zr == nil {
		zr = noResolver{}
	}
	return &Decoder{
		classifier: classifier.New(tolerance),
		frame:      frame.New(),
		resolver:   zr,
		precision:  precision.NewExponent(),
		last:       dcftime.New(),
	}
}

// noResolver is the zero-value ZoneResolver: it always predicts the
// frame's own last-known tz rather than an independently resolved one.
type noResolver struct{}

func (noResolver) TZAt(stamp int64, fallback int) int { return fallback }

// State returns the current top-level phase.
func (d *Decoder) State() Phase {
	return d.phase
}

// Feed classifies one receiver edge event and, when it completes a
// minute, decodes and votes on the resulting frame. The decoded minute,
// if any, is buffered for the next Next() call.
func (d *Decoder) Feed(ev port.Event) {
	res := d.classifier.Feed(ev)

	switch res.Kind {
	case classifier.Resync:
		d.frame = frame.New()
		d.phase = Search

	case classifier.Acquired:
		if d.phase == Search {
			d.phase = Track
		}

	case classifier.Second:
		if res.Minute {
			d.precision.Observe(res.MinDev)
		}

		resync := d.frame.Feed(res.Bit, res.Elapsed, res.Minute)
		if resync {
			d.phase = Search
			return
		}

		if !res.Minute {
			return
		}

		bv, err := d.frame.TakeFrame()
		if err == io.EOF {
			return
		}

		wasLocked := d.last.Stamp != 0
		dt := dcftime.Decode(bv)
		dt = voter.Vote(dt, d.last, d.resolver)
		d.last = dt

		switch {
		case dt.Stamp != 0:
			d.phase = Locked
		case wasLocked:
			// stamp_chk fell below 0: the voter fell back to
			// unlocked mode without a full resync (spec.md §4.4).
			d.phase = Track
		case d.phase == Search:
			d.phase = Track
		}

		d.ready = &Minute{
			Frame:            dt,
			BitVector:        bv,
			Wall:             ev.Wall,
			PrecisionSeconds: d.precision.Seconds(),
		}
	}
}

// Next returns the most recently completed minute, or io.EOF if none is
// ready yet — the same idiom frame.Assembler.TakeFrame and the
// teacher's datalogger.DL.Get use.
func (d *Decoder) Next() (Minute, error) {
	if d.ready == nil {
		return Minute{}, io.EOF
	}
	m := *d.ready
	d.ready = nil
	return m, nil
}

// NoiseCount exposes the classifier's current noise tally for
// diagnostics (the /status web handler).
func (d *Decoder) NoiseCount() int {
	return d.classifier.NoiseCount()
}
