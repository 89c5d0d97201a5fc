// Package classifier turns successive receiver edge timestamps into
// DCF77 bit symbols and second/minute markers. It knows nothing about
// minutes' worth of bits or civil time — only the per-edge interval
// arithmetic and the noise/resync bookkeeping that keeps it honest.
package classifier

import (
	"time"

	"dcf77clock/pkg/dcftime"
	"dcf77clock/pkg/port"
	"dcf77clock/pkg/precision"
	"dcf77clock/pkg/sigslot"
)

// DefaultTolerance is the symmetric band applied around every expected
// interval when no `-t` flag overrides it.
const DefaultTolerance = 25 * time.Millisecond

const (
	minTolerance = 5 * time.Millisecond
	maxTolerance = 40 * time.Millisecond
)

const (
	shortNominal = 100 * time.Millisecond
	longNominal  = 200 * time.Millisecond
)

// Kind identifies what a Feed call produced.
type Kind int

const (
	// None means the edge was absorbed into the running short/long
	// pulse tally without producing a second boundary yet.
	None Kind = iota
	// Second marks a second boundary; Result.Bit carries the decoded
	// symbol for the second just completed.
	Second
	// Noise marks an edge that matched no expected interval.
	Noise
	// Resync means the noise counter exceeded its threshold; the
	// classifier has dropped its reference and returned to the search
	// state.
	Resync
	// Acquired means the search state found a reference and the
	// classifier is now tracking.
	Acquired
)

// Result is the outcome of one Feed call.
type Result struct {
	Kind Kind
	// Bit is the decoded symbol, valid when Kind == Second.
	Bit dcftime.Bit
	// Minute is true alongside Second or Acquired when the interval
	// also marks a minute boundary (the omitted 59th second).
	Minute bool
	// Elapsed is the whole number of seconds the boundary advanced by,
	// valid when Kind == Second; the Frame Assembler uses it to
	// advance past missed seconds.
	Elapsed int
	// MinDev is the updated smoothed per-minute deviation in
	// nanoseconds, valid when Kind == Second && Minute.
	MinDev int64
}

// Classifier holds the rolling state needed to turn one more edge
// timestamp into a Result: the current second reference (or none, while
// searching), the short/long pulse tally since the last second, the
// rolling per-bit deviation ring, the smoothed per-minute deviation, and
// the noise counter.
type Classifier struct {
	Tolerance time.Duration

	ref     sigslot.TimeInfo
	haveRef bool

	searchPrev     sigslot.TimeInfo
	haveSearchPrev bool

	sigShort, sigLong int
	sigStat           *precision.Ring
	minDev            *precision.EWMA

	noise int
}

// New returns a Classifier with tolerance clamped to [5ms, 40ms].
func New(tolerance time.Duration) *Classifier {
	if tolerance < minTolerance {
		tolerance = minTolerance
	}
	if tolerance > maxTolerance {
		tolerance = maxTolerance
	}
	return &Classifier{
		Tolerance: tolerance,
		sigStat:   precision.NewRing(60),
		minDev:    precision.NewEWMA(16),
	}
}

// Tracking reports whether the classifier currently holds a second
// reference (state TRACK/LOCKED in the top-level state machine) as
// opposed to searching for one.
func (c *Classifier) Tracking() bool {
	return c.haveRef
}

// NoiseCount returns the current noise counter, for diagnostics.
func (c *Classifier) NoiseCount() int {
	return c.noise
}

// Feed classifies one edge event.
func (c *Classifier) Feed(ev port.Event) Result {
	ti := sigslot.TimeInfo{Mono: ev.Mono, Wall: ev.Wall}
	if !c.haveRef {
		return c.search(ev, ti)
	}
	return c.track(ti)
}

func (c *Classifier) search(ev port.Event, ti sigslot.TimeInfo) Result {
	if !c.haveSearchPrev {
		c.searchPrev = ti
		c.haveSearchPrev = true
		return Result{Kind: None}
	}

	delta := ti.Sub(c.searchPrev)
	prev := c.searchPrev
	c.searchPrev = ti

	switch {
	case closeTo(delta, 1800*time.Millisecond, c.Tolerance),
		closeTo(delta, 1900*time.Millisecond, c.Tolerance):
		c.ref = ti
		c.haveRef = true
		return Result{Kind: Acquired, Minute: true}

	case closeTo(delta, 800*time.Millisecond, c.Tolerance),
		closeTo(delta, 900*time.Millisecond, c.Tolerance),
		closeTo(delta, shortNominal, c.Tolerance),
		closeTo(delta, longNominal, c.Tolerance):
		if ev.Type == port.FallingEdge {
			c.ref = prev
		} else {
			c.ref = ti
		}
		c.haveRef = true
		return Result{Kind: Acquired}
	}

	return Result{Kind: None}
}

func (c *Classifier) track(ti sigslot.TimeInfo) Result {
	delta := ti.Sub(c.ref)

	if wholeSec := roundSeconds(delta); wholeSec >= 1 {
		expected := time.Duration(wholeSec) * time.Second
		if absDuration(delta-expected) <= c.Tolerance {
			bit := c.resolveBit()
			isMinute := wholeSec == 2
			c.ref = ti
			c.settle()

			var sample int64
			if isMinute {
				dev := int64(delta - expected)
				sample = c.minDev.Update(dev - int64(c.Tolerance))
			}
			return Result{Kind: Second, Bit: bit, Minute: isMinute, Elapsed: wholeSec, MinDev: sample}
		}
	}

	sigAvr := time.Duration(c.sigStat.Mean())

	if c.inBand(delta, 0, shortNominal+sigAvr) {
		c.sigShort++
		c.sigStat.Add(int64(delta - shortNominal))
		c.settle()
		return Result{Kind: None}
	}

	if c.inBand(delta, 0, longNominal+sigAvr) {
		c.sigLong++
		c.sigStat.Add(int64(delta - longNominal))
		c.settle()
		return Result{Kind: None}
	}

	c.noise++
	if c.noise > 9 {
		c.resync()
		return Result{Kind: Resync}
	}
	return Result{Kind: Noise}
}

// resolveBit folds the short/long pulse tally accumulated since the
// last second boundary into a single symbol, per the classifier's
// both-zero/one-kind/more-frequent rule, ties resolved toward 1.
func (c *Classifier) resolveBit() dcftime.Bit {
	short, long := c.sigShort, c.sigLong
	c.sigShort, c.sigLong = 0, 0

	switch {
	case short == 0 && long == 0:
		return dcftime.BitUnknown
	case long == 0:
		return dcftime.Bit0
	case short == 0:
		return dcftime.Bit1
	case long >= short:
		return dcftime.Bit1
	default:
		return dcftime.Bit0
	}
}

// settle decrements the noise counter on any valid classification.
func (c *Classifier) settle() {
	if c.noise > 0 {
		c.noise--
	}
}

// resync drops the second reference and noise tally, returning the
// classifier to the search state. The rolling deviation statistics
// survive a resync; they describe the receiver, not the lock state.
func (c *Classifier) resync() {
	c.haveRef = false
	c.haveSearchPrev = false
	c.noise = 0
	c.sigShort, c.sigLong = 0, 0
}

func (c *Classifier) inBand(delta time.Duration, sec int, nominal time.Duration) bool {
	expected := time.Duration(sec)*time.Second + nominal
	return absDuration(delta-expected) <= c.Tolerance
}

func closeTo(d, target, tol time.Duration) bool {
	return absDuration(d-target) <= tol
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func roundSeconds(d time.Duration) int {
	return int((d + time.Second/2) / time.Second)
}
