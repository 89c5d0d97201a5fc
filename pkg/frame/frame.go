// Package frame accumulates classified DCF77 bit symbols into complete
// 60-slot minutes and hands them off to whatever reads frames at its own
// pace, mirroring the hand-off contract the teacher's dlbus handler uses
// for its own sync-then-accumulate decoding.
package frame

import (
	"io"
	"sync"

	"dcf77clock/pkg/dcftime"
)

// Assembler holds the bit vector under construction and the running
// second index. It is driven exclusively by the decoder's classifier
// loop; TakeFrame is the only method safe to call from elsewhere.
type Assembler struct {
	bv     dcftime.BitVector
	secCnt int

	abandoned int

	mu    sync.Mutex
	ready *dcftime.BitVector
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{bv: dcftime.NewBitVector()}
}

// Feed records the bit symbol for the second just completed and, unless
// this is a minute boundary, advances the second index by elapsed (the
// classifier's Δ.sec, normally 1, larger when seconds were missed).
//
// resync is true when this was the second consecutive minute abandoned
// for running past index 59 without a minute marker — the caller should
// drop back to the classifier's search state.
func (a *Assembler) Feed(bit dcftime.Bit, elapsed int, minute bool) (resync bool) {
	if a.secCnt >= 0 && a.secCnt < len(a.bv) {
		a.bv[a.secCnt] = bit
	}

	if minute {
		if a.secCnt < 59 {
			a.rightJustify(a.secCnt)
		}
		a.finish()
		a.abandoned = 0
		a.resetFrame()
		return false
	}

	a.secCnt += elapsed
	if a.secCnt > 59 {
		a.abandoned++
		a.resetFrame()
		if a.abandoned >= 2 {
			a.abandoned = 0
			return true
		}
	}
	return false
}

// rightJustify shifts the count+1 bits collected so far (indices
// 0..count) up so the last one lands at index 58, leaving the vacated
// leading slots unknown — used when a minute boundary arrives with
// fewer than 59 seconds collected (missed seconds at the start of the
// minute).
func (a *Assembler) rightJustify(count int) {
	shift := 58 - count
	if shift <= 0 {
		return
	}
	for i := 58; i >= 0; i-- {
		if i >= shift {
			a.bv[i] = a.bv[i-shift]
		} else {
			a.bv[i] = dcftime.BitUnknown
		}
	}
}

func (a *Assembler) resetFrame() {
	a.secCnt = 0
	a.bv = dcftime.NewBitVector()
}

func (a *Assembler) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := a.bv
	a.ready = &cp
}

// TakeFrame returns the most recently completed minute's bit vector,
// or io.EOF if none is ready yet — the same contract the teacher's
// dlbus.Handler.Read offers its caller.
func (a *Assembler) TakeFrame() (dcftime.BitVector, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready == nil {
		return dcftime.BitVector{}, io.EOF
	}
	bv := *a.ready
	a.ready = nil
	return bv, nil
}
