// Package blockexport formats the raw bits of three consecutive DCF77
// minutes plus their decoded calendar fields into one ASCII line and
// writes it non-blockingly to a named pipe, mirroring gather_data in
// the original decoder (spec.md §4.7).
package blockexport

import (
	"golang.org/x/sys/unix"

	"dcf77clock/pkg/dcftime"
)

// frameSize is the full 85-byte pipe frame: 42 raw-bit bytes, 40 BCD
// bytes, a tz marker byte, '+' and newline.
const frameSize = 85

// Exporter accumulates three minutes' worth of raw bits into a buffer
// and flushes it to fifoPath once the third minute completes. It owns
// no I/O until Feed decides a block is ready to write.
type Exporter struct {
	fifoPath string
	buf      [128]byte
	block    int
}

// New returns an Exporter that writes completed blocks to fifoPath. An
// empty fifoPath disables export entirely, matching the original
// decoder's "no -f flag given" behavior.
func New(fifoPath string) *Exporter {
	return &Exporter{fifoPath: fifoPath}
}

// Feed records one completed minute's raw bits 1..14 and, at the end of
// a three-minute cycle (min % 3 == 2), writes the assembled frame.
// Minutes whose stamp isn't locked, or whose tz/weekday aren't decoded,
// are skipped entirely (spec.md §4.7's eligibility gate) without
// disturbing the in-progress buffer.
func (e *Exporter) Feed(bv dcftime.BitVector, dt dcftime.DcfTime) {
	if e.fifoPath == "" {
		return
	}
	if dt.Stamp == 0 || dt.TZ <= 0 || dt.WDay <= 0 {
		return
	}

	block := dt.Min % 3
	if block == 0 {
		e.reset()
	}
	e.block = block

	for i := 0; i < 14; i++ {
		e.buf[block*14+i] = bitASCII(bv[i+1])
	}

	if block != 2 {
		return
	}

	writeBCD(e.buf[42:], dt.Min)
	writeBCD(e.buf[50:], dt.Hour)
	writeBCD(e.buf[58:], dt.Day)
	writeBCD(e.buf[66:], dt.Mon)
	writeBCD(e.buf[71:], dt.WDay)
	writeBCD(e.buf[74:], dt.Year)
	e.buf[82] = '+'
	e.buf[83] = byte('0' + dt.TZ)
	e.buf[84] = '\n'

	// Only write once every block in the cycle was actually populated
	// (guards against flushing a partial frame right after startup,
	// when the exporter joins mid-cycle).
	if e.buf[0] != 0 && e.buf[14] != 0 && e.buf[28] != 0 {
		e.write(e.buf[:frameSize])
	}
	e.reset()
}

func (e *Exporter) reset() {
	for i := range e.buf {
		e.buf[i] = 0
	}
}

// write opens the FIFO non-blocking, writes the frame, and closes it
// again. A missing reader (ENXIO) or any other open/write failure is
// silently dropped for this minute, per spec.md §4.7/§7 — the exporter
// never blocks the decoder loop on a reader that isn't there.
func (e *Exporter) write(frame []byte) {
	fd, err := unix.Open(e.fifoPath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	defer unix.Close(fd)
	_, _ = unix.Write(fd, frame)
}

// bitASCII renders a tri-state bit as the ASCII digit gather_data would
// have written from the raw int8 clock_data array. An unclassified bit
// (no pulse could be timed) renders as '0' — the same as Bit0 — since
// the exported frame has no way to carry "unknown" in a single column.
func bitASCII(b dcftime.Bit) byte {
	if b == dcftime.Bit1 {
		return '1'
	}
	return '0'
}

// writeBCD renders num (0..99) as 8 ASCII '0'/'1' bits into dst[0:8]:
// the low nibble of the ones digit in dst[0:4], the low nibble of the
// tens digit in dst[4:8], least-significant bit first — exactly
// write_bcd's layout in the original decoder. Callers that only want a
// narrower field rely on the next field's writeBCD call overwriting the
// trailing bytes, the same overlap the original buffer layout depends
// on (spec.md §6's 5-byte month / 3-byte weekday fields).
func writeBCD(dst []byte, num int) {
	low := num % 10
	high := num / 10
	for i := 0; i < 4; i++ {
		dst[i] = bcdBit(low, i)
		dst[i+4] = bcdBit(high, i)
	}
}

func bcdBit(v, i int) byte {
	if v&(1<<uint(i)) != 0 {
		return '1'
	}
	return '0'
}
