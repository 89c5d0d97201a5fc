// Package ntpshm publishes decoded DCF77 minutes into the NTP reference
// clock shared-memory segment (the "SHM" refclock driver's ABI), the
// same System V shared-memory record the original C decoder's
// getShmTime/set_ntp_shm pair maintains.
//
// The record is attached once at startup and never detached except on
// shutdown; the publisher is its sole writer and never takes a lock
// while writing, relying solely on the valid/count write ordering the
// consuming daemon is contractually required to observe (spec.md §4.6,
// §5 Shared-memory discipline).
package ntpshm

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"dcf77clock/pkg/dcftime"
)

// ntpdBase is ntp.h's NTPD_BASE: the shared-memory key space reserved
// for SHM refclock units, offset by the unit selected on the CLI.
const ntpdBase = 0x4e545030

// Leap indication values for the record's leap field.
const (
	LeapNone      = 0
	LeapAdd       = 1
	LeapDel       = 2
	LeapNotInSync = 3
)

// maxClockSkew is the wall-clock sanity threshold (spec.md §4.6): when
// the wall clock differs by more than this from the decoded stamp less
// tz hours (Stamp - TZ*3600), Publish treats the minute as a clock jump,
// not a publishable minute.
const maxClockSkew = 1200 * time.Second

// record is the shmTime struct, laid out field-for-field the way the C
// compiler lays it out on a 64-bit host: two leading 4-byte ints, then
// an 8-byte time_t (the Go compiler inserts the same implicit padding
// before each 8-byte field that the C compiler does), and so on through
// the ten reserved dummy words. unsafe.Sizeof must equal 96.
type record struct {
	Mode                  int32
	Count                 int32
	ClockTimeStampSec     int64
	ClockTimeStampUSec    int32
	ReceiveTimeStampSec   int64
	ReceiveTimeStampUSec  int32
	Leap                  int32
	Precision             int32
	NSamples              int32
	Valid                 int32
	Dummy                 [10]int32
}

const recordSize = unsafe.Sizeof(record{})

// Publisher attaches a unit's shared-memory record and writes validated
// minutes into it, per the write ordering the consuming daemon's mode=1
// read protocol requires: valid=0, payload, count++, valid=1.
type Publisher struct {
	shmid int
	addr  uintptr
	rec   *record

	// wallOffset corrects the wall-clock reading used for
	// ReceiveTimeStamp* after a detected clock jump (spec.md §4.6's
	// "Wall-clock sanity override"). The publisher never calls
	// clock_settime/unix.ClockSettime; it only re-anchors its own
	// estimate of the wall clock.
	wallOffset time.Duration
}

// Open attaches (creating if absent) the shared-memory segment for the
// given unit, with permissions 0777 as the original decoder sets them.
func Open(unit int) (*Publisher, error) {
	key := ntpdBase + unit
	shmid, err := unix.SysvShmGet(key, int(recordSize), unix.IPC_CREAT|0o777)
	if err != nil {
		return nil, fmt.Errorf("ntpshm: shmget unit %d: %w", unit, err)
	}

	addr, err := unix.SysvShmAttach(shmid, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("ntpshm: shmat unit %d: %w", unit, err)
	}

	rec := (*record)(unsafe.Pointer(addr))
	atomic.StoreInt32(&rec.Valid, 0)
	rec.Mode = 1
	atomic.StoreInt32(&rec.Count, 0)

	return &Publisher{shmid: shmid, addr: addr, rec: rec}, nil
}

// Close detaches the shared-memory segment. The segment itself (and
// its last published contents) survives for the next attach.
func (p *Publisher) Close() error {
	if p.addr == 0 {
		return nil
	}
	err := unix.SysvShmDetach(p.addr)
	p.addr = 0
	return err
}

// Publish writes one validated minute, given the decoded frame and the
// wall-clock reading taken at the edge that marked this minute's start.
// It reports false (and skips the write) when the wall-clock sanity
// check in spec.md §4.6 rejects the stamp as a clock jump rather than
// genuine drift; the publisher instead re-anchors wallOffset so a
// future minute's ReceiveTimeStamp is plausible again.
func (p *Publisher) Publish(now dcftime.DcfTime, wall time.Time, precisionSeconds int) bool {
	if now.Stamp == 0 {
		return false
	}

	adjusted := wall.Add(p.wallOffset)
	localEpoch := now.Stamp - int64(now.TZ)*3600
	skew := adjusted.Unix() - localEpoch

	if skew > int64(maxClockSkew/time.Second) || skew < -int64(maxClockSkew/time.Second) {
		p.wallOffset += time.Duration(localEpoch-adjusted.Unix()) * time.Second
		return false
	}

	r := p.rec
	atomic.StoreInt32(&r.Valid, 0)

	r.ClockTimeStampSec = now.Stamp
	r.ClockTimeStampUSec = 0
	r.ReceiveTimeStampSec = adjusted.Unix()
	r.ReceiveTimeStampUSec = int32(adjusted.Nanosecond() / 1000)
	r.Precision = int32(precisionSeconds)

	if now.LSec > 0 {
		r.Leap = LeapAdd
	} else {
		r.Leap = LeapNone
	}

	atomic.AddInt32(&r.Count, 1)
	atomic.StoreInt32(&r.Valid, 1)
	return true
}
