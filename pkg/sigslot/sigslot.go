// Package sigslot holds TimeInfo, the monotonic/wall timestamp pair the
// classifier works on, and Slot, a single-producer/single-consumer
// seqlock for handing the latest TimeInfo from an edge-handler context
// to a polling reader.
//
// A Slot lets the writer publish with two atomic sequence increments and
// the reader load it back with a retry-on-tear read, instead of a mutex.
// pkg/app does not use Slot: receiver edges reach the decoder over
// channels from pkg/raspberry.
package sigslot

import (
	"sync/atomic"
	"time"
)

// TimeInfo pairs a monotonic timestamp (drives interval arithmetic) with
// a wall-clock timestamp (used only when publishing a receive time). A
// zero Mono denotes "unset".
type TimeInfo struct {
	Mono time.Duration
	Wall time.Time
}

// IsZero reports whether t is the unset value.
func (t TimeInfo) IsZero() bool {
	return t.Mono == 0
}

// Add returns t advanced by d on both the monotonic and wall clocks.
func (t TimeInfo) Add(d time.Duration) TimeInfo {
	return TimeInfo{Mono: t.Mono + d, Wall: t.Wall.Add(d)}
}

// Sub returns t.Mono - u.Mono.
func (t TimeInfo) Sub(u TimeInfo) time.Duration {
	return t.Mono - u.Mono
}

// Slot holds the most recently published TimeInfo behind a seqlock: seq
// is even when the value is stable, odd while Set is writing it.
type Slot struct {
	seq  uint32
	mono int64
	wall time.Time
}

// Set publishes t. Called only from the edge-handler context.
func (s *Slot) Set(t TimeInfo) {
	atomic.AddUint32(&s.seq, 1) // now odd: writer in progress
	s.mono = int64(t.Mono)
	s.wall = t.Wall
	atomic.AddUint32(&s.seq, 1) // now even: value stable
}

// Get reads the published TimeInfo, retrying if a write was observed
// in progress or in flight during the read.
func (s *Slot) Get() TimeInfo {
	for {
		seq1 := atomic.LoadUint32(&s.seq)
		if seq1&1 != 0 {
			continue
		}
		mono := s.mono
		wall := s.wall
		seq2 := atomic.LoadUint32(&s.seq)
		if seq1 == seq2 {
			return TimeInfo{Mono: time.Duration(mono), Wall: wall}
		}
	}
}
