// Package port holds the definition of the electrical edge events a
// receiver line produces.
package port

import "time"

// EventType indicates the type of change to the line active state.
//
// Note that for active low lines a low line level results in a high active
// state.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates an inactive to active event (low to high).
	RisingEdge
	// FallingEdge indicates an active to inactive event (high to low).
	FallingEdge
)

// Event is a single electrical edge as reported by the GPIO line watcher.
//
// Mono is a monotonic (non-adjusting) timestamp and drives all interval
// arithmetic; Wall is a wall-clock timestamp, carried through only so it
// can be published as a receive time. pkg/raspberry watches every
// configured pin on both edges, so a two-pin wiring produces both edge
// types from each pin, the same as a single-pin wiring; it has no
// rising-only mode.
type Event struct {
	// Mono is the monotonic timestamp the edge was detected at.
	Mono time.Duration
	// Wall is the wall-clock time the edge was detected at.
	Wall time.Time
	// Type is the kind of state change this event represents.
	Type EventType
}

// StateType is the logical level of a line, as seen after classification.
type StateType int

const (
	// High indicates a logical 1.
	High StateType = 1
	// Low indicates a logical 0.
	Low StateType = 0
	// Invalid indicates an unknown or invalid state.
	Invalid StateType = -1
)
