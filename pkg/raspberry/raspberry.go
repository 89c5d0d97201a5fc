// Package raspberry is the watcher for gpio ports.
package raspberry

import (
	"fmt"
	"time"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
	"golang.org/x/sys/unix"

	"dcf77clock/pkg/port"
)

var ErrInvalidParam = fmt.Errorf("invalid parameters")

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	gpiodChip *gpiod.Chip

	// monoEpoch/wallEpoch anchor gpiod's boot-relative event timestamps
	// to a wall-clock reading taken at the same instant, so every event
	// derived from them can carry both a Mono duration (for interval
	// arithmetic) and a Wall time (for publishing as a receive time).
	monoEpoch time.Duration
	wallEpoch time.Time
}

// Line represents a single requested line.
type Line struct {
	gpiodLine *gpiod.Line
	chip      *Chip

	// C delivers debounced edge changes.
	C chan port.Event

	// quit terminates the debounce goroutine.
	quit chan struct{}
}

// Open opens a GPIO character device and initializes the chip.
func Open() (*Chip, error) {
	c, err := gpiod.NewChip("gpiochip0")
	if err != nil {
		return nil, err
	}
	var mono unix.Timespec
	if err = unix.ClockGettime(unix.CLOCK_MONOTONIC, &mono); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Chip{
		gpiodChip: c,
		monoEpoch: time.Duration(mono.Nano()),
		wallEpoch: time.Now(),
	}, nil
}

// wallAt converts a gpiod event's boot-relative timestamp to a wall
// clock reading, anchored at Open() time.
func (c *Chip) wallAt(ts time.Duration) time.Time {
	return c.wallEpoch.Add(ts - c.monoEpoch)
}

// NewLine requests control of a single line on a chip, watches it for
// edge changes and delivers debounced changes on the returned Line's C
// channel. There can only be one watcher on a line at a time.
func (c *Chip) NewLine(gpio int, terminator string, debounceTime time.Duration) (*Line, error) {
	var err error
	eventChan := make(chan gpiod.LineEvent, 100)
	line := &Line{C: make(chan port.Event), chip: c, quit: make(chan struct{})}

	handler := func(evt gpiod.LineEvent) {
		eventChan <- evt
	}

	// If an event is received, wait the specified interval before
	// calling the handler. If another event is received before the
	// interval has passed, store it and reset the timer.
	go func(interval time.Duration, input chan gpiod.LineEvent) {
		var item gpiod.LineEvent
		var lastEvent gpiod.LineEventType = -1

		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-line.quit:
				return
			case item = <-input:
				timer.Reset(interval)
			case <-timer.C:
				if item.Type == lastEvent {
					continue
				}
				lastEvent = item.Type

				mono := time.Duration(item.Timestamp)
				ev := port.Event{Mono: mono, Wall: c.wallAt(mono)}
				switch item.Type {
				case gpiod.LineEventFallingEdge:
					ev.Type = port.FallingEdge
				case gpiod.LineEventRisingEdge:
					ev.Type = port.RisingEdge
				default:
					debug.ErrorLog.Printf("invalid pin value: %v", item.Type)
					continue
				}
				line.C <- ev
			}
		}
	}(debounceTime, eventChan)

	switch terminator {
	case "pullup":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
	case "pulldown":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullDown)
	case "none":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput)
	default:
		return nil, ErrInvalidParam
	}

	return line, err
}

// Close releases the Chip.
//
// It does not release any lines which may be requested - they must be
// closed independently.
func (c *Chip) Close() error {
	return c.gpiodChip.Close()
}

// Close releases all resources held by the requested line.
//
// Note that this includes waiting for any running event handler to
// return. As a consequence Close must not be called from the context of
// the event handler - it should be called from a different goroutine.
func (l *Line) Close() error {
	if err := l.gpiodLine.Close(); err != nil {
		return err
	}
	close(l.quit)
	close(l.C)
	return nil
}
