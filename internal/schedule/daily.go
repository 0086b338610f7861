// Package schedule fires the three daily contest hooks at fixed UTC wall-clock times.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ClockTime is a time of day in UTC.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// next returns the first occurrence of c strictly after t.
func (c ClockTime) next(t time.Time) time.Time {
	t = t.UTC()
	at := time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
	if !at.After(t) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// Event names one of the daily hooks.
type Event int

const (
	EventAnnounce Event = iota
	EventOpen
	EventReveal
)

func (e Event) String() string {
	switch e {
	case EventAnnounce:
		return "announce"
	case EventOpen:
		return "open"
	default:
		return "reveal"
	}
}

// Daily is the contest timetable.
type Daily struct {
	Announce ClockTime
	Open     ClockTime
	Reveal   ClockTime
}

// DefaultDaily is announce 18:57, open 19:00, reveal 23:00 UTC.
var DefaultDaily = Daily{
	Announce: ClockTime{Hour: 18, Minute: 57},
	Open:     ClockTime{Hour: 19},
	Reveal:   ClockTime{Hour: 23},
}

// Validate rejects timetables where two hooks share a time; the driver fires one hook per instant.
func (d Daily) Validate() error {
	if d.Announce == d.Open || d.Announce == d.Reveal || d.Open == d.Reveal {
		return fmt.Errorf("contest times must differ: announce %s, open %s, reveal %s", d.Announce, d.Open, d.Reveal)
	}
	return nil
}

// Next returns the earliest hook strictly after t. Ties go to the earlier event in the day's order.
func (d Daily) Next(t time.Time) (Event, time.Time) {
	event, at := EventAnnounce, d.Announce.next(t)
	if open := d.Open.next(t); open.Before(at) {
		event, at = EventOpen, open
	}
	if reveal := d.Reveal.next(t); reveal.Before(at) {
		event, at = EventReveal, reveal
	}
	return event, at
}

// NextReveal is the reveal deadline for a round opened at openedAt.
func (d Daily) NextReveal(openedAt time.Time) time.Time {
	return d.Reveal.next(openedAt)
}

// Hooks are the callbacks fired by Run. Nil hooks are skipped.
type Hooks struct {
	Announce func(ctx context.Context)
	Open     func(ctx context.Context)
	Reveal   func(ctx context.Context)
}

// Driver sleeps until each next hook and fires it. Hooks run on the driver goroutine.
type Driver struct {
	daily Daily
	log   zerolog.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewDriver(daily Daily, logger zerolog.Logger) *Driver {
	return NewDriverWithClock(daily, logger, time.Now, time.After)
}

// NewDriverWithClock allows tests to control time.
func NewDriverWithClock(daily Daily, logger zerolog.Logger, now func() time.Time, after func(time.Duration) <-chan time.Time) *Driver {
	return &Driver{daily: daily, log: logger, now: now, after: after}
}

// Run blocks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context, hooks Hooks) error {
	last := d.now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, at := d.daily.Next(last)
		wait := at.Sub(d.now())
		if wait < 0 {
			wait = 0
		}
		d.log.Debug().Stringer("event", event).Time("at", at).Dur("wait", wait).Msg("next contest event")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.after(wait):
		}

		d.log.Info().Stringer("event", event).Msg("contest event")
		switch event {
		case EventAnnounce:
			fire(ctx, hooks.Announce)
		case EventOpen:
			fire(ctx, hooks.Open)
		case EventReveal:
			fire(ctx, hooks.Reveal)
		}
		last = at
	}
}

func fire(ctx context.Context, hook func(context.Context)) {
	if hook != nil {
		hook(ctx)
	}
}
