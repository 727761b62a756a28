// Package demo replays a scripted sales call so the assistant can be shown
// without a microphone or a live prospect.
package demo

import (
	"context"
	"time"

	"github.com/MrWong99/closepath/pkg/types"
)

// DefaultInterval is the pause between scripted utterances.
const DefaultInterval = 4000 * time.Millisecond

// Ticker is the subset of [time.Ticker] the feed needs.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type stdTicker struct{ *time.Ticker }

func (t stdTicker) Chan() <-chan time.Time { return t.C }

// Option configures a [Feed].
type Option func(*Feed)

// WithInterval overrides [DefaultInterval].
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithTicker replaces the wall-clock ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(f *Feed) { f.newTicker = newTicker }
}

// WithScript replaces [Script].
func WithScript(script []types.Utterance) Option {
	return func(f *Feed) { f.script = script }
}

// Feed replays a script one entry per tick. Tick k delivers entry k and the
// tick after the last entry ends the feed, so a 10-entry script finishes on
// tick 11.
type Feed struct {
	script    []types.Utterance
	interval  time.Duration
	newTicker func(time.Duration) Ticker
}

// New returns a Feed over [Script].
func New(opts ...Option) *Feed {
	f := &Feed{
		script:   Script,
		interval: DefaultInterval,
		newTicker: func(d time.Duration) Ticker {
			return stdTicker{time.NewTicker(d)}
		},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Len returns the number of scripted entries.
func (f *Feed) Len() int { return len(f.script) }

// Run calls emit for each scripted entry in order and returns nil once the
// script is exhausted. It returns ctx.Err() when cancelled first; entries not
// yet emitted are then never delivered.
func (f *Feed) Run(ctx context.Context, emit func(types.Utterance)) error {
	t := f.newTicker(f.interval)
	defer t.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			if next >= len(f.script) {
				return nil
			}
			emit(f.script[next])
			next++
		}
	}
}
