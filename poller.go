/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Poller owns the single repeating timer that drives snapshot fetches.
// It is not safe for concurrent use; the Syncer loop is its only caller.
type Poller struct {
	clock    clockwork.Clock
	log      zerolog.Logger
	ticker   clockwork.Ticker
	interval time.Duration
	paused   bool

	// number of times a ticker has been armed
	arms int
}

func newPoller(clock clockwork.Clock, logger zerolog.Logger) *Poller {
	return &Poller{
		clock: clock,
		log:   logger,
	}
}

// C delivers ticks while armed. A nil channel is returned when stopped,
// so a select on it simply never fires.
func (p *Poller) C() <-chan time.Time {
	if p.ticker == nil {
		return nil
	}

	return p.ticker.Chan()
}

func (p *Poller) start(phase Phase) {
	p.stop()

	interval := pollInterval(phase)
	if interval <= 0 {
		return
	}

	p.ticker = p.clock.NewTicker(interval)
	p.interval = interval
	p.arms++

	p.log.Debug().
		Stringer("phase", phase).
		Dur("interval", interval).
		Int("arms", p.arms).
		Msg("poller armed")
}

func (p *Poller) stop() {
	if p.ticker == nil {
		return
	}

	p.ticker.Stop()
	p.ticker = nil
	p.interval = 0
}

// restartIfIntervalChanged re-arms the ticker when next polls at a different
// cadence than the one currently armed for current.
func (p *Poller) restartIfIntervalChanged(current, next Phase) bool {
	if pollInterval(next) == pollInterval(current) {
		return false
	}

	p.start(next)

	return true
}

func (p *Poller) running() bool {
	return p.ticker != nil
}

func (p *Poller) pause() {
	p.paused = true
}

func (p *Poller) resume() {
	p.paused = false
}
