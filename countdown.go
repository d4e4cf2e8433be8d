/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Discussion is force-ended client side once this many seconds have elapsed.
const maxDiscussionSeconds = 600

type countdown struct {
	clock   clockwork.Clock
	ticker  clockwork.Ticker
	elapsed int
	ceiling int
}

func newCountdown(clock clockwork.Clock) *countdown {
	return &countdown{
		clock:   clock,
		ceiling: maxDiscussionSeconds,
	}
}

func (c *countdown) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}

	return c.ticker.Chan()
}

func (c *countdown) start() {
	c.stop()

	c.elapsed = 0
	c.ticker = c.clock.NewTicker(time.Second)
}

func (c *countdown) stop() {
	if c.ticker == nil {
		return
	}

	c.ticker.Stop()
	c.ticker = nil
}

func (c *countdown) running() bool {
	return c.ticker != nil
}

// tick advances the clock by one second. It returns the value to display and
// whether the ceiling was just crossed, in which case the countdown has
// already stopped itself.
func (c *countdown) tick() (shown time.Duration, expired bool) {
	shown = time.Duration(c.elapsed) * time.Second

	c.elapsed++

	if c.elapsed > c.ceiling {
		c.stop()

		return shown, true
	}

	return shown, false
}

func formatClock(d time.Duration) string {
	secs := int(d / time.Second)

	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
