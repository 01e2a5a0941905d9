// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// sampler is the surface the pacing loop drives. Tracker and
// TrackerArray both satisfy it.
type sampler interface {
	Read() time.Duration
	Write() error
}

// loop owns the sampling cadence: read, sleep out the rest of the
// interval, optionally write on a wall-clock deadline. It also holds
// the state of the background goroutine started by Start.
type loop struct {
	logger        *slog.Logger
	clock         clock.WithTicker
	interval      time.Duration
	writeInterval time.Duration

	stateMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// readAndSleep samples once and sleeps out the remainder of the
// interval. A read that overruns the interval logs a warning and skips
// the sleep.
func (l *loop) readAndSleep(ctx context.Context, s sampler) {
	elapsed := s.Read()
	if elapsed < l.interval {
		select {
		case <-l.clock.After(l.interval - elapsed):
		case <-ctx.Done():
		}
		return
	}
	l.logger.Warn("reading took longer than the read interval; consider increasing it",
		"duration", elapsed, "interval", l.interval)
}

// run samples until ctx is done. With periodicWrites, the sampler is
// flushed to its output every writeInterval of wall-clock time.
// Cancellation is a normal exit; a failed write is not.
func (l *loop) run(ctx context.Context, s sampler, periodicWrites bool) error {
	writes := periodicWrites && l.writeInterval > 0
	var nextWrite time.Time
	if writes {
		nextWrite = l.clock.Now().Add(l.writeInterval)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		l.readAndSleep(ctx, s)

		if !writes {
			continue
		}
		if now := l.clock.Now(); !now.Before(nextWrite) {
			if err := s.Write(); err != nil {
				return err
			}
			nextWrite = now.Add(l.writeInterval)
		}
	}
}

// start launches the read loop in a background goroutine. Reports
// whether a new loop was started; false means one is already running.
func (l *loop) start(s sampler) bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	if l.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		// no writes in background mode; Write errors cannot occur
		_ = l.run(ctx, s, false)
	}()
	return true
}

// stop cancels the background loop and waits for it to finish.
// Reports whether a loop was running.
func (l *loop) stop() bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	if l.cancel == nil {
		return false
	}

	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
	return true
}
