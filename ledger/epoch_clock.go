// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// SlotTick is sent at each slot boundary
type SlotTick struct {
	Slot         uint64
	SlotStart    time.Time
	Epoch        uint64
	EpochSlot    uint64
	IsEpochStart bool
}

type EpochClockConfig struct {
	Logger *slog.Logger
	// SystemStart is the start time of slot 0
	SystemStart time.Time
	SlotLength  time.Duration
	// SlotsPerEpoch is the epoch length in slots
	SlotsPerEpoch uint64
	// FirstEpoch is the epoch number of slot 0
	FirstEpoch uint64
	// ClockTolerance is the lateness after a slot boundary that is logged as drift
	ClockTolerance time.Duration
}

func (c EpochClockConfig) validate() error {
	if c.SlotLength <= 0 {
		return errors.New("epoch clock: slot length must be positive")
	}
	if c.SlotsPerEpoch == 0 {
		return errors.New("epoch clock: slots per epoch must be positive")
	}
	return nil
}

// EpochClock ticks at slot boundaries of a fixed schedule and maps slots to
// epochs. The block producer drives block creation and epoch finalization
// from its ticks.
type EpochClock struct {
	config      EpochClockConfig
	subscribers []chan SlotTick
	mu          sync.RWMutex
	cancel      context.CancelFunc
	ctx         context.Context
	running     bool
	wg          sync.WaitGroup

	// For testing: allow injection of custom time source
	nowFunc func() time.Time
}

func NewEpochClock(config EpochClockConfig) (*EpochClock, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.ClockTolerance == 0 {
		config.ClockTolerance = 100 * time.Millisecond
	}
	if config.SystemStart.IsZero() {
		config.SystemStart = time.Now()
	}
	return &EpochClock{
		config:  config,
		nowFunc: time.Now,
	}, nil
}

// Start begins the tick loop in a goroutine
func (c *EpochClock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()
}

// Stop halts the tick loop and closes all subscriber channels
func (c *EpochClock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
	c.mu.Unlock()
}

// Subscribe returns a buffered channel of ticks. A slow subscriber misses
// ticks rather than blocking the clock.
func (c *EpochClock) Subscribe() <-chan SlotTick {
	ch := make(chan SlotTick, 1)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

func (c *EpochClock) Unsubscribe(ch <-chan SlotTick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			close(sub)
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			return
		}
	}
}

func (c *EpochClock) TimeToSlot(t time.Time) uint64 {
	if t.Before(c.config.SystemStart) {
		return 0
	}
	return uint64(t.Sub(c.config.SystemStart) / c.config.SlotLength)
}

func (c *EpochClock) SlotToTime(slot uint64) time.Time {
	return c.config.SystemStart.Add(time.Duration(slot) * c.config.SlotLength)
}

func (c *EpochClock) SlotToEpoch(slot uint64) uint64 {
	return c.config.FirstEpoch + slot/c.config.SlotsPerEpoch
}

func (c *EpochClock) CurrentSlot() uint64 {
	return c.TimeToSlot(c.nowFunc())
}

func (c *EpochClock) CurrentEpoch() uint64 {
	return c.SlotToEpoch(c.CurrentSlot())
}

// TimeUntilNextEpoch returns the duration until the next epoch boundary
func (c *EpochClock) TimeUntilNextEpoch() time.Duration {
	slot := c.CurrentSlot()
	next := (slot/c.config.SlotsPerEpoch + 1) * c.config.SlotsPerEpoch
	return c.SlotToTime(next).Sub(c.nowFunc())
}

func (c *EpochClock) buildTick(slot uint64, slotStart time.Time) SlotTick {
	epochSlot := slot % c.config.SlotsPerEpoch
	return SlotTick{
		Slot:         slot,
		SlotStart:    slotStart,
		Epoch:        c.SlotToEpoch(slot),
		EpochSlot:    epochSlot,
		IsEpochStart: epochSlot == 0,
	}
}

func (c *EpochClock) run() {
	defer c.wg.Done()
	logger := c.config.Logger.With("component", "epoch_clock")
	for {
		now := c.nowFunc()
		nextSlot := c.TimeToSlot(now) + 1
		nextSlotTime := c.SlotToTime(nextSlot)
		if sleep := nextSlotTime.Sub(now); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-c.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
		}
		actualNow := c.nowFunc()
		actualSlot := c.TimeToSlot(actualNow)
		if drift := actualNow.Sub(nextSlotTime); drift > c.config.ClockTolerance {
			logger.Warn(
				"epoch clock drift detected",
				"expected_slot", nextSlot,
				"actual_slot", actualSlot,
				"drift", drift,
			)
		}
		c.emitTick(c.buildTick(actualSlot, actualNow))
	}
}

func (c *EpochClock) emitTick(tick SlotTick) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- tick:
		default:
			c.config.Logger.Debug(
				"slot tick dropped for slow subscriber",
				"component", "epoch_clock",
				"slot", tick.Slot,
			)
		}
	}
}
