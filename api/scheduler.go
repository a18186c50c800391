/*
scheduler.go - Background hold sweeper

PURPOSE:
  Periodically purges expired holds. The protocol is correct without this:
  every read filters holds by expiry, so an expired row is already invisible.
  The sweep only keeps the holds table from accumulating dead rows.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Delegates to reservation.Manager.Sweep (which calls PurgeExpired)
  - Safe to run concurrently with reserve/complete traffic

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 5 minutes)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewHoldSweeper(mgr)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - reservation/manager.go: Sweep implementation
  - handlers.go: SweepHolds endpoint (manual sweep)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/reservation"
)

// HoldSweeper purges expired holds on a timer.
type HoldSweeper struct {
	Reservations  *reservation.Manager
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHoldSweeper creates a new sweeper.
func NewHoldSweeper(mgr *reservation.Manager) *HoldSweeper {
	return &HoldSweeper{
		Reservations:  mgr,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (hs *HoldSweeper) Start() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if !hs.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	hs.ticker = time.NewTicker(hs.CheckInterval)
	hs.wg.Add(1)

	go hs.run()

	log.Printf("[Sweeper] Started with check interval: %v", hs.CheckInterval)
}

// Stop stops the sweeper.
func (hs *HoldSweeper) Stop() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.ticker != nil {
		hs.ticker.Stop()
		close(hs.stop)
		hs.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (hs *HoldSweeper) run() {
	defer hs.wg.Done()

	// Run immediately on start
	hs.sweep()

	for {
		select {
		case <-hs.ticker.C:
			hs.sweep()
		case <-hs.stop:
			return
		}
	}
}

func (hs *HoldSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := hs.Reservations.Sweep(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error purging holds: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Sweeper] Purged %d expired holds", n)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (hs *HoldSweeper) RunNow() {
	hs.sweep()
}
