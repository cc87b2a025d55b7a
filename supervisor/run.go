package supervisor

import (
	"context"
	"fmt"
	"time"
)

// activeTickInterval and idleTickInterval are the two cadences Run ticks
// at, matching spec.md §5: the bridge ticks quickly while any TCP peer is
// connected (so forwarding/synthesis stay responsive) and falls back to a
// slow idle cadence otherwise, mirroring the original poller's dynamic
// select timeout.
const (
	activeTickInterval = 100 * time.Millisecond
	idleTickInterval   = 10 * time.Second
)

// Run drives Tick forever on the active/idle cadence until ctx is
// cancelled (returning nil) or the bus connection is lost for good
// (returning ErrFatal, wrapping the underlying cause — spec.md §7's
// "Fatal" taxonomy entry). cmd/nmeabridge exits the process with code 2
// when Run returns a non-nil, non-ctx-cancellation error.
func (s *Supervisor) Run(ctx context.Context) error {
	timer := time.NewTimer(activeTickInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			s.Tick(s.clock.Now())
			if s.fatal != nil {
				return fmt.Errorf("%w: %v", ErrFatal, s.fatal)
			}
			timer.Reset(s.nextInterval())
		}
	}
}

func (s *Supervisor) nextInterval() time.Duration {
	if s.tcp.AnyConnected() {
		return activeTickInterval
	}
	return idleTickInterval
}
