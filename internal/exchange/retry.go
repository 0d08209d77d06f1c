package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/utils"
)

// Policy is a bounded retry policy with exponential backoff. One value is
// shared by every exchange call site instead of duplicating retry loops.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the exchange adapters' historical behavior:
// three attempts starting at two seconds, doubling, capped at one minute.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second, MaxDelay: time.Minute}
}

// Do runs fn up to MaxAttempts times. Fatal errors and context
// cancellation abort immediately; transient errors back off and retry.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	backoff := p.Delay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if IsFatal(err) || IsCanceled(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		utils.GetLogger().Printf("Exchange | %s attempt %d/%d failed: %v. Backing off for %v", op, attempt, p.MaxAttempts, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > p.MaxDelay {
			backoff = p.MaxDelay
		}
	}
	return fmt.Errorf("%s: all %d attempts failed: %w", op, p.MaxAttempts, err)
}
