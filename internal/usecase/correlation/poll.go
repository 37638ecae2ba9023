package correlation

import (
	"context"
	"time"
)

type pollOutcome int

const (
	pollTimedOut pollOutcome = iota
	pollMatched
)

func (o pollOutcome) String() string {
	if o == pollMatched {
		return "matched"
	}
	return "timed_out"
}

// pollUntil calls probe until it reports a match or the deadline passes. Sleeps
// are clamped to the time left, so the last wait ends at the deadline. A probe
// or sleep error stops polling and is returned as is.
func pollUntil(
	ctx context.Context,
	clock Clock,
	deadline time.Time,
	interval time.Duration,
	probe func(ctx context.Context) (bool, error),
) (pollOutcome, error) {
	for clock.Now().Before(deadline) {
		matched, err := probe(ctx)
		if err != nil {
			return pollTimedOut, err
		}
		if matched {
			return pollMatched, nil
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			break
		}
		if err := clock.Sleep(ctx, min(interval, remaining)); err != nil {
			return pollTimedOut, err
		}
	}
	return pollTimedOut, nil
}
