package ports

import "context"

// EventPublisher fans domain events out to other systems. Publishing is best
// effort; callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}
