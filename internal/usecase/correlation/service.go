package correlation

import (
	"context"
	"time"

	"ppesuite/internal/ports"
)

const (
	outcomeStoreName = "outcome_store"
	profileStoreName = "profile_store"
)

// Policy bounds how long an upload waits for the pipeline.
type Policy struct {
	Budget       time.Duration
	PollInterval time.Duration
	MaxBudget    time.Duration
}

// Progress reports a poll that found no outcome yet.
type Progress struct {
	ImageKey  string        `json:"image_key"`
	Attempt   int           `json:"attempt"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
}

// Clock is the time source for deadlines and poll sleeps.
type Clock interface {
	Now() time.Time
	// Sleep waits d or until ctx is done, whichever is first.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Service reconciles an uploaded image with the outcome the detection pipeline
// writes for it. It only reads from the stores.
type Service struct {
	outcomes ports.OutcomeReader
	profiles ports.ProfileReader
	blobs    ports.BlobStore
	policy   Policy
	clock    Clock
}

// NewService wires the correlator. blobs is optional and only used to read
// detection sidecars.
func NewService(outcomes ports.OutcomeReader, profiles ports.ProfileReader, blobs ports.BlobStore, policy Policy) *Service {
	return &Service{
		outcomes: outcomes,
		profiles: profiles,
		blobs:    blobs,
		policy:   policy,
		clock:    realClock{},
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(clock Clock) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}
