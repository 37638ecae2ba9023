package upload

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/ports"
)

// Correlator resolves an uploaded key into a result.
type Correlator interface {
	Correlate(ctx context.Context, imageKey string, budget time.Duration, pollInterval time.Duration) (compliance.DisplayResult, error)
}

// Subjects published after each step. They are relative to the publisher's prefix.
const (
	SubjectUploadStored         = "upload.stored"
	SubjectCorrelationCompleted = "correlation.completed"
)

type Service struct {
	blobs      ports.BlobStore
	correlator Correlator
	publisher  ports.EventPublisher
	prefix     string
	now        func() time.Time
	newSuffix  func() string
}

func NewService(blobs ports.BlobStore, correlator Correlator, uploadPrefix string) *Service {
	return &Service{
		blobs:      blobs,
		correlator: correlator,
		prefix:     compliance.NormalizePrefix(uploadPrefix),
		now:        time.Now,
		newSuffix:  randomSuffix,
	}
}

// WithPublisher announces stored uploads and finished correlations.
func (s *Service) WithPublisher(publisher ports.EventPublisher) *Service {
	s.publisher = publisher
	return s
}

type Input struct {
	Filename     string
	Body         []byte
	Budget       time.Duration
	PollInterval time.Duration
}

type Output struct {
	Upload compliance.UploadRecord  `json:"upload"`
	Result compliance.DisplayResult `json:"result"`
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
