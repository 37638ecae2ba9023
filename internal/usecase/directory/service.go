package directory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"ppesuite/internal/ports"
)

type Service struct {
	profiles    ports.ProfileStore
	blobs       ports.BlobStore
	photoPrefix string
	presignTTL  time.Duration
	now         func() time.Time
	newSuffix   func() string
}

func NewService(profiles ports.ProfileStore, blobs ports.BlobStore, photoPrefix string, presignTTL time.Duration) *Service {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &Service{
		profiles:    profiles,
		blobs:       blobs,
		photoPrefix: photoPrefix,
		presignTTL:  presignTTL,
		now:         time.Now,
		newSuffix: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
		},
	}
}
