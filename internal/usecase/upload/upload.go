package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/metrics"
)

// Store writes the image under a fresh key. The key is only returned once the
// blob write succeeded.
func (s *Service) Store(ctx context.Context, input Input) (compliance.UploadRecord, error) {
	if ctx == nil {
		return compliance.UploadRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return compliance.UploadRecord{}, errs.Wrap(err, "check context")
	}
	if s.blobs == nil {
		return compliance.UploadRecord{}, errors.New("blob store is required")
	}

	record, err := s.store(ctx, input)
	metrics.ObserveUpload(err == nil)
	if err == nil {
		s.publish(ctx, SubjectUploadStored, record)
	}
	return record, err
}

func (s *Service) store(ctx context.Context, input Input) (compliance.UploadRecord, error) {
	if len(input.Body) == 0 {
		return compliance.UploadRecord{}, compliance.ErrEmptyUpload
	}

	now := s.now().UTC()
	key, contentType, err := compliance.NewImageKey(s.prefix, input.Filename, now, s.newSuffix())
	if err != nil {
		return compliance.UploadRecord{}, err
	}

	if sniffed := http.DetectContentType(input.Body); sniffed != contentType {
		return compliance.UploadRecord{}, fmt.Errorf("%w: content is %s", compliance.ErrUnsupportedImageType, sniffed)
	}

	if err := s.blobs.Put(ctx, key, bytes.NewReader(input.Body), int64(len(input.Body)), contentType); err != nil {
		return compliance.UploadRecord{}, compliance.NewInfrastructureError("blob_store", "put", err)
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.upload")),
		"image uploaded",
		slog.String("image_key", key),
		slog.Int("size", len(input.Body)),
	)

	return compliance.UploadRecord{
		ImageKey:    key,
		ContentType: contentType,
		Size:        int64(len(input.Body)),
		UploadedAt:  now,
	}, nil
}

// UploadAndCorrelate stores the image and waits for its result. When the
// upload succeeded but correlation failed, the upload record is still returned
// with the error.
func (s *Service) UploadAndCorrelate(ctx context.Context, input Input) (Output, error) {
	if s.correlator == nil {
		return Output{}, errors.New("correlator is required")
	}

	record, err := s.Store(ctx, input)
	if err != nil {
		return Output{}, err
	}

	result, err := s.correlator.Correlate(ctx, record.ImageKey, input.Budget, input.PollInterval)
	out := Output{Upload: record, Result: result}
	if err == nil {
		s.publish(ctx, SubjectCorrelationCompleted, out)
	}
	return out, err
}

func (s *Service) publish(ctx context.Context, subject string, event any) {
	if s.publisher == nil {
		return
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.upload"), slog.String("subject", subject))
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Warn(logCtx, "encode event failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		logging.Warn(logCtx, "publish event failed", slog.Any("err", errs.Loggable(err)))
	}
}
