package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/metrics"
)

// Correlate waits up to budget for the pipeline to write an outcome whose
// LastImageKey equals imageKey, then joins it with the employee profile.
//
// A zero budget or pollInterval falls back to the configured policy. Running
// out of budget is not an error: the result has Status PendingOrCompliant and
// no employee. Store failures come back as *compliance.InfrastructureError;
// cancellation of ctx comes back as the context error.
func (s *Service) Correlate(ctx context.Context, imageKey string, budget time.Duration, pollInterval time.Duration) (compliance.DisplayResult, error) {
	return s.CorrelateWithProgress(ctx, imageKey, budget, pollInterval, nil)
}

// CorrelateWithProgress is Correlate with a callback after every poll that
// found nothing. observe runs on the polling goroutine and must not block.
func (s *Service) CorrelateWithProgress(
	ctx context.Context,
	imageKey string,
	budget time.Duration,
	pollInterval time.Duration,
	observe func(Progress),
) (compliance.DisplayResult, error) {
	if ctx == nil {
		return compliance.DisplayResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return compliance.DisplayResult{}, errs.Wrap(err, "check context")
	}
	if s.outcomes == nil {
		return compliance.DisplayResult{}, errors.New("outcome store is required")
	}
	if s.profiles == nil {
		return compliance.DisplayResult{}, errors.New("profile store is required")
	}

	imageKey = strings.TrimSpace(imageKey)
	if imageKey == "" {
		return compliance.DisplayResult{}, compliance.ErrImageKeyRequired
	}

	budget, pollInterval, err := s.resolvePolicy(budget, pollInterval)
	if err != nil {
		return compliance.DisplayResult{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.correlation"),
		slog.String("image_key", imageKey),
	)

	started := s.clock.Now()
	deadline := started.Add(budget)
	logging.Debug(logCtx, "correlation polling", slog.Duration("budget", budget), slog.Duration("poll_interval", pollInterval))

	var candidates []compliance.OutcomeRecord
	attempts := 0
	outcome, err := pollUntil(ctx, s.clock, deadline, pollInterval, func(ctx context.Context) (bool, error) {
		attempts++
		metrics.IncPollAttempt()
		found, err := s.outcomes.FindByImageKey(ctx, imageKey)
		if err != nil {
			return false, err
		}
		candidates = found
		if len(found) == 0 && observe != nil {
			now := s.clock.Now()
			observe(Progress{
				ImageKey:  imageKey,
				Attempt:   attempts,
				Elapsed:   now.Sub(started),
				Remaining: max(deadline.Sub(now), 0),
			})
		}
		return len(found) > 0, nil
	})
	if err != nil {
		return s.fail(logCtx, imageKey, started, outcomeStoreName, "find_by_image_key", err)
	}

	if outcome == pollTimedOut {
		result := s.attachDetection(logCtx, compliance.PendingResult(imageKey))
		elapsed := s.clock.Now().Sub(started)
		metrics.ObserveCorrelation(elapsed, metrics.OutcomeTimedOut)
		logging.Info(logCtx, "correlation timed out", slog.Duration("elapsed", elapsed))
		return result, nil
	}

	chosen, ambiguous, _ := compliance.SelectLatest(candidates)
	if ambiguous {
		metrics.IncAnomaly(metrics.AnomalyMultipleMatches)
		logging.Warn(logCtx, "multiple outcomes reference the same image",
			slog.String("anomaly", metrics.AnomalyMultipleMatches),
			slog.Int("candidates", len(candidates)),
			slog.String("chosen_employee_id", chosen.EmployeeID),
		)
	}

	items, malformed := compliance.ParseMissingItems(chosen.LastMissingItems)
	if malformed || chosen.MissingItemsMalformed {
		items = []string{}
		metrics.IncAnomaly(metrics.AnomalyMalformedItems)
		logging.Warn(logCtx, "missing items could not be read",
			slog.String("anomaly", metrics.AnomalyMalformedItems),
			slog.String("employee_id", chosen.EmployeeID),
		)
	}

	profile, found, err := s.profiles.Get(ctx, chosen.EmployeeID)
	if err != nil {
		return s.fail(logCtx, imageKey, started, profileStoreName, "get", err)
	}
	if !found {
		logging.Info(logCtx, "no profile for matched employee", slog.String("employee_id", chosen.EmployeeID))
	}

	result := compliance.ResolveResult(imageKey, chosen, profile, found, items)
	result = s.attachDetection(logCtx, result)

	elapsed := s.clock.Now().Sub(started)
	metrics.ObserveCorrelation(elapsed, metrics.OutcomeMatched)
	logging.Info(logCtx, "correlation matched",
		slog.String("employee_id", chosen.EmployeeID),
		slog.String("status", string(result.Status)),
		slog.Int("violations_this_image", result.ViolationsThisImage),
		slog.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (s *Service) resolvePolicy(budget time.Duration, pollInterval time.Duration) (time.Duration, time.Duration, error) {
	if budget == 0 {
		budget = s.policy.Budget
	}
	if pollInterval == 0 {
		pollInterval = s.policy.PollInterval
	}
	if budget <= 0 {
		return 0, 0, compliance.ErrInvalidBudget
	}
	if pollInterval <= 0 {
		return 0, 0, compliance.ErrInvalidPollInterval
	}
	if s.policy.MaxBudget > 0 && budget > s.policy.MaxBudget {
		return 0, 0, fmt.Errorf("%w: %s > %s", compliance.ErrBudgetTooLarge, budget, s.policy.MaxBudget)
	}
	return budget, pollInterval, nil
}

func (s *Service) fail(ctx context.Context, imageKey string, started time.Time, store string, op string, cause error) (compliance.DisplayResult, error) {
	failed := compliance.DisplayResult{
		MissingItems:   []string{},
		SourceImageKey: imageKey,
		Phase:          compliance.PhaseFailed,
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logging.Info(ctx, "correlation cancelled", slog.Any("err", errs.Loggable(ctxErr)))
		return failed, errs.Wrap(ctxErr, "stop polling")
	}

	metrics.ObserveCorrelation(s.clock.Now().Sub(started), metrics.OutcomeFailed)
	infraErr := compliance.NewInfrastructureError(store, op, cause)
	logging.Error(ctx, "correlation failed", slog.String("store", store), slog.Any("err", errs.Loggable(infraErr)))
	return failed, infraErr
}

// attachDetection copies sidecar data onto result when the pipeline left any.
// Sidecar problems are logged and ignored.
func (s *Service) attachDetection(ctx context.Context, result compliance.DisplayResult) compliance.DisplayResult {
	if s.blobs == nil || ctx.Err() != nil {
		return result
	}

	for _, key := range compliance.DetectionSidecarKeys(result.SourceImageKey) {
		data, err := s.blobs.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, compliance.ErrBlobNotFound) {
				logging.Warn(ctx, "read detection sidecar failed", slog.String("sidecar_key", key), slog.Any("err", errs.Loggable(err)))
			}
			continue
		}

		var details compliance.DetectionDetails
		if err := json.Unmarshal(data, &details); err != nil {
			logging.Warn(ctx, "decode detection sidecar failed", slog.String("sidecar_key", key), slog.Any("err", errs.Loggable(err)))
			continue
		}
		return result.WithDetection(details)
	}
	return result
}
