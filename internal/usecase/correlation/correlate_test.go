package correlation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"ppesuite/internal/domain/compliance"
)

type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

// fakeOutcomes exposes each record once the clock passes its visibleAt.
type fakeOutcomes struct {
	clock   *fakeClock
	records []compliance.OutcomeRecord
	visible []time.Time
	err     error
	calls   int
}

func (f *fakeOutcomes) add(rec compliance.OutcomeRecord, visibleAt time.Time) {
	f.records = append(f.records, rec)
	f.visible = append(f.visible, visibleAt)
}

func (f *fakeOutcomes) FindByImageKey(_ context.Context, imageKey string) ([]compliance.OutcomeRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []compliance.OutcomeRecord
	for i, rec := range f.records {
		if rec.LastImageKey == imageKey && !f.clock.Now().Before(f.visible[i]) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeOutcomes) Get(context.Context, string) (compliance.OutcomeRecord, bool, error) {
	return compliance.OutcomeRecord{}, false, nil
}

func (f *fakeOutcomes) List(context.Context) ([]compliance.OutcomeRecord, error) {
	return f.records, nil
}

type fakeProfiles struct {
	items map[string]compliance.ProfileRecord
	err   error
}

func (f *fakeProfiles) Get(_ context.Context, id string) (compliance.ProfileRecord, bool, error) {
	if f.err != nil {
		return compliance.ProfileRecord{}, false, f.err
	}
	p, ok := f.items[id]
	return p, ok, nil
}

func (f *fakeProfiles) List(context.Context) ([]compliance.ProfileRecord, error) {
	return nil, nil
}

type fakeBlobs struct {
	items map[string][]byte
	err   error
}

func (f *fakeBlobs) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (f *fakeBlobs) Get(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", compliance.ErrBlobNotFound, key)
	}
	return data, nil
}

func (f *fakeBlobs) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "/blobs/" + key, nil
}

type fixture struct {
	clock    *fakeClock
	outcomes *fakeOutcomes
	profiles *fakeProfiles
	blobs    *fakeBlobs
	svc      *Service
}

func newFixture() *fixture {
	clock := newFakeClock()
	f := &fixture{
		clock:    clock,
		outcomes: &fakeOutcomes{clock: clock},
		profiles: &fakeProfiles{items: map[string]compliance.ProfileRecord{
			"emp07": {EmployeeID: "emp07", DisplayName: "Jordan Alvarez", Department: "Manufacturing", Site: "Plant 3"},
		}},
		blobs: &fakeBlobs{items: map[string][]byte{}},
	}
	f.svc = NewService(f.outcomes, f.profiles, f.blobs, Policy{
		Budget:       25 * time.Second,
		PollInterval: 2 * time.Second,
		MaxBudget:    2 * time.Minute,
	}).WithClock(clock)
	return f
}

func TestCorrelateTimesOutWithoutMatch(t *testing.T) {
	f := newFixture()
	start := f.clock.Now()

	got, err := f.svc.Correlate(context.Background(), "uploads/123-abc.png", 25*time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if got.Status != compliance.StatusPendingOrCompliant || got.EmployeeID != nil || got.CumulativeViolationCount != nil {
		t.Fatalf("Correlate() = %+v", got)
	}
	if got.Phase != compliance.PhaseTimedOut || got.SourceImageKey != "uploads/123-abc.png" || len(got.MissingItems) != 0 {
		t.Fatalf("Correlate() = %+v", got)
	}

	elapsed := f.clock.Now().Sub(start)
	if elapsed < 23*time.Second || elapsed > 27*time.Second {
		t.Fatalf("elapsed = %s, want within [23s, 27s]", elapsed)
	}
	if f.outcomes.calls != 13 {
		t.Fatalf("polls = %d, want 13", f.outcomes.calls)
	}
	if last := f.clock.sleeps[len(f.clock.sleeps)-1]; last != time.Second {
		t.Fatalf("last sleep = %s, want clamped to 1s", last)
	}
}

func TestCorrelateDefaultsToPolicy(t *testing.T) {
	f := newFixture()
	start := f.clock.Now()
	if _, err := f.svc.Correlate(context.Background(), "uploads/none.png", 0, 0); err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if elapsed := f.clock.Now().Sub(start); elapsed != 25*time.Second {
		t.Fatalf("elapsed = %s, want 25s", elapsed)
	}
}

func TestCorrelateMatchAppearingLater(t *testing.T) {
	f := newFixture()
	start := f.clock.Now()
	f.outcomes.add(compliance.OutcomeRecord{
		EmployeeID:               "emp07",
		CumulativeViolationCount: 4,
		LastMissingItems:         "No Helmet, No Vest",
		LastImageKey:             "uploads/123-abc.png",
		LastUpdatedAt:            "2025-03-01T10:00:06Z",
	}, start.Add(6*time.Second))

	got, err := f.svc.Correlate(context.Background(), "uploads/123-abc.png", 25*time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if got.Status != compliance.StatusNonCompliant || got.ViolationsThisImage != 2 {
		t.Fatalf("Correlate() status=%s violations=%d", got.Status, got.ViolationsThisImage)
	}
	if got.CumulativeViolationCount == nil || *got.CumulativeViolationCount != 4 {
		t.Fatalf("CumulativeViolationCount = %v", got.CumulativeViolationCount)
	}
	if got.EmployeeID == nil || *got.EmployeeID != "emp07" || got.DisplayName != "Jordan Alvarez" || got.Site != "Plant 3" {
		t.Fatalf("Correlate() = %+v", got)
	}
	if got.MissingItems[0] != "No Helmet" || got.MissingItems[1] != "No Vest" {
		t.Fatalf("MissingItems = %#v", got.MissingItems)
	}
	if elapsed := f.clock.Now().Sub(start); elapsed != 6*time.Second {
		t.Fatalf("elapsed = %s, want 6s", elapsed)
	}
	if f.outcomes.calls != 4 {
		t.Fatalf("polls = %d, want 4", f.outcomes.calls)
	}
}

func TestCorrelateEmptyMissingItemsIsCompliant(t *testing.T) {
	f := newFixture()
	f.outcomes.add(compliance.OutcomeRecord{
		EmployeeID:               "emp07",
		CumulativeViolationCount: 4,
		LastMissingItems:         "",
		LastImageKey:             "uploads/9-ff.jpg",
	}, f.clock.Now())

	got, err := f.svc.Correlate(context.Background(), "uploads/9-ff.jpg", 0, 0)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if got.Status != compliance.StatusCompliant || got.ViolationsThisImage != 0 {
		t.Fatalf("Correlate() = %+v", got)
	}
	if got.MissingItems == nil || len(got.MissingItems) != 0 {
		t.Fatalf("MissingItems = %#v, want empty list", got.MissingItems)
	}
}

func TestCorrelateMissingProfileUsesPlaceholders(t *testing.T) {
	f := newFixture()
	f.outcomes.add(compliance.OutcomeRecord{
		EmployeeID:       "emp99",
		LastMissingItems: "No Gloves",
		LastImageKey:     "uploads/1-aa.png",
	}, f.clock.Now())

	got, err := f.svc.Correlate(context.Background(), "uploads/1-aa.png", 0, 0)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if got.DisplayName != "emp99" || got.Department != compliance.Placeholder || got.Site != compliance.Placeholder {
		t.Fatalf("Correlate() = %+v", got)
	}
	if got.Status != compliance.StatusNonCompliant {
		t.Fatalf("Status = %s", got.Status)
	}
}

func TestCorrelateMultipleMatchesPicksLatest(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		f := newFixture()
		older := compliance.OutcomeRecord{EmployeeID: "emp07", LastMissingItems: "No Helmet", LastImageKey: "uploads/5-ab.png", LastUpdatedAt: "2025-03-01T10:00:00Z"}
		newer := compliance.OutcomeRecord{EmployeeID: "emp01", LastMissingItems: "", LastImageKey: "uploads/5-ab.png", LastUpdatedAt: "2025-03-01T10:00:09Z"}
		if reversed {
			older, newer = newer, older
		}
		f.outcomes.add(older, f.clock.Now())
		f.outcomes.add(newer, f.clock.Now())

		for run := 0; run < 2; run++ {
			got, err := f.svc.Correlate(context.Background(), "uploads/5-ab.png", 0, 0)
			if err != nil {
				t.Fatalf("Correlate() error = %v", err)
			}
			if got.EmployeeID == nil || *got.EmployeeID != "emp01" || got.Status != compliance.StatusCompliant {
				t.Fatalf("Correlate(reversed=%v run=%d) = %+v", reversed, run, got)
			}
		}
	}
}

func TestCorrelateProfileStoreFailure(t *testing.T) {
	f := newFixture()
	f.profiles.err = errors.New("dial tcp: connection refused")
	f.outcomes.add(compliance.OutcomeRecord{EmployeeID: "emp07", LastImageKey: "uploads/1-aa.png"}, f.clock.Now())

	got, err := f.svc.Correlate(context.Background(), "uploads/1-aa.png", 0, 0)
	if !errors.Is(err, compliance.ErrInfrastructure) {
		t.Fatalf("Correlate() error = %v, want infrastructure error", err)
	}
	var infra *compliance.InfrastructureError
	if !errors.As(err, &infra) || infra.Store != profileStoreName {
		t.Fatalf("errors.As() = %+v", infra)
	}
	if got.Phase != compliance.PhaseFailed {
		t.Fatalf("Phase = %s", got.Phase)
	}
}

func TestCorrelateOutcomeStoreFailureIsNotRetried(t *testing.T) {
	f := newFixture()
	f.outcomes.err = errors.New("ProvisionedThroughputExceededException")

	_, err := f.svc.Correlate(context.Background(), "uploads/1-aa.png", 0, 0)
	var infra *compliance.InfrastructureError
	if !errors.As(err, &infra) || infra.Store != outcomeStoreName {
		t.Fatalf("Correlate() error = %v", err)
	}
	if f.outcomes.calls != 1 {
		t.Fatalf("polls = %d, want 1", f.outcomes.calls)
	}
}

func TestCorrelateStopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.clock.onSleep = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	_, err := f.svc.Correlate(ctx, "uploads/1-aa.png", 0, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Correlate() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, compliance.ErrInfrastructure) {
		t.Fatalf("cancellation must not be an infrastructure error")
	}
	if f.outcomes.calls != 3 {
		t.Fatalf("polls = %d, want 3", f.outcomes.calls)
	}
}

func TestCorrelateValidatesInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Correlate(ctx, "  ", 0, 0); !errors.Is(err, compliance.ErrImageKeyRequired) {
		t.Fatalf("Correlate(blank) error = %v", err)
	}
	if _, err := f.svc.Correlate(ctx, "k", -time.Second, 0); !errors.Is(err, compliance.ErrInvalidBudget) {
		t.Fatalf("Correlate(negative budget) error = %v", err)
	}
	if _, err := f.svc.Correlate(ctx, "k", 0, -time.Second); !errors.Is(err, compliance.ErrInvalidPollInterval) {
		t.Fatalf("Correlate(negative interval) error = %v", err)
	}
	if _, err := f.svc.Correlate(ctx, "k", 10*time.Minute, 0); !errors.Is(err, compliance.ErrBudgetTooLarge) {
		t.Fatalf("Correlate(huge budget) error = %v", err)
	}
	if f.outcomes.calls != 0 {
		t.Fatalf("invalid input should not poll, polls = %d", f.outcomes.calls)
	}
}

func TestCorrelateMalformedItemsAreAbsorbed(t *testing.T) {
	f := newFixture()
	f.outcomes.add(compliance.OutcomeRecord{EmployeeID: "emp07", LastMissingItems: "[No Helmet", LastImageKey: "uploads/1-aa.png"}, f.clock.Now())
	f.outcomes.add(compliance.OutcomeRecord{EmployeeID: "emp08", MissingItemsMalformed: true, LastImageKey: "uploads/2-bb.png"}, f.clock.Now())

	for _, key := range []string{"uploads/1-aa.png", "uploads/2-bb.png"} {
		got, err := f.svc.Correlate(context.Background(), key, 0, 0)
		if err != nil {
			t.Fatalf("Correlate(%s) error = %v", key, err)
		}
		if got.Status != compliance.StatusCompliant || len(got.MissingItems) != 0 {
			t.Fatalf("Correlate(%s) = %+v", key, got)
		}
	}
}

func TestCorrelateAttachesDetectionSidecar(t *testing.T) {
	f := newFixture()
	f.blobs.items["results/1-aa.json"] = []byte(`{"ppe_detected":["Helmet","Vest"],"model_confidence":0.91}`)
	f.outcomes.add(compliance.OutcomeRecord{EmployeeID: "emp07", LastImageKey: "uploads/1-aa.png"}, f.clock.Now())

	got, err := f.svc.Correlate(context.Background(), "uploads/1-aa.png", 0, 0)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if len(got.PPEDetected) != 2 || got.ModelConfidence == nil || *got.ModelConfidence != 0.91 {
		t.Fatalf("Correlate() detection = %v %v", got.PPEDetected, got.ModelConfidence)
	}

	f.blobs.items["uploads/2-bb.png.json"] = []byte(`{"ppe_detected":["Helmet"]}`)
	pending, err := f.svc.Correlate(context.Background(), "uploads/2-bb.png", 4*time.Second, time.Second)
	if err != nil {
		t.Fatalf("Correlate(pending) error = %v", err)
	}
	if pending.Status != compliance.StatusPendingOrCompliant || len(pending.PPEDetected) != 1 {
		t.Fatalf("Correlate(pending) = %+v", pending)
	}

	f.blobs.err = errors.New("access denied")
	if _, err := f.svc.Correlate(context.Background(), "uploads/1-aa.png", 0, 0); err != nil {
		t.Fatalf("sidecar failure must not fail correlation: %v", err)
	}
}

func TestPollUntilClampsToDeadline(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(5 * time.Second)
	probes := 0

	outcome, err := pollUntil(context.Background(), clock, deadline, 3*time.Second, func(context.Context) (bool, error) {
		probes++
		return false, nil
	})
	if err != nil || outcome != pollTimedOut {
		t.Fatalf("pollUntil() = %v, %v", outcome, err)
	}
	if probes != 2 || len(clock.sleeps) != 2 || clock.sleeps[1] != 2*time.Second {
		t.Fatalf("probes=%d sleeps=%v", probes, clock.sleeps)
	}
	if !clock.Now().Equal(deadline) {
		t.Fatalf("now = %s, want deadline %s", clock.Now(), deadline)
	}
}

func TestRealClockSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (realClock{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v", err)
	}
	if err := (realClock{}).Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
}

func TestCorrelateWithProgressReportsEachMiss(t *testing.T) {
	f := newFixture()
	start := f.clock.Now()
	f.outcomes.add(compliance.OutcomeRecord{
		EmployeeID:    "emp07",
		LastImageKey:  "uploads/123-abc.png",
		LastUpdatedAt: "2025-03-01T10:00:04Z",
	}, start.Add(4*time.Second))

	var seen []Progress
	got, err := f.svc.CorrelateWithProgress(context.Background(), "uploads/123-abc.png", 10*time.Second, 2*time.Second, func(p Progress) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("CorrelateWithProgress() error = %v", err)
	}
	if got.Phase != compliance.PhaseMatched {
		t.Fatalf("Phase = %s, want matched", got.Phase)
	}
	if len(seen) != 2 {
		t.Fatalf("progress calls = %d, want 2", len(seen))
	}
	if seen[0].Attempt != 1 || seen[0].Elapsed != 0 || seen[0].Remaining != 10*time.Second {
		t.Fatalf("first progress = %+v", seen[0])
	}
	if seen[1].Attempt != 2 || seen[1].Elapsed != 2*time.Second || seen[1].Remaining != 8*time.Second {
		t.Fatalf("second progress = %+v", seen[1])
	}
}
