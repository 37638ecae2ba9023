package resultconsole

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/usecase/correlation"
)

func TestRenderMatchedResult(t *testing.T) {
	items, _ := compliance.ParseMissingItems("No Helmet, No Vest")
	result := compliance.ResolveResult(
		"uploads/1-ab.png",
		compliance.OutcomeRecord{EmployeeID: "emp07", CumulativeViolationCount: 5},
		compliance.ProfileRecord{DisplayName: "Jordan Alvarez", Department: "Quality", Site: "Plant 3"},
		true,
		items,
	)

	got := Render(result)
	for _, want := range []string{"Violation found", "Jordan Alvarez (emp07)", "Quality", "Plant 3", "2 violation(s)", "5 violation(s)", "No Helmet, No Vest"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderPendingAndFailed(t *testing.T) {
	pending := Render(compliance.PendingResult("uploads/1-ab.png"))
	if !strings.Contains(pending, "may be compliant") || strings.Contains(pending, "Employee:") {
		t.Fatalf("Render(pending) =\n%s", pending)
	}

	failed := Render(compliance.DisplayResult{SourceImageKey: "uploads/1-ab.png", Phase: compliance.PhaseFailed})
	if !strings.Contains(failed, "please retry") {
		t.Fatalf("Render(failed) =\n%s", failed)
	}
}

type scriptedCorrelator struct {
	steps  int
	result compliance.DisplayResult
	err    error
}

func (s *scriptedCorrelator) CorrelateWithProgress(
	_ context.Context,
	imageKey string,
	_ time.Duration,
	_ time.Duration,
	observe func(correlation.Progress),
) (compliance.DisplayResult, error) {
	for i := 1; i <= s.steps; i++ {
		observe(correlation.Progress{ImageKey: imageKey, Attempt: i, Remaining: time.Duration(10-i) * time.Second})
	}
	return s.result, s.err
}

func TestModelRunsCorrelationAndQuits(t *testing.T) {
	correlator := &scriptedCorrelator{steps: 2, result: compliance.PendingResult("uploads/1-ab.png")}
	model := NewModel(context.Background(), correlator, Options{ImageKey: "uploads/1-ab.png", Budget: 10 * time.Second, PollInterval: time.Second})
	model.Init()

	msg := model.correlateCmd()()
	done, ok := msg.(doneMsg)
	if !ok {
		t.Fatalf("correlateCmd() msg = %T, want doneMsg", msg)
	}

	first := model.waitProgressCmd()()
	progress, ok := first.(progressMsg)
	if !ok || progress.progress.Attempt != 1 {
		t.Fatalf("waitProgressCmd() = %#v", first)
	}
	model.Update(progress)
	if !strings.Contains(model.View(), "poll #1") {
		t.Fatalf("View() =\n%s", model.View())
	}

	_, cmd := model.Update(done)
	if cmd == nil {
		t.Fatalf("Update(done) should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("Update(done) cmd is not tea.Quit")
	}

	result, finished, err := model.Outcome()
	if !finished || err != nil || result.Status != compliance.StatusPendingOrCompliant {
		t.Fatalf("Outcome() = %+v finished=%v err=%v", result, finished, err)
	}
	if !strings.Contains(model.View(), "may be compliant") {
		t.Fatalf("View() =\n%s", model.View())
	}
}

func TestModelShowsCancellation(t *testing.T) {
	model := NewModel(context.Background(), &scriptedCorrelator{}, Options{ImageKey: "k"})
	model.Update(doneMsg{result: compliance.DisplayResult{Phase: compliance.PhaseFailed}, err: compliance.NewInfrastructureError("outcome_store", "scan", errors.New("down"))})
	if !strings.Contains(model.View(), "please retry") {
		t.Fatalf("View() =\n%s", model.View())
	}

	stopped := NewModel(context.Background(), &scriptedCorrelator{}, Options{ImageKey: "k"})
	stopped.Update(doneMsg{err: context.Canceled})
	if !strings.Contains(stopped.View(), "Stopped") {
		t.Fatalf("View() =\n%s", stopped.View())
	}
}

func TestModelQuitCancelsContext(t *testing.T) {
	model := NewModel(context.Background(), &scriptedCorrelator{}, Options{ImageKey: "k"})
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("Update(q) should quit")
	}
	if model.ctx.Err() == nil {
		t.Fatalf("quitting must cancel the running correlation")
	}
}
