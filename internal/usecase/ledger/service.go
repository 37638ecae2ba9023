package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

// Service backs the violations screen: a per-employee count that operators
// may correct by hand.
type Service struct {
	outcomes ports.OutcomeStore
	uow      ports.UnitOfWork
}

func NewService(outcomes ports.OutcomeStore, uow ports.UnitOfWork) *Service {
	if uow == nil {
		uow = ports.DirectUnitOfWork{}
	}
	return &Service{outcomes: outcomes, uow: uow}
}

type SortOrder string

const (
	SortByViolations SortOrder = "violations"
	SortByEmployee   SortOrder = "employee"
)

type ListFilter struct {
	Query         string
	MinViolations int
	Sort          SortOrder
}

type Row struct {
	EmployeeID string `json:"employee_id"`
	Violations int    `json:"violations"`
}

type ListOutput struct {
	Rows            []Row `json:"rows"`
	Employees       int   `json:"employees"`
	TotalViolations int   `json:"total_violations"`
}

func (s *Service) List(ctx context.Context, filter ListFilter) (ListOutput, error) {
	if err := s.check(ctx); err != nil {
		return ListOutput{}, err
	}

	records, err := s.outcomes.List(ctx)
	if err != nil {
		return ListOutput{}, errs.Wrap(err, "list outcomes")
	}

	totals := make(map[string]int, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(rec.EmployeeID)
		if id == "" {
			continue
		}
		if _, seen := totals[id]; !seen {
			order = append(order, id)
		}
		totals[id] += rec.CumulativeViolationCount
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := ListOutput{Rows: make([]Row, 0, len(order))}
	for _, id := range order {
		if query != "" && !strings.Contains(strings.ToLower(id), query) {
			continue
		}
		if totals[id] < filter.MinViolations {
			continue
		}
		out.Rows = append(out.Rows, Row{EmployeeID: id, Violations: totals[id]})
		out.TotalViolations += totals[id]
	}
	out.Employees = len(out.Rows)

	if filter.Sort == SortByEmployee {
		sort.SliceStable(out.Rows, func(i, j int) bool { return out.Rows[i].EmployeeID < out.Rows[j].EmployeeID })
	} else {
		sort.SliceStable(out.Rows, func(i, j int) bool { return out.Rows[i].Violations > out.Rows[j].Violations })
	}
	return out, nil
}

// SaveChanges writes the edited counts that differ from what is stored, in one
// unit of work. It returns how many rows were written.
func (s *Service) SaveChanges(ctx context.Context, edits []Row) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	for _, edit := range edits {
		if strings.TrimSpace(edit.EmployeeID) == "" {
			return 0, compliance.ErrEmployeeIDRequired
		}
		if edit.Violations < 0 {
			return 0, compliance.ErrInvalidViolationCount
		}
	}

	updated := 0
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, edit := range edits {
			id := strings.TrimSpace(edit.EmployeeID)
			current, found, err := s.outcomes.Get(txCtx, id)
			if err != nil {
				return errs.Wrapf(err, "get outcome %s", id)
			}
			if found && current.CumulativeViolationCount == edit.Violations {
				continue
			}
			if err := s.outcomes.SetViolationCount(txCtx, id, edit.Violations); err != nil {
				return err
			}
			updated++
		}
		return nil
	}); err != nil {
		return 0, err
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.ledger")), "violation counts saved", slog.Int("edits", len(edits)), slog.Int("updated", updated))
	return updated, nil
}

// Upsert sets the count for one employee, creating the record when needed.
// Other outcome fields are kept.
func (s *Service) Upsert(ctx context.Context, employeeID string, violations int) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	id := strings.TrimSpace(employeeID)
	if id == "" {
		return compliance.ErrEmployeeIDRequired
	}
	if violations < 0 {
		return compliance.ErrInvalidViolationCount
	}

	if err := s.outcomes.SetViolationCount(ctx, id, violations); err != nil {
		return err
	}
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.ledger")), "violation count upserted", slog.String("employee_id", id), slog.Int("violations", violations))
	return nil
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.outcomes == nil {
		return errors.New("outcome store is required")
	}
	return nil
}
