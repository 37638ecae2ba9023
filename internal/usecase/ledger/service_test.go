package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "ppesuite/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "ppesuite/internal/infrastructure/persistence/sqlite/uow"
)

func setupService(t *testing.T) (*Service, *sqliterepo.OutcomeRepository) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "ledger.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewOutcomeRepository(db)
	return NewService(repo, sqliteuow.NewUnitOfWork(db)), repo
}

func seed(t *testing.T, repo *sqliterepo.OutcomeRepository, counts map[string]int) {
	t.Helper()
	for id, n := range counts {
		if err := repo.Upsert(context.Background(), compliance.OutcomeRecord{EmployeeID: id, CumulativeViolationCount: n, LastImageKey: "uploads/" + id + ".png"}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	svc, repo := setupService(t)
	seed(t, repo, map[string]int{"emp01": 3, "emp02": 9, "emp03": 0, "op10": 5})
	ctx := context.Background()

	got, err := svc.List(ctx, ListFilter{Sort: SortByViolations})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Employees != 4 || got.TotalViolations != 17 || got.Rows[0].EmployeeID != "emp02" || got.Rows[3].EmployeeID != "emp03" {
		t.Fatalf("List() = %+v", got)
	}

	got, err = svc.List(ctx, ListFilter{Query: "EMP", MinViolations: 1, Sort: SortByEmployee})
	if err != nil {
		t.Fatalf("List(filtered) error = %v", err)
	}
	if got.Employees != 2 || got.Rows[0].EmployeeID != "emp01" || got.Rows[1].EmployeeID != "emp02" || got.TotalViolations != 12 {
		t.Fatalf("List(filtered) = %+v", got)
	}
}

func TestSaveChangesWritesOnlyDiffs(t *testing.T) {
	svc, repo := setupService(t)
	seed(t, repo, map[string]int{"emp01": 3, "emp02": 9})
	ctx := context.Background()

	updated, err := svc.SaveChanges(ctx, []Row{
		{EmployeeID: "emp01", Violations: 3},
		{EmployeeID: "emp02", Violations: 4},
	})
	if err != nil {
		t.Fatalf("SaveChanges() error = %v", err)
	}
	if updated != 1 {
		t.Fatalf("SaveChanges() updated = %d, want 1", updated)
	}

	rec, _, err := repo.Get(ctx, "emp02")
	if err != nil || rec.CumulativeViolationCount != 4 || rec.LastImageKey != "uploads/emp02.png" {
		t.Fatalf("emp02 = %+v err=%v", rec, err)
	}

	if _, err := svc.SaveChanges(ctx, []Row{{EmployeeID: "emp01", Violations: 1}, {EmployeeID: "emp02", Violations: -1}}); !errors.Is(err, compliance.ErrInvalidViolationCount) {
		t.Fatalf("SaveChanges(negative) error = %v", err)
	}
	rec, _, _ = repo.Get(ctx, "emp01")
	if rec.CumulativeViolationCount != 3 {
		t.Fatalf("rejected batch must not write, emp01 = %d", rec.CumulativeViolationCount)
	}
}

func TestUpsert(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()

	if err := svc.Upsert(ctx, "  emp07 ", 2); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	rec, found, err := repo.Get(ctx, "emp07")
	if err != nil || !found || rec.CumulativeViolationCount != 2 {
		t.Fatalf("Get() = %+v found=%v err=%v", rec, found, err)
	}

	if err := svc.Upsert(ctx, " ", 1); !errors.Is(err, compliance.ErrEmployeeIDRequired) {
		t.Fatalf("Upsert(blank) error = %v", err)
	}
	if err := svc.Upsert(ctx, "emp07", -3); !errors.Is(err, compliance.ErrInvalidViolationCount) {
		t.Fatalf("Upsert(negative) error = %v", err)
	}
}
