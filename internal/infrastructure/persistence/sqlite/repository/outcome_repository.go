package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/infrastructure/persistence/sqlite/model"
	"ppesuite/internal/ports"
)

type OutcomeRepository struct {
	db *gorm.DB
}

var _ ports.OutcomeStore = (*OutcomeRepository)(nil)

func NewOutcomeRepository(db *gorm.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// FindByImageKey uses idx_violation_master_last_image_key, so it is a point query.
func (r *OutcomeRepository) FindByImageKey(ctx context.Context, imageKey string) ([]compliance.OutcomeRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Outcome
	if err := db.
		Where("last_image_key = ?", imageKey).
		Order("last_updated desc").
		Find(&rows).Error; err != nil {
		return nil, errs.WithStack(errs.Wrap(err, "query outcomes by image key"))
	}

	return mapOutcomes(rows), nil
}

func (r *OutcomeRepository) Get(ctx context.Context, employeeID string) (compliance.OutcomeRecord, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return compliance.OutcomeRecord{}, false, err
	}

	var row model.Outcome
	if err := db.Where("employee_id = ?", strings.TrimSpace(employeeID)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return compliance.OutcomeRecord{}, false, nil
		}
		return compliance.OutcomeRecord{}, false, errs.WithStack(errs.Wrap(err, "query outcome by employee id"))
	}
	return mapOutcome(row), true, nil
}

func (r *OutcomeRepository) List(ctx context.Context) ([]compliance.OutcomeRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Outcome
	if err := db.Order("employee_id asc").Find(&rows).Error; err != nil {
		return nil, errs.WithStack(errs.Wrap(err, "query outcomes"))
	}
	return mapOutcomes(rows), nil
}

// SetViolationCount creates the row when the employee has none yet.
func (r *OutcomeRepository) SetViolationCount(ctx context.Context, employeeID string, count int) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.Outcome{EmployeeID: strings.TrimSpace(employeeID), Violations: count}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}},
		DoUpdates: clause.Assignments(map[string]any{"violations": count}),
	}).Create(&row).Error; err != nil {
		return errs.WithStack(errs.Wrapf(err, "set violations for %s", row.EmployeeID))
	}
	return nil
}

func (r *OutcomeRepository) Upsert(ctx context.Context, record compliance.OutcomeRecord) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.Outcome{
		EmployeeID:   strings.TrimSpace(record.EmployeeID),
		Violations:   record.CumulativeViolationCount,
		LastMissing:  record.LastMissingItems,
		LastImageKey: record.LastImageKey,
		LastUpdated:  record.LastUpdatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return errs.WithStack(errs.Wrapf(err, "upsert outcome for %s", row.EmployeeID))
	}
	return nil
}

func mapOutcomes(rows []model.Outcome) []compliance.OutcomeRecord {
	items := make([]compliance.OutcomeRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapOutcome(row))
	}
	return items
}

func mapOutcome(row model.Outcome) compliance.OutcomeRecord {
	return compliance.OutcomeRecord{
		EmployeeID:               row.EmployeeID,
		CumulativeViolationCount: row.Violations,
		LastMissingItems:         row.LastMissing,
		LastImageKey:             row.LastImageKey,
		LastUpdatedAt:            row.LastUpdated,
	}
}
