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

type ProfileRepository struct {
	db *gorm.DB
}

var _ ports.ProfileStore = (*ProfileRepository)(nil)

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, employeeID string) (compliance.ProfileRecord, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return compliance.ProfileRecord{}, false, err
	}

	var row model.Profile
	if err := db.Where("employee_id = ?", strings.TrimSpace(employeeID)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return compliance.ProfileRecord{}, false, nil
		}
		return compliance.ProfileRecord{}, false, errs.WithStack(errs.Wrap(err, "query profile by employee id"))
	}
	return mapProfile(row), true, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]compliance.ProfileRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Profile
	if err := db.Order("name asc").Order("employee_id asc").Find(&rows).Error; err != nil {
		return nil, errs.WithStack(errs.Wrap(err, "query profiles"))
	}

	items := make([]compliance.ProfileRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapProfile(row))
	}
	return items, nil
}

func (r *ProfileRepository) Put(ctx context.Context, profile compliance.ProfileRecord) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.Profile{
		EmployeeID: strings.TrimSpace(profile.EmployeeID),
		Name:       profile.DisplayName,
		Department: profile.Department,
		Site:       profile.Site,
		Line:       profile.Line,
		JobTitle:   profile.JobTitle,
		Email:      profile.Email,
		PhotoKey:   profile.PhotoKey,
		Status:     profile.Status,
		CreatedAt:  profile.CreatedAt,
	}
	if row.Status == "" {
		row.Status = "Active"
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return errs.WithStack(errs.Wrapf(err, "put profile %s", row.EmployeeID))
	}
	return nil
}

func mapProfile(row model.Profile) compliance.ProfileRecord {
	return compliance.ProfileRecord{
		EmployeeID:  row.EmployeeID,
		DisplayName: row.Name,
		Department:  row.Department,
		Site:        row.Site,
		Line:        row.Line,
		JobTitle:    row.JobTitle,
		Email:       row.Email,
		PhotoKey:    row.PhotoKey,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
	}
}
