package dynamostore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

// profileItem is the employee_master item layout.
type profileItem struct {
	EmployeeID string `dynamodbav:"EmployeeID"`
	Name       string `dynamodbav:"name"`
	Department string `dynamodbav:"department,omitempty"`
	Site       string `dynamodbav:"site,omitempty"`
	Line       string `dynamodbav:"line,omitempty"`
	JobTitle   string `dynamodbav:"job_title,omitempty"`
	Email      string `dynamodbav:"email,omitempty"`
	PhotoKey   string `dynamodbav:"photo_key,omitempty"`
	Status     string `dynamodbav:"status,omitempty"`
	CreatedAt  string `dynamodbav:"created_at,omitempty"`
}

type ProfileStore struct {
	api   API
	table string
}

var _ ports.ProfileStore = (*ProfileStore)(nil)

func NewProfileStore(api API, table string) *ProfileStore {
	return &ProfileStore{api: api, table: table}
}

func (s *ProfileStore) Get(ctx context.Context, employeeID string) (compliance.ProfileRecord, bool, error) {
	if ctx == nil {
		return compliance.ProfileRecord{}, false, errors.New("context is required")
	}

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       employeeKey(employeeID),
	})
	if err != nil {
		return compliance.ProfileRecord{}, false, errs.WithStack(errs.Wrapf(err, "get %s item", s.table))
	}
	if len(out.Item) == 0 {
		return compliance.ProfileRecord{}, false, nil
	}

	var item profileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return compliance.ProfileRecord{}, false, errs.Wrapf(err, "decode %s item %s", s.table, employeeID)
	}
	return item.record(), true, nil
}

func (s *ProfileStore) List(ctx context.Context) ([]compliance.ProfileRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	paginator := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{TableName: aws.String(s.table)})

	var out []compliance.ProfileRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errs.WithStack(errs.Wrapf(err, "scan %s", s.table))
		}

		var items []profileItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, errs.Wrapf(err, "decode %s page", s.table)
		}
		for _, item := range items {
			out = append(out, item.record())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (s *ProfileStore) Put(ctx context.Context, profile compliance.ProfileRecord) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	item := profileItem{
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
	if item.Status == "" {
		item.Status = "Active"
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errs.Wrapf(err, "encode %s item %s", s.table, item.EmployeeID)
	}

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return errs.WithStack(errs.Wrapf(err, "put %s item", s.table))
	}
	return nil
}

func (i profileItem) record() compliance.ProfileRecord {
	return compliance.ProfileRecord{
		EmployeeID:  strings.TrimSpace(i.EmployeeID),
		DisplayName: strings.TrimSpace(i.Name),
		Department:  strings.TrimSpace(i.Department),
		Site:        strings.TrimSpace(i.Site),
		Line:        i.Line,
		JobTitle:    i.JobTitle,
		Email:       i.Email,
		PhotoKey:    i.PhotoKey,
		Status:      i.Status,
		CreatedAt:   i.CreatedAt,
	}
}
