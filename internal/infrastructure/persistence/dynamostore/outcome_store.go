package dynamostore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

const (
	attrViolations   = "violations"
	attrLastMissing  = "last_missing"
	attrLastImageKey = "last_image_key"
	attrLastUpdated  = "last_updated"
)

// OutcomeStore reads and edits the pipeline's violation_master table.
//
// The table has no index on last_image_key, so FindByImageKey is a filtered
// full scan. Its cost grows with the table; add a GSI on last_image_key and
// switch to Query once the table is large.
type OutcomeStore struct {
	api   API
	table string
}

var _ ports.OutcomeStore = (*OutcomeStore)(nil)

func NewOutcomeStore(api API, table string) *OutcomeStore {
	return &OutcomeStore{api: api, table: table}
}

func (s *OutcomeStore) FindByImageKey(ctx context.Context, imageKey string) ([]compliance.OutcomeRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	items, err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		FilterExpression:         aws.String("#k = :k"),
		ExpressionAttributeNames: map[string]string{"#k": attrLastImageKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: imageKey},
		},
	})
	if err != nil {
		return nil, errs.Wrapf(err, "scan %s by last_image_key", s.table)
	}

	out := make([]compliance.OutcomeRecord, 0, len(items))
	for _, item := range items {
		out = append(out, decodeOutcome(item))
	}
	return out, nil
}

func (s *OutcomeStore) Get(ctx context.Context, employeeID string) (compliance.OutcomeRecord, bool, error) {
	if ctx == nil {
		return compliance.OutcomeRecord{}, false, errors.New("context is required")
	}

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       employeeKey(employeeID),
	})
	if err != nil {
		return compliance.OutcomeRecord{}, false, errs.WithStack(errs.Wrapf(err, "get %s item", s.table))
	}
	if len(out.Item) == 0 {
		return compliance.OutcomeRecord{}, false, nil
	}
	return decodeOutcome(out.Item), true, nil
}

func (s *OutcomeStore) List(ctx context.Context) ([]compliance.OutcomeRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	items, err := s.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(s.table)})
	if err != nil {
		return nil, errs.Wrapf(err, "scan %s", s.table)
	}

	out := make([]compliance.OutcomeRecord, 0, len(items))
	for _, item := range items {
		out = append(out, decodeOutcome(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// SetViolationCount only touches the violations attribute; UpdateItem creates
// the item when it does not exist.
func (s *OutcomeStore) SetViolationCount(ctx context.Context, employeeID string, count int) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if _, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      employeeKey(employeeID),
		UpdateExpression:         aws.String("SET #v = :v"),
		ExpressionAttributeNames: map[string]string{"#v": attrViolations},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.Itoa(count)},
		},
	}); err != nil {
		return errs.WithStack(errs.Wrapf(err, "update violations for %s", employeeID))
	}
	return nil
}

func (s *OutcomeStore) Upsert(ctx context.Context, record compliance.OutcomeRecord) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	item := map[string]types.AttributeValue{
		attrEmployeeID: &types.AttributeValueMemberS{Value: strings.TrimSpace(record.EmployeeID)},
		attrViolations: &types.AttributeValueMemberN{Value: strconv.Itoa(record.CumulativeViolationCount)},
	}
	setString(item, attrLastMissing, record.LastMissingItems)
	setString(item, attrLastImageKey, record.LastImageKey)
	setString(item, attrLastUpdated, record.LastUpdatedAt)

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return errs.WithStack(errs.Wrapf(err, "put %s item", s.table))
	}
	return nil
}

func (s *OutcomeStore) scan(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	paginator := dynamodb.NewScanPaginator(s.api, input)

	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errs.WithStack(err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// decodeOutcome reads an item written by the pipeline. Attribute types are not
// guaranteed, so each field is read leniently.
func decodeOutcome(item map[string]types.AttributeValue) compliance.OutcomeRecord {
	record := compliance.OutcomeRecord{
		EmployeeID:    stringAttr(item[attrEmployeeID]),
		LastImageKey:  stringAttr(item[attrLastImageKey]),
		LastUpdatedAt: stringAttr(item[attrLastUpdated]),
	}
	record.CumulativeViolationCount = intAttr(item[attrViolations])

	switch v := item[attrLastMissing].(type) {
	case nil:
	case *types.AttributeValueMemberNULL:
	case *types.AttributeValueMemberS:
		record.LastMissingItems = v.Value
	case *types.AttributeValueMemberSS:
		record.LastMissingItems = strings.Join(v.Value, ",")
	case *types.AttributeValueMemberL:
		list := make([]string, 0, len(v.Value))
		for _, elem := range v.Value {
			s, ok := elem.(*types.AttributeValueMemberS)
			if !ok {
				record.MissingItemsMalformed = true
				return record
			}
			list = append(list, s.Value)
		}
		encoded, _ := json.Marshal(list)
		record.LastMissingItems = string(encoded)
	default:
		record.MissingItemsMalformed = true
	}
	return record
}

func employeeKey(employeeID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrEmployeeID: &types.AttributeValueMemberS{Value: strings.TrimSpace(employeeID)},
	}
}

func setString(item map[string]types.AttributeValue, name string, value string) {
	if value == "" {
		return
	}
	item[name] = &types.AttributeValueMemberS{Value: value}
}

func stringAttr(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return strings.TrimSpace(v.Value)
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}

func intAttr(av types.AttributeValue) int {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = strings.TrimSpace(v.Value)
	default:
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return 0
}
