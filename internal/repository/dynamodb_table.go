package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the minimal DynamoDB interface required by Table.
// *dynamodb.Client from aws-sdk-go-v2 satisfies it; tests supply fakes.
type API interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Row is one stored record: the content-derived row key and its opaque
// payload blob.
type Row struct {
	Key     string
	Payload string
}

// Table manages one logical namespace as a flat key-value collection. All
// rows of a namespace live under a single fixed partition of one shared
// physical DynamoDB table; the partition discriminator is fixed at
// construction and never exposed to callers.
type Table struct {
	api       API
	tableName string
	partition string
	logger    *slog.Logger
}

// NewTable creates a Table scoped to one partition of the physical table.
func NewTable(api API, tableName, partition string) (*Table, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if strings.TrimSpace(partition) == "" {
		return nil, errors.New("repository: partition must not be empty")
	}
	return &Table{
		api:       api,
		tableName: tableName,
		partition: partition,
		logger:    slog.Default().With("component", "repository", "partition", partition),
	}, nil
}

// EnsureExists idempotently provisions the physical table. An "already
// exists" response from DynamoDB is success; any other failure is surfaced
// so the caller can decide how loudly to report it.
func (t *Table) EnsureExists(ctx context.Context) error {
	_, err := t.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(t.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("repository: EnsureExists create table: %w", err)
	}
	return nil
}

// Insert writes a row under key, overwriting any existing row at the same
// key. The boolean result is the sole success signal; transient medium
// failures are logged and reported as false, never as an error.
func (t *Table) Insert(ctx context.Context, key, payload string) bool {
	if key == "" {
		t.logger.Warn("insert rejected, empty row key")
		return false
	}
	_, err := t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item: map[string]types.AttributeValue{
			"PK":      &types.AttributeValueMemberS{Value: t.partition},
			"SK":      &types.AttributeValueMemberS{Value: key},
			"payload": &types.AttributeValueMemberS{Value: payload},
		},
	})
	if err != nil {
		t.logger.Warn("insert failed", "key", key, "err", err)
		return false
	}
	return true
}

// Delete removes the row at key if present. It returns false, not an error,
// when the key does not exist, so deletions are idempotent for callers.
func (t *Table) Delete(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	out, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: t.partition},
			"SK": &types.AttributeValueMemberS{Value: key},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		t.logger.Warn("delete failed", "key", key, "err", err)
		return false
	}
	// ALL_OLD returns the removed item; absence means the key was not there.
	return out != nil && len(out.Attributes) > 0
}

// ScanAll retrieves every row in the namespace's partition as an eagerly
// materialized list. Ordering is whatever DynamoDB returns and must not be
// relied upon.
func (t *Table) ScanAll(ctx context.Context) ([]Row, error) {
	var rows []Row
	var startKey map[string]types.AttributeValue
	for {
		out, err := t.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(t.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: t.partition},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ScanAll query: %w", err)
		}
		for _, item := range out.Items {
			row, err := rowFromItem(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ScanAll decode row: %w", err)
			}
			rows = append(rows, row)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return rows, nil
}

// rowFromItem converts a DynamoDB attribute map to a Row.
func rowFromItem(item map[string]types.AttributeValue) (Row, error) {
	key, err := strAttr(item, "SK")
	if err != nil {
		return Row{}, err
	}
	payload, err := strAttr(item, "payload")
	if err != nil {
		return Row{}, err
	}
	return Row{Key: key, Payload: payload}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
