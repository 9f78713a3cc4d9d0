package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DynamoAPI is the subset of the DynamoDB client the backend uses
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoBackend stores each kind in its own DynamoDB table keyed by "id"
type DynamoBackend struct {
	client      DynamoAPI
	tablePrefix string
}

// NewDynamoBackend creates a new DynamoDB backend
func NewDynamoBackend(client DynamoAPI, tablePrefix string) *DynamoBackend {
	return &DynamoBackend{client: client, tablePrefix: tablePrefix}
}

func (d *DynamoBackend) tableName(kind Kind) string {
	return d.tablePrefix + string(kind)
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// EnsureTables creates any missing table and waits until it is active
func (d *DynamoBackend) EnsureTables(ctx context.Context) error {
	waiter := dynamodb.NewTableExistsWaiter(d.client)
	for _, kind := range AllKinds {
		name := d.tableName(kind)
		_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(name),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		if err != nil {
			var inUse *types.ResourceInUseException
			if !errors.As(err, &inUse) {
				return fmt.Errorf("failed to create table '%s': %w", name, err)
			}
			continue
		}
		log.Info().Str("table", name).Msg("DynamoDB table created")
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("failed waiting for table '%s': %w", name, err)
		}
	}
	return nil
}

// FetchAll returns every record of kind
func (d *DynamoBackend) FetchAll(ctx context.Context, kind Kind) ([]Document, error) {
	return d.Query(ctx, kind)
}

// FetchByID retrieves a record by ID
func (d *DynamoBackend) FetchByID(ctx context.Context, kind Kind, id string) (Document, error) {
	output, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName(kind)),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from table '%s': %w", d.tableName(kind), err)
	}
	if output.Item == nil {
		return nil, notFound(kind, id)
	}
	return unmarshalItem(output.Item)
}

// Insert puts a new item, refusing to overwrite an existing id
func (d *DynamoBackend) Insert(ctx context.Context, kind Kind, doc Document) (Document, error) {
	stored, err := cloneDocument(doc)
	if err != nil {
		return nil, err
	}
	if stored.ID() == "" {
		stored["id"] = uuid.New().String()
	}

	item, err := attributevalue.MarshalMap(map[string]any(stored))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName(kind)),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("%s %s: %w", kind, stored.ID(), ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to put item in table '%s': %w", d.tableName(kind), err)
	}
	return stored, nil
}

// Update sets the patch fields on an existing item
func (d *DynamoBackend) Update(ctx context.Context, kind Kind, id string, patch Patch) (Document, error) {
	if len(patch) == 0 {
		return d.FetchByID(ctx, kind, id)
	}

	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	sets := make([]string, 0, len(fields))
	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	for i, field := range fields {
		av, err := attributevalue.Marshal(patch[field])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", field, err)
		}
		name := fmt.Sprintf("#p%d", i)
		value := fmt.Sprintf(":p%d", i)
		sets = append(sets, name+" = "+value)
		names[name] = field
		values[value] = av
	}

	output, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName(kind)),
		Key:                       idKey(id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to update item in table '%s': %w", d.tableName(kind), err)
	}
	return unmarshalItem(output.Attributes)
}

// Delete removes an existing item
func (d *DynamoBackend) Delete(ctx context.Context, kind Kind, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(d.tableName(kind)),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return notFound(kind, id)
		}
		return fmt.Errorf("failed to delete item from table '%s': %w", d.tableName(kind), err)
	}
	return nil
}

// Query scans the table with a filter expression, oldest first
func (d *DynamoBackend) Query(ctx context.Context, kind Kind, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{
		TableName:      aws.String(d.tableName(kind)),
		ConsistentRead: aws.Bool(true),
	}
	if len(filters) > 0 {
		conds := make([]string, 0, len(filters))
		names := make(map[string]string, len(filters))
		values := make(map[string]types.AttributeValue, len(filters))
		for i, f := range filters {
			name := fmt.Sprintf("#f%d", i)
			value := fmt.Sprintf(":f%d", i)
			conds = append(conds, name+" = "+value)
			names[name] = f.Field
			values[value] = &types.AttributeValueMemberS{Value: f.Value}
		}
		input.FilterExpression = aws.String(strings.Join(conds, " AND "))
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var docs []Document
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", d.tableName(kind), err)
		}
		for _, item := range page.Items {
			doc, err := unmarshalItem(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}

	// Scan order is undefined; created_at is RFC 3339 so it sorts as a string.
	sort.SliceStable(docs, func(i, j int) bool {
		ci, _ := docs[i]["created_at"].(string)
		cj, _ := docs[j]["created_at"].(string)
		if ci != cj {
			return ci < cj
		}
		return docs[i].ID() < docs[j].ID()
	})
	return docs, nil
}

// Ping describes the users table
func (d *DynamoBackend) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName(KindUsers)),
	})
	return err
}

// Close is a no-op; the SDK client holds no connections to release
func (d *DynamoBackend) Close() error { return nil }

func unmarshalItem(item map[string]types.AttributeValue) (Document, error) {
	var m map[string]any
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return toDocument(m)
}
