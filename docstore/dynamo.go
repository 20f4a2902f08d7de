package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/goforj/odm/docstore/query"
	"github.com/goforj/odm/internal/dynamoutil"
)

// DynamoAPI captures the subset of DynamoDB client methods used by the collections.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDatabase maps each collection onto a table keyed by "_id".
// Find results come back in scan order, which DynamoDB does not define.
type DynamoDatabase struct {
	client      DynamoAPI
	tablePrefix string

	mu          sync.Mutex
	collections map[string]*DynamoCollection
}

// NewDynamoDatabase uses client for every collection. tablePrefix is
// prepended to collection names to form table names.
func NewDynamoDatabase(client DynamoAPI, tablePrefix string) *DynamoDatabase {
	return &DynamoDatabase{client: client, tablePrefix: tablePrefix, collections: map[string]*DynamoCollection{}}
}

// OpenDynamo builds a client for region (and optional local endpoint).
func OpenDynamo(ctx context.Context, region, endpoint, tablePrefix string) (*DynamoDatabase, error) {
	client, err := dynamoutil.NewClient(ctx, region, endpoint)
	if err != nil {
		return nil, err
	}
	return NewDynamoDatabase(client, tablePrefix), nil
}

// Collection returns the named collection, creating its table on first use.
func (d *DynamoDatabase) Collection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, errors.New("docstore: collection name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.collections[name]; ok {
		return c, nil
	}
	table := d.tablePrefix + name
	if err := dynamoutil.EnsureTable(ctx, d.client, table, IDField); err != nil {
		return nil, fmt.Errorf("docstore: create collection %q: %w", name, err)
	}
	c := &DynamoCollection{name: name, table: table, client: d.client}
	d.collections[name] = c
	return c, nil
}

func (d *DynamoDatabase) Close() error { return nil }

// DynamoCollection is a Collection stored in one DynamoDB table.
type DynamoCollection struct {
	name   string
	table  string
	client DynamoAPI
}

func (c *DynamoCollection) Name() string { return c.name }

func (c *DynamoCollection) Insert(ctx context.Context, doc Document) (string, error) {
	id := uuid.NewString()
	item, err := marshalItem(doc, id)
	if err != nil {
		return "", err
	}
	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": IDField},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *DynamoCollection) UpdateByID(ctx context.Context, id string, doc Document) error {
	if id == "" {
		return errors.New("docstore: update requires an id")
	}
	item, err := marshalItem(doc, id)
	if err != nil {
		return err
	}
	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	return err
}

func (c *DynamoCollection) DeleteByID(ctx context.Context, id string) (bool, error) {
	out, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.table),
		Key:          itemKey(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}
	return len(out.Attributes) > 0, nil
}

func (c *DynamoCollection) Find(ctx context.Context, filter Filter) (Cursor, error) {
	if id, ok := idFromFilter(filter); ok {
		doc, found, err := c.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return NewSliceCursor(nil), nil
		}
		return NewSliceCursor([]Document{doc}), nil
	}
	return &scanCursor{
		pages:  dynamodb.NewScanPaginator(c.client, &dynamodb.ScanInput{TableName: aws.String(c.table)}),
		filter: filter,
	}, nil
}

func (c *DynamoCollection) FindOne(ctx context.Context, filter Filter) (Document, bool, error) {
	if id, ok := idFromFilter(filter); ok {
		return c.get(ctx, id)
	}
	cur, err := c.Find(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = cur.Close(ctx) }()
	if cur.Next(ctx) {
		return cur.Current(), true, nil
	}
	return nil, false, cur.Err()
}

func (c *DynamoCollection) Aggregate(ctx context.Context, pipeline Pipeline) (Cursor, error) {
	cur, err := c.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	docs, err := All(ctx, cur)
	if err != nil {
		return nil, err
	}
	return aggregate(docs, pipeline)
}

func (c *DynamoCollection) get(ctx context.Context, id string) (Document, bool, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, err
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}
	doc, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{IDField: &types.AttributeValueMemberS{Value: id}}
}

func marshalItem(doc Document, id string) (map[string]types.AttributeValue, error) {
	stored, err := withID(doc, id)
	if err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(map[string]any(stored))
	if err != nil {
		return nil, fmt.Errorf("docstore: marshal item: %w", err)
	}
	return item, nil
}

func unmarshalItem(item map[string]types.AttributeValue) (Document, error) {
	var out map[string]any
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("docstore: unmarshal item: %w", err)
	}
	// round-trip so sets and binary values take their JSON shapes
	return Normalize(out)
}

// scanCursor pulls scan pages lazily and filters items in process.
type scanCursor struct {
	pages  *dynamodb.ScanPaginator
	filter Filter
	buf    []map[string]types.AttributeValue
	cur    Document
	err    error
	done   bool
}

func (c *scanCursor) Next(ctx context.Context) bool {
	for !c.done {
		if len(c.buf) == 0 {
			if !c.pages.HasMorePages() {
				c.done = true
				break
			}
			page, err := c.pages.NextPage(ctx)
			if err != nil {
				c.err = err
				c.done = true
				break
			}
			c.buf = page.Items
			continue
		}
		item := c.buf[0]
		c.buf = c.buf[1:]
		doc, err := unmarshalItem(item)
		if err != nil {
			c.err = err
			c.done = true
			break
		}
		ok, err := query.Match(doc, c.filter)
		if err != nil {
			c.err = err
			c.done = true
			break
		}
		if ok {
			c.cur = doc
			return true
		}
	}
	c.cur = nil
	return false
}

func (c *scanCursor) Current() Document { return c.cur }

func (c *scanCursor) Err() error { return c.err }

func (c *scanCursor) Close(context.Context) error {
	c.done = true
	c.buf = nil
	c.cur = nil
	return nil
}
