// Package dynamodb implements the KV provider interface using AWS DynamoDB.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.KV = (*DynamoDBProvider)(nil)

// DDBAPI is the subset of the DynamoDB client used by the provider.
type DDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoDBProvider implements the KV interface backed by a single DynamoDB table.
type DynamoDBProvider struct {
	client      DDBAPI
	tableName   string
	logger      *slog.Logger
	createTable bool
}

// New creates a new DynamoDBProvider.
func New(cfg *types.DynamoDBConfig) (*DynamoDBProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	// For DynamoDB Local: use static credentials and a custom endpoint.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &DynamoDBProvider{
		client:      dynamodb.NewFromConfig(awsCfg, clientOpts...),
		tableName:   cfg.TableName,
		logger:      slog.Default(),
		createTable: cfg.CreateTable,
	}, nil
}

// NewFromClient creates a DynamoDBProvider from an existing client (useful for testing).
func NewFromClient(client DDBAPI, tableName string) *DynamoDBProvider {
	return &DynamoDBProvider{
		client:    client,
		tableName: tableName,
		logger:    slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (p *DynamoDBProvider) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Start verifies connectivity and optionally creates the table.
func (p *DynamoDBProvider) Start(ctx context.Context) error {
	if p.createTable {
		if err := p.ensureTable(ctx); err != nil {
			return err
		}
	}
	return p.Ping(ctx)
}

// Stop is a no-op; the SDK client holds no long-lived connections to close.
func (p *DynamoDBProvider) Stop(_ context.Context) error {
	return nil
}

// Ping verifies the table exists and is reachable.
func (p *DynamoDBProvider) Ping(ctx context.Context) error {
	_, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.tableName),
	})
	if err != nil {
		return fmt.Errorf("dynamodb describe table: %w", err)
	}
	return nil
}

func (p *DynamoDBProvider) ensureTable(ctx context.Context) error {
	_, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.tableName),
	})
	if err == nil {
		return nil
	}
	var notFound *ddbtypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("dynamodb describe table: %w", err)
	}

	p.logger.Info("creating dynamodb table", "table", p.tableName)
	_, err = p.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(p.tableName),
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: ddbtypes.KeyTypeHash},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("dynamodb create table: %w", err)
	}
	return nil
}

// cacheItem is the stored representation of one KV entry. ExpiresAt feeds the
// table's TTL attribute; expiry is also enforced on read because DynamoDB
// deletes expired items lazily.
type cacheItem struct {
	PK        string `dynamodbav:"PK"`
	Value     []byte `dynamodbav:"Value"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt,omitempty"`
}

// Get reads a key. Missing or expired keys return provider.ErrNotFound.
func (p *DynamoDBProvider) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(p.tableName),
		Key:       itemKey(key),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get %q: %w", key, err)
	}
	if out.Item == nil {
		return nil, provider.ErrNotFound
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("dynamodb unmarshal %q: %w", key, err)
	}
	if item.ExpiresAt > 0 && item.ExpiresAt <= time.Now().Unix() {
		return nil, provider.ErrNotFound
	}
	return item.Value, nil
}

// Set writes a key with a TTL. A zero TTL stores without expiry.
func (p *DynamoDBProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(newCacheItem(key, value, ttl))
	if err != nil {
		return fmt.Errorf("dynamodb marshal %q: %w", key, err)
	}
	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put %q: %w", key, err)
	}
	return nil
}

// SetIfAbsent writes a key only when it does not exist.
func (p *DynamoDBProvider) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	item, err := attributevalue.MarshalMap(newCacheItem(key, value, ttl))
	if err != nil {
		return false, fmt.Errorf("dynamodb marshal %q: %w", key, err)
	}
	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(p.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("dynamodb conditional put %q: %w", key, err)
	}
	return true, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (p *DynamoDBProvider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(p.tableName),
		Key:       itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete %q: %w", key, err)
	}
	return nil
}

func newCacheItem(key string, value []byte, ttl time.Duration) cacheItem {
	item := cacheItem{PK: cachePK(key), Value: value}
	if ttl > 0 {
		item.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	return item
}

func itemKey(key string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: cachePK(key)},
	}
}
