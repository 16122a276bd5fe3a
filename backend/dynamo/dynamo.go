// Package dynamo implements the backend contract on DynamoDB.
//
// Version sets are modeled as items sharing a partition key, one item per
// write tag, so concurrent writers produce siblings instead of overwriting
// each other. Index entries live in a dedicated table partitioned by index
// name with a value-ordered sort key.
package dynamo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/internal/keys"
)

// Item attribute and sort-key layout constants.
const (
	versionPrefix = "w#"
	entriesSK     = "#entries"
)

// transactLimit is DynamoDB's TransactWriteItems item cap.
const transactLimit = 100

// Backend is a DynamoDB-backed implementation of backend.Backend.
type Backend struct {
	client *dynamodb.Client
	config Config
}

// New creates a DynamoDB backend.
func New(client *dynamodb.Client, config Config) *Backend {
	config.validate()
	return &Backend{client: client, config: config}
}

// dataPK composes the data-table partition key for a bucket-qualified key.
func dataPK(bucket, key string) string {
	return bucket + "#" + key
}

// skValue encodes an index value for use inside a sort key. Hex expansion
// is order-preserving byte for byte and keeps every encoded byte above the
// "#" separator and the "$" range terminator, so one value can never read
// as a prefix or extension of another.
func skValue(value string) string {
	return keys.Fingerprint(hex.EncodeToString([]byte(value)))
}

// indexSK composes the index-table sort key so items order by (value, key).
func indexSK(value, pk string) string {
	return skValue(value) + "#" + pk
}

// Get implements backend.Backend.
func (b *Backend) Get(ctx context.Context, bucket, key string) ([]backend.Version, error) {
	items, err := b.queryKey(ctx, dataPK(bucket, key))
	if err != nil {
		return nil, translate(err)
	}

	var set []backend.Version
	for _, item := range items {
		sk := stringAttr(item, "sk")
		if !strings.HasPrefix(sk, versionPrefix) {
			continue
		}
		v := backend.Version{WriteTag: strings.TrimPrefix(sk, versionPrefix)}
		if raw, ok := item["value"].(*types.AttributeValueMemberB); ok {
			v.Value = raw.Value
		}
		set = append(set, v)
	}
	return set, nil
}

// Put implements backend.Backend.
//
// The version write, sibling retirement, and entry-list record go first so
// they land in one transaction; index retract/install follows and may span
// further transactions when a write touches more entries than DynamoDB
// transacts at once. A failure mid-churn leaves the record state committed,
// and the next write retracts against the recorded list.
func (b *Backend) Put(ctx context.Context, bucket, key string, p backend.Put) (backend.Version, error) {
	pk := dataPK(bucket, key)

	// 1. Read the current entry list to know what to retract.
	old, err := b.readEntries(ctx, pk)
	if err != nil {
		return backend.Version{}, translate(err)
	}

	tag := keys.NewSuffix()
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName: aws.String(b.config.DataTable),
			Item: map[string]types.AttributeValue{
				"pk":    &types.AttributeValueMemberS{Value: pk},
				"sk":    &types.AttributeValueMemberS{Value: versionPrefix + tag},
				"value": &types.AttributeValueMemberB{Value: p.Value},
			},
		},
	}}

	// 2. Retire the versions this write observed.
	for _, replaced := range p.Replaces {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(b.config.DataTable),
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: pk},
					"sk": &types.AttributeValueMemberS{Value: versionPrefix + replaced},
				},
			},
		})
	}

	// 3. Record the current entry list for the next retraction.
	entries := dedupe(p.Entries)
	entriesAttr, err := attributevalue.MarshalList(entries)
	if err != nil {
		return backend.Version{}, err
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(b.config.DataTable),
			Item: map[string]types.AttributeValue{
				"pk":      &types.AttributeValueMemberS{Value: pk},
				"sk":      &types.AttributeValueMemberS{Value: entriesSK},
				"entries": &types.AttributeValueMemberL{Value: entriesAttr},
			},
		},
	})

	// 4. Retract stale index entries, install the new ones.
	fresh := make(map[backend.IndexEntry]bool, len(entries))
	for _, e := range entries {
		fresh[e] = true
	}
	for _, e := range old {
		if fresh[e] {
			continue
		}
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(b.config.IndexTable),
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: e.Name},
					"sk": &types.AttributeValueMemberS{Value: indexSK(e.Value, pk)},
				},
			},
		})
	}
	stale := make(map[backend.IndexEntry]bool, len(old))
	for _, e := range old {
		stale[e] = true
	}
	for _, e := range entries {
		if stale[e] {
			continue
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(b.config.IndexTable),
				Item: map[string]types.AttributeValue{
					"pk":   &types.AttributeValueMemberS{Value: e.Name},
					"sk":   &types.AttributeValueMemberS{Value: indexSK(e.Value, pk)},
					"val":  &types.AttributeValueMemberS{Value: e.Value},
					"rkey": &types.AttributeValueMemberS{Value: key},
				},
			},
		})
	}

	if err := b.transact(ctx, items); err != nil {
		return backend.Version{}, translate(err)
	}
	return backend.Version{Value: p.Value, WriteTag: tag}, nil
}

// Delete implements backend.Backend.
func (b *Backend) Delete(ctx context.Context, bucket, key string) error {
	pk := dataPK(bucket, key)

	items, err := b.queryKey(ctx, pk)
	if err != nil {
		return translate(err)
	}
	if len(items) == 0 {
		return nil
	}

	entries, err := b.readEntries(ctx, pk)
	if err != nil {
		return translate(err)
	}

	var writes []types.TransactWriteItem
	for _, item := range items {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(b.config.DataTable),
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: pk},
					"sk": &types.AttributeValueMemberS{Value: stringAttr(item, "sk")},
				},
			},
		})
	}
	for _, e := range entries {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(b.config.IndexTable),
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: e.Name},
					"sk": &types.AttributeValueMemberS{Value: indexSK(e.Value, pk)},
				},
			},
		})
	}

	return translate(b.transact(ctx, writes))
}

// splitTransact cuts a write list into runs of at most transactLimit items,
// preserving order.
func splitTransact(items []types.TransactWriteItem) [][]types.TransactWriteItem {
	var out [][]types.TransactWriteItem
	for start := 0; start < len(items); start += transactLimit {
		out = append(out, items[start:min(start+transactLimit, len(items))])
	}
	return out
}

// transact runs a write list through TransactWriteItems, one transaction
// per run of transactLimit items.
func (b *Backend) transact(ctx context.Context, items []types.TransactWriteItem) error {
	for _, chunk := range splitTransact(items) {
		_, err := b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: chunk,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// IndexQuery implements backend.Backend.
func (b *Backend) IndexQuery(ctx context.Context, bucket string, q backend.IndexQuery) (backend.KeyPage, error) {
	input := &dynamodb.QueryInput{
		TableName: aws.String(b.config.IndexTable),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: q.Name},
		},
	}

	switch {
	case q.Match != "":
		input.KeyConditionExpression = aws.String("pk = :pk AND begins_with(sk, :prefix)")
		input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{
			Value: skValue(q.Match) + "#",
		}
	case q.Start != "" && q.End != "":
		input.KeyConditionExpression = aws.String("pk = :pk AND sk BETWEEN :lo AND :hi")
		input.ExpressionAttributeValues[":lo"] = &types.AttributeValueMemberS{Value: rangeLow(q.Start)}
		input.ExpressionAttributeValues[":hi"] = &types.AttributeValueMemberS{Value: rangeHigh(q.End)}
	case q.Start != "":
		input.KeyConditionExpression = aws.String("pk = :pk AND sk >= :lo")
		input.ExpressionAttributeValues[":lo"] = &types.AttributeValueMemberS{Value: rangeLow(q.Start)}
	case q.End != "":
		input.KeyConditionExpression = aws.String("pk = :pk AND sk <= :hi")
		input.ExpressionAttributeValues[":hi"] = &types.AttributeValueMemberS{Value: rangeHigh(q.End)}
	default:
		input.KeyConditionExpression = aws.String("pk = :pk")
	}

	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}
	if q.Token != "" {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: q.Name},
			"sk": &types.AttributeValueMemberS{Value: q.Token},
		}
	}

	result, err := b.client.Query(ctx, input)
	if err != nil {
		return backend.KeyPage{}, translate(err)
	}

	var page backend.KeyPage
	seen := make(map[string]bool, len(result.Items))
	for _, item := range result.Items {
		rkey := stringAttr(item, "rkey")
		if rkey == "" || seen[rkey] {
			continue
		}
		seen[rkey] = true
		page.Keys = append(page.Keys, rkey)
	}
	if result.LastEvaluatedKey != nil {
		page.Next = stringAttr(result.LastEvaluatedKey, "sk")
	}
	return page, nil
}

// rangeLow is the smallest sort key for values >= value.
func rangeLow(value string) string {
	return skValue(value) + "#"
}

// rangeHigh is the largest sort key for values <= value: "$" is the byte
// after the "#" separator, so every sort key for the value itself sorts
// below it and every strictly greater value sorts above it.
func rangeHigh(value string) string {
	return skValue(value) + "$"
}

// queryKey returns every item stored under one data-table partition key.
func (b *Backend) queryKey(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(b.client, &dynamodb.QueryInput{
		TableName:              aws.String(b.config.DataTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// readEntries loads the current index entry list for a data key.
func (b *Backend) readEntries(ctx context.Context, pk string) ([]backend.IndexEntry, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.config.DataTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: entriesSK},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, nil
	}
	raw, ok := result.Item["entries"].(*types.AttributeValueMemberL)
	if !ok {
		return nil, nil
	}
	var entries []backend.IndexEntry
	if err := attributevalue.UnmarshalList(raw.Value, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// dedupe drops duplicate index entries (the same token derived from two
// fields, or a repeated list element) preserving first-seen order.
func dedupe(entries []backend.IndexEntry) []backend.IndexEntry {
	seen := make(map[backend.IndexEntry]bool, len(entries))
	out := make([]backend.IndexEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// stringAttr extracts a string attribute from an item.
func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// translate maps SDK failures onto the backend error contract. Context
// cancellation passes through so callers can tell "gave up" from "down".
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", backend.ErrUnavailable, err)
}
