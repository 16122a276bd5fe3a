// Package stream provides the DynamoDB Streams handler that cleans up
// after store deletion. Deleting a store only removes its metadata record;
// the rows it contained are unreachable but physically retained. The
// purge handler runs asynchronously off the table stream and deletes them
// for real, index entries included.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/internal/keys"
)

// Purger processes stream records for deleted store metadata.
type Purger struct {
	backend backend.Backend
	logger  *slog.Logger

	// PageSize bounds how many row keys are fetched per index page.
	PageSize int
}

// NewPurger creates a stream purge handler.
func NewPurger(b backend.Backend, logger *slog.Logger) *Purger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{backend: b, logger: logger, PageSize: 100}
}

// HandleStorePurge processes DynamoDB stream events, purging the rows of
// every removed store record. Designed to be used as an AWS Lambda handler.
func (p *Purger) HandleStorePurge(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := p.processRecord(ctx, record); err != nil {
			p.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord purges one removed store, if the record is one.
func (p *Purger) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	pk := getStringAttr(record.Change.Keys, "pk")
	bucket, storeKey, found := strings.Cut(pk, "#")
	if !found || bucket != keys.StoreBucket {
		return nil
	}
	sk := getStringAttr(record.Change.Keys, "sk")
	if !strings.HasPrefix(sk, versionSK) {
		// Entries records and index rows ride the same stream; only the
		// version record identifies the deleted store.
		return nil
	}

	owner, storeID := keys.SplitRowKey(storeKey)

	p.logger.Info("purging deleted store",
		"owner", owner,
		"storeID", storeID,
	)

	purged, err := p.purgeRows(ctx, storeID)
	if err != nil {
		return fmt.Errorf("purge rows for %s: %w", storeID, err)
	}

	p.logger.Info("store purge completed",
		"storeID", storeID,
		"rowsPurged", purged,
	)
	return nil
}

// versionSK is the sort-key prefix that marks a version record in the
// data table.
const versionSK = "w#"

// purgeRows walks the store's structural index and deletes every row.
// Each delete drops the row's index entries too, so the walk shrinks as
// it goes; it always restarts from the front.
func (p *Purger) purgeRows(ctx context.Context, storeID string) (int, error) {
	purged := 0
	for {
		page, err := p.backend.IndexQuery(ctx, keys.RowBucket, backend.IndexQuery{
			Name:  keys.MetaIndex(storeID, keys.MetaCreatedAt),
			Limit: p.PageSize,
		})
		if err != nil {
			return purged, err
		}
		if len(page.Keys) == 0 {
			return purged, nil
		}
		for _, key := range page.Keys {
			if err := p.backend.Delete(ctx, keys.RowBucket, key); err != nil {
				return purged, err
			}
			purged++
		}
	}
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		return v.String()
	}
	return ""
}
