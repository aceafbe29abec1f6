package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

const caseStatisticsCollectionName = "casestatistics"

// CaseStatisticsDatabase is the Historian's durable per-case rollup, upserted
// once per tick per observed case.
type CaseStatisticsDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CaseStatistics, error)
	FindOneAndUpdate(ctx context.Context, filter, update interface{}, opts ...*options.FindOneAndUpdateOptions) error
}

type caseStatisticsDatabase struct {
	db DatabaseHelper
}

// NewCaseStatisticsDatabase initializes a new instance of case statistics database with the provided db connection
func NewCaseStatisticsDatabase(db DatabaseHelper) CaseStatisticsDatabase {
	return &caseStatisticsDatabase{
		db: db,
	}
}

func (c *caseStatisticsDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CaseStatistics, error) {
	stats := &models.CaseStatistics{}
	err := c.db.Collection(caseStatisticsCollectionName).FindOne(ctx, filter, opts...).Decode(stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *caseStatisticsDatabase) FindOneAndUpdate(ctx context.Context, filter, update interface{}, opts ...*options.FindOneAndUpdateOptions) error {
	var out models.CaseStatistics
	return c.db.Collection(caseStatisticsCollectionName).FindOneAndUpdate(ctx, filter, update, opts...).Decode(&out)
}
