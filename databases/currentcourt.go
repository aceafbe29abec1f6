package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

const currentCourtCollectionName = "currentcourts"

// CurrentCourtDatabase is the DeltaEngine's durable per-courtCode view. The
// full set is read once at startup to seed lastFullCourt; every tick then
// writes back each court it saw (dataHash and changedAt only when the hash
// changed) and bumps missingCount for courts it did not see.
type CurrentCourtDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CurrentCourt, error)
	UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type currentCourtDatabase struct {
	db DatabaseHelper
}

// NewCurrentCourtDatabase initializes a new instance of current court database with the provided db connection
func NewCurrentCourtDatabase(db DatabaseHelper) CurrentCourtDatabase {
	return &currentCourtDatabase{
		db: db,
	}
}

func (c *currentCourtDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CurrentCourt, error) {
	var courts []models.CurrentCourt
	cur := c.db.Collection(currentCourtCollectionName).Find(ctx, filter, opts...)
	if err := cur.Decode(&courts); err != nil {
		return nil, err
	}
	return courts, nil
}

func (c *currentCourtDatabase) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(currentCourtCollectionName).UpdateOne(ctx, filter, update, opts...)
}
