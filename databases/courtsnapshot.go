package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

const courtSnapshotCollectionName = "courtsnapshots"

// CourtSnapshotDatabase backs the Scheduler's periodic full-board snapshot
// job, independent of the per-court CurrentCourtDatabase.
type CourtSnapshotDatabase interface {
	InsertOne(ctx context.Context, snapshot models.CourtSnapshot) (InsertOneResultHelper, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CourtSnapshot, error)
}

type courtSnapshotDatabase struct {
	db DatabaseHelper
}

// NewCourtSnapshotDatabase initializes a new instance of court snapshot database with the provided db connection
func NewCourtSnapshotDatabase(db DatabaseHelper) CourtSnapshotDatabase {
	return &courtSnapshotDatabase{
		db: db,
	}
}

func (c *courtSnapshotDatabase) InsertOne(ctx context.Context, snapshot models.CourtSnapshot) (InsertOneResultHelper, error) {
	return c.db.Collection(courtSnapshotCollectionName).InsertOne(ctx, snapshot), nil
}

func (c *courtSnapshotDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CourtSnapshot, error) {
	var snapshots []models.CourtSnapshot
	cur := c.db.Collection(courtSnapshotCollectionName).Find(ctx, filter, opts...)
	if err := cur.Decode(&snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}
