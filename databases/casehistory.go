package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

const caseHistoryCollectionName = "casehistory"

// CaseHistoryDatabase is the Historian's append-only observation log. Writes
// are bulk, ordered:false, and expected to hit duplicate-key errors on
// replay - see InsertMany.
type CaseHistoryDatabase interface {
	InsertMany(ctx context.Context, entries []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CaseHistoryEntry, error)
}

type caseHistoryDatabase struct {
	db DatabaseHelper
}

// NewCaseHistoryDatabase initializes a new instance of case history database with the provided db connection
func NewCaseHistoryDatabase(db DatabaseHelper) CaseHistoryDatabase {
	return &caseHistoryDatabase{
		db: db,
	}
}

func (c *caseHistoryDatabase) InsertMany(ctx context.Context, entries []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	return c.db.Collection(caseHistoryCollectionName).InsertMany(ctx, entries, opts...)
}

func (c *caseHistoryDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CaseHistoryEntry, error) {
	var entries []models.CaseHistoryEntry
	cur := c.db.Collection(caseHistoryCollectionName).Find(ctx, filter, opts...)
	if err := cur.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}
