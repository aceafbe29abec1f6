package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

const watchlistCollectionName = "watchlists"

// WatchlistDatabase contains the methods the WatchlistProcessor needs to
// read active subscriptions and persist its per-tick state transitions.
type WatchlistDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Watchlist, error)
	UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type watchlistDatabase struct {
	db DatabaseHelper
}

// NewWatchlistDatabase initializes a new instance of watchlist database with the provided db connection
func NewWatchlistDatabase(db DatabaseHelper) WatchlistDatabase {
	return &watchlistDatabase{
		db: db,
	}
}

func (w *watchlistDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Watchlist, error) {
	var entries []models.Watchlist
	cur := w.db.Collection(watchlistCollectionName).Find(ctx, filter, opts...)
	if err := cur.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (w *watchlistDatabase) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return w.db.Collection(watchlistCollectionName).UpdateOne(ctx, filter, update, opts...)
}
