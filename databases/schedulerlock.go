package databases

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

const schedulerLockCollectionName = "schedulerlocks"

// SchedulerLockDatabase backs the Scheduler's single-writer envelope. A lock
// document is keyed by job name; TryAcquireLock only succeeds when no other
// instance holds an unexpired lock, making the reentrancy guard durable
// across process restarts and safe for more than one scheduler replica.
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, instanceID string) error
	Get(ctx context.Context, name string) (*models.SchedulerLock, error)
	SetBackoff(ctx context.Context, name string, until time.Time, consecutiveErrors int) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock database with the provided db connection
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db: db,
	}
}

// TryAcquireLock upserts the lock document only if it is missing or expired,
// using findOneAndUpdate's atomicity to avoid a check-then-set race between
// concurrent instances.
func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	filter := bson.M{
		"_id": name,
		"$or": []bson.M{
			{"lockedUntil": bson.M{"$lte": now}},
			{"lockedUntil": bson.M{"$exists": false}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"lockedUntil": now.Add(ttl),
			"instanceId":  instanceID,
		},
		"$setOnInsert": bson.M{
			"backoffUntil":      time.Time{},
			"consecutiveErrors": 0,
		},
	}
	after := options.After
	upsert := true
	var out models.SchedulerLock
	err := s.db.Collection(schedulerLockCollectionName).FindOneAndUpdate(ctx, filter, update, &options.FindOneAndUpdateOptions{
		ReturnDocument: &after,
		Upsert:         &upsert,
	}).Decode(&out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	return out.InstanceID == instanceID, nil
}

// ReleaseLock clears the lock ahead of its TTL, but only when the caller
// still owns it - a slow instance that outlived its own TTL must not release
// a lock a newer instance has since acquired.
func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, name, instanceID string) error {
	filter := bson.M{"_id": name, "instanceId": instanceID}
	update := bson.M{"$set": bson.M{"lockedUntil": time.Time{}}}
	_, err := s.db.Collection(schedulerLockCollectionName).UpdateOne(ctx, filter, update)
	return err
}

func (s *schedulerLockDatabase) Get(ctx context.Context, name string) (*models.SchedulerLock, error) {
	lock := &models.SchedulerLock{}
	err := s.db.Collection(schedulerLockCollectionName).FindOne(ctx, bson.M{"_id": name}).Decode(lock)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return &models.SchedulerLock{Name: name}, nil
		}
		return nil, err
	}
	return lock, nil
}

// SetBackoff records a backoff window and its running error count after a
// failed tick, independent of the acquire/release lock lifecycle.
func (s *schedulerLockDatabase) SetBackoff(ctx context.Context, name string, until time.Time, consecutiveErrors int) error {
	filter := bson.M{"_id": name}
	update := bson.M{
		"$set": bson.M{
			"backoffUntil":      until,
			"consecutiveErrors": consecutiveErrors,
		},
	}
	upsert := true
	_, err := s.db.Collection(schedulerLockCollectionName).UpdateOne(ctx, filter, update, &options.UpdateOptions{Upsert: &upsert})
	return err
}
