package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

func intPtr(n int) *int { return &n }

func TestDeriveState_PositionBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		court     models.Court
		position  int
		wantState models.WatchState
		wantAlert AlertType
	}{
		{"position 1 is next", models.Court{}, 1, models.WatchStateNext, AlertApproaching},
		{"position 3 is very near", models.Court{}, 3, models.WatchStateVeryNear, AlertApproaching},
		{"position 4 is near", models.Court{}, 4, models.WatchStateNear, AlertEarlyWarning},
		{"position 10 is near", models.Court{}, 10, models.WatchStateNear, AlertEarlyWarning},
		{"position 11 is far", models.Court{}, 11, models.WatchStateFar, AlertEarlyWarning},
		{"absent from queue", models.Court{}, 0, models.WatchStateNone, ""},
		{
			"in session wins regardless of position",
			models.Court{CaseStatus: models.CaseStatusInSession},
			1,
			models.WatchStateInSession,
			AlertInSession,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state, alert := deriveState(tc.court, tc.position)
			assert.Equal(t, tc.wantState, state)
			assert.Equal(t, tc.wantAlert, alert)
		})
	}
}

func TestCooldownPassed(t *testing.T) {
	now := time.Now()
	assert.True(t, cooldownPassed(time.Time{}, now), "never notified before means cooldown has passed")
	assert.False(t, cooldownPassed(now.Add(-time.Minute), now), "one minute is inside the 5 minute cooldown")
	assert.True(t, cooldownPassed(now.Add(-6*time.Minute), now))
}

// fakeWatchlistDB is a hand-written stand-in for databases.WatchlistDatabase.
type fakeWatchlistDB struct {
	entries []models.Watchlist
	updates []bson.M
}

func (f *fakeWatchlistDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Watchlist, error) {
	return f.entries, nil
}

func (f *fakeWatchlistDB) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.updates = append(f.updates, update.(bson.M)["$set"].(bson.M))
	return &mongo.UpdateResult{}, nil
}

func TestWatchlistProcessor_Process_EmitsApproachingAlertOnFirstNextSighting(t *testing.T) {
	id := primitive.NewObjectID()
	db := &fakeWatchlistDB{entries: []models.Watchlist{{
		ID:                   id,
		DeviceID:             "device-1",
		CaseNumber:           "CR/1/2024",
		NotificationSettings: models.NotificationSettings{Approaching: true},
		Active:               true,
	}}}
	p := NewWatchlistProcessor(db)

	courts := []models.Court{{CourtNumber: "1", CaseNumber: "CR/1/2024", QueuePosition: intPtr(1)}}
	queues := BuildQueues(courts)

	alerts := p.Process(context.Background(), courts, queues, time.Now())
	require.Len(t, alerts, 1)
	assert.Equal(t, id, alerts[0].WatchlistID)
	assert.Equal(t, models.WatchStateNext, alerts[0].PendingState)

	require.Len(t, db.updates, 1, "the alert path must not commit lastSeenStatus/lastNotificationTime itself")
	_, hasStatus := db.updates[0]["lastSeenStatus"]
	_, hasNotified := db.updates[0]["lastNotificationTime"]
	assert.False(t, hasStatus, "lastSeenStatus is only advanced by ConfirmAlert, after a successful send")
	assert.False(t, hasNotified, "lastNotificationTime is only advanced by ConfirmAlert, after a successful send")
	assert.Equal(t, AlertApproaching, alerts[0].Type)
	assert.Equal(t, "device-1", alerts[0].DeviceID)
}

func TestWatchlistProcessor_Process_NoDuplicateAlertOnSameState(t *testing.T) {
	db := &fakeWatchlistDB{entries: []models.Watchlist{{
		ID:                   primitive.NewObjectID(),
		DeviceID:             "device-1",
		CaseNumber:           "CR/1/2024",
		NotificationSettings: models.NotificationSettings{Approaching: true},
		Active:               true,
		LastSeenStatus:       models.WatchStateNext,
	}}}
	p := NewWatchlistProcessor(db)

	courts := []models.Court{{CourtNumber: "1", CaseNumber: "CR/1/2024", QueuePosition: intPtr(1)}}
	queues := BuildQueues(courts)

	alerts := p.Process(context.Background(), courts, queues, time.Now())
	assert.Empty(t, alerts, "state unchanged from last tick must not re-alert")
}

func TestWatchlistProcessor_Process_RespectsCooldownAcrossStateChange(t *testing.T) {
	now := time.Now()
	db := &fakeWatchlistDB{entries: []models.Watchlist{{
		ID:                   primitive.NewObjectID(),
		DeviceID:             "device-1",
		CaseNumber:           "CR/1/2024",
		NotificationSettings: models.NotificationSettings{Approaching: true},
		Active:               true,
		LastSeenStatus:       models.WatchStateFar,
		LastNotificationTime: now.Add(-time.Minute),
	}}}
	p := NewWatchlistProcessor(db)

	courts := []models.Court{{CourtNumber: "1", CaseNumber: "CR/1/2024", QueuePosition: intPtr(1)}}
	queues := BuildQueues(courts)

	alerts := p.Process(context.Background(), courts, queues, now)
	assert.Empty(t, alerts, "a state change inside the cooldown window must not alert")
}

func TestWatchlistProcessor_Process_MissingCaseIncrementsAndEventuallyCompletes(t *testing.T) {
	entry := models.Watchlist{
		ID:                   primitive.NewObjectID(),
		DeviceID:             "device-1",
		CaseNumber:           "CR/1/2024",
		NotificationSettings: models.NotificationSettings{Completed: true},
		Active:               true,
		LastSeenStatus:       models.WatchStateInSession,
		MissCount:            WatchlistMissThreshold - 1,
	}
	db := &fakeWatchlistDB{entries: []models.Watchlist{entry}}
	p := NewWatchlistProcessor(db)

	alerts := p.Process(context.Background(), nil, nil, time.Now())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCompleted, alerts[0].Type)
}

func TestWatchlistProcessor_Process_MissingCaseBelowThresholdDoesNotComplete(t *testing.T) {
	entry := models.Watchlist{
		ID:                   primitive.NewObjectID(),
		DeviceID:             "device-1",
		CaseNumber:           "CR/1/2024",
		NotificationSettings: models.NotificationSettings{Completed: true},
		Active:               true,
		LastSeenStatus:       models.WatchStateInSession,
		MissCount:            0,
	}
	db := &fakeWatchlistDB{entries: []models.Watchlist{entry}}
	p := NewWatchlistProcessor(db)

	alerts := p.Process(context.Background(), nil, nil, time.Now())
	assert.Empty(t, alerts)
}

func TestWatchlistProcessor_Process_DisabledSettingSuppressesAlert(t *testing.T) {
	db := &fakeWatchlistDB{entries: []models.Watchlist{{
		ID:                   primitive.NewObjectID(),
		DeviceID:             "device-1",
		CaseNumber:           "CR/1/2024",
		NotificationSettings: models.NotificationSettings{Approaching: false},
		Active:               true,
	}}}
	p := NewWatchlistProcessor(db)

	courts := []models.Court{{CourtNumber: "1", CaseNumber: "CR/1/2024", QueuePosition: intPtr(1)}}
	queues := BuildQueues(courts)

	alerts := p.Process(context.Background(), courts, queues, time.Now())
	assert.Empty(t, alerts, "a watchlist entry that opted out of approaching alerts must not receive one")
}

func TestConfirmAlert_AdvancesStatusAndNotificationTime(t *testing.T) {
	id := primitive.NewObjectID()
	db := &fakeWatchlistDB{}
	p := NewWatchlistProcessor(db)
	sentAt := time.Now()

	err := p.ConfirmAlert(context.Background(), id, models.WatchStateNext, sentAt)
	require.NoError(t, err)

	require.Len(t, db.updates, 1)
	assert.Equal(t, models.WatchStateNext, db.updates[0]["lastSeenStatus"])
	assert.Equal(t, sentAt, db.updates[0]["lastNotificationTime"])
}

func TestWatchlistProcessor_Process_UnconfirmedAlertIsRetriedNextTick(t *testing.T) {
	id := primitive.NewObjectID()
	entry := models.Watchlist{
		ID:                   id,
		DeviceID:             "device-1",
		CaseNumber:           "CR/1/2024",
		NotificationSettings: models.NotificationSettings{Approaching: true},
		Active:               true,
	}
	db := &fakeWatchlistDB{entries: []models.Watchlist{entry}}
	p := NewWatchlistProcessor(db)

	courts := []models.Court{{CourtNumber: "1", CaseNumber: "CR/1/2024", QueuePosition: intPtr(1)}}
	queues := BuildQueues(courts)

	// First tick derives the alert but the send is never confirmed - the
	// fake watchlist store keeps serving the same unmodified entry, the way
	// a real send failure would leave the document untouched.
	first := p.Process(context.Background(), courts, queues, time.Now())
	require.Len(t, first, 1)

	second := p.Process(context.Background(), courts, queues, time.Now())
	require.Len(t, second, 1, "an alert whose send was never confirmed must be retried on the next tick")
	assert.Equal(t, first[0].Type, second[0].Type)
}
