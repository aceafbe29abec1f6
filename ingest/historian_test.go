package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

func TestSelectHistoryEntries_FirstSightingRecorded(t *testing.T) {
	h := NewHistorian(nil, nil)
	courts := []models.Court{{CourtNumber: "1", CaseNumber: "CR/1", QueuePosition: intPtr(2)}}
	entries := h.selectHistoryEntries(courts, time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, "CR/1", entries[0].CaseNumber)
}

func TestSelectHistoryEntries_UnchangedStateNotReRecorded(t *testing.T) {
	h := NewHistorian(nil, nil)
	now := time.Now()
	court := models.Court{CourtNumber: "1", CaseNumber: "CR/1", CaseStatus: models.CaseStatusInSession, QueuePosition: intPtr(2)}

	first := h.selectHistoryEntries([]models.Court{court}, now)
	require.Len(t, first, 1)

	second := h.selectHistoryEntries([]models.Court{court}, now.Add(time.Minute))
	assert.Empty(t, second, "identical caseNumber/status/position for the same court must not duplicate a history row")
}

func TestSelectHistoryEntries_PositionChangeRecordsNewRow(t *testing.T) {
	h := NewHistorian(nil, nil)
	now := time.Now()
	court := models.Court{CourtNumber: "1", CaseNumber: "CR/1", QueuePosition: intPtr(2)}
	h.selectHistoryEntries([]models.Court{court}, now)

	moved := court
	moved.QueuePosition = intPtr(1)
	entries := h.selectHistoryEntries([]models.Court{moved}, now.Add(time.Minute))
	require.Len(t, entries, 1, "a position change on the same case is a new observation worth recording")
}

func TestSelectHistoryEntries_CourtsWithoutNumberSkipped(t *testing.T) {
	h := NewHistorian(nil, nil)
	entries := h.selectHistoryEntries([]models.Court{{CourtNumber: "", CaseNumber: "CR/1"}}, time.Now())
	assert.Empty(t, entries)
}

func TestIntPtrEqual(t *testing.T) {
	assert.True(t, intPtrEqual(nil, nil))
	assert.False(t, intPtrEqual(intPtr(1), nil))
	assert.False(t, intPtrEqual(nil, intPtr(1)))
	assert.True(t, intPtrEqual(intPtr(3), intPtr(3)))
	assert.False(t, intPtrEqual(intPtr(3), intPtr(4)))
}

func TestAppendUnique(t *testing.T) {
	set := appendUnique(nil, "a")
	set = appendUnique(set, "b")
	set = appendUnique(set, "a")
	set = appendUnique(set, "")
	assert.Equal(t, []string{"a", "b"}, set)
}

func TestComputePositionStats_EmptyHistory(t *testing.T) {
	median, stddev := computePositionStats(nil)
	assert.Zero(t, median)
	assert.Zero(t, stddev)
}

func TestComputePositionStats_IgnoresNilPositions(t *testing.T) {
	history := []models.StatusHistoryEntry{
		{Position: intPtr(2)},
		{Position: nil},
		{Position: intPtr(4)},
	}
	median, stddev := computePositionStats(history)
	assert.Equal(t, 3.0, median)
	assert.Greater(t, stddev, 0.0)
}

func TestIsBulkDuplicateKeyErr_PlainDuplicateKeyError(t *testing.T) {
	err := mongo.CommandError{Code: 11000, Message: "duplicate key"}
	assert.True(t, isBulkDuplicateKeyErr(err))
}

func TestIsBulkDuplicateKeyErr_OtherErrorNotSwallowed(t *testing.T) {
	assert.False(t, isBulkDuplicateKeyErr(context.DeadlineExceeded))
}

// fakeCaseStatisticsDB is a hand-written stand-in for databases.CaseStatisticsDatabase.
type fakeCaseStatisticsDB struct {
	existing *models.CaseStatistics
	findErr  error
	updated  *models.CaseStatistics
}

func (f *fakeCaseStatisticsDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CaseStatistics, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.existing, nil
}

func (f *fakeCaseStatisticsDB) FindOneAndUpdate(ctx context.Context, filter, update interface{}, opts ...*options.FindOneAndUpdateOptions) error {
	if set, ok := update.(bson.M); ok {
		if s, ok := set["$set"].(*models.CaseStatistics); ok {
			f.updated = s
		}
	}
	return nil
}

func TestUpsertOneStatistic_NewCaseSeedsFirstSeen(t *testing.T) {
	statsDB := &fakeCaseStatisticsDB{findErr: mongo.ErrNoDocuments}
	h := NewHistorian(nil, statsDB)
	now := time.Now()

	err := h.upsertOneStatistic(context.Background(), "CR/1", models.Court{CourtNumber: "1", JudgeName: "J. Doe", QueuePosition: intPtr(2)}, now)
	require.NoError(t, err)
	require.NotNil(t, statsDB.updated)
	assert.Equal(t, now, statsDB.updated.FirstSeen)
}
