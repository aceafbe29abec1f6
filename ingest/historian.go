package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/courtwatch-ingest/databases"
	"github.com/linesmerrill/courtwatch-ingest/models"
)

// lastCourtState is the process-local dedup key the Historian keeps for
// CaseHistory: a history event is only worth writing when at least one of
// these three fields moved since the last tick that mentioned this court
// number.
type lastCourtState struct {
	caseNumber    string
	status        models.CaseStatus
	queuePosition *int
}

// Historian owns two idempotent write paths: an append-only CaseHistory log
// and a per-case CaseStatistics rollup.
type Historian struct {
	mu       sync.Mutex
	lastSeen map[string]lastCourtState

	historyDB    databases.CaseHistoryDatabase
	statisticsDB databases.CaseStatisticsDatabase
}

// NewHistorian wires a Historian to its two durable stores.
func NewHistorian(historyDB databases.CaseHistoryDatabase, statisticsDB databases.CaseStatisticsDatabase) *Historian {
	return &Historian{
		lastSeen:     make(map[string]lastCourtState),
		historyDB:    historyDB,
		statisticsDB: statisticsDB,
	}
}

// Record processes every court from this tick: it decides which ones
// warrant a new CaseHistory row, bulk-inserts them tolerant of duplicate
// keys, and upserts CaseStatistics for each. The history rows go out as one
// bulk insert; the statistics upserts that follow it run concurrently across
// cases - single-tick ordering is preserved because the whole call is
// invoked once per tick, strictly after the DeltaEngine.
func (h *Historian) Record(ctx context.Context, courts []models.Court, now time.Time) error {
	entries := h.selectHistoryEntries(courts, now)
	if len(entries) > 0 {
		if err := h.bulkInsertHistory(ctx, entries); err != nil {
			return err
		}
	}
	return h.upsertStatistics(ctx, courts, now)
}

func (h *Historian) selectHistoryEntries(courts []models.Court, now time.Time) []models.CaseHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	var entries []models.CaseHistoryEntry
	for _, c := range courts {
		if c.CourtNumber == "" {
			continue
		}
		state := lastCourtState{caseNumber: c.CaseNumber, status: c.CaseStatus, queuePosition: c.QueuePosition}
		prev, had := h.lastSeen[c.CourtNumber]
		if had && prev.caseNumber == state.caseNumber && prev.status == state.status && intPtrEqual(prev.queuePosition, state.queuePosition) {
			continue
		}
		h.lastSeen[c.CourtNumber] = state
		entries = append(entries, models.CaseHistoryEntry{
			CaseNumber:  c.CaseNumber,
			Status:      c.CaseStatus,
			Position:    c.QueuePosition,
			CourtNumber: c.CourtNumber,
			JudgeName:   c.JudgeName,
			ScrapedAt:   now,
		})
	}
	return entries
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// bulkInsertHistory writes with ordered:false so a duplicate-key conflict on
// the (caseNumber, status, position, courtNumber, scrapedAt) uniqueness
// index leaves every non-conflicting insert intact - a replayed tick is
// expected to produce exactly this outcome.
func (h *Historian) bulkInsertHistory(ctx context.Context, entries []models.CaseHistoryEntry) error {
	docs := make([]interface{}, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	ordered := false
	_, err := h.historyDB.InsertMany(ctx, docs, &options.InsertManyOptions{Ordered: &ordered})
	if err != nil {
		if isBulkDuplicateKeyErr(err) {
			zap.S().Debugw("case history bulk insert saw expected duplicate keys", "count", len(entries))
			return nil
		}
		return pkgerrors.Wrap(err, "bulk inserting case history")
	}
	return nil
}

func isBulkDuplicateKeyErr(err error) bool {
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			if we.Code != 11000 {
				return false
			}
		}
		return true
	}
	return mongo.IsDuplicateKeyError(err)
}

// upsertStatistics fans out one goroutine per distinct case number, bounded
// the same way the Parser bounds its per-row fan-out.
func (h *Historian) upsertStatistics(ctx context.Context, courts []models.Court, now time.Time) error {
	byCase := make(map[string]models.Court)
	for _, c := range courts {
		if c.CaseNumber == "" {
			continue
		}
		byCase[c.CaseNumber] = c
	}

	var g errgroup.Group
	g.SetLimit(8)
	for caseNumber, court := range byCase {
		caseNumber, court := caseNumber, court
		g.Go(func() error {
			return h.upsertOneStatistic(ctx, caseNumber, court, now)
		})
	}
	return g.Wait()
}

func (h *Historian) upsertOneStatistic(ctx context.Context, caseNumber string, court models.Court, now time.Time) error {
	existing, err := h.statisticsDB.FindOne(ctx, bson.M{"_id": caseNumber})
	if err != nil && err != mongo.ErrNoDocuments {
		return pkgerrors.Wrap(err, "loading case statistics")
	}
	if existing == nil {
		existing = &models.CaseStatistics{CaseNumber: caseNumber, FirstSeen: now}
	}

	existing.LastSeen = now
	existing.TotalAppearances++
	existing.Courts = appendUnique(existing.Courts, court.CourtNumber)
	existing.Judges = appendUnique(existing.Judges, court.JudgeName)

	entry := models.StatusHistoryEntry{
		Status:      court.CaseStatus,
		Timestamp:   now,
		CourtNumber: court.CourtNumber,
		Position:    court.QueuePosition,
	}
	existing.StatusHistory = append(existing.StatusHistory, entry)
	if len(existing.StatusHistory) > models.MaxStatusHistory {
		existing.StatusHistory = existing.StatusHistory[len(existing.StatusHistory)-models.MaxStatusHistory:]
	}

	existing.MedianPosition, existing.PositionStdDev = computePositionStats(existing.StatusHistory)

	filter := bson.M{"_id": caseNumber}
	update := bson.M{"$set": existing}
	return h.statisticsDB.FindOneAndUpdate(ctx, filter, update, &options.FindOneAndUpdateOptions{Upsert: boolPtr(true)})
}

func appendUnique(set []string, value string) []string {
	if value == "" {
		return set
	}
	for _, v := range set {
		if v == value {
			return set
		}
	}
	return append(set, value)
}

// computePositionStats derives the median and standard deviation of every
// non-nil position observed for a case, using montanaflynn/stats rather than
// a hand-rolled reduction.
func computePositionStats(history []models.StatusHistoryEntry) (float64, float64) {
	var positions stats.Float64Data
	for _, h := range history {
		if h.Position != nil {
			positions = append(positions, float64(*h.Position))
		}
	}
	if len(positions) == 0 {
		return 0, 0
	}
	median, err := positions.Median()
	if err != nil {
		median = 0
	}
	stddev, err := positions.StandardDeviation()
	if err != nil {
		stddev = 0
	}
	return median, stddev
}

func boolPtr(b bool) *bool { return &b }
