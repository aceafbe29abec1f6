package ingest

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/databases"
	"github.com/linesmerrill/courtwatch-ingest/models"
)

// WatchlistMissThreshold is the number of consecutive ticks a watched case
// must be absent before a completed alert fires.
const WatchlistMissThreshold = 2

// AlertCooldown is the minimum elapsed time between two alerts on the same
// watchlist entry.
const AlertCooldown = 5 * time.Minute

// AlertType is one of the four push shapes the specification defines.
type AlertType string

// Recognized alert types.
const (
	AlertEarlyWarning AlertType = "early_warning"
	AlertApproaching  AlertType = "approaching"
	AlertInSession    AlertType = "in_session"
	AlertCompleted    AlertType = "completed"
)

// Alert is one emitted push event, ready for the PushGateway. WatchlistID and
// PendingState are not for the gateway - they tell the Pipeline which
// watchlist document to advance, and to what state, once the send actually
// succeeds.
type Alert struct {
	DeviceID    string
	CaseNumber  string
	Type        AlertType
	CourtNumber string
	JudgeName   string
	Position    int // 0 when not applicable (e.g. completed)
	Velocity    int
	StreamURL   string

	WatchlistID  primitive.ObjectID
	PendingState models.WatchState
}

var alertSettingKey = map[AlertType]func(models.NotificationSettings) bool{
	AlertEarlyWarning: func(s models.NotificationSettings) bool { return s.EarlyWarning },
	AlertApproaching:  func(s models.NotificationSettings) bool { return s.Approaching },
	AlertInSession:    func(s models.NotificationSettings) bool { return s.InSession },
	AlertCompleted:    func(s models.NotificationSettings) bool { return s.Completed },
}

// WatchlistProcessor is the per-tick state machine described in the
// specification's central table. It never blocks on more than one
// watchlist at a time, both to protect the push gateway from bursts and to
// keep each document update race-free without a per-document lock.
type WatchlistProcessor struct {
	db databases.WatchlistDatabase
}

// NewWatchlistProcessor wires a WatchlistProcessor to its durable store.
func NewWatchlistProcessor(db databases.WatchlistDatabase) *WatchlistProcessor {
	return &WatchlistProcessor{db: db}
}

// Process runs every active watchlist against this tick's full Court set and
// queues, emitting zero or more alerts. An error in one watchlist is logged
// and swallowed so the rest still get processed.
func (p *WatchlistProcessor) Process(ctx context.Context, courts []models.Court, queues map[string]*CourtQueue, now time.Time) []Alert {
	entries, err := p.db.Find(ctx, bson.M{"active": true})
	if err != nil {
		zap.S().Errorw("failed to load active watchlists", "error", err)
		return nil
	}

	var alerts []Alert
	for _, wl := range entries {
		alert, err := p.processOne(ctx, wl, courts, queues, now)
		if err != nil {
			zap.S().Errorw("watchlist processing failed", "watchlistId", wl.ID.Hex(), "error", err)
			continue
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

func (p *WatchlistProcessor) processOne(ctx context.Context, wl models.Watchlist, courts []models.Court, queues map[string]*CourtQueue, now time.Time) (*Alert, error) {
	court, found := FindByCaseNumber(courts, wl.CaseNumber)
	if !found {
		return p.handleMissing(ctx, wl, now)
	}
	return p.handleFound(ctx, wl, court, queues, now)
}

func (p *WatchlistProcessor) handleMissing(ctx context.Context, wl models.Watchlist, now time.Time) (*Alert, error) {
	wl.MissCount++

	var alert *Alert
	if wl.MissCount >= WatchlistMissThreshold && wl.LastSeenStatus != models.WatchStateCompleted &&
		wl.NotificationSettings.Completed && cooldownPassed(wl.LastNotificationTime, now) {
		alert = &Alert{
			DeviceID:     wl.DeviceID,
			CaseNumber:   wl.CaseNumber,
			Type:         AlertCompleted,
			WatchlistID:  wl.ID,
			PendingState: models.WatchStateCompleted,
		}
	}

	if err := p.persist(ctx, wl, now); err != nil {
		return nil, err
	}
	return alert, nil
}

func (p *WatchlistProcessor) handleFound(ctx context.Context, wl models.Watchlist, court models.Court, queues map[string]*CourtQueue, now time.Time) (*Alert, error) {
	wl.MissCount = 0

	var position int
	if q, ok := queues[court.CourtNumber]; ok {
		position = q.PositionOf(court.CaseNumber)
	}

	velocity := 0
	if wl.LastSeenPosition != nil && position != 0 {
		velocity = *wl.LastSeenPosition - position
	}

	newState, alertType := deriveState(court, position)

	var alert *Alert
	if newState != models.WatchStateNone && newState != wl.LastSeenStatus &&
		alertSettingKey[alertType](wl.NotificationSettings) && cooldownPassed(wl.LastNotificationTime, now) {
		alert = &Alert{
			DeviceID:     wl.DeviceID,
			CaseNumber:   wl.CaseNumber,
			Type:         alertType,
			CourtNumber:  court.CourtNumber,
			JudgeName:    court.JudgeName,
			Position:     position,
			Velocity:     velocity,
			StreamURL:    court.StreamURL,
			WatchlistID:  wl.ID,
			PendingState: newState,
		}
	}

	if position != 0 {
		wl.LastSeenPosition = &position
	} else {
		wl.LastSeenPosition = nil
	}
	wl.LastSeenCourt = court.CourtNumber

	if err := p.persist(ctx, wl, now); err != nil {
		return nil, err
	}
	return alert, nil
}

// deriveState applies the specification's first-match state table.
func deriveState(court models.Court, position int) (models.WatchState, AlertType) {
	switch {
	case court.CaseStatus == models.CaseStatusInSession:
		return models.WatchStateInSession, AlertInSession
	case position == 1:
		return models.WatchStateNext, AlertApproaching
	case position != 0 && position <= 3:
		return models.WatchStateVeryNear, AlertApproaching
	case position != 0 && position <= 10:
		return models.WatchStateNear, AlertEarlyWarning
	case position != 0:
		return models.WatchStateFar, AlertEarlyWarning
	default:
		return models.WatchStateNone, ""
	}
}

func cooldownPassed(last time.Time, now time.Time) bool {
	return last.IsZero() || now.Sub(last) >= AlertCooldown
}

// persist commits every tracking field this tick touched except
// lastSeenStatus and lastNotificationTime. Those two are only ever advanced
// by ConfirmAlert, once the corresponding push has actually gone out - a
// failed send must leave them exactly as they were so the same alert is
// eligible again on the next tick.
func (p *WatchlistProcessor) persist(ctx context.Context, wl models.Watchlist, now time.Time) error {
	filter := bson.M{"_id": wl.ID}
	update := bson.M{"$set": bson.M{
		"lastSeenCourt":    wl.LastSeenCourt,
		"lastSeenPosition": wl.LastSeenPosition,
		"missCount":        wl.MissCount,
		"updatedAt":        now,
	}}
	_, err := p.db.UpdateOne(ctx, filter, update)
	return err
}

// ConfirmAlert advances a watchlist's alert state after its push has
// actually been delivered. Called once per Alert, and only on success -
// see Pipeline.dispatchAlerts.
func (p *WatchlistProcessor) ConfirmAlert(ctx context.Context, watchlistID primitive.ObjectID, newState models.WatchState, sentAt time.Time) error {
	filter := bson.M{"_id": watchlistID}
	update := bson.M{"$set": bson.M{
		"lastSeenStatus":       newState,
		"lastNotificationTime": sentAt,
		"updatedAt":            sentAt,
	}}
	_, err := p.db.UpdateOne(ctx, filter, update)
	return err
}
