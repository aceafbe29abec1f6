package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/databases"
	"github.com/linesmerrill/courtwatch-ingest/models"
)

// TickOutcome summarizes one pipeline run for logging and the manual
// /internal/tick endpoint's response.
type TickOutcome struct {
	TickID      string
	Skipped     bool
	CourtCount  int
	ChangedCount int
	AlertCount  int
	Duration    time.Duration
}

// Pipeline wires the seven components into the specification's fixed data
// flow: Scheduler calls Run once per tick; everything inside Run executes
// serially except where a stage explicitly documents internal fan-out.
type Pipeline struct {
	Fetcher     *Fetcher
	Parser      *Parser
	Delta       *DeltaEngine
	Historian   *Historian
	Watchlist   *WatchlistProcessor
	Gateway     PushGateway
	Broadcaster Broadcaster
	PhotoMirror *PhotoMirror
	DeviceDB    databases.DeviceDatabase
	NotifyLogDB databases.NotificationLogDatabase
}

// Run executes exactly one tick. It never panics across a watchlist or push
// failure - those are logged and swallowed per the specification's error
// isolation rules - but a Fetcher or Parser failure aborts the tick and
// bubbles up so the Scheduler can enter backoff.
func (p *Pipeline) Run(ctx context.Context) (*TickOutcome, error) {
	tickID := uuid.NewString()
	start := time.Now()
	log := zap.S().With("tickId", tickID)

	result, err := p.Fetcher.Fetch(ctx)
	if err != nil {
		log.Errorw("fetch failed", "error", err)
		return nil, err
	}
	if result.Skipped {
		log.Debug("tick skipped: upstream not modified")
		return &TickOutcome{TickID: tickID, Skipped: true, Duration: time.Since(start)}, nil
	}

	now := time.Now()
	rows, err := p.Parser.Parse(result.Rows, result.HTML, now)
	if err != nil {
		log.Errorw("parse failed", "error", err)
		return nil, err
	}

	if p.PhotoMirror != nil {
		for i := range rows {
			if len(rows[i].Court.JudgePhotos) > 0 {
				rows[i].Court.JudgePhotoMirrors = p.PhotoMirror.Mirror(ctx, rows[i].Court.CourtCode, rows[i].Court.JudgePhotos)
			}
		}
	}

	delta, err := p.Delta.Compute(ctx, rows, now)
	if err != nil {
		log.Errorw("delta computation failed", "error", err)
		return nil, err
	}

	if err := p.Historian.Record(ctx, delta.All, now); err != nil {
		log.Errorw("historian write failed", "error", err)
	}

	queues := BuildQueues(delta.All)
	alerts := p.Watchlist.Process(ctx, delta.All, queues, now)
	p.dispatchAlerts(ctx, alerts, log)

	if len(delta.Changed) > 0 && p.Broadcaster != nil {
		p.Broadcaster.Broadcast(BroadcastPayload{Type: "COURT_DELTA", Courts: delta.Changed, ScrapedAt: now})
	}

	outcome := &TickOutcome{
		TickID:       tickID,
		CourtCount:   len(delta.All),
		ChangedCount: len(delta.Changed),
		AlertCount:   len(alerts),
		Duration:     time.Since(start),
	}
	log.Infow("tick completed", "courts", outcome.CourtCount, "changed", outcome.ChangedCount, "alerts", outcome.AlertCount, "duration", outcome.Duration)
	return outcome, nil
}

// dispatchAlerts sends each alert through the push gateway sequentially -
// the specification requires per-watchlist ordering and protects the
// gateway from bursts - and records a NotificationLog row for every attempt
// regardless of outcome. A watchlist's lastSeenStatus/lastNotificationTime
// only advance once its send actually succeeds, so a failed send leaves the
// watchlist exactly as it was and the same alert is eligible again next tick.
func (p *Pipeline) dispatchAlerts(ctx context.Context, alerts []Alert, log *zap.SugaredLogger) {
	for _, a := range alerts {
		token, ok := p.deviceToken(ctx, a.DeviceID)
		var sendErr error
		if !ok {
			sendErr = errors.New("no active device token")
		} else {
			title, body := alertCopy(a)
			sendErr = p.Gateway.Send(ctx, token, title, body, alertData(a))
		}
		if sendErr != nil {
			log.Warnw("push send failed", "deviceId", a.DeviceID, "caseNumber", a.CaseNumber, "type", a.Type, "error", sendErr)
		} else if err := p.Watchlist.ConfirmAlert(ctx, a.WatchlistID, a.PendingState, time.Now()); err != nil {
			log.Warnw("failed to confirm watchlist alert state", "watchlistId", a.WatchlistID.Hex(), "error", err)
		}
		p.logNotification(ctx, a, sendErr)
	}
}

func (p *Pipeline) deviceToken(ctx context.Context, deviceID string) (string, bool) {
	device, err := p.DeviceDB.FindOne(ctx, bson.M{"_id": deviceID, "active": true})
	if err != nil || device == nil {
		return "", false
	}
	return device.Token, true
}

func (p *Pipeline) logNotification(ctx context.Context, a Alert, sendErr error) {
	entry := models.NotificationLog{
		DeviceID:         a.DeviceID,
		CaseNumber:       a.CaseNumber,
		NotificationType: string(a.Type),
		CourtNumber:      a.CourtNumber,
		Success:          sendErr == nil,
		SentAt:           time.Now(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if _, err := p.NotifyLogDB.InsertOne(ctx, entry); err != nil {
		zap.S().Warnw("failed to write notification log", "error", err)
	}
}
