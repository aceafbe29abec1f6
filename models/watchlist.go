package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WatchState is the WatchlistProcessor's per-case state machine value.
type WatchState string

// Recognized watch states, in ascending proximity order except COMPLETED
// which is terminal.
const (
	WatchStateFar       WatchState = "FAR"
	WatchStateNear      WatchState = "NEAR"
	WatchStateVeryNear  WatchState = "VERY_NEAR"
	WatchStateNext      WatchState = "NEXT"
	WatchStateInSession WatchState = "IN_SESSION"
	WatchStateCompleted WatchState = "COMPLETED"
	WatchStateNone      WatchState = ""
)

// NotificationSettings gates which alert types a watchlist entry wants.
type NotificationSettings struct {
	EarlyWarning bool `bson:"earlyWarning" json:"earlyWarning"`
	Approaching  bool `bson:"approaching" json:"approaching"`
	InSession    bool `bson:"inSession" json:"inSession"`
	Completed    bool `bson:"completed" json:"completed"`
}

// Watchlist is a device's subscription to a single case number. Unique on
// (DeviceID, CaseNumber) while Active.
type Watchlist struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeviceID string             `bson:"deviceId" json:"deviceId"`

	CaseNumber           string               `bson:"caseNumber" json:"caseNumber"`
	NotificationSettings NotificationSettings `bson:"notificationSettings" json:"notificationSettings"`
	Active               bool                 `bson:"active" json:"active"`

	// State fields, mutated only by the WatchlistProcessor.
	LastSeenStatus      WatchState `bson:"lastSeenStatus" json:"lastSeenStatus"`
	LastSeenCourt       string     `bson:"lastSeenCourt,omitempty" json:"lastSeenCourt,omitempty"`
	LastSeenPosition    *int       `bson:"lastSeenPosition,omitempty" json:"lastSeenPosition,omitempty"`
	MissCount           int        `bson:"missCount" json:"missCount"`
	LastNotificationTime time.Time `bson:"lastNotificationTime,omitempty" json:"lastNotificationTime,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
