package models

import "time"

// Device is a registered mobile device. It is owned by the (out-of-scope)
// device registration CRUD surface and is read-only to the ingest core.
type Device struct {
	DeviceID  string    `bson:"_id" json:"deviceId"`
	Token     string    `bson:"token" json:"token"`       // Expo push token, e.g. "ExponentPushToken[xxx]"
	Platform  string    `bson:"platform" json:"platform"` // "ios" or "android"
	Active    bool      `bson:"active" json:"active"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NotificationLog records a single push send attempt for dedup and audit.
// Dedup-indexed on (DeviceID, CaseNumber, NotificationType, CourtNumber),
// TTL 30 days.
type NotificationLog struct {
	DeviceID         string    `bson:"deviceId" json:"deviceId"`
	CaseNumber       string    `bson:"caseNumber" json:"caseNumber"`
	NotificationType string    `bson:"notificationType" json:"notificationType"`
	CourtNumber      string    `bson:"courtNumber" json:"courtNumber"`
	Success          bool      `bson:"success" json:"success"`
	Error            string    `bson:"error,omitempty" json:"error,omitempty"`
	SentAt           time.Time `bson:"sentAt" json:"sentAt"`
}

// SchedulerLock backs the Scheduler's reentrancy guard and error backoff
// window durably, so a process restart doesn't accidentally fire an
// overlapping tick or skip a backoff window still in effect.
type SchedulerLock struct {
	Name              string    `bson:"_id" json:"name"`
	LockedUntil       time.Time `bson:"lockedUntil" json:"lockedUntil"`
	BackoffUntil      time.Time `bson:"backoffUntil" json:"backoffUntil"`
	ConsecutiveErrors int       `bson:"consecutiveErrors" json:"consecutiveErrors"`
	InstanceID        string    `bson:"instanceId" json:"instanceId"`
}
