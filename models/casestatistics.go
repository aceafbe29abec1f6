package models

import "time"

// StatusHistoryEntry is one bounded tail entry in CaseStatistics.
type StatusHistoryEntry struct {
	Status      CaseStatus `bson:"status" json:"status"`
	Timestamp   time.Time  `bson:"timestamp" json:"timestamp"`
	CourtNumber string     `bson:"courtNumber" json:"courtNumber"`
	Position    *int       `bson:"position,omitempty" json:"position,omitempty"`
}

// MaxStatusHistory bounds CaseStatistics.StatusHistory.
const MaxStatusHistory = 100

// CaseStatistics is the durable per-case rollup, keyed by CaseNumber.
type CaseStatistics struct {
	CaseNumber       string               `bson:"_id" json:"caseNumber"`
	FirstSeen        time.Time            `bson:"firstSeen" json:"firstSeen"`
	LastSeen         time.Time            `bson:"lastSeen" json:"lastSeen"`
	TotalAppearances int64                `bson:"totalAppearances" json:"totalAppearances"`
	Courts           []string             `bson:"courts" json:"courts"`
	Judges           []string             `bson:"judges" json:"judges"`
	StatusHistory    []StatusHistoryEntry `bson:"statusHistory" json:"statusHistory"`
	WatchCount       int64                `bson:"watchCount" json:"watchCount"`

	// MedianPosition and PositionStdDev are computed from StatusHistory's
	// non-nil positions on every Historian upsert (see montanaflynn/stats
	// wiring in DESIGN.md); both are zero until at least one position has
	// been observed.
	MedianPosition float64 `bson:"medianPosition" json:"medianPosition"`
	PositionStdDev float64 `bson:"positionStdDev" json:"positionStdDev"`
}
