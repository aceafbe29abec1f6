package models

import "time"

// BenchType classifies whether a court is presided by a single judge or a
// division bench.
type BenchType string

// Recognized bench types.
const (
	SingleBenchType   BenchType = "SingleBench"
	DivisionBenchType BenchType = "DivisionBench"
)

// CaseStatus is the terminal classification derived from a court's caseinfo
// footer text.
type CaseStatus string

// Recognized case statuses. The empty value means no case is currently
// associated with the court.
const (
	CaseStatusInSession   CaseStatus = "IN_SESSION"
	CaseStatusRecess      CaseStatus = "RECESS"
	CaseStatusSittingOver CaseStatus = "SITTING_OVER"
	CaseStatusNone        CaseStatus = ""
)

// CaseType mirrors CaseStatus in a lowercase vocabulary; the Parser sets both
// from the same footer. The pending-queue and history layers key on
// CaseStatus.
type CaseType string

// Recognized case types.
const (
	CaseTypeActive      CaseType = "active"
	CaseTypeRecess      CaseType = "recess"
	CaseTypeSittingOver CaseType = "sitting_over"
	CaseTypeNone        CaseType = ""
)

// Court is the transient per-tick record produced by the Parser for a single
// courtroom card on the streaming board. It is regenerated every tick and is
// never persisted on its own (only folded into CurrentCourt, CourtSnapshot,
// CaseHistory and CaseStatistics documents).
type Court struct {
	CourtCode  string `bson:"courtCode" json:"courtCode"`
	CourtNumber string `bson:"courtNumber" json:"courtNumber"`

	JudgeName   string    `bson:"judgeName" json:"judgeName"`
	BenchType   BenchType `bson:"benchType" json:"benchType"`
	JudgeCount  int       `bson:"judgeCount" json:"judgeCount"`
	JudgePhotos []string  `bson:"judgePhotos" json:"judgePhotos"`
	// JudgePhotoMirrors holds the Cloudinary-mirrored copy of each entry in
	// JudgePhotos, index-aligned. Empty when photo mirroring is disabled or a
	// given photo failed to mirror.
	JudgePhotoMirrors []string `bson:"judgePhotoMirrors,omitempty" json:"judgePhotoMirrors,omitempty"`

	CaseNumber string     `bson:"caseNumber,omitempty" json:"caseNumber,omitempty"`
	CaseStatus CaseStatus `bson:"caseStatus,omitempty" json:"caseStatus,omitempty"`
	CaseType   CaseType   `bson:"caseType,omitempty" json:"caseType,omitempty"`

	SrNo          string `bson:"srNo,omitempty" json:"srNo,omitempty"`
	QueuePosition *int   `bson:"queuePosition,omitempty" json:"queuePosition,omitempty"`

	StreamURL string `bson:"streamUrl,omitempty" json:"streamUrl,omitempty"`
	HasStream bool   `bson:"hasStream" json:"hasStream"`
	IsLive    bool   `bson:"isLive" json:"isLive"`
	IsActive  bool   `bson:"isActive" json:"isActive"`

	ScrapedAt time.Time `bson:"scrapedAt" json:"scrapedAt"`
}

// CurrentCourt is the durable per-courtCode view the DeltaEngine maintains.
// Invariant: MissingCount == 0 iff the court appeared in the most recent
// tick; IsVisible == (MissingCount < 3).
type CurrentCourt struct {
	CourtCode    string    `bson:"_id" json:"courtCode"`
	Data         Court     `bson:"data" json:"data"`
	DataHash     string    `bson:"dataHash" json:"dataHash"`
	CheckedAt    time.Time `bson:"checkedAt" json:"checkedAt"`
	ChangedAt    time.Time `bson:"changedAt" json:"changedAt"`
	MissingCount int       `bson:"missingCount" json:"missingCount"`
	IsVisible    bool      `bson:"isVisible" json:"isVisible"`
}

// CourtSnapshot is the single periodic full-board snapshot written by the
// Scheduler's 5-minute auxiliary snapshot job, distinct from the per-court
// CurrentCourt view.
type CourtSnapshot struct {
	TakenAt time.Time `bson:"takenAt" json:"takenAt"`
	Courts  []Court   `bson:"courts" json:"courts"`
}
