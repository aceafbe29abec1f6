package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseHistoryEntry is an append-only observation of a court's state. Unique
// on (CaseNumber, Status, Position, CourtNumber, ScrapedAt) so bulk inserts
// with ordered=false are safely idempotent under replay.
type CaseHistoryEntry struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CaseNumber   string             `bson:"caseNumber" json:"caseNumber"`
	Status       CaseStatus         `bson:"status" json:"status"`
	Position     *int               `bson:"position,omitempty" json:"position,omitempty"`
	CourtNumber  string             `bson:"courtNumber" json:"courtNumber"`
	JudgeName    string             `bson:"judgeName,omitempty" json:"judgeName,omitempty"`
	ScrapedAt    time.Time          `bson:"scrapedAt" json:"scrapedAt"`
}
