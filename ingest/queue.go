package ingest

import (
	"sort"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

// CourtQueue is one courtNumber's pending line and current case, rebuilt
// fresh every tick from that tick's full Court set.
type CourtQueue struct {
	CourtNumber string
	Pending     []models.Court // sorted ascending by QueuePosition
	CurrentCase *models.Court  // first IN_SESSION court in the group, if any
}

// BuildQueues groups courts by courtNumber and computes each group's pending
// line and current case. Courts without a courtNumber are excluded.
func BuildQueues(courts []models.Court) map[string]*CourtQueue {
	groups := make(map[string][]models.Court)
	for _, c := range courts {
		if c.CourtNumber == "" {
			continue
		}
		groups[c.CourtNumber] = append(groups[c.CourtNumber], c)
	}

	queues := make(map[string]*CourtQueue, len(groups))
	for courtNumber, group := range groups {
		q := &CourtQueue{CourtNumber: courtNumber}

		for _, c := range group {
			if c.QueuePosition != nil && c.CaseStatus != models.CaseStatusInSession && c.CaseStatus != models.CaseStatusSittingOver {
				q.Pending = append(q.Pending, c)
			}
			if q.CurrentCase == nil && c.CaseStatus == models.CaseStatusInSession {
				current := c
				q.CurrentCase = &current
			}
		}
		sort.SliceStable(q.Pending, func(i, j int) bool {
			return *q.Pending[i].QueuePosition < *q.Pending[j].QueuePosition
		})
		queues[courtNumber] = q
	}
	return queues
}

// PositionOf returns the 1-based rank of caseNumber within a pending queue,
// or 0 (meaning absent) if not found.
func (q *CourtQueue) PositionOf(caseNumber string) int {
	if q == nil {
		return 0
	}
	for i, c := range q.Pending {
		if c.CaseNumber == caseNumber {
			return i + 1
		}
	}
	return 0
}

// FindByCaseNumber searches the tick's full court set for a court currently
// holding caseNumber, whether pending or in session - the WatchlistProcessor needs
// this full-set lookup, not just the pending line.
func FindByCaseNumber(courts []models.Court, caseNumber string) (models.Court, bool) {
	for _, c := range courts {
		if c.CaseNumber == caseNumber {
			return c, true
		}
	}
	return models.Court{}, false
}
