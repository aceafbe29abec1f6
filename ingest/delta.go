package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/databases"
	"github.com/linesmerrill/courtwatch-ingest/models"
)

// VisibilityMissThreshold is the number of consecutive absent ticks after
// which a durable court is marked invisible.
const VisibilityMissThreshold = 3

// signature is the DeltaEngine's cheap in-memory change detector.
type signature struct {
	htmlHash   string
	caseNumber string // raw caseinfo footer, pre-derivation
	srNo       string
}

// DeltaEngine tracks per-courtCode state across ticks: an in-memory
// signature for cheap dispatch skipping, and a durable canonical hash for
// "last real change" reporting. Both maps are process-wide but touched only
// by the single in-flight tick.
type DeltaEngine struct {
	mu            sync.Mutex
	lastFullCourt map[string]models.Court
	lastSignature map[string]signature

	db databases.CurrentCourtDatabase
}

// NewDeltaEngine wires a DeltaEngine to its durable CurrentCourt store.
func NewDeltaEngine(db databases.CurrentCourtDatabase) *DeltaEngine {
	return &DeltaEngine{
		lastFullCourt: make(map[string]models.Court),
		lastSignature: make(map[string]signature),
		db:            db,
	}
}

// Seed loads the durable CurrentCourt view into lastFullCourt once at
// startup, so courts known before a restart but absent from the first tick
// are still counted as missing. Signatures are not seeded: every court seen
// on the first tick after Seed is reported as changed.
func (d *DeltaEngine) Seed(ctx context.Context) error {
	existing, err := d.db.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cc := range existing {
		d.lastFullCourt[cc.CourtCode] = cc.Data
	}
	return nil
}

// DeltaResult is the DeltaEngine's per-tick output.
type DeltaResult struct {
	Changed []models.Court // courts whose signature changed this tick
	All     []models.Court // every court parsed this tick, changed or not
}

// Compute runs the two-tier hashing rule over this tick's parsed rows,
// updates the in-memory maps, and persists the durable CurrentCourt view -
// canonical hash on real change, checked-at refresh otherwise - plus missing
// court hysteresis for courts absent this tick.
func (d *DeltaEngine) Compute(ctx context.Context, rows []ParsedRow, now time.Time) (*DeltaResult, error) {
	d.mu.Lock()
	seen := make(map[string]bool, len(rows))
	var changed []models.Court
	var all []models.Court

	for _, row := range rows {
		court := row.Court
		seen[court.CourtCode] = true
		all = append(all, court)

		sig := signature{
			htmlHash:   hashInnerHTML(row.InnerHTML),
			caseNumber: row.RawFooter,
			srNo:       court.SrNo,
		}
		prev, hadPrev := d.lastSignature[court.CourtCode]
		isChanged := !hadPrev || prev != sig

		d.lastSignature[court.CourtCode] = sig
		d.lastFullCourt[court.CourtCode] = court

		if isChanged {
			changed = append(changed, court)
		}
	}

	missing := make([]string, 0)
	for code := range d.lastFullCourt {
		if !seen[code] {
			missing = append(missing, code)
		}
	}
	d.mu.Unlock()

	if err := d.persistSeen(ctx, all, changed, now); err != nil {
		return nil, err
	}
	if err := d.persistMissing(ctx, missing); err != nil {
		return nil, err
	}

	return &DeltaResult{Changed: changed, All: all}, nil
}

func (d *DeltaEngine) persistSeen(ctx context.Context, all, changed []models.Court, now time.Time) error {
	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[c.CourtCode] = true
	}

	for _, court := range all {
		dataHash := canonicalHash(court)
		filter := bson.M{"_id": court.CourtCode}

		var prevHash string
		existing, err := d.db.Find(ctx, filter)
		if err == nil && len(existing) > 0 {
			prevHash = existing[0].DataHash
		}

		set := bson.M{
			"checkedAt":    now,
			"missingCount": 0,
			"isVisible":    true,
			"data":         court,
		}
		if prevHash != dataHash {
			set["dataHash"] = dataHash
			set["changedAt"] = now
		}
		update := bson.M{"$set": set}
		if _, err := d.db.UpdateOne(ctx, filter, update, upsertOptions()); err != nil {
			zap.S().Errorw("failed to persist current court", "courtCode", court.CourtCode, "error", err)
			return err
		}
	}
	return nil
}

func (d *DeltaEngine) persistMissing(ctx context.Context, missing []string) error {
	for _, code := range missing {
		filter := bson.M{"_id": code}
		update := bson.M{
			"$inc": bson.M{"missingCount": 1},
		}
		if _, err := d.db.UpdateOne(ctx, filter, update); err != nil {
			zap.S().Errorw("failed to increment missing count", "courtCode", code, "error", err)
			return err
		}
		// isVisible is recomputed from the post-increment missingCount in a
		// second pass because Mongo can't compare a field to itself plus a
		// literal within a single $inc update.
		var updated models.CurrentCourt
		existing, err := d.db.Find(ctx, filter)
		if err == nil && len(existing) > 0 {
			updated = existing[0]
			visible := updated.MissingCount < VisibilityMissThreshold
			if _, err := d.db.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"isVisible": visible}}); err != nil {
				zap.S().Errorw("failed to update visibility", "courtCode", code, "error", err)
			}
		}
	}
	return nil
}

// canonicalHash hashes a stable JSON serialization of a Court: field order
// is fixed by struct tag order and json.Marshal's deterministic map
// omission, so equal Courts always hash equal regardless of how the map
// iteration order that produced them varied.
func canonicalHash(c models.Court) string {
	canonical := struct {
		CourtCode     string           `json:"courtCode"`
		CourtNumber   string           `json:"courtNumber"`
		JudgeName     string           `json:"judgeName"`
		BenchType     models.BenchType `json:"benchType"`
		JudgeCount    int              `json:"judgeCount"`
		JudgePhotos   []string         `json:"judgePhotos"`
		CaseNumber    string           `json:"caseNumber"`
		CaseStatus    models.CaseStatus `json:"caseStatus"`
		CaseType      models.CaseType `json:"caseType"`
		SrNo          string           `json:"srNo"`
		QueuePosition *int             `json:"queuePosition"`
		StreamURL     string           `json:"streamUrl"`
		HasStream     bool             `json:"hasStream"`
		IsLive        bool             `json:"isLive"`
		IsActive      bool             `json:"isActive"`
	}{
		CourtCode: c.CourtCode, CourtNumber: c.CourtNumber, JudgeName: c.JudgeName,
		BenchType: c.BenchType, JudgeCount: c.JudgeCount, JudgePhotos: sortedCopy(c.JudgePhotos),
		CaseNumber: c.CaseNumber, CaseStatus: c.CaseStatus, CaseType: c.CaseType,
		SrNo: c.SrNo, QueuePosition: c.QueuePosition, StreamURL: c.StreamURL,
		HasStream: c.HasStream, IsLive: c.IsLive, IsActive: c.IsActive,
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
