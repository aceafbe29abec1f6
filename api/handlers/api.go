package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/api"
	"github.com/linesmerrill/courtwatch-ingest/config"
	"github.com/linesmerrill/courtwatch-ingest/databases"
	"github.com/linesmerrill/courtwatch-ingest/ingest"
	"github.com/linesmerrill/courtwatch-ingest/models"
)

const tickLockName = "courtwatch_tick"

// App stores the router and the collaborators every handler needs, built
// once in main and shared across requests.
type App struct {
	Router   *mux.Router
	Pipeline *ingest.Pipeline
	LockDB   databases.SchedulerLockDatabase
	CourtDB  databases.CurrentCourtDatabase
	SnapDB   databases.CourtSnapshotDatabase
}

// New builds the ops HTTP surface: a liveness probe, the public read-only
// board endpoint, an internal scheduler status view, and a manual tick
// trigger for on-call use.
func (a *App) New() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	r.HandleFunc("/courts", a.courtsHandler).Methods(http.MethodGet)
	r.HandleFunc("/internal/status", a.statusHandler).Methods(http.MethodGet)
	r.HandleFunc("/internal/tick", a.tickHandler).Methods(http.MethodPost)

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthCheckResponse{Alive: true})
}

type boardResponse struct {
	Stale   bool           `json:"stale"`
	TakenAt time.Time      `json:"takenAt,omitempty"`
	Courts  []models.Court `json:"courts"`
}

// courtsHandler serves the current board state, degrading through two
// fallbacks: live CurrentCourt rows, then the most recent CourtSnapshot
// labeled stale, then a 503 while the first tick has not yet completed.
func (a *App) courtsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	current, err := a.CourtDB.Find(ctx, bson.M{"isVisible": true})
	if err != nil {
		zap.S().Warnw("failed to read current courts", "error", err)
	} else if len(current) > 0 {
		courts := make([]models.Court, len(current))
		for i, cc := range current {
			courts[i] = cc.Data
		}
		writeJSON(w, http.StatusOK, boardResponse{Courts: courts})
		return
	}

	snapshots, err := a.SnapDB.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"takenAt": -1}).SetLimit(1))
	if err != nil {
		zap.S().Warnw("failed to read court snapshot fallback", "error", err)
	} else if len(snapshots) > 0 {
		writeJSON(w, http.StatusOK, boardResponse{Stale: true, TakenAt: snapshots[0].TakenAt, Courts: snapshots[0].Courts})
		return
	}

	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "warming"})
}

// statusHandler exposes the scheduler's durable lock/backoff document for
// dashboards and on-call triage. Read-only.
func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithTimeout(r.Context(), api.StatusTimeout)
	defer cancel()

	lock, err := a.LockDB.Get(ctx, tickLockName)
	if err != nil {
		config.ErrorStatus("failed to read scheduler status", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, lock)
}

// tickHandler runs one pipeline tick synchronously, bypassing the
// scheduler's business-hours and backoff gates. An on-call escape hatch,
// not part of the regular cadence, so it does not touch the scheduler lock.
func (a *App) tickHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithTimeout(r.Context(), api.TickTimeout)
	defer cancel()

	outcome, err := a.Pipeline.Run(ctx)
	if err != nil {
		config.ErrorStatus("tick failed", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnw("failed to write json response", "error", err)
	}
}
