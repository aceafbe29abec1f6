package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/databases"
	"github.com/linesmerrill/courtwatch-ingest/ingest"
	"github.com/linesmerrill/courtwatch-ingest/models"
)

type fakeLockDB struct {
	lock *models.SchedulerLock
	err  error
}

func (f *fakeLockDB) TryAcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (f *fakeLockDB) ReleaseLock(ctx context.Context, name, instanceID string) error { return nil }
func (f *fakeLockDB) Get(ctx context.Context, name string) (*models.SchedulerLock, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.lock != nil {
		return f.lock, nil
	}
	return &models.SchedulerLock{Name: name}, nil
}
func (f *fakeLockDB) SetBackoff(ctx context.Context, name string, until time.Time, consecutiveErrors int) error {
	return nil
}

type fakeCourtDB struct {
	courts []models.CurrentCourt
	err    error
}

func (f *fakeCourtDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CurrentCourt, error) {
	return f.courts, f.err
}
func (f *fakeCourtDB) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return nil, nil
}

type fakeSnapDB struct {
	snapshots []models.CourtSnapshot
	err       error
}

func (f *fakeSnapDB) InsertOne(ctx context.Context, snapshot models.CourtSnapshot) (databases.InsertOneResultHelper, error) {
	return nil, nil
}
func (f *fakeSnapDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CourtSnapshot, error) {
	return f.snapshots, f.err
}

func newTestApp(courtDB *fakeCourtDB, snapDB *fakeSnapDB, lockDB *fakeLockDB) *App {
	notModified := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	pipeline := &ingest.Pipeline{
		Fetcher: ingest.NewFetcher(notModified.URL, notModified.URL, ingest.NewMemoryCache()),
	}
	a := &App{Pipeline: pipeline, LockDB: lockDB, CourtDB: courtDB, SnapDB: snapDB}
	a.Router = a.New()
	return a
}

func executeRequest(a *App, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheckRoute(t *testing.T) {
	a := newTestApp(&fakeCourtDB{}, &fakeSnapDB{}, &fakeLockDB{})
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp := executeRequest(a, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "alive")
}

func TestUnknownRoute(t *testing.T) {
	a := newTestApp(&fakeCourtDB{}, &fakeSnapDB{}, &fakeLockDB{})
	req, _ := http.NewRequest(http.MethodGet, "/asdf", nil)
	resp := executeRequest(a, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCourtsRoute_Live(t *testing.T) {
	courtDB := &fakeCourtDB{courts: []models.CurrentCourt{
		{CourtCode: "1", Data: models.Court{CourtCode: "1", CourtNumber: "Court No:1"}},
	}}
	a := newTestApp(courtDB, &fakeSnapDB{}, &fakeLockDB{})
	req, _ := http.NewRequest(http.MethodGet, "/courts", nil)
	resp := executeRequest(a, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"stale":false`)
	assert.Contains(t, resp.Body.String(), "Court No:1")
}

func TestCourtsRoute_FallsBackToStaleSnapshot(t *testing.T) {
	snapDB := &fakeSnapDB{snapshots: []models.CourtSnapshot{
		{TakenAt: time.Now(), Courts: []models.Court{{CourtCode: "2"}}},
	}}
	a := newTestApp(&fakeCourtDB{}, snapDB, &fakeLockDB{})
	req, _ := http.NewRequest(http.MethodGet, "/courts", nil)
	resp := executeRequest(a, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"stale":true`)
}

func TestCourtsRoute_WarmingWhenNothingPersisted(t *testing.T) {
	a := newTestApp(&fakeCourtDB{}, &fakeSnapDB{}, &fakeLockDB{})
	req, _ := http.NewRequest(http.MethodGet, "/courts", nil)
	resp := executeRequest(a, req)

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "warming")
}

func TestStatusRoute(t *testing.T) {
	lockDB := &fakeLockDB{lock: &models.SchedulerLock{Name: "courtwatch_tick", ConsecutiveErrors: 2}}
	a := newTestApp(&fakeCourtDB{}, &fakeSnapDB{}, lockDB)
	req, _ := http.NewRequest(http.MethodGet, "/internal/status", nil)
	resp := executeRequest(a, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"consecutiveErrors":2`)
}

func TestTickRoute_SkipsOnNotModified(t *testing.T) {
	a := newTestApp(&fakeCourtDB{}, &fakeSnapDB{}, &fakeLockDB{})
	req, _ := http.NewRequest(http.MethodPost, "/internal/tick", nil)
	resp := executeRequest(a, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"Skipped":true`)
}
