package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRows_PlainArray(t *testing.T) {
	rows, err := decodeRows([]byte(`[{"courtcode":"1","caseinfo":"CR/1/2024","gsrno":"3"}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].CourtCode)
}

func TestDecodeRows_EmptyString(t *testing.T) {
	rows, err := decodeRows([]byte(`""`))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestDecodeRows_Blank(t *testing.T) {
	rows, err := decodeRows([]byte(`   `))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestDecodeRows_DoubleEncoded(t *testing.T) {
	nested := `"[{\"courtcode\":\"2\",\"caseinfo\":\"\",\"gsrno\":\"1\"}]"`
	rows, err := decodeRows([]byte(nested))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].CourtCode)
}

func TestDecodeRows_Invalid(t *testing.T) {
	_, err := decodeRows([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestFetch_NotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, srv.URL, NewMemoryCache())
	result, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestFetch_OKStoresConditionalStateAndFetchesPage(t *testing.T) {
	pageHits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/xhr", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Write([]byte(`[{"courtcode":"1","caseinfo":"CR/1/2024","gsrno":"1"}]`))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		pageHits++
		w.Write([]byte(`<html></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cache := NewMemoryCache()
	f := NewFetcher(srv.URL+"/page", srv.URL+"/xhr", cache)
	result, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "<html></html>", result.HTML)
	assert.Equal(t, 1, pageHits)

	state, ok := cache.Get(srv.URL + "/xhr")
	require.True(t, ok)
	assert.Equal(t, `"abc123"`, state.ETag)
}

func TestFetch_XHRErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, srv.URL, NewMemoryCache())
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "xhr", fetchErr.Stage)
}

func TestFetch_PageErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/xhr", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(srv.URL+"/page", srv.URL+"/xhr", NewMemoryCache())
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "page", fetchErr.Stage)
}

func TestFetch_SendsConditionalHeaders(t *testing.T) {
	var gotIfNoneMatch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	cache := NewMemoryCache()
	cache.Set(srv.URL, ConditionalState{ETag: `"seed-etag"`})

	f := NewFetcher(srv.URL, srv.URL, cache)
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `"seed-etag"`, gotIfNoneMatch)
}
