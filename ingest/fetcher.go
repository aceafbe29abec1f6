package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	fetchTimeout = 15 * time.Second
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// XHRRow is one entry of the upstream JSON array, before Parser derives a
// full Court out of it and the matching DOM card.
type XHRRow struct {
	CourtCode string `json:"courtcode"`
	CaseInfo  string `json:"caseinfo"`
	GsrNo     string `json:"gsrno"`
}

// FetchResult is the Fetcher's single output: either a skipped ("not
// modified") outcome or a fresh JSON+HTML pair for the Parser.
type FetchResult struct {
	Skipped bool
	Rows    []XHRRow
	HTML    string
}

// Fetcher performs the two-request upstream cycle: a conditional XHR GET
// followed, only on 200, by the full page GET. Client is an exported
// *http.Client so tests can replace it with one using a stub transport.
type Fetcher struct {
	BaseURL string
	XHRURL  string
	Client  *http.Client
	Cache   ConditionalCache
}

// NewFetcher builds a Fetcher with a 15s-timeout HTTP client and the given
// conditional cache; tests can swap the Client field afterwards.
func NewFetcher(baseURL, xhrURL string, cache ConditionalCache) *Fetcher {
	return &Fetcher{
		BaseURL: baseURL,
		XHRURL:  xhrURL,
		Client:  &http.Client{Timeout: fetchTimeout},
		Cache:   cache,
	}
}

// Fetch runs the two-request cycle for one tick.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	cond, _ := f.Cache.Get(f.XHRURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.XHRURL, nil)
	if err != nil {
		return nil, &FetchError{Stage: "xhr", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if cond.ETag != "" {
		req.Header.Set("If-None-Match", cond.ETag)
	}
	if cond.LastModified != "" {
		req.Header.Set("If-Modified-Since", cond.LastModified)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Stage: "xhr", Cause: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		zap.S().Debug("upstream xhr returned 304, skipping tick")
		return &FetchResult{Skipped: true}, nil
	case http.StatusOK:
		// fall through
	default:
		return nil, &FetchError{Stage: "xhr", Cause: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	newCond := ConditionalState{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	f.Cache.Set(f.XHRURL, newCond)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Stage: "xhr", Cause: err}
	}
	rows, err := decodeRows(body)
	if err != nil {
		return nil, &FetchError{Stage: "xhr", Cause: err}
	}

	html, err := f.fetchPage(ctx)
	if err != nil {
		return nil, err
	}

	return &FetchResult{Rows: rows, HTML: html}, nil
}

func (f *Fetcher) fetchPage(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL, nil)
	if err != nil {
		return "", &FetchError{Stage: "page", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", &FetchError{Stage: "page", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{Stage: "page", Cause: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Stage: "page", Cause: err}
	}
	return string(body), nil
}

// decodeRows leniently decodes the XHR payload. Upstream sometimes returns
// the array JSON-encoded twice (a raw string containing the array), and an
// empty string in place of an empty array.
func decodeRows(body []byte) ([]XHRRow, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == `""` {
		return nil, nil
	}

	var rows []XHRRow
	if err := json.Unmarshal([]byte(trimmed), &rows); err == nil {
		return rows, nil
	}

	var nested string
	if err := json.Unmarshal([]byte(trimmed), &nested); err != nil {
		return nil, errors.Wrap(err, "decoding xhr payload")
	}
	nested = strings.TrimSpace(nested)
	if nested == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(nested), &rows); err != nil {
		return nil, errors.Wrap(err, "decoding nested xhr payload")
	}
	return rows, nil
}
