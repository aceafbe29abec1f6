package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

func TestDeriveCaseFields(t *testing.T) {
	tests := []struct {
		name           string
		footer         string
		wantStatus     models.CaseStatus
		wantCaseNumber string
		wantType       models.CaseType
	}{
		{"in session", "CR/123/2024", models.CaseStatusInSession, "CR/123/2024", models.CaseTypeActive},
		{"recess strips suffix", "CR/123/2024 (RECESS)", models.CaseStatusRecess, "CR/123/2024", models.CaseTypeRecess},
		{"sitting over lowercase", "court sitting over", models.CaseStatusSittingOver, "", models.CaseTypeSittingOver},
		{"sitting over mixed whitespace", "  Court   Sitting Over ", models.CaseStatusSittingOver, "", models.CaseTypeSittingOver},
		{"empty", "", models.CaseStatusNone, "", models.CaseTypeNone},
		{"dash placeholder", "-", models.CaseStatusNone, "", models.CaseTypeNone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, caseNumber, caseType := deriveCaseFields(tc.footer)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCaseNumber, caseNumber)
			assert.Equal(t, tc.wantType, caseType)
		})
	}
}

func TestCleanCourtNumber(t *testing.T) {
	assert.Equal(t, "1", cleanCourtNumber("Court No: 1"))
	assert.Equal(t, "12", cleanCourtNumber("  COURT NO:12  "))
	assert.Equal(t, "Sessions", cleanCourtNumber("Sessions"))
}

const fixtureHTML = `<html><body>
<div id="dv_101" class="card">
  <div id="court_101">Court No: 5</div>
  <div class="card-category"><b>Hon. A. Sharma</b></div>
  <img class="photoclass" src="/photos/a.jpg" />
  <a href="/stream/101">watch</a>
</div>
<div id="dv_102" class="card blink_me">
  <div id="court_102">Court No: 6</div>
  <div class="card-header">Hon. B. Verma</div>
</div>
</body></html>`

func TestParse_ExtractsCourts(t *testing.T) {
	p := NewParser("https://courthouse.example")
	rows := []XHRRow{
		{CourtCode: "101", CaseInfo: "CR/1/2024", GsrNo: "3"},
		{CourtCode: "102", CaseInfo: "", GsrNo: "1"},
		{CourtCode: "999", CaseInfo: "no matching card", GsrNo: "1"},
	}
	scrapedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	parsed, err := p.Parse(rows, fixtureHTML, scrapedAt)
	require.NoError(t, err)
	require.Len(t, parsed, 2, "row without a matching dv_ card is dropped")

	byCode := make(map[string]ParsedRow, len(parsed))
	for _, r := range parsed {
		byCode[r.Court.CourtCode] = r
	}

	first := byCode["101"]
	assert.Equal(t, "5", first.Court.CourtNumber)
	assert.Equal(t, "Hon. A. Sharma", first.Court.JudgeName)
	assert.Equal(t, models.SingleBenchType, first.Court.BenchType)
	assert.Equal(t, 1, first.Court.JudgeCount)
	assert.True(t, first.Court.HasStream)
	assert.Equal(t, "https://courthouse.example/stream/101", first.Court.StreamURL)
	require.NotNil(t, first.Court.QueuePosition)
	assert.Equal(t, 3, *first.Court.QueuePosition)
	assert.Equal(t, models.CaseStatusInSession, first.Court.CaseStatus)
	assert.False(t, first.Court.IsLive)

	second := byCode["102"]
	assert.Equal(t, "6", second.Court.CourtNumber)
	assert.True(t, second.Court.IsLive)
	assert.Equal(t, models.CaseStatusNone, second.Court.CaseStatus)
}

func TestParse_EmptyCourtCodeSkipped(t *testing.T) {
	p := NewParser("https://courthouse.example")
	rows := []XHRRow{{CourtCode: "", CaseInfo: "x", GsrNo: "1"}}
	parsed, err := p.Parse(rows, fixtureHTML, time.Now())
	require.NoError(t, err)
	assert.Empty(t, parsed)
}

const fixtureHTMLNestedBlink = `<html><body>
<div id="dv_103" class="card">
  <div id="court_103">Court No: 7</div>
  <div class="card-body">
    <span class="badge blink_me">LIVE</span>
    <div class="card-header">Hon. C. Rao</div>
  </div>
</div>
</body></html>`

func TestParse_IsLiveDetectsNestedBlinkClass(t *testing.T) {
	p := NewParser("https://courthouse.example")
	rows := []XHRRow{{CourtCode: "103", CaseInfo: "", GsrNo: "1"}}

	parsed, err := p.Parse(rows, fixtureHTMLNestedBlink, time.Now())
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.True(t, parsed[0].Court.IsLive, "blink_me nested under the card, not on the card root, must still count as live")
}

func TestHashInnerHTML_Deterministic(t *testing.T) {
	a := hashInnerHTML("<div>x</div>")
	b := hashInnerHTML("<div>x</div>")
	c := hashInnerHTML("<div>y</div>")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
