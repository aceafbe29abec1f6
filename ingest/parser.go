package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

var (
	courtNoPrefix   = regexp.MustCompile(`(?i)^\s*COURT\s*NO:?\s*`)
	firstIntPattern = regexp.MustCompile(`\d+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	liveTag         = regexp.MustCompile(`(?i)\s*\[live\]\s*`)
)

var matcher = cases.Fold() // locale-agnostic case-insensitive comparisons

// ParsedRow is one row surviving parsing, still carrying the raw caseinfo
// footer text the DeltaEngine needs for its signature (pre-derivation).
type ParsedRow struct {
	Court     models.Court
	InnerHTML string
	RawFooter string
}

// Parser extracts Court entities from the fused JSON rows and HTML document.
type Parser struct {
	BaseURL string
}

// NewParser builds a Parser resolving relative URLs against baseURL.
func NewParser(baseURL string) *Parser {
	return &Parser{BaseURL: baseURL}
}

// Parse walks each XHR row, locates its DOM card, and emits a ParsedRow.
// Rows without a courtcode or without a matching card are silently dropped.
// Per-row extraction is embarrassingly parallel (each card is independent),
// so it fans out with errgroup while preserving input order in the result.
func (p *Parser) Parse(rows []XHRRow, rawHTML string, scrapedAt time.Time) ([]ParsedRow, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	cards := indexCardsByID(doc)
	courtNumbers := indexCourtNumbersByID(doc)

	results := make([]*ParsedRow, len(rows))
	var g errgroup.Group
	g.SetLimit(8)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if row.CourtCode == "" {
				return nil
			}
			card, ok := cards["dv_"+row.CourtCode]
			if !ok {
				return nil
			}
			parsed := p.parseCard(row, card, courtNumbers["court_"+row.CourtCode], scrapedAt)
			results[i] = parsed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ParsedRow, 0, len(rows))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (p *Parser) parseCard(row XHRRow, card *html.Node, courtNumberRaw string, scrapedAt time.Time) *ParsedRow {
	innerHTML := renderNode(card)
	judgePhotos := extractPhotos(card, p.BaseURL)

	court := models.Court{
		CourtCode:   row.CourtCode,
		CourtNumber: cleanCourtNumber(courtNumberRaw),
		JudgeName:   extractJudgeName(card),
		JudgePhotos: judgePhotos,
		JudgeCount:  len(judgePhotos),
		SrNo:        strings.TrimSpace(row.GsrNo),
		StreamURL:   extractStreamURL(card, p.BaseURL),
		IsLive:      findFirstByClass(card, "blink_me") != nil,
		ScrapedAt:   scrapedAt,
	}
	if len(judgePhotos) >= 2 {
		court.BenchType = models.DivisionBenchType
	} else {
		court.BenchType = models.SingleBenchType
	}
	court.HasStream = court.StreamURL != ""

	if pos := firstIntPattern.FindString(court.SrNo); pos != "" {
		if n, err := strconv.Atoi(pos); err == nil {
			court.QueuePosition = &n
		}
	}

	footer := whitespaceRun.ReplaceAllString(strings.TrimSpace(row.CaseInfo), " ")
	court.CaseStatus, court.CaseNumber, court.CaseType = deriveCaseFields(footer)
	court.IsActive = court.IsLive || court.CaseStatus == models.CaseStatusInSession || court.CaseStatus == models.CaseStatusRecess

	return &ParsedRow{Court: court, InnerHTML: innerHTML, RawFooter: footer}
}

// deriveCaseFields implements the caseinfo footer classification rules. The
// sitting-over phrase is matched case-insensitively with whitespace runs
// collapsed.
func deriveCaseFields(footer string) (models.CaseStatus, string, models.CaseType) {
	folded := matcher.String(whitespaceRun.ReplaceAllString(footer, " "))
	switch {
	case strings.Contains(folded, matcher.String("COURT SITTING OVER")):
		return models.CaseStatusSittingOver, "", models.CaseTypeSittingOver
	case strings.Contains(footer, "(RECESS)"):
		caseNumber := strings.TrimSpace(strings.ReplaceAll(footer, "(RECESS)", ""))
		return models.CaseStatusRecess, caseNumber, models.CaseTypeRecess
	case footer != "" && footer != "-":
		return models.CaseStatusInSession, footer, models.CaseTypeActive
	default:
		return models.CaseStatusNone, "", models.CaseTypeNone
	}
}

func cleanCourtNumber(raw string) string {
	return strings.TrimSpace(courtNoPrefix.ReplaceAllString(strings.TrimSpace(raw), ""))
}

func extractJudgeName(card *html.Node) string {
	if n := findFirst(card, hasClassPredicate("card-category"), tagPredicate("b")); n != nil {
		return cleanJudgeName(textContent(n))
	}
	for _, class := range []string{"card-header", "card-title", "card-body"} {
		if n := findFirstByClass(card, class); n != nil {
			return cleanJudgeName(textContent(n))
		}
	}
	return ""
}

func cleanJudgeName(s string) string {
	return strings.TrimSpace(liveTag.ReplaceAllString(s, ""))
}

func extractStreamURL(card *html.Node, base string) string {
	a := findFirst(card, tagPredicate("a"))
	if a == nil {
		return ""
	}
	href := attr(a, "href")
	return resolveURL(base, href)
}

func extractPhotos(card *html.Node, base string) []string {
	var photos []string
	walk(card, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if n.Data != "img" && !hasClass(n, "photoclass") {
			return
		}
		src := attr(n, "src")
		if src == "" {
			src = attr(n, "data-src")
		}
		if src == "" {
			return
		}
		src = strings.TrimPrefix(src, "./")
		photos = append(photos, resolveURL(base, src))
	})
	return photos
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// indexCardsByID walks the document once, collecting every element id'd
// dv_<courtcode> so per-row lookups are O(1) instead of a full tree walk per
// row.
func indexCardsByID(doc *html.Node) map[string]*html.Node {
	idx := make(map[string]*html.Node)
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		id := attr(n, "id")
		if strings.HasPrefix(id, "dv_") {
			idx[id] = n
		}
	})
	return idx
}

func indexCourtNumbersByID(doc *html.Node) map[string]string {
	idx := make(map[string]string)
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		id := attr(n, "id")
		if strings.HasPrefix(id, "court_") {
			idx[id] = textContent(n)
		}
	})
	return idx
}

// hashInnerHTML is the cheap, in-memory signature component the DeltaEngine
// uses to skip unchanged courts without touching the database.
func hashInnerHTML(innerHTML string) string {
	sum := sha256.Sum256([]byte(innerHTML))
	return hex.EncodeToString(sum[:])
}
