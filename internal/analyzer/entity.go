package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/resilience"
)

// EntityEvidence is the external-lookup input to the entity pillar.
// Collected once per run by EntityLookup; nil disables the pillar.
type EntityEvidence struct {
	WikipediaFound   bool    `json:"wikipedia_found"`
	WikidataFound    bool    `json:"wikidata_found"`
	DomainTrustScore float64 `json:"domain_trust_score"` // 0-100 from TLD and domain shape
	WebPresenceScore float64 `json:"web_presence_score"` // 0-100
}

// analyzeEntity scores how well the brand resolves to a known entity in
// the knowledge graphs AI systems consult.
func analyzeEntity(in *Input) model.PillarScore {
	e := in.Entity

	boolScore := func(b bool) float64 {
		if b {
			return 100
		}
		return 0
	}

	var issues []model.Issue
	if !e.WikipediaFound && !e.WikidataFound {
		issues = append(issues, model.Issue{
			Code:    "unknown_entity",
			Level:   model.LevelLimited,
			Message: "the brand does not resolve to a Wikipedia or Wikidata entity; AI systems have no independent anchor for it",
		})
	}

	components := []model.ComponentScore{
		{Name: "wikipedia", Raw: boolScore(e.WikipediaFound), Weight: 30},
		{Name: "wikidata", Raw: boolScore(e.WikidataFound), Weight: 20},
		{Name: "domain_trust", Raw: e.DomainTrustScore, Weight: 20},
		{Name: "web_presence", Raw: e.WebPresenceScore, Weight: 30},
	}
	return model.NewPillarScore(in.RunID, model.PillarEntityRecognition, components, issues)
}

// EntityLookup queries public knowledge-graph endpoints for the brand.
type EntityLookup struct {
	client    *http.Client
	userAgent string
}

// NewEntityLookup creates a lookup client. A nil client gets a default
// with a bounded timeout.
func NewEntityLookup(client *http.Client, userAgent string) *EntityLookup {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EntityLookup{
		client:    client,
		userAgent: userAgent,
	}
}

// Collect gathers entity evidence for a brand and domain. Lookup failures
// degrade to negative evidence rather than failing the run.
func (l *EntityLookup) Collect(ctx context.Context, brand, domain string) *EntityEvidence {
	ev := &EntityEvidence{
		DomainTrustScore: domainTrust(domain),
	}

	wiki, err := l.wikipediaExists(ctx, brand)
	if err != nil {
		zap.L().Debug("entity: wikipedia lookup failed", zap.Error(err))
	}
	ev.WikipediaFound = wiki

	wd, err := l.wikidataExists(ctx, brand)
	if err != nil {
		zap.L().Debug("entity: wikidata lookup failed", zap.Error(err))
	}
	ev.WikidataFound = wd

	// Web presence approximated from knowledge-graph hits until a search
	// API is wired in.
	switch {
	case wiki && wd:
		ev.WebPresenceScore = 100
	case wiki || wd:
		ev.WebPresenceScore = 60
	default:
		ev.WebPresenceScore = 20
	}
	return ev
}

func (l *EntityLookup) wikipediaExists(ctx context.Context, brand string) (bool, error) {
	title := url.PathEscape(strings.ReplaceAll(brand, " ", "_"))
	u := "https://en.wikipedia.org/api/rest_v1/page/summary/" + title
	status, _, err := l.get(ctx, u)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

func (l *EntityLookup) wikidataExists(ctx context.Context, brand string) (bool, error) {
	u := fmt.Sprintf(
		"https://www.wikidata.org/w/api.php?action=wbsearchentities&search=%s&language=en&format=json&limit=1",
		url.QueryEscape(brand),
	)
	status, body, err := l.get(ctx, u)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, nil
	}
	var parsed struct {
		Search []json.RawMessage `json:"search"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, err
	}
	return len(parsed.Search) > 0, nil
}

func (l *EntityLookup) get(ctx context.Context, u string) (int, []byte, error) {
	type result struct {
		status int
		body   []byte
	}
	res, err := resilience.DoVal(ctx, resilience.RetryConfig{MaxAttempts: 2}, func(ctx context.Context) (result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return result{}, err
		}
		req.Header.Set("User-Agent", l.userAgent)
		resp, err := l.client.Do(req)
		if err != nil {
			return result{}, resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return result{}, err
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return result{}, resilience.NewTransientError(
				fmt.Errorf("entity: status %d", resp.StatusCode), resp.StatusCode)
		}
		return result{status: resp.StatusCode, body: body}, nil
	})
	return res.status, res.body, err
}

// domainTrust scores the domain itself: established TLDs rate higher,
// hyphen-heavy or very long domains lower.
func domainTrust(domain string) float64 {
	host := strings.ToLower(strings.TrimPrefix(domain, "www."))
	score := 50.0
	switch {
	case strings.HasSuffix(host, ".gov"), strings.HasSuffix(host, ".edu"):
		score = 100
	case strings.HasSuffix(host, ".org"):
		score = 80
	case strings.HasSuffix(host, ".com"), strings.HasSuffix(host, ".net"):
		score = 70
	case strings.HasSuffix(host, ".io"), strings.HasSuffix(host, ".co"), strings.HasSuffix(host, ".ai"):
		score = 60
	}
	if strings.Count(host, "-") >= 2 {
		score -= 15
	}
	if len(host) > 30 {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	return score
}
