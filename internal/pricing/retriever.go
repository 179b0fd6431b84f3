package pricing

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// DefaultTopK is how many ranked passages a tariff lookup receives.
const DefaultTopK = 4

var (
	currencyCueRe = regexp.MustCompile(`\$[0-9]`)
	minuteCueRe   = regexp.MustCompile(`(?i)minute`)
	memberCueRe   = regexp.MustCompile(`(?i)member`)
	tokenSplitRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Retriever serves relevance-ranked passages from one pricing page. The
// page is fetched lazily on the first query and cached for the rest of the
// run; a run's queries are sequential, so the cache is single-flight by
// construction. Retrievers are per-run, never shared.
type Retriever struct {
	fetcher    *Fetcher
	pricingURL string

	loaded     bool
	passages   []model.Passage
	capturedAt time.Time
}

// NewRetriever creates a Retriever for one pricing page.
func NewRetriever(fetcher *Fetcher, pricingURL string) *Retriever {
	return &Retriever{fetcher: fetcher, pricingURL: pricingURL}
}

// Tokenize lowercases and splits text into alphanumeric tokens.
func Tokenize(text string) []string {
	parts := tokenSplitRe.Split(strings.ToLower(text), -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// ScorePassage scores a passage against pre-tokenized query terms: two
// points per query-token occurrence, plus fixed bonuses for currency,
// minute, and member cues.
func ScorePassage(text string, queryTokens []string) float64 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	var score float64
	for _, qt := range queryTokens {
		score += 2 * float64(counts[qt])
	}

	if currencyCueRe.MatchString(text) {
		score += 1.5
	}
	if minuteCueRe.MatchString(text) {
		score += 1
	}
	if memberCueRe.MatchString(text) {
		score += 0.5
	}
	return score
}

// ensureLoaded fetches and segments the page once.
func (r *Retriever) ensureLoaded(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	pageHTML, err := r.fetcher.Fetch(ctx, r.pricingURL)
	if err != nil {
		return err
	}
	r.passages = ExtractPassages(pageHTML, r.pricingURL)
	r.capturedAt = time.Now().UTC()
	r.loaded = true

	zap.L().Debug("pricing: extracted passages",
		zap.String("url", r.pricingURL),
		zap.Int("count", len(r.passages)),
	)
	return nil
}

// Retrieve returns the top-k passages for the query, scored and sorted
// descending. The sort is stable, so ties keep extraction order. Passages
// scoring zero or below are dropped.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]model.Passage, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryTokens := Tokenize(query)
	scored := make([]model.Passage, 0, len(r.passages))
	for _, p := range r.passages {
		s := ScorePassage(p.Text, queryTokens)
		if s <= 0 {
			continue
		}
		p.Score = s
		scored = append(scored, p)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// CapturedAt reports when the page snapshot was taken, zero before load.
func (r *Retriever) CapturedAt() time.Time {
	return r.capturedAt
}

// Source returns the pricing page URL this retriever serves.
func (r *Retriever) Source() string {
	return r.pricingURL
}
