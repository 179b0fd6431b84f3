package pricing

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/bikepass-cli/internal/model"
)

var (
	currencyRe  = regexp.MustCompile(`\$[0-9]+(?:\.[0-9]+)?`)
	perMinuteRe = regexp.MustCompile(`(?i)\$([0-9]+(?:\.[0-9]+)?)\s*(?:/|\bper\b)\s*(?:minute|min)`)
	minutesRe   = regexp.MustCompile(`(?i)(\d+)\s*(?:minute|min)`)

	unitPerMinuteRe = regexp.MustCompile(`(?:per|/)\s*(?:minute|min)`)
	slashMinuteRe   = regexp.MustCompile(`/\s*minute`)
)

// contextWindow is how far around a currency match the unit cues are sought.
const contextWindow = 60

// candidate is one currency match with its classified semantic unit and the
// exact snippet it came from.
type candidate struct {
	Value   float64
	Unit    string
	Snippet string
}

// currencyCandidates finds every $-prefixed number in the text and
// classifies a unit for each by scanning a fixed-priority cue list in the
// surrounding context window.
func currencyCandidates(text string) []candidate {
	matches := currencyRe.FindAllStringIndex(text, -1)
	candidates := make([]candidate, 0, len(matches))

	for _, loc := range matches {
		value, err := strconv.ParseFloat(strings.TrimPrefix(text[loc[0]:loc[1]], "$"), 64)
		if err != nil {
			continue
		}

		windowStart := max(0, loc[0]-contextWindow)
		windowEnd := min(len(text), loc[1]+contextWindow)
		snippet := strings.TrimSpace(text[windowStart:windowEnd])
		context := strings.ToLower(snippet)

		var unit string
		switch {
		case unitPerMinuteRe.MatchString(context):
			unit = "minute"
		case strings.Contains(context, "monthly"):
			unit = "month"
		case strings.Contains(context, "month"):
			unit = "month"
		case strings.Contains(context, "annual"):
			unit = "year"
		case strings.Contains(context, "year"):
			unit = "year"
		case strings.Contains(context, "unlock"):
			unit = "unlock"
		case strings.Contains(context, "ride"):
			unit = "ride"
		case strings.Contains(context, "scooter"):
			unit = "scooter"
		}

		candidates = append(candidates, candidate{Value: value, Unit: unit, Snippet: snippet})
	}
	return candidates
}

// selectCandidate tries each preferred unit, then each fallback unit, then
// settles for the first candidate.
func selectCandidate(candidates []candidate, preferred, fallback []string) (candidate, bool) {
	for _, unit := range preferred {
		for _, c := range candidates {
			if c.Unit == unit {
				return c, true
			}
		}
	}
	for _, unit := range fallback {
		for _, c := range candidates {
			if c.Unit == unit {
				return c, true
			}
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return candidate{}, false
}

// bestKeywordPassage re-ranks passages for the narrow extractors: retrieval
// score plus 4 per keyword hit, minus 2 per miss, plus per-minute and
// currency cue bonuses.
func bestKeywordPassage(passages []model.Passage, keywords []string) (model.Passage, bool) {
	if len(passages) == 0 {
		return model.Passage{}, false
	}

	best := -1
	bestScore := 0.0
	for i, p := range passages {
		lower := strings.ToLower(p.Text)
		score := p.Score
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score += 4
			} else {
				score -= 2
			}
		}
		if strings.Contains(lower, "per minute") || slashMinuteRe.MatchString(lower) {
			score += 1.5
		}
		if currencyCueRe.MatchString(lower) {
			score += 1
		}
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	return passages[best], true
}

// citationRegistry assigns sequential citation ids, deduplicating by exact
// snippet text: two extractions of the same sentence share one citation.
type citationRegistry struct {
	citations []model.Citation
	byText    map[string]string
	source    string
	captured  time.Time
}

func newCitationRegistry(source string, captured time.Time) *citationRegistry {
	return &citationRegistry{byText: make(map[string]string), source: source, captured: captured}
}

func (r *citationRegistry) register(text string) string {
	trimmed := strings.TrimSpace(text)
	if id, ok := r.byText[trimmed]; ok {
		return id
	}
	id := fmt.Sprintf("C%d", len(r.citations)+1)
	r.citations = append(r.citations, model.Citation{
		ID:         id,
		Text:       trimmed,
		Source:     r.source,
		CapturedAt: r.captured,
	})
	r.byText[trimmed] = id
	return id
}

// ParsePolicy resolves every metric spec against its ranked passage list.
// Extraction failures never abort the run: each unresolved metric gets its
// default value and a recorded assumption.
func ParsePolicy(pricingURL string, specs []MetricSpec, results map[string][]model.Passage, capturedAt time.Time) *model.PolicySet {
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	registry := newCitationRegistry(pricingURL, capturedAt)
	set := &model.PolicySet{
		PricingURL: pricingURL,
		CapturedAt: capturedAt,
		Values:     make(map[string]model.PolicyValue, len(specs)),
	}

	for _, spec := range specs {
		passages := results[spec.Key]
		switch spec.Kind {
		case KindPerMinute:
			extractPerMinuteMetric(set, registry, spec, passages)
		case KindMinutes:
			extractMinutesMetric(set, registry, spec, passages)
		default:
			extractCurrencyMetric(set, registry, spec, passages)
		}
	}

	set.Citations = registry.citations
	return set
}

func extractCurrencyMetric(set *model.PolicySet, registry *citationRegistry, spec MetricSpec, passages []model.Passage) {
	ranked := make([]model.Passage, len(passages))
	copy(ranked, passages)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	for _, passage := range ranked {
		lower := strings.ToLower(passage.Text)

		excluded := false
		for _, phrase := range spec.Exclude {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		keywordHit := false
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				keywordHit = true
				break
			}
		}
		if !keywordHit {
			continue
		}

		candidates := currencyCandidates(passage.Text)
		if len(candidates) == 0 {
			continue
		}

		filtered := candidates
		if spec.MinValue != nil {
			filtered = filterCandidates(filtered, func(c candidate) bool { return c.Value >= *spec.MinValue })
		}
		if spec.MaxValue != nil {
			filtered = filterCandidates(filtered, func(c candidate) bool { return c.Value <= *spec.MaxValue })
		}
		// A range that rejects everything is treated as advisory.
		if len(filtered) == 0 {
			filtered = candidates
		}

		selected, ok := selectCandidate(filtered, spec.PreferredUnits, spec.FallbackUnits)
		if !ok {
			continue
		}

		value := selected.Value
		if spec.ConvertYearToMonth && selected.Unit == "year" {
			value /= 12
			set.Assumptions = append(set.Assumptions,
				"Converted published annual membership price to a monthly equivalent.")
		}

		set.Values[spec.Key] = model.PolicyValue{
			Value:      value,
			CitationID: registry.register(selected.Snippet),
		}
		return
	}

	note := spec.AssumptionNote
	if note == "" {
		note = fmt.Sprintf("Unable to locate %s in pricing text; treated as %g.", spec.Key, spec.Default)
	}
	set.Assumptions = append(set.Assumptions, note)
	set.Values[spec.Key] = model.PolicyValue{Value: spec.Default}
}

func extractPerMinuteMetric(set *model.PolicySet, registry *citationRegistry, spec MetricSpec, passages []model.Passage) {
	passage, ok := bestKeywordPassage(passages, spec.Keywords)
	if !ok {
		set.Assumptions = append(set.Assumptions,
			fmt.Sprintf("Unable to locate per-minute rate for %s; treated as %g.", spec.Key, spec.Default))
		set.Values[spec.Key] = model.PolicyValue{Value: spec.Default}
		return
	}

	m := perMinuteRe.FindStringSubmatch(passage.Text)
	if m == nil {
		set.Assumptions = append(set.Assumptions,
			fmt.Sprintf("No per-minute rate found for %s; treated as %g.", spec.Key, spec.Default))
		set.Values[spec.Key] = model.PolicyValue{
			Value:      spec.Default,
			CitationID: registry.register(passage.Text),
		}
		return
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		set.Assumptions = append(set.Assumptions,
			fmt.Sprintf("No per-minute rate found for %s; treated as %g.", spec.Key, spec.Default))
		set.Values[spec.Key] = model.PolicyValue{Value: spec.Default}
		return
	}

	set.Values[spec.Key] = model.PolicyValue{
		Value:      value,
		CitationID: registry.register(passage.Text),
	}
}

func extractMinutesMetric(set *model.PolicySet, registry *citationRegistry, spec MetricSpec, passages []model.Passage) {
	passage, ok := bestKeywordPassage(passages, spec.Keywords)
	if !ok {
		set.Assumptions = append(set.Assumptions,
			fmt.Sprintf("Unable to locate included minutes for %s; defaulted to %g minutes.", spec.Key, spec.Default))
		set.Values[spec.Key] = model.PolicyValue{Value: spec.Default}
		return
	}

	m := minutesRe.FindStringSubmatch(passage.Text)
	if m == nil {
		set.Assumptions = append(set.Assumptions,
			fmt.Sprintf("No explicit minutes mentioned for %s; defaulted to %g minutes.", spec.Key, spec.Default))
		set.Values[spec.Key] = model.PolicyValue{
			Value:      spec.Default,
			CitationID: registry.register(passage.Text),
		}
		return
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		set.Values[spec.Key] = model.PolicyValue{Value: spec.Default}
		return
	}

	set.Values[spec.Key] = model.PolicyValue{
		Value:      value,
		CitationID: registry.register(passage.Text),
	}
}

func filterCandidates(in []candidate, keep func(candidate) bool) []candidate {
	out := make([]candidate, 0, len(in))
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
