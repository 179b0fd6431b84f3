package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bikepass-cli/internal/model"
)

func specByKey(t *testing.T, key string) MetricSpec {
	t.Helper()
	specs, err := LoadMetricSpecs()
	require.NoError(t, err)
	for _, s := range specs {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("no spec %q", key)
	return MetricSpec{}
}

func TestLoadMetricSpecs(t *testing.T) {
	t.Parallel()

	specs, err := LoadMetricSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 10)

	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key
	}
	assert.Contains(t, keys, model.MembershipPrice)
	assert.Contains(t, keys, model.SingleRidePrice)
	assert.Contains(t, keys, model.NonMemberEbikePerMinute)

	// membershipPrice is processed first, so its citation is always C1 when
	// present; the order is part of the output contract.
	assert.Equal(t, model.MembershipPrice, specs[0].Key)
}

func TestRetrievalQuery(t *testing.T) {
	t.Parallel()

	spec := MetricSpec{Query: "monthly membership price"}
	assert.Equal(t, "divvybikes.com monthly membership price",
		spec.RetrievalQuery("https://www.divvybikes.com/pricing"))
	assert.Equal(t, "not a url monthly membership price",
		spec.RetrievalQuery("not a url"))
}

func TestCurrencyCandidates(t *testing.T) {
	t.Parallel()

	// Sentences spaced out so the 60-char context windows do not overlap.
	text := "Membership is $18.10 per month for unlimited classic riding in the city. " +
		"Unlock any bike for $1 and start your ride downtown whenever you like today. " +
		"E-bikes are billed at $0.44/minute."
	candidates := currencyCandidates(text)
	require.Len(t, candidates, 3)

	assert.Equal(t, 18.10, candidates[0].Value)
	assert.Equal(t, "month", candidates[0].Unit)

	assert.Equal(t, 1.0, candidates[1].Value)
	assert.Equal(t, "unlock", candidates[1].Unit)

	assert.Equal(t, 0.44, candidates[2].Value)
	assert.Equal(t, "minute", candidates[2].Unit)
}

func TestSelectCandidate(t *testing.T) {
	t.Parallel()

	candidates := []candidate{
		{Value: 1, Unit: "ride"},
		{Value: 2, Unit: "month"},
		{Value: 3, Unit: "year"},
	}

	c, ok := selectCandidate(candidates, []string{"month"}, []string{"year"})
	require.True(t, ok)
	assert.Equal(t, 2.0, c.Value)

	c, ok = selectCandidate(candidates, []string{"minute"}, []string{"year"})
	require.True(t, ok)
	assert.Equal(t, 3.0, c.Value)

	// No unit matches: first candidate wins.
	c, ok = selectCandidate(candidates, []string{"minute"}, []string{"unlock"})
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Value)

	_, ok = selectCandidate(nil, []string{"month"}, nil)
	assert.False(t, ok)
}

func passagesFor(texts ...string) []model.Passage {
	out := make([]model.Passage, len(texts))
	for i, text := range texts {
		out[i] = model.Passage{Text: text, Source: "https://example.com/pricing", Score: float64(len(texts) - i)}
	}
	return out
}

func TestParsePolicyMembershipPrice(t *testing.T) {
	t.Parallel()

	spec := specByKey(t, model.MembershipPrice)
	results := map[string][]model.Passage{
		model.MembershipPrice: passagesFor(
			"Divvy for Everyone (D4E) membership is $5 per month for qualifying residents.",
			"A standard membership costs $18.10 per month, billed monthly.",
		),
	}

	set := ParsePolicy("https://example.com/pricing", []MetricSpec{spec}, results, time.Now())
	require.Contains(t, set.Values, model.MembershipPrice)
	assert.InDelta(t, 18.10, set.Value(model.MembershipPrice), 0.001)

	// The discounted D4E program is excluded, so the citation quotes the
	// standard price sentence.
	require.Len(t, set.Citations, 1)
	assert.Equal(t, "C1", set.Citations[0].ID)
	assert.Contains(t, set.Citations[0].Text, "$18.10")
	assert.Equal(t, "C1", set.CitationID(model.MembershipPrice))
}

func TestParsePolicyAnnualConversion(t *testing.T) {
	t.Parallel()

	spec := specByKey(t, model.MembershipPrice)
	results := map[string][]model.Passage{
		model.MembershipPrice: passagesFor(
			"An annual membership costs $143.90 per year, the best value for commuters.",
		),
	}

	set := ParsePolicy("https://example.com/pricing", []MetricSpec{spec}, results, time.Now())
	assert.InDelta(t, 143.90/12, set.Value(model.MembershipPrice), 0.001)
	assert.Contains(t, set.Assumptions,
		"Converted published annual membership price to a monthly equivalent.")
}

func TestParsePolicyPlausibilityFilter(t *testing.T) {
	t.Parallel()

	// membershipPrice has min_value 10; the $5 promo month is implausible,
	// so the $18.10 candidate in the same passage wins.
	spec := specByKey(t, model.MembershipPrice)
	results := map[string][]model.Passage{
		model.MembershipPrice: passagesFor(
			"Membership promo: first month $5 per month, then $18.10 per month after that.",
		),
	}

	set := ParsePolicy("https://example.com/pricing", []MetricSpec{spec}, results, time.Now())
	assert.InDelta(t, 18.10, set.Value(model.MembershipPrice), 0.001)
}

func TestParsePolicyMissingMetricDefaults(t *testing.T) {
	t.Parallel()

	specs, err := LoadMetricSpecs()
	require.NoError(t, err)

	set := ParsePolicy("https://example.com/pricing", specs, map[string][]model.Passage{}, time.Now())

	// Every metric resolves to its default, and each records an assumption.
	assert.InDelta(t, 0, set.Value(model.MembershipPrice), 0.001)
	assert.InDelta(t, 30, set.Value(model.MemberIncludedMinutes), 0.001)
	assert.InDelta(t, 30, set.Value(model.NonMemberIncludedMinutes), 0.001)
	assert.InDelta(t, 0, set.Value(model.SingleRidePrice), 0.001)
	assert.Contains(t, set.Assumptions,
		"Could not find an explicit single-ride base fare; treated as 0.")
	assert.Empty(t, set.Citations)
}

func TestParsePolicyPerMinute(t *testing.T) {
	t.Parallel()

	spec := specByKey(t, model.NonMemberEbikePerMinute)
	results := map[string][]model.Passage{
		model.NonMemberEbikePerMinute: passagesFor(
			"Non-members pay $0.44 per minute on an e-bike.",
			"Classic bikes are included with every pass.",
		),
	}

	set := ParsePolicy("https://example.com/pricing", []MetricSpec{spec}, results, time.Now())
	assert.InDelta(t, 0.44, set.Value(model.NonMemberEbikePerMinute), 0.001)
	assert.NotEmpty(t, set.CitationID(model.NonMemberEbikePerMinute))
}

func TestParsePolicyPerMinuteSlashForm(t *testing.T) {
	t.Parallel()

	spec := specByKey(t, model.MemberEbikePerMinute)
	results := map[string][]model.Passage{
		model.MemberEbikePerMinute: passagesFor("Members ride e-bikes for $0.17/min."),
	}

	set := ParsePolicy("https://example.com/pricing", []MetricSpec{spec}, results, time.Now())
	assert.InDelta(t, 0.17, set.Value(model.MemberEbikePerMinute), 0.001)
}

func TestParsePolicyMinutes(t *testing.T) {
	t.Parallel()

	spec := specByKey(t, model.MemberIncludedMinutes)
	results := map[string][]model.Passage{
		model.MemberIncludedMinutes: passagesFor(
			"Members get 45 minute classic rides included with every plan.",
		),
	}

	set := ParsePolicy("https://example.com/pricing", []MetricSpec{spec}, results, time.Now())
	assert.InDelta(t, 45, set.Value(model.MemberIncludedMinutes), 0.001)
}

func TestParsePolicyCitationDedupe(t *testing.T) {
	t.Parallel()

	// Two metrics resolved from the same sentence share one citation id.
	shared := "Unlock any bike for $1 per unlock, members and non-members alike."
	memberSpec := specByKey(t, model.MemberUnlockFee)
	nonMemberSpec := specByKey(t, model.NonMemberUnlockFee)
	results := map[string][]model.Passage{
		model.MemberUnlockFee:    passagesFor(shared),
		model.NonMemberUnlockFee: passagesFor(shared),
	}

	set := ParsePolicy("https://example.com/pricing", []MetricSpec{memberSpec, nonMemberSpec}, results, time.Now())
	assert.InDelta(t, 1, set.Value(model.MemberUnlockFee), 0.001)
	assert.InDelta(t, 1, set.Value(model.NonMemberUnlockFee), 0.001)
	require.Len(t, set.Citations, 1)
	assert.Equal(t, set.CitationID(model.MemberUnlockFee), set.CitationID(model.NonMemberUnlockFee))
}

func TestBestKeywordPassage(t *testing.T) {
	t.Parallel()

	passages := []model.Passage{
		{Text: "General help text about the mobile app.", Score: 3},
		{Text: "Members pay $0.17 per minute on e-bikes.", Score: 1},
	}

	best, ok := bestKeywordPassage(passages, []string{"member", "e-bike"})
	require.True(t, ok)
	assert.Contains(t, best.Text, "$0.17")

	_, ok = bestKeywordPassage(nil, []string{"member"})
	assert.False(t, ok)
}
