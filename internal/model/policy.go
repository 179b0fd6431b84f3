package model

import "time"

// Passage is a deduplicated, length-bounded text fragment extracted from a
// pricing page, eligible for retrieval scoring.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Citation binds an extracted numeric value to the exact source snippet.
// Ids are assigned sequentially within a run and deduplicated by snippet text.
type Citation struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}

// PolicyValue is one resolved tariff number. CitationID is empty when the
// value is a recorded default rather than an extraction.
type PolicyValue struct {
	Value      float64 `json:"value"`
	CitationID string  `json:"citation_id,omitempty"`
}

// Canonical policy metric keys. The cost model needs exactly these ten.
const (
	MembershipPrice                  = "membershipPrice"
	MemberIncludedMinutes            = "memberIncludedMinutes"
	MemberEbikePerMinute             = "memberEbikePerMinute"
	MemberClassicOveragePerMinute    = "memberClassicOveragePerMinute"
	MemberUnlockFee                  = "memberUnlockFee"
	SingleRidePrice                  = "singleRidePrice"
	NonMemberIncludedMinutes         = "nonMemberIncludedMinutes"
	NonMemberEbikePerMinute          = "nonMemberEbikePerMinute"
	NonMemberClassicOveragePerMinute = "nonMemberClassicOveragePerMinute"
	NonMemberUnlockFee               = "nonMemberUnlockFee"
)

// PolicySet is the full parsed tariff policy for one pricing page.
type PolicySet struct {
	PricingURL  string                 `json:"pricing_url"`
	CapturedAt  time.Time              `json:"captured_at"`
	Values      map[string]PolicyValue `json:"values"`
	Citations   []Citation             `json:"citations"`
	Assumptions []string               `json:"assumptions"`
}

// Value returns the numeric value for a metric key, zero when absent.
func (p *PolicySet) Value(key string) float64 {
	return p.Values[key].Value
}

// CitationID returns the citation id for a metric key, empty when absent.
func (p *PolicySet) CitationID(key string) string {
	return p.Values[key].CitationID
}
