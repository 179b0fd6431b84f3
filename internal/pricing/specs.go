package pricing

import (
	_ "embed"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

// Metric extraction kinds.
const (
	KindCurrency  = "currency"
	KindPerMinute = "per_minute"
	KindMinutes   = "minutes"
)

// MetricSpec describes how one canonical tariff metric is retrieved and
// extracted: the retrieval query, the keyword gate, known false-positive
// phrasings to skip, the unit preferences, and the plausibility range.
type MetricSpec struct {
	Key                string   `yaml:"key"`
	Description        string   `yaml:"description"`
	Query              string   `yaml:"query"`
	Kind               string   `yaml:"kind"`
	Keywords           []string `yaml:"keywords"`
	Exclude            []string `yaml:"exclude"`
	PreferredUnits     []string `yaml:"preferred_units"`
	FallbackUnits      []string `yaml:"fallback_units"`
	ConvertYearToMonth bool     `yaml:"convert_year_to_month"`
	MinValue           *float64 `yaml:"min_value"`
	MaxValue           *float64 `yaml:"max_value"`
	Default            float64  `yaml:"default"`
	AssumptionNote     string   `yaml:"assumption_note"`
}

type policyDoc struct {
	Metrics []MetricSpec `yaml:"metrics"`
}

// LoadMetricSpecs parses the embedded extraction policy. The slice order is
// the processing order, which fixes citation id assignment.
func LoadMetricSpecs() ([]MetricSpec, error) {
	var doc policyDoc
	if err := yaml.Unmarshal(policyYAML, &doc); err != nil {
		return nil, eris.Wrap(err, "pricing: parse policy.yaml")
	}
	if len(doc.Metrics) == 0 {
		return nil, eris.New("pricing: policy.yaml defines no metrics")
	}
	return doc.Metrics, nil
}

// RetrievalQuery builds the retrieval query for a spec: the pricing host
// (minus a leading www.) followed by the spec's query template.
func (s MetricSpec) RetrievalQuery(pricingURL string) string {
	host := pricingURL
	if u, err := url.Parse(pricingURL); err == nil && u.Hostname() != "" {
		host = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return host + " " + s.Query
}
