package domain

import (
	"fmt"
	"strings"
)

// Metric is the vector similarity function of an index.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric resolves a configured metric name.
func ParseMetric(name string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(name))) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricEuclidean:
		return MetricEuclidean, nil
	default:
		return "", NewError(KindConfiguration, "parse metric", fmt.Errorf("unknown metric %q", name))
	}
}

// Normalize maps a raw index score into [0,1].
// Cosine scores are similarities in [-1,1]; euclidean scores are negated distances.
func (m Metric) Normalize(raw float64) float64 {
	var s float64
	switch m {
	case MetricEuclidean:
		d := -raw
		if d < 0 {
			d = 0
		}
		s = 1 / (1 + d)
	default:
		s = (raw + 1) / 2
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
