package domain

// MetricStatus classifies a risk metric relative to its threshold. It is a
// pure function of value and threshold; see StatusFor.
type MetricStatus string

const (
	MetricStatusSafe     MetricStatus = "safe"
	MetricStatusWarning  MetricStatus = "warning"
	MetricStatusCritical MetricStatus = "critical"
)

// Trend indicates the direction a metric moved relative to its previous
// observation.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// RiskMetric is a single derived risk measurement with its configured limit.
type RiskMetric struct {
	Name      string       `json:"name"`
	Value     float64      `json:"value"`
	Threshold float64      `json:"threshold"`
	Status    MetricStatus `json:"status"`
	Trend     Trend        `json:"trend"`
	Unit      string       `json:"unit"`
}

// StatusFor derives a metric status from its value and threshold: above 90%
// of the threshold is critical, above 70% is warning, otherwise safe.
func StatusFor(value, threshold float64) MetricStatus {
	if threshold <= 0 {
		return MetricStatusSafe
	}
	switch {
	case value > 0.9*threshold:
		return MetricStatusCritical
	case value > 0.7*threshold:
		return MetricStatusWarning
	default:
		return MetricStatusSafe
	}
}

// TrendFor derives a trend from the previous and current value of a metric.
// Moves smaller than 0.1% of the previous value count as stable.
func TrendFor(prev, cur float64) Trend {
	const eps = 1e-3
	base := prev
	if base < 0 {
		base = -base
	}
	if base < 1 {
		base = 1
	}
	switch {
	case cur-prev > eps*base:
		return TrendUp
	case prev-cur > eps*base:
		return TrendDown
	default:
		return TrendStable
	}
}
