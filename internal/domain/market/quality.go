package market

import "time"

// QualityFlags describe the provenance of a fetched series. They are set by
// the provider that produced the data and never by one that came back empty.
type QualityFlags struct {
	IsDelayed    bool          `json:"is_delayed"`
	IsStale      bool          `json:"is_stale"`
	HasGaps      bool          `json:"has_gaps"`
	RateLimitHit bool          `json:"rate_limit_hit"`
	Malformed    bool          `json:"malformed"`
	Latency      time.Duration `json:"latency"`
}

// Degraded reports whether any flag other than latency is set.
func (q QualityFlags) Degraded() bool {
	return q.IsDelayed || q.IsStale || q.HasGaps || q.RateLimitHit || q.Malformed
}
