package pipeline

import (
	"time"

	"github.com/ironsheep/card-detect-mcp/internal/detection"
)

// Tier names one stage of the detection cascade.
type Tier string

const (
	TierVision   Tier = "vision"
	TierEnsemble Tier = "ensemble"
	TierFallback Tier = "fallback"
)

// SourceMetadata describes where the raster came from. It is informational only.
type SourceMetadata struct {
	Filename string `json:"filename,omitempty"`
	ByteSize int64  `json:"byte_size,omitempty"`
}

// TierTrace records what one tier did during an invocation.
type TierTrace struct {
	Tier       Tier   `json:"tier"`
	Attempted  bool   `json:"attempted"`
	Raw        int    `json:"raw"`
	Accepted   int    `json:"accepted"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// DebugInfo is the per-invocation diagnostic record.
type DebugInfo struct {
	InvocationID   string                   `json:"invocation_id"`
	Source         SourceMetadata           `json:"source"`
	Tiers          []TierTrace              `json:"tiers"`
	DetectorCounts map[detection.Method]int `json:"detector_counts,omitempty"`
	MethodUsed     detection.Method         `json:"method_used"`
	Cancelled      bool                     `json:"cancelled,omitempty"`
}

// Tier returns the trace for t, or false if t never ran.
func (d DebugInfo) Tier(t Tier) (TierTrace, bool) {
	for _, tr := range d.Tiers {
		if tr.Tier == t {
			return tr, true
		}
	}
	return TierTrace{}, false
}

// Result is the output of one Detect call.
//
// Candidates are ranked best-first and never empty.
type Result struct {
	Candidates       []detection.Candidate `json:"candidates"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
	Debug            DebugInfo             `json:"debug"`
}

// Best returns the highest ranked candidate.
func (r *Result) Best() detection.Candidate {
	return r.Candidates[0]
}

func sinceMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
