package pipeline

import (
	"context"
	"sync"

	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// Session serializes the submissions of one user: the latest wins.
//
// Starting a Detect on a session cancels the one still in flight on that same
// session. Sessions share nothing, so cancelling one never affects another.
type Session struct {
	orch *Orchestrator

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewSession returns a session that runs detections on o.
func (o *Orchestrator) NewSession() *Session {
	return &Session{orch: o}
}

// Detect cancels any in-flight detection on s and runs a new one.
//
// A superseded call still returns a non-empty result, marked with
// Debug.Cancelled.
func (s *Session) Detect(ctx context.Context, raster *imaging.Raster, meta SourceMetadata) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	return s.orch.Detect(ctx, raster, meta)
}

// Cancel aborts the in-flight detection, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
