package preview

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/pipeline"
)

// Status tracks the most recent build for the status endpoint.
type Status struct {
	mu           sync.RWMutex
	builds       int
	last         *pipeline.Report
	lastErr      error
	hasGoodBuild bool
}

// StatusSnapshot is the JSON view of Status.
type StatusSnapshot struct {
	Builds       int       `json:"builds"`
	BuildID      string    `json:"build_id,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	Written      int       `json:"written"`
	Failed       int       `json:"failed"`
	Finished     time.Time `json:"finished,omitzero"`
	Error        string    `json:"error,omitempty"`
	HasGoodBuild bool      `json:"has_good_build"`
}

func (s *Status) record(report *pipeline.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds++
	s.last = report
	s.lastErr = err
	if err == nil {
		s.hasGoodBuild = true
	}
}

// Snapshot returns a copy of the current state.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StatusSnapshot{Builds: s.builds, HasGoodBuild: s.hasGoodBuild}
	if s.last != nil {
		snap.BuildID = s.last.BuildID
		snap.Outcome = string(s.last.Outcome)
		snap.Written = s.last.Written
		snap.Failed = s.last.Failed
		snap.Finished = s.last.End
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}
