package metrics

import (
	"testing"
	"time"
)

func TestNoopRecorderSatisfiesRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("plan", time.Millisecond)
	r.ObserveBuildDuration(time.Millisecond)
	r.IncPageResult(PageWritten)
	r.IncBuildOutcome(OutcomeSuccess)
	r.SetWidgetCount(0)
}
