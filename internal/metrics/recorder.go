package metrics

import "time"

// PageResult enumerates per-page outcomes for counters.
type PageResult string

const (
	PageWritten PageResult = "written"
	PageSkipped PageResult = "skipped"
	PageFailed  PageResult = "failed"
)

// BuildOutcome enumerates the final status of a build.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// Recorder defines observability hooks for build, stage and page metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncPageResult(result PageResult)
	IncBuildOutcome(outcome BuildOutcome)
	SetWidgetCount(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncPageResult(PageResult)                   {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)               {}
func (NoopRecorder) SetWidgetCount(int)                         {}
