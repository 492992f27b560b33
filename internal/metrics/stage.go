package metrics

import "time"

// Pipeline stage names used as the Stage dimension.
const (
	StageDownload      = "download"
	StageTranscription = "transcription"
	StageAnalysis      = "analysis"
	StagePersist       = "persist"
)

// RecordStage emits latency and outcome for one pipeline stage.
func RecordStage(stage string, elapsed time.Duration, err error) {
	r := New(Namespace).
		Dimension("Stage", stage).
		Duration("StageLatencyMs", elapsed).
		Count("StageCount")
	if err != nil {
		r.Count("StageErrors").Property("error", err.Error())
	} else {
		r.Metric("StageErrors", 0, UnitCount)
	}
	r.Flush()
}

// RecordRetries emits the number of extra attempts a provider call needed.
func RecordRetries(stage string, retries int) {
	if retries <= 0 {
		return
	}
	New(Namespace).
		Dimension("Stage", stage).
		Metric("ProviderRetries", float64(retries), UnitCount).
		Flush()
}

// RecordFallback counts an analysis that degraded to the fallback result.
func RecordFallback() {
	New(Namespace).
		Dimension("Stage", StageAnalysis).
		Count("AnalysisFallbacks").
		Flush()
}

// RecordRequest emits per-request latency and status for an HTTP endpoint.
func RecordRequest(endpoint, method string, status int, elapsed time.Duration) {
	r := New(Namespace).
		Dimension("Endpoint", endpoint).
		Duration("RequestLatencyMs", elapsed).
		Count("RequestCount").
		Property("method", method).
		Property("statusCode", status)
	if status >= 500 {
		r.Count("Request5xx")
	} else if status >= 400 {
		r.Count("Request4xx")
	}
	r.Flush()
}
