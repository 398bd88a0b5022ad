package reporter

// Reporter defines the interface for progress reporting.
type Reporter interface {
	RunConfig(summary RunConfigSummary)
	ChunksBuilt(summary ChunkPlanSummary)
	Resumed(summary ResumeSummary)
	EncodingStarted(totalFrames uint64, workers int)
	EncodingProgress(progress ProgressSnapshot)
	ChunkFinished(result ChunkResult)
	RunComplete(summary RunOutcome)
	Warning(message string)
	Error(err ReporterError)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) RunConfig(RunConfigSummary)        {}
func (NullReporter) ChunksBuilt(ChunkPlanSummary)      {}
func (NullReporter) Resumed(ResumeSummary)             {}
func (NullReporter) EncodingStarted(uint64, int)       {}
func (NullReporter) EncodingProgress(ProgressSnapshot) {}
func (NullReporter) ChunkFinished(ChunkResult)         {}
func (NullReporter) RunComplete(RunOutcome)            {}
func (NullReporter) Warning(string)                    {}
func (NullReporter) Error(ReporterError)               {}
