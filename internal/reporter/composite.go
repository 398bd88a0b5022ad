package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) RunConfig(summary RunConfigSummary) {
	for _, r := range c.reporters {
		r.RunConfig(summary)
	}
}

func (c *CompositeReporter) ChunksBuilt(summary ChunkPlanSummary) {
	for _, r := range c.reporters {
		r.ChunksBuilt(summary)
	}
}

func (c *CompositeReporter) Resumed(summary ResumeSummary) {
	for _, r := range c.reporters {
		r.Resumed(summary)
	}
}

func (c *CompositeReporter) EncodingStarted(totalFrames uint64, workers int) {
	for _, r := range c.reporters {
		r.EncodingStarted(totalFrames, workers)
	}
}

func (c *CompositeReporter) EncodingProgress(progress ProgressSnapshot) {
	for _, r := range c.reporters {
		r.EncodingProgress(progress)
	}
}

func (c *CompositeReporter) ChunkFinished(result ChunkResult) {
	for _, r := range c.reporters {
		r.ChunkFinished(result)
	}
}

func (c *CompositeReporter) RunComplete(summary RunOutcome) {
	for _, r := range c.reporters {
		r.RunComplete(summary)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}
