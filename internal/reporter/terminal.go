package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/emrakyz/Av1an/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	progress   *progressbar.ProgressBar
	maxPercent float32
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	bold       *color.Color
}

// NewTerminalReporter creates a new terminal reporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		bold:   color.New(color.Bold),
	}
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to ensure proper alignment.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
}

func (r *TerminalReporter) RunConfig(summary RunConfigSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("RUN")
	const w = 9
	r.printLabel(w, "Input:", summary.InputFile)
	r.printLabel(w, "Output:", summary.OutputFile)
	r.printLabel(w, "Encoder:", summary.Encoder)
	if summary.EncoderArgs != "" {
		r.printLabel(w, "Args:", summary.EncoderArgs)
	}
	if summary.Target != "" {
		r.printLabel(w, "Target:", summary.Target)
	}
	pinned := "off"
	if summary.PinCPUs {
		pinned = "on"
	}
	r.printLabel(w, "Workers:", fmt.Sprintf("%d (affinity %s)", summary.Workers, pinned))
}

func (r *TerminalReporter) ChunksBuilt(summary ChunkPlanSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("CHUNKS")
	r.printLabel(8, "Scenes:", fmt.Sprintf("%d", summary.Scenes))
	r.printLabel(8, "Chunks:", fmt.Sprintf("%d", summary.Chunks))
	r.printLabel(8, "Frames:", fmt.Sprintf("%d", summary.TotalFrames))
	if summary.Zones > 0 {
		r.printLabel(8, "Zones:", fmt.Sprintf("%d", summary.Zones))
	}
}

func (r *TerminalReporter) Resumed(summary ResumeSummary) {
	fmt.Printf("  %s %d chunks (%d frames) reused, %d rejected\n",
		r.bold.Sprint("Resume:"), summary.ChunksReused, summary.FramesReused, summary.ChunksRejected)
}

func (r *TerminalReporter) EncodingStarted(totalFrames uint64, workers int) {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "Encoding [",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) EncodingProgress(progress ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}

	clamped := progress.Percent
	if clamped > 100 {
		clamped = 100
	}
	if clamped < 0 {
		clamped = 0
	}

	if clamped >= r.maxPercent {
		r.maxPercent = clamped
		_ = r.progress.Set64(int64(clamped))
	}

	desc := fmt.Sprintf("%d/%d chunks, %.1f fps, eta %s",
		progress.ChunksDone, progress.ChunksTotal, progress.FPS, util.FormatDuration(progress.ETA))
	if progress.ChunksFailed > 0 {
		desc += fmt.Sprintf(", %d failed", progress.ChunksFailed)
	}
	r.progress.Describe(desc)
}

func (r *TerminalReporter) ChunkFinished(result ChunkResult) {
	// Per-chunk lines would fight the bar; only surface warnings.
	if result.Warning != "" {
		r.Warning(fmt.Sprintf("chunk %d: %s", result.Index, result.Warning))
	}
}

func (r *TerminalReporter) RunComplete(summary RunOutcome) {
	r.finishProgress()

	fmt.Println()
	_, _ = r.cyan.Println("RESULTS")
	r.printLabel(8, "Output:", summary.OutputFile)
	r.printLabel(8, "Chunks:", fmt.Sprintf("%d of %d", summary.ChunksDone, summary.ChunksTotal))
	r.printLabel(8, "Size:", util.FormatBytes(uint64(summary.BytesWritten)))
	fmt.Printf("  %s %s (avg %.1f fps)\n",
		r.bold.Sprint("Time:"), util.FormatDuration(summary.TotalTime), summary.AverageFPS)

	switch {
	case summary.Cancelled:
		fmt.Printf("  %s\n", r.yellow.Sprint("Run cancelled, progress kept for resume"))
	case summary.Partial && summary.ChunksFailed > 0:
		fmt.Printf("  %s\n", r.yellow.Sprintf("Partial output, %d chunk(s) failed", summary.ChunksFailed))
	case summary.ChunksFailed > 0:
		fmt.Printf("  %s\n", r.red.Sprintf("%d chunk(s) failed", summary.ChunksFailed))
	default:
		fmt.Printf("  %s\n", r.green.Add(color.Bold).Sprint("All chunks encoded"))
	}
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}
