package pipeline

import "time"

// Mode names a batch run.
type Mode string

const (
	ModeOutline Mode = "outline"
	ModeRank    Mode = "rank"
)

// FileStatus is the outcome for one input file.
type FileStatus string

const (
	FileOK     FileStatus = "ok"
	FileEmpty  FileStatus = "empty"  // unreadable or no text; empty result written
	FileFailed FileStatus = "failed" // nothing written
)

// FileResult records what happened to one input file.
type FileResult struct {
	Name     string        `json:"name"`
	Status   FileStatus    `json:"status"`
	Items    int           `json:"items"` // outline entries or detected sections
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Run summarises a batch over an input directory.
type Run struct {
	ID         string       `json:"run_id"`
	Mode       Mode         `json:"mode"`
	InputDir   string       `json:"input_dir"`
	Output     string       `json:"output"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Files      []FileResult `json:"files"`
}

func newRun(mode Mode, inputDir, output string, at time.Time) *Run {
	return &Run{
		ID:        newRunID(at),
		Mode:      mode,
		InputDir:  inputDir,
		Output:    output,
		StartedAt: at,
		Files:     []FileResult{},
	}
}

func (r *Run) add(fr FileResult) {
	r.Files = append(r.Files, fr)
}

// Counts tallies file outcomes.
func (r *Run) Counts() (ok, empty, failed int) {
	for _, f := range r.Files {
		switch f.Status {
		case FileOK:
			ok++
		case FileEmpty:
			empty++
		case FileFailed:
			failed++
		}
	}
	return ok, empty, failed
}

// Elapsed is the wall time of a finished run.
func (r *Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
