package backend

// Phase is the coarse lifecycle of a backend submission.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseFinished
	PhaseCompileError
)

const (
	statusAccepted     = 3
	statusCompileError = 6
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	case PhaseCompileError:
		return "compile_error"
	default:
		return "unknown"
	}
}

// Status is a decoded backend status reply.
type Status struct {
	ID            int
	Description   string
	Stdout        string
	Stderr        string
	CompileOutput string
	Message       string
	Time          string
	MemoryKB      int64
}

// Phase maps the status id: 1 and 2 are in progress, 6 is a compilation failure and
// every other id is a finished run.
func (s Status) Phase() Phase {
	switch {
	case s.ID <= 2:
		return PhaseRunning
	case s.ID == statusCompileError:
		return PhaseCompileError
	default:
		return PhaseFinished
	}
}

// Accepted reports a clean run. Grading still decides the verdict per case.
func (s Status) Accepted() bool {
	return s.ID == statusAccepted
}
