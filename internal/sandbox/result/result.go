// Package result defines the raw data the sandbox engine hands back to the
// executor. It carries no verdict of its own — classifying a RunResult into
// an executor verdict is the executor's job, not the engine's.
package result

// RunResult captures raw sandbox execution data for one command invocation.
type RunResult struct {
	ExitCode   int
	TimeMs     int64
	WallTimeMs int64
	MemoryKB   int64
	OutputKB   int64
	Stdout     string
	Stderr     string
	TimedOut   bool
	OomKilled  bool
	// InfraError is set when the sandbox itself failed to launch or
	// supervise the process (helper start failure, helper crash),
	// as opposed to the judged program exiting abnormally on its own.
	InfraError string
}
