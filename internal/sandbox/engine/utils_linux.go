//go:build linux

package engine

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"judgecore/internal/sandbox/spec"
)

func durationMs(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return ms
}

// exitCodeFromErr recovers the judged program's exit code from either the
// captured ProcessState (preferred — reliable even after a signal kill) or
// the error exec.Cmd.Wait returned.
func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if eerr, ok := err.(*exec.ExitError); ok {
		exitErr = eerr
		return exitErr.ExitCode()
	}
	return -1
}

// stdoutSizeKB reports the size in KB of the file at path, 0 if it does not
// exist or is empty — never fabricated.
func stdoutSizeKB(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size() / 1024
}

// readLimitedFile reads up to maxBytes of the file at path. The sandbox
// contract only promises a truncated-but-present capture, never the whole
// file if it exceeds the cap.
func readLimitedFile(path string, maxBytes int64) string {
	if path == "" || maxBytes <= 0 {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ""
	}
	return string(buf[:n])
}

// resolveHostPath turns a RunSpec-relative path into the host-visible path
// the engine can read back after the helper exits (the helper itself sees
// it relative to the chroot/workdir; the engine always reads from the host
// side of the bind mount).
func resolveHostPath(path string, runSpec spec.RunSpec) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(runSpec.WorkDir, path)
}
