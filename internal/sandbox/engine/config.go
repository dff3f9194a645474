package engine

// Config controls sandbox engine behavior.
type Config struct {
	// CgroupRoot is the cgroup v2 directory this worker owns, e.g.
	// /sys/fs/cgroup/judgecore. Each run gets a child directory under it.
	CgroupRoot string
	// SeccompDir resolves relative SeccompProfile paths from a profile.
	SeccompDir string
	// HelperPath is the path to the sandbox-init binary.
	HelperPath string
	// StdoutStderrMaxBytes caps how much of stdout/stderr is read back into
	// memory per run; the rest stays on disk, never fabricated.
	StdoutStderrMaxBytes int64
	// WorkdirTmpfsMB caps the size of the tmpfs mounted at the working
	// directory, per the sandbox's isolation policy (default 100 MiB).
	WorkdirTmpfsMB int64
	EnableSeccomp  bool
	EnableCgroup   bool
	EnableNamespaces bool
}

// WithDefaults fills in zero-valued fields with the engine's defaults.
func (c Config) WithDefaults() Config {
	if c.StdoutStderrMaxBytes <= 0 {
		c.StdoutStderrMaxBytes = 1 << 20
	}
	if c.HelperPath == "" {
		c.HelperPath = "sandbox-init"
	}
	if c.WorkdirTmpfsMB <= 0 {
		c.WorkdirTmpfsMB = 100
	}
	return c
}
