// Package security describes the isolation posture applied to one sandbox run.
package security

// IsolationProfile captures the per-run security configuration resolved from
// a language/task profile: the chroot target, the seccomp allowlist to load,
// and whether the network namespace should be created (it always should be
// for judged code; the field exists so a profile can be audited explicitly
// rather than isolation being implied).
type IsolationProfile struct {
	RootFS         string
	SeccompProfile string
	DisableNetwork bool
}
