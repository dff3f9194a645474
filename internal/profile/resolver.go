package profile

import (
	"fmt"

	"judgecore/internal/sandbox/security"
)

// IsolationResolver adapts the language profile registry to the sandbox
// engine's ProfileResolver contract: RunSpec.Profile carries a language tag,
// and this turns that tag into the rootfs + seccomp isolation the engine
// needs. Every submission sandbox has its network disabled unconditionally;
// the judge pipeline never runs interactive or networked problems.
type IsolationResolver struct {
	registry       *Registry
	seccompByTag   map[string]string
	defaultSeccomp string
}

// NewIsolationResolver builds a resolver over registry, using seccompProfile
// as the filter file name for every language (judged code needs the same
// narrow syscall allowlist regardless of toolchain).
func NewIsolationResolver(registry *Registry, seccompProfile string) *IsolationResolver {
	seccompByTag := make(map[string]string)
	for tag := range registry.profiles {
		seccompByTag[tag] = seccompProfile
	}
	return &IsolationResolver{registry: registry, seccompByTag: seccompByTag, defaultSeccomp: seccompProfile}
}

func (r *IsolationResolver) Resolve(tag string) (security.IsolationProfile, error) {
	p, ok := r.registry.Resolve(tag)
	if !ok {
		return security.IsolationProfile{}, fmt.Errorf("resolve isolation profile: unknown language tag %q", tag)
	}
	seccompProfile, ok := r.seccompByTag[tag]
	if !ok {
		seccompProfile = r.defaultSeccomp
	}
	return security.IsolationProfile{
		RootFS:         p.RootFS,
		SeccompProfile: seccompProfile,
		DisableNetwork: true,
	}, nil
}
