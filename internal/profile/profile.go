// Package profile holds the static language-tag → build/run recipe table
// the executor consults before launching any sandbox run.
package profile

import (
	"fmt"

	"github.com/google/shlex"
)

// Profile describes how to build and run one submission language.
type Profile struct {
	Tag            string
	RootFS         string // base filesystem image/overlay for this language's toolchain
	CompileCmd     []string
	RunCmd         []string
	SourceFile     string
	CompileTimeout int64 // ms; not read by the executor, which compiles whenever CompileCmd is set and applies its own fixed 30s cap
}

// Registry is a static language tag → Profile lookup. Zero value is usable;
// use NewRegistry to get the default judge-supported set.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns the registry seeded with the default language set.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	for _, p := range defaultProfiles() {
		r.profiles[p.Tag] = p
	}
	return r
}

// Resolve looks up a profile by tag. ok is false for an unknown tag.
func (r *Registry) Resolve(tag string) (Profile, bool) {
	p, ok := r.profiles[tag]
	return p, ok
}

// Register adds or replaces a profile, for tests or deployment-specific
// toolchain overrides.
func (r *Registry) Register(p Profile) {
	if r.profiles == nil {
		r.profiles = make(map[string]Profile)
	}
	r.profiles[p.Tag] = p
}

func defaultProfiles() []Profile {
	return []Profile{
		{
			Tag:            "c",
			RootFS:         "gcc-11",
			CompileCmd:     mustTokenize("gcc -O2 -std=c11 -o solution solution.c"),
			RunCmd:         mustTokenize("./solution"),
			SourceFile:     "solution.c",
			CompileTimeout: 30000,
		},
		{
			Tag:        "python",
			RootFS:     "python-3.11",
			RunCmd:     mustTokenize("python3 solution.py"),
			SourceFile: "solution.py",
		},
		{
			Tag:        "javascript",
			RootFS:     "node-20",
			RunCmd:     mustTokenize("node solution.js"),
			SourceFile: "solution.js",
		},
	}
}

func mustTokenize(command string) []string {
	tokens, err := shlex.Split(command)
	if err != nil {
		panic(fmt.Sprintf("profile: invalid command %q: %v", command, err))
	}
	return tokens
}

func shlexSplit(command string) ([]string, error) {
	return shlex.Split(command)
}
