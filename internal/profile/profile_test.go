package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRegistry_DefaultLanguages(t *testing.T) {
	reg := NewRegistry()
	for _, tag := range []string{"c", "python", "javascript"} {
		if _, ok := reg.Resolve(tag); !ok {
			t.Fatalf("expected default profile for %q", tag)
		}
	}
	if _, ok := reg.Resolve("rust"); ok {
		t.Fatal("expected no profile for unregistered tag")
	}
}

func TestRegistry_CompileCommandsTokenizeCorrectly(t *testing.T) {
	reg := NewRegistry()
	p, _ := reg.Resolve("c")
	want := []string{"gcc", "-O2", "-std=c11", "-o", "solution", "solution.c"}
	if len(p.CompileCmd) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(p.CompileCmd), p.CompileCmd)
	}
	for i, tok := range want {
		if p.CompileCmd[i] != tok {
			t.Fatalf("token %d: want %q got %q", i, tok, p.CompileCmd[i])
		}
	}
}

func TestRegistry_LoadFromFile_Overrides(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
profiles:
  - tag: rust
    rootfs: rust-1.75
    compile: "rustc -O -o solution solution.rs"
    run: "./solution"
    source_file: solution.rs
    compile_timeout_ms: 30000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := reg.LoadFromFile(path); err != nil {
		t.Fatalf("load from file: %v", err)
	}

	p, ok := reg.Resolve("rust")
	if !ok {
		t.Fatal("expected rust profile to be registered")
	}
	if p.RootFS != "rust-1.75" {
		t.Fatalf("unexpected rootfs: %q", p.RootFS)
	}
	if len(p.RunCmd) != 1 || p.RunCmd[0] != "./solution" {
		t.Fatalf("unexpected run command: %v", p.RunCmd)
	}
}

func TestIsolationResolver_DisablesNetworkAlways(t *testing.T) {
	reg := NewRegistry()
	resolver := NewIsolationResolver(reg, "seccomp.json")

	iso, err := resolver.Resolve("python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !iso.DisableNetwork {
		t.Fatal("expected network disabled for all judged code")
	}
	if iso.SeccompProfile != "seccomp.json" {
		t.Fatalf("unexpected seccomp profile: %q", iso.SeccompProfile)
	}
}

func TestIsolationResolver_UnknownTag(t *testing.T) {
	reg := NewRegistry()
	resolver := NewIsolationResolver(reg, "seccomp.json")

	if _, err := resolver.Resolve("rust"); err == nil {
		t.Fatal("expected error for unknown language tag")
	}
}
