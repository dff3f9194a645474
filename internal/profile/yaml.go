package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlProfile mirrors Profile's shape for config-file loading, where
// commands are authored as plain strings and tokenized on load.
type yamlProfile struct {
	Tag            string `yaml:"tag"`
	RootFS         string `yaml:"rootfs"`
	Compile        string `yaml:"compile"`
	Run            string `yaml:"run"`
	SourceFile     string `yaml:"source_file"`
	CompileTimeout int64  `yaml:"compile_timeout_ms"`
}

type yamlDocument struct {
	Profiles []yamlProfile `yaml:"profiles"`
}

// LoadFromFile reads a deployment-specific language profile override file,
// replacing or adding to the registry's default set. Lets an operator point
// a language at a different toolchain image without a rebuild.
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile config: %w", err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse profile config: %w", err)
	}

	for _, yp := range doc.Profiles {
		if yp.Tag == "" {
			return fmt.Errorf("profile config: entry missing tag")
		}
		p := Profile{
			Tag:            yp.Tag,
			RootFS:         yp.RootFS,
			SourceFile:     yp.SourceFile,
			CompileTimeout: yp.CompileTimeout,
		}
		if yp.Compile != "" {
			tokens, err := shlexSplit(yp.Compile)
			if err != nil {
				return fmt.Errorf("profile config: invalid compile command for %q: %w", yp.Tag, err)
			}
			p.CompileCmd = tokens
		}
		if yp.Run != "" {
			tokens, err := shlexSplit(yp.Run)
			if err != nil {
				return fmt.Errorf("profile config: invalid run command for %q: %w", yp.Tag, err)
			}
			p.RunCmd = tokens
		}
		r.Register(p)
	}
	return nil
}
