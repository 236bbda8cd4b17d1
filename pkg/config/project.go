package config

import (
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ProjectFileName is looked up next to the inputs when no --config is given.
const ProjectFileName = "sstc.toml"

// Project mirrors the optional sstc.toml file:
//
//	requires = ">= 0.4, < 1.0"
//	std = "SST"
//	sources = ["Main.sst"]
//
//	[features]
//	optional-else = true
//
//	[warnings]
//	unused = false
type Project struct {
	Requires string          `toml:"requires"`
	Std      string          `toml:"std"`
	Sources  []string        `toml:"sources"`
	Features map[string]bool `toml:"features"`
	Warnings map[string]bool `toml:"warnings"`
}

// ParseProject decodes the contents of a project file.
func ParseProject(data []byte) (*Project, error) {
	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "malformed project file")
	}
	return &p, nil
}

// LoadProject reads and decodes the project file at path.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read project file")
	}
	p, err := ParseProject(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return p, nil
}

// CheckVersion reports whether version satisfies the project's requires
// constraint. An empty constraint accepts every version.
func (p *Project) CheckVersion(version string) error {
	if p.Requires == "" {
		return nil
	}
	c, err := semver.NewConstraint(p.Requires)
	if err != nil {
		return errors.Wrapf(err, "invalid requires constraint %q", p.Requires)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "invalid compiler version %q", version)
	}
	if ok, reasons := c.Validate(v); !ok {
		msg := "compiler version " + v.String() + " does not satisfy " + p.Requires
		if len(reasons) > 0 {
			msg += ": " + reasons[0].Error()
		}
		return errors.New(msg)
	}
	return nil
}

// ApplyProject applies the standard first and the explicit feature and
// warning settings on top of it. Keys are applied in sorted order so that
// "all" can be combined with individual warnings deterministically.
func (c *Config) ApplyProject(p *Project) error {
	if err := p.CheckVersion(Version); err != nil {
		return err
	}
	if p.Std != "" {
		if err := c.ApplyStd(p.Std); err != nil {
			return errors.Wrap(err, "project std")
		}
	}
	for _, name := range sortedKeys(p.Features) {
		if err := c.SetFeatureByName(name, p.Features[name]); err != nil {
			return errors.Wrap(err, "project features")
		}
	}
	names := sortedKeys(p.Warnings)
	if enabled, ok := p.Warnings["all"]; ok {
		c.SetWarningByName("all", enabled)
	}
	for _, name := range names {
		if name == "all" {
			continue
		}
		if err := c.SetWarningByName(name, p.Warnings[name]); err != nil {
			return errors.Wrap(err, "project warnings")
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
