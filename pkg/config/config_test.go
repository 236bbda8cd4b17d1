package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xplshn/sstc/pkg/cli"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestApplyStd(t *testing.T) {
	cfg := NewConfig()
	assert.NilError(t, cfg.ApplyStd("SST"))
	assert.Equal(t, cfg.StdName, "SST")
	assert.Check(t, !cfg.IsFeatureEnabled(FeatOptionalElse))
	assert.Check(t, !cfg.IsFeatureEnabled(FeatLocalInit))
	assert.Check(t, cfg.IsFeatureEnabled(FeatVerifyIR))
	assert.Check(t, cfg.IsWarningEnabled(WarnConstCondition))

	assert.NilError(t, cfg.ApplyStd("SSTx"))
	assert.Check(t, cfg.IsFeatureEnabled(FeatOptionalElse))
	assert.Check(t, cfg.IsFeatureEnabled(FeatLocalInit))

	cfg.SetWarning(WarnPedantic, true)
	assert.NilError(t, cfg.ApplyStd("SSTx"))
	assert.Check(t, !cfg.IsFeatureEnabled(FeatLocalInit))

	assert.ErrorContains(t, cfg.ApplyStd("Java"), "unsupported standard 'Java'")
	assert.Equal(t, cfg.StdName, "SSTx")
}

func TestWarningAll(t *testing.T) {
	cfg := NewConfig()
	assert.NilError(t, cfg.SetWarningByName("all", true))
	for i := Warning(0); i < WarnCount; i++ {
		assert.Check(t, cfg.IsWarningEnabled(i) == (i != WarnPedantic), cfg.Warnings[i].Name)
	}
	assert.ErrorContains(t, cfg.SetWarningByName("nope", true), "unknown warning")
	assert.ErrorContains(t, cfg.SetFeatureByName("nope", true), "unknown feature")
}

func TestParseProject(t *testing.T) {
	p, err := ParseProject([]byte(`
requires = ">= 0.4.0, < 1.0.0"
std = "SST"
sources = ["A.sst", "B.sst"]

[features]
optional-else = true

[warnings]
all = false
unused = true
`))
	assert.NilError(t, err)
	assert.DeepEqual(t, p, &Project{
		Requires: ">= 0.4.0, < 1.0.0",
		Std:      "SST",
		Sources:  []string{"A.sst", "B.sst"},
		Features: map[string]bool{"optional-else": true},
		Warnings: map[string]bool{"all": false, "unused": true},
	})

	cfg := NewConfig()
	assert.NilError(t, cfg.ApplyProject(p))
	assert.Equal(t, cfg.StdName, "SST")
	assert.Check(t, cfg.IsFeatureEnabled(FeatOptionalElse))
	assert.Check(t, !cfg.IsFeatureEnabled(FeatLocalInit))
	assert.Check(t, cfg.IsWarningEnabled(WarnUnused))
	assert.Check(t, !cfg.IsWarningEnabled(WarnShadow))
}

func TestProjectErrors(t *testing.T) {
	_, err := ParseProject([]byte("std = [unterminated"))
	assert.ErrorContains(t, err, "malformed project file")

	cfg := NewConfig()
	err = cfg.ApplyProject(&Project{Requires: ">= 2.0.0"})
	assert.ErrorContains(t, err, "does not satisfy >= 2.0.0")

	err = cfg.ApplyProject(&Project{Requires: "not a constraint"})
	assert.ErrorContains(t, err, "invalid requires constraint")

	err = cfg.ApplyProject(&Project{Warnings: map[string]bool{"bogus": true}})
	assert.ErrorContains(t, err, "project warnings: unknown warning 'bogus'")
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	assert.NilError(t, os.WriteFile(path, []byte(`std = "SSTx"`), 0o644))

	p, err := LoadProject(path)
	assert.NilError(t, err)
	assert.Equal(t, p.Std, "SSTx")

	_, err = LoadProject(filepath.Join(dir, "missing.toml"))
	assert.Check(t, is.ErrorContains(err, "cannot read project file"))
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("sstc")
	warnings, features := cfg.SetupFlagGroups(fs)
	assert.Check(t, is.Len(warnings, int(WarnCount)))
	assert.Check(t, is.Len(features, int(FeatCount)))

	assert.NilError(t, fs.Parse([]string{"-Wno-unused", "-Wconst-condition", "-Fno-optional-else", "x.sst"}))
	cfg.ApplyFlagGroups(fs, warnings, features)

	assert.Check(t, !cfg.IsWarningEnabled(WarnUnused))
	assert.Check(t, cfg.IsWarningEnabled(WarnConstCondition))
	assert.Check(t, !cfg.IsFeatureEnabled(FeatOptionalElse))
	assert.Check(t, cfg.IsWarningEnabled(WarnShadow), "untouched flags keep their setting")
	assert.DeepEqual(t, fs.Args(), []string{"x.sst"})
}
