package config

import (
	"fmt"

	"github.com/xplshn/sstc/pkg/cli"
)

// Version is the compiler version checked against a project's `requires`.
const Version = "0.4.0"

type Feature int

const (
	FeatOptionalElse Feature = iota
	FeatLocalInit
	FeatVerifyIR
	FeatCount
)

type Warning int

const (
	WarnUninitialized Warning = iota
	WarnShadow
	WarnUnused
	WarnConstCondition
	WarnEmptyBody
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	StdName    string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
	}

	features := map[Feature]Info{
		FeatOptionalElse: {"optional-else", true, "Allow 'if' statements without an 'else' branch."},
		FeatLocalInit:    {"local-init", true, "Allow local declarations with an initializer (`int x = 1;`)."},
		FeatVerifyIR:     {"verify-ir", true, "Check the structural invariants of the SSA graph after construction."},
	}

	warnings := map[Warning]Info{
		WarnUninitialized:  {"uninitialized", true, "Warn when a local variable is read before any assignment."},
		WarnShadow:         {"shadow", true, "Warn when a parameter or local hides a class constant."},
		WarnUnused:         {"unused", true, "Warn about local variables that are never read."},
		WarnConstCondition: {"const-condition", false, "Warn about conditions that compare two constants."},
		WarnEmptyBody:      {"empty-body", true, "Warn about loops and branches with an empty body."},
		WarnPedantic:       {"pedantic", false, "Issue all warnings demanded by the strict standard."},
		WarnExtra:          {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	cfg.StdName = "SSTx"

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyStd switches the language standard. SST is the strict language;
// SSTx adds the extensions listed in the feature table.
func (c *Config) ApplyStd(stdName string) error {
	isPedantic := c.IsWarningEnabled(WarnPedantic)

	type stdSettings struct {
		feature   Feature
		sstValue  bool
		sstxValue bool
	}

	settings := []stdSettings{
		{FeatOptionalElse, false, true},
		{FeatLocalInit, false, !isPedantic},
		{FeatVerifyIR, true, true},
	}

	switch stdName {
	case "SST":
		for _, s := range settings {
			c.SetFeature(s.feature, s.sstValue)
		}
		c.SetWarning(WarnConstCondition, true)
	case "SSTx":
		for _, s := range settings {
			c.SetFeature(s.feature, s.sstxValue)
		}
		c.SetWarning(WarnConstCondition, isPedantic)
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'SST', 'SSTx'", stdName)
	}
	c.StdName = stdName
	return nil
}

// SetFeatureByName and SetWarningByName resolve the user-facing names used by
// flags and project files.
func (c *Config) SetFeatureByName(name string, enabled bool) error {
	ft, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(ft, enabled)
	return nil
}

func (c *Config) SetWarningByName(name string, enabled bool) error {
	if name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enabled)
			}
		}
		return nil
	}
	wt, ok := c.WarningMap[name]
	if !ok {
		return fmt.Errorf("unknown warning '%s'", name)
	}
	c.SetWarning(wt, enabled)
	return nil
}

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and -F<feature>/-Fno-<feature>
// on fs. The returned entries are ordered by Warning and Feature value.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	warnings = make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := info.Enabled, false
		warnings[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	features = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := info.Enabled, false
		features[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: &enabled, Disabled: &disabled}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", features)
	return warnings, features
}

// ApplyFlagGroups copies the flags the user actually passed on top of the
// current settings. Only explicit flags override the standard.
func (c *Config) ApplyFlagGroups(fs *cli.FlagSet, warnings, features []cli.FlagGroupEntry) {
	for i, entry := range warnings {
		if fs.Changed("W" + entry.Name) {
			c.SetWarning(Warning(i), *entry.Enabled)
		}
		if fs.Changed("Wno-" + entry.Name) && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range features {
		if fs.Changed("F" + entry.Name) {
			c.SetFeature(Feature(i), *entry.Enabled)
		}
		if fs.Changed("Fno-" + entry.Name) && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// Describe returns one line per feature and warning with its current state.
func (c *Config) Describe() []string {
	var lines []string
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		lines = append(lines, fmt.Sprintf("feature %-16s %v", info.Name, info.Enabled))
	}
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		lines = append(lines, fmt.Sprintf("warning %-16s %v", info.Name, info.Enabled))
	}
	return lines
}
