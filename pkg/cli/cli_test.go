package cli

import (
	"bytes"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func newTestApp() (*App, *string, *bool, *[]string, *string) {
	app := NewApp("sstc")
	app.Synopsis = "[options] <input.sst>"
	var out, stage string
	var verbose bool
	var defs []string
	app.FlagSet.String(&out, "output", "o", "a.ssa", "Place the output into <file>.", "file")
	app.FlagSet.Bool(&verbose, "verbose", "v", false, "Log every stage.")
	app.FlagSet.List(&defs, "define", "D", nil, "Define a name.", "name")
	app.FlagSet.Choice(&stage, "stage", "", "ssa", []string{"scan", "parse", "ssa"}, "Stop after the given stage.")
	return app, &out, &verbose, &defs, &stage
}

func TestParseForms(t *testing.T) {
	app, out, verbose, defs, stage := newTestApp()
	fs := app.FlagSet
	err := fs.Parse([]string{"-ofoo.txt", "-v", "--define", "a", "-Db", "--stage=parse", "in.sst", "--", "-not-a-flag"})
	assert.NilError(t, err)

	assert.Equal(t, *out, "foo.txt")
	assert.Assert(t, *verbose)
	assert.DeepEqual(t, *defs, []string{"a", "b"})
	assert.Equal(t, *stage, "parse")
	assert.DeepEqual(t, fs.Args(), []string{"in.sst", "-not-a-flag"})
	assert.Assert(t, fs.Changed("output"))
	assert.Assert(t, !fs.Changed("nope"))
}

func TestParseErrors(t *testing.T) {
	app, _, _, _, _ := newTestApp()
	fs := app.FlagSet
	assert.ErrorContains(t, fs.Parse([]string{"--stage=lower"}), "expected one of: scan, parse, ssa")
	assert.ErrorContains(t, fs.Parse([]string{"--missing"}), "unknown flag: --missing")
	assert.ErrorContains(t, fs.Parse([]string{"-q"}), "unknown flag: -q")
	assert.ErrorContains(t, fs.Parse([]string{"--output"}), "flag needs an argument")
	assert.ErrorContains(t, fs.Parse([]string{"--verbose=maybe"}), "invalid boolean value")
}

func TestGroupFlags(t *testing.T) {
	fs := NewFlagSet("sstc")
	on, off := true, false
	entries := []FlagGroupEntry{{Name: "unused", Prefix: "W", Usage: "Warn.", Enabled: &on, Disabled: &off}}
	fs.AddFlagGroup("Warning Flags", "", "warning", "Available Warnings:", entries)

	assert.NilError(t, fs.Parse([]string{"-Wno-unused"}))
	assert.Assert(t, *entries[0].Disabled)
	assert.Assert(t, fs.Changed("Wno-unused"))
	assert.Assert(t, !fs.Changed("Wunused"))
}

func TestHelpAndVersion(t *testing.T) {
	app, _, _, _, _ := newTestApp()
	app.Version = "1.2.3"
	app.Description = "Builds SSA form."
	var stdout bytes.Buffer
	app.Stdout = &stdout
	called := false
	app.Action = func([]string) error { called = true; return nil }

	assert.NilError(t, app.Run([]string{"--help"}))
	assert.Assert(t, !called)
	help := stdout.String()
	assert.Check(t, is.Contains(help, "Synopsis"))
	assert.Check(t, is.Contains(help, "-o, --output <file>"))
	assert.Check(t, is.Contains(help, "|a.ssa|"))
	assert.Check(t, is.Contains(help, "Builds SSA form."))

	app2, _, _, _, _ := newTestApp()
	app2.Version = "1.2.3"
	stdout.Reset()
	app2.Stdout = &stdout
	assert.NilError(t, app2.Run([]string{"--version"}))
	assert.Equal(t, stdout.String(), "sstc 1.2.3\n")
}

func TestWrapText(t *testing.T) {
	assert.DeepEqual(t, wrapText("one two three four", 9), []string{"one two", "three", "four"})
	assert.Check(t, is.Len(wrapText("   ", 10), 0))
}
