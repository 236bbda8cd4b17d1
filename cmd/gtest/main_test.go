package main

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestCompareResults(t *testing.T) {
	want := &Execution{Stdout: "class A\n", Stderr: "", ExitCode: 0}

	res := compareResults("a.sst", want, &Execution{Stdout: "class A\n", Duration: 42}, nil)
	assert.Equal(t, res.Status, "PASS")

	res = compareResults("a.sst", want, &Execution{Stdout: "class B\n", ExitCode: 1}, nil)
	assert.Equal(t, res.Status, "FAIL")
	assert.Check(t, is.Contains(res.Diff, "Exit Code mismatch"))
	assert.Check(t, is.Contains(res.Diff, "STDOUT mismatch"))
	assert.Check(t, !is.Contains(res.Diff, "STDERR mismatch")().Success())

	res = compareResults("a.sst", want, &Execution{Stdout: "class A\n", TimedOut: true}, nil)
	assert.Equal(t, res.Message, "Compiler timed out")
}

func TestFilterOutput(t *testing.T) {
	out := "keep\nlevel=info msg=parsing\nkeep too"
	assert.Equal(t, filterOutput(out, []string{"level=info"}), "keep\nkeep too")
	assert.Equal(t, filterOutput(out, nil), out)
	assert.Equal(t, len(splitIgnored("")), 0)
}

func TestNormalizePath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Loop.sst")
	got := normalizePath(src+":3:4: error: Undefined name 'x'.", src)
	assert.Equal(t, got, "Loop.sst:3:4: error: Undefined name 'x'.")
}

func TestHashAndGlob(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "A.sst")
	b := filepath.Join(dir, "B.sst")
	assert.NilError(t, os.WriteFile(a, []byte("class A {}"), 0o644))
	assert.NilError(t, os.WriteFile(b, []byte("class A {}"), 0o644))
	assert.NilError(t, os.Mkdir(filepath.Join(dir, "sub.sst"), 0o755))

	ha, err := hashFile(a)
	assert.NilError(t, err)
	hb, err := hashFile(b)
	assert.NilError(t, err)
	assert.Equal(t, ha, hb)

	files, err := expandGlobPatterns(filepath.Join(dir, "*.sst") + " " + a)
	assert.NilError(t, err)
	assert.DeepEqual(t, files, []string{a, b})
	assert.Equal(t, getJSONPath(a), filepath.Join(dir, ".A.sst.json"))
}
