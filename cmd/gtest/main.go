// gtest runs sstc over a set of sources and compares what it prints with the
// golden .json file stored next to each source.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is the expected outcome of compiling one source.
type Golden struct {
	Args       []string  `json:"args"`
	SourceHash string    `json:"source_hash"`
	Result     Execution `json:"result"`
}

type FileTestResult struct {
	File         string     `json:"file"`
	Status       string     `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message      string     `json:"message,omitempty"`
	Diff         string     `json:"diff,omitempty"`
	SourceHash   string     `json:"source_hash,omitempty"`
	CompilerHash string     `json:"compiler_hash,omitempty"`
	GoldenHash   string     `json:"golden_hash,omitempty"`
	Target       *Execution `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler       = flag.String("compiler", "./sstc", "Path to the sstc binary under test.")
	compilerArgs   = flag.String("args", "--stage ssa", "Arguments passed to sstc before the source file (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate the golden .json file for a given source file.")
	update         = flag.Bool("update", false, "Rewrite the golden file of every selected source.")
	testFiles      = flag.String("test-files", "testdata/*.sst", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each compiler run.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Reuse results of the previous run when neither the source, the golden file nor the compiler changed.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

var (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		cRed, cYellow, cGreen, cCyan, cBold, cNone = "", "", "", "", "", ""
	}
	if *jobs < 1 {
		*jobs = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *generateGolden != "" {
		if err := writeGolden(ctx, *generateGolden); err != nil {
			logrus.WithError(err).Fatalf("could not generate golden file for %s", *generateGolden)
		}
		return
	}

	if err := runSuite(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
		} else {
			logrus.WithError(err).Error("test run failed")
		}
		os.Exit(1)
	}
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func writeGolden(ctx context.Context, sourceFile string) error {
	logrus.Infof("generating golden file for %s", sourceFile)
	fileHash, err := hashFile(sourceFile)
	if err != nil {
		return errors.Wrap(err, "could not hash source file")
	}

	args := strings.Fields(*compilerArgs)
	g := Golden{Args: args, SourceHash: fileHash, Result: compile(ctx, *compiler, args, sourceFile)}
	if g.Result.TimedOut {
		return errors.Errorf("compiler timed out after %s", *timeout)
	}

	jsonData, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal golden data")
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", *jsonDir)
		}
	}
	goldenFileName := getJSONPath(sourceFile)
	if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
		return errors.Wrapf(err, "failed to write golden file %s", goldenFileName)
	}
	fmt.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
	return nil
}

func runSuite(ctx context.Context) error {
	if _, err := exec.LookPath(*compiler); err != nil {
		return errors.Wrapf(err, "compiler '%s' not found", *compiler)
	}
	compilerHash, err := hashFile(*compiler)
	if err != nil {
		path, _ := exec.LookPath(*compiler)
		if compilerHash, err = hashFile(path); err != nil {
			return errors.Wrap(err, "could not hash compiler")
		}
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logrus.Warn("no test files found matching the pattern(s)")
		return nil
	}

	if *update {
		for _, f := range files {
			if err := writeGolden(ctx, f); err != nil {
				return errors.Wrapf(err, "updating %s", f)
			}
		}
	}

	previous := make(TestSuiteResults)
	if *useCache {
		previous = loadReport(reportPath())
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(ctx, file, compilerHash, previous[file])
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool { return allResults[i].File < allResults[j].File })

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)
	if hasFailures(resultsMap) {
		return errors.New("some tests failed")
	}
	return nil
}

func testFile(ctx context.Context, file, compilerHash string, prev *FileTestResult) *FileTestResult {
	log := logrus.WithField("file", file)
	fileHash, err := hashFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: "Failed to hash source file"}
	}
	goldenFile := getJSONPath(file)
	goldenHash, err := hashFile(goldenFile)
	if err != nil {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}

	if prev != nil && prev.Status == "PASS" && prev.SourceHash == fileHash &&
		prev.CompilerHash == compilerHash && prev.GoldenHash == goldenHash {
		log.Debug("unchanged since the last passing run")
		cached := *prev
		cached.Message = "Unchanged since the last passing run (cached)"
		return &cached
	}

	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}
	var golden Golden
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}
	if golden.SourceHash != "" && golden.SourceHash != fileHash {
		log.Warn("source changed since its golden file was generated")
	}

	got := compile(ctx, *compiler, golden.Args, file)
	res := compareResults(file, &golden.Result, &got, splitIgnored(*ignoreLines))
	res.SourceHash, res.CompilerHash, res.GoldenHash = fileHash, compilerHash, goldenHash
	return res
}

// compareResults checks the compiler's exit code and both output streams
// against the golden run. Durations never take part.
func compareResults(file string, want, got *Execution, ignored []string) *FileTestResult {
	var diffs strings.Builder
	if got.TimedOut {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Compiler timed out", Target: got}
	}
	if want.ExitCode != got.ExitCode {
		fmt.Fprintf(&diffs, "Exit Code mismatch:\n  - Golden: %d\n  - Target: %d\n", want.ExitCode, got.ExitCode)
	}
	if d := cmp.Diff(filterOutput(want.Stdout, ignored), filterOutput(got.Stdout, ignored)); d != "" {
		fmt.Fprintf(&diffs, "STDOUT mismatch:\n%s", d)
	}
	if d := cmp.Diff(filterOutput(want.Stderr, ignored), filterOutput(got.Stderr, ignored)); d != "" {
		fmt.Fprintf(&diffs, "STDERR mismatch:\n%s", d)
	}
	if diffs.Len() > 0 {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Output or exit code mismatch", Diff: diffs.String(), Target: got}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Output matches the golden file", Target: got}
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -2
			res.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return res
}

// compile runs the compiler on one source. Paths to the source are replaced
// by its base name so golden files do not depend on where the tree lives.
func compile(ctx context.Context, compiler string, args []string, sourceFile string) Execution {
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	allArgs := append(append([]string{}, args...), sourceFile)
	res := executeCommand(ctx, compiler, allArgs...)
	res.Stdout = normalizePath(res.Stdout, sourceFile)
	res.Stderr = normalizePath(res.Stderr, sourceFile)
	return res
}

func normalizePath(output, sourceFile string) string {
	base := filepath.Base(sourceFile)
	if abs, err := filepath.Abs(sourceFile); err == nil {
		output = strings.ReplaceAll(output, abs, base)
	}
	return strings.ReplaceAll(output, sourceFile, base)
}

func splitIgnored(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	filteredLines := make([]string, 0, len(lines))
	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			filteredLines = append(filteredLines, line)
		}
	}
	return strings.Join(filteredLines, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration
	var timed int

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
		if result.Target != nil {
			timed++
			total += result.Target.Duration
			if *verbose {
				fmt.Printf("  sstc: %s (exit %d)\n", formatDuration(result.Target.Duration), result.Target.ExitCode)
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if timed > 0 {
		fmt.Printf("Average compile time: %s\n", strings.TrimSpace(formatDuration(total/time.Duration(timed))))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func reportPath() string {
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, *outputJSON)
	}
	return *outputJSON
}

func loadReport(path string) TestSuiteResults {
	results := make(TestSuiteResults)
	data, err := os.ReadFile(path)
	if err != nil {
		return results
	}
	if err := json.Unmarshal(data, &results); err != nil {
		logrus.WithError(err).Warnf("could not parse previous results file %s, cache will not be used", path)
		return make(TestSuiteResults)
	}
	return results
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		logrus.WithError(err).Error("failed to marshal results to JSON")
		return resultsMap
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			logrus.WithError(err).Errorf("failed to create dir %s", *jsonDir)
		}
	}
	outputFile := reportPath()
	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		logrus.WithError(err).Errorf("failed to write JSON report to %s", outputFile)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %s", pattern)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if seen[absFile] {
				continue
			}
			if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, absFile)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
