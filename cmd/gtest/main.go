// gtest lowers tree fixtures in-process and compares the MIR text against
// golden files stored next to them.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/mirtext/mirtext/pkg/config"
	"github.com/mirtext/mirtext/pkg/handlers"
	"github.com/mirtext/mirtext/pkg/lower"
	"github.com/mirtext/mirtext/pkg/tree"
)

// Lowering is the outcome of lowering one fixture.
type Lowering struct {
	Hash     string        `json:"hash"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

type FileTestResult struct {
	File     string    `json:"file"`
	Status   string    `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string    `json:"message,omitempty"`
	Diff     string    `json:"diff,omitempty"`
	Expected *Lowering `json:"expected,omitempty"`
	Actual   *Lowering `json:"actual,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	generateGolden = flag.String("generate-golden", "", "Generate golden .json files for the given fixtures (space-separated globs).")
	testFiles      = flag.String("test-files", "tests/*.yaml", "Glob pattern(s) for fixtures to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	flagsArg       = flag.String("flags", "", "Feature and warning flags applied before each fixture, e.g. '-Fno-align-labels'.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	runs           = flag.Int("runs", 1, "Number of times to lower each fixture to find the minimum duration.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to fixture dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *runs < 1 {
		*runs = 1
	}
	setupInterruptHandler()

	if *generateGolden != "" {
		if err := handleGenerateGolden(*generateGolden); err != nil {
			log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
		}
		return
	}

	if hasFailures(handleRunTestSuite()) {
		os.Exit(1)
	}
}

func setupInterruptHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(fixture string) string {
	jsonFileName := "." + filepath.Base(fixture) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(fixture), jsonFileName)
}

// layoutPath is the optional layout blob read before a fixture is lowered.
func layoutPath(fixture string) string {
	return strings.TrimSuffix(fixture, filepath.Ext(fixture)) + ".layout"
}

// hashFile computes the xxhash of a fixture and its layout, if any.
func hashFile(path string) (string, error) {
	h := xxhash.New()
	for i, p := range []string{path, layoutPath(path)} {
		f, err := os.Open(p)
		if err != nil {
			if i > 0 && errors.Is(err, os.ErrNotExist) {
				break
			}
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// lowerFixture lowers a fixture with a fresh state. Lowering failures are
// part of the result; only unreadable fixtures return an error.
func lowerFixture(path, fileHash string) (*Lowering, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var blob []byte
	if b, err := os.ReadFile(layoutPath(path)); err == nil {
		blob = b
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	res := &Lowering{Hash: fileHash}
	for i := 0; i < *runs; i++ {
		start := time.Now()
		out, lerr := lowerOnce(raw, blob)
		d := time.Since(start)
		if i == 0 || d < res.Duration {
			res.Duration = d
		}
		res.Output, res.Error, res.Kind = out, "", ""
		if lerr != nil {
			res.Output = ""
			res.Error = lerr.Error()
			var e *lower.Error
			if errors.As(lerr, &e) {
				res.Kind = e.Kind.Error()
			}
		}
	}
	return res, nil
}

func lowerOnce(raw, blob []byte) (string, error) {
	root, err := tree.Decode(strings.NewReader(string(raw)))
	if err != nil {
		return "", err
	}
	cfg := config.NewConfig()
	if err := cfg.ApplyFlags(*flagsArg); err != nil {
		return "", err
	}
	if directives, ok := root.Property("Directives"); ok {
		if err := cfg.ApplyFlags(directives); err != nil {
			return "", err
		}
	}
	s := lower.NewState(cfg, handlers.NewInstructionManager())
	if blob != nil {
		if err := s.Data.SetDataLayout(strings.TrimSpace(string(blob))); err != nil {
			return "", err
		}
	}
	return s.Lower(root)
}

func handleGenerateGolden(patterns string) error {
	files, err := expandGlobPatterns(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no fixtures match %q", patterns)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", *jsonDir, err)
		}
	}

	for _, file := range files {
		fileHash, err := hashFile(file)
		if err != nil {
			return fmt.Errorf("could not hash %s: %w", file, err)
		}
		res, err := lowerFixture(file, fileHash)
		if err != nil {
			return fmt.Errorf("could not lower %s: %w", file, err)
		}
		res.Duration = 0

		jsonData, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal golden data: %w", err)
		}
		goldenFile := getJSONPath(file)
		if err := os.WriteFile(goldenFile, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write golden file %s: %w", goldenFile, err)
		}
		log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFile)
	}
	return nil
}

func handleRunTestSuite() TestSuiteResults {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No fixtures found matching the pattern(s).")
		return nil
	}

	results := runSuite(files)
	printSummary(results)
	return writeJSONReport(results)
}

func runSuite(files []string) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	type task struct{ file, hash string }
	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				resultsChan <- testFile(t.file, t.hash)
			}
		}()
	}

	// Feed the tasks channel, skipping fixtures with identical content
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
		tasks <- task{file, fileHash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})
	return allResults
}

func testFile(file, fileHash string) *FileTestResult {
	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
		}
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read golden file: %v", err)}
	}
	var expected Lowering
	if err := json.Unmarshal(goldenData, &expected); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to parse golden file: %v", err)}
	}

	actual, err := lowerFixture(file, fileHash)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	result := compareLowerings(file, &expected, actual)
	if expected.Hash != fileHash {
		result.Message += " (fixture changed since the golden file was generated)"
	}
	return result
}

func compareLowerings(file string, expected, actual *Lowering) *FileTestResult {
	result := &FileTestResult{File: file, Expected: expected, Actual: actual}
	ignored := strings.Split(*ignoreLines, ",")

	if expected.Kind != actual.Kind || (expected.Error == "") != (actual.Error == "") {
		result.Status = "FAIL"
		result.Message = "Lowering outcome differs from golden file"
		result.Diff = cmp.Diff(expected.Error, actual.Error)
		return result
	}
	if actual.Error != "" {
		result.Status = "PASS"
		result.Message = "Failed as expected"
		if expected.Error != actual.Error {
			result.Message += " (message changed)"
		}
		return result
	}

	want := filterOutput(expected.Output, ignored)
	got := filterOutput(actual.Output, ignored)
	if diff := cmp.Diff(strings.Split(want, "\n"), strings.Split(got, "\n")); diff != "" {
		result.Status = "FAIL"
		result.Message = "MIR text mismatch"
		result.Diff = diff
		return result
	}
	result.Status = "PASS"
	result.Message = "Output matches golden file"
	return result
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

	cwd, _ := os.Getwd()
	for _, r := range results {
		name := r.File
		if rel, err := filepath.Rel(cwd, r.File); err == nil {
			name = rel
		}

		var color string
		switch r.Status {
		case "PASS":
			passed++
			color = cGreen
		case "FAIL":
			failed++
			color = cRed
		case "SKIP":
			skipped++
			color = cYellow
		default:
			errored++
			color = cRed
		}
		if r.Actual != nil && r.Actual.Duration > 0 {
			total += r.Actual.Duration
			timed++
		}

		if r.Status == "PASS" && !*verbose {
			continue
		}
		fmt.Printf("%s[%s]%s %s", color, r.Status, cNone, name)
		if r.Actual != nil && r.Actual.Duration > 0 {
			fmt.Printf(" %s%s%s", cCyan, formatDuration(r.Actual.Duration), cNone)
		}
		if r.Message != "" {
			fmt.Printf(": %s", r.Message)
		}
		fmt.Println()
		if r.Diff != "" {
			fmt.Print(formatDiff(r.Diff))
		}
	}

	fmt.Println("----------------------------------------")
	fmt.Printf("%sSummary:%s %s%d passed%s, %s%d failed%s, %s%d skipped%s, %s%d errored%s, %d total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if timed > 0 {
		fmt.Printf("Average lowering time: %s\n", strings.TrimSpace(formatDuration(total/time.Duration(timed))))
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

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
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
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
