package mold

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/itaxotools/moldrun/internal/task"
)

// TaskName is the registry key for the diagnosis runner.
const TaskName = "mold.diagnose"

func init() {
	task.MustRegister(TaskName, Run)
}

// Request is the full argument set for one diagnosis run.
type Request struct {
	// Binary is the mold executable, looked up on PATH when relative.
	Binary string `json:"binary,omitempty"`
	// WorkDir receives the configuration and output files.
	WorkDir string `json:"work_dir"`
	// ConfDir resolves relative input paths taken from a configuration file.
	ConfDir string `json:"conf_dir,omitempty"`
	// InputPath is the sequence file.
	InputPath string `json:"input_path"`
	// TaxaList is the assembled qTaxa entries.
	TaxaList []string `json:"taxa_list"`

	TaxonRank        TaxonRank        `json:"taxon_rank"`
	GapsAsCharacters GapsAsCharacters `json:"gaps_as_characters"`
	DNC              DNCParams        `json:"dnc"`
	RDNS             RDNSParams       `json:"rdns"`
}

// Result locates the reports a finished run produced. Pairwise is empty
// when no pairwise comparisons were requested.
type Result struct {
	Diagnosis string `json:"diagnosis"`
	Pairwise  string `json:"pairwise,omitempty"`
}

// Run executes one diagnosis inside the worker process. It writes a
// parameter file into the work directory, invokes the mold tool on it,
// and forwards the tool output line by line.
func Run(rc *task.RunContext, raw json.RawMessage) (any, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return req.run(rc)
}

func (req *Request) run(rc *task.RunContext) (*Result, error) {
	input := req.InputPath
	if req.ConfDir != "" && !filepath.IsAbs(input) {
		if _, err := os.Stat(input); err != nil {
			input = filepath.Join(req.ConfDir, input)
		}
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("failed to open sequence file: %w", err)
	}

	output := filepath.Join(req.WorkDir, "out.html")
	pairwise := filepath.Join(req.WorkDir, "out_pairwise.html")

	confPath, err := req.writeConfiguration(input, output)
	if err != nil {
		return nil, err
	}

	binary := req.Binary
	if binary == "" {
		binary = "mold"
	}

	rc.Progress("Calculating diagnostic sites...", 0, 0)
	if err := req.execute(rc, binary, confPath); err != nil {
		return nil, err
	}

	if _, err := os.Stat(output); err != nil {
		return nil, fmt.Errorf("no diagnosis was produced: %w", err)
	}
	result := &Result{Diagnosis: output}
	if _, err := os.Stat(pairwise); err == nil {
		result.Pairwise = pairwise
	}
	return result, nil
}

// writeConfiguration renders the request as a mold parameter file.
func (req *Request) writeConfiguration(input, output string) (string, error) {
	dnc := req.DNC.WithDefaults()
	rdns := req.RDNS.WithDefaults(req.TaxonRank)

	var b strings.Builder
	entry := func(key string, value any) {
		fmt.Fprintf(&b, "%s=%v\n", key, value)
	}
	entry("INPUT_FILE", input)
	entry("OUTPUT_FILE", output)
	entry("QTAXA", strings.Join(req.TaxaList, ","))
	entry("TAXON_RANK", req.TaxonRank.Code())
	entry("GAPS_AS_CHARS", req.GapsAsCharacters.Code())
	entry("CUTOFF", dnc.Cutoff)
	entry("NUMBERN", dnc.Nucleotides)
	entry("NUMBER_OF_ITERATIONS", dnc.Iterations)
	entry("MAXLEN1", dnc.MaxLengthRaw)
	entry("MAXLEN2", dnc.MaxLengthRefined)
	entry("IREF", dnc.IndexingReference)
	entry("PDIFF", rdns.PDiff)
	entry("NMAXSEQ", rdns.NMax)
	entry("SCORING", rdns.Scoring)

	path := filepath.Join(req.WorkDir, "mold.conf")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write configuration: %w", err)
	}
	return path, nil
}

// execute runs the tool and streams its output. The child stays in the
// worker's process group so a cancellation kill reaches it too.
func (req *Request) execute(rc *task.RunContext, binary, confPath string) error {
	cmd := exec.Command(binary, confPath)
	cmd.Dir = req.WorkDir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", binary, err)
	}

	// Drain both pipes before Wait so large reports cannot deadlock.
	var wg sync.WaitGroup
	var lastErrLine string
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		for scanner.Scan() {
			fmt.Fprintln(rc.Stdout, scanner.Text())
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) != "" {
				lastErrLine = line
			}
			fmt.Fprintln(rc.Stderr, line)
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if lastErrLine != "" {
			return fmt.Errorf("%s failed: %w: %s", binary, err, lastErrLine)
		}
		return fmt.Errorf("%s failed: %w", binary, err)
	}
	return nil
}
