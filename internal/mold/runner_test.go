package mold

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itaxotools/moldrun/internal/report"
	"github.com/itaxotools/moldrun/internal/task"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mold")
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "input.fas")
	if err := os.WriteFile(path, []byte(">s|T\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func marshalRequest(t *testing.T, req Request) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// fakeMold reads the configuration it is given and writes the named output
// file, like the real tool would.
const fakeMold = `#!/bin/sh
echo "starting diagnosis"
out=$(sed -n 's/^OUTPUT_FILE=//p' "$1")
echo "<html>diagnosis</html>" > "$out"
`

func TestRunProducesDiagnosis(t *testing.T) {
	workDir := t.TempDir()
	req := Request{
		Binary:           writeScript(t, fakeMold),
		WorkDir:          workDir,
		InputPath:        writeInput(t, t.TempDir()),
		TaxaList:         []string{"ALL"},
		TaxonRank:        RankSpecies,
		GapsAsCharacters: GapsAsCharacters(true),
	}

	var stdout bytes.Buffer
	var progress []report.Progress
	rc := task.NewRunContext(&stdout, os.Stderr, func(p report.Progress) {
		progress = append(progress, p)
	})

	result, err := Run(rc, marshalRequest(t, req))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	res, ok := result.(*Result)
	if !ok {
		t.Fatalf("result type %T", result)
	}
	if res.Diagnosis != filepath.Join(workDir, "out.html") {
		t.Errorf("diagnosis = %q", res.Diagnosis)
	}
	if res.Pairwise != "" {
		t.Errorf("pairwise = %q, want empty", res.Pairwise)
	}
	if _, err := os.Stat(res.Diagnosis); err != nil {
		t.Errorf("diagnosis file missing: %v", err)
	}
	if !strings.Contains(stdout.String(), "starting diagnosis") {
		t.Errorf("tool stdout not forwarded: %q", stdout.String())
	}
	if len(progress) == 0 {
		t.Error("no progress emitted")
	}

	conf, err := os.ReadFile(filepath.Join(workDir, "mold.conf"))
	if err != nil {
		t.Fatalf("configuration not written: %v", err)
	}
	if !strings.Contains(string(conf), "QTAXA=ALL\n") {
		t.Errorf("configuration content:\n%s", conf)
	}
}

func TestRunToolFailure(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\necho 'fatal: invalid alignment' >&2\nexit 2\n")
	req := Request{
		Binary:    script,
		WorkDir:   t.TempDir(),
		InputPath: writeInput(t, t.TempDir()),
		TaxaList:  []string{"ALL"},
	}

	rc := task.NewRunContext(nil, nil, nil)
	_, err := Run(rc, marshalRequest(t, req))
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	if !strings.Contains(err.Error(), "invalid alignment") {
		t.Errorf("error = %v, want the tool's stderr line included", err)
	}
}

func TestRunMissingOutput(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nexit 0\n")
	req := Request{
		Binary:    script,
		WorkDir:   t.TempDir(),
		InputPath: writeInput(t, t.TempDir()),
		TaxaList:  []string{"ALL"},
	}

	rc := task.NewRunContext(nil, nil, nil)
	_, err := Run(rc, marshalRequest(t, req))
	if err == nil || !strings.Contains(err.Error(), "no diagnosis was produced") {
		t.Errorf("err = %v, want missing diagnosis error", err)
	}
}

func TestRunMissingInput(t *testing.T) {
	req := Request{
		Binary:    "/bin/true",
		WorkDir:   t.TempDir(),
		InputPath: filepath.Join(t.TempDir(), "absent.fas"),
		TaxaList:  []string{"ALL"},
	}

	rc := task.NewRunContext(nil, nil, nil)
	_, err := Run(rc, marshalRequest(t, req))
	if err == nil || !strings.Contains(err.Error(), "sequence file") {
		t.Errorf("err = %v, want sequence file error", err)
	}
}

func TestRunResolvesInputAgainstConfDir(t *testing.T) {
	confDir := t.TempDir()
	writeInput(t, confDir)

	req := Request{
		Binary:    writeScript(t, fakeMold),
		WorkDir:   t.TempDir(),
		ConfDir:   confDir,
		InputPath: "input.fas",
		TaxaList:  []string{"ALL"},
	}

	rc := task.NewRunContext(nil, nil, nil)
	if _, err := Run(rc, marshalRequest(t, req)); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestDiagnoseTaskRegistered(t *testing.T) {
	if _, ok := task.Default.Lookup(TaskName); !ok {
		t.Fatalf("%s not registered in the default registry", TaskName)
	}
}
