package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/itaxotools/moldrun/internal/events"
	"github.com/itaxotools/moldrun/internal/files"
	"github.com/itaxotools/moldrun/internal/mold"
	"github.com/itaxotools/moldrun/internal/observe"
	"github.com/itaxotools/moldrun/internal/persistence"
	"github.com/itaxotools/moldrun/internal/report"
)

const moldFailureText = "The MolD algorithm has encountered problems when calculating " +
	"diagnostic sites from your sequences. Check your input file, or " +
	"try adjusting the parameters to better fit the variation in your data."

// runIDFormat timestamps run identifiers, which double as work directory
// names under the temporary directory.
const runIDFormat = "20060102T150405"

// MoldConfig configures a Mold model.
type MoldConfig struct {
	// Bus receives notifications, progress and log events. Required.
	Bus *events.Bus
	// TemporaryDir holds per-run work directories and log files. Required.
	TemporaryDir string
	// Binary is the mold executable; empty means "mold" on PATH.
	Binary string
	// Store records finished runs; nil disables history.
	Store persistence.Store
	// Eager keeps a warm worker process between runs.
	Eager bool
	// WorkerArgv overrides the worker command line, for tests.
	WorkerArgv []string

	Logger *zap.SugaredLogger
}

// Mold drives MolD diagnosis runs. Input selection and taxa modes are
// observable so consumers can track readiness as the user edits them.
type Mold struct {
	*Task

	SequencePath      *observe.Value[string]
	ConfigurationPath *observe.Value[string]

	TaxonMode *observe.Value[mold.TaxonSelectMode]
	TaxonList *observe.Value[string]
	PairsMode *observe.Value[mold.PairwiseSelectMode]
	PairsList *observe.Value[string]

	TaxonRank        *observe.Value[mold.TaxonRank]
	GapsAsCharacters *observe.Value[mold.GapsAsCharacters]

	DirtyData *observe.Value[bool]
	HasLogs   *observe.Value[bool]

	temporaryDir string
	binary       string
	store        persistence.Store

	mu              sync.Mutex
	dnc             mold.DNCParams
	rdns            mold.RDNSParams
	resultID        string
	resultDiagnosis string
	resultPairwise  string
	startedAt       time.Time
	inputPath       string
	taxa            []string
	logFile         *os.File
}

// NewMold creates the model and spawns its worker per cfg.Eager.
func NewMold(cfg MoldConfig) (*Mold, error) {
	if cfg.TemporaryDir == "" {
		return nil, fmt.Errorf("a temporary directory is required")
	}
	if err := os.MkdirAll(cfg.TemporaryDir, 0755); err != nil {
		return nil, fmt.Errorf("creating temporary directory: %w", err)
	}

	m := &Mold{
		SequencePath:      observe.NewValue(""),
		ConfigurationPath: observe.NewValue(""),
		TaxonMode:         observe.NewValue(mold.TaxaAll),
		TaxonList:         observe.NewValue(""),
		PairsMode:         observe.NewValue(mold.PairsAll),
		PairsList:         observe.NewValue(""),
		TaxonRank:         observe.NewValue(mold.RankSpecies),
		GapsAsCharacters:  observe.NewValue(mold.GapsAsCharacters(true)),
		DirtyData:         observe.NewValue(false),
		HasLogs:           observe.NewValue(false),
		temporaryDir:      cfg.TemporaryDir,
		binary:            cfg.Binary,
		store:             cfg.Store,
	}

	t, err := NewTask(TaskConfig{
		Type:       "MolD",
		Bus:        cfg.Bus,
		Eager:      cfg.Eager,
		WorkerArgv: cfg.WorkerArgv,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	m.Task = t

	t.FailureText = moldFailureText
	t.IsReady = m.isReady
	t.OnDone = m.onDone
	t.OnStopped = m.onStopped

	for _, refresh := range []func(func(string)) func(){
		m.SequencePath.Subscribe,
		m.TaxonList.Subscribe,
		m.PairsList.Subscribe,
	} {
		refresh(func(string) { t.RefreshReady() })
	}
	m.TaxonMode.Subscribe(func(mold.TaxonSelectMode) { t.RefreshReady() })
	m.PairsMode.Subscribe(func(mold.PairwiseSelectMode) { t.RefreshReady() })

	return m, nil
}

func (m *Mold) isReady() bool {
	if m.SequencePath.Get() == "" {
		return false
	}
	taxonMode, pairsMode := m.TaxonMode.Get(), m.PairsMode.Get()
	if taxonMode == mold.TaxaNone && pairsMode == mold.PairsNone {
		return false
	}
	if taxonMode == mold.TaxaList && m.TaxonList.Get() == "" {
		return false
	}
	if pairsMode == mold.PairsList && m.PairsList.Get() == "" {
		return false
	}
	return true
}

// DNCParams returns the advanced mDNC search parameters.
func (m *Mold) DNCParams() mold.DNCParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dnc
}

// SetDNCParams replaces the advanced mDNC search parameters.
func (m *Mold) SetDNCParams(p mold.DNCParams) {
	m.mu.Lock()
	m.dnc = p
	m.mu.Unlock()
}

// RDNSParams returns the advanced rating and refinement parameters.
func (m *Mold) RDNSParams() mold.RDNSParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rdns
}

// SetRDNSParams replaces the advanced rating and refinement parameters.
func (m *Mold) SetRDNSParams(p mold.RDNSParams) {
	m.mu.Lock()
	m.rdns = p
	m.mu.Unlock()
}

// Start dispatches one diagnosis run to the worker.
func (m *Mold) Start() error {
	if m.Busy.Get() {
		return fmt.Errorf("cannot start: %s is already running", m.Name())
	}
	if !m.isReady() {
		return fmt.Errorf("cannot start: no sequence file or no taxa selected")
	}

	runID := time.Now().Format(runIDFormat)
	workDir := filepath.Join(m.temporaryDir, runID)
	if err := os.Mkdir(workDir, 0755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	taxa := mold.AssembleTaxa(
		m.TaxonMode.Get(), m.TaxonList.Get(),
		m.PairsMode.Get(), m.PairsList.Get(),
	)

	confDir := ""
	if conf := m.ConfigurationPath.Get(); conf != "" {
		confDir = filepath.Dir(conf)
	}

	m.mu.Lock()
	req := mold.Request{
		Binary:           m.binary,
		WorkDir:          workDir,
		ConfDir:          confDir,
		InputPath:        m.SequencePath.Get(),
		TaxaList:         taxa,
		TaxonRank:        m.TaxonRank.Get(),
		GapsAsCharacters: m.GapsAsCharacters.Get(),
		DNC:              m.dnc,
		RDNS:             m.rdns,
	}
	m.startedAt = time.Now()
	m.inputPath = req.InputPath
	m.taxa = taxa
	// A fresh run owns the result slots; a failure must not inherit the
	// previous run's report paths.
	m.resultID = ""
	m.resultDiagnosis = ""
	m.resultPairwise = ""
	m.mu.Unlock()

	m.ClearLogs()
	m.DirtyData.Set(true)
	m.HasLogs.Set(true)
	m.attachLogFile(runID)

	return m.Exec(runID, mold.TaskName, req)
}

// attachLogFile sinks worker output into <temporary>/<runID>.log for the
// duration of the run.
func (m *Mold) attachLogFile(runID string) {
	file, err := os.Create(filepath.Join(m.temporaryDir, runID+".log"))
	if err != nil {
		m.log.Warnw("cannot create run log file", "err", err)
		return
	}
	m.StreamOut().Add(file)
	m.StreamErr().Add(file)
	m.mu.Lock()
	m.logFile = file
	m.mu.Unlock()
}

func (m *Mold) detachLogFile() {
	m.mu.Lock()
	file := m.logFile
	m.logFile = nil
	m.mu.Unlock()
	if file == nil {
		return
	}
	m.StreamOut().Remove(file)
	m.StreamErr().Remove(file)
	file.Close()
}

// Clear discards results and logs, making the model editable again.
func (m *Mold) Clear() {
	m.ClearLogs()
	m.mu.Lock()
	m.resultID = ""
	m.resultDiagnosis = ""
	m.resultPairwise = ""
	m.mu.Unlock()
	m.DirtyData.Set(false)
	m.HasLogs.Set(false)
	m.Done.Set(false)
}

// OpenSequencePath validates and selects a sequence file. A failed check
// raises an error notification and leaves the selection unchanged.
func (m *Mold) OpenSequencePath(path string) error {
	m.Clear()
	if err := files.CheckSequenceFile(path); err != nil {
		m.notify(events.SeverityError, err.Error(), "")
		return err
	}
	m.SequencePath.Set(path)
	return nil
}

// OpenConfigurationPath loads a MolD parameter file and distributes its
// values over the model.
func (m *Mold) OpenConfigurationPath(path string) error {
	m.Clear()
	params, err := files.ParseConfigurationFile(path)
	if err == nil {
		err = m.applyConfiguration(params)
	}
	if err != nil {
		m.notify(events.SeverityError, err.Error(), "")
		return err
	}
	m.ConfigurationPath.Set(path)
	return nil
}

func (m *Mold) applyConfiguration(params map[string]string) error {
	if v, ok := params["TAXON_RANK"]; ok {
		rank, err := mold.ParseTaxonRank(v)
		if err != nil {
			return err
		}
		m.TaxonRank.Set(rank)
	}
	if v, ok := params["GAPS_AS_CHARS"]; ok {
		gaps, err := mold.ParseGapsAsCharacters(v)
		if err != nil {
			return err
		}
		m.GapsAsCharacters.Set(gaps)
	}
	if v, ok := params["INPUT_FILE"]; ok {
		m.SequencePath.Set(v)
	}
	if v, ok := params["QTAXA"]; ok {
		taxonList, pairsList := mold.DigestTaxa(v)
		m.TaxonMode.Set(mold.TaxaList)
		m.TaxonList.Set(taxonList)
		m.PairsMode.Set(mold.PairsList)
		m.PairsList.Set(pairsList)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.dnc.ApplyConfiguration(params); err != nil {
		return fmt.Errorf("invalid configuration value: %w", err)
	}
	if err := m.rdns.ApplyConfiguration(params); err != nil {
		return fmt.Errorf("invalid configuration value: %w", err)
	}
	// ORIG_FNAME and OUTPUT_FILE describe the file's provenance and are
	// recomputed per run, so their values are accepted and ignored.
	return nil
}

func (m *Mold) onDone(rep report.Done) {
	var result mold.Result
	if err := json.Unmarshal(rep.Result, &result); err != nil {
		m.log.Errorw("cannot decode run result", "id", rep.ID, "err", err)
		return
	}
	m.mu.Lock()
	m.resultID = rep.ID
	m.resultDiagnosis = result.Diagnosis
	m.resultPairwise = result.Pairwise
	m.mu.Unlock()
	m.DirtyData.Set(true)
}

func (m *Mold) onStopped(rep report.Report) {
	m.detachLogFile()

	m.mu.Lock()
	m.resultID = rep.CommandID()
	m.mu.Unlock()

	m.recordRun(rep)
}

// recordRun appends the finished run to the history store.
func (m *Mold) recordRun(rep report.Report) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	run := &persistence.Run{
		ID:        rep.CommandID(),
		Task:      m.Name(),
		InputPath: m.inputPath,
		Taxa:      strings.Join(m.taxa, ","),
		Outcome:   string(rep.Kind()),
		Diagnosis: m.resultDiagnosis,
		Pairwise:  m.resultPairwise,
		StartedAt: m.startedAt,
		EndedAt:   time.Now(),
	}
	m.mu.Unlock()

	switch r := rep.(type) {
	case report.Fail:
		run.Detail = r.Message
	case report.Exit:
		run.Detail = fmt.Sprintf("exit code %d", r.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.SaveRun(ctx, run); err != nil {
		m.log.Errorw("cannot record run", "id", run.ID, "err", err)
	}
}

// Results returns the paths of the last successful run. Pairwise is empty
// when no pairwise comparisons were requested.
func (m *Mold) Results() (id, diagnosis, pairwise string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultID, m.resultDiagnosis, m.resultPairwise
}

func (m *Mold) sequenceStem() string {
	path := m.SequencePath.Get()
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SuggestedDirectory is where result copies are offered by default.
func (m *Mold) SuggestedDirectory() string {
	return filepath.Dir(m.SequencePath.Get())
}

// SuggestedDiagnosis names the diagnosis copy after the input file.
func (m *Mold) SuggestedDiagnosis() string {
	return filepath.Join(m.SuggestedDirectory(), m.sequenceStem()+".molecular_diagnosis.html")
}

// SuggestedPairwise names the pairwise report copy after the input file.
func (m *Mold) SuggestedPairwise() string {
	return filepath.Join(m.SuggestedDirectory(), m.sequenceStem()+".pairwise.html")
}

// SuggestedLog names the log copy after the input file and run id.
func (m *Mold) SuggestedLog() string {
	m.mu.Lock()
	id := m.resultID
	m.mu.Unlock()
	return filepath.Join(m.SuggestedDirectory(), m.sequenceStem()+"."+id+".log")
}

// SaveDiagnosis copies the diagnosis report to path.
func (m *Mold) SaveDiagnosis(path string) error {
	_, diagnosis, _ := m.Results()
	return copyFile(diagnosis, path)
}

// SavePairwise copies the pairwise report to path.
func (m *Mold) SavePairwise(path string) error {
	_, _, pairwise := m.Results()
	return copyFile(pairwise, path)
}

// SaveLog copies the run log to path.
func (m *Mold) SaveLog(path string) error {
	id, _, _ := m.Results()
	return copyFile(filepath.Join(m.temporaryDir, id+".log"), path)
}

// SaveAll copies every artifact of the last run into the directory at
// path, under their suggested names.
func (m *Mold) SaveAll(path string) error {
	if err := m.SaveDiagnosis(filepath.Join(path, filepath.Base(m.SuggestedDiagnosis()))); err != nil {
		return err
	}
	_, _, pairwise := m.Results()
	if pairwise != "" {
		if err := m.SavePairwise(filepath.Join(path, filepath.Base(m.SuggestedPairwise()))); err != nil {
			return err
		}
	}
	if err := m.SaveLog(filepath.Join(path, filepath.Base(m.SuggestedLog()))); err != nil {
		return err
	}
	m.DirtyData.Set(false)
	return nil
}

func copyFile(src, dst string) error {
	if src == "" {
		return fmt.Errorf("nothing to save")
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
