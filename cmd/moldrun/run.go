package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/itaxotools/moldrun/internal/events"
	"github.com/itaxotools/moldrun/internal/files"
	"github.com/itaxotools/moldrun/internal/model"
	"github.com/itaxotools/moldrun/internal/mold"
	"github.com/itaxotools/moldrun/internal/persistence"
)

var runFlags struct {
	params string
	taxa   string
	pairs  string
	rank   string
	gaps   string
	saveTo string
}

var checkAsParams bool

var runCmd = &cobra.Command{
	Use:   "run [sequence file]",
	Short: "run a molecular diagnosis on a sequence file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  doRun,
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "validate a sequence or parameter file without running",
	Args:  cobra.ExactArgs(1),
	RunE:  doCheck,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.params, "params", "p", "", "MolD parameter file to load")
	runCmd.Flags().StringVar(&runFlags.taxa, "taxa", "", "comma-separated taxa to diagnose, default all")
	runCmd.Flags().StringVar(&runFlags.pairs, "pairs", "", "comma-separated taxon pairs (A VS B), default all")
	runCmd.Flags().StringVar(&runFlags.rank, "rank", "", "taxon rank: 1 for species, 2 for supraspecific taxa")
	runCmd.Flags().StringVar(&runFlags.gaps, "gaps", "", "treat gaps as characters: yes or no")
	runCmd.Flags().StringVarP(&runFlags.saveTo, "save-to", "o", "", "directory to save results into, default next to the input")

	checkCmd.Flags().BoolVarP(&checkAsParams, "params", "p", false, "treat the file as a parameter file")
}

func doRun(cmd *cobra.Command, args []string) error {
	if runFlags.params == "" && len(args) == 0 {
		return fmt.Errorf("a sequence file or a parameter file is required")
	}

	ctx, cancel := interruptContext(cmd.Context())
	defer cancel()

	tempDir := cfg.Paths.TempDir
	if tempDir == "" {
		var err error
		tempDir, err = os.MkdirTemp("", "moldrun-*")
		if err != nil {
			return fmt.Errorf("failed to create temporary directory: %w", err)
		}
		defer os.RemoveAll(tempDir)
	}

	var store persistence.Store
	if cfg.History.Enabled {
		s, err := persistence.NewSQLiteStore(ctx, cfg.History.Path)
		if err != nil {
			logger.Warnw("run history disabled", "err", err)
		} else {
			store = s
			defer s.Close()
		}
	}

	bus := events.NewBus()
	defer bus.Close()

	m, err := model.NewMold(model.MoldConfig{
		Bus:          bus,
		TemporaryDir: tempDir,
		Binary:       cfg.Mold.Binary,
		Store:        store,
		Eager:        cfg.Worker.Eager,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer m.Quit()

	go reportEvents(bus)

	if runFlags.params != "" {
		if err := m.OpenConfigurationPath(runFlags.params); err != nil {
			return err
		}
	}
	if len(args) == 1 {
		if err := m.OpenSequencePath(args[0]); err != nil {
			return err
		}
	}
	if err := applyRunFlags(m); err != nil {
		return err
	}

	finished := make(chan struct{})
	unsubscribe := m.Busy.Subscribe(func(busy bool) {
		if !busy {
			close(finished)
		}
	})
	defer unsubscribe()

	if err := m.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("cancelling run")
		m.Stop()
		<-finished
	case <-finished:
	}

	if !m.Done.Get() {
		return fmt.Errorf("run did not complete")
	}
	return saveResults(m)
}

func applyRunFlags(m *model.Mold) error {
	if runFlags.taxa != "" {
		m.TaxonMode.Set(mold.TaxaList)
		m.TaxonList.Set(runFlags.taxa)
	}
	if runFlags.pairs != "" {
		m.PairsMode.Set(mold.PairsList)
		m.PairsList.Set(runFlags.pairs)
	}
	if runFlags.rank != "" {
		rank, err := mold.ParseTaxonRank(runFlags.rank)
		if err != nil {
			return err
		}
		m.TaxonRank.Set(rank)
	}
	if runFlags.gaps != "" {
		gaps, err := mold.ParseGapsAsCharacters(runFlags.gaps)
		if err != nil {
			return err
		}
		m.GapsAsCharacters.Set(gaps)
	}
	return nil
}

func saveResults(m *model.Mold) error {
	dir := runFlags.saveTo
	if dir == "" {
		dir = m.SuggestedDirectory()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := m.SaveAll(dir); err != nil {
		return err
	}
	fmt.Printf("diagnosis: %s\n", filepath.Join(dir, filepath.Base(m.SuggestedDiagnosis())))
	if _, _, pairwise := m.Results(); pairwise != "" {
		fmt.Printf("pairwise:  %s\n", filepath.Join(dir, filepath.Base(m.SuggestedPairwise())))
	}
	fmt.Printf("log:       %s\n", filepath.Join(dir, filepath.Base(m.SuggestedLog())))
	return nil
}

// reportEvents forwards bus traffic to the logger. Worker output itself
// streams directly to the process stdout and is not repeated here.
func reportEvents(bus *events.Bus) {
	for event := range bus.SubscribeAll(64) {
		switch e := event.(type) {
		case events.NotificationEvent:
			text := e.Text
			if e.Detail != "" {
				text += "\n" + e.Detail
			}
			switch e.Severity {
			case events.SeverityInfo:
				logger.Info(text)
			case events.SeverityWarn:
				logger.Warn(text)
			case events.SeverityError:
				logger.Error(text)
			}
		case events.ProgressEvent:
			if e.Maximum > 0 {
				logger.Infof("%s (%d/%d)", e.Text, e.Value, e.Maximum)
			} else if e.Text != "" {
				logger.Info(e.Text)
			}
		case events.RunStartedEvent:
			logger.Infow("run started", "id", e.RunID, "task", e.Task)
		}
	}
}

func doCheck(cmd *cobra.Command, args []string) error {
	path := args[0]
	asParams := checkAsParams || strings.HasSuffix(path, ".txt")

	start := time.Now()
	if asParams {
		params, err := files.ParseConfigurationFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: valid parameter file, %d parameters\n", path, len(params))
	} else {
		if err := files.CheckSequenceFile(path); err != nil {
			return err
		}
		fmt.Printf("%s: valid sequence file\n", path)
	}
	logger.Debugw("check finished", "path", path, "elapsed", time.Since(start))
	return nil
}
