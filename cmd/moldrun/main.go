package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itaxotools/moldrun/internal/config"
	"github.com/itaxotools/moldrun/internal/logging"
	"github.com/itaxotools/moldrun/internal/persistence"
	"github.com/itaxotools/moldrun/internal/worker"
)

var (
	cfg    *config.Config
	logger *zap.SugaredLogger

	flagConfigPath string
	flagVerbose    bool
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file to load - default is "+config.DefaultPath())
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initApp

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(workerCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "moldrun: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "moldrun",
	Short:        "Identify diagnostic nucleotide combinations for taxa in a DNA alignment",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("moldrun: version info not available")
			return
		}
		fmt.Printf("moldrun: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			}
		}
	},
}

var workerCmd = &cobra.Command{
	Use:    "_worker",
	Short:  "internal command",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return worker.Main()
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list recorded runs",
	RunE:  doHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list, 0 for all")
}

// initApp loads the configuration and builds the logger. The hidden worker
// command skips both: it inherits everything it needs from its parent.
func initApp(cmd *cobra.Command, args []string) error {
	if cmd == workerCmd {
		return nil
	}

	var err error
	cfg, err = config.Load(flagConfigPath)
	if err != nil {
		return err
	}
	if flagVerbose {
		cfg.Logger.Level = "debug"
	}
	logger, err = logging.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	return nil
}

func doHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	store, err := persistence.NewSQLiteStore(ctx, cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tOUTCOME\tINPUT\tDETAIL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Outcome,
			run.InputPath,
			run.Detail,
		)
	}
	return w.Flush()
}

// interruptContext cancels on the first SIGINT or SIGTERM and force-exits
// on the second.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
			return
		}
		<-sigs
		fmt.Fprintln(os.Stderr, "moldrun: forced exit")
		os.Exit(130)
	}()
	return ctx, cancel
}
