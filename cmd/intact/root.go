package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robwhited/intact/internal/bufsize"
	"github.com/robwhited/intact/internal/config"
	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/digest"
	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/filter"
	"github.com/robwhited/intact/internal/stats"
	"github.com/robwhited/intact/internal/ui"
)

type globalOpts struct {
	algorithm string
	workers   int
	verbose   bool
	quiet     bool
	logFile   string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}

	root := &cobra.Command{
		Use:           "intact",
		Short:         "Copy and verify file trees with end-to-end hash integrity",
		Long: `intact copies files the paranoid way: every file is hashed while it is
read, flushed to stable storage, then read back from the destination and
hashed again. Only matching digests count as a successful copy.

The verify command compares two existing trees bidirectionally by content
digest, tolerating renamed copies like "photo - Copy.jpg".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.algorithm, "algorithm", "A", "sha256",
		"digest algorithm (sha256, sha1, md5, blake3)")
	pf.IntVarP(&g.workers, "workers", "n", 0,
		"parallel hashing workers (default: logical cores, capped at 8)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")

	root.AddCommand(newCopyCmd(g))
	root.AddCommand(newVerifyCmd(g))
	root.AddCommand(newHashCmd(g))
	return root
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

// addFilterFlags registers the enumeration filter flags shared by all
// subcommands and returns the chain plus the size flag destinations.
func addFilterFlags(cmd *cobra.Command, chain *filter.Chain, minSize, maxSize *string) {
	cmd.Flags().Var(&filterFlag{chain: chain, include: false}, "exclude",
		"exclude files matching PATTERN (repeatable)")
	cmd.Flags().Var(&filterFlag{chain: chain, include: true}, "include",
		"include files matching PATTERN (repeatable)")
	cmd.Flags().StringVar(minSize, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	cmd.Flags().StringVar(maxSize, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
}

func applySizeFlags(chain *filter.Chain, minSize, maxSize string) error {
	if minSize != "" {
		n, err := filter.ParseSize(minSize)
		if err != nil {
			return fmt.Errorf("invalid --min-size: %w", err)
		}
		chain.SetMinSize(n)
	}
	if maxSize != "" {
		n, err := filter.ParseSize(maxSize)
		if err != nil {
			return fmt.Errorf("invalid --max-size: %w", err)
		}
		chain.SetMaxSize(n)
	}
	return nil
}

// session bundles everything a subcommand run needs: resolved options,
// control ports wired to signals, stats, and the live presenter.
type session struct {
	algorithm  digest.Algorithm
	thresholds bufsize.Thresholds
	workers    int
	quiet      bool
	cfg        config.Config
	collector  *stats.Collector
	controller *control.Controller
	events     chan<- event.Event

	presenter *ui.Presenter
	sigStop   func()
	logClose  func()
}

// newSession resolves flags against the optional config file, configures
// logging, and installs the signal handlers: SIGINT/SIGTERM cancel,
// SIGUSR1 pauses, SIGUSR2 resumes.
func (g *globalOpts) newSession(cmd *cobra.Command) (*session, error) {
	logLevel := slog.LevelWarn
	if g.verbose {
		logLevel = slog.LevelDebug
	} else if !g.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	var logHandler slog.Handler = textHandler
	logClose := func() {}
	if g.logFile != "" {
		lf, err := os.Create(g.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
		logClose = func() { lf.Close() }
	}
	slog.SetDefault(slog.New(logHandler))

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}

	algoStr := g.algorithm
	if !cmd.Flags().Changed("algorithm") && cfg.Defaults.Algorithm != nil {
		algoStr = *cfg.Defaults.Algorithm
	}
	algo, err := digest.Parse(algoStr)
	if err != nil {
		logClose()
		return nil, err
	}
	if algo.Legacy() {
		slog.Warn("selected algorithm is not collision resistant; use for legacy interoperability only",
			"algorithm", algo)
	}

	workers := g.workers
	if !cmd.Flags().Changed("workers") && cfg.Defaults.Workers != nil {
		workers = *cfg.Defaults.Workers
	}
	if workers <= 0 {
		workers = digest.DefaultPoolWorkers()
	}

	thresholds := bufsize.DefaultThresholds
	if cfg.Tuning.SmallThreshold != nil && cfg.Tuning.LargeThreshold != nil {
		thresholds = bufsize.Thresholds{
			Small: *cfg.Tuning.SmallThreshold,
			Large: *cfg.Tuning.LargeThreshold,
		}
	}

	cancel := control.NewCancelToken()
	pause := control.NewPauseToken()
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGUSR1:
				slog.Info("pausing")
				pause.Pause()
			case syscall.SIGUSR2:
				slog.Info("resuming")
				pause.Resume()
			default:
				slog.Warn("cancelling", "signal", sig)
				cancel.Cancel()
				// Unblock paused workers so they can observe cancellation.
				pause.Resume()
			}
		}
	}()

	collector := stats.NewCollector()
	presenter := ui.NewPresenter(os.Stderr, collector, g.quiet)

	return &session{
		algorithm:  algo,
		thresholds: thresholds,
		workers:    workers,
		quiet:      g.quiet,
		cfg:        cfg,
		collector:  collector,
		controller: control.New(control.Options{Cancel: cancel, Pause: pause}),
		events:     presenter.Start(),
		presenter:  presenter,
		sigStop: func() {
			signal.Stop(sigCh)
			close(sigCh)
		},
		logClose: logClose,
	}, nil
}

// close tears the session down: stops signal delivery, drains the
// presenter, and prints the summary unless quiet.
func (s *session) close() {
	s.sigStop()
	s.presenter.Stop()
	if !s.quiet {
		s.presenter.Summary()
	}
	s.logClose()
}
