package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/digest"
	"github.com/robwhited/intact/internal/engine"
	"github.com/robwhited/intact/internal/filter"
	"github.com/robwhited/intact/internal/verify"
)

func newCopyCmd(g *globalOpts) *cobra.Command {
	var (
		failFast      bool
		preserveTimes bool
		csvPath       string
		minSizeStr    string
		maxSizeStr    string
	)
	chain := filter.NewChain()

	cmd := &cobra.Command{
		Use:   "copy <source> <destination>",
		Short: "Copy a file or tree, verifying every byte end to end",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if !cmd.Flags().Changed("fail-fast") && s.cfg.Defaults.FailFast != nil {
				failFast = *s.cfg.Defaults.FailFast
			}
			if !cmd.Flags().Changed("preserve-times") && s.cfg.Defaults.PreserveTimes != nil {
				preserveTimes = *s.cfg.Defaults.PreserveTimes
			}
			if err := applySizeFlags(chain, minSizeStr, maxSizeStr); err != nil {
				return err
			}

			engineCfg := engine.Config{
				Source:        args[0],
				Destination:   args[1],
				Algorithm:     s.algorithm,
				Thresholds:    s.thresholds,
				Workers:       s.workers,
				FailFast:      failFast,
				PreserveTimes: preserveTimes,
				Control:       s.controller,
				Stats:         s.collector,
				Events:        s.events,
			}
			if !chain.Empty() {
				engineCfg.Filter = chain
			}

			slog.Debug("starting copy",
				"source", args[0],
				"destination", args[1],
				"algorithm", s.algorithm,
				"workers", s.workers,
			)

			result, err := engine.Run(engineCfg)
			if err != nil && !errors.Is(err, control.ErrCancelled) {
				return err
			}

			if csvPath != "" && result != nil {
				if csvErr := writeCopyManifest(csvPath, s.algorithm, result); csvErr != nil {
					slog.Error("failed to write manifest", "path", csvPath, "error", csvErr)
				}
			}

			if errors.Is(err, control.ErrCancelled) {
				slog.Warn("copy cancelled")
				return &exitError{code: 130}
			}
			if failed := result.Failed(); failed > 0 {
				slog.Error("copy completed with failures",
					"failed", failed, "first", result.FirstError())
				return &exitError{code: 1}
			}
			slog.Info("copy complete", "files", len(result.Outcomes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first per-file failure")
	cmd.Flags().BoolVar(&preserveTimes, "preserve-times", true, "preserve source modification times")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write a digest manifest of copied files to FILE")
	addFilterFlags(cmd, chain, &minSizeStr, &maxSizeStr)
	return cmd
}

// writeCopyManifest records the source digest of every attempted file in
// the audit CSV layout.
func writeCopyManifest(path string, algo digest.Algorithm, result *engine.Result) error {
	rows := make([]digest.JobResult, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		row := digest.JobResult{
			Job: digest.Job{
				Path: o.Record.AbsolutePath,
				Rel:  o.Record.RelativePath,
				Size: o.Record.SizeBytes,
			},
			Result: o.Outcome.SourceDigest,
			Err:    o.Err,
		}
		rows = append(rows, row)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := verify.WriteDigestCSV(f, algo, rows, time.Now()); err != nil {
		return err
	}
	return f.Sync()
}
