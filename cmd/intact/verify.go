package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/engine"
	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/filter"
	"github.com/robwhited/intact/internal/verify"
)

func newVerifyCmd(g *globalOpts) *cobra.Command {
	var (
		csvPath    string
		minSizeStr string
		maxSizeStr string
	)
	chain := filter.NewChain()

	cmd := &cobra.Command{
		Use:   "verify <source> <target>",
		Short: "Compare two trees bidirectionally by content digest",
		Long: `verify hashes every file on both sides and matches them by normalized
relative path, so "photo - Copy.jpg" still pairs with "photo.jpg". Files
present on only one side, content mismatches, and unreadable files are all
reported; a hash failure on one file never aborts the run.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if err := applySizeFlags(chain, minSizeStr, maxSizeStr); err != nil {
				return err
			}
			var fc *filter.Chain
			if !chain.Empty() {
				fc = chain
			}

			source, err := (&engine.Scanner{Root: args[0], Filter: fc}).Scan()
			if err != nil {
				return err
			}
			target, err := (&engine.Scanner{Root: args[1], Filter: fc}).Scan()
			if err != nil {
				return err
			}

			var totalBytes int64
			for _, rec := range source {
				totalBytes += rec.SizeBytes
			}
			for _, rec := range target {
				totalBytes += rec.SizeBytes
			}
			s.collector.SetTotals(int64(len(source)+len(target)), totalBytes)
			event.Emit(s.events, event.Event{
				Type:      event.ScanComplete,
				Total:     int64(len(source) + len(target)),
				TotalSize: totalBytes,
			})

			slog.Debug("starting verification",
				"source_files", len(source),
				"target_files", len(target),
				"algorithm", s.algorithm,
			)

			m := &verify.Matcher{
				Algorithm:  s.algorithm,
				Thresholds: s.thresholds,
				Workers:    s.workers,
				Control:    s.controller,
				Stats:      s.collector,
				Events:     s.events,
			}
			report, err := m.Verify(source, target)
			if err != nil && !errors.Is(err, control.ErrCancelled) {
				return err
			}

			if csvPath != "" {
				if csvErr := writeReportCSV(csvPath, report); csvErr != nil {
					slog.Error("failed to write report", "path", csvPath, "error", csvErr)
				}
			}
			if !s.quiet {
				printReportSummary(report)
			}

			if errors.Is(err, control.ErrCancelled) {
				slog.Warn("verification cancelled", "partial", report.Partial)
				return &exitError{code: 130}
			}
			if !report.Clean() {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "write the verification report to FILE")
	addFilterFlags(cmd, chain, &minSizeStr, &maxSizeStr)
	return cmd
}

func writeReportCSV(path string, report *verify.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := verify.WriteCSV(f, report); err != nil {
		return err
	}
	return f.Sync()
}

func printReportSummary(report *verify.Report) {
	t := report.Totals
	fmt.Printf("\nVerification %s (%s, %d findings)\n",
		report.ID, report.Algorithm, t.Entries())
	if report.Partial {
		fmt.Println("  PARTIAL: run was cancelled before completion")
	}
	fmt.Printf("  matched:           %d\n", t.Match)
	if t.HashMismatch > 0 {
		fmt.Printf("  hash mismatches:   %d\n", t.HashMismatch)
	}
	if t.MissingTarget > 0 {
		fmt.Printf("  missing in target: %d\n", t.MissingTarget)
	}
	if t.MissingSource > 0 {
		fmt.Printf("  missing in source: %d\n", t.MissingSource)
	}
	if t.AmbiguousMatch > 0 {
		fmt.Printf("  ambiguous:         %d\n", t.AmbiguousMatch)
	}
	if t.ProcessingError > 0 {
		fmt.Printf("  processing errors: %d\n", t.ProcessingError)
	}

	for _, e := range report.Entries {
		if e.Classification == verify.Match {
			continue
		}
		if e.Detail != "" {
			fmt.Printf("  %-17s %s (%s)\n", e.Classification, e.RelativePath, e.Detail)
		} else {
			fmt.Printf("  %-17s %s\n", e.Classification, e.RelativePath)
		}
	}
}
