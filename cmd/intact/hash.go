package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/digest"
	"github.com/robwhited/intact/internal/engine"
	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/filter"
	"github.com/robwhited/intact/internal/verify"
)

func newHashCmd(g *globalOpts) *cobra.Command {
	var (
		csvPath    string
		minSizeStr string
		maxSizeStr string
	)
	chain := filter.NewChain()

	cmd := &cobra.Command{
		Use:   "hash <path>",
		Short: "Compute digests for a file or tree",
		Args:  cobra.ExactArgs(1),
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

			records, err := (&engine.Scanner{Root: args[0], Filter: fc}).Scan()
			if err != nil {
				return err
			}

			var totalBytes int64
			jobs := make([]digest.Job, len(records))
			for i, rec := range records {
				totalBytes += rec.SizeBytes
				jobs[i] = digest.Job{Path: rec.AbsolutePath, Rel: rec.RelativePath, Size: rec.SizeBytes}
			}
			s.collector.SetTotals(int64(len(records)), totalBytes)
			event.Emit(s.events, event.Event{
				Type:      event.ScanComplete,
				Total:     int64(len(records)),
				TotalSize: totalBytes,
			})

			event.Emit(s.events, event.Event{Type: event.HashStarted, Total: int64(len(jobs))})

			pool := &digest.Pool{
				Hasher: digest.Hasher{
					Algorithm:  s.algorithm,
					Thresholds: s.thresholds,
					Control:    s.controller,
				},
				Workers: s.workers,
			}
			results := pool.Run(jobs)

			var failed int
			for _, res := range results {
				if res.Err != nil {
					if errors.Is(res.Err, control.ErrCancelled) {
						continue
					}
					failed++
					slog.Error("hash failed", "path", res.Job.Rel, "error", res.Err)
					continue
				}
				s.collector.AddFilesHashed(1)
				s.collector.AddBytesHashed(res.Result.BytesProcessed)
				event.Emit(s.events, event.Event{
					Type:   event.HashComplete,
					Path:   res.Job.Rel,
					Size:   res.Result.BytesProcessed,
					Digest: res.Result.HexDigest,
				})
				fmt.Printf("%s  %s\n", res.Result.HexDigest, res.Job.Rel)
			}

			if csvPath != "" {
				if csvErr := writeHashManifest(csvPath, s.algorithm, results); csvErr != nil {
					slog.Error("failed to write manifest", "path", csvPath, "error", csvErr)
				}
			}

			if s.controller.Cancelled() {
				slog.Warn("hashing cancelled")
				return &exitError{code: 130}
			}
			if failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "write the digest manifest to FILE")
	addFilterFlags(cmd, chain, &minSizeStr, &maxSizeStr)
	return cmd
}

func writeHashManifest(path string, algo digest.Algorithm, results []digest.JobResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := verify.WriteDigestCSV(f, algo, results, time.Now()); err != nil {
		return err
	}
	return f.Sync()
}
