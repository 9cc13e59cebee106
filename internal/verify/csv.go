package verify

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/robwhited/intact/internal/digest"
)

var csvHeader = []string{
	"file_path", "algorithm", "hash_value", "file_size",
	"status", "error_message", "timestamp",
}

// WriteCSV writes the report as an audit-friendly CSV, one row per entry.
// The hash column holds the source digest when one exists, otherwise the
// target digest.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	ts := r.StartedAt.UTC().Format(time.RFC3339)
	for _, e := range r.Entries {
		hashValue := e.SourceDigest
		if hashValue == "" {
			hashValue = e.TargetDigest
		}
		row := []string{
			e.RelativePath,
			r.Algorithm.String(),
			hashValue,
			strconv.FormatInt(e.SizeBytes, 10),
			e.Classification.String(),
			e.Detail,
			ts,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteDigestCSV writes one row per hashed file in the same column layout,
// for single-tree hash manifests.
func WriteDigestCSV(w io.Writer, algo digest.Algorithm, results []digest.JobResult, generatedAt time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	ts := generatedAt.UTC().Format(time.RFC3339)
	for _, res := range results {
		status, errMsg, hashValue := "hashed", "", res.Result.HexDigest
		if res.Err != nil {
			status, errMsg, hashValue = "error", res.Err.Error(), ""
		}
		row := []string{
			res.Job.Rel,
			algo.String(),
			hashValue,
			strconv.FormatInt(res.Job.Size, 10),
			status,
			errMsg,
			ts,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
