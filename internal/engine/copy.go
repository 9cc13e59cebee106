package engine

import (
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/robwhited/intact/internal/bufsize"
	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/digest"
	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/stats"
)

// CopyOutcome is the evidence record for one completed copy: byte count,
// both digests, wall time, and whether the digests agree.
type CopyOutcome struct {
	BytesCopied       int64
	SourceDigest      digest.Result
	DestinationDigest digest.Result
	Duration          time.Duration
	IntegrityOK       bool
}

// Copier copies single files with integrity verification. The source is
// hashed during the one copy read; after the data reaches the destination
// and a durability barrier, the destination is read back independently and
// hashed a second time. Equal digests prove the bytes survived the trip.
type Copier struct {
	Algorithm     digest.Algorithm
	Thresholds    bufsize.Thresholds
	PreserveTimes bool
	Control       *control.Controller
	Stats         *stats.Collector
	Events        chan<- event.Event

	// afterSync runs between the durability barrier and the destination
	// read-back. Tests use it to fault the written bytes.
	afterSync func(tmpPath string)
}

func (c *Copier) algorithm() digest.Algorithm {
	if c.Algorithm == "" {
		return digest.SHA256
	}
	return c.Algorithm
}

func (c *Copier) thresholds() bufsize.Thresholds {
	if c.Thresholds.Valid() {
		return c.Thresholds
	}
	return bufsize.DefaultThresholds
}

// Copy copies srcPath to dstPath and verifies the destination. The write
// goes to a uniquely named temp file in the destination directory and is
// renamed into place only after the read-back, so dstPath never holds a
// partial file. On an integrity failure the destination file is kept for
// examination and the returned error is a KindIntegrity TransferError.
//
// Cancellation removes the temp file and returns control.ErrCancelled with
// the source untouched.
func (c *Copier) Copy(srcPath, dstPath string) (CopyOutcome, error) {
	start := time.Now()

	if err := c.Control.Checkpoint(); err != nil {
		event.Emit(c.Events, event.Event{Type: event.Cancelled, Path: srcPath})
		return CopyOutcome{}, err
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return CopyOutcome{}, c.fail(srcPath, ioError(srcPath, err))
	}
	if !info.Mode().IsRegular() {
		return CopyOutcome{}, c.fail(srcPath, ioError(srcPath, fmt.Errorf("not a regular file")))
	}

	profile := c.thresholds().For(info.Size())
	if c.Stats != nil {
		c.Stats.CountTier(profile.Tier)
	}
	event.Emit(c.Events, event.Event{Type: event.FileStarted, Path: srcPath, Size: info.Size()})

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return CopyOutcome{}, c.fail(srcPath, ioError(dstPath, err))
	}
	tmpPath := tempPath(dstPath)

	srcDigest, err := c.transfer(srcPath, tmpPath, info, profile)
	if err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, control.ErrCancelled) {
			event.Emit(c.Events, event.Event{Type: event.Cancelled, Path: srcPath})
			return CopyOutcome{}, err
		}
		return CopyOutcome{}, c.fail(srcPath, err)
	}

	if c.afterSync != nil {
		c.afterSync(tmpPath)
	}

	// Independent second read. A fresh descriptor and a fresh hash state,
	// never a reuse of the digest computed on the way in.
	verifier := &digest.Hasher{
		Algorithm:  c.algorithm(),
		Thresholds: c.Thresholds,
		Control:    c.Control,
	}
	dstDigest, err := verifier.File(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, control.ErrCancelled) {
			event.Emit(c.Events, event.Event{Type: event.Cancelled, Path: srcPath})
			return CopyOutcome{}, err
		}
		return CopyOutcome{}, c.fail(srcPath, readError(tmpPath, err))
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return CopyOutcome{}, c.fail(srcPath, ioError(dstPath, err))
	}

	outcome := CopyOutcome{
		BytesCopied:       srcDigest.BytesProcessed,
		SourceDigest:      srcDigest,
		DestinationDigest: dstDigest,
		Duration:          time.Since(start),
		IntegrityOK:       srcDigest.HexDigest == dstDigest.HexDigest,
	}

	if !outcome.IntegrityOK {
		// The mismatched file stays on disk under its final name so an
		// examiner can inspect what was actually written.
		if c.Stats != nil {
			c.Stats.AddFilesFailed(1)
		}
		event.Emit(c.Events, event.Event{
			Type:   event.IntegrityFailed,
			Path:   srcPath,
			Size:   outcome.BytesCopied,
			Digest: dstDigest.HexDigest,
		})
		return outcome, integrityError(dstPath, c.algorithm(), srcDigest.HexDigest, dstDigest.HexDigest)
	}

	if c.Stats != nil {
		c.Stats.AddFilesCopied(1)
		c.Stats.AddBytesCopied(outcome.BytesCopied)
	}
	event.Emit(c.Events, event.Event{
		Type:   event.FileCopied,
		Path:   srcPath,
		Size:   outcome.BytesCopied,
		Digest: srcDigest.HexDigest,
	})
	c.Control.Progress(100, "copied "+filepath.Base(srcPath))
	return outcome, nil
}

// transfer streams srcPath into tmpPath, hashing each chunk as it passes
// through, then applies metadata and a durability barrier. The returned
// digest covers exactly the bytes written.
func (c *Copier) transfer(srcPath, tmpPath string, info os.FileInfo, profile bufsize.Profile) (digest.Result, error) {
	state, err := c.algorithm().New()
	if err != nil {
		return digest.Result{}, ioError(srcPath, err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return digest.Result{}, ioError(srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return digest.Result{}, ioError(tmpPath, err)
	}

	var written int64
	if profile.Tier == bufsize.Small {
		written, err = c.pumpWhole(src, dst, state, info)
	} else {
		written, err = c.pump(src, dst, state, info, profile)
	}
	if err != nil {
		dst.Close()
		return digest.Result{}, err
	}
	if written != info.Size() {
		dst.Close()
		return digest.Result{}, ioError(srcPath,
			fmt.Errorf("size changed during copy: expected %d bytes, read %d", info.Size(), written))
	}

	if err := c.applyMetadata(dst, info); err != nil {
		dst.Close()
		return digest.Result{}, ioError(tmpPath, err)
	}
	// Durability barrier: the read-back below must observe bytes that
	// survived to stable storage, not the page cache of a doomed write.
	if err := dst.Sync(); err != nil {
		dst.Close()
		return digest.Result{}, ioError(tmpPath, err)
	}
	if err := dst.Close(); err != nil {
		return digest.Result{}, ioError(tmpPath, err)
	}

	return digest.Result{
		Algorithm:      c.algorithm(),
		HexDigest:      hexSum(state),
		BytesProcessed: written,
	}, nil
}

// pumpWhole reads the entire file into memory, hashes it, and writes it in
// one shot. Small-tier files get a single read and a single write.
func (c *Copier) pumpWhole(src io.Reader, dst io.Writer, state hash.Hash, info os.FileInfo) (int64, error) {
	start := time.Now()
	if err := c.Control.Checkpoint(); err != nil {
		return 0, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return 0, readError(info.Name(), err)
	}
	state.Write(data)
	if _, err := dst.Write(data); err != nil {
		return 0, ioError(info.Name(), err)
	}

	written := int64(len(data))
	c.Control.Progress(100, "copying "+info.Name())
	c.reportMetrics(written, start)
	return written, nil
}

// pump moves bytes from src to dst through one buffer, feeding the hash
// state. Pause and cancellation are honored between chunks.
func (c *Copier) pump(src io.Reader, dst io.Writer, state hash.Hash, info os.FileInfo, profile bufsize.Profile) (int64, error) {
	start := time.Now()
	buf := make([]byte, profile.BufferBytes)
	name := info.Name()
	size := info.Size()

	var written int64
	for {
		if err := c.Control.Checkpoint(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			state.Write(buf[:n])
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, ioError(name, werr)
			}
			written += int64(n)
			if size > 0 {
				c.Control.Progress(int(written*100/size), "copying "+name)
			}
			c.reportMetrics(written, start)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readError(name, readErr)
		}
	}
}

// reportMetrics sends one telemetry sample covering the transfer so far.
func (c *Copier) reportMetrics(written int64, start time.Time) {
	elapsed := time.Since(start)
	m := control.Metrics{BytesProcessed: written, Elapsed: elapsed}
	if secs := elapsed.Seconds(); secs > 0 {
		m.Throughput = float64(written) / secs
	}
	c.Control.Metrics(m)
}

// applyMetadata mirrors the source permission bits onto the open temp file
// and, when configured, the source modification time.
func (c *Copier) applyMetadata(dst *os.File, info os.FileInfo) error {
	rawFd := int(dst.Fd())

	if err := unix.Fchmod(rawFd, uint32(info.Mode().Perm())); err != nil {
		return fmt.Errorf("fchmod: %w", err)
	}

	if c.PreserveTimes {
		ts := unix.NsecToTimespec(info.ModTime().UnixNano())
		times := []unix.Timespec{ts, ts}
		if err := unix.UtimesNanoAt(rawFd, "", times, unix.AT_EMPTY_PATH); err != nil {
			// Some systems don't support AT_EMPTY_PATH.
			if err2 := unix.UtimesNanoAt(unix.AT_FDCWD, dst.Name(), times, 0); err2 != nil {
				return fmt.Errorf("utimensat: %w", err)
			}
		}
	}
	return nil
}

// tempPath builds a unique hidden temp name next to the destination, so the
// final rename stays on one filesystem.
func tempPath(dstPath string) string {
	dir, base := filepath.Split(dstPath)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.intact", base, uuid.NewString()[:8]))
}

func hexSum(state hash.Hash) string {
	return fmt.Sprintf("%x", state.Sum(nil))
}

// fail records a per-file failure on the collector and event stream, then
// passes the error through.
func (c *Copier) fail(path string, err error) error {
	if c.Stats != nil {
		c.Stats.AddFilesFailed(1)
	}
	event.Emit(c.Events, event.Event{Type: event.FileFailed, Path: path, Error: err})
	return err
}
