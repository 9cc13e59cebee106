// Package digest computes cryptographic digests over byte streams with
// buffer sizes adapted to file size.
//
// SHA-256 is the default and recommended algorithm. MD5 and SHA-1 are
// selectable for interoperability with legacy evidence-management systems
// only; both are broken for collision resistance and must not be relied on
// against a deliberate adversary. BLAKE3 is offered as a fast modern
// alternative.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/robwhited/intact/internal/bufsize"
	"github.com/robwhited/intact/internal/control"
)

// Algorithm selects a digest algorithm.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
	BLAKE3 Algorithm = "blake3"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{SHA256, SHA1, MD5, BLAKE3}

// Parse converts a user-supplied algorithm name.
func Parse(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unsupported algorithm %q (supported: sha256, sha1, md5, blake3)", s)
}

// Legacy reports whether the algorithm is kept only for compatibility with
// legacy systems and is not cryptographically strong.
func (a Algorithm) Legacy() bool {
	return a == SHA1 || a == MD5
}

func (a Algorithm) String() string { return string(a) }

// New returns a fresh hash state for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case MD5:
		return md5.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", string(a))
	}
}

// Result is the digest of exactly one full read of one byte stream.
// Immutable once returned.
type Result struct {
	Algorithm      Algorithm
	HexDigest      string
	BytesProcessed int64
}

// ReadError wraps a stream failure that occurred mid-hash. The partial
// digest is discarded; only the error escapes.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("read stream: %v", e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Hasher computes digests for one configured algorithm. The zero value is
// not usable; Algorithm must be set. Thresholds and Control are optional.
type Hasher struct {
	Algorithm  Algorithm
	Thresholds bufsize.Thresholds
	Control    *control.Controller
}

func (h *Hasher) thresholds() bufsize.Thresholds {
	if h.Thresholds.Valid() {
		return h.Thresholds
	}
	return bufsize.DefaultThresholds
}

// Stream consumes r to exhaustion in len(buf)-sized chunks, feeding each
// chunk into the running hash state. Single-pass: the reader is not
// restartable afterwards. Pause and cancellation are honored between
// chunks, never mid-chunk.
func (h *Hasher) Stream(r io.Reader, buf []byte) (Result, error) {
	state, err := h.Algorithm.New()
	if err != nil {
		return Result{}, err
	}
	if len(buf) == 0 {
		buf = make([]byte, bufsize.SmallBuffer)
	}

	var total int64
	for {
		if err := h.Control.Checkpoint(); err != nil {
			return Result{}, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			state.Write(buf[:n]) // hash.Hash.Write never fails
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, &ReadError{Err: readErr}
		}
	}

	return Result{
		Algorithm:      h.Algorithm,
		HexDigest:      hex.EncodeToString(state.Sum(nil)),
		BytesProcessed: total,
	}, nil
}

// progressReader reports hashing progress through the controller as the
// underlying reader is consumed.
type progressReader struct {
	r     io.Reader
	ctrl  *control.Controller
	label string
	total int64
	read  int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.ctrl.Progress(int(p.read*100/p.total), p.label)
	}
	return n, err
}

// File hashes the file at path with a buffer sized to the file's tier.
func (h *Hasher) File(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if info.Size() > 0 {
		r = &progressReader{
			r:     f,
			ctrl:  h.Control,
			label: "hashing " + filepath.Base(path),
			total: info.Size(),
		}
	}

	profile := h.thresholds().For(info.Size())
	res, err := h.Stream(r, make([]byte, profile.BufferBytes))
	if err != nil {
		var re *ReadError
		if errors.As(err, &re) {
			re.Path = path
		}
		return Result{}, err
	}
	return res, nil
}

// File hashes path with algo using default thresholds and no control ports.
func File(path string, algo Algorithm) (Result, error) {
	h := Hasher{Algorithm: algo}
	return h.File(path)
}
