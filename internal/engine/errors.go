package engine

import (
	"errors"
	"fmt"

	"github.com/robwhited/intact/internal/digest"
)

// ErrorKind classifies a TransferError.
type ErrorKind int

const (
	// KindIO is a recoverable environmental failure: permissions, missing
	// file, disk full, path too long. Fix the environment and retry.
	KindIO ErrorKind = iota + 1
	// KindIntegrity means the source and destination digests differ after a
	// completed write and durability barrier. Possible corruption or
	// tampering; never retried automatically.
	KindIntegrity
	// KindRead is a stream failure mid-hash.
	KindRead
)

var kindNames = [...]string{
	KindIO:        "io",
	KindIntegrity: "integrity",
	KindRead:      "read",
}

func (k ErrorKind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// TransferError is the typed error returned by all fallible engine
// operations. It carries enough context for a host to build a user-facing
// message without re-deriving anything.
type TransferError struct {
	Kind      ErrorKind
	Path      string
	Algorithm digest.Algorithm
	Expected  string // source digest, for integrity failures
	Actual    string // destination digest, for integrity failures
	Err       error
}

func (e *TransferError) Error() string {
	if e.Kind == KindIntegrity {
		return fmt.Sprintf("integrity failure on %s: %s digest %s != %s",
			e.Path, e.Algorithm, truncDigest(e.Expected), truncDigest(e.Actual))
	}
	return fmt.Sprintf("%s error on %s: %v", e.Kind, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or 0 if err is not a
// TransferError.
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

func ioError(path string, err error) *TransferError {
	return &TransferError{Kind: KindIO, Path: path, Err: err}
}

func readError(path string, err error) *TransferError {
	return &TransferError{Kind: KindRead, Path: path, Err: err}
}

func integrityError(path string, algo digest.Algorithm, expected, actual string) *TransferError {
	return &TransferError{
		Kind:      KindIntegrity,
		Path:      path,
		Algorithm: algo,
		Expected:  expected,
		Actual:    actual,
	}
}

// truncDigest shortens a hex digest for display. Full digests stay on the
// error value.
func truncDigest(d string) string {
	if len(d) > 16 {
		return d[:16] + "..."
	}
	if d == "" {
		return "(none)"
	}
	return d
}
