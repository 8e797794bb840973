package utils

import (
	"errors"
	"fmt"
)

// Kind classifies a parse failure so callers can react without string matching.
type Kind int

const (
	// KindCorrupt signals a magic/version/CRC/signature mismatch or a
	// structural invariant violated by the bytes on disk.
	KindCorrupt Kind = iota
	// KindUnsupported signals a legal-but-unimplemented on-disk variant
	// (ANSI format, a crypt method other than permutation, multi-level BTH).
	KindUnsupported
	// KindNotFound signals a missing NID/BID/propID/row.
	KindNotFound
	// KindInvariant signals an internal precondition failure (a bug, not bad input).
	KindInvariant
	// KindIO signals a file read failure or truncated block.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindCorrupt:
		return "corrupt"
	case KindUnsupported:
		return "unsupported"
	case KindNotFound:
		return "not found"
	case KindInvariant:
		return "invariant"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// PSTError is a structured error carrying the taxonomy Kind alongside context,
// so callers can branch on failure class instead of matching message text.
type PSTError struct {
	Kind    Kind
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *PSTError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Is/errors.As.
func (e *PSTError) Unwrap() error {
	return e.Cause
}

// NewError constructs a PSTError. Cause may be nil.
func NewError(kind Kind, context string, cause error) error {
	return &PSTError{Kind: kind, Context: context, Cause: cause}
}

// WrapError wraps cause with context and tags the result KindIO (e.g.
// bubbling up an os.File error). It returns nil for a nil cause.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return NewError(KindIO, context, cause)
}

// Is reports whether err (or anything it wraps) carries this Kind, so
// callers can write errors.Is(err, utils.KindNotFound)-style checks via
// the Kind value itself.
func (k Kind) Is(err error) bool {
	var pe *PSTError
	if errors.As(err, &pe) {
		return pe.Kind == k
	}
	return false
}
