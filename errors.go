package pst

import "github.com/pstkit/pst/internal/utils"

// Kind classifies why an operation against a PST file failed.
type Kind = utils.Kind

// Error taxonomy values, re-exported so callers never need to import the
// internal/utils package directly.
const (
	KindCorrupt     = utils.KindCorrupt
	KindUnsupported = utils.KindUnsupported
	KindNotFound    = utils.KindNotFound
	KindInvariant   = utils.KindInvariant
	KindIO          = utils.KindIO
)

// Error is a structured failure carrying a Kind alongside human-readable context.
type Error = utils.PSTError
