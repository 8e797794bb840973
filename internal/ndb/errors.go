package ndb

import (
	"fmt"

	"github.com/pstkit/pst/internal/utils"
)

// NewUnsupportedCryptError reports a bCryptMethod this reader cannot decode.
func NewUnsupportedCryptError(method CryptMethod) error {
	return utils.NewError(utils.KindUnsupported, fmt.Sprintf("crypt method 0x%02X", byte(method)), nil)
}

// NewCorruptError wraps a structural violation (bad magic, signature, CRC, ptype mismatch).
func NewCorruptError(context string, cause error) error {
	return utils.NewError(utils.KindCorrupt, context, cause)
}

// NewNotFoundError reports a missing NID/BID lookup.
func NewNotFoundError(context string) error {
	return utils.NewError(utils.KindNotFound, context, nil)
}

// NewInvariantError reports an internal precondition failure.
func NewInvariantError(context string) error {
	return utils.NewError(utils.KindInvariant, context, nil)
}
