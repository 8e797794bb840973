package ndb

import (
	"fmt"
	"io"

	"github.com/pstkit/pst/internal/utils"
)

// Pager reads fixed-size pages and variably-sized blocks from the
// underlying PST file, allocating a fresh buffer for every read.
type Pager struct {
	r utils.ReaderAt
}

// NewPager wraps a positional reader. r is typically an *os.File.
func NewPager(r utils.ReaderAt) *Pager {
	return &Pager{r: r}
}

// ReadPage reads exactly PageSize bytes at the given absolute offset.
func (p *Pager) ReadPage(ib uint64) ([]byte, error) {
	buf := make([]byte, PageSize)
	n, err := p.r.ReadAt(buf, int64(ib))
	if err != nil && err != io.EOF {
		return nil, utils.WrapError(fmt.Sprintf("reading page at 0x%X", ib), err)
	}
	if n != PageSize {
		return nil, NewCorruptError(fmt.Sprintf("short page read at 0x%X: got %d of %d bytes", ib, n, PageSize), nil)
	}
	return buf, nil
}

// ReadBlockRange reads n bytes at the given absolute offset, for a block
// whose size is already known from its BBT entry (cb, rounded up to a
// 64-byte boundary on disk, per MS-PST section 2.2.2.8).
func (p *Pager) ReadBlockRange(ib uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, NewInvariantError("negative block length")
	}
	if err := utils.ValidateBufferSize(uint64(n), utils.MaxBlockSize+BlockTrailerSize, "block length"); err != nil {
		return nil, NewCorruptError("block length exceeds maximum", err)
	}
	buf := make([]byte, n)
	read, err := p.r.ReadAt(buf, int64(ib))
	if err != nil && err != io.EOF {
		return nil, utils.WrapError(fmt.Sprintf("reading block at 0x%X", ib), err)
	}
	if read != n {
		return nil, NewCorruptError(fmt.Sprintf("short block read at 0x%X: got %d of %d bytes", ib, read, n), nil)
	}
	return buf, nil
}

// paddedBlockSize rounds a block's raw content+trailer size up to the next
// 64-byte boundary, the on-disk allocation granularity for data blocks.
func paddedBlockSize(cb uint16) int {
	total := int(cb) + BlockTrailerSize
	if rem := total % 64; rem != 0 {
		total += 64 - rem
	}
	return total
}
