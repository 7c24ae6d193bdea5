package tananfs

// BlockCursor is a byte-addressing helper that walks a padded-block space:
// every block reserves a fixed-width prefix (paddingFront) and suffix
// (paddingBack) that don't carry stream data, and BlockCursor translates a
// logical offset in the data stream to a (block index, byte offset within
// block) pair (spec §4.6). The arithmetic is ported directly from
// original_source/src/filetypes/block_cursor.rs.
type BlockCursor struct {
	blockSize     uint64
	paddingFront  uint64
	paddingBack   uint64
	currentBlock  uint64
	currentByte   uint64
}

// NewBlockCursor returns a cursor positioned at the start of the data
// stream (block 0, byte paddingFront) for a given block size and padding.
func NewBlockCursor(blockSize, paddingFront, paddingBack uint64) *BlockCursor {
	return &BlockCursor{
		blockSize:    blockSize,
		paddingFront: paddingFront,
		paddingBack:  paddingBack,
		currentBlock: 0,
		currentByte:  paddingFront,
	}
}

// BlockCursorAt returns a cursor positioned at an explicit (block, byte).
func BlockCursorAt(blockSize, paddingFront, paddingBack, startBlock, startByte uint64) *BlockCursor {
	return &BlockCursor{
		blockSize:    blockSize,
		paddingFront: paddingFront,
		paddingBack:  paddingBack,
		currentBlock: startBlock,
		currentByte:  startByte,
	}
}

func (c *BlockCursor) paddedBlock() uint64 {
	return c.blockSize - c.paddingFront - c.paddingBack
}

// Block returns the current block index.
func (c *BlockCursor) Block() uint64 { return c.currentBlock }

// Byte returns the current raw byte offset within the block (includes the
// front padding).
func (c *BlockCursor) Byte() uint64 { return c.currentByte }

// PaddedByte returns the current byte offset within the block's data
// region (excludes front padding).
func (c *BlockCursor) PaddedByte() uint64 { return c.currentByte - c.paddingFront }

// Position returns the logical byte offset in the data stream, excluding
// padding on every traversed block.
func (c *BlockCursor) Position() uint64 {
	if c.currentBlock == 0 {
		return c.PaddedByte()
	}
	return c.currentBlock*c.paddedBlock() + c.PaddedByte()
}

// Reset returns the cursor to the start of the data stream.
func (c *BlockCursor) Reset() {
	c.currentBlock = 0
	c.currentByte = c.paddingFront
}

// Advance moves the cursor forward by n data bytes, wrapping across as many
// full blocks as needed.
func (c *BlockCursor) Advance(n uint64) uint64 {
	padded := c.paddedBlock()
	remaining := c.blockSize - (c.currentByte + c.paddingBack)
	if n < remaining {
		c.currentByte += n
		return c.Position()
	}
	advanceBlocks := (n-remaining)/padded + 1
	advanceBytes := (n - remaining) % padded
	c.currentBlock += advanceBlocks
	c.currentByte = c.paddingFront + advanceBytes
	return c.Position()
}

// Regress moves the cursor backward by n data bytes, clamped at (0, paddingFront).
func (c *BlockCursor) Regress(n uint64) uint64 {
	padded := c.paddedBlock()
	remaining := c.currentByte - c.paddingFront
	if n < remaining {
		c.currentByte -= n
		return c.Position()
	}
	regressBlocks := (n-remaining)/padded + 1
	regressBytes := (n - remaining) % padded
	if regressBlocks <= c.currentBlock {
		c.currentBlock -= regressBlocks
		c.currentByte = c.blockSize - c.paddingBack - regressBytes
	} else {
		c.currentBlock = 0
		c.currentByte = c.paddingFront
	}
	return c.Position()
}

// Set resets the cursor then advances it to logical offset n.
func (c *BlockCursor) Set(n uint64) uint64 {
	c.Reset()
	return c.Advance(n)
}
