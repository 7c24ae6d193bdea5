package tananfs

// RawByteFile presents a chain of data blocks as a seekable, extendable,
// shrinkable byte stream (spec §4.7). It is the layer every regular file
// and directory's content flows through.
//
// Unlike the original Rust implementation it is ported from
// (original_source/src/filetypes/raw_file.rs), a freshly constructed
// RawByteFile allocates nothing: first_block/last_block stay NullBlock and
// block_count stays 0 until the first write calls initialize(). This is
// the redesign spec §4.7/§9 calls for.
type RawByteFile struct {
	firstBlock uint64
	lastBlock  uint64
	blockCount uint64
	size       uint64
	cursor     *BlockCursor
	fs         *Filesystem
}

// SeekWhence selects the reference point for RawByteFile.Seek.
type SeekWhence int

const (
	SeekStart SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// NewRawByteFile returns an empty file with no allocated blocks.
func NewRawByteFile(fs *Filesystem) *RawByteFile {
	return &RawByteFile{
		firstBlock: NullBlock,
		lastBlock:  NullBlock,
		cursor:     NewBlockCursor(fs.BlockSize(), BlockPointerSize, 0),
		fs:         fs,
	}
}

// NewRawByteFileWithCapacity returns an empty file immediately extended to
// capacity n, with the cursor back at position 0.
func NewRawByteFileWithCapacity(fs *Filesystem, n uint64) (*RawByteFile, error) {
	f := NewRawByteFile(fs)
	if err := f.Extend(n); err != nil {
		return nil, err
	}
	f.cursor.Set(0)
	return f, nil
}

// LoadRawByteFile reconstructs a RawByteFile from an inode's chain fields,
// with the cursor at position 0.
func LoadRawByteFile(fs *Filesystem, inode *Inode) *RawByteFile {
	return &RawByteFile{
		firstBlock: inode.FirstBlock,
		lastBlock:  inode.LastBlock,
		blockCount: inode.BlockCount,
		size:       inode.Size,
		cursor:     NewBlockCursor(fs.BlockSize(), BlockPointerSize, 0),
		fs:         fs,
	}
}

// Size returns the file's current logical size in bytes.
func (r *RawByteFile) Size() uint64 { return r.size }

// BlockCount returns the number of blocks currently in the chain.
func (r *RawByteFile) BlockCount() uint64 { return r.blockCount }

// FirstBlock and LastBlock expose the chain endpoints, used by Directory
// and RegularFile to populate their inode record.
func (r *RawByteFile) FirstBlock() uint64 { return r.firstBlock }
func (r *RawByteFile) LastBlock() uint64  { return r.lastBlock }

// UpdateInode writes the chain endpoints back into inode.
func (r *RawByteFile) UpdateInode(inode *Inode) {
	inode.FirstBlock = r.firstBlock
	inode.LastBlock = r.lastBlock
}

func (r *RawByteFile) bytesPerBlock() uint64 {
	return r.fs.BlockSize() - BlockPointerSize
}

// getNthBlock performs an O(k) walk of the chain from first_block,
// short-circuiting to last_block when k+1 == block_count (spec §4.7).
func (r *RawByteFile) getNthBlock(position uint64) (*Block, error) {
	if r.blockCount == 0 {
		return nil, ErrNullBlock
	}
	if position+1 == r.blockCount {
		return r.fs.LoadBlock(r.lastBlock, false)
	}
	current, err := r.fs.LoadBlock(r.firstBlock, false)
	if err != nil {
		return nil, err
	}
	for i := uint64(1); i <= position; i++ {
		next := current.NextPointer()
		if next == NullBlock {
			return nil, ErrOutOfBounds
		}
		current, err = r.fs.LoadBlock(next, false)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// initialize allocates the file's first block when a write begins on an
// empty file (spec §4.7).
func (r *RawByteFile) initialize() error {
	idx, err := r.fs.AcquireBlock()
	if err != nil {
		return err
	}
	block, err := r.fs.LoadBlock(idx, true)
	if err != nil {
		return err
	}
	if err := r.fs.FlushBlock(block); err != nil {
		return err
	}
	r.firstBlock = idx
	r.lastBlock = idx
	r.blockCount = 1
	r.cursor.Reset()
	return nil
}

// appendBlock allocates a new tail block and links it after the current
// tail (spec §4.7).
func (r *RawByteFile) appendBlock() (*Block, error) {
	idx, err := r.fs.AcquireBlock()
	if err != nil {
		return nil, err
	}
	newBlock, err := r.fs.LoadBlock(idx, true)
	if err != nil {
		return nil, err
	}
	if err := r.fs.FlushBlock(newBlock); err != nil {
		return nil, err
	}
	tail, err := r.fs.LoadBlock(r.lastBlock, false)
	if err != nil {
		return nil, err
	}
	tail.SetNextPointer(idx)
	if err := r.fs.FlushBlock(tail); err != nil {
		return nil, err
	}
	r.lastBlock = idx
	r.blockCount++
	return newBlock, nil
}

// Read copies len(buf) bytes starting at the cursor into buf, advancing the
// cursor. len(buf) must not exceed the bytes remaining before EOF.
func (r *RawByteFile) Read(buf []byte) error {
	if uint64(len(buf)) > r.size-r.cursor.Position() {
		return ErrOutOfBounds
	}
	if len(buf) == 0 {
		return nil
	}
	bpb := r.bytesPerBlock()
	current, err := r.getNthBlock(r.cursor.Block())
	if err != nil {
		return err
	}
	total := uint64(0)
	want := uint64(len(buf))
	for total < want {
		n := min(want-total, bpb-r.cursor.PaddedByte())
		copy(buf[total:total+n], current.Data[r.cursor.Byte():r.cursor.Byte()+n])
		total += n
		r.cursor.Advance(n)
		if total < want {
			next := current.NextPointer()
			current, err = r.fs.LoadBlock(next, false)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Write copies buf into the file starting at the cursor, extending the
// chain with appendBlock as needed, advancing the cursor, and growing size
// if the write extends past the previous end of file.
func (r *RawByteFile) Write(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if r.blockCount == 0 {
		if err := r.initialize(); err != nil {
			return err
		}
	}
	bpb := r.bytesPerBlock()
	var current *Block
	var err error
	if r.cursor.Block() == r.blockCount {
		// the cursor sits just past a completely filled last block
		current, err = r.appendBlock()
	} else {
		current, err = r.getNthBlock(r.cursor.Block())
	}
	if err != nil {
		return err
	}
	total := uint64(0)
	want := uint64(len(buf))
	for total < want {
		n := min(want-total, bpb-r.cursor.PaddedByte())
		copy(current.Data[r.cursor.Byte():r.cursor.Byte()+n], buf[total:total+n])
		total += n
		r.cursor.Advance(n)
		if err := r.fs.FlushBlock(current); err != nil {
			return err
		}
		if total < want {
			next := current.NextPointer()
			if next == NullBlock {
				current, err = r.appendBlock()
			} else {
				current, err = r.fs.LoadBlock(next, false)
			}
			if err != nil {
				return err
			}
		}
	}
	if r.cursor.Position() > r.size {
		r.size = r.cursor.Position()
	}
	return nil
}

// Extend grows the file to newCapacity, zero-filling the tail of the
// current last block and appending zero-initialized blocks as needed. The
// cursor's seek position is preserved (spec §4.7).
func (r *RawByteFile) Extend(newCapacity uint64) error {
	if newCapacity < r.size {
		return ErrInsufficientBytes
	}
	savedPos := r.cursor.Position()
	if r.blockCount == 0 {
		if err := r.initialize(); err != nil {
			return err
		}
	}
	bpb := r.bytesPerBlock()
	usedInLast := r.size - (r.blockCount-1)*bpb
	lastBlock, err := r.fs.LoadBlock(r.lastBlock, false)
	if err != nil {
		return err
	}
	if usedInLast < bpb {
		payload := lastBlock.Payload()
		for i := usedInLast; i < bpb; i++ {
			payload[i] = 0
		}
		if err := r.fs.FlushBlock(lastBlock); err != nil {
			return err
		}
	}
	for r.blockCount*bpb < newCapacity {
		if _, err := r.appendBlock(); err != nil {
			return err
		}
	}
	r.size = newCapacity
	r.cursor.Set(savedPos)
	return nil
}

// Shrink reduces the file to newCapacity, releasing every block after the
// one containing the new end of file. The cursor is reset to 0 if its
// prior position would land outside the new size, otherwise preserved
// (spec §4.7).
func (r *RawByteFile) Shrink(newCapacity uint64) error {
	if newCapacity > r.size {
		return ErrOutOfBounds
	}
	previousPos := r.cursor.Position()

	if r.blockCount == 0 {
		r.cursor.Reset()
		return nil
	}

	r.cursor.Reset()
	r.cursor.Advance(newCapacity)
	target := r.cursor.Block()

	lastBlock, err := r.getNthBlock(target)
	if err != nil {
		return err
	}
	next := lastBlock.NextPointer()
	for next != NullBlock {
		nextBlock, err := r.fs.LoadBlock(next, false)
		if err != nil {
			return err
		}
		following := nextBlock.NextPointer()
		if err := r.fs.ReleaseBlock(next); err != nil {
			return err
		}
		r.blockCount--
		next = following
	}
	lastBlock.SetNextPointer(NullBlock)
	if err := r.fs.FlushBlock(lastBlock); err != nil {
		return err
	}
	r.lastBlock = lastBlock.Index
	r.size = newCapacity

	if newCapacity == 0 {
		if err := r.fs.ReleaseBlock(r.firstBlock); err != nil {
			return err
		}
		r.blockCount = 0
		r.firstBlock = NullBlock
		r.lastBlock = NullBlock
	}

	if previousPos > newCapacity {
		r.cursor.Reset()
	} else {
		r.cursor.Reset()
		r.cursor.Advance(previousPos)
	}
	return nil
}

// Seek repositions the cursor relative to whence, failing with
// ErrOutOfBounds if the result would land before 0 or strictly past size
// (spec §4.7 "Seek semantics").
func (r *RawByteFile) Seek(whence SeekWhence, offset int64) (uint64, error) {
	switch whence {
	case SeekStart:
		if offset < 0 || uint64(offset) > r.size {
			return 0, ErrOutOfBounds
		}
		r.cursor.Reset()
		return r.cursor.Advance(uint64(offset)), nil
	case SeekCurrent:
		cur := r.cursor.Position()
		switch {
		case offset > 0:
			if cur+uint64(offset) > r.size {
				return 0, ErrOutOfBounds
			}
			return r.cursor.Advance(uint64(offset)), nil
		case offset < 0:
			neg := uint64(-offset)
			if neg > cur {
				return 0, ErrOutOfBounds
			}
			return r.cursor.Regress(neg), nil
		default:
			return cur, nil
		}
	case SeekEnd:
		if offset > 0 {
			return 0, ErrOutOfBounds
		}
		if offset == 0 {
			r.cursor.Reset()
			return r.cursor.Advance(r.size), nil
		}
		neg := uint64(-offset)
		if neg > r.size {
			return 0, ErrOutOfBounds
		}
		r.cursor.Reset()
		r.cursor.Advance(r.size)
		return r.cursor.Regress(neg), nil
	default:
		return 0, ErrOutOfBounds
	}
}

// RemoveRawByteFile loads the inode at inodeIndex, loads its content chain,
// shrinks it to empty, and releases the inode (spec §4.7 "remove").
func RemoveRawByteFile(fs *Filesystem, inodeIndex uint64) error {
	inode, err := fs.LoadInode(inodeIndex)
	if err != nil {
		return err
	}
	file := LoadRawByteFile(fs, inode)
	if err := file.Shrink(0); err != nil {
		return err
	}
	return fs.ReleaseInode(inodeIndex)
}
