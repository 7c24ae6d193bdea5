package tananfs

import "testing"

// Geometry shared by these cases: a 16-byte block with a 1-byte header and
// a 1-byte trailer, leaving a 14-byte padded data region per block.
const (
	testBlockSize    = 16
	testPaddingFront = 1
	testPaddingBack  = 1
)

func TestBlockCursorAdvanceWithinBlock(t *testing.T) {
	c := NewBlockCursor(testBlockSize, testPaddingFront, testPaddingBack)
	pos := c.Advance(5)
	if pos != 5 {
		t.Fatalf("Position = %d, want 5", pos)
	}
	if c.Block() != 0 {
		t.Fatalf("Block() = %d, want 0", c.Block())
	}
}

func TestBlockCursorAdvanceAcrossBlocks(t *testing.T) {
	c := NewBlockCursor(testBlockSize, testPaddingFront, testPaddingBack)
	pos := c.Advance(20)
	if pos != 20 {
		t.Fatalf("Position = %d, want 20", pos)
	}
	if c.Block() != 1 {
		t.Fatalf("Block() = %d, want 1", c.Block())
	}
}

func TestBlockCursorRegressWithinBlock(t *testing.T) {
	c := NewBlockCursor(testBlockSize, testPaddingFront, testPaddingBack)
	c.Set(20)
	pos := c.Regress(5)
	if pos != 15 {
		t.Fatalf("Position = %d, want 15", pos)
	}
}

func TestBlockCursorRegressAcrossBlocks(t *testing.T) {
	c := NewBlockCursor(testBlockSize, testPaddingFront, testPaddingBack)
	c.Set(20)
	pos := c.Regress(10)
	if pos != 10 {
		t.Fatalf("Position = %d, want 10", pos)
	}
	if c.Block() != 0 {
		t.Fatalf("Block() = %d, want 0", c.Block())
	}
}

func TestBlockCursorRegressClampsAtStart(t *testing.T) {
	c := NewBlockCursor(testBlockSize, testPaddingFront, testPaddingBack)
	pos := c.Regress(5)
	if pos != 0 {
		t.Fatalf("Position = %d, want 0 (clamped)", pos)
	}
	if c.Block() != 0 || c.Byte() != testPaddingFront {
		t.Fatalf("cursor not clamped to start: block=%d byte=%d", c.Block(), c.Byte())
	}
}

func TestBlockCursorSetThenSeekRoundTrip(t *testing.T) {
	c := NewBlockCursor(testBlockSize, testPaddingFront, testPaddingBack)
	for _, n := range []uint64{0, 1, 13, 14, 27, 100} {
		pos := c.Set(n)
		if pos != n {
			t.Fatalf("Set(%d) = %d, want %d", n, pos, n)
		}
	}
}
