package runner

import (
	"bytes"
	"io"
	"sync"

	"github.com/randomizedcoder/go-cpbench/internal/banner"
)

// Console is the shared terminal. Every job writes one complete block
// (banner, payload and stderr section) under a single lock acquisition, so
// blocks from concurrent jobs never interleave.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	framer *banner.Framer
}

// NewConsole returns a Console writing to w with the given framer.
func NewConsole(w io.Writer, framer *banner.Framer) *Console {
	if framer == nil {
		framer = banner.New(banner.DefaultWidth, false)
	}
	return &Console{w: w, framer: framer}
}

// Block accumulates one job's console output.
type Block struct {
	buf    bytes.Buffer
	framer *banner.Framer
}

// NewBlock starts an empty block.
func (c *Console) NewBlock() *Block {
	return &Block{framer: c.framer}
}

// Banner appends a framed line.
func (b *Block) Banner(text string) *Block {
	b.buf.WriteString(b.framer.Line(text))
	return b
}

// Raw appends data verbatim.
func (b *Block) Raw(data []byte) *Block {
	b.buf.Write(data)
	return b
}

// Len returns the number of buffered bytes.
func (b *Block) Len() int {
	return b.buf.Len()
}

// Write flushes b to the console.
func (c *Console) Write(b *Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.w.Write(b.buf.Bytes())
	return err
}
