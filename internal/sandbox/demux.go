package sandbox

import (
	"bytes"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/docker/docker/pkg/stdcopy"
)

// frameHeaderLen is the size of a multiplexed stream frame header:
// stream id, three reserved zero bytes, big-endian uint32 payload length.
const frameHeaderLen = 8

// Decode turns the raw chunks of an attached, non-TTY stream into text.
// Frame headers are stripped per frame; stdout and stderr payloads keep
// their arrival order. A truncated trailing frame is dropped. Streams that
// are not multiplexed are returned as-is minus NUL bytes.
func Decode(chunks [][]byte) string {
	raw := bytes.Join(chunks, nil)
	if len(raw) == 0 {
		return ""
	}

	if !multiplexed(raw) {
		return strings.ToValidUTF8(string(bytes.ReplaceAll(raw, []byte{0}, nil)), "�")
	}

	var out bytes.Buffer
	// On a daemon error frame StdCopy stops; what decoded before it is kept.
	_, _ = stdcopy.StdCopy(&out, &out, bytes.NewReader(raw))
	return strings.ToValidUTF8(out.String(), "�")
}

// multiplexed reports whether raw starts with something shaped like a frame header.
func multiplexed(raw []byte) bool {
	switch stdcopy.StdType(raw[0]) {
	case stdcopy.Stdin, stdcopy.Stdout, stdcopy.Stderr, stdcopy.Systemerr:
	default:
		return false
	}
	for i := 1; i < 4 && i < len(raw); i++ {
		if raw[i] != 0 {
			return false
		}
	}
	return true
}

// Collector accumulates an attached stream up to limit bytes of output.
// Multiplexed input is re-framed as it arrives, so every stored chunk is a
// complete frame and a cut in the middle of a large frame keeps the payload
// prefix. It keeps accepting writes past the limit so the producer never blocks.
type Collector struct {
	mu        sync.Mutex
	chunks    [][]byte
	size      int
	limit     int
	truncated bool

	mode      collectMode
	header    [frameHeaderLen]byte
	headerLen int
	remaining int // payload bytes left in the current frame
}

type collectMode int

const (
	modeUnknown collectMode = iota
	modeFramed
	modeRaw
)

// NewCollector creates a Collector that keeps at most limit bytes of output.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

func (c *Collector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(p)
	if n == 0 {
		return 0, nil
	}
	if c.mode == modeUnknown {
		c.mode = modeRaw
		if multiplexed(p) {
			c.mode = modeFramed
		}
	}
	if c.mode == modeRaw {
		c.keep(nil, p)
		return n, nil
	}

	for len(p) > 0 {
		if c.remaining == 0 {
			k := copy(c.header[c.headerLen:], p)
			c.headerLen += k
			p = p[k:]
			if c.headerLen < frameHeaderLen {
				break
			}
			c.headerLen = 0
			c.remaining = int(binary.BigEndian.Uint32(c.header[4:]))
			continue
		}
		k := min(c.remaining, len(p))
		c.keep(c.header[:], p[:k])
		c.remaining -= k
		p = p[k:]
	}
	return n, nil
}

// keep stores payload, prefixed with a header carrying its own length when
// header is non-nil.
func (c *Collector) keep(header, payload []byte) {
	room := c.limit - c.size
	if len(payload) > room {
		payload = payload[:max(room, 0)]
		c.truncated = true
	}
	if len(payload) == 0 {
		return
	}

	chunk := make([]byte, 0, len(header)+len(payload))
	if header != nil {
		chunk = append(chunk, header...)
		binary.BigEndian.PutUint32(chunk[4:frameHeaderLen], uint32(len(payload)))
	}
	chunk = append(chunk, payload...)
	c.chunks = append(c.chunks, chunk)
	c.size += len(payload)
}

// Chunks returns the collected chunks.
func (c *Collector) Chunks() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Truncated reports whether any output was dropped.
func (c *Collector) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}
