package transcript

import (
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// Mode selects what a Builder captures
type Mode string

const (
	ModeFull      Mode = "full"
	ModeTail      Mode = "tail"
	ModeSelection Mode = "selection"
	ModeSentinel  Mode = "sentinel"
	ModeNone      Mode = "none"
)

// Default sentinel markers
const (
	DefaultSentinelStart = "<<START>>"
	DefaultSentinelEnd   = "<<END>>"
)

// lineRe matches a line and its terminator, if any
var lineRe = regexp.MustCompile(`[^\r\n]*(?:\r\n|\n|\r)|[^\r\n]+`)

// Options configures a Builder
type Options struct {
	Mode          Mode
	TailLines     int
	StripANSI     bool
	SentinelStart string
	SentinelEnd   string
}

// Builder accumulates a transcript. It is safe for concurrent use.
type Builder struct {
	mode        Mode
	stripANSI   bool
	startMarker string
	endMarker   string

	mu        sync.Mutex
	fragments []string
	ring      *RingBuffer
	inBlock   bool
	closed    bool
}

// New creates a Builder. Empty sentinel markers take the defaults; an
// unrecognized mode captures nothing.
func New(opts Options) *Builder {
	b := &Builder{
		mode:        opts.Mode,
		stripANSI:   opts.StripANSI,
		startMarker: opts.SentinelStart,
		endMarker:   opts.SentinelEnd,
	}
	if b.startMarker == "" {
		b.startMarker = DefaultSentinelStart
	}
	if b.endMarker == "" {
		b.endMarker = DefaultSentinelEnd
	}
	if b.mode == ModeTail {
		b.ring = NewRingBuffer(opts.TailLines)
	}
	return b
}

// Mode returns the capture mode
func (b *Builder) Mode() Mode {
	return b.mode
}

// PushBytes pushes a raw output chunk
func (b *Builder) PushBytes(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.Push(string(chunk))
}

// Push adds a chunk of output. With StripANSI, escape sequences are removed
// per chunk, and so are bytes that are not valid UTF-8.
func (b *Builder) Push(chunk string) {
	if chunk == "" {
		return
	}
	if b.stripANSI {
		chunk = ansi.Strip(chunk)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.mode {
	case ModeFull, ModeSelection:
		b.fragments = append(b.fragments, chunk)
	case ModeTail:
		b.ring.Push(chunk)
	case ModeSentinel:
		b.scanSentinel(chunk)
	}
}

// scanSentinel captures non-blank lines between the start marker and the
// first end marker. A start marker inside an open block is body text. Once a
// block closes nothing more is captured.
func (b *Builder) scanSentinel(chunk string) {
	if b.closed {
		return
	}

	for _, line := range lineRe.FindAllString(chunk, -1) {
		switch {
		case !b.inBlock:
			if strings.Contains(line, b.startMarker) {
				b.inBlock = true
			}
		case strings.Contains(line, b.endMarker):
			b.inBlock = false
			b.closed = true
			return
		case strings.TrimSpace(line) != "":
			b.fragments = append(b.fragments, line)
		}
	}
}

// Result returns the transcript captured so far
func (b *Builder) Result() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == ModeTail {
		return strings.Join(b.ring.Items(), "\n")
	}
	return strings.Join(b.fragments, "")
}
