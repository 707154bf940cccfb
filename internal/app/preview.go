package app

import (
	"sync"

	"github.com/ayusman/mukha/internal/capture"
)

// Capture kinds reported in a Snapshot.
const (
	KindRegister     = "register"
	KindAuthenticate = "authenticate"
)

// Snapshot is the latest capture state.
type Snapshot struct {
	Active bool           `json:"active"`
	Kind   string         `json:"kind,omitempty"`
	Status capture.Status `json:"status"`
	Seq    uint64         `json:"seq"`
}

// Preview holds the most recent annotated frame and status of the running
// capture and fans status updates out to subscribers.
type Preview struct {
	mu      sync.RWMutex
	snap    Snapshot
	jpeg    []byte
	viewers int
	subs    map[chan Snapshot]struct{}
}

// NewPreview creates an empty preview.
func NewPreview() *Preview {
	return &Preview{subs: make(map[chan Snapshot]struct{})}
}

// Latest returns the current snapshot.
func (p *Preview) Latest() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Frame returns the latest JPEG and the sequence number it belongs to. The
// frame is nil until a viewer has asked for frames during a capture.
func (p *Preview) Frame() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.snap.Seq
}

// WatchFrames registers a frame viewer. Frames are only encoded while at
// least one viewer is registered. Call the returned func to unregister.
func (p *Preview) WatchFrames() func() {
	p.mu.Lock()
	p.viewers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.viewers--
			p.mu.Unlock()
		})
	}
}

func (p *Preview) wantsFrames() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.viewers > 0
}

// Subscribe returns a channel of snapshots. Slow subscribers miss updates
// rather than stall the capture. Call the returned func to unsubscribe.
func (p *Preview) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Preview) begin(kind string) {
	p.update(func(s *Snapshot) {
		s.Active = true
		s.Kind = kind
		s.Status = capture.Status{}
	}, nil, true)
}

func (p *Preview) end() {
	p.update(func(s *Snapshot) { s.Active = false }, nil, false)
}

func (p *Preview) publish(jpeg []byte, st capture.Status) {
	p.update(func(s *Snapshot) { s.Status = st }, jpeg, false)
}

// update applies fn, bumps the sequence and notifies subscribers. A nil
// jpeg keeps the previous frame unless clear is set.
func (p *Preview) update(fn func(*Snapshot), jpeg []byte, clear bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.snap)
	p.snap.Seq++
	if jpeg != nil || clear {
		p.jpeg = jpeg
	}

	for ch := range p.subs {
		select {
		case ch <- p.snap:
		default:
		}
	}
}
