package player

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/glebovdev/cookie-player/internal/decoder"
	"github.com/glebovdev/cookie-player/internal/device"
	"github.com/rs/zerolog/log"
)

const DefaultPollInterval = 100 * time.Millisecond

var (
	// ErrNotActive is returned by operations that need a loaded track.
	ErrNotActive = errors.New("no active track")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("player closed")
)

type Option func(*Player)

// WithPollInterval sets how often the completion watcher checks the cursor.
func WithPollInterval(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithFinishedHandler registers fn to run after a track reaches the end. It is
// called from the watcher goroutine without any player lock held.
func WithFinishedHandler(fn func(Snapshot)) Option {
	return func(p *Player) {
		p.onFinished = fn
	}
}

// Player plays one track at a time. Start, Stop, TogglePause and Seek are
// serialized on mu; the device callback and Snapshot never take it.
type Player struct {
	opener       device.Opener
	pollInterval time.Duration
	onFinished   func(Snapshot)

	mu         sync.Mutex
	closed     bool
	current    atomic.Pointer[session]
	generation atomic.Uint64
	watchers   sync.WaitGroup

	lastError string
	stateMu   sync.RWMutex
}

func New(opener device.Opener, opts ...Option) *Player {
	p := &Player{
		opener:       opener,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start replaces whatever is playing with src. On failure nothing is left
// open and the player is stopped.
func (p *Player) Start(src audio.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.teardown()

	s, err := p.open(src)
	if err != nil {
		p.setLastError(err.Error())
		log.Error().Err(err).Str("track", src.Name()).Msg("Failed to start playback")
		return err
	}
	p.setLastError("")

	p.current.Store(s)
	p.watchers.Add(1)
	go p.watch(s)

	log.Info().Msgf("Playing %s (generation %d, %d frames at %d Hz)", s.name, s.gen, s.total.Load(), s.rate)
	return nil
}

func (p *Player) open(src audio.Source) (*session, error) {
	dec, err := decoder.Open(src, p.opener.SampleRate())
	if err != nil {
		return nil, err
	}

	s := newSession(src.Name(), dec)

	dev, err := p.opener.Open(dec.Format(), s.fill)
	if err != nil {
		dec.Close()
		return nil, err
	}
	s.device = dev

	s.state.Store(int32(StatePlaying))
	if err := dev.Start(); err != nil {
		dev.Stop()
		dev.Close()
		dec.Close()
		if !errors.Is(err, audio.ErrDevice) {
			err = fmt.Errorf("%w: %w", audio.ErrDevice, err)
		}
		return nil, audio.Wrap("device", s.name, err)
	}

	s.gen = p.generation.Add(1)
	return s, nil
}

// teardown releases the active session. The device is stopped before the
// decoder it reads from is closed. Callers hold mu.
func (p *Player) teardown() {
	s := p.current.Load()
	if s == nil {
		return
	}

	s.device.Stop()
	if err := s.device.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing device")
	}
	if err := s.decoder.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing decoder")
	}

	s.state.Store(int32(StateStopped))
	p.current.Store(nil)
	close(s.done)

	log.Debug().Msgf("Session %d torn down", s.gen)
}

// Stop unloads the current track. Calling it when nothing is loaded does nothing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current.Load() == nil {
		return
	}
	p.teardown()
	log.Debug().Msg("Playback stopped")
}

// TogglePause switches between playing and paused. It does nothing when
// stopped or finished.
func (p *Player) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.current.Load()
	if s == nil {
		return
	}

	if s.state.CompareAndSwap(int32(StatePlaying), int32(StatePaused)) {
		log.Debug().Msg("Playback paused")
		return
	}
	if s.state.CompareAndSwap(int32(StatePaused), int32(StatePlaying)) {
		log.Debug().Msg("Playback resumed")
	}
}

// Seek moves the current track to pos.
func (p *Player) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.current.Load()
	if s == nil {
		return ErrNotActive
	}
	if st := s.getState(); st != StatePlaying && st != StatePaused {
		return ErrNotActive
	}

	frame := int64(s.rate.N(pos))
	var err error
	s.device.Do(func() {
		if err = s.decoder.Seek(frame); err == nil {
			s.cursor.Store(s.decoder.Cursor())
			s.ended.Store(false)
		}
	})
	if err != nil {
		return err
	}

	log.Debug().Msgf("Seeked to %v", pos)
	return nil
}

// markFinished moves the session with the given generation to finished. It
// is ignored if that session has since been replaced or stopped.
func (p *Player) markFinished(gen uint64) bool {
	p.mu.Lock()

	s := p.current.Load()
	if s == nil || s.gen != gen {
		p.mu.Unlock()
		return false
	}
	if !s.state.CompareAndSwap(int32(StatePlaying), int32(StateFinished)) &&
		!s.state.CompareAndSwap(int32(StatePaused), int32(StateFinished)) {
		p.mu.Unlock()
		return false
	}
	snap := s.snapshot()
	p.mu.Unlock()

	log.Debug().Msgf("Finished %s (generation %d)", snap.DisplayName, gen)
	if p.onFinished != nil {
		p.onFinished(snap)
	}
	return true
}

// Snapshot returns the current playback state without blocking.
func (p *Player) Snapshot() Snapshot {
	s := p.current.Load()
	if s == nil {
		return Snapshot{State: StateStopped, Generation: p.generation.Load()}
	}
	return s.snapshot()
}

func (p *Player) State() State {
	return p.Snapshot().State
}

// LastError is the message of the most recent failed Start, or empty.
func (p *Player) LastError() string {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.lastError
}

func (p *Player) setLastError(msg string) {
	p.stateMu.Lock()
	p.lastError = msg
	p.stateMu.Unlock()
}

// Close stops playback and waits for background goroutines. Start fails afterwards.
func (p *Player) Close() {
	p.mu.Lock()
	p.closed = true
	p.teardown()
	p.mu.Unlock()

	p.watchers.Wait()
}
