package player

import (
	"sync/atomic"

	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/glebovdev/cookie-player/internal/decoder"
	"github.com/glebovdev/cookie-player/internal/device"
	"github.com/gopxl/beep/v2"
)

// session is one loaded track. The decoder and device are created together
// and released together; only the control path touches either field.
type session struct {
	gen     uint64
	name    string
	rate    beep.SampleRate
	decoder *decoder.Decoder
	device  device.Device

	// written by the device callback
	cursor    atomic.Int64
	total     atomic.Int64
	truncated atomic.Bool
	ended     atomic.Bool

	state atomic.Int32
	done  chan struct{}
}

func newSession(name string, dec *decoder.Decoder) *session {
	s := &session{
		name:    name,
		rate:    dec.SampleRate(),
		decoder: dec,
		done:    make(chan struct{}),
	}
	s.total.Store(dec.TotalFrames())
	s.state.Store(int32(StateStopped))
	return s
}

// fill is the device callback. It only touches atomics and the decoder.
func (s *session) fill(out audio.Frames) {
	if State(s.state.Load()) != StatePlaying {
		out.Silence(0)
		return
	}

	n := s.decoder.ReadFrames(out)
	out.Silence(n)
	s.cursor.Store(s.decoder.Cursor())

	if n < out.Len() {
		s.total.Store(s.decoder.TotalFrames())
		s.ended.Store(true)
		if s.decoder.Err() != nil {
			s.truncated.Store(true)
		}
	}
}

// finished reports whether playback reached the end of the stream. A stream
// that ended without producing a frame is finished even though its total is 0.
func (s *session) finished() bool {
	if s.ended.Load() {
		return true
	}
	total := s.total.Load()
	return total > 0 && s.cursor.Load() >= total
}

func (s *session) getState() State {
	return State(s.state.Load())
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		State:       s.getState(),
		Cursor:      s.cursor.Load(),
		TotalFrames: s.total.Load(),
		SampleRate:  s.rate,
		DisplayName: s.name,
		Generation:  s.gen,
		Truncated:   s.truncated.Load(),
	}
}
