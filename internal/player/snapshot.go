package player

import (
	"time"

	"github.com/gopxl/beep/v2"
)

type State int32

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a point-in-time view of playback. Cursor and TotalFrames count
// frames at SampleRate, the native rate of the track.
type Snapshot struct {
	State       State
	Cursor      int64
	TotalFrames int64
	SampleRate  beep.SampleRate
	DisplayName string
	Generation  uint64
	Truncated   bool
}

func (s Snapshot) Position() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return s.SampleRate.D(int(s.Cursor))
}

func (s Snapshot) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return s.SampleRate.D(int(s.TotalFrames))
}

// Progress returns how far through the track playback is, between 0 and 1.
func (s Snapshot) Progress() float64 {
	if s.TotalFrames <= 0 {
		return 0
	}
	p := float64(s.Cursor) / float64(s.TotalFrames)
	if p > 1 {
		return 1
	}
	return p
}

// Active reports whether a track is loaded, whether playing, paused or finished.
func (s Snapshot) Active() bool {
	return s.State != StateStopped
}
