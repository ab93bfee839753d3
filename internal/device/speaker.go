package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

const DefaultSpeakerBuffer = 100 * time.Millisecond

// The speaker backend only supports one initialization per process.
var (
	speakerMu   sync.Mutex
	speakerRate beep.SampleRate
)

func initSpeaker(rate beep.SampleRate, buffer time.Duration) error {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerRate != 0 {
		if speakerRate != rate {
			return fmt.Errorf("%w: speaker already running at %d Hz", audio.ErrDevice, speakerRate)
		}
		return nil
	}

	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return fmt.Errorf("%w: failed to initialize speaker: %w", audio.ErrDevice, err)
	}
	speakerRate = rate
	log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", rate, buffer)
	return nil
}

// SpeakerOpener plays through the system output. Each device is one stream in
// the speaker mixer.
type SpeakerOpener struct {
	rate   beep.SampleRate
	buffer time.Duration
}

func NewSpeaker(rate beep.SampleRate, buffer time.Duration) *SpeakerOpener {
	if buffer <= 0 {
		buffer = DefaultSpeakerBuffer
	}
	return &SpeakerOpener{rate: rate, buffer: buffer}
}

func (o *SpeakerOpener) SampleRate() beep.SampleRate {
	return o.rate
}

func (o *SpeakerOpener) Open(format beep.Format, fill Callback) (Device, error) {
	if format.SampleRate != o.rate {
		return nil, audio.Wrap("device", "", fmt.Errorf("%w: stream rate %d Hz, output rate %d Hz", audio.ErrDevice, format.SampleRate, o.rate))
	}
	if err := initSpeaker(o.rate, o.buffer); err != nil {
		return nil, audio.Wrap("device", "", err)
	}
	return &speakerDevice{fill: fill}, nil
}

// speakerDevice fields are guarded by the speaker lock, which the mixer also
// holds while streaming.
type speakerDevice struct {
	fill    Callback
	started bool
	stopped bool
}

func (d *speakerDevice) Stream(samples [][2]float64) (n int, ok bool) {
	if d.stopped {
		return 0, false
	}
	d.fill(audio.Frames(samples))
	return len(samples), true
}

func (d *speakerDevice) Err() error {
	return nil
}

func (d *speakerDevice) Start() error {
	speaker.Lock()
	if d.stopped {
		speaker.Unlock()
		return fmt.Errorf("%w: device already stopped", audio.ErrDevice)
	}
	if d.started {
		speaker.Unlock()
		return nil
	}
	d.started = true
	speaker.Unlock()

	speaker.Play(d)
	return nil
}

// Stop marks the stream drained so the mixer drops it. The mixer only calls
// Stream under the speaker lock, so no callback runs after Stop returns.
func (d *speakerDevice) Stop() {
	speaker.Lock()
	d.stopped = true
	speaker.Unlock()
}

func (d *speakerDevice) Do(fn func()) {
	speaker.Lock()
	defer speaker.Unlock()
	fn()
}

func (d *speakerDevice) Close() error {
	d.Stop()
	return nil
}
